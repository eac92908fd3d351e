package policy

import "strings"

// Scope is a skill's self-declared ambient capability level. Scopes are
// totally ordered for ceiling comparisons; Custom ranks equal to Full but is
// semantically distinct (a custom skill supplies its own explicit tool list).
type Scope int

const (
	ScopeConversationOnly Scope = iota
	ScopeReadOnly
	ScopeWorkspace
	ScopeReadWrite
	ScopeFull
	ScopeCustom
)

// String returns the manifest spelling of the scope.
func (s Scope) String() string {
	switch s {
	case ScopeConversationOnly:
		return "conversation-only"
	case ScopeReadOnly:
		return "read-only"
	case ScopeWorkspace:
		return "workspace"
	case ScopeReadWrite:
		return "read-write"
	case ScopeFull:
		return "full"
	case ScopeCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Order returns the scope's ceiling rank. Custom shares the top rank with
// Full.
func (s Scope) Order() int {
	if s == ScopeCustom {
		return int(ScopeFull)
	}
	return int(s)
}

// ParseScope maps a manifest scope string to a Scope. Matching is
// case-insensitive and accepts underscore spellings. The bool reports whether
// the input was recognized; unrecognized values return the safe default
// (conversation-only) so a typo narrows a skill instead of widening it.
func ParseScope(s string) (Scope, bool) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-") {
	case "conversation-only":
		return ScopeConversationOnly, true
	case "read-only":
		return ScopeReadOnly, true
	case "workspace":
		return ScopeWorkspace, true
	case "read-write":
		return ScopeReadWrite, true
	case "full":
		return ScopeFull, true
	case "custom":
		return ScopeCustom, true
	default:
		return ScopeConversationOnly, false
	}
}

// DefaultGroupsFor returns a scope's default allow references. A nil result
// means the scope derives no allow ceiling at all (full and custom); the
// empty non-nil result for conversation-only means no ambient capability
// beyond the resolver's own additions. The returned slice is a fresh copy.
func DefaultGroupsFor(s Scope) []string {
	switch s {
	case ScopeConversationOnly:
		return []string{}
	case ScopeReadOnly:
		return []string{"group:memory", "group:web"}
	case ScopeWorkspace:
		return []string{"group:fs", "group:web", "image"}
	case ScopeReadWrite:
		return []string{"group:fs", "group:memory", "group:web", "image"}
	default:
		return nil
	}
}
