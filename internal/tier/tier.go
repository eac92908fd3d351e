// Package tier maps user identities to trust tiers and enforces the tier
// ceiling on skill scopes.
package tier

import "github.com/triage-ai/corral/internal/policy"

// Tier is a user's trust level, derived once per identity per session from
// the workspace membership lists and never persisted. The zero value means no
// tier was resolved (a non-user-originated session) and carries no
// restriction.
type Tier int

const (
	TierNone Tier = iota
	TierDefault
	TierTrusted
	TierAdmin
)

// String returns the lowercase tier name.
func (t Tier) String() string {
	switch t {
	case TierAdmin:
		return "admin"
	case TierTrusted:
		return "trusted"
	case TierDefault:
		return "default"
	default:
		return "none"
	}
}

// Profile is one tier's ceiling and default policy layer. A nil Ceiling
// admits every scope; a nil DefaultPolicy contributes no layer to
// composition.
type Profile struct {
	Ceiling       *policy.Scope
	DefaultPolicy *policy.ToolPolicy
}

// Table maps tiers to profiles. Injected wherever it is consumed so tests and
// deployments can substitute alternate ceilings without process-wide state.
type Table map[Tier]Profile

// DefaultTable returns the built-in profiles: admin unbounded with no default
// policy, trusted capped at read-write, default capped at workspace with the
// shell tool denied.
func DefaultTable() Table {
	trusted := policy.ScopeReadWrite
	standard := policy.ScopeWorkspace
	return Table{
		TierAdmin:   {},
		TierTrusted: {Ceiling: &trusted},
		TierDefault: {
			Ceiling:       &standard,
			DefaultPolicy: &policy.ToolPolicy{Deny: []string{"exec"}},
		},
	}
}

// ProfileFor returns the profile for a tier. TierNone and tiers missing from
// the table get the zero Profile: no ceiling, no policy.
func (t Table) ProfileFor(tier Tier) Profile {
	return t[tier]
}

// Admits reports whether a skill scope fits under a ceiling. A nil ceiling is
// unbounded; otherwise the scope ordering decides, with custom ranking equal
// to full.
func Admits(scope policy.Scope, ceiling *policy.Scope) bool {
	if ceiling == nil {
		return true
	}
	return scope.Order() <= ceiling.Order()
}

// Membership holds a workspace's trust lists: identity strings of the form
// "{channel}_{senderId}".
type Membership struct {
	Admins  []string
	Trusted []string
}

// Identity builds the membership key for a channel/sender pair.
func Identity(channel, senderID string) string {
	return channel + "_" + senderID
}

// ResolveUserTier maps a delivery identity to a tier. Sessions without a
// channel or sender (scheduled jobs, internal invocations) resolve to no tier
// at all: ok is false and no tier restriction applies. Matching is exact and
// case-sensitive, admin list before trusted list; identities in neither list
// get the default tier.
func ResolveUserTier(m Membership, channel, senderID string) (tier Tier, ok bool) {
	if channel == "" || senderID == "" {
		return TierNone, false
	}
	id := Identity(channel, senderID)
	if containsString(m.Admins, id) {
		return TierAdmin, true
	}
	if containsString(m.Trusted, id) {
		return TierTrusted, true
	}
	return TierDefault, true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
