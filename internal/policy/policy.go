// Package policy implements the permission model for skills: policy layers,
// skill permission parsing, scope defaults, and layer composition.
package policy

import (
	"encoding/json"
	"strings"
)

// ToolPolicy is one layer of allow/deny opinion over tool references.
//
// A nil Allow means the layer does not restrict which tools are callable; an
// empty non-nil Allow permits nothing. Deny entries are literal references
// and are never expanded during composition. JSON tags deliberately omit
// omitempty: nil round-trips as null and empty as [], preserving the
// nil/empty distinction in stored policies.
type ToolPolicy struct {
	Allow []string `json:"allow"`
	Deny  []string `json:"deny"`
}

// IsZero reports whether the policy carries no opinion at all.
func (p ToolPolicy) IsZero() bool {
	return p.Allow == nil && p.Deny == nil
}

// Clone returns a deep copy.
func (p ToolPolicy) Clone() ToolPolicy {
	var out ToolPolicy
	if p.Allow != nil {
		out.Allow = append([]string{}, p.Allow...)
	}
	if p.Deny != nil {
		out.Deny = append([]string{}, p.Deny...)
	}
	return out
}

// Delegation controls whether a skill may spawn sub-agent sessions. The zero
// value is the documented default for skills that do not declare one.
type Delegation int

const (
	DelegationOpus Delegation = iota
	DelegationNone
	DelegationAny
)

// String returns the manifest spelling of the delegation mode.
func (d Delegation) String() string {
	switch d {
	case DelegationNone:
		return "none"
	case DelegationAny:
		return "any"
	default:
		return "opus"
	}
}

// ParseDelegation maps a manifest delegation string to a Delegation. Empty
// and unrecognized values return the default (opus); the bool reports whether
// the input was a recognized non-empty value.
func ParseDelegation(s string) (Delegation, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "opus":
		return DelegationOpus, true
	case "none":
		return DelegationNone, true
	case "any":
		return DelegationAny, true
	default:
		return DelegationOpus, false
	}
}

// External controls a skill's access to external services. The engine carries
// it for downstream consumers; resolution keys off scope and delegation only.
type External int

const (
	ExternalNone External = iota
	ExternalRead
	ExternalFull
)

// String returns the manifest spelling of the external mode.
func (e External) String() string {
	switch e {
	case ExternalRead:
		return "read"
	case ExternalFull:
		return "full"
	default:
		return "none"
	}
}

// ParseExternal maps a manifest external string to an External. Empty and
// unrecognized values return the default (none).
func ParseExternal(s string) (External, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return ExternalNone, true
	case "read":
		return ExternalRead, true
	case "full":
		return ExternalFull, true
	default:
		return ExternalNone, false
	}
}

// ToolFilter is a skill's explicit tools block. A nil Allow leaves the scope
// defaults in force; a non-nil Allow (even empty) overrides them. Deny lists
// references the dispatcher must refuse.
type ToolFilter struct {
	Allow []string `json:"allow,omitempty"`
	Deny  []string `json:"deny,omitempty"`
}

// Permissions is a skill's parsed permission block. Values are valid by
// construction: parsing normalizes unknown enum strings to the safe defaults
// at the boundary, so consumers never see an out-of-range Scope, Delegation,
// or External. The zero value is the documented default for skills without a
// permission block: conversation-only scope, opus delegation, no external
// access.
type Permissions struct {
	Scope      Scope
	Tools      *ToolFilter
	Delegation Delegation
	External   External
}

// Manifest is the raw permission block as declared in a skill's source.
type Manifest struct {
	Scope      string      `json:"scope"`
	Tools      *ToolFilter `json:"tools,omitempty"`
	Delegation string      `json:"delegation,omitempty"`
	External   string      `json:"external,omitempty"`
}

// DefaultPermissions returns the permission set for skills that declare no
// permission block.
func DefaultPermissions() Permissions {
	return Permissions{}
}

// ParsePermissions decodes a raw permission block into valid Permissions.
// Missing blocks, malformed JSON, and unrecognized enum values all fall back
// to the safe defaults rather than failing: a permissions typo narrows a
// skill, it never breaks loading.
func ParsePermissions(raw []byte) Permissions {
	if len(raw) == 0 {
		return DefaultPermissions()
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return DefaultPermissions()
	}
	return FromManifest(m)
}

// FromManifest normalizes a decoded manifest into Permissions.
func FromManifest(m Manifest) Permissions {
	scope, _ := ParseScope(m.Scope)
	delegation, _ := ParseDelegation(m.Delegation)
	external, _ := ParseExternal(m.External)

	p := Permissions{
		Scope:      scope,
		Delegation: delegation,
		External:   external,
	}
	if m.Tools != nil {
		filter := &ToolFilter{}
		if m.Tools.Allow != nil {
			filter.Allow = append([]string{}, m.Tools.Allow...)
		}
		if m.Tools.Deny != nil {
			filter.Deny = append([]string{}, m.Tools.Deny...)
		}
		p.Tools = filter
	}
	return p
}

// ToManifest renders Permissions back into the manifest shape, used when
// echoing a skill's effective permission block over the API.
func (p Permissions) ToManifest() Manifest {
	m := Manifest{
		Scope:      p.Scope.String(),
		Delegation: p.Delegation.String(),
		External:   p.External.String(),
	}
	if p.Tools != nil {
		filter := &ToolFilter{}
		if p.Tools.Allow != nil {
			filter.Allow = append([]string{}, p.Tools.Allow...)
		}
		if p.Tools.Deny != nil {
			filter.Deny = append([]string{}, p.Tools.Deny...)
		}
		m.Tools = filter
	}
	return m
}
