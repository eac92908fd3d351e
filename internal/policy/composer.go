package policy

import (
	"sort"

	"github.com/triage-ai/corral/internal/catalog"
)

// Machine reasons returned by Permits.
const (
	ReasonDenied     = "denied"
	ReasonNotInAllow = "not_in_allow"
)

// Compose folds an ordered list of policy layers into one net policy.
//
// Nil layers carry no opinion and drop out. The composed allow is the
// intersection of every remaining layer's allow set after expansion through
// the catalog; a layer with nil Allow sits out of the intersection entirely
// rather than counting as allow-everything or allow-nothing. An explicit
// empty allow on any layer therefore forces the intersection empty — "allow
// nothing" is absolute. Deny lists union as literal references, deduplicated
// in first-seen order, and are never expanded here; only dispatch-time
// enforcement resolves them.
//
// The zero ToolPolicy (no restriction) comes back when no layer had an
// opinion. A composed Allow is sorted so output is deterministic.
func Compose(cat *catalog.Catalog, layers []*ToolPolicy) ToolPolicy {
	var allowSets []map[string]struct{}
	var deny []string
	var denySeen map[string]struct{}

	for _, layer := range layers {
		if layer == nil {
			continue
		}
		if layer.Allow != nil {
			allowSets = append(allowSets, cat.Expand(layer.Allow))
		}
		if layer.Deny != nil && denySeen == nil {
			denySeen = make(map[string]struct{})
		}
		for _, ref := range layer.Deny {
			if _, dup := denySeen[ref]; dup {
				continue
			}
			denySeen[ref] = struct{}{}
			deny = append(deny, ref)
		}
	}

	var out ToolPolicy
	if allowSets != nil {
		inter := allowSets[0]
		for _, set := range allowSets[1:] {
			inter = intersect(inter, set)
		}
		out.Allow = sortedNames(inter)
	}
	if denySeen != nil {
		if deny == nil {
			deny = []string{}
		}
		out.Deny = deny
	}
	return out
}

func intersect(a, b map[string]struct{}) map[string]struct{} {
	if len(b) < len(a) {
		a, b = b, a
	}
	out := make(map[string]struct{}, len(a))
	for k := range a {
		if _, ok := b[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}

func sortedNames(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Permits applies a composed policy to a single tool invocation — the
// dispatcher-side check. The tool name is normalized through the catalog
// before comparison. Deny references are expanded here and only here:
// composition keeps them literal, enforcement resolves them. Deny wins over
// allow. The string is a machine reason for refusals, empty when permitted.
func Permits(cat *catalog.Catalog, p ToolPolicy, tool string) (bool, string) {
	if len(p.Deny) > 0 && cat.Contains(p.Deny, tool) {
		return false, ReasonDenied
	}
	if p.Allow != nil && !cat.Contains(p.Allow, tool) {
		return false, ReasonNotInAllow
	}
	return true, ""
}
