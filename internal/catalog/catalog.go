// Package catalog defines the canonical tool table: tool names, accepted
// aliases, and named groups. A Catalog resolves tool references (names,
// aliases, group references) into canonical tool names.
package catalog

import (
	"sort"
	"strings"
)

// GroupPrefix marks a reference as a group lookup rather than a tool name.
const GroupPrefix = "group:"

// Catalog is the static reference table used for expansion. Immutable after
// construction; concurrent reads need no synchronization.
type Catalog struct {
	canonical map[string]struct{}
	aliases   map[string]string
	groups    map[string][]string
}

// Config describes catalog contents. Used for the built-in defaults and for
// operator override files. Group keys may be written with or without the
// "group:" prefix.
type Config struct {
	Tools   []string            `yaml:"tools"`
	Aliases map[string]string   `yaml:"aliases"`
	Groups  map[string][]string `yaml:"groups"`
}

// New builds a Catalog from a Config. Alias keys and group keys are folded
// the same way references are at lookup time; group members and alias targets
// are stored as written and resolved during expansion.
func New(cfg Config) *Catalog {
	c := &Catalog{
		canonical: make(map[string]struct{}, len(cfg.Tools)),
		aliases:   make(map[string]string, len(cfg.Aliases)),
		groups:    make(map[string][]string, len(cfg.Groups)),
	}
	c.apply(cfg)
	return c
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return New(defaultConfig())
}

// Merge returns a new Catalog with cfg layered over c: tools accumulate,
// aliases and groups replace same-named entries. c is not modified.
func (c *Catalog) Merge(cfg Config) *Catalog {
	merged := &Catalog{
		canonical: make(map[string]struct{}, len(c.canonical)+len(cfg.Tools)),
		aliases:   make(map[string]string, len(c.aliases)+len(cfg.Aliases)),
		groups:    make(map[string][]string, len(c.groups)+len(cfg.Groups)),
	}
	for name := range c.canonical {
		merged.canonical[name] = struct{}{}
	}
	for alias, target := range c.aliases {
		merged.aliases[alias] = target
	}
	for group, members := range c.groups {
		merged.groups[group] = members
	}
	merged.apply(cfg)
	return merged
}

func (c *Catalog) apply(cfg Config) {
	for _, name := range cfg.Tools {
		c.canonical[fold(name)] = struct{}{}
	}
	for alias, target := range cfg.Aliases {
		c.aliases[fold(alias)] = target
	}
	for group, members := range cfg.Groups {
		c.groups[groupKey(group)] = append([]string(nil), members...)
	}
}

var refFolder = strings.NewReplacer("-", "_", " ", "_")

// fold lower-cases a reference and collapses hyphen/space variants to the
// underscore form.
func fold(ref string) string {
	return refFolder.Replace(strings.ToLower(strings.TrimSpace(ref)))
}

// groupKey folds a group name and ensures the "group:" prefix.
func groupKey(name string) string {
	name = fold(name)
	if !strings.HasPrefix(name, GroupPrefix) {
		name = GroupPrefix + name
	}
	return name
}

// Normalize canonicalizes a single reference: trim, lower-case, fold hyphens
// and spaces to underscores, then apply the alias table. Group references
// keep their prefix with the name part folded the same way.
func (c *Catalog) Normalize(ref string) string {
	ref = fold(ref)
	if strings.HasPrefix(ref, GroupPrefix) {
		return ref
	}
	if canonical, ok := c.aliases[ref]; ok {
		return canonical
	}
	return ref
}

// Expand resolves references into a deduplicated set of canonical tool names.
// Group references expand recursively; a visited set scoped to this call
// guarantees termination when groups reference each other or themselves — a
// group seen twice contributes nothing further. Unknown references pass
// through as their normalized literal so callers may name tools the catalog
// does not know yet.
func (c *Catalog) Expand(refs []string) map[string]struct{} {
	result := make(map[string]struct{}, len(refs))
	visited := make(map[string]struct{})
	for _, ref := range refs {
		c.expandInto(result, visited, ref)
	}
	return result
}

func (c *Catalog) expandInto(result, visited map[string]struct{}, ref string) {
	ref = c.Normalize(ref)
	if ref == "" {
		return
	}
	if strings.HasPrefix(ref, GroupPrefix) {
		members, known := c.groups[ref]
		if !known {
			// Unknown group: pass through as a literal.
			result[ref] = struct{}{}
			return
		}
		if _, seen := visited[ref]; seen {
			return
		}
		visited[ref] = struct{}{}
		for _, member := range members {
			c.expandInto(result, visited, member)
		}
		return
	}
	result[ref] = struct{}{}
}

// ExpandList is Expand with a sorted slice result, for deterministic output
// on wire responses and in stored policies.
func (c *Catalog) ExpandList(refs []string) []string {
	set := c.Expand(refs)
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether the expansion of refs includes the given tool.
// The tool name is normalized before the membership test.
func (c *Catalog) Contains(refs []string, tool string) bool {
	_, ok := c.Expand(refs)[c.Normalize(tool)]
	return ok
}

// IsCanonical reports whether name (after normalization) is a canonical tool
// name in the catalog.
func (c *Catalog) IsCanonical(name string) bool {
	_, ok := c.canonical[c.Normalize(name)]
	return ok
}

// IsGroup reports whether the catalog defines the given group reference.
func (c *Catalog) IsGroup(ref string) bool {
	_, ok := c.groups[groupKey(ref)]
	return ok
}

// Tools returns the sorted canonical tool names.
func (c *Catalog) Tools() []string {
	out := make([]string, 0, len(c.canonical))
	for name := range c.canonical {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Groups returns the sorted group references the catalog defines.
func (c *Catalog) Groups() []string {
	out := make([]string, 0, len(c.groups))
	for name := range c.groups {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
