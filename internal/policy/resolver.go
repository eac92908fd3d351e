package policy

// Tool names the resolver appends on its own. Spawning sub-sessions rides on
// delegation; memory write is available to every scoped skill regardless of
// delegation, since persisting skill memory is safe however restricted the
// live tool surface is.
const (
	ToolSessionsSpawn    = "sessions_spawn"
	ToolSkillMemoryWrite = "skill_memory_write"
)

// ResolveSkillPolicy derives a skill's own policy layer from its permissions.
//
// A nil return means the skill imposes no restriction of its own: full or
// custom scope with no explicit allow override and no deny list. Full/custom
// with only a deny list yields a deny-only policy — a fully open skill plus a
// blocklist, with no delegation-driven additions. Every other case starts
// from the explicit allow override if present, otherwise the scope defaults,
// then appends sessions_spawn when delegation permits sub-sessions and
// skill_memory_write unconditionally. Deny passes through unchanged.
func ResolveSkillPolicy(p Permissions) *ToolPolicy {
	var override, deny []string
	if p.Tools != nil {
		override = p.Tools.Allow
		deny = p.Tools.Deny
	}

	unbounded := p.Scope == ScopeFull || p.Scope == ScopeCustom
	if unbounded && override == nil {
		if deny != nil {
			return &ToolPolicy{Deny: append([]string{}, deny...)}
		}
		return nil
	}

	baseAllow := override
	if baseAllow == nil {
		baseAllow = DefaultGroupsFor(p.Scope)
	}
	if baseAllow == nil {
		// Unreachable for bounded scopes; keeps the unbounded+override
		// branch total.
		baseAllow = []string{}
	}

	allow := make([]string, 0, len(baseAllow)+2)
	allow = append(allow, baseAllow...)
	if p.Delegation != DelegationNone {
		allow = append(allow, ToolSessionsSpawn)
	}
	allow = append(allow, ToolSkillMemoryWrite)

	out := &ToolPolicy{Allow: allow}
	if deny != nil {
		out.Deny = append([]string{}, deny...)
	}
	return out
}
