package policy

import (
	"reflect"
	"testing"
)

func TestResolveSkillPolicy_ConversationOnlyNoDelegation(t *testing.T) {
	p := ResolveSkillPolicy(Permissions{
		Scope:      ScopeConversationOnly,
		Delegation: DelegationNone,
		External:   ExternalNone,
	})

	if p == nil {
		t.Fatal("expected a policy for a bounded scope")
	}
	if !reflect.DeepEqual(p.Allow, []string{ToolSkillMemoryWrite}) {
		t.Errorf("allow = %v, want [skill_memory_write]", p.Allow)
	}
	if p.Deny != nil {
		t.Errorf("deny = %v, want absent", p.Deny)
	}
}

func TestResolveSkillPolicy_FullScopeUnrestricted(t *testing.T) {
	p := ResolveSkillPolicy(Permissions{
		Scope:      ScopeFull,
		Delegation: DelegationOpus,
		External:   ExternalNone,
	})

	if p != nil {
		t.Errorf("full scope without override should impose no restriction, got %+v", p)
	}
}

func TestResolveSkillPolicy_FullScopeDenyOnly(t *testing.T) {
	p := ResolveSkillPolicy(Permissions{
		Scope:      ScopeFull,
		Delegation: DelegationOpus,
		Tools:      &ToolFilter{Deny: []string{"exec", "deploy"}},
	})

	if p == nil {
		t.Fatal("expected deny-only policy")
	}
	if p.Allow != nil {
		t.Errorf("deny-only policy must not set allow, got %v", p.Allow)
	}
	if !reflect.DeepEqual(p.Deny, []string{"exec", "deploy"}) {
		t.Errorf("deny = %v, want [exec deploy]", p.Deny)
	}
}

func TestResolveSkillPolicy_OverrideReplacesScopeDefaults(t *testing.T) {
	p := ResolveSkillPolicy(Permissions{
		Scope:      ScopeReadOnly,
		Delegation: DelegationOpus,
		Tools:      &ToolFilter{Allow: []string{"web_fetch"}},
	})

	if p == nil {
		t.Fatal("expected a policy")
	}
	want := []string{"web_fetch", ToolSessionsSpawn, ToolSkillMemoryWrite}
	if !reflect.DeepEqual(p.Allow, want) {
		t.Errorf("allow = %v, want %v", p.Allow, want)
	}
	for _, ref := range p.Allow {
		if ref == "group:memory" || ref == "group:web" {
			t.Errorf("scope defaults leaked past an explicit override: %v", p.Allow)
		}
	}
}

func TestResolveSkillPolicy_ScopeDefaultsWhenNoOverride(t *testing.T) {
	p := ResolveSkillPolicy(Permissions{
		Scope:      ScopeReadWrite,
		Delegation: DelegationAny,
	})

	if p == nil {
		t.Fatal("expected a policy")
	}
	want := []string{"group:fs", "group:memory", "group:web", "image", ToolSessionsSpawn, ToolSkillMemoryWrite}
	if !reflect.DeepEqual(p.Allow, want) {
		t.Errorf("allow = %v, want %v", p.Allow, want)
	}
}

func TestResolveSkillPolicy_DelegationNoneDropsSpawn(t *testing.T) {
	p := ResolveSkillPolicy(Permissions{
		Scope:      ScopeWorkspace,
		Delegation: DelegationNone,
	})

	if p == nil {
		t.Fatal("expected a policy")
	}
	for _, ref := range p.Allow {
		if ref == ToolSessionsSpawn {
			t.Errorf("delegation none must not add sessions_spawn: %v", p.Allow)
		}
	}
}

func TestResolveSkillPolicy_CustomWithOverride(t *testing.T) {
	p := ResolveSkillPolicy(Permissions{
		Scope:      ScopeCustom,
		Delegation: DelegationOpus,
		Tools:      &ToolFilter{Allow: []string{"deploy", "rollback"}},
	})

	if p == nil {
		t.Fatal("custom scope with an explicit allow list is bounded")
	}
	want := []string{"deploy", "rollback", ToolSessionsSpawn, ToolSkillMemoryWrite}
	if !reflect.DeepEqual(p.Allow, want) {
		t.Errorf("allow = %v, want %v", p.Allow, want)
	}
}

func TestResolveSkillPolicy_DenyPassesThroughUnexpanded(t *testing.T) {
	p := ResolveSkillPolicy(Permissions{
		Scope: ScopeWorkspace,
		Tools: &ToolFilter{Deny: []string{"group:web", "exec"}},
	})

	if p == nil {
		t.Fatal("expected a policy")
	}
	if !reflect.DeepEqual(p.Deny, []string{"group:web", "exec"}) {
		t.Errorf("deny = %v, want the literal references unchanged", p.Deny)
	}
}

func TestResolveSkillPolicy_EmptyOverridePermitsOnlyAdditions(t *testing.T) {
	p := ResolveSkillPolicy(Permissions{
		Scope:      ScopeFull,
		Delegation: DelegationNone,
		Tools:      &ToolFilter{Allow: []string{}},
	})

	// An explicit empty allow bounds even a full-scope skill.
	if p == nil {
		t.Fatal("explicit empty allow must produce a policy")
	}
	if !reflect.DeepEqual(p.Allow, []string{ToolSkillMemoryWrite}) {
		t.Errorf("allow = %v, want [skill_memory_write]", p.Allow)
	}
}

func TestResolveSkillPolicy_DoesNotMutateInput(t *testing.T) {
	filter := &ToolFilter{Allow: []string{"web_fetch"}}
	perms := Permissions{Scope: ScopeReadOnly, Tools: filter}

	ResolveSkillPolicy(perms)

	if !reflect.DeepEqual(filter.Allow, []string{"web_fetch"}) {
		t.Errorf("resolver mutated the caller's allow slice: %v", filter.Allow)
	}
}
