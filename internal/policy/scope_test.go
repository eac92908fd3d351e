package policy

import (
	"reflect"
	"testing"
)

func TestScope_Ordering(t *testing.T) {
	ordered := []Scope{ScopeConversationOnly, ScopeReadOnly, ScopeWorkspace, ScopeReadWrite, ScopeFull}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Order() >= ordered[i].Order() {
			t.Errorf("expected %v < %v in scope order", ordered[i-1], ordered[i])
		}
	}
}

func TestScope_CustomRanksEqualToFull(t *testing.T) {
	if ScopeCustom.Order() != ScopeFull.Order() {
		t.Errorf("custom order %d != full order %d", ScopeCustom.Order(), ScopeFull.Order())
	}
}

func TestParseScope(t *testing.T) {
	tests := []struct {
		in   string
		want Scope
		ok   bool
	}{
		{"conversation-only", ScopeConversationOnly, true},
		{"read-only", ScopeReadOnly, true},
		{"READ-ONLY", ScopeReadOnly, true},
		{"read_only", ScopeReadOnly, true},
		{" workspace ", ScopeWorkspace, true},
		{"read-write", ScopeReadWrite, true},
		{"full", ScopeFull, true},
		{"custom", ScopeCustom, true},
		{"", ScopeConversationOnly, false},
		{"admin", ScopeConversationOnly, false},
		{"fullest", ScopeConversationOnly, false},
	}

	for _, tt := range tests {
		got, ok := ParseScope(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseScope(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDefaultGroupsFor_BoundedScopes(t *testing.T) {
	tests := []struct {
		scope Scope
		want  []string
	}{
		{ScopeConversationOnly, []string{}},
		{ScopeReadOnly, []string{"group:memory", "group:web"}},
		{ScopeWorkspace, []string{"group:fs", "group:web", "image"}},
		{ScopeReadWrite, []string{"group:fs", "group:memory", "group:web", "image"}},
	}

	for _, tt := range tests {
		got := DefaultGroupsFor(tt.scope)
		if got == nil {
			t.Errorf("DefaultGroupsFor(%v) = nil, want %v", tt.scope, tt.want)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("DefaultGroupsFor(%v) = %v, want %v", tt.scope, got, tt.want)
		}
	}
}

func TestDefaultGroupsFor_UnboundedScopes(t *testing.T) {
	if got := DefaultGroupsFor(ScopeFull); got != nil {
		t.Errorf("DefaultGroupsFor(full) = %v, want nil", got)
	}
	if got := DefaultGroupsFor(ScopeCustom); got != nil {
		t.Errorf("DefaultGroupsFor(custom) = %v, want nil", got)
	}
}

func TestDefaultGroupsFor_ReturnsCopy(t *testing.T) {
	first := DefaultGroupsFor(ScopeReadOnly)
	first[0] = "mutated"

	second := DefaultGroupsFor(ScopeReadOnly)
	if second[0] != "group:memory" {
		t.Error("DefaultGroupsFor returned a shared slice; callers must get copies")
	}
}
