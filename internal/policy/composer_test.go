package policy

import (
	"reflect"
	"testing"

	"github.com/triage-ai/corral/internal/catalog"
)

func TestCompose_NoLayers(t *testing.T) {
	cat := catalog.Default()

	got := Compose(cat, nil)
	if !got.IsZero() {
		t.Errorf("composing nothing should yield no restriction, got %+v", got)
	}

	got = Compose(cat, []*ToolPolicy{nil, nil})
	if !got.IsZero() {
		t.Errorf("all-nil layers should yield no restriction, got %+v", got)
	}
}

func TestCompose_IntersectionOfExpandedAllows(t *testing.T) {
	cat := catalog.Default()

	got := Compose(cat, []*ToolPolicy{
		{Allow: []string{"group:fs", "group:web"}},
		{Allow: []string{"read", "write", "web_search"}},
	})

	want := []string{"read", "web_search", "write"}
	if !reflect.DeepEqual(got.Allow, want) {
		t.Errorf("allow = %v, want %v (edit, apply_patch, web_fetch excluded)", got.Allow, want)
	}
}

func TestCompose_IntersectionEqualsPairwise(t *testing.T) {
	cat := catalog.Default()
	l1 := &ToolPolicy{Allow: []string{"group:fs", "image"}}
	l2 := &ToolPolicy{Allow: []string{"group:fs", "group:web"}}

	composed := Compose(cat, []*ToolPolicy{l1, l2})

	e1 := cat.Expand(l1.Allow)
	e2 := cat.Expand(l2.Allow)
	want := make(map[string]struct{})
	for name := range e1 {
		if _, ok := e2[name]; ok {
			want[name] = struct{}{}
		}
	}

	if len(composed.Allow) != len(want) {
		t.Fatalf("composed allow %v does not match pairwise intersection %v", composed.Allow, want)
	}
	for _, name := range composed.Allow {
		if _, ok := want[name]; !ok {
			t.Errorf("composed allow contains %q outside the pairwise intersection", name)
		}
	}
}

func TestCompose_EmptyAllowIsAbsorbing(t *testing.T) {
	cat := catalog.Default()

	got := Compose(cat, []*ToolPolicy{
		{Allow: []string{}},
		{Allow: []string{"read"}},
	})

	if got.Allow == nil {
		t.Fatal("allow must be present (empty), not absent")
	}
	if len(got.Allow) != 0 {
		t.Errorf("empty allow layer must force an empty intersection, got %v", got.Allow)
	}
}

func TestCompose_NilLayersNeverRestrict(t *testing.T) {
	cat := catalog.Default()

	got := Compose(cat, []*ToolPolicy{nil, {Allow: []string{"read"}}})

	if !reflect.DeepEqual(got.Allow, []string{"read"}) {
		t.Errorf("allow = %v, want [read]", got.Allow)
	}
}

func TestCompose_AbsentAllowSitsOutOfIntersection(t *testing.T) {
	cat := catalog.Default()

	// The deny-only layer must not shrink the intersection.
	got := Compose(cat, []*ToolPolicy{
		{Deny: []string{"exec"}},
		{Allow: []string{"group:web"}},
	})

	want := []string{"web_fetch", "web_search"}
	if !reflect.DeepEqual(got.Allow, want) {
		t.Errorf("allow = %v, want %v", got.Allow, want)
	}
	if !reflect.DeepEqual(got.Deny, []string{"exec"}) {
		t.Errorf("deny = %v, want [exec]", got.Deny)
	}
}

func TestCompose_DenyUnionDeduplicates(t *testing.T) {
	cat := catalog.Default()

	got := Compose(cat, []*ToolPolicy{
		{Deny: []string{"exec"}},
		{Deny: []string{"exec"}},
	})

	if !reflect.DeepEqual(got.Deny, []string{"exec"}) {
		t.Errorf("deny = %v, want [exec] with no duplicates", got.Deny)
	}
}

func TestCompose_DenyStaysLiteral(t *testing.T) {
	cat := catalog.Default()

	got := Compose(cat, []*ToolPolicy{
		{Deny: []string{"group:fs", "exec"}},
		{Deny: []string{"group:web"}},
	})

	want := []string{"group:fs", "exec", "group:web"}
	if !reflect.DeepEqual(got.Deny, want) {
		t.Errorf("deny = %v, want literal refs in first-seen order %v", got.Deny, want)
	}
}

func TestCompose_NoAllowMeansAbsent(t *testing.T) {
	cat := catalog.Default()

	got := Compose(cat, []*ToolPolicy{{Deny: []string{"exec"}}})

	if got.Allow != nil {
		t.Errorf("no layer specified allow, composed allow must be absent, got %v", got.Allow)
	}
}

func TestCompose_SortedDeterministicAllow(t *testing.T) {
	cat := catalog.Default()
	layers := []*ToolPolicy{{Allow: []string{"group:fs", "image", "exec"}}}

	first := Compose(cat, layers)
	for i := 0; i < 10; i++ {
		if got := Compose(cat, layers); !reflect.DeepEqual(got.Allow, first.Allow) {
			t.Fatalf("composition order unstable: %v vs %v", got.Allow, first.Allow)
		}
	}
}

func TestCompose_ThreeLayerSessionShape(t *testing.T) {
	cat := catalog.Default()

	base := &ToolPolicy{Deny: []string{"deploy"}}
	tierLayer := &ToolPolicy{Deny: []string{"exec"}}
	skill := ResolveSkillPolicy(Permissions{Scope: ScopeReadOnly, Delegation: DelegationOpus})

	got := Compose(cat, []*ToolPolicy{base, tierLayer, skill})

	want := []string{"memory_get", "memory_search", "sessions_spawn", "skill_memory_write", "web_fetch", "web_search"}
	if !reflect.DeepEqual(got.Allow, want) {
		t.Errorf("allow = %v, want %v", got.Allow, want)
	}
	if !reflect.DeepEqual(got.Deny, []string{"deploy", "exec"}) {
		t.Errorf("deny = %v, want [deploy exec]", got.Deny)
	}
}

func TestPermits_DenyWins(t *testing.T) {
	cat := catalog.Default()
	p := ToolPolicy{Allow: []string{"exec", "read"}, Deny: []string{"exec"}}

	ok, reason := Permits(cat, p, "exec")
	if ok || reason != ReasonDenied {
		t.Errorf("Permits(exec) = (%v, %q), want (false, denied)", ok, reason)
	}
}

func TestPermits_DenyGroupsExpandAtDispatch(t *testing.T) {
	cat := catalog.Default()
	p := ToolPolicy{Deny: []string{"group:fs"}}

	ok, reason := Permits(cat, p, "apply-patch")
	if ok || reason != ReasonDenied {
		t.Errorf("deny group:fs must block apply_patch at dispatch, got (%v, %q)", ok, reason)
	}
}

func TestPermits_NotInAllow(t *testing.T) {
	cat := catalog.Default()
	p := ToolPolicy{Allow: []string{"group:web"}}

	ok, reason := Permits(cat, p, "read")
	if ok || reason != ReasonNotInAllow {
		t.Errorf("Permits(read) = (%v, %q), want (false, not_in_allow)", ok, reason)
	}
}

func TestPermits_NoRestriction(t *testing.T) {
	cat := catalog.Default()

	ok, reason := Permits(cat, ToolPolicy{}, "anything_at_all")
	if !ok || reason != "" {
		t.Errorf("zero policy must permit everything, got (%v, %q)", ok, reason)
	}
}

func TestPermits_AliasNormalizedBeforeCheck(t *testing.T) {
	cat := catalog.Default()
	p := ToolPolicy{Allow: []string{"exec"}}

	ok, _ := Permits(cat, p, "bash")
	if !ok {
		t.Error("bash aliases to exec and must be permitted")
	}
}

func BenchmarkCompose(b *testing.B) {
	cat := catalog.Default()
	layers := []*ToolPolicy{
		{Deny: []string{"deploy"}},
		{Deny: []string{"exec"}},
		{Allow: []string{"group:fs", "group:memory", "group:web", "image", "sessions_spawn", "skill_memory_write"}},
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Compose(cat, layers)
	}
}
