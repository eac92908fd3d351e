package catalog

import (
	"sync"
	"testing"
)

func setOf(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func TestExpand_Group(t *testing.T) {
	c := Default()

	got := c.Expand([]string{"group:fs"})
	want := setOf("read", "write", "edit", "apply_patch")
	if !setsEqual(got, want) {
		t.Errorf("group:fs expansion = %v, want %v", got, want)
	}
}

func TestExpand_NestedGroups(t *testing.T) {
	c := Default()

	got := c.Expand([]string{"group:all"})
	for _, name := range []string{"read", "write", "edit", "apply_patch", "web_search", "web_fetch", "memory_search", "memory_get", "sessions_spawn", "sessions_list", "exec", "image", "skill_memory_write"} {
		if _, ok := got[name]; !ok {
			t.Errorf("group:all expansion missing %q", name)
		}
	}
}

func TestExpand_CycleTermination(t *testing.T) {
	c := New(Config{
		Tools: []string{"read", "write"},
		Groups: map[string][]string{
			"group:a":    {"read", "group:b"},
			"group:b":    {"write", "group:a"},
			"group:self": {"group:self", "read"},
		},
	})

	got := c.Expand([]string{"group:a"})
	want := setOf("read", "write")
	if !setsEqual(got, want) {
		t.Errorf("mutually recursive expansion = %v, want %v", got, want)
	}

	got = c.Expand([]string{"group:self"})
	want = setOf("read")
	if !setsEqual(got, want) {
		t.Errorf("self-referential expansion = %v, want %v", got, want)
	}
}

func TestExpand_UnknownPassThrough(t *testing.T) {
	c := Default()

	got := c.Expand([]string{"deploy", "Some-New-Tool", "group:nope"})
	want := setOf("deploy", "some_new_tool", "group:nope")
	if !setsEqual(got, want) {
		t.Errorf("unknown refs = %v, want pass-through %v", got, want)
	}
}

func TestExpand_Dedup(t *testing.T) {
	c := Default()

	got := c.Expand([]string{"read", "read", "group:fs", "READ", "apply-patch"})
	want := setOf("read", "write", "edit", "apply_patch")
	if !setsEqual(got, want) {
		t.Errorf("deduped expansion = %v, want %v", got, want)
	}
}

func TestExpand_Idempotence(t *testing.T) {
	c := Default()

	refs := []string{"group:fs", "group:web", "bash", "image"}
	first := c.ExpandList(refs)
	second := c.Expand(first)

	if !setsEqual(c.Expand(refs), second) {
		t.Errorf("re-expanding an expanded set changed it: %v vs %v", c.Expand(refs), second)
	}
}

func TestExpand_EmptyAndBlankRefs(t *testing.T) {
	c := Default()

	if got := c.Expand(nil); len(got) != 0 {
		t.Errorf("expected empty set for nil refs, got %v", got)
	}
	if got := c.Expand([]string{"", "   "}); len(got) != 0 {
		t.Errorf("expected blank refs to contribute nothing, got %v", got)
	}
}

func TestNormalize_Aliases(t *testing.T) {
	c := Default()

	tests := []struct {
		in   string
		want string
	}{
		{"read", "read"},
		{"READ", "read"},
		{"Apply-Patch", "apply_patch"},
		{"apply patch", "apply_patch"},
		{"patch", "apply_patch"},
		{"bash", "exec"},
		{"  Shell  ", "exec"},
		{"WebSearch", "web_search"},
		{"web-fetch", "web_fetch"},
		{"Group:FS", "group:fs"},
		{"unknown-tool", "unknown_tool"},
	}

	for _, tt := range tests {
		if got := c.Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestContains(t *testing.T) {
	c := Default()

	if !c.Contains([]string{"group:fs"}, "Apply-Patch") {
		t.Error("expected group:fs to contain apply_patch via alias")
	}
	if c.Contains([]string{"group:web"}, "read") {
		t.Error("did not expect group:web to contain read")
	}
}

func TestMerge_Overrides(t *testing.T) {
	c := Default().Merge(Config{
		Tools:   []string{"deploy"},
		Aliases: map[string]string{"ship": "deploy"},
		Groups: map[string][]string{
			"release":   {"deploy"},
			"group:web": {"web_fetch"},
		},
	})

	if !c.IsCanonical("deploy") {
		t.Error("merged tool not canonical")
	}
	if got := c.Normalize("ship"); got != "deploy" {
		t.Errorf("merged alias = %q, want deploy", got)
	}

	// Unprefixed group keys gain the prefix.
	if !c.IsGroup("release") || !c.IsGroup("group:release") {
		t.Error("merged group not defined under its prefixed key")
	}
	got := c.Expand([]string{"group:release"})
	if !setsEqual(got, setOf("deploy")) {
		t.Errorf("merged group expansion = %v, want {deploy}", got)
	}

	// Same-named groups replace the built-in definition.
	got = c.Expand([]string{"group:web"})
	if !setsEqual(got, setOf("web_fetch")) {
		t.Errorf("replaced group expansion = %v, want {web_fetch}", got)
	}

	// The original catalog keeps its definition.
	orig := Default().Expand([]string{"group:web"})
	if !setsEqual(orig, setOf("web_search", "web_fetch")) {
		t.Errorf("Merge mutated the receiver: %v", orig)
	}
}

func TestCatalog_ConcurrentReads(t *testing.T) {
	c := Default()
	refs := []string{"group:all", "bash", "group:fs"}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if got := c.Expand(refs); len(got) == 0 {
					t.Error("concurrent expansion returned empty set")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func BenchmarkExpand(b *testing.B) {
	c := Default()
	refs := []string{"group:fs", "group:web", "group:memory", "bash", "image", "unknown_tool"}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		c.Expand(refs)
	}
}
