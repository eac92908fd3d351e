package registry

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/triage-ai/corral/internal/policy"
)

// mockSkillStore is a test helper.
type mockSkillStore struct {
	row       *skillRow
	err       error
	callCount int
	deleted   bool
}

func (m *mockSkillStore) LookupSkill(_ context.Context, _, _ string) (*skillRow, error) {
	m.callCount++
	if m.err != nil {
		return nil, m.err
	}
	return m.row, nil
}

func (m *mockSkillStore) ListSkills(_ context.Context, _ string) ([]*skillRow, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.row == nil {
		return nil, nil
	}
	return []*skillRow{m.row}, nil
}

func (m *mockSkillStore) UpsertSkill(_ context.Context, _ *skillRow) error {
	return m.err
}

func (m *mockSkillStore) DeleteSkill(_ context.Context, _, _ string) (bool, error) {
	return m.deleted, m.err
}

func TestPostgresRegistry_CacheHit(t *testing.T) {
	store := &mockSkillStore{
		row: &skillRow{
			WorkspaceID: "ws-1",
			Name:        "research",
			Permissions: `{"scope":"read-only"}`,
			Enabled:     true,
		},
	}
	reg := newPostgresSkillRegistryWithStore(store, 30*time.Second, zap.NewNop())

	// First call — cache miss
	skill, err := reg.GetSkill(context.Background(), "ws-1", "research")
	if err != nil {
		t.Fatal(err)
	}
	if skill.Name != "research" {
		t.Fatalf("expected research, got %s", skill.Name)
	}
	if skill.Permissions.Scope != policy.ScopeReadOnly {
		t.Fatalf("expected parsed read-only scope, got %v", skill.Permissions.Scope)
	}
	if store.callCount != 1 {
		t.Fatalf("expected 1 DB call, got %d", store.callCount)
	}

	// Second call — cache hit
	skill, err = reg.GetSkill(context.Background(), "ws-1", "research")
	if err != nil {
		t.Fatal(err)
	}
	if skill.Name != "research" {
		t.Fatalf("expected research, got %s", skill.Name)
	}
	if store.callCount != 1 {
		t.Fatalf("expected still 1 DB call (cache hit), got %d", store.callCount)
	}
}

func TestPostgresRegistry_SkillNotFound(t *testing.T) {
	store := &mockSkillStore{err: sql.ErrNoRows}
	reg := newPostgresSkillRegistryWithStore(store, 30*time.Second, zap.NewNop())

	skill, err := reg.GetSkill(context.Background(), "ws-1", "nonexistent")
	if err != nil {
		t.Fatal(err)
	}
	if skill != nil {
		t.Fatal("expected nil for unregistered skill")
	}
}

func TestPostgresRegistry_NegativeCache(t *testing.T) {
	store := &mockSkillStore{err: sql.ErrNoRows}
	reg := newPostgresSkillRegistryWithStore(store, 30*time.Second, zap.NewNop())

	// First call — DB miss
	skill, _ := reg.GetSkill(context.Background(), "ws-1", "nonexistent")
	if skill != nil {
		t.Fatal("expected nil")
	}
	if store.callCount != 1 {
		t.Fatalf("expected 1 DB call, got %d", store.callCount)
	}

	// Second call — negative cache hit (no DB call)
	skill, _ = reg.GetSkill(context.Background(), "ws-1", "nonexistent")
	if skill != nil {
		t.Fatal("expected nil from negative cache")
	}
	if store.callCount != 1 {
		t.Fatalf("expected still 1 DB call (negative cache hit), got %d", store.callCount)
	}
}

func TestPostgresRegistry_MalformedManifestFallsBack(t *testing.T) {
	store := &mockSkillStore{
		row: &skillRow{
			WorkspaceID: "ws-1",
			Name:        "broken",
			Permissions: `{"scope": "read-`,
			Enabled:     true,
		},
	}
	reg := newPostgresSkillRegistryWithStore(store, 30*time.Second, zap.NewNop())

	skill, err := reg.GetSkill(context.Background(), "ws-1", "broken")
	if err != nil {
		t.Fatal(err)
	}
	if skill.Permissions.Scope != policy.ScopeConversationOnly {
		t.Errorf("malformed manifest must fall back to conversation-only, got %v", skill.Permissions.Scope)
	}
	if skill.Permissions.Delegation != policy.DelegationOpus {
		t.Errorf("malformed manifest must fall back to opus, got %v", skill.Permissions.Delegation)
	}
}

func TestPostgresRegistry_DBError(t *testing.T) {
	store := &mockSkillStore{err: context.DeadlineExceeded}
	reg := newPostgresSkillRegistryWithStore(store, 30*time.Second, zap.NewNop())

	_, err := reg.GetSkill(context.Background(), "ws-1", "skill")
	if err == nil {
		t.Fatal("expected error on DB failure")
	}
}

func TestPostgresRegistry_DeleteMissReturnsSentinel(t *testing.T) {
	store := &mockSkillStore{deleted: false}
	reg := newPostgresSkillRegistryWithStore(store, 30*time.Second, zap.NewNop())

	err := reg.DeleteSkill(context.Background(), "ws-1", "ghost")
	if err != ErrSkillNotFound {
		t.Fatalf("expected ErrSkillNotFound, got %v", err)
	}
}

func TestPostgresRegistry_PutInvalidatesCache(t *testing.T) {
	store := &mockSkillStore{
		row: &skillRow{
			WorkspaceID: "ws-1",
			Name:        "research",
			Permissions: `{"scope":"read-only"}`,
			Enabled:     true,
		},
	}
	reg := newPostgresSkillRegistryWithStore(store, 30*time.Second, zap.NewNop())

	if _, err := reg.GetSkill(context.Background(), "ws-1", "research"); err != nil {
		t.Fatal(err)
	}
	if err := reg.PutSkill(context.Background(), Skill{WorkspaceID: "ws-1", Name: "research", Raw: []byte(`{"scope":"workspace"}`), Enabled: true}); err != nil {
		t.Fatal(err)
	}

	// The next read must go back to the store, not the stale cache entry.
	if _, err := reg.GetSkill(context.Background(), "ws-1", "research"); err != nil {
		t.Fatal(err)
	}
	if store.callCount != 2 {
		t.Fatalf("expected cache invalidation to force a second DB call, got %d", store.callCount)
	}
}

func TestMemoryRegistry_RoundTrip(t *testing.T) {
	reg := NewMemorySkillRegistry()
	ctx := context.Background()

	err := reg.PutSkill(ctx, Skill{
		WorkspaceID: "ws-1",
		Name:        "research",
		Raw:         []byte(`{"scope":"read-only"}`),
		Permissions: policy.ParsePermissions([]byte(`{"scope":"read-only"}`)),
		Enabled:     true,
	})
	if err != nil {
		t.Fatal(err)
	}

	skill, err := reg.GetSkill(ctx, "ws-1", "research")
	if err != nil {
		t.Fatal(err)
	}
	if skill == nil || skill.Permissions.Scope != policy.ScopeReadOnly {
		t.Fatalf("unexpected skill: %+v", skill)
	}

	skills, err := reg.ListSkills(ctx, "ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(skills) != 1 {
		t.Fatalf("expected 1 skill, got %d", len(skills))
	}

	if err := reg.DeleteSkill(ctx, "ws-1", "research"); err != nil {
		t.Fatal(err)
	}
	if err := reg.DeleteSkill(ctx, "ws-1", "research"); err != ErrSkillNotFound {
		t.Fatalf("expected ErrSkillNotFound on double delete, got %v", err)
	}
}
