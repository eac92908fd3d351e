package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/triage-ai/corral/internal/policy"
)

// SkillStore abstracts DB queries for testability.
type SkillStore interface {
	LookupSkill(ctx context.Context, workspaceID, name string) (*skillRow, error)
	ListSkills(ctx context.Context, workspaceID string) ([]*skillRow, error)
	UpsertSkill(ctx context.Context, row *skillRow) error
	DeleteSkill(ctx context.Context, workspaceID, name string) (bool, error)
}

type skillRow struct {
	WorkspaceID string
	Name        string
	Description sql.NullString
	Permissions string // JSONB as string
	Enabled     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// sqlSkillStore is the real implementation using *sql.DB.
type sqlSkillStore struct {
	db *sql.DB
}

func (s *sqlSkillStore) LookupSkill(ctx context.Context, workspaceID, name string) (*skillRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT workspace_id, name, description, permissions, enabled, created_at, updated_at
		FROM skills
		WHERE workspace_id = $1 AND name = $2
	`, workspaceID, name)

	var r skillRow
	if err := row.Scan(
		&r.WorkspaceID, &r.Name, &r.Description, &r.Permissions,
		&r.Enabled, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *sqlSkillStore) ListSkills(ctx context.Context, workspaceID string) ([]*skillRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT workspace_id, name, description, permissions, enabled, created_at, updated_at
		FROM skills
		WHERE workspace_id = $1
		ORDER BY name
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*skillRow
	for rows.Next() {
		var r skillRow
		if err := rows.Scan(
			&r.WorkspaceID, &r.Name, &r.Description, &r.Permissions,
			&r.Enabled, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *sqlSkillStore) UpsertSkill(ctx context.Context, row *skillRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO skills (workspace_id, name, description, permissions, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (workspace_id, name)
		DO UPDATE SET description = EXCLUDED.description,
		              permissions = EXCLUDED.permissions,
		              enabled = EXCLUDED.enabled,
		              updated_at = NOW()
	`, row.WorkspaceID, row.Name, row.Description, row.Permissions, row.Enabled)
	return err
}

func (s *sqlSkillStore) DeleteSkill(ctx context.Context, workspaceID, name string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM skills WHERE workspace_id = $1 AND name = $2
	`, workspaceID, name)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// PostgresSkillRegistry serves skill manifests from the skills table through
// a stale-while-revalidate cache.
type PostgresSkillRegistry struct {
	store  SkillStore
	cache  *SkillCache
	logger *zap.Logger
}

// PostgresSkillRegistryConfig configures the PostgresSkillRegistry.
type PostgresSkillRegistryConfig struct {
	DB       *sql.DB
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// NewPostgresSkillRegistry creates a new PostgresSkillRegistry.
func NewPostgresSkillRegistry(cfg PostgresSkillRegistryConfig) *PostgresSkillRegistry {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 60 * time.Second
	}
	return &PostgresSkillRegistry{
		store:  &sqlSkillStore{db: cfg.DB},
		cache:  NewSkillCache(ttl),
		logger: cfg.Logger,
	}
}

// newPostgresSkillRegistryWithStore creates a registry with a custom store (for testing).
func newPostgresSkillRegistryWithStore(store SkillStore, cacheTTL time.Duration, logger *zap.Logger) *PostgresSkillRegistry {
	if cacheTTL == 0 {
		cacheTTL = 60 * time.Second
	}
	return &PostgresSkillRegistry{
		store:  store,
		cache:  NewSkillCache(cacheTTL),
		logger: logger,
	}
}

func (r *PostgresSkillRegistry) GetSkill(ctx context.Context, workspaceID, name string) (*Skill, error) {
	// Check cache
	cacheResult := r.cache.Get(workspaceID, name)
	if cacheResult.Hit {
		if cacheResult.NeedsRefresh {
			go r.refreshInBackground(workspaceID, name)
		}
		return cacheResult.Skill, nil
	}

	// Cache miss — fetch from DB
	skill, err := r.fetchFromDB(ctx, workspaceID, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Negative cache: skill not registered
			r.cache.Set(workspaceID, name, nil)
			return nil, nil
		}
		return nil, fmt.Errorf("GetSkill: %w", err)
	}

	r.cache.Set(workspaceID, name, skill)
	return skill, nil
}

func (r *PostgresSkillRegistry) ListSkills(ctx context.Context, workspaceID string) ([]Skill, error) {
	rows, err := r.store.ListSkills(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("ListSkills: %w", err)
	}
	out := make([]Skill, 0, len(rows))
	for _, row := range rows {
		out = append(out, *parseSkillRow(row))
	}
	return out, nil
}

func (r *PostgresSkillRegistry) PutSkill(ctx context.Context, skill Skill) error {
	row := &skillRow{
		WorkspaceID: skill.WorkspaceID,
		Name:        skill.Name,
		Permissions: string(skill.Raw),
		Enabled:     skill.Enabled,
	}
	if row.Permissions == "" {
		row.Permissions = "{}"
	}
	if skill.Description != "" {
		row.Description = sql.NullString{String: skill.Description, Valid: true}
	}
	if err := r.store.UpsertSkill(ctx, row); err != nil {
		return fmt.Errorf("PutSkill: %w", err)
	}
	r.cache.Delete(skill.WorkspaceID, skill.Name)
	return nil
}

func (r *PostgresSkillRegistry) DeleteSkill(ctx context.Context, workspaceID, name string) error {
	deleted, err := r.store.DeleteSkill(ctx, workspaceID, name)
	if err != nil {
		return fmt.Errorf("DeleteSkill: %w", err)
	}
	if !deleted {
		return ErrSkillNotFound
	}
	r.cache.Delete(workspaceID, name)
	return nil
}

func (r *PostgresSkillRegistry) fetchFromDB(ctx context.Context, workspaceID, name string) (*Skill, error) {
	row, err := r.store.LookupSkill(ctx, workspaceID, name)
	if err != nil {
		return nil, err
	}
	return parseSkillRow(row), nil
}

func (r *PostgresSkillRegistry) refreshInBackground(workspaceID, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	skill, err := r.fetchFromDB(ctx, workspaceID, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.cache.Set(workspaceID, name, nil)
			return
		}
		r.logger.Warn("background skill registry refresh failed",
			zap.String("workspace_id", workspaceID),
			zap.String("skill", name),
			zap.Error(err),
		)
		return
	}
	r.cache.Set(workspaceID, name, skill)
}

// parseSkillRow converts a DB row into a Skill. Permission parsing never
// fails: malformed or unrecognized manifest values fall back to the safe
// defaults.
func parseSkillRow(row *skillRow) *Skill {
	skill := &Skill{
		WorkspaceID: row.WorkspaceID,
		Name:        row.Name,
		Raw:         []byte(row.Permissions),
		Permissions: policy.ParsePermissions([]byte(row.Permissions)),
		Enabled:     row.Enabled,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.Description.Valid {
		skill.Description = row.Description.String
	}
	return skill
}
