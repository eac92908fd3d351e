package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/triage-ai/corral/internal/policy"
)

// Workspace represents a row in the workspaces table. AdminIdentities and
// TrustedIdentities hold the membership lists consulted during tier
// resolution; BasePolicy is the workspace-wide layer composed into every
// session policy, nil when the workspace has not set one.
type Workspace struct {
	ID                string
	Name              string
	APIKeyHash        string
	APIKeyPrefix      string
	Enabled           bool
	AdminIdentities   []string
	TrustedIdentities []string
	BasePolicy        *policy.ToolPolicy
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// UpdateConfigParams holds optional fields for partial workspace config
// updates. Only non-nil fields are changed. BasePolicy is raw JSON so callers
// can pass the literal `null` to clear the workspace layer.
type UpdateConfigParams struct {
	AdminIdentities   *[]string
	TrustedIdentities *[]string
	BasePolicy        *json.RawMessage
	Enabled           *bool
}

// workspaceRow carries the JSONB columns in raw form between Scan and decode.
type workspaceRow struct {
	Workspace
	adminsRaw  json.RawMessage
	trustedRaw json.RawMessage
	policyRaw  json.RawMessage
}

// GenerateAPIKey creates a new crk_ API key with its bcrypt hash and prefix.
// Returns (fullKey, hash, prefix, error). The fullKey is shown to the user once.
func GenerateAPIKey() (string, string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", "", fmt.Errorf("GenerateAPIKey: %w", err)
	}
	fullKey := "crk_" + hex.EncodeToString(raw) // 68 chars total

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(fullKey), bcrypt.DefaultCost)
	if err != nil {
		return "", "", "", fmt.Errorf("GenerateAPIKey: %w", err)
	}

	prefix := fullKey[:8] // "crk_abcd"
	return fullKey, string(hashBytes), prefix, nil
}

// CreateWorkspace inserts a new workspace with empty membership lists and no
// base policy. Returns the workspace and plaintext API key (shown once).
func (s *Store) CreateWorkspace(ctx context.Context, name string) (*Workspace, string, error) {
	fullKey, keyHash, keyPrefix, err := GenerateAPIKey()
	if err != nil {
		return nil, "", fmt.Errorf("CreateWorkspace: %w", err)
	}

	var row workspaceRow
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO workspaces (name, api_key_hash, api_key_prefix)
		VALUES ($1, $2, $3)
		RETURNING id, name, api_key_hash, api_key_prefix, enabled,
		          COALESCE(admin_identities, '[]'::jsonb),
		          COALESCE(trusted_identities, '[]'::jsonb),
		          COALESCE(base_policy, 'null'::jsonb),
		          created_at, updated_at`,
		name, keyHash, keyPrefix,
	).Scan(&row.ID, &row.Name, &row.APIKeyHash, &row.APIKeyPrefix, &row.Enabled,
		&row.adminsRaw, &row.trustedRaw, &row.policyRaw, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("CreateWorkspace: %w", err)
	}

	w, err := parseWorkspaceRow(row)
	if err != nil {
		return nil, "", fmt.Errorf("CreateWorkspace: %w", err)
	}
	return w, fullKey, nil
}

// ListWorkspaces returns all workspaces ordered by created_at DESC.
func (s *Store) ListWorkspaces(ctx context.Context) ([]*Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, api_key_hash, api_key_prefix, enabled,
		       COALESCE(admin_identities, '[]'::jsonb),
		       COALESCE(trusted_identities, '[]'::jsonb),
		       COALESCE(base_policy, 'null'::jsonb),
		       created_at, updated_at
		FROM workspaces ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("ListWorkspaces: %w", err)
	}
	defer rows.Close()

	var workspaces []*Workspace
	for rows.Next() {
		var row workspaceRow
		if err := rows.Scan(&row.ID, &row.Name, &row.APIKeyHash, &row.APIKeyPrefix,
			&row.Enabled, &row.adminsRaw, &row.trustedRaw, &row.policyRaw,
			&row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ListWorkspaces: %w", err)
		}
		w, err := parseWorkspaceRow(row)
		if err != nil {
			return nil, fmt.Errorf("ListWorkspaces: %w", err)
		}
		workspaces = append(workspaces, w)
	}
	return workspaces, rows.Err()
}

// GetWorkspace returns a workspace by ID, or nil if not found.
func (s *Store) GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	var row workspaceRow
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, api_key_hash, api_key_prefix, enabled,
		       COALESCE(admin_identities, '[]'::jsonb),
		       COALESCE(trusted_identities, '[]'::jsonb),
		       COALESCE(base_policy, 'null'::jsonb),
		       created_at, updated_at
		FROM workspaces WHERE id = $1`, id,
	).Scan(&row.ID, &row.Name, &row.APIKeyHash, &row.APIKeyPrefix, &row.Enabled,
		&row.adminsRaw, &row.trustedRaw, &row.policyRaw, &row.CreatedAt, &row.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetWorkspace: %w", err)
	}
	w, err := parseWorkspaceRow(row)
	if err != nil {
		return nil, fmt.Errorf("GetWorkspace: %w", err)
	}
	return w, nil
}

// UpdateConfig applies a partial update to a workspace's trust configuration.
// Only non-nil fields are changed. Returns the updated workspace, or nil if
// the workspace does not exist.
func (s *Store) UpdateConfig(ctx context.Context, id string, params UpdateConfigParams) (*Workspace, error) {
	admins, err := nullableStrings(params.AdminIdentities)
	if err != nil {
		return nil, fmt.Errorf("UpdateConfig: %w", err)
	}
	trusted, err := nullableStrings(params.TrustedIdentities)
	if err != nil {
		return nil, fmt.Errorf("UpdateConfig: %w", err)
	}

	var row workspaceRow
	err = s.db.QueryRowContext(ctx, `
		UPDATE workspaces SET
			admin_identities   = COALESCE($2, admin_identities),
			trusted_identities = COALESCE($3, trusted_identities),
			base_policy        = COALESCE($4, base_policy),
			enabled            = COALESCE($5, enabled),
			updated_at         = now()
		WHERE id = $1
		RETURNING id, name, api_key_hash, api_key_prefix, enabled,
		          COALESCE(admin_identities, '[]'::jsonb),
		          COALESCE(trusted_identities, '[]'::jsonb),
		          COALESCE(base_policy, 'null'::jsonb),
		          created_at, updated_at`,
		id, admins, trusted, nullableJSON(params.BasePolicy), params.Enabled,
	).Scan(&row.ID, &row.Name, &row.APIKeyHash, &row.APIKeyPrefix, &row.Enabled,
		&row.adminsRaw, &row.trustedRaw, &row.policyRaw, &row.CreatedAt, &row.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("UpdateConfig: %w", err)
	}
	w, err := parseWorkspaceRow(row)
	if err != nil {
		return nil, fmt.Errorf("UpdateConfig: %w", err)
	}
	return w, nil
}

// DeleteWorkspace deletes a workspace by ID. Its skills cascade.
func (s *Store) DeleteWorkspace(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("DeleteWorkspace: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RotateAPIKey generates a new API key for a workspace.
// Returns the updated workspace and the plaintext key (shown once).
func (s *Store) RotateAPIKey(ctx context.Context, id string) (*Workspace, string, error) {
	fullKey, keyHash, keyPrefix, err := GenerateAPIKey()
	if err != nil {
		return nil, "", fmt.Errorf("RotateAPIKey: %w", err)
	}

	var row workspaceRow
	err = s.db.QueryRowContext(ctx, `
		UPDATE workspaces SET
			api_key_hash   = $2,
			api_key_prefix = $3,
			updated_at     = now()
		WHERE id = $1
		RETURNING id, name, api_key_hash, api_key_prefix, enabled,
		          COALESCE(admin_identities, '[]'::jsonb),
		          COALESCE(trusted_identities, '[]'::jsonb),
		          COALESCE(base_policy, 'null'::jsonb),
		          created_at, updated_at`,
		id, keyHash, keyPrefix,
	).Scan(&row.ID, &row.Name, &row.APIKeyHash, &row.APIKeyPrefix, &row.Enabled,
		&row.adminsRaw, &row.trustedRaw, &row.policyRaw, &row.CreatedAt, &row.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, "", fmt.Errorf("RotateAPIKey: workspace not found")
	}
	if err != nil {
		return nil, "", fmt.Errorf("RotateAPIKey: %w", err)
	}

	w, err := parseWorkspaceRow(row)
	if err != nil {
		return nil, "", fmt.Errorf("RotateAPIKey: %w", err)
	}
	return w, fullKey, nil
}

// LookupByPrefix finds a workspace by API key prefix (first 8 chars).
// Used by auth to narrow candidates before bcrypt verify.
func (s *Store) LookupByPrefix(ctx context.Context, prefix string) (*Workspace, error) {
	var row workspaceRow
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, api_key_hash, api_key_prefix, enabled,
		       COALESCE(admin_identities, '[]'::jsonb),
		       COALESCE(trusted_identities, '[]'::jsonb),
		       COALESCE(base_policy, 'null'::jsonb),
		       created_at, updated_at
		FROM workspaces WHERE api_key_prefix = $1`, prefix,
	).Scan(&row.ID, &row.Name, &row.APIKeyHash, &row.APIKeyPrefix, &row.Enabled,
		&row.adminsRaw, &row.trustedRaw, &row.policyRaw, &row.CreatedAt, &row.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LookupByPrefix: %w", err)
	}
	w, err := parseWorkspaceRow(row)
	if err != nil {
		return nil, fmt.Errorf("LookupByPrefix: %w", err)
	}
	return w, nil
}

// parseWorkspaceRow decodes the raw JSONB columns into their typed fields.
// A base_policy of JSON null means the workspace layer is unset.
func parseWorkspaceRow(row workspaceRow) (*Workspace, error) {
	w := row.Workspace
	if err := json.Unmarshal(row.adminsRaw, &w.AdminIdentities); err != nil {
		return nil, fmt.Errorf("decode admin_identities: %w", err)
	}
	if err := json.Unmarshal(row.trustedRaw, &w.TrustedIdentities); err != nil {
		return nil, fmt.Errorf("decode trusted_identities: %w", err)
	}
	if string(row.policyRaw) != "null" {
		var tp policy.ToolPolicy
		if err := json.Unmarshal(row.policyRaw, &tp); err != nil {
			return nil, fmt.Errorf("decode base_policy: %w", err)
		}
		w.BasePolicy = &tp
	}
	return &w, nil
}

// nullableStrings marshals a string list for a COALESCE parameter, or nil to
// leave the column unchanged.
func nullableStrings(v *[]string) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(*v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// nullableJSON converts an optional raw message for a COALESCE parameter.
func nullableJSON(v *json.RawMessage) interface{} {
	if v == nil {
		return nil
	}
	return []byte(*v)
}
