package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/triage-ai/corral/internal/store"
)

// WorkspaceStore abstracts the prefix lookup for testability.
// *store.Store satisfies it.
type WorkspaceStore interface {
	LookupByPrefix(ctx context.Context, prefix string) (*store.Workspace, error)
}

// PostgresAuthenticator validates API keys against the workspaces table.
// Uses AuthCache with stale-while-revalidate to avoid DB + bcrypt on the hot
// path. Auth failures always return an error — nothing resolves without a
// valid key.
type PostgresAuthenticator struct {
	store  WorkspaceStore
	cache  *AuthCache
	logger *zap.Logger
}

// PostgresAuthConfig configures the PostgresAuthenticator.
type PostgresAuthConfig struct {
	DB       *sql.DB
	CacheTTL time.Duration // Default: 30s
	Logger   *zap.Logger
}

// NewPostgresAuthenticator creates a new authenticator backed by PostgreSQL.
func NewPostgresAuthenticator(cfg PostgresAuthConfig) *PostgresAuthenticator {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &PostgresAuthenticator{
		store:  store.NewStore(cfg.DB),
		cache:  NewAuthCache(ttl),
		logger: cfg.Logger,
	}
}

// newPostgresAuthenticatorWithStore creates an authenticator with an injected store (for testing).
func newPostgresAuthenticatorWithStore(ws WorkspaceStore, cache *AuthCache, logger *zap.Logger) *PostgresAuthenticator {
	return &PostgresAuthenticator{
		store:  ws,
		cache:  cache,
		logger: logger,
	}
}

// Authenticate validates the API key against the database.
//
// Flow:
//  1. Format check: crk_ prefix, at least 8 chars
//  2. Cache lookup (stale-while-revalidate):
//     - Fresh hit: return immediately
//     - Stale hit: return stale workspace, spawn background refresh
//     - Miss: do full DB + bcrypt lookup synchronously
func (a *PostgresAuthenticator) Authenticate(ctx context.Context, apiKey string) (*WorkspaceContext, error) {
	if len(apiKey) < 8 || !strings.HasPrefix(apiKey, "crk_") {
		return nil, ErrInvalidAPIKey
	}

	// 1. Cache lookup
	result := a.cache.Get(apiKey)

	if result.Hit {
		// Stale hit — kick off background refresh, return stale value immediately
		if result.NeedsRefresh {
			go a.backgroundRefresh(apiKey)
		}
		return result.Workspace, nil
	}

	// 2. Cache miss — do full lookup synchronously
	workspace, err := a.lookupAndVerify(ctx, apiKey)
	if err != nil {
		return a.handleLookupError(err)
	}

	a.cache.Set(apiKey, workspace)
	return workspace, nil
}

// backgroundRefresh performs the DB + bcrypt lookup in a background goroutine.
// Errors are logged but don't affect the caller (they already got the stale value).
func (a *PostgresAuthenticator) backgroundRefresh(apiKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	workspace, err := a.lookupAndVerify(ctx, apiKey)
	if err != nil {
		a.logger.Warn("background auth refresh failed",
			zap.Error(err),
		)
		// Drop the stale entry so the next request revalidates synchronously.
		// A key revoked or disabled mid-TTL converges on rejection here.
		a.cache.Delete(apiKey)
		return
	}

	a.cache.Set(apiKey, workspace)
}

// lookupAndVerify does the full DB prefix lookup + bcrypt verification.
func (a *PostgresAuthenticator) lookupAndVerify(ctx context.Context, apiKey string) (*WorkspaceContext, error) {
	// api_key_prefix is the first 8 chars (e.g. "crk_abcd")
	prefix := apiKey[:8]

	w, err := a.store.LookupByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("lookupAndVerify: %w", err)
	}
	if w == nil {
		return nil, ErrInvalidAPIKey // No workspace with this prefix — reject
	}

	// bcrypt verify
	if err := bcrypt.CompareHashAndPassword([]byte(w.APIKeyHash), []byte(apiKey)); err != nil {
		return nil, ErrInvalidAPIKey
	}

	if !w.Enabled {
		return nil, ErrWorkspaceDisabled
	}

	return &WorkspaceContext{
		WorkspaceID:       w.ID,
		Name:              w.Name,
		AdminIdentities:   w.AdminIdentities,
		TrustedIdentities: w.TrustedIdentities,
		BasePolicy:        w.BasePolicy,
	}, nil
}

// handleLookupError maps lookup failures to their caller-facing errors.
// Credential and disabled rejections pass through; everything else means the
// DB is unreachable.
func (a *PostgresAuthenticator) handleLookupError(lookupErr error) (*WorkspaceContext, error) {
	if errors.Is(lookupErr, ErrInvalidAPIKey) {
		return nil, ErrInvalidAPIKey
	}
	if errors.Is(lookupErr, ErrWorkspaceDisabled) {
		return nil, ErrWorkspaceDisabled
	}

	a.logger.Warn("auth DB unreachable",
		zap.Error(lookupErr),
	)
	return nil, fmt.Errorf("%w: %v", ErrAuthUnavailable, lookupErr)
}
