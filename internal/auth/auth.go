// Package auth validates workspace API keys and resolves the workspace trust
// configuration attached to each request.
package auth

import (
	"context"
	"errors"

	"github.com/triage-ai/corral/internal/policy"
)

var (
	ErrInvalidAPIKey     = errors.New("invalid API key")
	ErrWorkspaceDisabled = errors.New("workspace disabled")
	ErrAuthUnavailable   = errors.New("authentication unavailable")
)

// WorkspaceContext holds the authenticated workspace's trust configuration:
// the membership lists used for tier resolution and the workspace-wide base
// policy layer. Cached contexts are shared across requests; callers must
// treat them as read-only.
type WorkspaceContext struct {
	WorkspaceID       string
	Name              string
	AdminIdentities   []string
	TrustedIdentities []string
	BasePolicy        *policy.ToolPolicy
}

// Authenticator validates API keys and returns workspace context.
// The transport layer extracts the bearer token before calling.
type Authenticator interface {
	Authenticate(ctx context.Context, apiKey string) (*WorkspaceContext, error)
}
