package auth

import (
	"context"
	"crypto/subtle"
)

// StaticAuthenticator is a development-only authenticator that accepts a
// single configured key and maps it to a fixed workspace. Membership lists
// come from the environment so tier behavior can be exercised without
// Postgres.
type StaticAuthenticator struct {
	apiKey    string
	workspace *WorkspaceContext
}

// NewStaticAuthenticator creates an authenticator for the given key.
// Admins and trusted are the static workspace's membership lists.
func NewStaticAuthenticator(apiKey string, admins, trusted []string) *StaticAuthenticator {
	return &StaticAuthenticator{
		apiKey: apiKey,
		workspace: &WorkspaceContext{
			WorkspaceID:       "static",
			Name:              "static",
			AdminIdentities:   admins,
			TrustedIdentities: trusted,
		},
	}
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, apiKey string) (*WorkspaceContext, error) {
	if subtle.ConstantTimeCompare([]byte(apiKey), []byte(a.apiKey)) != 1 {
		return nil, ErrInvalidAPIKey
	}
	return a.workspace, nil
}
