// Package registry stores and serves skill manifests per workspace.
package registry

import (
	"context"
	"errors"
)

// ErrSkillNotFound is returned by mutations that target an unregistered
// skill. Reads use nil to signal absence instead.
var ErrSkillNotFound = errors.New("skill not registered")

// SkillRegistry provides skill manifests for a workspace.
type SkillRegistry interface {
	// GetSkill returns the manifest for a workspace+skill pair.
	// Returns nil if the skill is not registered (unregistered skill path).
	GetSkill(ctx context.Context, workspaceID, name string) (*Skill, error)

	// ListSkills returns every skill registered for a workspace, enabled or
	// not, ordered by name.
	ListSkills(ctx context.Context, workspaceID string) ([]Skill, error)

	// PutSkill creates or replaces a skill manifest.
	PutSkill(ctx context.Context, skill Skill) error

	// DeleteSkill removes a skill manifest. Deleting an unregistered skill
	// returns ErrSkillNotFound.
	DeleteSkill(ctx context.Context, workspaceID, name string) error
}
