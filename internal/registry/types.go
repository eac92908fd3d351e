package registry

import (
	"encoding/json"
	"time"

	"github.com/triage-ai/corral/internal/policy"
)

// Skill is a skill manifest registered for a workspace. Loaded from the
// skills table; Permissions is the parsed form of Raw and is recomputed
// whenever the stored manifest changes.
type Skill struct {
	WorkspaceID string
	Name        string
	Description string
	Raw         json.RawMessage
	Permissions policy.Permissions
	Enabled     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
