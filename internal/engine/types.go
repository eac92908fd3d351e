package engine

import (
	"time"

	"github.com/triage-ai/corral/internal/policy"
	"github.com/triage-ai/corral/internal/tier"
)

// Machine reasons attached to resolution decisions. The dispatch-level
// reasons (denied, not_in_allow) come from the policy package.
const (
	ReasonScopeExceedsCeiling = "scope_exceeds_tier_ceiling"
	ReasonSkillNotFound       = "skill_not_found"
	ReasonSkillDisabled       = "skill_disabled"
)

// SkillInput is one candidate skill for a session.
type SkillInput struct {
	Name        string
	Permissions policy.Permissions
}

// SessionInput carries everything a session resolution needs: the workspace's
// trust configuration, the optional site-wide base policy layer, the delivery
// identity, and the candidate skills.
type SessionInput struct {
	Membership tier.Membership
	BasePolicy *policy.ToolPolicy
	Channel    string
	SenderID   string
	Skills     []SkillInput
}

// SkillDecision is the per-skill outcome of a session resolution. Excluded
// skills never reach the session's skill set; eligible skills carry their
// composed policy (possibly the zero policy, meaning unrestricted).
type SkillDecision struct {
	Name     string
	Scope    policy.Scope
	Eligible bool
	Reason   string
	Policy   *policy.ToolPolicy
}

// SessionResult is the outcome of resolving one session.
type SessionResult struct {
	Tier      tier.Tier
	TierKnown bool
	Decisions []SkillDecision
	Elapsed   time.Duration
}

// CheckInput carries a single dispatch-time tool check: the same trust inputs
// as a session resolution, one skill, and the tool about to be invoked.
type CheckInput struct {
	Membership tier.Membership
	BasePolicy *policy.ToolPolicy
	Channel    string
	SenderID   string
	Skill      SkillInput
	Tool       string
}

// CheckResult is the outcome of a dispatch-time tool check.
type CheckResult struct {
	Permitted bool
	Reason    string
	Tier      tier.Tier
	TierKnown bool
	Scope     policy.Scope
	Policy    *policy.ToolPolicy
	Elapsed   time.Duration
}
