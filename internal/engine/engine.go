// Package engine orchestrates permission resolution for sessions: tier
// derivation, the ceiling gate, skill policy resolution, and layer
// composition.
package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/triage-ai/corral/internal/catalog"
	"github.com/triage-ai/corral/internal/policy"
	"github.com/triage-ai/corral/internal/tier"
)

// Engine resolves session and dispatch-time permissions. Resolution is pure,
// synchronous computation over the injected read-only tables; results are
// recomputed per call and never cached, and concurrent calls need no
// coordination.
type Engine struct {
	catalog *catalog.Catalog
	tiers   tier.Table
	logger  *zap.Logger
}

// NewEngine creates an engine over the given catalog and tier table.
func NewEngine(cat *catalog.Catalog, tiers tier.Table, logger *zap.Logger) *Engine {
	return &Engine{
		catalog: cat,
		tiers:   tiers,
		logger:  logger,
	}
}

// Catalog exposes the engine's catalog for callers that normalize or echo
// tool names.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// ResolveSession gates each candidate skill against the user's tier ceiling
// and computes the composed policy for the ones that pass.
//
// The ceiling gate runs before any tool-level policy work: a skill whose
// scope exceeds the ceiling is excluded from the session outright, not merely
// tool-restricted. Eligible skills get the composition of the workspace base
// policy, the tier default policy, and the skill's own resolved policy, in
// that order.
func (e *Engine) ResolveSession(in SessionInput) SessionResult {
	start := time.Now()

	userTier, known := tier.ResolveUserTier(in.Membership, in.Channel, in.SenderID)
	var profile tier.Profile
	if known {
		profile = e.tiers.ProfileFor(userTier)
	}

	decisions := make([]SkillDecision, 0, len(in.Skills))
	for _, skill := range in.Skills {
		scope := skill.Permissions.Scope

		if known && !tier.Admits(scope, profile.Ceiling) {
			e.logger.Debug("skill excluded by tier ceiling",
				zap.String("skill", skill.Name),
				zap.String("scope", scope.String()),
				zap.String("tier", userTier.String()),
			)
			decisions = append(decisions, SkillDecision{
				Name:     skill.Name,
				Scope:    scope,
				Eligible: false,
				Reason:   ReasonScopeExceedsCeiling,
			})
			continue
		}

		composed := policy.Compose(e.catalog, []*policy.ToolPolicy{
			in.BasePolicy,
			profile.DefaultPolicy,
			policy.ResolveSkillPolicy(skill.Permissions),
		})
		decisions = append(decisions, SkillDecision{
			Name:     skill.Name,
			Scope:    scope,
			Eligible: true,
			Policy:   &composed,
		})
	}

	return SessionResult{
		Tier:      userTier,
		TierKnown: known,
		Decisions: decisions,
		Elapsed:   time.Since(start),
	}
}

// CheckTool answers whether one tool invocation is permitted for a skill and
// user, recomputing the composed policy and applying it to the tool name.
// Exclusion by the ceiling gate refuses the call the same way it would have
// dropped the skill at session setup.
func (e *Engine) CheckTool(in CheckInput) CheckResult {
	start := time.Now()

	userTier, known := tier.ResolveUserTier(in.Membership, in.Channel, in.SenderID)
	var profile tier.Profile
	if known {
		profile = e.tiers.ProfileFor(userTier)
	}

	scope := in.Skill.Permissions.Scope
	result := CheckResult{
		Tier:      userTier,
		TierKnown: known,
		Scope:     scope,
	}

	if known && !tier.Admits(scope, profile.Ceiling) {
		result.Reason = ReasonScopeExceedsCeiling
		result.Elapsed = time.Since(start)
		return result
	}

	composed := policy.Compose(e.catalog, []*policy.ToolPolicy{
		in.BasePolicy,
		profile.DefaultPolicy,
		policy.ResolveSkillPolicy(in.Skill.Permissions),
	})
	result.Policy = &composed

	permitted, reason := policy.Permits(e.catalog, composed, in.Tool)
	result.Permitted = permitted
	result.Reason = reason
	result.Elapsed = time.Since(start)
	return result
}
