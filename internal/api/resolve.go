package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/triage-ai/corral/internal/engine"
	"github.com/triage-ai/corral/internal/policy"
	"github.com/triage-ai/corral/internal/storage"
	"github.com/triage-ai/corral/internal/tier"
)

// handleResolve implements POST /v1/resolve.
// Auth middleware has already validated the Bearer token and injected the
// workspace. An empty body resolves every enabled skill for an anonymous
// session.
func (d *Dependencies) handleResolve(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ResolveReq
	if err := readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	ws := workspaceFromContext(r.Context())
	if ws == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing workspace context"})
		return
	}

	requested := req.Skills
	if len(requested) == 0 {
		skills, err := d.Registry.ListSkills(r.Context(), ws.WorkspaceID)
		if err != nil {
			d.Logger.Error("failed to list skills", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list skills"})
			return
		}
		for _, s := range skills {
			if s.Enabled {
				requested = append(requested, s.Name)
			}
		}
	}

	// Look up each requested skill. Unregistered and disabled skills become
	// refusal decisions without reaching the engine; the rest are resolved in
	// one pass so decisions come back in request order.
	decisions := make([]SkillDecisionResp, len(requested))
	var inputs []engine.SkillInput
	var inputIdx []int
	for i, name := range requested {
		skill, err := d.Registry.GetSkill(r.Context(), ws.WorkspaceID, name)
		if err != nil {
			d.Logger.Error("skill lookup failed", zap.String("skill", name), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to look up skill"})
			return
		}
		if skill == nil {
			decisions[i] = SkillDecisionResp{
				Skill:    name,
				Eligible: false,
				Reason:   nilIfEmpty(engine.ReasonSkillNotFound),
			}
			continue
		}
		if !skill.Enabled {
			decisions[i] = SkillDecisionResp{
				Skill:    name,
				Scope:    skill.Permissions.Scope.String(),
				Eligible: false,
				Reason:   nilIfEmpty(engine.ReasonSkillDisabled),
			}
			continue
		}
		inputs = append(inputs, engine.SkillInput{Name: name, Permissions: skill.Permissions})
		inputIdx = append(inputIdx, i)
	}

	result := d.Engine.ResolveSession(engine.SessionInput{
		Membership: tier.Membership{
			Admins:  ws.AdminIdentities,
			Trusted: ws.TrustedIdentities,
		},
		BasePolicy: ws.BasePolicy,
		Channel:    req.Channel,
		SenderID:   req.SenderID,
		Skills:     inputs,
	})
	for i, dec := range result.Decisions {
		decisions[inputIdx[i]] = SkillDecisionResp{
			Skill:    dec.Name,
			Scope:    dec.Scope.String(),
			Eligible: dec.Eligible,
			Reason:   nilIfEmpty(dec.Reason),
			Policy:   toPolicyDTO(dec.Policy),
		}
	}

	requestID := uuid.New().String()
	latencyMs := float64(time.Since(start)) / float64(time.Millisecond)

	// Fire-and-forget: one audit event per decision
	tierName := result.Tier.String()
	for _, dec := range decisions {
		d.writeDecisionEvent(ws.WorkspaceID, requestID, "resolve", req.Channel, req.SenderID,
			tierName, dec.Skill, dec.Scope, "", dec.Eligible, dec.Reason, dec.Policy, float32(latencyMs))
	}

	writeJSON(w, http.StatusOK, ResolveResp{
		RequestID: requestID,
		Tier:      tierName,
		Decisions: decisions,
		LatencyMs: latencyMs,
	})
}

// toPolicyDTO converts a composed policy to its wire form. Clone keeps empty
// lists non-nil, so "allow": [] (permits nothing) never flattens to null (no
// restriction), and the response cannot alias engine output.
func toPolicyDTO(p *policy.ToolPolicy) *ToolPolicyDTO {
	if p == nil {
		return nil
	}
	c := p.Clone()
	dto := &ToolPolicyDTO{}
	if c.Allow != nil {
		dto.Allow = &c.Allow
	}
	if c.Deny != nil {
		dto.Deny = &c.Deny
	}
	return dto
}

// writeDecisionEvent builds a DecisionEvent and fires it to the async writer.
func (d *Dependencies) writeDecisionEvent(
	workspaceID, requestID, kind, channel, senderID, tierName, skill, scope, tool string,
	eligible bool,
	reason *string,
	pol *ToolPolicyDTO,
	latencyMs float32,
) {
	event := &storage.DecisionEvent{
		EventID:     uuid.New().String(),
		WorkspaceID: workspaceID,
		RequestID:   requestID,
		Kind:        kind,
		Channel:     channel,
		SenderID:    senderID,
		Tier:        tierName,
		Skill:       skill,
		Scope:       scope,
		Tool:        tool,
		Eligible:    eligible,
		LatencyMs:   latencyMs,
		CreatedAt:   time.Now(),
	}
	if reason != nil {
		event.Reason = *reason
	}
	if pol != nil {
		if pol.Allow != nil {
			event.AllowCount = uint32(len(*pol.Allow))
		}
		if pol.Deny != nil {
			event.DenyCount = uint32(len(*pol.Deny))
		}
		if raw, err := json.Marshal(pol); err == nil {
			event.PolicyJSON = storage.TruncatePolicy(string(raw), storage.PolicyPreviewLength)
		}
	}

	d.Writer.Write(event)
}
