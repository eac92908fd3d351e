package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/triage-ai/corral/internal/engine"
	"github.com/triage-ai/corral/internal/tier"
)

// handleCheck implements POST /v1/check: the dispatch-time gate for a single
// tool invocation. Refusals are decisions, not errors — an unknown skill or a
// denied tool still returns 200 with permitted=false.
func (d *Dependencies) handleCheck(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req CheckReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Skill == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "skill is required"})
		return
	}
	if req.Tool == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "tool is required"})
		return
	}

	ws := workspaceFromContext(r.Context())
	if ws == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing workspace context"})
		return
	}

	requestID := uuid.New().String()

	skill, err := d.Registry.GetSkill(r.Context(), ws.WorkspaceID, req.Skill)
	if err != nil {
		d.Logger.Error("skill lookup failed", zap.String("skill", req.Skill), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to look up skill"})
		return
	}
	if skill == nil {
		d.respondCheck(w, ws.WorkspaceID, requestID, req, "", tier.TierNone.String(),
			false, engine.ReasonSkillNotFound, start)
		return
	}
	if !skill.Enabled {
		d.respondCheck(w, ws.WorkspaceID, requestID, req, skill.Permissions.Scope.String(),
			tier.TierNone.String(), false, engine.ReasonSkillDisabled, start)
		return
	}

	result := d.Engine.CheckTool(engine.CheckInput{
		Membership: tier.Membership{
			Admins:  ws.AdminIdentities,
			Trusted: ws.TrustedIdentities,
		},
		BasePolicy: ws.BasePolicy,
		Channel:    req.Channel,
		SenderID:   req.SenderID,
		Skill:      engine.SkillInput{Name: req.Skill, Permissions: skill.Permissions},
		Tool:       req.Tool,
	})

	d.respondCheck(w, ws.WorkspaceID, requestID, req, result.Scope.String(),
		result.Tier.String(), result.Permitted, result.Reason, start)
}

// respondCheck writes the audit event and the HTTP response for one check.
func (d *Dependencies) respondCheck(
	w http.ResponseWriter,
	workspaceID, requestID string,
	req CheckReq,
	scope, tierName string,
	permitted bool,
	reason string,
	start time.Time,
) {
	latencyMs := float64(time.Since(start)) / float64(time.Millisecond)

	d.writeDecisionEvent(workspaceID, requestID, "check", req.Channel, req.SenderID,
		tierName, req.Skill, scope, req.Tool, permitted, nilIfEmpty(reason), nil, float32(latencyMs))

	writeJSON(w, http.StatusOK, CheckResp{
		RequestID: requestID,
		Permitted: permitted,
		Reason:    nilIfEmpty(reason),
		Tier:      tierName,
		LatencyMs: latencyMs,
	})
}
