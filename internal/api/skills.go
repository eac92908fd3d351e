package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/triage-ai/corral/internal/policy"
	"github.com/triage-ai/corral/internal/registry"
)

func (d *Dependencies) handleListSkills(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromContext(r.Context())
	if ws == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing workspace context"})
		return
	}

	skills, err := d.Registry.ListSkills(r.Context(), ws.WorkspaceID)
	if err != nil {
		d.Logger.Error("failed to list skills", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list skills"})
		return
	}

	resp := SkillListResp{Skills: make([]SkillResp, 0, len(skills))}
	for i := range skills {
		resp.Skills = append(resp.Skills, skillToResp(&skills[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Dependencies) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromContext(r.Context())
	if ws == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing workspace context"})
		return
	}

	name := r.PathValue("name")
	skill, err := d.Registry.GetSkill(r.Context(), ws.WorkspaceID, name)
	if err != nil {
		d.Logger.Error("failed to get skill", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get skill"})
		return
	}
	if skill == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Skill not found."})
		return
	}
	writeJSON(w, http.StatusOK, skillToResp(skill))
}

func (d *Dependencies) handleCreateSkill(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromContext(r.Context())
	if ws == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing workspace context"})
		return
	}

	var req CreateSkillReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Name == "" || len(req.Name) > 255 {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "name must be 1-255 characters"})
		return
	}
	if err := d.Validator.Validate(req.Manifest); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: err.Error()})
		return
	}

	// Serialize mutations per (workspace, skill) so concurrent writers cannot
	// interleave the existence check with the write.
	release := d.SkillLocks.Lock(skillLockKey(ws.WorkspaceID, req.Name))
	defer release()

	existing, err := d.Registry.GetSkill(r.Context(), ws.WorkspaceID, req.Name)
	if err != nil {
		d.Logger.Error("failed to check skill", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to create skill"})
		return
	}
	if existing != nil {
		writeJSON(w, http.StatusConflict, ErrorResp{Detail: "Skill already registered."})
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	skill := registry.Skill{
		WorkspaceID: ws.WorkspaceID,
		Name:        req.Name,
		Description: req.Description,
		Raw:         req.Manifest,
		Permissions: policy.ParsePermissions(req.Manifest),
		Enabled:     enabled,
	}
	if err := d.Registry.PutSkill(r.Context(), skill); err != nil {
		d.Logger.Error("failed to create skill", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to create skill"})
		return
	}

	// Re-read so the response carries the stored timestamps.
	created, err := d.Registry.GetSkill(r.Context(), ws.WorkspaceID, req.Name)
	if err != nil || created == nil {
		writeJSON(w, http.StatusCreated, skillToResp(&skill))
		return
	}
	writeJSON(w, http.StatusCreated, skillToResp(created))
}

func (d *Dependencies) handleUpdateSkill(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromContext(r.Context())
	if ws == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing workspace context"})
		return
	}

	name := r.PathValue("name")
	var req UpdateSkillReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Manifest != nil {
		if err := d.Validator.Validate(req.Manifest); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: err.Error()})
			return
		}
	}

	release := d.SkillLocks.Lock(skillLockKey(ws.WorkspaceID, name))
	defer release()

	skill, err := d.Registry.GetSkill(r.Context(), ws.WorkspaceID, name)
	if err != nil {
		d.Logger.Error("failed to get skill", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to update skill"})
		return
	}
	if skill == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Skill not found."})
		return
	}

	if req.Description != nil {
		skill.Description = *req.Description
	}
	if req.Manifest != nil {
		skill.Raw = req.Manifest
		skill.Permissions = policy.ParsePermissions(req.Manifest)
	}
	if req.Enabled != nil {
		skill.Enabled = *req.Enabled
	}

	if err := d.Registry.PutSkill(r.Context(), *skill); err != nil {
		d.Logger.Error("failed to update skill", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to update skill"})
		return
	}

	updated, err := d.Registry.GetSkill(r.Context(), ws.WorkspaceID, name)
	if err != nil || updated == nil {
		writeJSON(w, http.StatusOK, skillToResp(skill))
		return
	}
	writeJSON(w, http.StatusOK, skillToResp(updated))
}

func (d *Dependencies) handleDeleteSkill(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFromContext(r.Context())
	if ws == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing workspace context"})
		return
	}

	name := r.PathValue("name")
	release := d.SkillLocks.Lock(skillLockKey(ws.WorkspaceID, name))
	defer release()

	err := d.Registry.DeleteSkill(r.Context(), ws.WorkspaceID, name)
	if errors.Is(err, registry.ErrSkillNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Skill not found."})
		return
	}
	if err != nil {
		d.Logger.Error("failed to delete skill", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to delete skill"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func skillLockKey(workspaceID, name string) string {
	return workspaceID + "/" + name
}

func skillToResp(s *registry.Skill) SkillResp {
	manifest := s.Raw
	if manifest == nil {
		manifest = json.RawMessage(`{}`)
	}
	effective := s.Permissions.ToManifest()
	return SkillResp{
		Name:        s.Name,
		Description: s.Description,
		Manifest:    manifest,
		Scope:       effective.Scope,
		Delegation:  effective.Delegation,
		External:    effective.External,
		Enabled:     s.Enabled,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}
