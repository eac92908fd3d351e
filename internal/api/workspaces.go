package api

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/triage-ai/corral/internal/policy"
	"github.com/triage-ai/corral/internal/store"
)

func (d *Dependencies) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Postgres not configured"})
		return
	}

	var req CreateWorkspaceReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Name == "" || len(req.Name) > 255 {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "name must be 1-255 characters"})
		return
	}

	workspace, plainKey, err := d.Store.CreateWorkspace(r.Context(), req.Name)
	if err != nil {
		d.Logger.Error("failed to create workspace", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to create workspace"})
		return
	}

	writeJSON(w, http.StatusCreated, CreateWorkspaceResp{
		ID:           workspace.ID,
		Name:         workspace.Name,
		APIKey:       plainKey,
		APIKeyPrefix: workspace.APIKeyPrefix,
		CreatedAt:    workspace.CreatedAt,
	})
}

func (d *Dependencies) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Postgres not configured"})
		return
	}

	workspaces, err := d.Store.ListWorkspaces(r.Context())
	if err != nil {
		d.Logger.Error("failed to list workspaces", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list workspaces"})
		return
	}

	resp := make([]WorkspaceResp, 0, len(workspaces))
	for _, ws := range workspaces {
		resp = append(resp, workspaceToResp(ws))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Dependencies) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Postgres not configured"})
		return
	}

	id := r.PathValue("workspace_id")
	workspace, err := d.Store.GetWorkspace(r.Context(), id)
	if err != nil {
		d.Logger.Error("failed to get workspace", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get workspace"})
		return
	}
	if workspace == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Workspace not found."})
		return
	}
	writeJSON(w, http.StatusOK, workspaceToResp(workspace))
}

func (d *Dependencies) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Postgres not configured"})
		return
	}

	id := r.PathValue("workspace_id")
	err := d.Store.DeleteWorkspace(r.Context(), id)
	if err == sql.ErrNoRows {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Workspace not found."})
		return
	}
	if err != nil {
		d.Logger.Error("failed to delete workspace", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to delete workspace"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRotateKey replaces a workspace's API key. Sessions authenticated from
// the cache keep working on the old key until the auth TTL expires.
func (d *Dependencies) handleRotateKey(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Postgres not configured"})
		return
	}

	id := r.PathValue("workspace_id")
	workspace, plainKey, err := d.Store.RotateAPIKey(r.Context(), id)
	if err != nil {
		d.Logger.Error("failed to rotate key", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to rotate API key"})
		return
	}
	writeJSON(w, http.StatusOK, RotateKeyResp{
		APIKey:       plainKey,
		APIKeyPrefix: workspace.APIKeyPrefix,
	})
}

func workspaceToResp(w *store.Workspace) WorkspaceResp {
	return WorkspaceResp{
		ID:                w.ID,
		Name:              w.Name,
		APIKeyPrefix:      w.APIKeyPrefix,
		Enabled:           w.Enabled,
		AdminIdentities:   w.AdminIdentities,
		TrustedIdentities: w.TrustedIdentities,
		BasePolicy:        toPolicyDTO(w.BasePolicy),
		CreatedAt:         w.CreatedAt,
		UpdatedAt:         w.UpdatedAt,
	}
}

func (d *Dependencies) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Postgres not configured"})
		return
	}
	ws := workspaceFromContext(r.Context())
	if ws == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing workspace context"})
		return
	}

	// Read the row instead of echoing the auth context, which may be cached.
	workspace, err := d.Store.GetWorkspace(r.Context(), ws.WorkspaceID)
	if err != nil {
		d.Logger.Error("failed to get workspace", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get workspace"})
		return
	}
	if workspace == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Workspace not found."})
		return
	}
	writeJSON(w, http.StatusOK, workspaceToConfigResp(workspace))
}

// handleUpdateConfig applies a partial update to the membership lists, base
// policy, and enabled flag. Sessions authenticated from the cache pick up the
// new configuration after the auth TTL.
func (d *Dependencies) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Postgres not configured"})
		return
	}
	ws := workspaceFromContext(r.Context())
	if ws == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing workspace context"})
		return
	}

	var req UpdateConfigReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	params := store.UpdateConfigParams{
		AdminIdentities:   req.AdminIdentities,
		TrustedIdentities: req.TrustedIdentities,
		Enabled:           req.Enabled,
	}
	if len(req.BasePolicy) > 0 {
		if string(req.BasePolicy) != "null" {
			var tp policy.ToolPolicy
			if err := json.Unmarshal(req.BasePolicy, &tp); err != nil {
				writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "base_policy must be a tool policy object or null"})
				return
			}
		}
		raw := req.BasePolicy
		params.BasePolicy = &raw
	}

	workspace, err := d.Store.UpdateConfig(r.Context(), ws.WorkspaceID, params)
	if err != nil {
		d.Logger.Error("failed to update config", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to update config"})
		return
	}
	if workspace == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Workspace not found."})
		return
	}
	writeJSON(w, http.StatusOK, workspaceToConfigResp(workspace))
}

func workspaceToConfigResp(w *store.Workspace) WorkspaceConfigResp {
	return WorkspaceConfigResp{
		ID:                w.ID,
		Name:              w.Name,
		AdminIdentities:   w.AdminIdentities,
		TrustedIdentities: w.TrustedIdentities,
		BasePolicy:        toPolicyDTO(w.BasePolicy),
		Enabled:           w.Enabled,
		UpdatedAt:         w.UpdatedAt,
	}
}
