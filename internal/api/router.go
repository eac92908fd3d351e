package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/triage-ai/corral/internal/auth"
	"github.com/triage-ai/corral/internal/chread"
	"github.com/triage-ai/corral/internal/engine"
	"github.com/triage-ai/corral/internal/keymutex"
	"github.com/triage-ai/corral/internal/registry"
	"github.com/triage-ai/corral/internal/storage"
	"github.com/triage-ai/corral/internal/store"
)

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Store      *store.Store // nil in static-auth mode
	Engine     *engine.Engine
	Registry   registry.SkillRegistry
	Auth       auth.Authenticator
	Validator  *registry.ManifestValidator
	Writer     storage.EventWriter
	Reader     *chread.Reader // nil if ClickHouse unavailable
	Logger     *zap.Logger
	SkillLocks *keymutex.KeyedMutex // set by NewRouter when nil
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	if deps.SkillLocks == nil {
		deps.SkillLocks = keymutex.New()
	}

	mux := http.NewServeMux()

	// Resolution endpoints (auth required via Bearer crk_ token)
	mux.HandleFunc("POST /v1/resolve", deps.authMiddleware(deps.handleResolve))
	mux.HandleFunc("POST /v1/check", deps.authMiddleware(deps.handleCheck))

	// Skill registry CRUD (auth required)
	mux.HandleFunc("GET /v1/skills", deps.authMiddleware(deps.handleListSkills))
	mux.HandleFunc("POST /v1/skills", deps.authMiddleware(deps.handleCreateSkill))
	mux.HandleFunc("GET /v1/skills/{name}", deps.authMiddleware(deps.handleGetSkill))
	mux.HandleFunc("PUT /v1/skills/{name}", deps.authMiddleware(deps.handleUpdateSkill))
	mux.HandleFunc("DELETE /v1/skills/{name}", deps.authMiddleware(deps.handleDeleteSkill))

	// Workspace trust configuration (auth required)
	mux.HandleFunc("GET /v1/config", deps.authMiddleware(deps.handleGetConfig))
	mux.HandleFunc("PUT /v1/config", deps.authMiddleware(deps.handleUpdateConfig))

	// Effective tool table (auth required)
	mux.HandleFunc("GET /v1/catalog", deps.authMiddleware(deps.handleGetCatalog))

	// Decision audit trail & analytics (auth required)
	mux.HandleFunc("GET /v1/events", deps.authMiddleware(deps.handleListEvents))
	mux.HandleFunc("GET /v1/events/{request_id}", deps.authMiddleware(deps.handleGetRequestEvents))
	mux.HandleFunc("GET /v1/analytics", deps.authMiddleware(deps.handleGetAnalytics))

	// Workspace administration (no auth — dashboard auth added later);
	// create returns the one-time API key
	mux.HandleFunc("POST /v1/workspaces", deps.handleCreateWorkspace)
	mux.HandleFunc("GET /v1/workspaces", deps.handleListWorkspaces)
	mux.HandleFunc("GET /v1/workspaces/{workspace_id}", deps.handleGetWorkspace)
	mux.HandleFunc("DELETE /v1/workspaces/{workspace_id}", deps.handleDeleteWorkspace)
	mux.HandleFunc("POST /v1/workspaces/{workspace_id}/rotate-key", deps.handleRotateKey)

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return corsMiddleware(requestLogging(mux, deps.Logger))
}
