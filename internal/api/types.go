package api

import (
	"encoding/json"
	"time"
)

// --- Shared policy wire form ---

// ToolPolicyDTO is the wire form of a tool policy. Pointer fields distinguish
// an absent list (no restriction) from a present-but-empty one (allow []
// permits nothing; deny [] denies nothing).
type ToolPolicyDTO struct {
	Allow *[]string `json:"allow,omitempty"`
	Deny  *[]string `json:"deny,omitempty"`
}

// --- POST /v1/resolve ---

// ResolveReq is the JSON body for POST /v1/resolve.
type ResolveReq struct {
	Channel  string   `json:"channel,omitempty"`
	SenderID string   `json:"sender_id,omitempty"`
	Skills   []string `json:"skills,omitempty"` // empty = all enabled skills
}

// SkillDecisionResp is the per-skill outcome in a resolve response.
// Scope is omitted for unregistered skills, whose manifest is unknown.
type SkillDecisionResp struct {
	Skill    string         `json:"skill"`
	Scope    string         `json:"scope,omitempty"`
	Eligible bool           `json:"eligible"`
	Reason   *string        `json:"reason,omitempty"`
	Policy   *ToolPolicyDTO `json:"policy,omitempty"`
}

// ResolveResp is the response for POST /v1/resolve.
type ResolveResp struct {
	RequestID string              `json:"request_id"`
	Tier      string              `json:"tier"`
	Decisions []SkillDecisionResp `json:"decisions"`
	LatencyMs float64             `json:"latency_ms"`
}

// --- POST /v1/check ---

// CheckReq is the JSON body for POST /v1/check.
type CheckReq struct {
	Channel  string `json:"channel,omitempty"`
	SenderID string `json:"sender_id,omitempty"`
	Skill    string `json:"skill"`
	Tool     string `json:"tool"`
}

// CheckResp is the response for POST /v1/check.
type CheckResp struct {
	RequestID string  `json:"request_id"`
	Permitted bool    `json:"permitted"`
	Reason    *string `json:"reason,omitempty"`
	Tier      string  `json:"tier"`
	LatencyMs float64 `json:"latency_ms"`
}

// --- Workspace bootstrap & config ---

// CreateWorkspaceReq is the JSON body for POST /v1/workspaces.
type CreateWorkspaceReq struct {
	Name string `json:"name"`
}

// CreateWorkspaceResp includes the plaintext API key (shown once).
type CreateWorkspaceResp struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	APIKey       string    `json:"api_key"`
	APIKeyPrefix string    `json:"api_key_prefix"`
	CreatedAt    time.Time `json:"created_at"`
}

// WorkspaceResp is the dashboard view of a workspace. The key itself is
// never returned, only its prefix.
type WorkspaceResp struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	APIKeyPrefix      string         `json:"api_key_prefix"`
	Enabled           bool           `json:"enabled"`
	AdminIdentities   []string       `json:"admin_identities"`
	TrustedIdentities []string       `json:"trusted_identities"`
	BasePolicy        *ToolPolicyDTO `json:"base_policy"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// RotateKeyResp carries the replacement API key (shown once).
type RotateKeyResp struct {
	APIKey       string `json:"api_key"`
	APIKeyPrefix string `json:"api_key_prefix"`
}

// WorkspaceConfigResp is the response for GET/PUT /v1/config.
type WorkspaceConfigResp struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	AdminIdentities   []string       `json:"admin_identities"`
	TrustedIdentities []string       `json:"trusted_identities"`
	BasePolicy        *ToolPolicyDTO `json:"base_policy"`
	Enabled           bool           `json:"enabled"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// UpdateConfigReq is the JSON body for PUT /v1/config. Omitted fields are
// left unchanged; base_policy null clears the workspace layer.
type UpdateConfigReq struct {
	AdminIdentities   *[]string       `json:"admin_identities,omitempty"`
	TrustedIdentities *[]string       `json:"trusted_identities,omitempty"`
	BasePolicy        json.RawMessage `json:"base_policy,omitempty"`
	Enabled           *bool           `json:"enabled,omitempty"`
}

// --- Skill registry CRUD ---

// CreateSkillReq is the JSON body for POST /v1/skills.
type CreateSkillReq struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Manifest    json.RawMessage `json:"manifest,omitempty"`
	Enabled     *bool           `json:"enabled,omitempty"` // default true
}

// UpdateSkillReq is the JSON body for PUT /v1/skills/{name}.
// Omitted fields are left unchanged.
type UpdateSkillReq struct {
	Description *string         `json:"description,omitempty"`
	Manifest    json.RawMessage `json:"manifest,omitempty"`
	Enabled     *bool           `json:"enabled,omitempty"`
}

// SkillResp mirrors a registered skill, with the permission scope surfaced
// from the parsed manifest.
type SkillResp struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Manifest    json.RawMessage `json:"manifest"`
	Scope       string          `json:"scope"`
	Delegation  string          `json:"delegation"`
	External    string          `json:"external"`
	Enabled     bool            `json:"enabled"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// SkillListResp is the response for GET /v1/skills.
type SkillListResp struct {
	Skills []SkillResp `json:"skills"`
}

// --- GET /v1/catalog ---

// CatalogResp is the effective tool table after any operator override file,
// with each group expanded to sorted canonical tool names.
type CatalogResp struct {
	Tools  []string            `json:"tools"`
	Groups map[string][]string `json:"groups"`
}

// --- GET /v1/events ---

// DecisionEventResp is one audited decision.
type DecisionEventResp struct {
	EventID    string    `json:"event_id"`
	RequestID  string    `json:"request_id"`
	Kind       string    `json:"kind"`
	Channel    *string   `json:"channel"`
	SenderID   *string   `json:"sender_id"`
	Tier       string    `json:"tier"`
	Skill      string    `json:"skill"`
	Scope      string    `json:"scope"`
	Tool       *string   `json:"tool"`
	Eligible   bool      `json:"eligible"`
	Reason     *string   `json:"reason"`
	AllowCount uint32    `json:"allow_count"`
	DenyCount  uint32    `json:"deny_count"`
	LatencyMs  float32   `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// EventListResp is the response for GET /v1/events.
type EventListResp struct {
	Events   []DecisionEventResp `json:"events"`
	Total    int                 `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
}

// RequestDecisionsResp is the response for GET /v1/events/{request_id}.
type RequestDecisionsResp struct {
	RequestID string              `json:"request_id"`
	Events    []DecisionEventResp `json:"events"`
}

// --- GET /v1/analytics ---

// SummaryStatsResp holds aggregate decision counts.
type SummaryStatsResp struct {
	TotalDecisions int `json:"total_decisions"`
	Resolves       int `json:"resolves"`
	Checks         int `json:"checks"`
	Refusals       int `json:"refusals"`
}

// TimeSeriesBucketResp is an hourly count bucket.
type TimeSeriesBucketResp struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

// ReasonCountResp is a refusal reason and its count.
type ReasonCountResp struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// ToolCountResp is a tool name and its count.
type ToolCountResp struct {
	Tool  string `json:"tool"`
	Count int    `json:"count"`
}

// TierCountResp is a tier and its count.
type TierCountResp struct {
	Tier  string `json:"tier"`
	Count int    `json:"count"`
}

// LatencyPercentilesResp holds latency percentiles in milliseconds.
type LatencyPercentilesResp struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// AnalyticsResp is the response for GET /v1/analytics.
type AnalyticsResp struct {
	Summary            SummaryStatsResp       `json:"summary"`
	RefusalsOverTime   []TimeSeriesBucketResp `json:"refusals_over_time"`
	TopReasons         []ReasonCountResp      `json:"top_reasons"`
	TopDeniedTools     []ToolCountResp        `json:"top_denied_tools"`
	TierBreakdown      []TierCountResp        `json:"tier_breakdown"`
	LatencyPercentiles LatencyPercentilesResp `json:"latency_percentiles"`
}

// ErrorResp is a standard error response body.
type ErrorResp struct {
	Detail string `json:"detail"`
}
