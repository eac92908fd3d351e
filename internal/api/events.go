package api

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/triage-ai/corral/internal/chread"
)

func (d *Dependencies) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "ClickHouse not configured"})
		return
	}
	ws := workspaceFromContext(r.Context())
	if ws == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing workspace context"})
		return
	}

	q := r.URL.Query()
	params := chread.ListDecisionsParams{
		WorkspaceID: ws.WorkspaceID,
		Page:        queryInt(q, "page", 1),
		PageSize:    queryInt(q, "page_size", 50),
	}
	if params.PageSize > 200 {
		params.PageSize = 200
	}
	if params.Page < 1 {
		params.Page = 1
	}

	if v := q.Get("kind"); v != "" {
		params.Kind = &v
	}
	if v := q.Get("tier"); v != "" {
		params.Tier = &v
	}
	if v := q.Get("skill"); v != "" {
		params.Skill = &v
	}
	if v := q.Get("tool"); v != "" {
		params.Tool = &v
	}
	if v := q.Get("channel"); v != "" {
		params.Channel = &v
	}
	if v := q.Get("sender_id"); v != "" {
		params.SenderID = &v
	}
	if v := q.Get("eligible"); v != "" {
		b := v == "true" || v == "1"
		params.Eligible = &b
	}
	if v := q.Get("start_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.StartTime = &t
		}
	}
	if v := q.Get("end_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.EndTime = &t
		}
	}

	events, total, err := d.Reader.ListDecisions(r.Context(), params)
	if err != nil {
		d.Logger.Error("failed to list events", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list events"})
		return
	}

	resp := EventListResp{
		Events:   make([]DecisionEventResp, 0, len(events)),
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}
	for _, e := range events {
		resp.Events = append(resp.Events, decisionRowToResp(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Dependencies) handleGetRequestEvents(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "ClickHouse not configured"})
		return
	}
	ws := workspaceFromContext(r.Context())
	if ws == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing workspace context"})
		return
	}

	requestID := r.PathValue("request_id")
	events, err := d.Reader.GetRequestDecisions(r.Context(), ws.WorkspaceID, requestID)
	if err != nil {
		d.Logger.Error("failed to get request events", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get request events"})
		return
	}
	if len(events) == 0 {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Request not found."})
		return
	}

	resp := RequestDecisionsResp{
		RequestID: requestID,
		Events:    make([]DecisionEventResp, 0, len(events)),
	}
	for _, e := range events {
		resp.Events = append(resp.Events, decisionRowToResp(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Dependencies) handleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "ClickHouse not configured"})
		return
	}
	ws := workspaceFromContext(r.Context())
	if ws == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing workspace context"})
		return
	}

	days := queryInt(r.URL.Query(), "days", 7)
	if days < 1 {
		days = 1
	}
	if days > 90 {
		days = 90
	}

	result, err := d.Reader.GetAnalytics(r.Context(), ws.WorkspaceID, days)
	if err != nil {
		d.Logger.Error("failed to get analytics", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get analytics"})
		return
	}

	writeJSON(w, http.StatusOK, AnalyticsResp{
		Summary: SummaryStatsResp{
			TotalDecisions: result.Summary.TotalDecisions,
			Resolves:       result.Summary.Resolves,
			Checks:         result.Summary.Checks,
			Refusals:       result.Summary.Refusals,
		},
		RefusalsOverTime: toTimeSeriesResp(result.RefusalsOverTime),
		TopReasons:       toReasonResp(result.TopReasons),
		TopDeniedTools:   toToolResp(result.TopDeniedTools),
		TierBreakdown:    toTierResp(result.TierBreakdown),
		LatencyPercentiles: LatencyPercentilesResp{
			P50: result.LatencyPercentiles.P50,
			P95: result.LatencyPercentiles.P95,
			P99: result.LatencyPercentiles.P99,
		},
	})
}

// decisionRowToResp converts a ClickHouse DecisionRow to the API response.
func decisionRowToResp(e chread.DecisionRow) DecisionEventResp {
	return DecisionEventResp{
		EventID:    e.EventID,
		RequestID:  e.RequestID,
		Kind:       e.Kind,
		Channel:    nilIfEmpty(e.Channel),
		SenderID:   nilIfEmpty(e.SenderID),
		Tier:       e.Tier,
		Skill:      e.Skill,
		Scope:      e.Scope,
		Tool:       nilIfEmpty(e.Tool),
		Eligible:   e.Eligible == 1,
		Reason:     nilIfEmpty(e.Reason),
		AllowCount: e.AllowCount,
		DenyCount:  e.DenyCount,
		LatencyMs:  e.LatencyMs,
		CreatedAt:  e.CreatedAt,
	}
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func queryInt(q url.Values, key string, defaultVal int) int {
	v := q.Get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func toTimeSeriesResp(buckets []chread.TimeSeriesBucket) []TimeSeriesBucketResp {
	out := make([]TimeSeriesBucketResp, len(buckets))
	for i, b := range buckets {
		out[i] = TimeSeriesBucketResp{Hour: b.Hour, Count: b.Count}
	}
	return out
}

func toReasonResp(reasons []chread.ReasonCount) []ReasonCountResp {
	out := make([]ReasonCountResp, len(reasons))
	for i, c := range reasons {
		out[i] = ReasonCountResp{Reason: c.Reason, Count: c.Count}
	}
	return out
}

func toToolResp(tools []chread.ToolCount) []ToolCountResp {
	out := make([]ToolCountResp, len(tools))
	for i, c := range tools {
		out[i] = ToolCountResp{Tool: c.Tool, Count: c.Count}
	}
	return out
}

func toTierResp(tiers []chread.TierCount) []TierCountResp {
	out := make([]TierCountResp, len(tiers))
	for i, c := range tiers {
		out[i] = TierCountResp{Tier: c.Tier, Count: c.Count}
	}
	return out
}
