// Package chread provides read access to the ClickHouse decision_events table.
package chread

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// Reader provides read queries over decision_events.
type Reader struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewReader opens a ClickHouse connection for read queries.
func NewReader(dsn string, logger *zap.Logger) (*Reader, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}

	return &Reader{conn: conn, logger: logger}, nil
}

// Close closes the ClickHouse connection.
func (r *Reader) Close() error {
	return r.conn.Close()
}

// DecisionRow represents a single row from the decision_events table.
type DecisionRow struct {
	EventID     string
	WorkspaceID string
	RequestID   string
	Kind        string
	Channel     string
	SenderID    string
	Tier        string
	Skill       string
	Scope       string
	Tool        string
	Eligible    uint8
	Reason      string
	AllowCount  uint32
	DenyCount   uint32
	PolicyJSON  string
	LatencyMs   float32
	CreatedAt   time.Time
}

// ListDecisionsParams holds filters and pagination for decision listing.
type ListDecisionsParams struct {
	WorkspaceID string
	Kind        *string
	Tier        *string
	Skill       *string
	Tool        *string
	Channel     *string
	SenderID    *string
	Eligible    *bool
	StartTime   *time.Time
	EndTime     *time.Time
	Page        int
	PageSize    int
}

// ListDecisions returns paginated, filtered decision events and the total count.
func (r *Reader) ListDecisions(ctx context.Context, params ListDecisionsParams) ([]DecisionRow, int, error) {
	conditions := []string{"workspace_id = @workspace_id"}
	args := []any{
		clickhouse.Named("workspace_id", params.WorkspaceID),
	}

	if params.Kind != nil {
		conditions = append(conditions, "kind = @kind")
		args = append(args, clickhouse.Named("kind", *params.Kind))
	}
	if params.Tier != nil {
		conditions = append(conditions, "tier = @tier")
		args = append(args, clickhouse.Named("tier", *params.Tier))
	}
	if params.Skill != nil {
		conditions = append(conditions, "skill = @skill")
		args = append(args, clickhouse.Named("skill", *params.Skill))
	}
	if params.Tool != nil {
		conditions = append(conditions, "tool = @tool")
		args = append(args, clickhouse.Named("tool", *params.Tool))
	}
	if params.Channel != nil {
		conditions = append(conditions, "channel = @channel")
		args = append(args, clickhouse.Named("channel", *params.Channel))
	}
	if params.SenderID != nil {
		conditions = append(conditions, "sender_id = @sender_id")
		args = append(args, clickhouse.Named("sender_id", *params.SenderID))
	}
	if params.Eligible != nil {
		var v uint8
		if *params.Eligible {
			v = 1
		}
		conditions = append(conditions, "eligible = @eligible")
		args = append(args, clickhouse.Named("eligible", v))
	}
	if params.StartTime != nil {
		conditions = append(conditions, "created_at >= @start_time")
		args = append(args, clickhouse.Named("start_time", *params.StartTime))
	}
	if params.EndTime != nil {
		conditions = append(conditions, "created_at <= @end_time")
		args = append(args, clickhouse.Named("end_time", *params.EndTime))
	}

	where := strings.Join(conditions, " AND ")
	offset := (params.Page - 1) * params.PageSize

	// Count query
	var total uint64
	countQuery := fmt.Sprintf("SELECT count() FROM decision_events WHERE %s", where)
	if err := r.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListDecisions count: %w", err)
	}

	// Data query
	dataQuery := fmt.Sprintf(
		"SELECT event_id, workspace_id, request_id, kind, channel, sender_id, tier, "+
			"skill, scope, tool, eligible, reason, "+
			"allow_count, deny_count, policy_json, latency_ms, created_at "+
			"FROM decision_events WHERE %s "+
			"ORDER BY created_at DESC "+
			"LIMIT @limit OFFSET @offset",
		where,
	)
	args = append(args,
		clickhouse.Named("limit", uint32(params.PageSize)),
		clickhouse.Named("offset", uint32(offset)),
	)

	rows, err := r.conn.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListDecisions query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []DecisionRow
	for rows.Next() {
		var e DecisionRow
		if err := rows.Scan(
			&e.EventID, &e.WorkspaceID, &e.RequestID, &e.Kind, &e.Channel, &e.SenderID, &e.Tier,
			&e.Skill, &e.Scope, &e.Tool, &e.Eligible, &e.Reason,
			&e.AllowCount, &e.DenyCount, &e.PolicyJSON, &e.LatencyMs, &e.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("ListDecisions scan: %w", err)
		}
		events = append(events, e)
	}

	return events, int(total), rows.Err()
}

// GetRequestDecisions returns every decision row written under one request ID,
// oldest first. A resolve call writes one row per skill, so a single request
// usually maps to several rows.
func (r *Reader) GetRequestDecisions(ctx context.Context, workspaceID, requestID string) ([]DecisionRow, error) {
	rows, err := r.conn.Query(ctx,
		"SELECT event_id, workspace_id, request_id, kind, channel, sender_id, tier, "+
			"skill, scope, tool, eligible, reason, "+
			"allow_count, deny_count, policy_json, latency_ms, created_at "+
			"FROM decision_events "+
			"WHERE workspace_id = @workspace_id AND request_id = @request_id "+
			"ORDER BY created_at ASC",
		clickhouse.Named("workspace_id", workspaceID),
		clickhouse.Named("request_id", requestID),
	)
	if err != nil {
		return nil, fmt.Errorf("GetRequestDecisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []DecisionRow
	for rows.Next() {
		var e DecisionRow
		if err := rows.Scan(
			&e.EventID, &e.WorkspaceID, &e.RequestID, &e.Kind, &e.Channel, &e.SenderID, &e.Tier,
			&e.Skill, &e.Scope, &e.Tool, &e.Eligible, &e.Reason,
			&e.AllowCount, &e.DenyCount, &e.PolicyJSON, &e.LatencyMs, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("GetRequestDecisions scan: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// SummaryStats holds aggregate counts.
type SummaryStats struct {
	TotalDecisions int `json:"total_decisions"`
	Resolves       int `json:"resolves"`
	Checks         int `json:"checks"`
	Refusals       int `json:"refusals"`
}

// TimeSeriesBucket holds an hourly count.
type TimeSeriesBucket struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

// ReasonCount holds a refusal reason and its count.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// ToolCount holds a tool name and its count.
type ToolCount struct {
	Tool  string `json:"tool"`
	Count int    `json:"count"`
}

// TierCount holds a tier and its count.
type TierCount struct {
	Tier  string `json:"tier"`
	Count int    `json:"count"`
}

// LatencyStats holds latency percentiles.
type LatencyStats struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// AnalyticsResult holds all analytics aggregations.
type AnalyticsResult struct {
	Summary            SummaryStats       `json:"summary"`
	RefusalsOverTime   []TimeSeriesBucket `json:"refusals_over_time"`
	TopReasons         []ReasonCount      `json:"top_reasons"`
	TopDeniedTools     []ToolCount        `json:"top_denied_tools"`
	TierBreakdown      []TierCount        `json:"tier_breakdown"`
	LatencyPercentiles LatencyStats       `json:"latency_percentiles"`
}

// GetAnalytics returns aggregated analytics for a workspace over the given number of days.
func (r *Reader) GetAnalytics(ctx context.Context, workspaceID string, days int) (*AnalyticsResult, error) {
	now := time.Now().UTC()
	rangeStart := now.Add(-time.Duration(days) * 24 * time.Hour)
	dayStart := now.Add(-24 * time.Hour)

	baseArgs := []any{
		clickhouse.Named("workspace_id", workspaceID),
		clickhouse.Named("range_start", rangeStart),
	}

	result := &AnalyticsResult{}

	// Summary counts
	var total, resolves, checks, refusals uint64
	err := r.conn.QueryRow(ctx,
		"SELECT count() as total, "+
			"countIf(kind = 'resolve') as resolves, "+
			"countIf(kind = 'check') as checks, "+
			"countIf(eligible = 0) as refusals "+
			"FROM decision_events "+
			"WHERE workspace_id = @workspace_id AND created_at >= @range_start",
		baseArgs...,
	).Scan(&total, &resolves, &checks, &refusals)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics summary: %w", err)
	}
	result.Summary = SummaryStats{
		TotalDecisions: int(total),
		Resolves:       int(resolves),
		Checks:         int(checks),
		Refusals:       int(refusals),
	}

	// Refusals over time (hourly)
	rotRows, err := r.conn.Query(ctx,
		"SELECT toStartOfHour(created_at) as hour, count() as count "+
			"FROM decision_events "+
			"WHERE workspace_id = @workspace_id AND eligible = 0 "+
			"AND created_at >= @range_start "+
			"GROUP BY hour ORDER BY hour",
		baseArgs...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics refusals_over_time: %w", err)
	}
	defer func() { _ = rotRows.Close() }()
	for rotRows.Next() {
		var hour time.Time
		var count uint64
		if err := rotRows.Scan(&hour, &count); err != nil {
			return nil, fmt.Errorf("GetAnalytics refusals_over_time scan: %w", err)
		}
		result.RefusalsOverTime = append(result.RefusalsOverTime, TimeSeriesBucket{
			Hour:  hour.Format(time.RFC3339),
			Count: int(count),
		})
	}

	// Top refusal reasons
	reasonRows, err := r.conn.Query(ctx,
		"SELECT reason, count() as count "+
			"FROM decision_events "+
			"WHERE workspace_id = @workspace_id AND eligible = 0 AND reason != '' "+
			"AND created_at >= @range_start "+
			"GROUP BY reason ORDER BY count DESC LIMIT 10",
		baseArgs...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics top_reasons: %w", err)
	}
	defer func() { _ = reasonRows.Close() }()
	for reasonRows.Next() {
		var reason string
		var count uint64
		if err := reasonRows.Scan(&reason, &count); err != nil {
			return nil, fmt.Errorf("GetAnalytics top_reasons scan: %w", err)
		}
		result.TopReasons = append(result.TopReasons, ReasonCount{
			Reason: reason, Count: int(count),
		})
	}

	// Top denied tools (dispatch checks only)
	toolRows, err := r.conn.Query(ctx,
		"SELECT tool, count() as count "+
			"FROM decision_events "+
			"WHERE workspace_id = @workspace_id AND kind = 'check' AND eligible = 0 "+
			"AND tool != '' AND created_at >= @range_start "+
			"GROUP BY tool ORDER BY count DESC LIMIT 10",
		baseArgs...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics top_denied_tools: %w", err)
	}
	defer func() { _ = toolRows.Close() }()
	for toolRows.Next() {
		var tool string
		var count uint64
		if err := toolRows.Scan(&tool, &count); err != nil {
			return nil, fmt.Errorf("GetAnalytics top_denied_tools scan: %w", err)
		}
		result.TopDeniedTools = append(result.TopDeniedTools, ToolCount{
			Tool: tool, Count: int(count),
		})
	}

	// Tier breakdown
	tierRows, err := r.conn.Query(ctx,
		"SELECT tier, count() as count "+
			"FROM decision_events "+
			"WHERE workspace_id = @workspace_id AND created_at >= @range_start "+
			"GROUP BY tier ORDER BY count DESC",
		baseArgs...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics tier_breakdown: %w", err)
	}
	defer func() { _ = tierRows.Close() }()
	for tierRows.Next() {
		var t string
		var count uint64
		if err := tierRows.Scan(&t, &count); err != nil {
			return nil, fmt.Errorf("GetAnalytics tier_breakdown scan: %w", err)
		}
		result.TierBreakdown = append(result.TierBreakdown, TierCount{
			Tier: t, Count: int(count),
		})
	}

	// Latency percentiles (last 24h)
	var p50, p95, p99 float64
	err = r.conn.QueryRow(ctx,
		"SELECT quantile(0.5)(latency_ms) as p50, "+
			"quantile(0.95)(latency_ms) as p95, "+
			"quantile(0.99)(latency_ms) as p99 "+
			"FROM decision_events "+
			"WHERE workspace_id = @workspace_id AND created_at >= @day_start",
		clickhouse.Named("workspace_id", workspaceID),
		clickhouse.Named("day_start", dayStart),
	).Scan(&p50, &p95, &p99)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics latency: %w", err)
	}
	result.LatencyPercentiles = LatencyStats{
		P50: safeFloat(p50), P95: safeFloat(p95), P99: safeFloat(p99),
	}

	// Ensure slices are non-nil for JSON serialization
	if result.RefusalsOverTime == nil {
		result.RefusalsOverTime = []TimeSeriesBucket{}
	}
	if result.TopReasons == nil {
		result.TopReasons = []ReasonCount{}
	}
	if result.TopDeniedTools == nil {
		result.TopDeniedTools = []ToolCount{}
	}
	if result.TierBreakdown == nil {
		result.TierBreakdown = []TierCount{}
	}

	return result, nil
}

// safeFloat replaces NaN/Inf with 0.0.
// ClickHouse returns NaN for quantile() on empty result sets.
func safeFloat(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0.0
	}
	return f
}
