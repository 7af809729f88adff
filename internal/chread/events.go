// Package chread provides read access to the ClickHouse detection_events
// table for the events and analytics endpoints.
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

// Reader provides read access to the ClickHouse detection_events table.
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

// EventRow represents a single row from the detection_events table.
type EventRow struct {
	RequestID      string
	ProjectID      string
	SessionID      string
	Timestamp      time.Time
	Level          string
	SessionLevel   string
	TriggerCount   uint32
	Categories     []string
	Indicators     []string
	IsCrisis       uint8
	CrisisType     string
	CrisisSeverity string
	IsShadow       uint8
	PayloadPreview string
	UserID         string
	ClientTraceID  string
	LatencyMs      float32
	Source         string
}

// ListEventsParams holds filters and pagination for event listing.
type ListEventsParams struct {
	ProjectID  string
	Level      *string
	CrisisType *string
	UserID     *string
	SessionID  *string
	Category   *string
	IsShadow   *bool
	StartTime  *time.Time
	EndTime    *time.Time
	Page       int
	PageSize   int
}

const eventColumns = "request_id, project_id, session_id, timestamp, " +
	"level, session_level, trigger_count, categories, indicators, " +
	"is_crisis, crisis_type, crisis_severity, is_shadow, " +
	"payload_preview, user_id, client_trace_id, latency_ms, source"

func scanEvent(row driver.Rows, e *EventRow) error {
	return row.Scan(
		&e.RequestID, &e.ProjectID, &e.SessionID, &e.Timestamp,
		&e.Level, &e.SessionLevel, &e.TriggerCount, &e.Categories, &e.Indicators,
		&e.IsCrisis, &e.CrisisType, &e.CrisisSeverity, &e.IsShadow,
		&e.PayloadPreview, &e.UserID, &e.ClientTraceID, &e.LatencyMs, &e.Source,
	)
}

// ListEvents returns paginated, filtered detection events and the total count.
func (r *Reader) ListEvents(ctx context.Context, params ListEventsParams) ([]EventRow, int, error) {
	conditions := []string{"project_id = @project_id"}
	args := []any{
		clickhouse.Named("project_id", params.ProjectID),
	}

	if params.Level != nil {
		conditions = append(conditions, "level = @level")
		args = append(args, clickhouse.Named("level", *params.Level))
	}
	if params.CrisisType != nil {
		conditions = append(conditions, "crisis_type = @crisis_type")
		args = append(args, clickhouse.Named("crisis_type", *params.CrisisType))
	}
	if params.UserID != nil {
		conditions = append(conditions, "user_id = @user_id")
		args = append(args, clickhouse.Named("user_id", *params.UserID))
	}
	if params.SessionID != nil {
		conditions = append(conditions, "session_id = @session_id")
		args = append(args, clickhouse.Named("session_id", *params.SessionID))
	}
	if params.Category != nil {
		conditions = append(conditions, "has(categories, @category)")
		args = append(args, clickhouse.Named("category", *params.Category))
	}
	if params.IsShadow != nil {
		var v uint8
		if *params.IsShadow {
			v = 1
		}
		conditions = append(conditions, "is_shadow = @is_shadow")
		args = append(args, clickhouse.Named("is_shadow", v))
	}
	if params.StartTime != nil {
		conditions = append(conditions, "timestamp >= @start_time")
		args = append(args, clickhouse.Named("start_time", *params.StartTime))
	}
	if params.EndTime != nil {
		conditions = append(conditions, "timestamp <= @end_time")
		args = append(args, clickhouse.Named("end_time", *params.EndTime))
	}

	where := strings.Join(conditions, " AND ")
	offset := (params.Page - 1) * params.PageSize

	var total uint64
	countQuery := fmt.Sprintf("SELECT count() FROM detection_events WHERE %s", where)
	if err := r.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListEvents count: %w", err)
	}

	dataQuery := fmt.Sprintf(
		"SELECT %s FROM detection_events WHERE %s "+
			"ORDER BY timestamp DESC "+
			"LIMIT @limit OFFSET @offset",
		eventColumns, where,
	)
	args = append(args,
		clickhouse.Named("limit", uint32(params.PageSize)),
		clickhouse.Named("offset", uint32(offset)),
	)

	rows, err := r.conn.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListEvents query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		if err := scanEvent(rows, &e); err != nil {
			return nil, 0, fmt.Errorf("ListEvents scan: %w", err)
		}
		events = append(events, e)
	}

	return events, int(total), rows.Err()
}

// GetEvent returns a single event by project ID and request ID, or nil if not found.
func (r *Reader) GetEvent(ctx context.Context, projectID, requestID string) (*EventRow, error) {
	rows, err := r.conn.Query(ctx,
		fmt.Sprintf("SELECT %s FROM detection_events "+
			"WHERE project_id = @project_id AND request_id = @request_id "+
			"LIMIT 1", eventColumns),
		clickhouse.Named("project_id", projectID),
		clickhouse.Named("request_id", requestID),
	)
	if err != nil {
		return nil, fmt.Errorf("GetEvent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	// ClickHouse doesn't return sql.ErrNoRows, so check for an empty result.
	if !rows.Next() {
		return nil, rows.Err()
	}
	var e EventRow
	if err := scanEvent(rows, &e); err != nil {
		return nil, fmt.Errorf("GetEvent scan: %w", err)
	}
	return &e, nil
}

// SummaryStats holds aggregate counts.
type SummaryStats struct {
	TotalAnalyses int `json:"total_analyses"`
	Crisis        int `json:"crisis"`
	Enhanced      int `json:"enhanced"`
	Standard      int `json:"standard"`
}

// TimeSeriesBucket holds an hourly count.
type TimeSeriesBucket struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

// CategoryCount holds a category and its count.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// CrisisTypeCount holds a crisis type and its count.
type CrisisTypeCount struct {
	CrisisType string `json:"crisis_type"`
	Count      int    `json:"count"`
}

// ShadowReportStats holds shadow mode analysis.
type ShadowReportStats struct {
	Total         int `json:"total"`
	WouldCrisis   int `json:"would_crisis"`
	WouldEnhanced int `json:"would_enhanced"`
}

// LatencyStats holds latency percentiles.
type LatencyStats struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// SessionCount holds a session_id and its count.
type SessionCount struct {
	SessionID string `json:"session_id"`
	Count     int    `json:"count"`
}

// AnalyticsResult holds all analytics aggregations.
type AnalyticsResult struct {
	Summary            SummaryStats       `json:"summary"`
	CrisesOverTime     []TimeSeriesBucket `json:"crises_over_time"`
	TopCategories      []CategoryCount    `json:"top_categories"`
	CrisisTypes        []CrisisTypeCount  `json:"crisis_types"`
	ShadowReport       ShadowReportStats  `json:"shadow_report"`
	LatencyPercentiles LatencyStats       `json:"latency_percentiles"`
	TopCrisisSessions  []SessionCount     `json:"top_crisis_sessions"`
}

// GetAnalytics returns aggregated analytics for a project over the given number of days.
func (r *Reader) GetAnalytics(ctx context.Context, projectID string, days int) (*AnalyticsResult, error) {
	now := time.Now().UTC()
	rangeStart := now.Add(-time.Duration(days) * 24 * time.Hour)
	dayStart := now.Add(-24 * time.Hour)

	baseArgs := []any{
		clickhouse.Named("project_id", projectID),
		clickhouse.Named("range_start", rangeStart),
	}

	result := &AnalyticsResult{}

	// Summary counts
	var total, crisis, enhanced, standard uint64
	err := r.conn.QueryRow(ctx,
		"SELECT count() as total_analyses, "+
			"countIf(session_level = 'crisis') as crisis, "+
			"countIf(session_level = 'enhanced') as enhanced, "+
			"countIf(session_level = 'standard') as standard "+
			"FROM detection_events "+
			"WHERE project_id = @project_id AND timestamp >= @range_start",
		baseArgs...,
	).Scan(&total, &crisis, &enhanced, &standard)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics summary: %w", err)
	}
	result.Summary = SummaryStats{
		TotalAnalyses: int(total),
		Crisis:        int(crisis),
		Enhanced:      int(enhanced),
		Standard:      int(standard),
	}

	// Crises over time (hourly)
	cotRows, err := r.conn.Query(ctx,
		"SELECT toStartOfHour(timestamp) as hour, count() as count "+
			"FROM detection_events "+
			"WHERE project_id = @project_id AND is_crisis = 1 "+
			"AND timestamp >= @range_start "+
			"GROUP BY hour ORDER BY hour",
		baseArgs...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics crises_over_time: %w", err)
	}
	defer func() { _ = cotRows.Close() }()
	for cotRows.Next() {
		var hour time.Time
		var count uint64
		if err := cotRows.Scan(&hour, &count); err != nil {
			return nil, fmt.Errorf("GetAnalytics crises_over_time scan: %w", err)
		}
		result.CrisesOverTime = append(result.CrisesOverTime, TimeSeriesBucket{
			Hour:  hour.Format(time.RFC3339),
			Count: int(count),
		})
	}

	// Top categories among elevated detections
	catRows, err := r.conn.Query(ctx,
		"SELECT arrayJoin(categories) as category, count() as count "+
			"FROM detection_events "+
			"WHERE project_id = @project_id AND level IN ('enhanced', 'crisis') "+
			"AND timestamp >= @range_start "+
			"GROUP BY category ORDER BY count DESC LIMIT 10",
		baseArgs...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics top_categories: %w", err)
	}
	defer func() { _ = catRows.Close() }()
	for catRows.Next() {
		var cat string
		var count uint64
		if err := catRows.Scan(&cat, &count); err != nil {
			return nil, fmt.Errorf("GetAnalytics top_categories scan: %w", err)
		}
		result.TopCategories = append(result.TopCategories, CategoryCount{
			Category: cat, Count: int(count),
		})
	}

	// Crisis type breakdown
	ctRows, err := r.conn.Query(ctx,
		"SELECT crisis_type, count() as count "+
			"FROM detection_events "+
			"WHERE project_id = @project_id AND is_crisis = 1 "+
			"AND timestamp >= @range_start "+
			"GROUP BY crisis_type ORDER BY count DESC",
		baseArgs...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics crisis_types: %w", err)
	}
	defer func() { _ = ctRows.Close() }()
	for ctRows.Next() {
		var ct string
		var count uint64
		if err := ctRows.Scan(&ct, &count); err != nil {
			return nil, fmt.Errorf("GetAnalytics crisis_types scan: %w", err)
		}
		result.CrisisTypes = append(result.CrisisTypes, CrisisTypeCount{
			CrisisType: ct, Count: int(count),
		})
	}

	// Shadow report
	var shadowTotal, wouldCrisis, wouldEnhanced uint64
	err = r.conn.QueryRow(ctx,
		"SELECT count() as total, "+
			"countIf(level = 'crisis') as would_crisis, "+
			"countIf(level = 'enhanced') as would_enhanced "+
			"FROM detection_events "+
			"WHERE project_id = @project_id AND is_shadow = 1 "+
			"AND timestamp >= @range_start",
		baseArgs...,
	).Scan(&shadowTotal, &wouldCrisis, &wouldEnhanced)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics shadow_report: %w", err)
	}
	result.ShadowReport = ShadowReportStats{
		Total: int(shadowTotal), WouldCrisis: int(wouldCrisis), WouldEnhanced: int(wouldEnhanced),
	}

	// Latency percentiles (last 24h)
	var p50, p95, p99 float64
	err = r.conn.QueryRow(ctx,
		"SELECT quantile(0.5)(latency_ms) as p50, "+
			"quantile(0.95)(latency_ms) as p95, "+
			"quantile(0.99)(latency_ms) as p99 "+
			"FROM detection_events "+
			"WHERE project_id = @project_id AND timestamp >= @day_start",
		clickhouse.Named("project_id", projectID),
		clickhouse.Named("day_start", dayStart),
	).Scan(&p50, &p95, &p99)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics latency: %w", err)
	}
	result.LatencyPercentiles = LatencyStats{
		P50: safeFloat(p50), P95: safeFloat(p95), P99: safeFloat(p99),
	}

	// Sessions with the most crisis-level turns
	sessRows, err := r.conn.Query(ctx,
		"SELECT session_id, count() as count "+
			"FROM detection_events "+
			"WHERE project_id = @project_id AND session_level = 'crisis' "+
			"AND session_id != '' AND timestamp >= @range_start "+
			"GROUP BY session_id ORDER BY count DESC LIMIT 10",
		baseArgs...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics top_sessions: %w", err)
	}
	defer func() { _ = sessRows.Close() }()
	for sessRows.Next() {
		var sid string
		var count uint64
		if err := sessRows.Scan(&sid, &count); err != nil {
			return nil, fmt.Errorf("GetAnalytics top_sessions scan: %w", err)
		}
		result.TopCrisisSessions = append(result.TopCrisisSessions, SessionCount{
			SessionID: sid, Count: int(count),
		})
	}

	// Ensure slices are non-nil for JSON serialization
	if result.CrisesOverTime == nil {
		result.CrisesOverTime = []TimeSeriesBucket{}
	}
	if result.TopCategories == nil {
		result.TopCategories = []CategoryCount{}
	}
	if result.CrisisTypes == nil {
		result.CrisisTypes = []CrisisTypeCount{}
	}
	if result.TopCrisisSessions == nil {
		result.TopCrisisSessions = []SessionCount{}
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
