package api

import (
	"encoding/json"
	"time"
)

// --- POST /v1/analyze request/response ---

// IdentityReq carries optional caller identity attached to an analysis.
type IdentityReq struct {
	UserID   string `json:"user_id,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
}

// SDKReq identifies the client SDK that produced the request, for
// analytics attribution.
type SDKReq struct {
	Language string `json:"language,omitempty"`
	Version  string `json:"version,omitempty"`
}

// AnalyzeRequest is the JSON body for POST /v1/analyze. When session_id is
// set the turn runs against that conversation's session state; otherwise
// the call is stateless and history (if any) supplies recent context.
type AnalyzeRequest struct {
	Text      string            `json:"text"`
	SessionID string            `json:"session_id,omitempty"`
	History   []string          `json:"history,omitempty"`
	Identity  *IdentityReq      `json:"identity,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	TraceID   string            `json:"trace_id,omitempty"`
	SDK       *SDKReq           `json:"sdk,omitempty"`
}

// ResourceResp is one crisis support resource in the response.
type ResourceResp struct {
	Name         string `json:"name"`
	Contact      string `json:"contact"`
	Description  string `json:"description"`
	Availability string `json:"availability"`
}

// CrisisResp is the crisis payload attached to CRISIS-level responses.
type CrisisResp struct {
	CrisisType         string         `json:"crisis_type"`
	Severity           string         `json:"severity"`
	Resources          []ResourceResp `json:"resources"`
	RecommendedActions []string       `json:"recommended_actions"`
	UserMessage        string         `json:"user_message"`
}

// AnalyzeResponse is the JSON body returned by POST /v1/analyze.
type AnalyzeResponse struct {
	RequestID       string      `json:"request_id"`
	SessionID       string      `json:"session_id,omitempty"`
	ProtectionLevel string      `json:"protection_level"`
	TriggerCount    int         `json:"trigger_count"`
	Categories      []string    `json:"categories"`
	Indicators      []string    `json:"indicators"`
	Crisis          *CrisisResp `json:"crisis"`
	IsShadow        bool        `json:"is_shadow"`
	LatencyMs       float64     `json:"latency_ms"`
}

// --- Project CRUD ---

// CreateProjectReq is the JSON body for POST /api/haven/projects.
type CreateProjectReq struct {
	Name string `json:"name"`
}

// CreateProjectResp includes the plaintext API key (shown once).
type CreateProjectResp struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	APIKey           string    `json:"api_key"`
	APIKeyPrefix     string    `json:"api_key_prefix"`
	Mode             string    `json:"mode"`
	FailOpen         bool      `json:"fail_open"`
	AnalysesPerMonth *int      `json:"analyses_per_month"`
	CreatedAt        time.Time `json:"created_at"`
}

// UpdateProjectReq is the JSON body for PATCH /api/haven/projects/{id}.
type UpdateProjectReq struct {
	Name             *string `json:"name,omitempty"`
	Mode             *string `json:"mode,omitempty"`
	FailOpen         *bool   `json:"fail_open,omitempty"`
	AnalysesPerMonth *int    `json:"analyses_per_month,omitempty"`
}

// ProjectResp is a project without its plaintext key.
type ProjectResp struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	APIKeyPrefix     string    `json:"api_key_prefix"`
	Mode             string    `json:"mode"`
	FailOpen         bool      `json:"fail_open"`
	AnalysesPerMonth *int      `json:"analyses_per_month"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// RotateKeyResp includes the new plaintext API key (shown once).
type RotateKeyResp struct {
	APIKey       string `json:"api_key"`
	APIKeyPrefix string `json:"api_key_prefix"`
}

// --- Policy CRUD ---

// UpdatePolicyReq is the JSON body for PATCH/PUT policy endpoints.
type UpdatePolicyReq struct {
	EscalationConfig json.RawMessage `json:"escalation_config,omitempty"`
	CustomIndicators json.RawMessage `json:"custom_indicators,omitempty"`
}

// PolicyResp is the policy response body.
type PolicyResp struct {
	ID               string          `json:"id"`
	ProjectID        string          `json:"project_id"`
	EscalationConfig json.RawMessage `json:"escalation_config"`
	CustomIndicators json.RawMessage `json:"custom_indicators"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// --- Detection Events ---

// DetectionEventResp is a single persisted detection event.
type DetectionEventResp struct {
	RequestID      string    `json:"request_id"`
	ProjectID      string    `json:"project_id"`
	SessionID      *string   `json:"session_id"`
	Level          string    `json:"level"`
	SessionLevel   string    `json:"session_level"`
	TriggerCount   int       `json:"trigger_count"`
	Categories     []string  `json:"categories"`
	Indicators     []string  `json:"indicators"`
	IsCrisis       bool      `json:"is_crisis"`
	CrisisType     *string   `json:"crisis_type"`
	CrisisSeverity *string   `json:"crisis_severity"`
	IsShadow       bool      `json:"is_shadow"`
	UserID         *string   `json:"user_id"`
	ClientTraceID  *string   `json:"client_trace_id"`
	LatencyMs      float32   `json:"latency_ms"`
	Source         string    `json:"source"`
	Timestamp      time.Time `json:"timestamp"`
}

// EventListResp is a page of detection events.
type EventListResp struct {
	Events   []DetectionEventResp `json:"events"`
	Total    int                  `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

// --- Analytics ---

// AnalyticsResp aggregates detection analytics for the dashboard.
type AnalyticsResp struct {
	Summary            SummaryStatsResp       `json:"summary"`
	CrisesOverTime     []TimeSeriesBucketResp `json:"crises_over_time"`
	TopCategories      []CategoryCountResp    `json:"top_categories"`
	CrisisTypes        []CrisisTypeCountResp  `json:"crisis_types"`
	ShadowReport       ShadowReportResp       `json:"shadow_report"`
	LatencyPercentiles LatencyPercentilesResp `json:"latency_percentiles"`
	TopCrisisSessions  []SessionCountResp     `json:"top_crisis_sessions"`
}

// SummaryStatsResp holds aggregate counts.
type SummaryStatsResp struct {
	TotalAnalyses int `json:"total_analyses"`
	Crisis        int `json:"crisis"`
	Enhanced      int `json:"enhanced"`
	Standard      int `json:"standard"`
}

// TimeSeriesBucketResp holds an hourly count.
type TimeSeriesBucketResp struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

// CategoryCountResp holds a category and its count.
type CategoryCountResp struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// CrisisTypeCountResp holds a crisis type and its count.
type CrisisTypeCountResp struct {
	CrisisType string `json:"crisis_type"`
	Count      int    `json:"count"`
}

// ShadowReportResp holds shadow mode analysis.
type ShadowReportResp struct {
	Total         int `json:"total"`
	WouldCrisis   int `json:"would_crisis"`
	WouldEnhanced int `json:"would_enhanced"`
}

// LatencyPercentilesResp holds latency percentiles.
type LatencyPercentilesResp struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// SessionCountResp holds a session_id and its count.
type SessionCountResp struct {
	SessionID string `json:"session_id"`
	Count     int    `json:"count"`
}

// ErrorResp is a standard error response body.
type ErrorResp struct {
	Detail string `json:"detail"`
}
