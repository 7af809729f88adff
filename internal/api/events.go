package api

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/haven-ai/haven/internal/chread"
)

func (d *Dependencies) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "ClickHouse not configured"})
		return
	}

	q := r.URL.Query()
	projectID := q.Get("project_id")
	if projectID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "project_id query parameter is required"})
		return
	}

	params := chread.ListEventsParams{
		ProjectID: projectID,
		Page:      queryInt(q, "page", 1),
		PageSize:  queryInt(q, "page_size", 50),
	}
	if params.PageSize > 200 {
		params.PageSize = 200
	}
	if params.Page < 1 {
		params.Page = 1
	}

	if v := q.Get("level"); v != "" {
		params.Level = &v
	}
	if v := q.Get("crisis_type"); v != "" {
		params.CrisisType = &v
	}
	if v := q.Get("user_id"); v != "" {
		params.UserID = &v
	}
	if v := q.Get("session_id"); v != "" {
		params.SessionID = &v
	}
	if v := q.Get("category"); v != "" {
		params.Category = &v
	}
	if v := q.Get("is_shadow"); v != "" {
		b := v == "true" || v == "1"
		params.IsShadow = &b
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

	events, total, err := d.Reader.ListEvents(r.Context(), params)
	if err != nil {
		d.Logger.Error("failed to list events", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list events"})
		return
	}

	resp := EventListResp{
		Events:   make([]DetectionEventResp, 0, len(events)),
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}
	for _, e := range events {
		resp.Events = append(resp.Events, eventRowToResp(e))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (d *Dependencies) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "ClickHouse not configured"})
		return
	}

	requestID := r.PathValue("request_id")
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "project_id query parameter is required"})
		return
	}

	event, err := d.Reader.GetEvent(r.Context(), projectID, requestID)
	if err != nil {
		d.Logger.Error("failed to get event", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get event"})
		return
	}
	if event == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Event not found."})
		return
	}

	writeJSON(w, http.StatusOK, eventRowToResp(*event))
}

func (d *Dependencies) handleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "ClickHouse not configured"})
		return
	}

	q := r.URL.Query()
	projectID := q.Get("project_id")
	if projectID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "project_id query parameter is required"})
		return
	}

	days := queryInt(q, "days", 7)
	if days < 1 {
		days = 1
	}
	if days > 90 {
		days = 90
	}

	result, err := d.Reader.GetAnalytics(r.Context(), projectID, days)
	if err != nil {
		d.Logger.Error("failed to get analytics", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get analytics"})
		return
	}

	writeJSON(w, http.StatusOK, AnalyticsResp{
		Summary: SummaryStatsResp{
			TotalAnalyses: result.Summary.TotalAnalyses,
			Crisis:        result.Summary.Crisis,
			Enhanced:      result.Summary.Enhanced,
			Standard:      result.Summary.Standard,
		},
		CrisesOverTime: toTimeSeriesResp(result.CrisesOverTime),
		TopCategories:  toCategoryResp(result.TopCategories),
		CrisisTypes:    toCrisisTypeResp(result.CrisisTypes),
		ShadowReport: ShadowReportResp{
			Total:         result.ShadowReport.Total,
			WouldCrisis:   result.ShadowReport.WouldCrisis,
			WouldEnhanced: result.ShadowReport.WouldEnhanced,
		},
		LatencyPercentiles: LatencyPercentilesResp{
			P50: result.LatencyPercentiles.P50,
			P95: result.LatencyPercentiles.P95,
			P99: result.LatencyPercentiles.P99,
		},
		TopCrisisSessions: toSessionCountResp(result.TopCrisisSessions),
	})
}

// eventRowToResp converts a ClickHouse EventRow to the API response.
func eventRowToResp(e chread.EventRow) DetectionEventResp {
	categories := e.Categories
	if categories == nil {
		categories = []string{}
	}
	indicators := e.Indicators
	if indicators == nil {
		indicators = []string{}
	}

	return DetectionEventResp{
		RequestID:      e.RequestID,
		ProjectID:      e.ProjectID,
		SessionID:      nilIfEmpty(e.SessionID),
		Level:          e.Level,
		SessionLevel:   e.SessionLevel,
		TriggerCount:   int(e.TriggerCount),
		Categories:     categories,
		Indicators:     indicators,
		IsCrisis:       e.IsCrisis == 1,
		CrisisType:     nilIfEmpty(e.CrisisType),
		CrisisSeverity: nilIfEmpty(e.CrisisSeverity),
		IsShadow:       e.IsShadow == 1,
		UserID:         nilIfEmpty(e.UserID),
		ClientTraceID:  nilIfEmpty(e.ClientTraceID),
		LatencyMs:      e.LatencyMs,
		Source:         e.Source,
		Timestamp:      e.Timestamp,
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

func toCategoryResp(cats []chread.CategoryCount) []CategoryCountResp {
	out := make([]CategoryCountResp, len(cats))
	for i, c := range cats {
		out[i] = CategoryCountResp{Category: c.Category, Count: c.Count}
	}
	return out
}

func toCrisisTypeResp(types []chread.CrisisTypeCount) []CrisisTypeCountResp {
	out := make([]CrisisTypeCountResp, len(types))
	for i, t := range types {
		out[i] = CrisisTypeCountResp{CrisisType: t.CrisisType, Count: t.Count}
	}
	return out
}

func toSessionCountResp(sessions []chread.SessionCount) []SessionCountResp {
	out := make([]SessionCountResp, len(sessions))
	for i, s := range sessions {
		out[i] = SessionCountResp{SessionID: s.SessionID, Count: s.Count}
	}
	return out
}
