package api

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/haven-ai/haven/internal/alert"
	"github.com/haven-ai/haven/internal/engine"
	"github.com/haven-ai/haven/internal/storage"
)

const maxTextBytes = 64 * 1024

// handleAnalyze implements POST /v1/analyze.
// Auth middleware has already validated the Bearer token and injected the project.
func (d *Dependencies) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req AnalyzeRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "text is required"})
		return
	}
	if len(req.Text) > maxTextBytes {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "text exceeds maximum length"})
		return
	}

	proj := projectFromContext(r.Context())
	if proj == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing project context"})
		return
	}

	// Session mode when session_id is set; stateless otherwise. A stateless
	// call may still pass explicit history.
	var det engine.DetectionResult
	if req.SessionID != "" {
		d.Sessions.Do(proj.ID, req.SessionID, func(s *engine.Session) {
			det = d.Detector.DetectWithSessionPolicy(s, req.Text, proj.Overrides)
		})
	} else {
		det = d.Detector.DetectWithPolicy(req.Text, req.History, proj.Overrides)
	}

	var crisis *engine.CrisisResult
	if det.IsCrisis() {
		cr, err := d.Detector.AssessCrisis(det)
		if err == nil {
			crisis = &cr
		}
	}

	// Shadow mode: record the real outcome but report STANDARD with no
	// crisis payload, so integrators can evaluate without changing behavior.
	isShadow := proj.Mode == "shadow" && det.Level != engine.LevelStandard

	requestID := uuid.New().String()
	latencyMs := float64(time.Since(start)) / float64(time.Millisecond)

	// Fire-and-forget: persist the event and notify webhooks.
	d.writeDetectionEvent(req, proj, requestID, det, crisis, isShadow, float32(latencyMs))
	if crisis != nil && !isShadow {
		d.dispatchAlert(req, proj.ID, requestID, det, crisis)
	}

	resp := AnalyzeResponse{
		RequestID:       requestID,
		SessionID:       req.SessionID,
		ProtectionLevel: det.Level.String(),
		TriggerCount:    det.TriggerCount,
		Categories:      categoryNames(det),
		Indicators:      det.Indicators,
		IsShadow:        isShadow,
		LatencyMs:       float64(time.Since(start)) / float64(time.Millisecond),
	}
	if resp.Categories == nil {
		resp.Categories = []string{}
	}
	if resp.Indicators == nil {
		resp.Indicators = []string{}
	}

	if isShadow {
		resp.ProtectionLevel = engine.LevelStandard.String()
	} else if crisis != nil {
		resp.Crisis = crisisToResp(*crisis)
	}

	writeJSON(w, http.StatusOK, resp)
}

func categoryNames(det engine.DetectionResult) []string {
	names := make([]string, 0, len(det.Categories))
	for _, c := range det.Categories {
		names = append(names, c.String())
	}
	return names
}

func crisisToResp(cr engine.CrisisResult) *CrisisResp {
	resources := make([]ResourceResp, 0, len(cr.Resources))
	for _, res := range cr.Resources {
		resources = append(resources, ResourceResp{
			Name:         res.Name,
			Contact:      res.Contact,
			Description:  res.Description,
			Availability: res.Availability,
		})
	}
	return &CrisisResp{
		CrisisType:         cr.Type.String(),
		Severity:           cr.Severity,
		Resources:          resources,
		RecommendedActions: cr.Actions,
		UserMessage:        cr.UserMessage,
	}
}

// writeDetectionEvent builds a DetectionEvent and fires it to the async writer.
func (d *Dependencies) writeDetectionEvent(
	req AnalyzeRequest,
	proj *authProject,
	requestID string,
	det engine.DetectionResult,
	crisis *engine.CrisisResult,
	isShadow bool,
	latencyMs float32,
) {
	var userID string
	if req.Identity != nil {
		userID = req.Identity.UserID
	}

	var sdkLanguage, sdkVersion string
	if req.SDK != nil {
		sdkLanguage = req.SDK.Language
		sdkVersion = req.SDK.Version
	}

	var crisisType, crisisSeverity string
	if crisis != nil {
		crisisType = crisis.Type.String()
		crisisSeverity = crisis.Severity
	}

	hashBytes := sha256.Sum256([]byte(req.Text))

	// det.Level carries the session hysteresis; the turn's own level is
	// recomputed from the trigger count for analytics.
	turnLevel := engine.Classify(det.TriggerCount, proj.Overrides.Apply(d.Detector.Config()))

	event := &storage.DetectionEvent{
		RequestID:      requestID,
		ProjectID:      proj.ID,
		SessionID:      req.SessionID,
		Timestamp:      time.Now(),
		Level:          turnLevel.String(),
		SessionLevel:   det.Level.String(),
		TriggerCount:   uint32(det.TriggerCount),
		Categories:     categoryNames(det),
		Indicators:     det.Indicators,
		IsCrisis:       det.IsCrisis(),
		CrisisType:     crisisType,
		CrisisSeverity: crisisSeverity,
		IsShadow:       isShadow,
		PayloadPreview: storage.TruncatePayload(req.Text, storage.PayloadPreviewLength),
		PayloadHash:    hex.EncodeToString(hashBytes[:]),
		PayloadSize:    uint32(len(req.Text)),
		UserID:         userID,
		ClientTraceID:  req.TraceID,
		Metadata:       req.Metadata,
		LatencyMs:      latencyMs,
		Source:         "sdk",
		SDKLanguage:    sdkLanguage,
		SDKVersion:     sdkVersion,
	}

	d.Writer.Write(event)
}

// dispatchAlert fans the crisis out to configured webhooks.
func (d *Dependencies) dispatchAlert(
	req AnalyzeRequest,
	projectID, requestID string,
	det engine.DetectionResult,
	crisis *engine.CrisisResult,
) {
	if d.Alerts == nil {
		return
	}
	d.Alerts.Dispatch(alert.AlertEvent{
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		RequestID:    requestID,
		ProjectID:    projectID,
		SessionID:    req.SessionID,
		Level:        det.Level.String(),
		TriggerCount: det.TriggerCount,
		Categories:   categoryNames(det),
		CrisisType:   crisis.Type.String(),
		Severity:     crisis.Severity,
	})
}
