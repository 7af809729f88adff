package storage

import "time"

// EventWriter is the interface for persisting detection events.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *DetectionEvent)
	Close()
}

// DetectionEvent represents a single analyze() result to be persisted.
type DetectionEvent struct {
	RequestID      string
	ProjectID      string
	SessionID      string
	Timestamp      time.Time
	Level          string // standard | enhanced | crisis
	SessionLevel   string // level after hysteresis, equals Level for stateless calls
	TriggerCount   uint32
	Categories     []string
	Indicators     []string
	IsCrisis       bool
	CrisisType     string // empty when not a crisis
	CrisisSeverity string // empty when not a crisis
	IsShadow       bool
	PayloadPreview string // First 500 chars
	PayloadHash    string // SHA256 of full payload
	PayloadSize    uint32
	UserID         string
	ClientTraceID  string
	Metadata       map[string]string
	LatencyMs      float32
	Source         string // "sdk" or "gateway"
	SDKLanguage    string
	SDKVersion     string
}

// PayloadPreviewLength is the max chars stored in payload_preview.
const PayloadPreviewLength = 500

// TruncatePayload returns the first N characters (runes) of a payload for
// preview storage. It never splits a multi-byte UTF-8 character.
func TruncatePayload(payload string, maxLen int) string {
	runes := []rune(payload)
	if len(runes) <= maxLen {
		return payload
	}
	return string(runes[:maxLen])
}
