// Package engine implements the vulnerability-signal detection core: the
// indicator matcher, the protection-level classifier with session
// hysteresis, and the crisis classifier. The engine is pure over an injected
// read-only taxonomy; the only mutable state is the per-conversation
// Session.
package engine

import (
	"sync/atomic"

	"github.com/haven-ai/haven/internal/taxonomy"
)

// Detector is the engine facade. The taxonomy lives behind an atomic
// pointer so a reload publishes a complete new taxonomy at once: in-flight
// detections keep the reference they loaded and never observe a partial
// update. Safe for concurrent use across many sessions.
type Detector struct {
	tax atomic.Pointer[taxonomy.Taxonomy]
	cfg EscalationConfig
}

// NewDetector creates a detector over a validated taxonomy.
func NewDetector(tax *taxonomy.Taxonomy, cfg EscalationConfig) *Detector {
	d := &Detector{cfg: cfg}
	d.tax.Store(tax)
	return d
}

// Reload atomically swaps in a new taxonomy.
func (d *Detector) Reload(tax *taxonomy.Taxonomy) {
	d.tax.Store(tax)
}

// Config returns the detector's server-default escalation config.
func (d *Detector) Config() EscalationConfig {
	return d.cfg
}

// Detect analyzes a single message, optionally with explicit recent history.
// Only the trailing HistoryWindow entries of history contribute matches; a
// phrase appearing only in history still counts toward escalation for this
// turn. Stateless: no session, no hysteresis.
func (d *Detector) Detect(text string, history []string) DetectionResult {
	return d.detect(text, history, d.cfg, nil)
}

// DetectWithPolicy is Detect with per-project overrides applied: escalation
// thresholds and any custom indicator phrases.
func (d *Detector) DetectWithPolicy(text string, history []string, overrides *PolicyOverrides) DetectionResult {
	return d.detect(text, history, overrides.Apply(d.cfg), overrides.customIndicators())
}

func (d *Detector) detect(text string, history []string, cfg EscalationConfig, extra CustomIndicators) DetectionResult {
	tax := d.tax.Load()
	set := match(tax, extra, text, history, cfg.HistoryWindow)
	count := set.TriggerCount()

	// The snapshot feeds crisis-type disambiguation later, so it must not
	// carry entries the window excluded from matching.
	snapshot := history
	if cfg.HistoryWindow <= 0 {
		snapshot = nil
	} else if len(history) > cfg.HistoryWindow {
		snapshot = history[len(history)-cfg.HistoryWindow:]
	}

	return DetectionResult{
		Level:        classify(count, cfg),
		TriggerCount: count,
		Categories:   set.Categories(),
		Indicators:   set.Indicators(),
		Input:        text,
		History:      append([]string(nil), snapshot...),
	}
}

// DetectWithSession analyzes one conversation turn and updates the session.
// Only the current turn's text is matched — past turns already raised the
// session level when they arrived, and the hysteresis carries that forward,
// so re-matching retained history would double-count. The returned result's
// Level is the session level after this update.
func (d *Detector) DetectWithSession(s *Session, text string) DetectionResult {
	return d.DetectWithSessionPolicy(s, text, nil)
}

// DetectWithSessionPolicy is DetectWithSession with per-project overrides.
func (d *Detector) DetectWithSessionPolicy(s *Session, text string, overrides *PolicyOverrides) DetectionResult {
	cfg := overrides.Apply(d.cfg)
	tax := d.tax.Load()

	set := match(tax, overrides.customIndicators(), text, nil, 0)
	count := set.TriggerCount()
	turnLevel := classify(count, cfg)

	snapshot := s.History()
	sessionLevel := s.update(turnLevel, count, cfg)
	s.remember(text)

	return DetectionResult{
		Level:        sessionLevel,
		TriggerCount: count,
		Categories:   set.Categories(),
		Indicators:   set.Indicators(),
		Input:        text,
		History:      snapshot,
	}
}

// AssessCrisis determines the crisis type, severity, resources, and
// recommended actions for a CRISIS-level detection. Calling it on a
// non-CRISIS result is a programmer error and fails with ErrNotCrisis.
func (d *Detector) AssessCrisis(det DetectionResult) (CrisisResult, error) {
	if !det.IsCrisis() {
		return CrisisResult{}, ErrNotCrisis
	}
	return assessCrisis(d.tax.Load(), det), nil
}
