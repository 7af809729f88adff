package engine

import (
	"encoding/json"
	"fmt"

	"github.com/haven-ai/haven/internal/taxonomy"
)

// EscalationConfig holds the thresholds for level classification and session
// hysteresis. The defaults below are the single canonical policy; projects
// adjust them through PolicyOverrides.
type EscalationConfig struct {
	EnhancedMin   int // trigger count at which ENHANCED begins (default 1)
	CrisisMin     int // trigger count at which CRISIS begins (default 3)
	CleanStreak   int // consecutive zero-trigger turns before de-escalation (default 3)
	HistoryWindow int // max history entries scanned by stateless detection (default 3)
	HistorySize   int // max messages retained per session (default 5)
}

// DefaultEscalationConfig returns the canonical server defaults.
func DefaultEscalationConfig() EscalationConfig {
	return EscalationConfig{
		EnhancedMin:   1,
		CrisisMin:     3,
		CleanStreak:   3,
		HistoryWindow: 3,
		HistorySize:   5,
	}
}

// PolicyOverrides is the per-project escalation configuration stored in the
// policies table's escalation_config JSONB column. All pointer fields use
// nil to mean "use server default".
type PolicyOverrides struct {
	EnhancedMin   *int `json:"enhanced_min"`
	CrisisMin     *int `json:"crisis_min"`
	CleanStreak   *int `json:"clean_streak"`
	HistoryWindow *int `json:"history_window"`

	// Custom carries the project's additional indicator phrases, keyed by
	// category. Stored separately from escalation_config, so it is not part
	// of the JSON shape above.
	Custom CustomIndicators `json:"-"`
}

// customIndicators is the nil-receiver-safe accessor for Custom.
func (p *PolicyOverrides) customIndicators() CustomIndicators {
	if p == nil {
		return nil
	}
	return p.Custom
}

// CustomIndicators maps a category onto extra phrases a project wants
// matched on top of the built-in taxonomy.
type CustomIndicators map[taxonomy.Category][]string

// ParseCustomIndicators decodes a custom_indicators JSONB value. Unknown
// category keys are rejected so a typo does not silently drop phrases.
// Empty and null values decode to nil.
func ParseCustomIndicators(raw json.RawMessage) (CustomIndicators, error) {
	if len(raw) == 0 || string(raw) == "{}" || string(raw) == "null" {
		return nil, nil
	}
	var byName map[string][]string
	if err := json.Unmarshal(raw, &byName); err != nil {
		return nil, fmt.Errorf("decode custom indicators: %w", err)
	}
	out := make(CustomIndicators, len(byName))
	for name, phrases := range byName {
		cat, ok := taxonomy.ParseCategory(name)
		if !ok {
			return nil, fmt.Errorf("custom indicators: unknown category %q", name)
		}
		if len(phrases) > 0 {
			out[cat] = phrases
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// Apply resolves the overrides against a base config. A nil receiver returns
// the base unchanged.
func (p *PolicyOverrides) Apply(base EscalationConfig) EscalationConfig {
	if p == nil {
		return base
	}
	cfg := base
	if p.EnhancedMin != nil && *p.EnhancedMin > 0 {
		cfg.EnhancedMin = *p.EnhancedMin
	}
	if p.CrisisMin != nil && *p.CrisisMin > cfg.EnhancedMin {
		cfg.CrisisMin = *p.CrisisMin
	}
	if p.CleanStreak != nil && *p.CleanStreak > 0 {
		cfg.CleanStreak = *p.CleanStreak
	}
	if p.HistoryWindow != nil && *p.HistoryWindow >= 0 {
		cfg.HistoryWindow = *p.HistoryWindow
	}
	return cfg
}
