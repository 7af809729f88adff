package engine

import (
	"errors"

	"github.com/haven-ai/haven/internal/taxonomy"
)

// ProtectionLevel is the ordered severity tier driving how cautious a
// downstream response must be.
type ProtectionLevel int

const (
	LevelStandard ProtectionLevel = iota + 1
	LevelEnhanced
	LevelCrisis
)

// String returns the lowercase level name used in storage and the API.
func (l ProtectionLevel) String() string {
	switch l {
	case LevelStandard:
		return "standard"
	case LevelEnhanced:
		return "enhanced"
	case LevelCrisis:
		return "crisis"
	default:
		return "unspecified"
	}
}

// MatchSet maps each indicator category to the distinct phrases matched in
// it. Phrases keep their taxonomy casing; a phrase listed under two
// categories appears in both (categories are independent signals).
type MatchSet map[taxonomy.Category][]string

// TriggerCount is the total number of distinct matched phrases across all
// categories.
func (m MatchSet) TriggerCount() int {
	n := 0
	for _, phrases := range m {
		n += len(phrases)
	}
	return n
}

// Categories returns the triggered categories in canonical taxonomy order.
func (m MatchSet) Categories() []taxonomy.Category {
	var cats []taxonomy.Category
	for _, c := range taxonomy.Categories {
		if len(m[c]) > 0 {
			cats = append(cats, c)
		}
	}
	return cats
}

// Indicators returns all matched phrases, grouped by canonical category
// order. Not deduplicated across categories.
func (m MatchSet) Indicators() []string {
	var out []string
	for _, c := range taxonomy.Categories {
		out = append(out, m[c]...)
	}
	return out
}

// DetectionResult is the immutable outcome of one detection call.
type DetectionResult struct {
	Level        ProtectionLevel
	TriggerCount int
	Categories   []taxonomy.Category
	Indicators   []string
	Input        string
	History      []string // snapshot of the history considered, oldest first
}

// IsCrisis reports whether the result is at the top protection tier.
func (r DetectionResult) IsCrisis() bool {
	return r.Level == LevelCrisis
}

// Severity of a crisis, derived from the trigger count.
const (
	SeverityModerate = "moderate"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// CrisisResult is produced only for CRISIS-level detections.
type CrisisResult struct {
	Crisis      bool
	Type        taxonomy.CrisisType
	Severity    string
	Resources   []taxonomy.Resource
	Actions     []string
	UserMessage string
	Detection   DetectionResult
}

// ErrNotCrisis is returned by AssessCrisis when the detection result is not
// at the CRISIS level. Calling it on a lower level is a programmer error;
// callers wanting a well-formed empty value use NoCrisis instead.
var ErrNotCrisis = errors.New("engine: detection result is not at crisis level")

// NoCrisis returns the explicit "no crisis" sentinel for a non-CRISIS
// detection.
func NoCrisis(detection DetectionResult) CrisisResult {
	return CrisisResult{Crisis: false, Detection: detection}
}
