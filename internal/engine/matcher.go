package engine

import (
	"strings"

	"github.com/haven-ai/haven/internal/taxonomy"
)

// Matching policy: case-insensitive literal substring containment, no word
// boundaries. "broke" matches inside "heartbroken". Tightening it to
// word-boundary matching changes recall for a safety-relevant classifier
// and must not happen silently.

// match scans text (and up to window trailing history entries) against the
// taxonomy plus any project-defined extra phrases, and returns the distinct
// phrases matched per category. Pure: same inputs always yield the same
// MatchSet.
func match(tax *taxonomy.Taxonomy, extra CustomIndicators, text string, history []string, window int) MatchSet {
	out := make(MatchSet)

	haystacks := make([]string, 0, 1+window)
	if s := strings.TrimSpace(text); s != "" {
		haystacks = append(haystacks, strings.ToLower(text))
	}
	if window > 0 && len(history) > 0 {
		start := len(history) - window
		if start < 0 {
			start = 0
		}
		for _, h := range history[start:] {
			if s := strings.TrimSpace(h); s != "" {
				haystacks = append(haystacks, strings.ToLower(h))
			}
		}
	}
	if len(haystacks) == 0 {
		return out
	}

	for _, cat := range taxonomy.Categories {
		for _, phrase := range tax.Indicators(cat) {
			if containsAny(haystacks, phrase) {
				out[cat] = append(out[cat], phrase)
			}
		}
		for _, phrase := range extra[cat] {
			if containsAny(haystacks, phrase) && !contains(out[cat], phrase) {
				out[cat] = append(out[cat], phrase)
			}
		}
	}
	return out
}

func containsAny(haystacks []string, phrase string) bool {
	needle := strings.ToLower(phrase)
	for _, hay := range haystacks {
		if strings.Contains(hay, needle) {
			return true // distinct per category, not per occurrence
		}
	}
	return false
}

func contains(phrases []string, phrase string) bool {
	for _, p := range phrases {
		if p == phrase {
			return true
		}
	}
	return false
}

// Classify maps a trigger count onto a protection level. Exposed for
// callers that need the single-turn level independent of session state.
func Classify(triggerCount int, cfg EscalationConfig) ProtectionLevel {
	return classify(triggerCount, cfg)
}

// classify maps a trigger count onto a protection level.
func classify(triggerCount int, cfg EscalationConfig) ProtectionLevel {
	switch {
	case triggerCount >= cfg.CrisisMin:
		return LevelCrisis
	case triggerCount >= cfg.EnhancedMin:
		return LevelEnhanced
	default:
		return LevelStandard
	}
}
