package engine

import (
	"strings"

	"github.com/haven-ai/haven/internal/taxonomy"
)

// Crisis-type keyword tables. Deliberately separate from and finer-grained
// than the four indicator categories: the coarse crisis_language category
// can map to several underlying crisis types, and these phrases disambiguate
// which one. Matched with the same lowercase substring policy as the
// indicator taxonomy.
var crisisKeywords = map[taxonomy.CrisisType][]string{
	taxonomy.CrisisMentalHealth: {
		"suicide",
		"suicidal",
		"kill myself",
		"end my life",
		"take my own life",
		"want to die",
		"better off dead",
		"ending it",
		"end it all",
		"no reason to live",
		"don't want to live",
		"hurt myself",
		"self-harm",
		"last hope",
		"can't take it anymore",
	},
	taxonomy.CrisisFinancial: {
		"can't pay rent",
		"can't pay bills",
		"about to be evicted",
		"facing eviction",
		"losing my home",
		"utilities shut off",
		"no money for food",
		"completely broke",
		"financial emergency",
		"lost my job",
		"drowning in debt",
		"bankruptcy",
	},
	taxonomy.CrisisHealth: {
		"severe pain",
		"can't breathe",
		"chest pain",
		"overdose",
		"medical emergency",
		"serious injury",
		"urgent medical",
		"pain won't stop",
		"no insurance",
		"can't afford medication",
	},
	taxonomy.CrisisAbuse: {
		"being abused",
		"domestic violence",
		"partner hurts me",
		"afraid for my safety",
		"violent relationship",
		"hits me",
		"threatens me",
		"stalking me",
	},
}

// Universal actions appended to every crisis response, whatever the type.
var universalActions = []string{
	"Reach out to one of the listed resources now",
	"Consider telling a trusted person what you're experiencing",
	"If you are in immediate danger, call emergency services",
}

// assessCrisis determines the crisis type, severity, resources, and actions
// for a CRISIS-level detection. The precondition (Level == CRISIS) is
// enforced by the caller.
func assessCrisis(tax *taxonomy.Taxonomy, det DetectionResult) CrisisResult {
	hits := scanCrisisKeywords(det)

	primary, secondary := resolveCrisisType(hits)

	severity := SeverityModerate
	switch {
	case det.TriggerCount >= 5:
		severity = SeverityCritical
	case det.TriggerCount >= 3:
		severity = SeverityHigh
	}

	resources := selectResources(tax, primary, secondary, det.TriggerCount)
	actions := selectActions(tax, primary)
	message := userMessage(tax, primary)

	return CrisisResult{
		Crisis:      true,
		Type:        primary,
		Severity:    severity,
		Resources:   resources,
		Actions:     actions,
		UserMessage: message,
		Detection:   det,
	}
}

// scanCrisisKeywords counts keyword hits per crisis type across the original
// input and the history snapshot.
func scanCrisisKeywords(det DetectionResult) map[taxonomy.CrisisType]int {
	haystacks := []string{strings.ToLower(det.Input)}
	for _, h := range det.History {
		haystacks = append(haystacks, strings.ToLower(h))
	}

	hits := make(map[taxonomy.CrisisType]int)
	for _, ct := range taxonomy.ConcreteCrisisTypes {
		for _, kw := range crisisKeywords[ct] {
			for _, hay := range haystacks {
				if strings.Contains(hay, kw) {
					hits[ct]++
					break
				}
			}
		}
	}
	return hits
}

// resolveCrisisType applies the fixed priority rule:
//   - mental_health among multiple detected types wins outright
//   - multiple types without mental_health → MIXED
//   - exactly one type → that type
//   - no keyword hit at all → mental_health, the safety-conservative default
//
// secondary is the next most salient detected type (most keyword hits),
// used only by MIXED resource selection.
func resolveCrisisType(hits map[taxonomy.CrisisType]int) (primary, secondary taxonomy.CrisisType) {
	var detected []taxonomy.CrisisType
	for _, ct := range taxonomy.ConcreteCrisisTypes {
		if hits[ct] > 0 {
			detected = append(detected, ct)
		}
	}

	switch {
	case len(detected) == 0:
		return taxonomy.CrisisMentalHealth, taxonomy.CrisisUnspecified
	case len(detected) == 1:
		return detected[0], taxonomy.CrisisUnspecified
	case hits[taxonomy.CrisisMentalHealth] > 0:
		return taxonomy.CrisisMentalHealth, taxonomy.CrisisUnspecified
	}

	// MIXED: pick the strongest detected type as the secondary source of
	// resources. Ties break in ConcreteCrisisTypes order.
	secondary = detected[0]
	for _, ct := range detected[1:] {
		if hits[ct] > hits[secondary] {
			secondary = ct
		}
	}
	return taxonomy.CrisisMixed, secondary
}

// selectResources builds the ordered resource list.
//
// MIXED concatenates the mental-health list with at most one resource from
// the next most salient type, mental health first. Independently, any
// detection with >=4 triggers whose primary type is not mental_health gets
// at least one mental-health resource appended.
func selectResources(tax *taxonomy.Taxonomy, primary, secondary taxonomy.CrisisType, triggerCount int) []taxonomy.Resource {
	var out []taxonomy.Resource

	if primary == taxonomy.CrisisMixed {
		out = append(out, tax.ResourcesFor(taxonomy.CrisisMentalHealth).Resources...)
		if secondary != taxonomy.CrisisUnspecified {
			if sec := tax.ResourcesFor(secondary).Resources; len(sec) > 0 {
				out = append(out, sec[0])
			}
		}
		return out
	}

	out = append(out, tax.ResourcesFor(primary).Resources...)

	if primary != taxonomy.CrisisMentalHealth && triggerCount >= 4 {
		if mh := tax.ResourcesFor(taxonomy.CrisisMentalHealth).Resources; len(mh) > 0 {
			out = append(out, mh[0])
		}
	}
	return out
}

// selectActions returns the type-specific ordered action list with the
// universal actions appended. MIXED uses the mental-health actions — the
// safety-conservative choice for multi-issue situations.
func selectActions(tax *taxonomy.Taxonomy, primary taxonomy.CrisisType) []string {
	source := primary
	if source == taxonomy.CrisisMixed {
		source = taxonomy.CrisisMentalHealth
	}
	actions := append([]string(nil), tax.ResourcesFor(source).Actions...)
	return append(actions, universalActions...)
}

// userMessage assembles the short empathetic summary: the type-specific
// opening sentence plus a fixed closing line.
func userMessage(tax *taxonomy.Taxonomy, primary taxonomy.CrisisType) string {
	source := primary
	if source == taxonomy.CrisisMixed {
		source = taxonomy.CrisisMentalHealth
	}
	opening := tax.ResourcesFor(source).UserMessage
	if opening == "" {
		opening = "It sounds like you're going through a very difficult time."
	}
	return opening + " You don't have to face this alone — the resources below connect you with real people who can help."
}
