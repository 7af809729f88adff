package taxonomy

import (
	"fmt"
	"strings"
)

// Category classifies the kind of vulnerability an indicator phrase signals.
type Category int

const (
	CategoryUnspecified          Category = iota
	CategoryCrisisLanguage                // crisis_language
	CategoryFinancialDesperation          // financial_desperation
	CategoryHealthCrisis                  // health_crisis
	CategoryIsolation                     // isolation
)

// Categories lists every concrete category in canonical order.
var Categories = []Category{
	CategoryCrisisLanguage,
	CategoryFinancialDesperation,
	CategoryHealthCrisis,
	CategoryIsolation,
}

// String returns the lowercase category name used in storage and the API.
func (c Category) String() string {
	switch c {
	case CategoryCrisisLanguage:
		return "crisis_language"
	case CategoryFinancialDesperation:
		return "financial_desperation"
	case CategoryHealthCrisis:
		return "health_crisis"
	case CategoryIsolation:
		return "isolation"
	default:
		return "unspecified"
	}
}

// ParseCategory maps a category name from a taxonomy file to its enum value.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "crisis_language":
		return CategoryCrisisLanguage, true
	case "financial_desperation":
		return CategoryFinancialDesperation, true
	case "health_crisis":
		return CategoryHealthCrisis, true
	case "isolation", "isolation_indicators":
		return CategoryIsolation, true
	default:
		return CategoryUnspecified, false
	}
}

// CrisisType is the finer-grained classification computed at the CRISIS
// protection level. MIXED is derived, never configured directly.
type CrisisType int

const (
	CrisisUnspecified  CrisisType = iota
	CrisisMentalHealth            // mental_health
	CrisisFinancial               // financial
	CrisisHealth                  // health
	CrisisAbuse                   // abuse
	CrisisMixed                   // mixed
)

// ConcreteCrisisTypes lists the types that carry their own resource sets.
var ConcreteCrisisTypes = []CrisisType{
	CrisisMentalHealth,
	CrisisFinancial,
	CrisisHealth,
	CrisisAbuse,
}

// String returns the lowercase crisis-type name used in storage and the API.
func (t CrisisType) String() string {
	switch t {
	case CrisisMentalHealth:
		return "mental_health"
	case CrisisFinancial:
		return "financial"
	case CrisisHealth:
		return "health"
	case CrisisAbuse:
		return "abuse"
	case CrisisMixed:
		return "mixed"
	default:
		return "unspecified"
	}
}

// ParseCrisisType maps a crisis-type name from a taxonomy file to its enum value.
func ParseCrisisType(s string) (CrisisType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mental_health":
		return CrisisMentalHealth, true
	case "financial":
		return CrisisFinancial, true
	case "health":
		return CrisisHealth, true
	case "abuse":
		return CrisisAbuse, true
	default:
		return CrisisUnspecified, false
	}
}

// Resource is one crisis support contact (hotline, text line, directory).
type Resource struct {
	Name         string `yaml:"name"`
	Contact      string `yaml:"contact"`
	Description  string `yaml:"description"`
	Availability string `yaml:"availability"`
}

// ResourceSet bundles everything attached to one crisis type: the resources
// to surface, the recommended actions in order, and the opening line of the
// user-facing message.
type ResourceSet struct {
	Resources   []Resource
	Actions     []string
	UserMessage string
}

// Taxonomy is the read-only indicator/resource catalog the detection engine
// runs against. Built once (from Default or Load) and never mutated; a
// reload builds a fresh value and swaps the reference atomically.
type Taxonomy struct {
	indicators map[Category][]string
	resources  map[CrisisType]ResourceSet
}

// New builds a Taxonomy from the given maps. The maps are copied; callers
// keep no aliases into the returned value.
func New(indicators map[Category][]string, resources map[CrisisType]ResourceSet) *Taxonomy {
	t := &Taxonomy{
		indicators: make(map[Category][]string, len(indicators)),
		resources:  make(map[CrisisType]ResourceSet, len(resources)),
	}
	for cat, phrases := range indicators {
		t.indicators[cat] = append([]string(nil), phrases...)
	}
	for ct, set := range resources {
		t.resources[ct] = ResourceSet{
			Resources:   append([]Resource(nil), set.Resources...),
			Actions:     append([]string(nil), set.Actions...),
			UserMessage: set.UserMessage,
		}
	}
	return t
}

// Indicators returns the phrase list for a category, in taxonomy order.
// Callers must not mutate the returned slice.
func (t *Taxonomy) Indicators(c Category) []string {
	return t.indicators[c]
}

// ResourcesFor returns the resource set for a concrete crisis type.
func (t *Taxonomy) ResourcesFor(ct CrisisType) ResourceSet {
	return t.resources[ct]
}

// Validate checks that the taxonomy is usable: every category carries at
// least one phrase and every concrete crisis type at least one resource.
// A taxonomy that fails validation must never reach a detector.
func (t *Taxonomy) Validate() error {
	for _, cat := range Categories {
		if len(t.indicators[cat]) == 0 {
			return fmt.Errorf("taxonomy: category %q has no indicator phrases", cat)
		}
	}
	for _, ct := range ConcreteCrisisTypes {
		set := t.resources[ct]
		if len(set.Resources) == 0 {
			return fmt.Errorf("taxonomy: crisis type %q has no resources", ct)
		}
		for i, r := range set.Resources {
			if r.Name == "" || r.Contact == "" {
				return fmt.Errorf("taxonomy: crisis type %q resource %d missing name or contact", ct, i)
			}
		}
	}
	return nil
}
