package taxonomy

import "testing"

func TestDefault_Valid(t *testing.T) {
	tax := Default()
	if err := tax.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for _, cat := range Categories {
		if len(tax.Indicators(cat)) == 0 {
			t.Errorf("category %v has no indicators", cat)
		}
	}
	for _, ct := range ConcreteCrisisTypes {
		set := tax.ResourcesFor(ct)
		if len(set.Resources) == 0 {
			t.Errorf("crisis type %v has no resources", ct)
		}
		if len(set.Actions) == 0 {
			t.Errorf("crisis type %v has no actions", ct)
		}
		if set.UserMessage == "" {
			t.Errorf("crisis type %v has no user message", ct)
		}
	}
}

func TestNew_CopiesInputs(t *testing.T) {
	indicators := map[Category][]string{
		CategoryCrisisLanguage:       {"last hope"},
		CategoryFinancialDesperation: {"lost my job"},
		CategoryHealthCrisis:         {"no insurance"},
		CategoryIsolation:            {"all alone"},
	}
	tax := New(indicators, defaultResources)

	indicators[CategoryCrisisLanguage][0] = "mutated"
	if got := tax.Indicators(CategoryCrisisLanguage)[0]; got != "last hope" {
		t.Errorf("taxonomy aliased caller's slice: %q", got)
	}
}

func TestCategory_RoundTrip(t *testing.T) {
	for _, cat := range Categories {
		got, ok := ParseCategory(cat.String())
		if !ok || got != cat {
			t.Errorf("ParseCategory(%q) = %v, %v", cat.String(), got, ok)
		}
	}
	if _, ok := ParseCategory("astrology"); ok {
		t.Error("ParseCategory accepted unknown name")
	}
	// Legacy alias from older taxonomy files.
	if got, ok := ParseCategory("isolation_indicators"); !ok || got != CategoryIsolation {
		t.Errorf("ParseCategory(isolation_indicators) = %v, %v", got, ok)
	}
}

func TestCrisisType_RoundTrip(t *testing.T) {
	for _, ct := range ConcreteCrisisTypes {
		got, ok := ParseCrisisType(ct.String())
		if !ok || got != ct {
			t.Errorf("ParseCrisisType(%q) = %v, %v", ct.String(), got, ok)
		}
	}
	// MIXED is derived at classification time, never configured.
	if _, ok := ParseCrisisType("mixed"); ok {
		t.Error("ParseCrisisType accepted mixed")
	}
	if CrisisMixed.String() != "mixed" {
		t.Errorf("CrisisMixed.String() = %q", CrisisMixed.String())
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name       string
		indicators map[Category][]string
		resources  map[CrisisType]ResourceSet
	}{
		{
			name: "missing category",
			indicators: map[Category][]string{
				CategoryCrisisLanguage: {"last hope"},
			},
			resources: defaultResources,
		},
		{
			name:       "missing resources",
			indicators: defaultIndicators,
			resources: map[CrisisType]ResourceSet{
				CrisisMentalHealth: defaultResources[CrisisMentalHealth],
			},
		},
		{
			name:       "resource without contact",
			indicators: defaultIndicators,
			resources: map[CrisisType]ResourceSet{
				CrisisMentalHealth: {Resources: []Resource{{Name: "988 Lifeline"}}},
				CrisisFinancial:    defaultResources[CrisisFinancial],
				CrisisHealth:       defaultResources[CrisisHealth],
				CrisisAbuse:        defaultResources[CrisisAbuse],
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := New(tt.indicators, tt.resources).Validate(); err == nil {
				t.Fatal("Validate accepted invalid taxonomy")
			}
		})
	}
}
