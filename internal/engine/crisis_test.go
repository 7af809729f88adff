package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/haven-ai/haven/internal/taxonomy"
)

func hasResource(resources []taxonomy.Resource, name string) bool {
	for _, r := range resources {
		if r.Name == name {
			return true
		}
	}
	return false
}

func assess(t *testing.T, d *Detector, input string) CrisisResult {
	t.Helper()
	det := d.Detect(input, nil)
	if !det.IsCrisis() {
		t.Fatalf("input %q reached level %v, want %v", input, det.Level, LevelCrisis)
	}
	cr, err := d.AssessCrisis(det)
	if err != nil {
		t.Fatalf("AssessCrisis: %v", err)
	}
	return cr
}

func TestAssessCrisis_MentalHealthWinsOverFinancial(t *testing.T) {
	d := testDetector()
	cr := assess(t, d, "I want to kill myself. I lost my job and can't pay bills.")

	if cr.Type != taxonomy.CrisisMentalHealth {
		t.Errorf("type = %v, want %v", cr.Type, taxonomy.CrisisMentalHealth)
	}
	if cr.Severity != SeverityHigh {
		t.Errorf("severity = %q, want %q", cr.Severity, SeverityHigh)
	}
	if !hasResource(cr.Resources, "988 Suicide & Crisis Lifeline") {
		t.Errorf("resources missing 988 Lifeline: %+v", cr.Resources)
	}
}

func TestAssessCrisis_MixedWithSecondaryResources(t *testing.T) {
	d := testDetector()
	cr := assess(t, d, "I lost my job and can't pay bills. I have no insurance, severe pain, and I can't breathe.")

	if cr.Type != taxonomy.CrisisMixed {
		t.Fatalf("type = %v, want %v", cr.Type, taxonomy.CrisisMixed)
	}

	// Mental-health resources first, then exactly one from the strongest
	// secondary type (health here, three keyword hits to financial's two).
	mh := taxonomy.Default().ResourcesFor(taxonomy.CrisisMentalHealth).Resources
	if len(cr.Resources) != len(mh)+1 {
		t.Fatalf("resource count = %d, want %d", len(cr.Resources), len(mh)+1)
	}
	for i, r := range mh {
		if cr.Resources[i].Name != r.Name {
			t.Errorf("resources[%d] = %q, want %q", i, cr.Resources[i].Name, r.Name)
		}
	}
	if got := cr.Resources[len(mh)].Name; got != "Emergency Services" {
		t.Errorf("secondary resource = %q, want %q", got, "Emergency Services")
	}
}

func TestAssessCrisis_SingleType(t *testing.T) {
	d := testDetector()
	cr := assess(t, d, "I have no insurance, the pain won't stop, and I can't get treatment.")

	if cr.Type != taxonomy.CrisisHealth {
		t.Errorf("type = %v, want %v", cr.Type, taxonomy.CrisisHealth)
	}
	want := taxonomy.Default().ResourcesFor(taxonomy.CrisisHealth).Resources
	if len(cr.Resources) != len(want) {
		t.Errorf("resource count = %d, want %d (no mental-health append below 4 triggers)",
			len(cr.Resources), len(want))
	}
}

func TestAssessCrisis_AbuseKeywords(t *testing.T) {
	d := testDetector()
	cr := assess(t, d, "My partner hits me and threatens me. I'm completely alone in this and have no one to talk to.")

	if cr.Type != taxonomy.CrisisAbuse {
		t.Errorf("type = %v, want %v", cr.Type, taxonomy.CrisisAbuse)
	}
	if !hasResource(cr.Resources, "National Domestic Violence Hotline") {
		t.Errorf("resources missing domestic violence hotline: %+v", cr.Resources)
	}
}

func TestAssessCrisis_DefaultsToMentalHealth(t *testing.T) {
	// Isolation indicators escalate to CRISIS without hitting any
	// crisis-type keyword; the classifier falls back to mental health.
	d := testDetector()
	cr := assess(t, d, "I have no one to talk to, nobody cares, and my family doesn't understand.")

	if cr.Type != taxonomy.CrisisMentalHealth {
		t.Errorf("type = %v, want %v", cr.Type, taxonomy.CrisisMentalHealth)
	}
	if !hasResource(cr.Resources, "988 Suicide & Crisis Lifeline") {
		t.Errorf("resources missing 988 Lifeline: %+v", cr.Resources)
	}
}

func TestAssessCrisis_HighTriggerCountAppendsMentalHealth(t *testing.T) {
	d := testDetector()
	cr := assess(t, d, "I lost my job, can't pay bills, behind on rent, desperate for income, need cash now.")

	if cr.Type != taxonomy.CrisisFinancial {
		t.Fatalf("type = %v, want %v", cr.Type, taxonomy.CrisisFinancial)
	}
	if cr.Severity != SeverityCritical {
		t.Errorf("severity = %q, want %q", cr.Severity, SeverityCritical)
	}
	if !hasResource(cr.Resources, "988 Suicide & Crisis Lifeline") {
		t.Errorf("5-trigger financial crisis should include a mental-health resource: %+v", cr.Resources)
	}
}

func TestAssessCrisis_SessionCarriedCrisisIsModerate(t *testing.T) {
	// A low-trigger turn inside a session still at CRISIS assesses at
	// moderate severity.
	d := testDetector()
	s := NewSession(0)

	d.DetectWithSession(s, crisisMsg)
	det := d.DetectWithSession(s, "I still can't pay bills")
	if !det.IsCrisis() {
		t.Fatalf("session level = %v, want %v", det.Level, LevelCrisis)
	}

	cr, err := d.AssessCrisis(det)
	if err != nil {
		t.Fatalf("AssessCrisis: %v", err)
	}
	if cr.Severity != SeverityModerate {
		t.Errorf("severity = %q, want %q", cr.Severity, SeverityModerate)
	}
	// "last hope" in the retained history pulls the type to mental health.
	if cr.Type != taxonomy.CrisisMentalHealth {
		t.Errorf("type = %v, want %v", cr.Type, taxonomy.CrisisMentalHealth)
	}
}

func TestAssessCrisis_ActionsAndMessage(t *testing.T) {
	d := testDetector()
	cr := assess(t, d, crisisMsg)

	if len(cr.Actions) == 0 {
		t.Fatal("actions empty")
	}
	found := false
	for _, a := range cr.Actions {
		if strings.Contains(a, "emergency services") {
			found = true
		}
	}
	if !found {
		t.Errorf("universal emergency action missing: %v", cr.Actions)
	}
	if cr.UserMessage == "" {
		t.Error("user message empty")
	}
	if !strings.Contains(cr.UserMessage, "alone") {
		t.Errorf("user message missing closing line: %q", cr.UserMessage)
	}
}

func TestAssessCrisis_HistoryWindowZeroExcludesHistory(t *testing.T) {
	d := testDetector()
	text := "I lost my job, can't pay bills, and I'm behind on rent."
	history := []string{"this is my last hope"}

	zero := 0
	res := d.DetectWithPolicy(text, history, &PolicyOverrides{HistoryWindow: &zero})
	if len(res.History) != 0 {
		t.Fatalf("history snapshot = %v, want empty with window 0", res.History)
	}
	if res.TriggerCount != 3 {
		t.Fatalf("triggerCount = %d, want 3", res.TriggerCount)
	}
	cr, err := d.AssessCrisis(res)
	if err != nil {
		t.Fatalf("AssessCrisis: %v", err)
	}
	// "last hope" sits only in the excluded history; typing must not see it.
	if cr.Type != taxonomy.CrisisFinancial {
		t.Errorf("type = %v, want %v", cr.Type, taxonomy.CrisisFinancial)
	}

	// The default window keeps the same history in scope for both level
	// classification and crisis typing.
	base := d.Detect(text, history)
	if base.TriggerCount != 4 {
		t.Fatalf("baseline triggerCount = %d, want 4", base.TriggerCount)
	}
	crBase, err := d.AssessCrisis(base)
	if err != nil {
		t.Fatalf("AssessCrisis: %v", err)
	}
	if crBase.Type != taxonomy.CrisisMentalHealth {
		t.Errorf("baseline type = %v, want %v", crBase.Type, taxonomy.CrisisMentalHealth)
	}
}

func TestAssessCrisis_NotCrisis(t *testing.T) {
	d := testDetector()
	det := d.Detect("what's a good pasta recipe?", nil)

	_, err := d.AssessCrisis(det)
	if !errors.Is(err, ErrNotCrisis) {
		t.Fatalf("err = %v, want ErrNotCrisis", err)
	}

	cr := NoCrisis(det)
	if cr.Crisis {
		t.Error("NoCrisis result has Crisis = true")
	}
	if cr.Detection.Input != det.Input {
		t.Errorf("NoCrisis detection not carried: %+v", cr.Detection)
	}
}
