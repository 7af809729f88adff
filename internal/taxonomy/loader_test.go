package taxonomy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validTaxonomyYAML = `
indicators:
  crisis_language: ["last hope", "end it all"]
  financial_desperation: ["lost my job"]
  health_crisis: ["no insurance"]
  isolation: ["all alone"]
resources:
  mental_health:
    resources:
      - name: "988 Suicide & Crisis Lifeline"
        contact: "Call or text 988"
        description: "24/7 crisis support"
        availability: "24/7"
    actions: ["Call or text a crisis helpline immediately"]
    user_message: "Your safety matters."
  financial:
    resources:
      - name: "211 Community Resources"
        contact: "Dial 211"
  health:
    resources:
      - name: "Emergency Services"
        contact: "Call 911"
  abuse:
    resources:
      - name: "National Domestic Violence Hotline"
        contact: "1-800-799-7233"
`

func TestParse_Valid(t *testing.T) {
	tax, err := Parse([]byte(validTaxonomyYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	phrases := tax.Indicators(CategoryCrisisLanguage)
	if len(phrases) != 2 || phrases[0] != "last hope" {
		t.Errorf("crisis_language indicators = %v", phrases)
	}

	set := tax.ResourcesFor(CrisisMentalHealth)
	if len(set.Resources) != 1 || set.Resources[0].Contact != "Call or text 988" {
		t.Errorf("mental_health resources = %+v", set.Resources)
	}
	if set.UserMessage != "Your safety matters." {
		t.Errorf("user message = %q", set.UserMessage)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{
			name:    "unknown category",
			mutate:  func(s string) string { return strings.Replace(s, "isolation:", "lonelyness:", 1) },
			wantErr: "unknown indicator category",
		},
		{
			name:    "unknown crisis type",
			mutate:  func(s string) string { return strings.Replace(s, "abuse:", "violence:", 1) },
			wantErr: "unknown crisis type",
		},
		{
			name:    "empty category",
			mutate:  func(s string) string { return strings.Replace(s, `["all alone"]`, "[]", 1) },
			wantErr: "no indicator phrases",
		},
		{
			name:    "not yaml",
			mutate:  func(string) string { return "{{{" },
			wantErr: "parse",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.mutate(validTaxonomyYAML)))
			if err == nil {
				t.Fatal("Parse accepted invalid taxonomy")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	if err := os.WriteFile(path, []byte(validTaxonomyYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	tax, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := tax.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Load accepted missing file")
	}
}
