package taxonomy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileFormat is the YAML shape of a taxonomy file:
//
//	indicators:
//	  crisis_language: ["last hope", ...]
//	  financial_desperation: [...]
//	resources:
//	  mental_health:
//	    resources:
//	      - name: "988 Suicide & Crisis Lifeline"
//	        contact: "Call or text 988"
//	        description: "..."
//	        availability: "24/7"
//	    actions: ["...", "..."]
//	    user_message: "..."
type fileFormat struct {
	Indicators map[string][]string        `yaml:"indicators"`
	Resources  map[string]fileResourceSet `yaml:"resources"`
}

type fileResourceSet struct {
	Resources   []Resource `yaml:"resources"`
	Actions     []string   `yaml:"actions"`
	UserMessage string     `yaml:"user_message"`
}

// Load reads and validates a taxonomy from a YAML file. Categories and
// crisis types outside the fixed enum are load-time errors: the engine
// dispatches over a closed set, so a typo in the file must fail here rather
// than silently matching nothing.
func Load(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Taxonomy from raw YAML bytes.
func Parse(data []byte) (*Taxonomy, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("taxonomy: parse: %w", err)
	}

	indicators := make(map[Category][]string, len(f.Indicators))
	for name, phrases := range f.Indicators {
		cat, ok := ParseCategory(name)
		if !ok {
			return nil, fmt.Errorf("taxonomy: unknown indicator category %q", name)
		}
		indicators[cat] = phrases
	}

	resources := make(map[CrisisType]ResourceSet, len(f.Resources))
	for name, set := range f.Resources {
		ct, ok := ParseCrisisType(name)
		if !ok {
			return nil, fmt.Errorf("taxonomy: unknown crisis type %q", name)
		}
		resources[ct] = ResourceSet{
			Resources:   set.Resources,
			Actions:     set.Actions,
			UserMessage: set.UserMessage,
		}
	}

	t := New(indicators, resources)
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
