// Package alert fans out webhook notifications for elevated detections so
// operators hear about crisis-level conversations without polling the
// events API.
package alert

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AlertConfig defines a webhook alert destination.
type AlertConfig struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"` // levels ("crisis", "enhanced") or severities ("critical", "high")
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// AlertEvent is the payload sent to webhook endpoints.
type AlertEvent struct {
	Timestamp    string   `json:"timestamp"`
	RequestID    string   `json:"request_id"`
	ProjectID    string   `json:"project_id"`
	SessionID    string   `json:"session_id,omitempty"`
	Level        string   `json:"level"`
	TriggerCount int      `json:"trigger_count"`
	Categories   []string `json:"categories"`
	CrisisType   string   `json:"crisis_type,omitempty"`
	Severity     string   `json:"severity,omitempty"`
}

// LoadConfigs reads webhook destinations from a YAML file:
//
//	webhooks:
//	  - url: https://hooks.example.com/haven
//	    format: slack
//	    events: ["crisis"]
func LoadConfigs(path string) ([]AlertConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("alert: read %s: %w", path, err)
	}

	var f struct {
		Webhooks []AlertConfig `yaml:"webhooks"`
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("alert: parse %s: %w", path, err)
	}

	for i, cfg := range f.Webhooks {
		if cfg.URL == "" {
			return nil, fmt.Errorf("alert: webhook %d has no url", i)
		}
	}
	return f.Webhooks, nil
}
