package alert

import "go.uber.org/zap"

// Dispatcher fans out alert events to matching webhook configurations.
type Dispatcher struct {
	configs []AlertConfig
	logger  *zap.Logger
}

// NewDispatcher creates a Dispatcher from webhook configurations.
// Returns nil if configs is empty (callers should nil-check).
func NewDispatcher(configs []AlertConfig, logger *zap.Logger) *Dispatcher {
	if len(configs) == 0 {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{configs: configs, logger: logger}
}

// Dispatch sends the event to all webhooks whose Events list matches. A
// config entry matches on the event's level or, for crisis detections, its
// severity. Fires goroutines, does not block the caller; a delivery that
// exhausts its retries is logged, not returned.
func (d *Dispatcher) Dispatch(event AlertEvent) {
	for _, cfg := range d.configs {
		if matches(cfg.Events, event) {
			go func(cfg AlertConfig) {
				if err := Send(cfg, event); err != nil {
					d.logger.Error("alert webhook delivery failed",
						zap.String("url", cfg.URL),
						zap.String("request_id", event.RequestID),
						zap.Error(err),
					)
				}
			}(cfg)
		}
	}
}

func matches(events []string, event AlertEvent) bool {
	for _, e := range events {
		if e == event.Level {
			return true
		}
		if event.Severity != "" && e == event.Severity {
			return true
		}
	}
	return false
}
