// Package api implements the HTTP surface: the authenticated analyze and
// session endpoints, project and policy CRUD for the dashboard, and the
// events and analytics read paths.
package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/haven-ai/haven/internal/alert"
	"github.com/haven-ai/haven/internal/chread"
	"github.com/haven-ai/haven/internal/engine"
	"github.com/haven-ai/haven/internal/sessions"
	"github.com/haven-ai/haven/internal/storage"
	"github.com/haven-ai/haven/internal/store"
)

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Store    *store.Store
	Detector *engine.Detector
	Sessions *sessions.Registry
	Writer   storage.EventWriter
	Reader   *chread.Reader    // nil if ClickHouse unavailable
	Alerts   *alert.Dispatcher // nil if no webhooks configured
	Logger   *zap.Logger
	CacheTTL time.Duration
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Analysis endpoints (auth required via Bearer hvk_ token)
	mux.HandleFunc("POST /v1/analyze", deps.authMiddleware(deps.handleAnalyze))
	mux.HandleFunc("DELETE /v1/sessions/{session_id}", deps.authMiddleware(deps.handleDeleteSession))

	// Project CRUD (no auth — dashboard auth added later)
	mux.HandleFunc("POST /api/haven/projects", deps.handleCreateProject)
	mux.HandleFunc("GET /api/haven/projects", deps.handleListProjects)
	mux.HandleFunc("GET /api/haven/projects/{project_id}", deps.handleGetProject)
	mux.HandleFunc("PATCH /api/haven/projects/{project_id}", deps.handleUpdateProject)
	mux.HandleFunc("DELETE /api/haven/projects/{project_id}", deps.handleDeleteProject)
	mux.HandleFunc("POST /api/haven/projects/{project_id}/rotate-key", deps.handleRotateKey)

	// Policy CRUD (no auth)
	mux.HandleFunc("GET /api/haven/projects/{project_id}/policy", deps.handleGetPolicy)
	mux.HandleFunc("PUT /api/haven/projects/{project_id}/policy", deps.handleReplacePolicy)
	mux.HandleFunc("PATCH /api/haven/projects/{project_id}/policy", deps.handleUpdatePolicy)

	// Events & Analytics (no auth)
	mux.HandleFunc("GET /api/haven/events", deps.handleListEvents)
	mux.HandleFunc("GET /api/haven/events/{request_id}", deps.handleGetEvent)
	mux.HandleFunc("GET /api/haven/analytics", deps.handleGetAnalytics)

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return corsMiddleware(requestLogging(mux, deps.Logger))
}
