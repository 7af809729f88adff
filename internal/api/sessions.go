package api

import "net/http"

// handleDeleteSession implements DELETE /v1/sessions/{session_id}.
// Dropping a session resets its hysteresis: the next turn on the same id
// starts a fresh conversation at STANDARD.
func (d *Dependencies) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	proj := projectFromContext(r.Context())
	if proj == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing project context"})
		return
	}

	sessionID := r.PathValue("session_id")
	if !d.Sessions.Delete(proj.ID, sessionID) {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Session not found."})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
