package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/haven-ai/haven/internal/engine"
	"github.com/haven-ai/haven/internal/store"
)

func (d *Dependencies) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project_id")
	policy, err := d.Store.GetPolicy(r.Context(), projectID)
	if err != nil {
		d.Logger.Error("failed to get policy", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get policy"})
		return
	}
	if policy == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Policy not found."})
		return
	}
	writeJSON(w, http.StatusOK, policyToResp(policy))
}

func (d *Dependencies) handleReplacePolicy(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project_id")

	var req UpdatePolicyReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if !validEscalationConfig(req.EscalationConfig) {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "escalation_config is not valid"})
		return
	}
	if _, err := engine.ParseCustomIndicators(req.CustomIndicators); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "custom_indicators is not valid"})
		return
	}

	ec := req.EscalationConfig
	if ec == nil {
		ec = json.RawMessage(`{}`)
	}

	policy, err := d.Store.ReplacePolicy(r.Context(), projectID, store.ReplacePolicyParams{
		EscalationConfig: ec,
		CustomIndicators: req.CustomIndicators,
	})
	if err != nil {
		d.Logger.Error("failed to replace policy", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to replace policy"})
		return
	}
	if policy == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Policy not found."})
		return
	}
	writeJSON(w, http.StatusOK, policyToResp(policy))
}

func (d *Dependencies) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project_id")

	var req UpdatePolicyReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if !validEscalationConfig(req.EscalationConfig) {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "escalation_config is not valid"})
		return
	}
	if _, err := engine.ParseCustomIndicators(req.CustomIndicators); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "custom_indicators is not valid"})
		return
	}

	params := store.UpdatePolicyParams{}
	if req.EscalationConfig != nil {
		params.EscalationConfig = &req.EscalationConfig
	}
	if req.CustomIndicators != nil {
		params.CustomIndicators = &req.CustomIndicators
	}

	policy, err := d.Store.UpdatePolicy(r.Context(), projectID, params)
	if err != nil {
		d.Logger.Error("failed to update policy", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to update policy"})
		return
	}
	if policy == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Policy not found."})
		return
	}
	writeJSON(w, http.StatusOK, policyToResp(policy))
}

// validEscalationConfig rejects bodies that would silently fail to decode
// into PolicyOverrides later. Nil (absent) is valid.
func validEscalationConfig(raw json.RawMessage) bool {
	if raw == nil {
		return true
	}
	var overrides engine.PolicyOverrides
	return json.Unmarshal(raw, &overrides) == nil
}

func policyToResp(p *store.Policy) PolicyResp {
	ec := p.EscalationConfig
	if ec == nil {
		ec = json.RawMessage(`{}`)
	}
	return PolicyResp{
		ID:               p.ID,
		ProjectID:        p.ProjectID,
		EscalationConfig: ec,
		CustomIndicators: p.CustomIndicators,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}
