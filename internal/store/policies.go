package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Policy represents a row in the policies table.
type Policy struct {
	ID               string
	ProjectID        string
	EscalationConfig json.RawMessage // JSONB — raw bytes
	CustomIndicators json.RawMessage // nullable JSONB
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UpdatePolicyParams holds optional fields for partial policy updates.
type UpdatePolicyParams struct {
	EscalationConfig *json.RawMessage // nil = don't change
	CustomIndicators *json.RawMessage // nil = don't change
}

// ReplacePolicyParams holds fields for a full policy replace.
type ReplacePolicyParams struct {
	EscalationConfig json.RawMessage
	CustomIndicators json.RawMessage // may be nil
}

// GetPolicy returns the policy for a project, or nil if not found.
func (s *Store) GetPolicy(ctx context.Context, projectID string) (*Policy, error) {
	var p Policy
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, escalation_config, COALESCE(custom_indicators, 'null'::jsonb), created_at, updated_at
		FROM policies WHERE project_id = $1`, projectID,
	).Scan(&p.ID, &p.ProjectID, &p.EscalationConfig, &p.CustomIndicators,
		&p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetPolicy: %w", err)
	}
	return &p, nil
}

// UpdatePolicy applies a partial update to a policy. Only non-nil fields are changed.
func (s *Store) UpdatePolicy(ctx context.Context, projectID string, params UpdatePolicyParams) (*Policy, error) {
	var p Policy
	err := s.db.QueryRowContext(ctx, `
		UPDATE policies SET
			escalation_config = COALESCE($2, escalation_config),
			custom_indicators = COALESCE($3, custom_indicators),
			updated_at        = now()
		WHERE project_id = $1
		RETURNING id, project_id, escalation_config, COALESCE(custom_indicators, 'null'::jsonb), created_at, updated_at`,
		projectID, nullableJSON(params.EscalationConfig), nullableJSON(params.CustomIndicators),
	).Scan(&p.ID, &p.ProjectID, &p.EscalationConfig, &p.CustomIndicators,
		&p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("UpdatePolicy: %w", err)
	}
	return &p, nil
}

// ReplacePolicy fully replaces a policy's configuration.
func (s *Store) ReplacePolicy(ctx context.Context, projectID string, params ReplacePolicyParams) (*Policy, error) {
	ec := params.EscalationConfig
	if ec == nil {
		ec = json.RawMessage(`{}`)
	}

	var p Policy
	err := s.db.QueryRowContext(ctx, `
		UPDATE policies SET
			escalation_config = $2,
			custom_indicators = $3,
			updated_at        = now()
		WHERE project_id = $1
		RETURNING id, project_id, escalation_config, COALESCE(custom_indicators, 'null'::jsonb), created_at, updated_at`,
		projectID, ec, nullableRaw(params.CustomIndicators),
	).Scan(&p.ID, &p.ProjectID, &p.EscalationConfig, &p.CustomIndicators,
		&p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ReplacePolicy: %w", err)
	}
	return &p, nil
}

// nullableJSON returns nil (SQL NULL) if the pointer is nil, otherwise the raw bytes.
func nullableJSON(v *json.RawMessage) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// nullableRaw returns nil (SQL NULL) if the raw message is nil or empty.
func nullableRaw(v json.RawMessage) interface{} {
	if v == nil {
		return nil
	}
	return v
}
