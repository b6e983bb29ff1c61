// Package web provides the HTTP surface of the automation engine: workflow
// management, event ingestion and the execution audit trail.
package web

import (
	"time"

	"github.com/dispatchd/fieldline/pkg/models"
)

// TenantHeader carries the caller's tenant on every request.
const TenantHeader = "X-Tenant-ID"

// CreateWorkflowRequest represents the request body for creating a workflow.
type CreateWorkflowRequest struct {
	Name              string                      `json:"name"               validate:"required,min=3"`
	Active            bool                        `json:"active"`
	TriggerType       models.TriggerType          `json:"trigger_type"       validate:"required"`
	TriggerConditions []models.Predicate          `json:"trigger_conditions"`
	Steps             []models.ActionStep         `json:"steps"              validate:"required,min=1"`
	BusinessHours     *models.BusinessHoursPolicy `json:"business_hours,omitempty"`
}

// UpdateWorkflowRequest represents the request body for replacing a workflow
// definition. Updates are whole-definition, not partial: the builder UI always
// submits the full workflow.
type UpdateWorkflowRequest = CreateWorkflowRequest

// SubmitEventRequest represents an ingested business event. The tenant comes
// from the request header, never the body.
type SubmitEventRequest struct {
	Type       models.TriggerType `json:"type"        validate:"required"`
	EntityType string             `json:"entity_type"`
	EntityID   string             `json:"entity_id"`
	Entity     map[string]any     `json:"entity"`
	OldValue   string             `json:"old_value,omitempty"`
	NewValue   string             `json:"new_value,omitempty"`
	OccurredAt time.Time          `json:"occurred_at,omitempty"`
}

// SubmitEventResponse acknowledges ingestion and lists the executions the
// event fanned out to.
type SubmitEventResponse struct {
	EventID      string   `json:"event_id"`
	ExecutionIDs []string `json:"execution_ids"`
}

func (r CreateWorkflowRequest) toModel(tenantID string) *models.Workflow {
	return &models.Workflow{
		TenantID:          tenantID,
		Name:              r.Name,
		Active:            r.Active,
		TriggerType:       r.TriggerType,
		TriggerConditions: r.TriggerConditions,
		Steps:             r.Steps,
		BusinessHours:     r.BusinessHours,
	}
}

func (r SubmitEventRequest) toModel(tenantID string) models.BusinessEvent {
	return models.BusinessEvent{
		TenantID:   tenantID,
		Type:       r.Type,
		EntityType: r.EntityType,
		EntityID:   r.EntityID,
		Entity:     r.Entity,
		OldValue:   r.OldValue,
		NewValue:   r.NewValue,
		OccurredAt: r.OccurredAt,
	}
}
