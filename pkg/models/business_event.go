// Package models defines the core domain models for the tenant automation engine.
package models

import (
	"strings"
	"time"
)

// TriggerType identifies the kind of business event a workflow reacts to.
type TriggerType string

const (
	TriggerJobCreated       TriggerType = "job.created"
	TriggerJobScheduled     TriggerType = "job.scheduled"
	TriggerJobStatusChanged TriggerType = "job.status_changed"
	TriggerJobCompleted     TriggerType = "job.completed"
	TriggerEstimateSent     TriggerType = "estimate.sent"
	TriggerEstimateAccepted TriggerType = "estimate.accepted"
	TriggerInvoiceCreated   TriggerType = "invoice.created"
	TriggerInvoiceSent      TriggerType = "invoice.sent"
	TriggerInvoicePaid      TriggerType = "invoice.paid"
	TriggerInvoiceOverdue   TriggerType = "invoice.overdue"
	TriggerTaskCompleted    TriggerType = "task.completed"
	TriggerClientCreated    TriggerType = "client.created"
)

// KnownTriggerTypes lists every trigger type a workflow may be saved with.
func KnownTriggerTypes() []TriggerType {
	return []TriggerType{
		TriggerJobCreated,
		TriggerJobScheduled,
		TriggerJobStatusChanged,
		TriggerJobCompleted,
		TriggerEstimateSent,
		TriggerEstimateAccepted,
		TriggerInvoiceCreated,
		TriggerInvoiceSent,
		TriggerInvoicePaid,
		TriggerInvoiceOverdue,
		TriggerTaskCompleted,
		TriggerClientCreated,
	}
}

// IsKnownTriggerType reports whether t is one of the supported trigger types.
func IsKnownTriggerType(t TriggerType) bool {
	for _, known := range KnownTriggerTypes() {
		if t == known {
			return true
		}
	}

	return false
}

// BusinessEvent is a notification of a domain-state change (job, invoice,
// estimate, task or client mutation) raised by the rest of the application.
// It is the sole input to trigger matching and is never persisted on its own;
// a snapshot is embedded into each execution log at enqueue time.
type BusinessEvent struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id"`
	Type       TriggerType    `json:"type"`
	EntityType string         `json:"entity_type,omitempty"`
	EntityID   string         `json:"entity_id,omitempty"`
	Entity     map[string]any `json:"entity,omitempty"`
	OldValue   string         `json:"old_value,omitempty"`
	NewValue   string         `json:"new_value,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Field resolves a dotted-path field against the event. Top-level names map
// to the event's own fields; paths rooted at "entity" walk the entity
// snapshot. The second return value is false when the path does not resolve.
func (e BusinessEvent) Field(path string) (any, bool) {
	switch path {
	case "id":
		return e.ID, true
	case "tenant_id":
		return e.TenantID, true
	case "type":
		return string(e.Type), true
	case "entity_type":
		return e.EntityType, true
	case "entity_id":
		return e.EntityID, true
	case "old_value":
		return e.OldValue, true
	case "new_value":
		return e.NewValue, true
	case "occurred_at":
		return e.OccurredAt, true
	}

	segments := strings.Split(path, ".")
	if segments[0] != "entity" || len(segments) < 2 {
		return nil, false
	}

	return lookupPath(e.Entity, segments[1:])
}

func lookupPath(data map[string]any, segments []string) (any, bool) {
	if data == nil {
		return nil, false
	}

	current := data

	for i, segment := range segments {
		value, exists := current[segment]
		if !exists {
			return nil, false
		}

		if i == len(segments)-1 {
			return value, true
		}

		nested, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}

		current = nested
	}

	return nil, false
}
