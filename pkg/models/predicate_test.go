package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func statusChangedEvent(oldValue, newValue string) BusinessEvent {
	return BusinessEvent{
		ID:         "evt-1",
		TenantID:   "tenant-1",
		Type:       TriggerJobStatusChanged,
		EntityType: "job",
		EntityID:   "job-42",
		Entity: map[string]any{
			"status":   newValue,
			"total":    float64(250),
			"priority": "High",
			"client": map[string]any{
				"name": "Acme Plumbing",
			},
		},
		OldValue:   oldValue,
		NewValue:   newValue,
		OccurredAt: time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC),
	}
}

func TestEvaluateConditions_EmptyListAlwaysTrue(t *testing.T) {
	event := statusChangedEvent("in_progress", "completed")

	assert.True(t, EvaluateConditions(nil, event))
	assert.True(t, EvaluateConditions([]Predicate{}, event))
}

func TestEvaluateConditions_AllPredicatesAnded(t *testing.T) {
	event := statusChangedEvent("in_progress", "completed")

	conditions := []Predicate{
		{Field: "new_value", Operator: OperatorEq, Value: "completed"},
		{Field: "old_value", Operator: OperatorEq, Value: "in_progress"},
	}
	assert.True(t, EvaluateConditions(conditions, event))

	conditions = append(conditions, Predicate{
		Field: "entity.priority", Operator: OperatorEq, Value: "Low",
	})
	assert.False(t, EvaluateConditions(conditions, event))
}

func TestPredicate_Evaluate(t *testing.T) {
	event := statusChangedEvent("in_progress", "completed")

	tests := []struct {
		name      string
		predicate Predicate
		want      bool
	}{
		{
			name:      "eq matches",
			predicate: Predicate{Field: "new_value", Operator: OperatorEq, Value: "completed"},
			want:      true,
		},
		{
			name:      "eq is case-insensitive for strings",
			predicate: Predicate{Field: "entity.priority", Operator: OperatorEq, Value: "high"},
			want:      true,
		},
		{
			name:      "neq",
			predicate: Predicate{Field: "new_value", Operator: OperatorNeq, Value: "scheduled"},
			want:      true,
		},
		{
			name:      "gt on numeric entity field",
			predicate: Predicate{Field: "entity.total", Operator: OperatorGt, Value: 100},
			want:      true,
		},
		{
			name:      "gt fails when below threshold",
			predicate: Predicate{Field: "entity.total", Operator: OperatorGt, Value: 500},
			want:      false,
		},
		{
			name:      "gte at boundary",
			predicate: Predicate{Field: "entity.total", Operator: OperatorGte, Value: "250"},
			want:      true,
		},
		{
			name:      "lt",
			predicate: Predicate{Field: "entity.total", Operator: OperatorLt, Value: 300.5},
			want:      true,
		},
		{
			name:      "lte fails above boundary",
			predicate: Predicate{Field: "entity.total", Operator: OperatorLte, Value: 249},
			want:      false,
		},
		{
			name:      "numeric comparison against non-numeric field is false",
			predicate: Predicate{Field: "entity.priority", Operator: OperatorGt, Value: 1},
			want:      false,
		},
		{
			name:      "contains is case-insensitive",
			predicate: Predicate{Field: "entity.client.name", Operator: OperatorContains, Value: "acme"},
			want:      true,
		},
		{
			name:      "in with array literal",
			predicate: Predicate{Field: "new_value", Operator: OperatorIn, Value: []any{"completed", "cancelled"}},
			want:      true,
		},
		{
			name:      "in with comma-separated string",
			predicate: Predicate{Field: "new_value", Operator: OperatorIn, Value: "scheduled, completed"},
			want:      true,
		},
		{
			name:      "in misses",
			predicate: Predicate{Field: "new_value", Operator: OperatorIn, Value: []any{"scheduled"}},
			want:      false,
		},
		{
			name:      "missing field evaluates false, never errors",
			predicate: Predicate{Field: "entity.invoice_number", Operator: OperatorEq, Value: "anything"},
			want:      false,
		},
		{
			name:      "missing nested path evaluates false",
			predicate: Predicate{Field: "entity.client.phone.area", Operator: OperatorEq, Value: "555"},
			want:      false,
		},
		{
			name:      "unknown operator evaluates false",
			predicate: Predicate{Field: "new_value", Operator: Operator("matches"), Value: "completed"},
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.predicate.Evaluate(event))
		})
	}
}

func TestBusinessEvent_Field(t *testing.T) {
	event := statusChangedEvent("in_progress", "completed")

	value, ok := event.Field("type")
	assert.True(t, ok)
	assert.Equal(t, string(TriggerJobStatusChanged), value)

	value, ok = event.Field("entity.client.name")
	assert.True(t, ok)
	assert.Equal(t, "Acme Plumbing", value)

	_, ok = event.Field("entity")
	assert.False(t, ok, "bare entity path is not addressable")

	_, ok = event.Field("unknown_field")
	assert.False(t, ok)
}

func TestIsKnownOperator(t *testing.T) {
	for _, op := range []Operator{
		OperatorEq, OperatorNeq, OperatorGt, OperatorLt,
		OperatorGte, OperatorLte, OperatorContains, OperatorIn,
	} {
		assert.True(t, IsKnownOperator(op))
	}

	assert.False(t, IsKnownOperator(Operator("regex")))
}
