package automation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dispatchd/fieldline/pkg/models"
)

// WorkflowSource is the read side of the workflow store the matcher needs.
// The redis cache and the persistence layer both satisfy it.
type WorkflowSource interface {
	ActiveWorkflowsByTrigger(ctx context.Context, tenantID string, trigger models.TriggerType) ([]*models.Workflow, error)
}

// TriggerMatcher decides which of a tenant's workflows fire for a business
// event.
type TriggerMatcher struct {
	source WorkflowSource
	logger *slog.Logger
}

// NewTriggerMatcher creates a new trigger matcher.
func NewTriggerMatcher(source WorkflowSource, logger *slog.Logger) *TriggerMatcher {
	return &TriggerMatcher{
		source: source,
		logger: logger.With("module", "trigger_matcher"),
	}
}

// Match returns every active workflow of the event's tenant whose trigger
// type equals the event type and whose conditions all hold. Matches keep the
// store's creation order, and every match is enqueued independently: fan-out,
// not first-match-wins. Zero matches is a normal outcome.
func (tm *TriggerMatcher) Match(ctx context.Context, event models.BusinessEvent) ([]*models.Workflow, error) {
	candidates, err := tm.source.ActiveWorkflowsByTrigger(ctx, event.TenantID, event.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidate workflows: %w", err)
	}

	matches := make([]*models.Workflow, 0, len(candidates))

	for _, workflow := range candidates {
		// Zero-step workflows are rejected at save time; skip defensively in
		// case one predates that validation.
		if !workflow.Eligible() {
			continue
		}

		if !models.EvaluateConditions(workflow.TriggerConditions, event) {
			tm.logger.DebugContext(ctx, "Workflow conditions not satisfied",
				"workflow_id", workflow.ID,
				"trigger_type", event.Type,
				"event_id", event.ID)

			continue
		}

		matches = append(matches, workflow)
	}

	tm.logger.InfoContext(ctx, "Completed trigger matching",
		"tenant_id", event.TenantID,
		"trigger_type", event.Type,
		"candidates", len(candidates),
		"matches", len(matches))

	return matches, nil
}
