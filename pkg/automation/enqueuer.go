package automation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dispatchd/fieldline/pkg/models"
	"github.com/dispatchd/fieldline/pkg/persistence"
)

// DefaultMaxAttempts bounds retries of transient failures per execution.
const DefaultMaxAttempts = 3

// Enqueuer turns a matched (workflow, event) pair into a durable pending
// execution log.
type Enqueuer struct {
	store       persistence.ExecutionLogRepository
	maxAttempts int
	logger      *slog.Logger
}

// NewEnqueuer creates an enqueuer. maxAttempts <= 0 selects the default.
func NewEnqueuer(store persistence.ExecutionLogRepository, maxAttempts int, logger *slog.Logger) *Enqueuer {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	return &Enqueuer{
		store:       store,
		maxAttempts: maxAttempts,
		logger:      logger.With("module", "enqueuer"),
	}
}

// Enqueue writes one pending execution log for the matched workflow. The
// event is embedded as an immutable snapshot so later attempts replay against
// the state the trigger saw, even if the source entity has changed since.
// One event occurrence yields exactly one log per matching workflow; there is
// no cross-event deduplication.
func (e *Enqueuer) Enqueue(ctx context.Context, workflow *models.Workflow, event models.BusinessEvent) (*models.ExecutionLog, error) {
	entry := &models.ExecutionLog{
		ID:             uuid.New().String(),
		WorkflowID:     workflow.ID,
		TenantID:       workflow.TenantID,
		TriggerType:    event.Type,
		TriggerPayload: event,
		Status:         models.ExecutionStatusPending,
		MaxAttempts:    e.maxAttempts,
		CreatedAt:      time.Now().UTC(),
	}

	err := e.store.CreateExecutionLog(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue execution for workflow %s: %w", workflow.ID, err)
	}

	e.logger.InfoContext(ctx, "Execution enqueued",
		"execution_id", entry.ID,
		"workflow_id", workflow.ID,
		"tenant_id", workflow.TenantID,
		"trigger_type", event.Type)

	return entry, nil
}
