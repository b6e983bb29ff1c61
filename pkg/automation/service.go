package automation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dispatchd/fieldline/pkg/models"
)

var (
	ErrMissingTenant      = errors.New("business event has no tenant")
	ErrUnknownTriggerType = errors.New("business event has an unknown trigger type")
)

// Service is the event-ingestion facade: it runs trigger matching and
// enqueues one execution per match. Both the HTTP endpoint and the Kafka
// consumer drive this same path.
type Service struct {
	matcher  *TriggerMatcher
	enqueuer *Enqueuer
	logger   *slog.Logger
}

// NewService creates the ingestion service.
func NewService(matcher *TriggerMatcher, enqueuer *Enqueuer, logger *slog.Logger) *Service {
	return &Service{
		matcher:  matcher,
		enqueuer: enqueuer,
		logger:   logger.With("module", "automation_service"),
	}
}

// SubmitEvent matches the event against the tenant's workflows and enqueues
// one pending execution per match. Finding no workflow is a normal outcome,
// not an error; the caller is never blocked on action dispatch, which happens
// asynchronously in the scheduler.
func (s *Service) SubmitEvent(ctx context.Context, event models.BusinessEvent) ([]*models.ExecutionLog, error) {
	if event.TenantID == "" {
		return nil, ErrMissingTenant
	}

	if !models.IsKnownTriggerType(event.Type) {
		return nil, ErrUnknownTriggerType
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	matches, err := s.matcher.Match(ctx, event)
	if err != nil {
		return nil, err
	}

	enqueued := make([]*models.ExecutionLog, 0, len(matches))

	for _, workflow := range matches {
		entry, err := s.enqueuer.Enqueue(ctx, workflow, event)
		if err != nil {
			// Keep fanning out: one workflow's enqueue failure must not
			// starve the tenant's other matches.
			s.logger.ErrorContext(ctx, "Failed to enqueue matched workflow",
				"workflow_id", workflow.ID,
				"event_id", event.ID,
				"error", err)

			continue
		}

		enqueued = append(enqueued, entry)
	}

	return enqueued, nil
}
