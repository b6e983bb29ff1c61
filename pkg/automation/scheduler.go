package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dispatchd/fieldline/pkg/metrics"
	"github.com/dispatchd/fieldline/pkg/models"
	"github.com/dispatchd/fieldline/pkg/persistence"
)

// SchedulerConfig tunes the poll loop. Zero values select the defaults.
type SchedulerConfig struct {
	// PollInterval is the sleep between poll cycles.
	PollInterval time.Duration
	// BatchSize bounds how many due entries one cycle claims.
	BatchSize int
	// WorkerCount bounds how many claimed entries dispatch concurrently.
	// The bound is global; claims are per-entry, so no per-tenant bound is
	// needed.
	WorkerCount int
	// BackoffBase is the first retry delay; attempt n waits base * 2^n,
	// capped at BackoffCap.
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}

	if c.BatchSize <= 0 {
		c.BatchSize = 25
	}

	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}

	if c.BackoffBase <= 0 {
		c.BackoffBase = 30 * time.Second
	}

	if c.BackoffCap <= 0 {
		c.BackoffCap = time.Hour
	}

	return c
}

// Scheduler is the queue processor: it polls for due pending executions,
// claims them exclusively, gates them on business hours and drives each one
// through the dispatcher to a terminal state.
//
// It owns every ExecutionLog state transition after enqueue, and it is the
// only writer of workflow counters.
type Scheduler struct {
	store      persistence.Persistence
	dispatcher *Dispatcher
	config     SchedulerConfig
	metrics    *metrics.Scheduler
	logger     *slog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewScheduler creates a queue processor.
func NewScheduler(store persistence.Persistence, dispatcher *Dispatcher, config SchedulerConfig, collectors *metrics.Scheduler, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		config:     config.withDefaults(),
		metrics:    collectors,
		logger:     logger.With("module", "execution_scheduler"),
		now:        time.Now,
	}
}

// Start runs the poll loop until the context is cancelled. The same
// semantics hold when an external cron drives RunOnce instead.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Starting execution scheduler",
		"poll_interval", s.config.PollInterval,
		"batch_size", s.config.BatchSize,
		"worker_count", s.config.WorkerCount)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Execution scheduler stopping")

			return ctx.Err()
		case <-ticker.C:
			processed, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "Poll cycle failed", "error", err)

				continue
			}

			if processed > 0 {
				s.logger.DebugContext(ctx, "Poll cycle finished", "processed", processed)
			}
		}
	}
}

// RunOnce executes a single poll cycle: wake due deferred entries, claim a
// batch of due pending entries oldest-first, and process the claims with
// bounded concurrency. It returns how many entries were processed.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	now := s.now().UTC()

	requeued, err := s.store.RequeueDueDeferred(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue deferred executions: %w", err)
	}

	if requeued > 0 {
		s.logger.InfoContext(ctx, "Requeued deferred executions", "count", requeued)
	}

	claimed, err := s.store.ClaimDueExecutions(ctx, now, s.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to claim due executions: %w", err)
	}

	if len(claimed) == 0 {
		return 0, nil
	}

	queue := make(chan *models.ExecutionLog)

	var wg sync.WaitGroup

	workers := min(s.config.WorkerCount, len(claimed))

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for entry := range queue {
				s.process(ctx, entry)
			}
		}()
	}

	for _, entry := range claimed {
		queue <- entry
	}

	close(queue)
	wg.Wait()

	return len(claimed), nil
}

// Reap returns executions stuck in running since before the cutoff to
// pending. Run from a maintenance job, not the regular poll cycle.
func (s *Scheduler) Reap(ctx context.Context, stuckFor time.Duration) (int, error) {
	cutoff := s.now().UTC().Add(-stuckFor)

	moved, err := s.store.ReapStaleRunning(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reap stale executions: %w", err)
	}

	if moved > 0 {
		s.logger.WarnContext(ctx, "Reaped stale running executions", "count", moved, "stuck_for", stuckFor)

		if s.metrics != nil {
			s.metrics.ExecutionsReaped.Add(float64(moved))
		}
	}

	return moved, nil
}

// process drives one claimed entry to its next state. The entry is owned
// exclusively by this worker until one of the transition calls below lands.
func (s *Scheduler) process(ctx context.Context, entry *models.ExecutionLog) {
	logger := s.logger.With(
		"execution_id", entry.ID,
		"workflow_id", entry.WorkflowID,
		"tenant_id", entry.TenantID,
	)

	workflow, err := s.store.WorkflowByID(ctx, entry.WorkflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			// Deleted between match and dispatch: permanent, burn the budget.
			s.finalizeFailed(ctx, logger, entry, entry.MaxAttempts, "workflow no longer exists", nil)

			return
		}

		logger.ErrorContext(ctx, "Failed to load workflow, releasing claim", "error", err)
		s.release(ctx, logger, entry)

		return
	}

	if !workflow.Active {
		s.finalizeFailed(ctx, logger, entry, entry.MaxAttempts, "workflow deactivated", nil)

		return
	}

	if decision := workflow.BusinessHours.Allow(s.now()); !decision.Allowed {
		if workflow.BusinessHours.Mode == models.BusinessHoursDrop {
			s.finalizeFailed(ctx, logger, entry, entry.MaxAttempts, "outside business hours", nil)

			return
		}

		err := s.store.DeferExecution(ctx, entry.ID, decision.NextAllowedAt)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to defer execution", "error", err)

			return
		}

		if s.metrics != nil {
			s.metrics.ExecutionsDeferred.Inc()
		}

		logger.InfoContext(ctx, "Execution deferred to business hours", "next_attempt_at", decision.NextAllowedAt)

		return
	}

	attempt := entry.AttemptCount + 1

	if s.metrics != nil {
		s.metrics.InFlight.Inc()
	}

	started := s.now()
	outcomes, dispatchErr := s.dispatcher.Dispatch(ctx, workflow, entry)

	if s.metrics != nil {
		s.metrics.InFlight.Dec()
		s.metrics.DispatchDuration.Observe(s.now().Sub(started).Seconds())
	}

	if dispatchErr == nil {
		err := s.store.FinalizeCompleted(ctx, entry.ID, attempt, outcomes)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to finalize completed execution", "error", err)

			return
		}

		if s.metrics != nil {
			s.metrics.ExecutionsCompleted.Inc()
		}

		logger.InfoContext(ctx, "Execution completed", "attempt", attempt, "steps", len(outcomes))

		return
	}

	if IsPermanent(dispatchErr) {
		// No retry budget is wasted on unrecoverable errors.
		s.finalizeFailed(ctx, logger, entry, entry.MaxAttempts, dispatchErr.Error(), outcomes)

		return
	}

	if attempt < entry.MaxAttempts {
		nextAttempt := s.now().UTC().Add(s.backoff(attempt))

		err := s.store.RescheduleRetry(ctx, entry.ID, attempt, nextAttempt, dispatchErr.Error(), outcomes)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to reschedule retry", "error", err)

			return
		}

		if s.metrics != nil {
			s.metrics.ExecutionsRetried.Inc()
		}

		logger.WarnContext(ctx, "Transient failure, retry scheduled",
			"attempt", attempt,
			"max_attempts", entry.MaxAttempts,
			"next_attempt_at", nextAttempt,
			"error", dispatchErr)

		return
	}

	s.finalizeFailed(ctx, logger, entry, attempt, dispatchErr.Error(), outcomes)
}

func (s *Scheduler) finalizeFailed(ctx context.Context, logger *slog.Logger, entry *models.ExecutionLog, attemptCount int, errorMessage string, outcomes []models.StepOutcome) {
	err := s.store.FinalizeFailed(ctx, entry.ID, attemptCount, errorMessage, outcomes)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to finalize failed execution", "error", err)

		return
	}

	if s.metrics != nil {
		s.metrics.ExecutionsFailed.Inc()
	}

	logger.WarnContext(ctx, "Execution failed", "attempt_count", attemptCount, "error_message", errorMessage)
}

// release returns a claimed entry to pending without consuming an attempt,
// used when the scheduler itself (not the dispatch) hit an infrastructure
// error.
func (s *Scheduler) release(ctx context.Context, logger *slog.Logger, entry *models.ExecutionLog) {
	err := s.store.RescheduleRetry(ctx, entry.ID, entry.AttemptCount, s.now().UTC().Add(s.config.PollInterval), "", nil)
	if err != nil && !errors.Is(err, persistence.ErrExecutionNotClaimable) {
		logger.ErrorContext(ctx, "Failed to release claim", "error", err)
	}
}

// backoff computes the delay before retry n: base * 2^n, capped.
func (s *Scheduler) backoff(attempt int) time.Duration {
	delay := s.config.BackoffBase

	for range attempt {
		delay *= 2
		if delay >= s.config.BackoffCap {
			return s.config.BackoffCap
		}
	}

	return delay
}
