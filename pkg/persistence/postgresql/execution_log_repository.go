package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dispatchd/fieldline/pkg/models"
	"github.com/dispatchd/fieldline/pkg/persistence"
)

const executionLogColumns = `
	id
  , workflow_id
  , tenant_id
  , trigger_type
  , trigger_payload
  , status
  , attempt_count
  , max_attempts
  , next_attempt_at
  , started_at
  , completed_at
  , error_message
  , actions_executed
  , created_at
  , updated_at
`

// ExecutionLogRepository handles the execution queue and audit trail. Every
// state transition is a conditional UPDATE on the current status, which is
// what gives the scheduler its exclusive-claim guarantee without a separate
// lock manager.
type ExecutionLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionLogRepository creates a new execution log repository.
func NewExecutionLogRepository(db *sql.DB, logger *slog.Logger) *ExecutionLogRepository {
	return &ExecutionLogRepository{db: db, logger: logger.With("module", "execution_log_repository")}
}

// Create inserts a new pending execution log.
func (r *ExecutionLogRepository) Create(ctx context.Context, entry *models.ExecutionLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}

	entry.UpdatedAt = now

	if entry.Status == "" {
		entry.Status = models.ExecutionStatusPending
	}

	payload, err := json.Marshal(entry.TriggerPayload)
	if err != nil {
		return persistence.NewExecutionLogError("Create", entry.ID, fmt.Errorf("failed to marshal trigger payload: %w", err))
	}

	outcomes, err := marshalOutcomes(entry.ActionsExecuted)
	if err != nil {
		return persistence.NewExecutionLogError("Create", entry.ID, err)
	}

	query := `
		INSERT INTO execution_logs (
			id, workflow_id, tenant_id, trigger_type, trigger_payload,
			status, attempt_count, max_attempts, next_attempt_at,
			error_message, actions_executed, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.WorkflowID,
		entry.TenantID,
		string(entry.TriggerType),
		payload,
		string(entry.Status),
		entry.AttemptCount,
		entry.MaxAttempts,
		entry.NextAttemptAt,
		entry.ErrorMessage,
		outcomes,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return persistence.NewExecutionLogError("Create", entry.ID, err)
	}

	return nil
}

func (r *ExecutionLogRepository) GetByID(ctx context.Context, id string) (*models.ExecutionLog, error) {
	query := `
		SELECT ` + executionLogColumns + `
		FROM execution_logs
		WHERE id = $1
	`

	entry, err := r.scanExecutionLog(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionLogError("GetByID", id, persistence.ErrExecutionLogNotFound)
		}

		return nil, fmt.Errorf("failed to scan execution log: %w", err)
	}

	return entry, nil
}

// List returns a tenant's execution history, newest first.
func (r *ExecutionLogRepository) List(ctx context.Context, tenantID string, filter models.ExecutionLogFilter) ([]*models.ExecutionLog, error) {
	query := `
		SELECT ` + executionLogColumns + `
		FROM execution_logs
		WHERE tenant_id = $1
	`

	args := []any{tenantID}

	if filter.WorkflowID != "" {
		args = append(args, filter.WorkflowID)
		query += fmt.Sprintf(" AND workflow_id = $%d", len(args))
	}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	if filter.TriggerType != "" {
		args = append(args, string(filter.TriggerType))
		query += fmt.Sprintf(" AND trigger_type = $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution logs: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	return r.collectExecutionLogs(rows)
}

// RequeueDueDeferred moves deferred entries whose wakeup time has passed back
// to pending so the next claim pass picks them up.
func (r *ExecutionLogRepository) RequeueDueDeferred(ctx context.Context, now time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE execution_logs
		SET status = $1, updated_at = $2
		WHERE status = $3 AND next_attempt_at IS NOT NULL AND next_attempt_at <= $2
	`, string(models.ExecutionStatusPending), now.UTC(), string(models.ExecutionStatusDeferred))
	if err != nil {
		return 0, fmt.Errorf("failed to requeue deferred executions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count requeued executions: %w", err)
	}

	return int(affected), nil
}

// ClaimDue claims up to limit due pending entries, oldest first. The inner
// select uses FOR UPDATE SKIP LOCKED so concurrent schedulers never block on
// or double-claim the same rows; the outer status guard keeps the transition
// a compare-and-swap.
func (r *ExecutionLogRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*models.ExecutionLog, error) {
	query := `
		UPDATE execution_logs
		SET status = $1, started_at = $2, updated_at = $2
		WHERE status = $3
		  AND id IN (
			SELECT id
			FROM execution_logs
			WHERE status = $3 AND (next_attempt_at IS NULL OR next_attempt_at <= $2)
			ORDER BY created_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		  )
		RETURNING ` + executionLogColumns

	rows, err := r.db.QueryContext(ctx, query,
		string(models.ExecutionStatusRunning),
		now.UTC(),
		string(models.ExecutionStatusPending),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim due executions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	return r.collectExecutionLogs(rows)
}

// Defer parks a running entry until its next business-hours window.
func (r *ExecutionLogRepository) Defer(ctx context.Context, id string, nextAttemptAt time.Time) error {
	return r.transitionFromRunning(ctx, "Defer", id, `
		UPDATE execution_logs
		SET status = $1, next_attempt_at = $2, started_at = NULL, updated_at = $3
		WHERE id = $4 AND status = $5
	`, string(models.ExecutionStatusDeferred), nextAttemptAt.UTC(), time.Now().UTC(), id, string(models.ExecutionStatusRunning))
}

// RescheduleRetry returns a running entry to pending with a backoff deadline.
func (r *ExecutionLogRepository) RescheduleRetry(ctx context.Context, id string, attemptCount int, nextAttemptAt time.Time, errorMessage string, outcomes []models.StepOutcome) error {
	encoded, err := marshalOutcomes(outcomes)
	if err != nil {
		return persistence.NewExecutionLogError("RescheduleRetry", id, err)
	}

	return r.transitionFromRunning(ctx, "RescheduleRetry", id, `
		UPDATE execution_logs
		SET status = $1
		  , attempt_count = $2
		  , next_attempt_at = $3
		  , error_message = $4
		  , actions_executed = actions_executed || $5::jsonb
		  , started_at = NULL
		  , updated_at = $6
		WHERE id = $7 AND status = $8
	`, string(models.ExecutionStatusPending), attemptCount, nextAttemptAt.UTC(), errorMessage, encoded, time.Now().UTC(), id, string(models.ExecutionStatusRunning))
}

// FinalizeCompleted marks a running entry completed and bumps the workflow's
// execution and success counters in the same transaction, so counters can
// never drift from recorded outcomes.
func (r *ExecutionLogRepository) FinalizeCompleted(ctx context.Context, id string, attemptCount int, outcomes []models.StepOutcome) error {
	return r.finalize(ctx, "FinalizeCompleted", id, models.ExecutionStatusCompleted, attemptCount, "", outcomes)
}

// FinalizeFailed marks a running entry failed with the last error and bumps
// the workflow's execution and failure counters in the same transaction.
func (r *ExecutionLogRepository) FinalizeFailed(ctx context.Context, id string, attemptCount int, errorMessage string, outcomes []models.StepOutcome) error {
	return r.finalize(ctx, "FinalizeFailed", id, models.ExecutionStatusFailed, attemptCount, errorMessage, outcomes)
}

// ReapStaleRunning returns entries stuck in running since before the cutoff
// to pending. Used by the maintenance job to recover from crashed workers.
func (r *ExecutionLogRepository) ReapStaleRunning(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE execution_logs
		SET status = $1, started_at = NULL, updated_at = $2
		WHERE status = $3 AND started_at IS NOT NULL AND started_at < $4
	`, string(models.ExecutionStatusPending), time.Now().UTC(), string(models.ExecutionStatusRunning), olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to reap stale running executions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count reaped executions: %w", err)
	}

	return int(affected), nil
}

func (r *ExecutionLogRepository) finalize(ctx context.Context, op, id string, status models.ExecutionStatus, attemptCount int, errorMessage string, outcomes []models.StepOutcome) error {
	encoded, err := marshalOutcomes(outcomes)
	if err != nil {
		return persistence.NewExecutionLogError(op, id, err)
	}

	transaction, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewExecutionLogError(op, id, fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		_ = transaction.Rollback()
	}()

	now := time.Now().UTC()

	var workflowID string

	err = transaction.QueryRowContext(ctx, `
		UPDATE execution_logs
		SET status = $1
		  , attempt_count = $2
		  , error_message = $3
		  , actions_executed = actions_executed || $4::jsonb
		  , completed_at = $5
		  , next_attempt_at = NULL
		  , updated_at = $5
		WHERE id = $6 AND status = $7
		RETURNING workflow_id
	`, string(status), attemptCount, errorMessage, encoded, now, id, string(models.ExecutionStatusRunning)).Scan(&workflowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.classifyLostTransition(ctx, op, id)
		}

		return persistence.NewExecutionLogError(op, id, err)
	}

	successDelta := 0
	failureDelta := 0

	if status == models.ExecutionStatusCompleted {
		successDelta = 1
	} else {
		failureDelta = 1
	}

	_, err = transaction.ExecContext(ctx, `
		UPDATE workflows
		SET execution_count = execution_count + 1
		  , success_count = success_count + $1
		  , failure_count = failure_count + $2
		WHERE id = $3
	`, successDelta, failureDelta, workflowID)
	if err != nil {
		return persistence.NewExecutionLogError(op, id, fmt.Errorf("failed to update workflow counters: %w", err))
	}

	err = transaction.Commit()
	if err != nil {
		return persistence.NewExecutionLogError(op, id, fmt.Errorf("failed to commit: %w", err))
	}

	return nil
}

func (r *ExecutionLogRepository) transitionFromRunning(ctx context.Context, op, id, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return persistence.NewExecutionLogError(op, id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionLogError(op, id, err)
	}

	if affected == 0 {
		return r.classifyLostTransition(ctx, op, id)
	}

	return nil
}

// classifyLostTransition distinguishes "row is terminal" from "row is in some
// other non-running state" after a conditional update matched nothing.
func (r *ExecutionLogRepository) classifyLostTransition(ctx context.Context, op, id string) error {
	var status string

	err := r.db.QueryRowContext(ctx, "SELECT status FROM execution_logs WHERE id = $1", id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.NewExecutionLogError(op, id, persistence.ErrExecutionLogNotFound)
		}

		return persistence.NewExecutionLogError(op, id, err)
	}

	if models.ExecutionStatus(status).IsTerminal() {
		return persistence.NewExecutionLogError(op, id, persistence.ErrTerminalExecution)
	}

	return persistence.NewExecutionLogError(op, id, persistence.ErrExecutionNotClaimable)
}

func (r *ExecutionLogRepository) collectExecutionLogs(rows *sql.Rows) ([]*models.ExecutionLog, error) {
	entries := make([]*models.ExecutionLog, 0)

	for rows.Next() {
		entry, err := r.scanExecutionLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution log: %w", err)
		}

		entries = append(entries, entry)
	}

	err := rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating execution logs: %w", err)
	}

	return entries, nil
}

func (r *ExecutionLogRepository) scanExecutionLog(row rowScanner) (*models.ExecutionLog, error) {
	var (
		entry         models.ExecutionLog
		triggerType   string
		payload       []byte
		status        string
		nextAttemptAt sql.NullTime
		startedAt     sql.NullTime
		completedAt   sql.NullTime
		outcomes      []byte
	)

	err := row.Scan(
		&entry.ID,
		&entry.WorkflowID,
		&entry.TenantID,
		&triggerType,
		&payload,
		&status,
		&entry.AttemptCount,
		&entry.MaxAttempts,
		&nextAttemptAt,
		&startedAt,
		&completedAt,
		&entry.ErrorMessage,
		&outcomes,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.TriggerType = models.TriggerType(triggerType)
	entry.Status = models.ExecutionStatus(status)

	err = json.Unmarshal(payload, &entry.TriggerPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger payload: %w", err)
	}

	err = json.Unmarshal(outcomes, &entry.ActionsExecuted)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal step outcomes: %w", err)
	}

	if nextAttemptAt.Valid {
		entry.NextAttemptAt = &nextAttemptAt.Time
	}

	if startedAt.Valid {
		entry.StartedAt = &startedAt.Time
	}

	if completedAt.Valid {
		entry.CompletedAt = &completedAt.Time
	}

	return &entry, nil
}

func marshalOutcomes(outcomes []models.StepOutcome) ([]byte, error) {
	if outcomes == nil {
		outcomes = []models.StepOutcome{}
	}

	encoded, err := json.Marshal(outcomes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal step outcomes: %w", err)
	}

	return encoded, nil
}
