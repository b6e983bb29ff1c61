// Package postgresql provides the PostgreSQL persistence implementation for
// workflows and execution logs.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/dispatchd/fieldline/pkg/models"
	"github.com/dispatchd/fieldline/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionLogRepository
}

// NewPersistence creates a new PostgreSQL persistence layer and runs pending
// schema migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:            database,
		logger:        logger,
		workflowRepo:  NewWorkflowRepository(database, logger),
		executionRepo: NewExecutionLogRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Workflows(ctx context.Context, tenantID string) ([]*models.Workflow, error) {
	return p.workflowRepo.GetAll(ctx, tenantID)
}

func (p *Persistence) ActiveWorkflowsByTrigger(ctx context.Context, tenantID string, trigger models.TriggerType) ([]*models.Workflow, error) {
	return p.workflowRepo.GetActiveByTrigger(ctx, tenantID, trigger)
}

func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	return p.workflowRepo.GetByID(ctx, id)
}

func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	return p.workflowRepo.Save(ctx, workflow)
}

func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	return p.workflowRepo.Delete(ctx, id)
}

func (p *Persistence) WorkflowCounters(ctx context.Context, workflowID string) (*models.WorkflowCounters, error) {
	return p.workflowRepo.Counters(ctx, workflowID)
}

func (p *Persistence) CreateExecutionLog(ctx context.Context, entry *models.ExecutionLog) error {
	return p.executionRepo.Create(ctx, entry)
}

func (p *Persistence) ExecutionLogByID(ctx context.Context, id string) (*models.ExecutionLog, error) {
	return p.executionRepo.GetByID(ctx, id)
}

func (p *Persistence) ExecutionLogs(ctx context.Context, tenantID string, filter models.ExecutionLogFilter) ([]*models.ExecutionLog, error) {
	return p.executionRepo.List(ctx, tenantID, filter)
}

func (p *Persistence) RequeueDueDeferred(ctx context.Context, now time.Time) (int, error) {
	return p.executionRepo.RequeueDueDeferred(ctx, now)
}

func (p *Persistence) ClaimDueExecutions(ctx context.Context, now time.Time, limit int) ([]*models.ExecutionLog, error) {
	return p.executionRepo.ClaimDue(ctx, now, limit)
}

func (p *Persistence) DeferExecution(ctx context.Context, id string, nextAttemptAt time.Time) error {
	return p.executionRepo.Defer(ctx, id, nextAttemptAt)
}

func (p *Persistence) RescheduleRetry(ctx context.Context, id string, attemptCount int, nextAttemptAt time.Time, errorMessage string, outcomes []models.StepOutcome) error {
	return p.executionRepo.RescheduleRetry(ctx, id, attemptCount, nextAttemptAt, errorMessage, outcomes)
}

func (p *Persistence) FinalizeCompleted(ctx context.Context, id string, attemptCount int, outcomes []models.StepOutcome) error {
	return p.executionRepo.FinalizeCompleted(ctx, id, attemptCount, outcomes)
}

func (p *Persistence) FinalizeFailed(ctx context.Context, id string, attemptCount int, errorMessage string, outcomes []models.StepOutcome) error {
	return p.executionRepo.FinalizeFailed(ctx, id, attemptCount, errorMessage, outcomes)
}

func (p *Persistence) ReapStaleRunning(ctx context.Context, olderThan time.Time) (int, error) {
	return p.executionRepo.ReapStaleRunning(ctx, olderThan)
}
