package collaborators

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// LoggingSet returns a Set whose collaborators only log the side effect and
// return a generated reference. It stands in for the real providers in local
// development and demos.
func LoggingSet(logger *slog.Logger) Set {
	l := &loggingCollaborators{logger: logger.With("module", "collaborators")}

	return Set{
		Email:  l,
		Sms:    l,
		Voice:  l,
		Tasks:  l,
		Status: l,
	}
}

type loggingCollaborators struct {
	logger *slog.Logger
}

func (l *loggingCollaborators) SendEmail(ctx context.Context, to, subject, body string, templateVars map[string]any) (string, error) {
	id := "email-" + uuid.New().String()
	l.logger.InfoContext(ctx, "Would send email", "to", to, "subject", subject, "external_id", id)

	return id, nil
}

func (l *loggingCollaborators) SendSms(ctx context.Context, to, body string, templateVars map[string]any) (string, error) {
	id := "sms-" + uuid.New().String()
	l.logger.InfoContext(ctx, "Would send SMS", "to", to, "external_id", id)

	return id, nil
}

func (l *loggingCollaborators) SendVoiceCall(ctx context.Context, to string, scriptVars map[string]any) (string, error) {
	id := "call-" + uuid.New().String()
	l.logger.InfoContext(ctx, "Would place voice call", "to", to, "external_id", id)

	return id, nil
}

func (l *loggingCollaborators) CreateTask(ctx context.Context, tenantID, description, assignee string, dueAt time.Time) (string, error) {
	id := "task-" + uuid.New().String()
	l.logger.InfoContext(ctx, "Would create task",
		"tenant_id", tenantID,
		"description", description,
		"assignee", assignee,
		"due_at", dueAt,
		"external_id", id)

	return id, nil
}

func (l *loggingCollaborators) UpdateEntityStatus(ctx context.Context, entityType, entityID, newStatus string) (string, error) {
	l.logger.InfoContext(ctx, "Would update entity status",
		"entity_type", entityType,
		"entity_id", entityID,
		"new_status", newStatus)

	return entityID, nil
}
