// Package collaborators defines the narrow interfaces the action dispatcher
// delegates side effects to. Provider-specific code (SMS, email, voice, the
// task and status services) lives behind these contracts and never inside
// the automation core.
//
// Implementations classify their own failures: a transient error (provider
// unreachable, rate-limited, timed out) must be wrapped with
// automation.Transient, a permanent one (invalid recipient, rejected payload)
// with automation.Permanent, so the scheduler applies the right retry policy.
package collaborators

import (
	"context"
	"time"
)

// EmailSender delivers one email and returns the provider's message ID.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string, templateVars map[string]any) (string, error)
}

// SmsSender delivers one SMS and returns the provider's message ID.
type SmsSender interface {
	SendSms(ctx context.Context, to, body string, templateVars map[string]any) (string, error)
}

// VoiceCaller places one outbound call and returns the provider's call ID.
type VoiceCaller interface {
	SendVoiceCall(ctx context.Context, to string, scriptVars map[string]any) (string, error)
}

// TaskCreator creates a follow-up task for a tenant and returns its ID.
type TaskCreator interface {
	CreateTask(ctx context.Context, tenantID, description, assignee string, dueAt time.Time) (string, error)
}

// StatusUpdater moves a business entity to a new status and returns a
// reference to the updated entity.
type StatusUpdater interface {
	UpdateEntityStatus(ctx context.Context, entityType, entityID, newStatus string) (string, error)
}

// Set bundles one implementation of each collaborator for injection into the
// dispatcher.
type Set struct {
	Email  EmailSender
	Sms    SmsSender
	Voice  VoiceCaller
	Tasks  TaskCreator
	Status StatusUpdater
}
