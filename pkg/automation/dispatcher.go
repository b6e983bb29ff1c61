package automation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dispatchd/fieldline/pkg/collaborators"
	"github.com/dispatchd/fieldline/pkg/models"
	"github.com/dispatchd/fieldline/pkg/otelhelper"
)

// Dispatcher executes a workflow's ordered action steps against the injected
// collaborators. It performs no provider I/O itself and holds no state; each
// variant is delegated to its collaborator interface.
//
// Failure policy: the first failing step aborts the remaining steps unless
// the step is marked best-effort and the failure is transient. Retries always
// re-run the whole step list from the top; the per-step outcome history is
// what tells an operator which side effects already happened.
type Dispatcher struct {
	collaborators collaborators.Set
	tracer        trace.Tracer
	logger        *slog.Logger
}

// NewDispatcher creates an action dispatcher.
func NewDispatcher(set collaborators.Set, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		collaborators: set,
		tracer:        otel.Tracer("fieldline/automation"),
		logger:        logger.With("module", "action_dispatcher"),
	}
}

// Dispatch runs the workflow's steps strictly in order against the entry's
// trigger snapshot. It always returns the outcomes recorded so far, even on
// failure, so the audit trail stays complete.
func (d *Dispatcher) Dispatch(ctx context.Context, workflow *models.Workflow, entry *models.ExecutionLog) ([]models.StepOutcome, error) {
	ctx, span := d.tracer.Start(ctx, "automation.dispatch", trace.WithAttributes(
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.TenantIDKey, workflow.TenantID),
		attribute.String(otelhelper.ExecutionIDKey, entry.ID),
		attribute.String(otelhelper.TriggerTypeKey, string(entry.TriggerType)),
	))
	defer span.End()

	outcomes := make([]models.StepOutcome, 0, len(workflow.Steps))

	for index, step := range workflow.Steps {
		externalID, err := d.executeStep(ctx, step, workflow, entry)
		if err == nil {
			outcomes = append(outcomes, models.StepOutcome{
				StepIndex:  index,
				Variant:    step.Variant,
				Status:     models.StepStatusSuccess,
				ExternalID: externalID,
			})

			continue
		}

		d.logger.WarnContext(ctx, "Action step failed",
			"workflow_id", workflow.ID,
			"execution_id", entry.ID,
			"step_index", index,
			"variant", step.Variant,
			"best_effort", step.BestEffort,
			"error", err)

		outcomes = append(outcomes, models.StepOutcome{
			StepIndex: index,
			Variant:   step.Variant,
			Status:    models.StepStatusFailure,
			Error:     err.Error(),
		})

		if step.BestEffort && IsTransient(err) {
			continue
		}

		// Abort: remaining steps are recorded as skipped, and the attempt's
		// outcome is this step's classified error.
		for skipped := index + 1; skipped < len(workflow.Steps); skipped++ {
			outcomes = append(outcomes, models.StepOutcome{
				StepIndex: skipped,
				Variant:   workflow.Steps[skipped].Variant,
				Status:    models.StepStatusSkipped,
			})
		}

		otelhelper.SetError(span, err, IsPermanent(err))

		return outcomes, fmt.Errorf("step %d (%s) failed: %w", index, step.Variant, err)
	}

	return outcomes, nil
}

func (d *Dispatcher) executeStep(ctx context.Context, step models.ActionStep, workflow *models.Workflow, entry *models.ExecutionLog) (string, error) {
	event := entry.TriggerPayload

	switch step.Variant {
	case models.ActionSendEmail:
		if step.Email == nil {
			return "", Permanentf("email step has no configuration")
		}

		to, err := resolveRecipient(event, step.Email.RecipientSelector)
		if err != nil {
			return "", err
		}

		return d.collaborators.Email.SendEmail(ctx, to, step.Email.Subject, step.Email.Body, step.Email.TemplateVars)

	case models.ActionSendSms:
		if step.Sms == nil {
			return "", Permanentf("sms step has no configuration")
		}

		to, err := resolveRecipient(event, step.Sms.RecipientSelector)
		if err != nil {
			return "", err
		}

		return d.collaborators.Sms.SendSms(ctx, to, step.Sms.Body, step.Sms.TemplateVars)

	case models.ActionSendVoiceCall:
		if step.Voice == nil {
			return "", Permanentf("voice step has no configuration")
		}

		to, err := resolveRecipient(event, step.Voice.RecipientSelector)
		if err != nil {
			return "", err
		}

		return d.collaborators.Voice.SendVoiceCall(ctx, to, step.Voice.ScriptVars)

	case models.ActionCreateTask:
		if step.Task == nil {
			return "", Permanentf("task step has no configuration")
		}

		dueAt := time.Now().UTC().Add(time.Duration(step.Task.DueInHours) * time.Hour)

		return d.collaborators.Tasks.CreateTask(ctx, workflow.TenantID, step.Task.Description, step.Task.Assignee, dueAt)

	case models.ActionUpdateEntityStatus:
		if step.Status == nil {
			return "", Permanentf("status step has no configuration")
		}

		if event.EntityID == "" {
			return "", Permanentf("event carries no entity to update")
		}

		return d.collaborators.Status.UpdateEntityStatus(ctx, step.Status.EntityType, event.EntityID, step.Status.NewStatus)

	case models.ActionWait:
		if step.Wait == nil {
			return "", Permanentf("wait step has no configuration")
		}

		return "", wait(ctx, step.Wait.Duration)

	default:
		return "", Permanentf("unknown action variant %q", step.Variant)
	}
}

// resolveRecipient pulls the destination address out of the event snapshot.
// A selector that does not resolve is the "recipient has no contact method"
// case: permanent, no retry budget spent.
func resolveRecipient(event models.BusinessEvent, selector string) (string, error) {
	value, exists := event.Field(selector)
	if !exists {
		return "", Permanentf("recipient selector %q resolves to nothing", selector)
	}

	recipient, ok := value.(string)
	if !ok || recipient == "" {
		return "", Permanentf("recipient selector %q resolves to no contact method", selector)
	}

	return recipient, nil
}

func wait(ctx context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return Transient(ctx.Err())
	}
}
