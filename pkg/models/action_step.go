package models

import (
	"errors"
	"fmt"
	"time"
)

// ActionVariant identifies the kind of side effect an action step performs.
type ActionVariant string

const (
	ActionSendEmail          ActionVariant = "send_email"
	ActionSendSms            ActionVariant = "send_sms"
	ActionSendVoiceCall      ActionVariant = "send_voice_call"
	ActionCreateTask         ActionVariant = "create_task"
	ActionUpdateEntityStatus ActionVariant = "update_entity_status"
	ActionWait               ActionVariant = "wait"
)

var ErrStepConfigMismatch = errors.New("step configuration does not match variant")

// ActionStep is a closed tagged variant: exactly the configuration struct for
// its variant must be set. Steps are validated when the workflow is saved,
// not at dispatch time.
type ActionStep struct {
	Variant    ActionVariant `json:"variant"              validate:"required"`
	BestEffort bool          `json:"best_effort,omitempty"`

	Email  *EmailStepConfig  `json:"email,omitempty"`
	Sms    *SmsStepConfig    `json:"sms,omitempty"`
	Voice  *VoiceStepConfig  `json:"voice,omitempty"`
	Task   *TaskStepConfig   `json:"task,omitempty"`
	Status *StatusStepConfig `json:"status,omitempty"`
	Wait   *WaitStepConfig   `json:"wait,omitempty"`
}

type EmailStepConfig struct {
	RecipientSelector string         `json:"recipient_selector" validate:"required"`
	Subject           string         `json:"subject"            validate:"required"`
	Body              string         `json:"body"               validate:"required"`
	TemplateVars      map[string]any `json:"template_vars,omitempty"`
}

type SmsStepConfig struct {
	RecipientSelector string         `json:"recipient_selector" validate:"required"`
	Body              string         `json:"body"               validate:"required"`
	TemplateVars      map[string]any `json:"template_vars,omitempty"`
}

type VoiceStepConfig struct {
	RecipientSelector string         `json:"recipient_selector" validate:"required"`
	ScriptVars        map[string]any `json:"script_vars,omitempty"`
}

type TaskStepConfig struct {
	Description string `json:"description" validate:"required"`
	Assignee    string `json:"assignee,omitempty"`
	DueInHours  int    `json:"due_in_hours,omitempty" validate:"gte=0"`
}

type StatusStepConfig struct {
	EntityType string `json:"entity_type" validate:"required"`
	NewStatus  string `json:"new_status"  validate:"required"`
}

type WaitStepConfig struct {
	Duration time.Duration `json:"duration" validate:"required,gt=0"`
}

// Validate checks that the step carries exactly the configuration its variant
// needs and nothing else.
func (s ActionStep) Validate() error {
	configured := 0

	for _, present := range []bool{
		s.Email != nil, s.Sms != nil, s.Voice != nil,
		s.Task != nil, s.Status != nil, s.Wait != nil,
	} {
		if present {
			configured++
		}
	}

	if configured != 1 {
		return fmt.Errorf("%w: step %q carries %d configurations", ErrStepConfigMismatch, s.Variant, configured)
	}

	var match bool

	switch s.Variant {
	case ActionSendEmail:
		match = s.Email != nil
	case ActionSendSms:
		match = s.Sms != nil
	case ActionSendVoiceCall:
		match = s.Voice != nil
	case ActionCreateTask:
		match = s.Task != nil
	case ActionUpdateEntityStatus:
		match = s.Status != nil
	case ActionWait:
		match = s.Wait != nil
	default:
		return fmt.Errorf("%w: unknown variant %q", ErrStepConfigMismatch, s.Variant)
	}

	if !match {
		return fmt.Errorf("%w: variant %q configured with another variant's fields", ErrStepConfigMismatch, s.Variant)
	}

	return nil
}
