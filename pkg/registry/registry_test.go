package registry_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchd/fieldline/pkg/models"
	"github.com/dispatchd/fieldline/pkg/registry"
)

func TestRegistry_RegistersAllVariants(t *testing.T) {
	r := registry.NewRegistry(slog.Default())

	for _, variant := range []models.ActionVariant{
		models.ActionSendEmail,
		models.ActionSendSms,
		models.ActionSendVoiceCall,
		models.ActionCreateTask,
		models.ActionUpdateEntityStatus,
		models.ActionWait,
	} {
		_, ok := r.Schema(variant)
		assert.True(t, ok, "missing schema for %s", variant)
	}
}

func TestRegistry_ValidateStep(t *testing.T) {
	r := registry.NewRegistry(slog.Default())

	tests := []struct {
		name    string
		step    models.ActionStep
		wantErr string
	}{
		{
			name: "valid email step",
			step: models.ActionStep{
				Variant: models.ActionSendEmail,
				Email: &models.EmailStepConfig{
					RecipientSelector: "entity.client.email",
					Subject:           "Invoice paid",
					Body:              "Thank you",
				},
			},
		},
		{
			name: "email step missing subject",
			step: models.ActionStep{
				Variant: models.ActionSendEmail,
				Email: &models.EmailStepConfig{
					RecipientSelector: "entity.client.email",
					Body:              "Thank you",
				},
			},
			wantErr: "subject",
		},
		{
			name: "valid task step",
			step: models.ActionStep{
				Variant: models.ActionCreateTask,
				Task:    &models.TaskStepConfig{Description: "call client", DueInHours: 48},
			},
		},
		{
			name: "wait step must have a positive duration",
			step: models.ActionStep{
				Variant: models.ActionWait,
				Wait:    &models.WaitStepConfig{},
			},
			wantErr: "duration",
		},
		{
			name: "variant with another variant's config",
			step: models.ActionStep{
				Variant: models.ActionSendSms,
				Email:   &models.EmailStepConfig{RecipientSelector: "x", Subject: "s", Body: "b"},
			},
			wantErr: "variant",
		},
		{
			name:    "unknown variant",
			step:    models.ActionStep{Variant: "send_fax"},
			wantErr: "send_fax",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.ValidateStep(tt.step)
			if tt.wantErr == "" {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRegistry_ValidWaitStep(t *testing.T) {
	r := registry.NewRegistry(slog.Default())

	err := r.ValidateStep(models.ActionStep{
		Variant: models.ActionWait,
		Wait:    &models.WaitStepConfig{Duration: 5 * time.Minute},
	})
	require.NoError(t, err)
}
