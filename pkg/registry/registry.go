// Package registry validates action step configurations against their
// per-variant JSON schemas before a workflow is accepted.
package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dispatchd/fieldline/pkg/models"
)

type Registry struct {
	logger  *slog.Logger
	schemas map[models.ActionVariant]map[string]any
}

func NewRegistry(log *slog.Logger) *Registry {
	r := &Registry{
		logger:  log.With("module", "registry"),
		schemas: make(map[models.ActionVariant]map[string]any),
	}

	registerStepSchemas(r)

	return r
}

// RegisterSchema installs the JSON schema for one action variant.
func (r *Registry) RegisterSchema(variant models.ActionVariant, schema map[string]any) {
	r.schemas[variant] = schema
}

// Variants lists every registered action variant.
func (r *Registry) Variants() []models.ActionVariant {
	variants := make([]models.ActionVariant, 0, len(r.schemas))
	for variant := range r.schemas {
		variants = append(variants, variant)
	}

	return variants
}

// Schema returns the JSON schema registered for a variant.
func (r *Registry) Schema(variant models.ActionVariant) (map[string]any, bool) {
	schema, ok := r.schemas[variant]

	return schema, ok
}

// ValidateStep checks the step's shape (exactly one matching configuration)
// and validates that configuration against the variant's schema.
func (r *Registry) ValidateStep(step models.ActionStep) error {
	err := step.Validate()
	if err != nil {
		return err
	}

	schema, ok := r.schemas[step.Variant]
	if !ok {
		return fmt.Errorf("action variant '%s' not registered", step.Variant)
	}

	config, err := stepConfig(step)
	if err != nil {
		return err
	}

	return validateJSONSchema(config, schema)
}

// stepConfig extracts the variant's configuration as a plain map so the
// schema validator sees exactly what the API accepted.
func stepConfig(step models.ActionStep) (map[string]any, error) {
	var source any

	switch step.Variant {
	case models.ActionSendEmail:
		source = step.Email
	case models.ActionSendSms:
		source = step.Sms
	case models.ActionSendVoiceCall:
		source = step.Voice
	case models.ActionCreateTask:
		source = step.Task
	case models.ActionUpdateEntityStatus:
		source = step.Status
	case models.ActionWait:
		source = step.Wait
	default:
		return nil, fmt.Errorf("action variant '%s' not registered", step.Variant)
	}

	raw, err := json.Marshal(source)
	if err != nil {
		return nil, fmt.Errorf("failed to encode step configuration: %w", err)
	}

	var config map[string]any

	err = json.Unmarshal(raw, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to decode step configuration: %w", err)
	}

	return config, nil
}

func validateJSONSchema(config map[string]any, schema map[string]any) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("validation errors: %s", strings.Join(details, "; "))
	}

	return nil
}
