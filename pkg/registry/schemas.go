package registry

import "github.com/dispatchd/fieldline/pkg/models"

func registerStepSchemas(r *Registry) {
	r.RegisterSchema(models.ActionSendEmail, map[string]any{
		"type":     "object",
		"required": []string{"recipient_selector", "subject", "body"},
		"properties": map[string]any{
			"recipient_selector": map[string]any{"type": "string", "minLength": 1},
			"subject":            map[string]any{"type": "string", "minLength": 1},
			"body":               map[string]any{"type": "string", "minLength": 1},
			"template_vars":      map[string]any{"type": "object"},
		},
	})

	r.RegisterSchema(models.ActionSendSms, map[string]any{
		"type":     "object",
		"required": []string{"recipient_selector", "body"},
		"properties": map[string]any{
			"recipient_selector": map[string]any{"type": "string", "minLength": 1},
			"body":               map[string]any{"type": "string", "minLength": 1},
			"template_vars":      map[string]any{"type": "object"},
		},
	})

	r.RegisterSchema(models.ActionSendVoiceCall, map[string]any{
		"type":     "object",
		"required": []string{"recipient_selector"},
		"properties": map[string]any{
			"recipient_selector": map[string]any{"type": "string", "minLength": 1},
			"script_vars":        map[string]any{"type": "object"},
		},
	})

	r.RegisterSchema(models.ActionCreateTask, map[string]any{
		"type":     "object",
		"required": []string{"description"},
		"properties": map[string]any{
			"description":  map[string]any{"type": "string", "minLength": 1},
			"assignee":     map[string]any{"type": "string"},
			"due_in_hours": map[string]any{"type": "integer", "minimum": 0},
		},
	})

	r.RegisterSchema(models.ActionUpdateEntityStatus, map[string]any{
		"type":     "object",
		"required": []string{"entity_type", "new_status"},
		"properties": map[string]any{
			"entity_type": map[string]any{"type": "string", "minLength": 1},
			"new_status":  map[string]any{"type": "string", "minLength": 1},
		},
	})

	r.RegisterSchema(models.ActionWait, map[string]any{
		"type":     "object",
		"required": []string{"duration"},
		"properties": map[string]any{
			"duration": map[string]any{"type": "integer", "minimum": 1},
		},
	})
}
