package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchd/fieldline/pkg/automation"
	"github.com/dispatchd/fieldline/pkg/models"
	"github.com/dispatchd/fieldline/pkg/persistence/memory"
	"github.com/dispatchd/fieldline/pkg/registry"
	"github.com/dispatchd/fieldline/pkg/services"
	"github.com/dispatchd/fieldline/pkg/web"
)

func setupTestApp(t *testing.T) (*fiber.App, *memory.Persistence) {
	t.Helper()

	store := memory.NewPersistence()
	logger := slog.Default()

	workflowService := services.NewWorkflow(store, registry.NewRegistry(logger), nil)
	executionService := services.NewExecutions(store)
	ingestService := automation.NewService(
		automation.NewTriggerMatcher(store, logger),
		automation.NewEnqueuer(store, 0, logger),
		logger,
	)

	handlers := web.NewAPIHandlers(workflowService, executionService, ingestService, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()

	app.Post("/events", handlers.SubmitEvent)

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Put("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Get("/:id/counters", handlers.GetWorkflowCounters)

	e := app.Group("/executions")
	e.Get("/", handlers.GetExecutions)
	e.Get("/:id", handlers.GetExecution)

	app.Get("/health", handlers.HealthCheck)

	return app, store
}

func doJSON(t *testing.T, app *fiber.App, method, path, tenant string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	if tenant != "" {
		req.Header.Set(web.TenantHeader, tenant)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, raw
}

func emailWorkflowRequest() web.CreateWorkflowRequest {
	return web.CreateWorkflowRequest{
		Name:        "Thank you note",
		Active:      true,
		TriggerType: models.TriggerInvoicePaid,
		Steps: []models.ActionStep{
			{
				Variant: models.ActionSendEmail,
				Email: &models.EmailStepConfig{
					RecipientSelector: "entity.client.email",
					Subject:           "Thanks",
					Body:              "Payment received",
				},
			},
		},
	}
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/", "tenant-1", emailWorkflowRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Workflow
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "tenant-1", created.TenantID)
	assert.Equal(t, models.TriggerInvoicePaid, created.TriggerType)
}

func TestAPIHandlers_CreateWorkflowRejectsZeroSteps(t *testing.T) {
	app, _ := setupTestApp(t)

	req := emailWorkflowRequest()
	req.Steps = nil

	resp, _ := doJSON(t, app, http.MethodPost, "/workflows/", "tenant-1", req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_CreateWorkflowRequiresTenant(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/workflows/", "", emailWorkflowRequest())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_GetWorkflowIsTenantScoped(t *testing.T) {
	app, _ := setupTestApp(t)

	_, body := doJSON(t, app, http.MethodPost, "/workflows/", "tenant-1", emailWorkflowRequest())

	var created models.Workflow
	require.NoError(t, json.Unmarshal(body, &created))

	resp, _ := doJSON(t, app, http.MethodGet, "/workflows/"+created.ID, "tenant-2", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/workflows/"+created.ID, "tenant-1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIHandlers_SubmitEventFansOut(t *testing.T) {
	app, store := setupTestApp(t)

	_, _ = doJSON(t, app, http.MethodPost, "/workflows/", "tenant-1", emailWorkflowRequest())

	resp, body := doJSON(t, app, http.MethodPost, "/events", "tenant-1", web.SubmitEventRequest{
		Type:       models.TriggerInvoicePaid,
		EntityType: "invoice",
		EntityID:   "inv-1",
		Entity:     map[string]any{"client": map[string]any{"email": "c@example.com"}},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var ack web.SubmitEventResponse
	require.NoError(t, json.Unmarshal(body, &ack))
	assert.NotEmpty(t, ack.EventID)
	require.Len(t, ack.ExecutionIDs, 1)

	entry, err := store.ExecutionLogByID(t.Context(), ack.ExecutionIDs[0])
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPending, entry.Status)
}

func TestAPIHandlers_SubmitEventRequiresTenant(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/events", "", web.SubmitEventRequest{
		Type: models.TriggerInvoicePaid,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_SubmitEventRejectsUnknownType(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/events", "tenant-1", web.SubmitEventRequest{
		Type: "meteor.strike",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_ListExecutions(t *testing.T) {
	app, _ := setupTestApp(t)

	_, _ = doJSON(t, app, http.MethodPost, "/workflows/", "tenant-1", emailWorkflowRequest())
	_, _ = doJSON(t, app, http.MethodPost, "/events", "tenant-1", web.SubmitEventRequest{
		Type:     models.TriggerInvoicePaid,
		EntityID: "inv-1",
	})

	resp, body := doJSON(t, app, http.MethodGet, "/executions/?status=pending", "tenant-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Executions []*models.ExecutionLog `json:"executions"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Len(t, result.Executions, 1)

	// Another tenant sees nothing.
	resp, body = doJSON(t, app, http.MethodGet, "/executions/", "tenant-2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Empty(t, result.Executions)
}

func TestAPIHandlers_WorkflowCounters(t *testing.T) {
	app, _ := setupTestApp(t)

	_, body := doJSON(t, app, http.MethodPost, "/workflows/", "tenant-1", emailWorkflowRequest())

	var created models.Workflow
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body := doJSON(t, app, http.MethodGet, "/workflows/"+created.ID+"/counters", "tenant-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var counters models.WorkflowCounters
	require.NoError(t, json.Unmarshal(body, &counters))
	assert.Equal(t, created.ID, counters.WorkflowID)
	assert.Zero(t, counters.ExecutionCount)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
