// Package main provides the Fieldline API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/dispatchd/fieldline/pkg/automation"
	"github.com/dispatchd/fieldline/pkg/cache"
	"github.com/dispatchd/fieldline/pkg/persistence"
	"github.com/dispatchd/fieldline/pkg/registry"
	"github.com/dispatchd/fieldline/pkg/services"
	"github.com/dispatchd/fieldline/pkg/web"
)

type API struct {
	logger        *slog.Logger
	persistence   persistence.Persistence
	workflowCache *cache.WorkflowCache
	validate      *validator.Validate
}

func NewAPI(logger *slog.Logger, persistence persistence.Persistence, workflowCache *cache.WorkflowCache) *API {
	return &API{
		logger:        logger,
		persistence:   persistence,
		workflowCache: workflowCache,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	reg := registry.NewRegistry(a.logger)

	var invalidator services.WorkflowInvalidator

	var matcherSource automation.WorkflowSource = a.persistence

	if a.workflowCache != nil {
		invalidator = a.workflowCache
		matcherSource = a.workflowCache
	}

	workflowService := services.NewWorkflow(a.persistence, reg, invalidator)
	executionService := services.NewExecutions(a.persistence)
	ingestService := automation.NewService(
		automation.NewTriggerMatcher(matcherSource, a.logger),
		automation.NewEnqueuer(a.persistence, 0, a.logger),
		a.logger,
	)

	handlers := web.NewAPIHandlers(workflowService, executionService, ingestService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Fieldline API")
	})

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

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
