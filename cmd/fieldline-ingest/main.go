// Package main provides the Kafka ingestion daemon: it consumes business
// events from the event bus and enqueues matching workflow executions.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/dispatchd/fieldline/pkg/automation"
	"github.com/dispatchd/fieldline/pkg/cmd"
	"github.com/dispatchd/fieldline/pkg/log"
	"github.com/dispatchd/fieldline/pkg/models"
	"github.com/dispatchd/fieldline/pkg/otelhelper"
)

const serviceName = "fieldline-ingest"

func main() {
	logger := log.WithModule("ingest")

	command := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Consume business events from the event bus and enqueue workflow executions",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the workflow cache (empty disables caching)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.DurationFlag{
				Name:    "cache-ttl",
				Usage:   "TTL for cached workflow candidate lists",
				Value:   30 * time.Second,
				Sources: cli.EnvVars("CACHE_TTL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OTLP traces",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.InfoContext(ctx, "Initializing Fieldline ingestion")

			if command.Bool("tracing") {
				_, err := otelhelper.NewTracer(ctx, serviceName)
				if err != nil {
					logger.WarnContext(ctx, "Tracing disabled, exporter setup failed", "error", err)
				}
			}

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				err := persistence.Close(context.WithoutCancel(ctx))
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), serviceName, logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			workflowCache, err := cmd.NewWorkflowCache(ctx, logger, persistence, command.String("redis-url"), command.Duration("cache-ttl"))
			if err != nil {
				return err
			}

			var matcherSource automation.WorkflowSource = persistence
			if workflowCache != nil {
				matcherSource = workflowCache
			}

			ingestService := automation.NewService(
				automation.NewTriggerMatcher(matcherSource, logger),
				automation.NewEnqueuer(persistence, 0, logger),
				logger,
			)

			err = eventBus.Subscribe(ctx, func(ctx context.Context, event models.BusinessEvent) error {
				_, err := ingestService.SubmitEvent(ctx, event)
				if errors.Is(err, automation.ErrMissingTenant) || errors.Is(err, automation.ErrUnknownTriggerType) {
					// Invalid events never become valid; ack and drop.
					logger.WarnContext(ctx, "Dropping invalid business event", "event_id", event.ID, "error", err)

					return nil
				}

				return err
			})
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Consuming business events")

			<-ctx.Done()

			logger.InfoContext(ctx, "Shutting down ingestion")

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
