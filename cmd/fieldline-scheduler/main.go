// Package main provides the execution scheduler daemon: it claims due
// executions, dispatches their action steps and applies the retry policy.
// A cron-driven reaper recovers executions orphaned by crashed instances,
// and a Prometheus endpoint exposes queue metrics.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"

	"github.com/dispatchd/fieldline/pkg/automation"
	"github.com/dispatchd/fieldline/pkg/cmd"
	"github.com/dispatchd/fieldline/pkg/collaborators"
	"github.com/dispatchd/fieldline/pkg/log"
	"github.com/dispatchd/fieldline/pkg/metrics"
	"github.com/dispatchd/fieldline/pkg/otelhelper"
)

const serviceName = "fieldline-scheduler"

func main() {
	logger := log.WithModule("scheduler")

	command := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Process the durable execution queue and dispatch workflow actions",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "Delay between queue polls",
				Value:   5 * time.Second,
				Sources: cli.EnvVars("POLL_INTERVAL"),
			},
			&cli.IntFlag{
				Name:    "batch-size",
				Usage:   "Maximum executions claimed per poll",
				Value:   25,
				Sources: cli.EnvVars("BATCH_SIZE"),
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Concurrent dispatch workers",
				Value:   4,
				Sources: cli.EnvVars("WORKER_COUNT"),
			},
			&cli.DurationFlag{
				Name:    "backoff-base",
				Usage:   "First retry delay; doubles per attempt",
				Value:   30 * time.Second,
				Sources: cli.EnvVars("BACKOFF_BASE"),
			},
			&cli.DurationFlag{
				Name:    "backoff-cap",
				Usage:   "Upper bound on the retry delay",
				Value:   time.Hour,
				Sources: cli.EnvVars("BACKOFF_CAP"),
			},
			&cli.DurationFlag{
				Name:    "reap-after",
				Usage:   "How long an execution may stay running before the reaper returns it to the queue",
				Value:   10 * time.Minute,
				Sources: cli.EnvVars("REAP_AFTER"),
			},
			&cli.StringFlag{
				Name:    "reap-schedule",
				Usage:   "Cron expression for the stale-claim reaper",
				Value:   "*/5 * * * *",
				Sources: cli.EnvVars("REAP_SCHEDULE"),
			},
			&cli.IntFlag{
				Name:    "metrics-port",
				Usage:   "Port for the Prometheus metrics endpoint",
				Value:   9100,
				Sources: cli.EnvVars("METRICS_PORT"),
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

			logger.InfoContext(ctx, "Initializing Fieldline scheduler")

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

			registry := prometheus.NewRegistry()
			registry.MustRegister(collectors.NewGoCollector())

			schedulerMetrics := metrics.NewScheduler(registry)

			go serveMetrics(ctx, logger, int(command.Int("metrics-port")), registry)

			dispatcher := automation.NewDispatcher(collaborators.LoggingSet(logger), logger)

			scheduler := automation.NewScheduler(persistence, dispatcher, automation.SchedulerConfig{
				PollInterval: command.Duration("poll-interval"),
				BatchSize:    int(command.Int("batch-size")),
				WorkerCount:  int(command.Int("workers")),
				BackoffBase:  command.Duration("backoff-base"),
				BackoffCap:   command.Duration("backoff-cap"),
			}, schedulerMetrics, logger)

			reaper := cron.New()

			_, err := reaper.AddFunc(command.String("reap-schedule"), func() {
				_, err := scheduler.Reap(ctx, command.Duration("reap-after"))
				if err != nil {
					logger.ErrorContext(ctx, "Reaper run failed", "error", err)
				}
			})
			if err != nil {
				return err
			}

			reaper.Start()
			defer reaper.Stop()

			err = scheduler.Start(ctx)
			if err != nil && ctx.Err() == nil {
				return err
			}

			logger.InfoContext(ctx, "Scheduler stopped")

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func serveMetrics(ctx context.Context, logger *slog.Logger, port int, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	logger.InfoContext(ctx, "Serving metrics", "port", port)

	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logger.ErrorContext(ctx, "Metrics server failed", "error", err)
	}
}
