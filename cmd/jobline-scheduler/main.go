// Package main runs the schedule-driven pipeline starter.
package main

import (
	"context"
	"os"
	"time"

	"github.com/dukex/jobline/pkg/cmd"
	"github.com/dukex/jobline/pkg/log"
	"github.com/dukex/jobline/pkg/scheduling"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "jobline-scheduler",
		Usage:                 "Start pipelines from their cron schedules",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (postgres:// or file://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "dispatcher",
				Usage:   "Worker dispatcher (eventbus, redis)",
				Value:   "eventbus",
				Sources: cli.EnvVars("DISPATCHER"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the redis dispatcher",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "timezone",
				Usage:   "Time zone cron expressions are evaluated in",
				Value:   "UTC",
				Sources: cli.EnvVars("SCHEDULER_TIMEZONE"),
			},
			&cli.DurationFlag{
				Name:    "sync-interval",
				Usage:   "How often schedules are reloaded from persistence",
				Value:   scheduling.DefaultSyncInterval,
				Sources: cli.EnvVars("SCHEDULER_SYNC_INTERVAL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OpenTelemetry traces over OTLP/HTTP",
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

			logger := log.WithModule("scheduler")
			logger.InfoContext(ctx, "Initializing Jobline scheduler")

			location, err := time.LoadLocation(command.String("timezone"))
			if err != nil {
				return err
			}

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "jobline-scheduler", logger)

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			redisClient := cmd.NewRedisClient(ctx, command.String("redis-url"))
			if redisClient != nil {
				defer func() {
					if err := redisClient.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close redis client", "error", err)
					}
				}()
			}

			dispatcher := cmd.NewDispatcher(command.String("dispatcher"), eventBus, redisClient, logger)
			orchestrator := cmd.NewOrchestrator(ctx, logger, "jobline-scheduler", persistence, dispatcher, eventBus, command.Bool("tracing"))

			scheduler := scheduling.NewScheduler(
				persistence,
				orchestrator,
				logger,
				scheduling.WithLocation(location),
				scheduling.WithSyncInterval(command.Duration("sync-interval")),
			)

			return NewService(scheduler, logger).Run(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
