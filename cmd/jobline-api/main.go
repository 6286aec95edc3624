package main

import (
	"context"
	"os"

	"github.com/dukex/jobline/pkg/cmd"
	"github.com/dukex/jobline/pkg/log"
	"github.com/dukex/jobline/pkg/receivers/completion"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "jobline-api",
		Usage:                 "Manage pipelines and receive worker results",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (postgres:// or file://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
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
				Usage:   "Redis URL for the redis dispatcher and the completion queue",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "completion-queue",
				Usage:   "Redis list read for worker results",
				Value:   completion.DefaultQueue,
				Sources: cli.EnvVars("COMPLETION_QUEUE"),
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

			logger := log.WithModule("api")
			logger.InfoContext(ctx, "Initializing Jobline API")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "jobline-api", logger)

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
			orchestrator := cmd.NewOrchestrator(ctx, logger, "jobline-api", persistence, dispatcher, eventBus, command.Bool("tracing"))

			receiver := completion.NewReceiver(eventBus, orchestrator, logger)
			if err := receiver.Start(ctx); err != nil {
				return err
			}

			if redisClient != nil {
				consumer := completion.NewQueueConsumer(redisClient, command.String("completion-queue"), orchestrator, logger)
				consumer.Start(ctx)

				defer consumer.Stop()
			}

			api := NewAPI(logger, persistence, orchestrator)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
