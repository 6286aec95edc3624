package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/jobline/pkg/scheduling"
)

const shutdownTimeout = 30 * time.Second

// Service runs the scheduler until SIGINT or SIGTERM. SIGHUP reloads the
// schedules immediately.
type Service struct {
	scheduler *scheduling.Scheduler
	logger    *slog.Logger
}

func NewService(scheduler *scheduling.Scheduler, logger *slog.Logger) *Service {
	return &Service{
		scheduler: scheduler,
		logger:    logger.With("module", "scheduler_service"),
	}
}

func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.scheduler.Start(ctx); err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	defer signal.Stop(signals)

	for {
		select {
		case sig := <-signals:
			s.logger.InfoContext(ctx, "Received signal", "signal", sig)

			if sig == syscall.SIGHUP {
				if err := s.scheduler.Sync(ctx); err != nil {
					s.logger.ErrorContext(ctx, "Failed to reload schedules", "error", err)
				}

				continue
			}

			return s.stop()
		case <-ctx.Done():
			return s.stop()
		}
	}
}

func (s *Service) stop() error {
	s.logger.Info("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.scheduler.Stop(ctx)
}
