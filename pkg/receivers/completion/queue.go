package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// DefaultQueue is the redis list workers push their results to.
const DefaultQueue = "jobline:completions"

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Report is one worker result as pushed on the completion queue.
type Report struct {
	JobID    string  `json:"job_id"`
	TaskName string  `json:"task_name,omitempty"`
	Outcome  Outcome `json:"outcome"`
	Error    string  `json:"error,omitempty"`
}

// QueueConsumer pops worker reports from a redis list.
type QueueConsumer struct {
	client       redis.UniversalClient
	queue        string
	orchestrator Orchestrator
	logger       *slog.Logger
	timeout      time.Duration
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func NewQueueConsumer(client redis.UniversalClient, queue string, orchestrator Orchestrator, logger *slog.Logger) *QueueConsumer {
	if queue == "" {
		queue = DefaultQueue
	}

	return &QueueConsumer{
		client:       client,
		queue:        queue,
		orchestrator: orchestrator,
		timeout:      time.Second,
		stopCh:       make(chan struct{}),
		logger: logger.With(
			"module", "completion_queue",
			"queue", queue,
		),
	}
}

func (c *QueueConsumer) Start(ctx context.Context) {
	c.logger.InfoContext(ctx, "Starting completion queue consumer")

	c.wg.Add(1)

	go c.consume(ctx)
}

func (c *QueueConsumer) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

func (c *QueueConsumer) consume(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			c.logger.InfoContext(ctx, "Completion queue consumer stopped")

			return
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Context cancelled, stopping completion queue consumer")

			return
		default:
			err := c.processNext(ctx)
			if err != nil && ctx.Err() == nil {
				c.logger.ErrorContext(ctx, "Error processing completion report", "error", err)
				time.Sleep(c.timeout)
			}
		}
	}
}

// processNext waits up to the poll timeout for one report and applies it.
func (c *QueueConsumer) processNext(ctx context.Context) error {
	result, err := c.client.BLPop(ctx, c.timeout, c.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop report from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	var report Report
	if err := json.Unmarshal([]byte(result[1]), &report); err != nil {
		c.logger.WarnContext(ctx, "Dropping malformed completion report", "message", result[1], "error", err)

		return nil
	}

	return c.Apply(ctx, report)
}

// Apply forwards a report to the orchestrator.
func (c *QueueConsumer) Apply(ctx context.Context, report Report) error {
	logger := c.logger.With("job_id", report.JobID, "task_name", report.TaskName)

	var err error

	switch report.Outcome {
	case OutcomeSucceeded:
		err = c.orchestrator.WorkerSucceeded(ctx, report.JobID)
	case OutcomeFailed:
		logger.InfoContext(ctx, "Worker failed", "error", report.Error)

		err = c.orchestrator.WorkerFailed(ctx, report.JobID)
	default:
		logger.WarnContext(ctx, "Dropping completion report with unknown outcome", "outcome", report.Outcome)

		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to apply %s report for job %s: %w", report.Outcome, report.JobID, err)
	}

	return nil
}
