// Package redisqueue dispatches workers onto a Redis stream.
package redisqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/jobline/pkg/dispatch"
	redis "github.com/redis/go-redis/v9"
)

const (
	DefaultStream  = "jobline:workers"
	taskKeyPrefix  = "jobline:task:"
	DefaultTaskTTL = 7 * 24 * time.Hour
)

// Dispatcher claims the task name with SETNX and appends the task to a
// stream read by worker runners. A name can be claimed once per TaskTTL.
type Dispatcher struct {
	client  redis.UniversalClient
	stream  string
	taskTTL time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Dispatcher)

func WithStream(stream string) Option {
	return func(d *Dispatcher) {
		d.stream = stream
	}
}

func WithTaskTTL(ttl time.Duration) Option {
	return func(d *Dispatcher) {
		d.taskTTL = ttl
	}
}

func NewDispatcher(client redis.UniversalClient, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		client:  client,
		stream:  DefaultStream,
		taskTTL: DefaultTaskTTL,
		logger:  logger.With("module", "redis_dispatcher"),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	d.logger = d.logger.With("stream", d.stream)

	return d
}

// Connect opens a client from a redis:// URL and pings it.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

func (d *Dispatcher) Dispatch(ctx context.Context, request dispatch.Request) (dispatch.TaskHandle, error) {
	handle := dispatch.TaskHandle{
		TaskName:  request.TaskName,
		NotBefore: d.now().UTC().Add(request.Delay),
	}

	payload, err := json.Marshal(request.Params)
	if err != nil {
		return dispatch.TaskHandle{}, fmt.Errorf("failed to encode params of %s: %w", request.TaskName, err)
	}

	claimed, err := d.client.SetNX(ctx, taskKeyPrefix+request.TaskName, request.JobID, d.taskTTL).Result()
	if err != nil {
		return dispatch.TaskHandle{}, fmt.Errorf("failed to claim task %s: %w", request.TaskName, err)
	}

	if !claimed {
		return dispatch.TaskHandle{}, fmt.Errorf("%w: %s", dispatch.ErrDuplicateTask, request.TaskName)
	}

	err = d.client.XAdd(ctx, &redis.XAddArgs{
		Stream: d.stream,
		Values: map[string]any{
			"task_name":    request.TaskName,
			"pipeline_id":  request.PipelineID,
			"job_id":       request.JobID,
			"worker_class": request.WorkerClass,
			"params":       string(payload),
			"not_before":   handle.NotBefore.Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		d.client.Del(ctx, taskKeyPrefix+request.TaskName)

		return dispatch.TaskHandle{}, fmt.Errorf("failed to append task %s: %w", request.TaskName, err)
	}

	d.logger.DebugContext(ctx, "Task dispatched",
		"task_name", request.TaskName,
		"job_id", request.JobID,
		"worker_class", request.WorkerClass,
	)

	return handle, nil
}
