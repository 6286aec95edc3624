package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/jobline/pkg/dispatch"
	"github.com/dukex/jobline/pkg/dispatch/redisqueue"
	"github.com/dukex/jobline/pkg/eventbus"
	redis "github.com/redis/go-redis/v9"
)

// NewDispatcher creates the worker dispatcher. "eventbus" publishes dispatch
// events on the bus; "redis" appends tasks to a Redis stream and needs client.
func NewDispatcher(provider string, bus eventbus.EventBus, client redis.UniversalClient, logger *slog.Logger) dispatch.Dispatcher {
	switch provider {
	case "eventbus":
		return dispatch.NewEventBusDispatcher(bus)
	case "redis":
		if client == nil {
			panic("redis dispatcher requires --redis-url")
		}

		return redisqueue.NewDispatcher(client, logger)
	default:
		panic("Unsupported dispatcher provider: " + provider)
	}
}

// NewRedisClient connects to url, or returns nil when url is empty.
func NewRedisClient(ctx context.Context, url string) *redis.Client {
	if url == "" {
		return nil
	}

	client, err := redisqueue.Connect(ctx, url)
	if err != nil {
		panic(fmt.Errorf("failed to connect to Redis: %w", err))
	}

	return client
}
