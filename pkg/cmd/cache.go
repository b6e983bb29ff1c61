package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dispatchd/fieldline/pkg/cache"
	"github.com/dispatchd/fieldline/pkg/persistence"
)

// NewWorkflowCache builds the redis read-through workflow cache. An empty
// URL disables caching and returns nil; callers fall back to direct store
// reads.
func NewWorkflowCache(ctx context.Context, logger *slog.Logger, store persistence.WorkflowRepository, redisURL string, ttl time.Duration) (*cache.WorkflowCache, error) {
	if redisURL == "" {
		return nil, nil
	}

	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(options)

	err = client.Ping(ctx).Err()
	if err != nil {
		// The cache degrades to store reads, so a cold redis is a warning,
		// not a startup failure.
		logger.WarnContext(ctx, "Redis unreachable at startup", "error", err)
	}

	return cache.NewWorkflowCache(client, store, ttl, logger), nil
}
