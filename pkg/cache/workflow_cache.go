// Package cache puts a redis read-through cache in front of the workflow
// store for the hot matching path.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dispatchd/fieldline/pkg/models"
	"github.com/dispatchd/fieldline/pkg/persistence"
)

const defaultTTL = 30 * time.Second

// WorkflowCache caches ActiveWorkflowsByTrigger results per (tenant, trigger)
// pair. Redis being down degrades to direct store reads, never to an error on
// the ingestion path.
type WorkflowCache struct {
	client *redis.Client
	store  persistence.WorkflowRepository
	ttl    time.Duration
	logger *slog.Logger
}

// NewWorkflowCache creates a workflow cache. ttl <= 0 selects the default.
func NewWorkflowCache(client *redis.Client, store persistence.WorkflowRepository, ttl time.Duration, logger *slog.Logger) *WorkflowCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &WorkflowCache{
		client: client,
		store:  store,
		ttl:    ttl,
		logger: logger.With("module", "workflow_cache"),
	}
}

// ActiveWorkflowsByTrigger serves the matcher's candidate lookup, reading
// through to the store on a miss.
func (c *WorkflowCache) ActiveWorkflowsByTrigger(ctx context.Context, tenantID string, trigger models.TriggerType) ([]*models.Workflow, error) {
	key := cacheKey(tenantID, trigger)

	cached, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var workflows []*models.Workflow

		err = json.Unmarshal(cached, &workflows)
		if err == nil {
			return workflows, nil
		}

		c.logger.WarnContext(ctx, "Discarding undecodable cache entry", "key", key, "error", err)
	} else if err != redis.Nil {
		c.logger.WarnContext(ctx, "Cache read failed, falling back to store", "key", key, "error", err)
	}

	workflows, err := c.store.ActiveWorkflowsByTrigger(ctx, tenantID, trigger)
	if err != nil {
		return nil, err
	}

	c.fill(ctx, key, workflows)

	return workflows, nil
}

// Invalidate drops the cached candidate list for one (tenant, trigger) pair.
// Called by the workflow service after every definition change.
func (c *WorkflowCache) Invalidate(ctx context.Context, tenantID string, trigger models.TriggerType) {
	key := cacheKey(tenantID, trigger)

	err := c.client.Del(ctx, key).Err()
	if err != nil {
		// The TTL bounds how long a stale list can survive.
		c.logger.WarnContext(ctx, "Cache invalidation failed", "key", key, "error", err)
	}
}

func (c *WorkflowCache) fill(ctx context.Context, key string, workflows []*models.Workflow) {
	payload, err := json.Marshal(workflows)
	if err != nil {
		return
	}

	err = c.client.Set(ctx, key, payload, c.ttl).Err()
	if err != nil {
		c.logger.WarnContext(ctx, "Cache write failed", "key", key, "error", err)
	}
}

func cacheKey(tenantID string, trigger models.TriggerType) string {
	return fmt.Sprintf("fieldline:workflows:%s:%s", tenantID, trigger)
}
