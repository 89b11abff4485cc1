// Package cache holds generated directives in Redis so repeated API requests
// for the same segment skip regeneration.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brightloop/campaign-insights/internal/directive"
)

// DirectiveCache stores directives keyed by segment id with a TTL.
type DirectiveCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a directive cache against the given Redis address.
func New(addr, password string, db int, ttl time.Duration) *DirectiveCache {
	return &DirectiveCache{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		ttl:    ttl,
	}
}

// Ping verifies the Redis connection.
func (c *DirectiveCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *DirectiveCache) Close() error {
	return c.client.Close()
}

func key(segmentID int) string {
	return fmt.Sprintf("directive:%d", segmentID)
}

// Get returns the cached directive, or (nil, nil) on a miss. Cache failures
// are returned so callers can decide to regenerate; they are never fatal.
func (c *DirectiveCache) Get(ctx context.Context, segmentID int) (*directive.Directive, error) {
	data, err := c.client.Get(ctx, key(segmentID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var d directive.Directive
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	return &d, nil
}

// Set stores a directive for the configured TTL.
func (c *DirectiveCache) Set(ctx context.Context, segmentID int, d directive.Directive) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, key(segmentID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached directive for a segment. A new attribute
// snapshot makes the old directive stale.
func (c *DirectiveCache) Invalidate(ctx context.Context, segmentID int) error {
	if err := c.client.Del(ctx, key(segmentID)).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
