package server

import (
	"context"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const renderCacheKey = "whitelist:render"

// renderCache keeps the rendered whitelist in Redis so the game server's
// polling does not hit Postgres on every request. A cache failure degrades to
// a direct render, never to an error.
type renderCache struct {
	client rueidis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func newRenderCache(client rueidis.Client, ttl time.Duration, logger *zap.Logger) *renderCache {
	return &renderCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("render_cache"),
	}
}

// get returns the cached render and whether it was present.
func (c *renderCache) get(ctx context.Context) (string, bool) {
	if c.client == nil {
		return "", false
	}

	value, err := c.client.Do(ctx, c.client.B().Get().Key(renderCacheKey).Build()).ToString()
	if err != nil {
		if !rueidis.IsRedisNil(err) {
			c.logger.Warn("Failed to read render cache", zap.Error(err))
		}

		return "", false
	}

	return value, true
}

// set stores a render with the configured TTL.
func (c *renderCache) set(ctx context.Context, value string) {
	if c.client == nil {
		return
	}

	err := c.client.Do(ctx,
		c.client.B().Set().Key(renderCacheKey).Value(value).Ex(c.ttl).Build()).Error()
	if err != nil {
		c.logger.Warn("Failed to write render cache", zap.Error(err))
	}
}

// invalidate drops the cached render after a whitelist mutation.
func (c *renderCache) invalidate(ctx context.Context) {
	if c.client == nil {
		return
	}

	err := c.client.Do(ctx, c.client.B().Del().Key(renderCacheKey).Build()).Error()
	if err != nil {
		c.logger.Warn("Failed to invalidate render cache", zap.Error(err))
	}
}
