// Package catalog serves the public service catalog through a Redis cache.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/booking-payments-api/internal/model"
)

const cacheKey = "services-list"

// Source loads the authoritative catalog.
type Source interface {
	ListServices(ctx context.Context) ([]model.Service, error)
}

// Cache reads the catalog from Redis and falls back to Source on a miss.
// Redis failures degrade to uncached reads.
type Cache struct {
	rdb redis.Cmdable
	src Source
	ttl time.Duration
	log logrus.FieldLogger
}

// New constructs a Cache.
func New(rdb redis.Cmdable, src Source, ttl time.Duration, log logrus.FieldLogger) *Cache {
	return &Cache{rdb: rdb, src: src, ttl: ttl, log: log}
}

// Services returns the catalog and whether it came from the cache.
func (c *Cache) Services(ctx context.Context) ([]model.Service, bool, error) {
	raw, err := c.rdb.Get(ctx, cacheKey).Bytes()
	switch {
	case err == nil:
		var services []model.Service
		if jsonErr := json.Unmarshal(raw, &services); jsonErr == nil {
			return services, true, nil
		}
		c.log.Warn("discarding undecodable services cache entry")
	case !errors.Is(err, redis.Nil):
		c.log.WithError(err).Warn("services cache read failed")
	}

	services, err := c.src.ListServices(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("load services: %w", err)
	}
	if services == nil {
		services = []model.Service{}
	}

	b, err := json.Marshal(services)
	if err == nil {
		err = c.rdb.Set(ctx, cacheKey, b, c.ttl).Err()
	}
	if err != nil {
		c.log.WithError(err).Warn("services cache write failed")
	}
	return services, false, nil
}
