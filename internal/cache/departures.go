package cache

import (
	"context"
	"log/slog"
	"time"

	"slroute/internal/domain"
	"slroute/internal/metrics"
	"slroute/internal/optimizer"
)

// CachedDepartures wraps a departure source with a short-TTL Redis cache.
// Cache failures fall through to the upstream; a stale-but-cached departure
// list beats a second API round trip within the TTL.
type CachedDepartures struct {
	upstream optimizer.DepartureSource
	cache    *RedisCache
	ttl      time.Duration
	metrics  *metrics.Collector
	logger   *slog.Logger
}

func NewCachedDepartures(upstream optimizer.DepartureSource, cache *RedisCache, ttl time.Duration, m *metrics.Collector, logger *slog.Logger) *CachedDepartures {
	return &CachedDepartures{
		upstream: upstream,
		cache:    cache,
		ttl:      ttl,
		metrics:  m,
		logger:   logger.With("component", "departure_cache"),
	}
}

func (c *CachedDepartures) Departures(ctx context.Context, siteID string, window time.Duration, transportMode string) ([]domain.Departure, error) {
	key := KeyDepartures(siteID, window, transportMode)

	var cached []domain.Departure
	found, err := c.cache.GetJSON(ctx, key, &cached)
	if err == nil && found {
		c.metrics.CacheHits.Inc()
		return cached, nil
	}
	c.metrics.CacheMisses.Inc()

	deps, err := c.upstream.Departures(ctx, siteID, window, transportMode)
	if err != nil {
		return nil, err
	}

	if err := c.cache.SetJSON(ctx, key, deps, c.ttl); err != nil {
		c.logger.Debug("failed to cache departures", "site_id", siteID, "error", err)
	}
	return deps, nil
}
