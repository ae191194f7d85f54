package power

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/couchcryptid/agrisense/internal/domain"
	"github.com/couchcryptid/agrisense/internal/observability"
)

// CachedProvider wraps a ClimateProvider with an in-memory LRU cache keyed by
// point and date window.
type CachedProvider struct {
	inner   domain.ClimateProvider
	cache   *lru.Cache[string, []domain.ClimateObservation]
	metrics *observability.Metrics
}

// NewCachedProvider creates a cache decorator around a climate provider.
func NewCachedProvider(inner domain.ClimateProvider, maxEntries int, metrics *observability.Metrics) (*CachedProvider, error) {
	cache, err := lru.New[string, []domain.ClimateObservation](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create climate cache: %w", err)
	}
	return &CachedProvider{
		inner:   inner,
		cache:   cache,
		metrics: metrics,
	}, nil
}

func (c *CachedProvider) FetchClimateSeries(ctx context.Context, at domain.Point, start, end time.Time) ([]domain.ClimateObservation, error) {
	key := cacheKey(at, start, end)
	if series, ok := c.cache.Get(key); ok {
		c.metrics.ClimateCache.WithLabelValues("hit").Inc()
		return series, nil
	}
	c.metrics.ClimateCache.WithLabelValues("miss").Inc()

	series, err := c.inner.FetchClimateSeries(ctx, at, start, end)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty series so a window the provider has not filled yet is retried.
	if len(series) > 0 {
		c.cache.Add(key, series)
	}
	return series, nil
}

// Len reports the number of cached windows.
func (c *CachedProvider) Len() int {
	return c.cache.Len()
}

func cacheKey(at domain.Point, start, end time.Time) string {
	return fmt.Sprintf("%.4f,%.4f|%s|%s", at.Lat, at.Lon, start.UTC().Format(dateLayout), end.UTC().Format(dateLayout))
}
