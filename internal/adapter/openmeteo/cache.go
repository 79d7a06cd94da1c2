package openmeteo

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/resq-unified/flood-risk-service/internal/domain"
	"github.com/resq-unified/flood-risk-service/internal/observability"
)

// Fetcher is the forecast surface shared by Client and CachedClient.
type Fetcher interface {
	FetchWeather(ctx context.Context, lat, lon float64) (domain.WeatherReport, error)
	FetchDailyForecast(ctx context.Context, lat, lon float64) ([]domain.DailyPoint, error)
	FetchCurrent(ctx context.Context, lat, lon float64) (domain.WeatherSample, error)
}

// CachedClient wraps a Fetcher with a TTL cache keyed by endpoint and
// coordinates rounded to four decimals. Errors are never cached.
type CachedClient struct {
	inner   Fetcher
	cache   *cache.Cache
	metrics *observability.Metrics
}

// NewCachedClient creates a cache decorator around a forecast fetcher.
func NewCachedClient(inner Fetcher, ttl time.Duration, metrics *observability.Metrics) *CachedClient {
	return &CachedClient{
		inner:   inner,
		cache:   cache.New(ttl, 2*ttl),
		metrics: metrics,
	}
}

func (c *CachedClient) FetchWeather(ctx context.Context, lat, lon float64) (domain.WeatherReport, error) {
	return cached(c, endpointFull, lat, lon, cloneReport, func() (domain.WeatherReport, error) {
		return c.inner.FetchWeather(ctx, lat, lon)
	})
}

func (c *CachedClient) FetchDailyForecast(ctx context.Context, lat, lon float64) ([]domain.DailyPoint, error) {
	return cached(c, endpointDaily, lat, lon, cloneDaily, func() ([]domain.DailyPoint, error) {
		return c.inner.FetchDailyForecast(ctx, lat, lon)
	})
}

func (c *CachedClient) FetchCurrent(ctx context.Context, lat, lon float64) (domain.WeatherSample, error) {
	return cached(c, endpointCurrent, lat, lon, identity[domain.WeatherSample], func() (domain.WeatherSample, error) {
		return c.inner.FetchCurrent(ctx, lat, lon)
	})
}

// cached serves key from the cache or fetches and stores it. Values are
// cloned on the way in and out so callers never share the cached slices.
func cached[T any](c *CachedClient, endpoint string, lat, lon float64, clone func(T) T, fetch func() (T, error)) (T, error) {
	key := fmt.Sprintf("%s:%.4f,%.4f", endpoint, lat, lon)
	if v, ok := c.cache.Get(key); ok {
		c.metrics.ForecastCache.WithLabelValues(endpoint, "hit").Inc()
		return clone(v.(T)), nil
	}
	c.metrics.ForecastCache.WithLabelValues(endpoint, "miss").Inc()

	v, err := fetch()
	if err != nil {
		return v, err
	}
	c.cache.Set(key, clone(v), cache.DefaultExpiration)
	return v, nil
}

func cloneReport(r domain.WeatherReport) domain.WeatherReport {
	r.Hourly = slices.Clone(r.Hourly)
	r.Daily = slices.Clone(r.Daily)
	return r
}

func cloneDaily(d []domain.DailyPoint) []domain.DailyPoint { return slices.Clone(d) }

func identity[T any](v T) T { return v }
