// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

package contextdetect

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/harmonia-labs/harmonia/internal/cache"
	"github.com/harmonia-labs/harmonia/internal/logging"
	"github.com/harmonia-labs/harmonia/internal/metrics"
)

// weatherCacheKey is the single cache slot; weather is location-global
// for a deployment today.
const weatherCacheKey = "current"

// ErrWeatherUnavailable is returned when no fresh or cached condition can
// be produced. Callers treat it as "context without weather".
var ErrWeatherUnavailable = errors.New("weather unavailable")

// ClientConfig tunes the weather client wrapper.
type ClientConfig struct {
	CacheTTL      time.Duration
	CacheCapacity int
	Timeout       time.Duration
	RatePerMinute int
}

// Client wraps an upstream WeatherProvider with a TTL cache, a rate
// limiter, and a circuit breaker. A cached condition is always preferred;
// the upstream is only consulted on cache misses, and upstream failures
// degrade to ErrWeatherUnavailable rather than propagating.
type Client struct {
	upstream WeatherProvider
	cache    *cache.LRUCache[Condition]
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[Condition]
	timeout  time.Duration
}

// NewClient wraps upstream with caching and failure isolation.
func NewClient(upstream WeatherProvider, cfg ClientConfig) *Client {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = 16
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 10
	}

	breaker := gobreaker.NewCircuitBreaker[Condition](gobreaker.Settings{
		Name:        "weather",
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				metrics.WeatherBreakerState.Set(1)
			} else {
				metrics.WeatherBreakerState.Set(0)
			}
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("weather breaker state change")
		},
	})

	return &Client{
		upstream: upstream,
		cache:    cache.New[Condition](cfg.CacheCapacity, cfg.CacheTTL),
		limiter:  rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), cfg.RatePerMinute),
		breaker:  breaker,
		timeout:  cfg.Timeout,
	}
}

// CurrentWeather returns the cached condition when fresh, otherwise
// consults the upstream through the rate limiter and breaker.
func (c *Client) CurrentWeather(ctx context.Context) (Condition, error) {
	if cond, ok := c.cache.Get(weatherCacheKey); ok {
		return cond, nil
	}

	if !c.limiter.Allow() {
		metrics.ExternalLookupFailures.WithLabelValues("weather").Inc()
		return Condition{}, ErrWeatherUnavailable
	}

	cond, err := c.breaker.Execute(func() (Condition, error) {
		lookupCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return c.upstream.CurrentWeather(lookupCtx)
	})
	if err != nil {
		metrics.ExternalLookupFailures.WithLabelValues("weather").Inc()
		logging.Debug().Err(err).Msg("weather upstream lookup failed")
		return Condition{}, ErrWeatherUnavailable
	}

	c.cache.Add(weatherCacheKey, cond)
	return cond, nil
}
