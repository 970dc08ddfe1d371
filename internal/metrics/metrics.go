// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

// Package metrics exposes Prometheus instrumentation for the engine:
// playlist generation throughput and latency, pattern analysis activity,
// suggestion cache efficiency, external provider failures, and the
// context tracker's evaluation loop. The host application registers the
// default registry on whatever surface it serves.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Playlist generation metrics
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harmonia_generations_total",
			Help: "Total number of playlist generation attempts",
		},
		[]string{"template", "outcome"}, // outcome: "ok", "no_data", "error"
	)

	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harmonia_generation_duration_seconds",
			Help:    "Playlist generation duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	SelectorBackfills = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harmonia_selector_backfills_total",
			Help: "Total number of playlists that needed diversity cap backfill",
		},
	)

	// Pattern learning metrics
	PatternUpserts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harmonia_pattern_upserts_total",
			Help: "Total number of listening patterns written or refreshed",
		},
	)

	PatternAnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harmonia_pattern_analysis_duration_seconds",
			Help:    "Full per-user pattern analysis duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Suggestion cache metrics
	SuggestionCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harmonia_suggestion_cache_hits_total",
			Help: "Total number of suggestion cache hits",
		},
	)

	SuggestionCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harmonia_suggestion_cache_misses_total",
			Help: "Total number of suggestion cache misses",
		},
	)

	// External provider metrics
	ExternalLookupFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harmonia_external_lookup_failures_total",
			Help: "Total number of failed external provider lookups",
		},
		[]string{"provider"}, // "weather", "discovery", "features"
	)

	WeatherBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harmonia_weather_breaker_open",
			Help: "Whether the weather provider circuit breaker is open (1) or closed (0)",
		},
	)

	// Context tracker metrics
	TrackerEvaluations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harmonia_tracker_evaluations_total",
			Help: "Total number of context tracker evaluation ticks",
		},
	)

	TrackerChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harmonia_tracker_changes_total",
			Help: "Total number of detected context changes",
		},
		[]string{"type"}, // "time_shift", "weather_change", "activity_change", "listening_pattern_change"
	)

	TrackerSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harmonia_tracker_suppressed_total",
			Help: "Total number of context changes suppressed by the generation gate",
		},
	)
)

// ObserveGeneration records one generation attempt.
func ObserveGeneration(template, outcome string, start time.Time) {
	GenerationsTotal.WithLabelValues(template, outcome).Inc()
	GenerationDuration.Observe(time.Since(start).Seconds())
}
