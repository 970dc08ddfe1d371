// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

// Package config holds the engine configuration: tunable thresholds for
// pattern learning, scoring, selection, discovery, the context tracker,
// and the ambient concerns (store, weather, logging, caches).
//
// Configuration is loaded in layers via koanf: built-in defaults, then an
// optional YAML file, then HARMONIA_* environment variables. See koanf.go.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the engine.
type Config struct {
	Logging   LoggingConfig   `koanf:"logging"`
	Store     StoreConfig     `koanf:"store"`
	Patterns  PatternsConfig  `koanf:"patterns"`
	Selection SelectionConfig `koanf:"selection"`
	Discovery DiscoveryConfig `koanf:"discovery"`
	Weather   WeatherConfig   `koanf:"weather"`
	Tracker   TrackerConfig   `koanf:"tracker"`
	Cache     CacheConfig     `koanf:"cache"`
}

// LoggingConfig controls the global zerolog logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// StoreConfig controls the embedded Badger store.
type StoreConfig struct {
	// Path is the Badger database directory. Ignored when InMemory is set.
	Path string `koanf:"path"`

	// InMemory runs the store without persistence, for tests and ephemeral
	// deployments.
	InMemory bool `koanf:"in_memory"`

	// GCInterval is how often value-log garbage collection runs.
	GCInterval time.Duration `koanf:"gc_interval" validate:"min=0"`
}

// PatternsConfig controls pattern learning.
type PatternsConfig struct {
	// MaxEvents bounds the events fetched per single-dimension signature.
	MaxEvents int `koanf:"max_events" validate:"gt=0"`

	// MaxEventsCombined bounds the events fetched per combined signature.
	MaxEventsCombined int `koanf:"max_events_combined" validate:"gt=0"`

	// MinSamples is the minimum events before a single-dimension pattern
	// is stored.
	MinSamples int `koanf:"min_samples" validate:"gt=0"`

	// MinSamplesCombined is the minimum events before a combined pattern
	// is stored.
	MinSamplesCombined int `koanf:"min_samples_combined" validate:"gt=0"`

	// AnalysisInterval is how often the background analysis service
	// refreshes patterns for active users.
	AnalysisInterval time.Duration `koanf:"analysis_interval" validate:"gt=0"`
}

// SelectionConfig controls final playlist selection and diversification.
type SelectionConfig struct {
	DefaultLimit int `koanf:"default_limit" validate:"gt=0"`
	MaxLimit     int `koanf:"max_limit" validate:"gt=0"`

	// RepeatWindow is the recent-play window inside which a track's score
	// is halved.
	RepeatWindow time.Duration `koanf:"repeat_window" validate:"gt=0"`

	// BackfillThreshold is the fill fraction below which diversity caps
	// are relaxed to reach the requested length.
	BackfillThreshold float64 `koanf:"backfill_threshold" validate:"gt=0,lte=1"`
}

// DiscoveryConfig controls discovery blending.
type DiscoveryConfig struct {
	// Ratio is the discovery share of the final playlist.
	Ratio float64 `koanf:"ratio" validate:"gte=0,lte=1"`

	// Cadence interleaves one discovery track per this many familiar ones.
	Cadence int `koanf:"cadence" validate:"gt=0"`

	// ArtistCap bounds tracks per artist across familiar and discovery
	// combined.
	ArtistCap int `koanf:"artist_cap" validate:"gt=0"`

	// Timeout bounds the external discovery lookup.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// WeatherConfig controls the weather provider wrapper.
type WeatherConfig struct {
	// CacheTTL is how long a detected weather condition is reused.
	CacheTTL time.Duration `koanf:"cache_ttl" validate:"gt=0"`

	// Timeout bounds a single provider call.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// RatePerMinute caps provider calls per minute.
	RatePerMinute int `koanf:"rate_per_minute" validate:"gt=0"`
}

// TrackerConfig controls the context change tracker.
type TrackerConfig struct {
	// Interval is the evaluation tick period.
	Interval time.Duration `koanf:"interval" validate:"gt=0"`

	// MinGenerationGap suppresses proactive generation when a playlist was
	// generated for the user more recently than this.
	MinGenerationGap time.Duration `koanf:"min_generation_gap" validate:"gt=0"`

	// SuggestionTTL is how long a context-triggered suggestion stays
	// available before expiring.
	SuggestionTTL time.Duration `koanf:"suggestion_ttl" validate:"gt=0"`
}

// CacheConfig sizes the in-process caches.
type CacheConfig struct {
	SuggestionCapacity int `koanf:"suggestion_capacity" validate:"gt=0"`
	WeatherCapacity    int `koanf:"weather_capacity" validate:"gt=0"`
}

// Default returns a Config with all default values. Defaults are applied
// first, then overridden by config file and environment variables.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Store: StoreConfig{
			Path:       "/data/harmonia",
			InMemory:   false,
			GCInterval: 10 * time.Minute,
		},
		Patterns: PatternsConfig{
			MaxEvents:          200,
			MaxEventsCombined:  100,
			MinSamples:         3,
			MinSamplesCombined: 10,
			AnalysisInterval:   1 * time.Hour,
		},
		Selection: SelectionConfig{
			DefaultLimit:      25,
			MaxLimit:          100,
			RepeatWindow:      2 * time.Hour,
			BackfillThreshold: 0.8,
		},
		Discovery: DiscoveryConfig{
			Ratio:     0.3,
			Cadence:   3,
			ArtistCap: 2,
			Timeout:   10 * time.Second,
		},
		Weather: WeatherConfig{
			CacheTTL:      15 * time.Minute,
			Timeout:       5 * time.Second,
			RatePerMinute: 10,
		},
		Tracker: TrackerConfig{
			Interval:         15 * time.Minute,
			MinGenerationGap: 30 * time.Minute,
			SuggestionTTL:    24 * time.Hour,
		},
		Cache: CacheConfig{
			SuggestionCapacity: 1024,
			WeatherCapacity:    256,
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and cross-field invariants.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if c.Selection.DefaultLimit > c.Selection.MaxLimit {
		return fmt.Errorf("selection.default_limit (%d) exceeds selection.max_limit (%d)",
			c.Selection.DefaultLimit, c.Selection.MaxLimit)
	}
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("store.path required when store.in_memory is false")
	}
	if c.Patterns.MinSamplesCombined < c.Patterns.MinSamples {
		return fmt.Errorf("patterns.min_samples_combined (%d) below patterns.min_samples (%d)",
			c.Patterns.MinSamplesCombined, c.Patterns.MinSamples)
	}
	if c.Tracker.MinGenerationGap > c.Tracker.SuggestionTTL {
		return fmt.Errorf("tracker.min_generation_gap exceeds tracker.suggestion_ttl")
	}

	return nil
}

// Clone returns a deep copy. The struct has no reference fields today, so
// a value copy suffices, but callers should not rely on that.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
