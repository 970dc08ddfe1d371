// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"harmonia.yaml",
	"harmonia.yml",
	"/etc/harmonia/config.yaml",
	"/etc/harmonia/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "HARMONIA_CONFIG"

// Load loads configuration using koanf v2 with layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. HARMONIA_* environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// HARMONIA_PATTERNS_MIN_SAMPLES -> patterns.min_samples
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps HARMONIA_* environment variable names to koanf
// config paths. Unmapped keys are dropped so unrelated environment
// variables never pollute the config.
//
// Examples:
//   - HARMONIA_LOG_LEVEL -> logging.level
//   - HARMONIA_STORE_PATH -> store.path
//   - HARMONIA_TRACKER_INTERVAL -> tracker.interval
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Logging mappings
		"harmonia_log_level":  "logging.level",
		"harmonia_log_format": "logging.format",
		"harmonia_log_caller": "logging.caller",

		// Store mappings
		"harmonia_store_path":        "store.path",
		"harmonia_store_in_memory":   "store.in_memory",
		"harmonia_store_gc_interval": "store.gc_interval",

		// Pattern learning mappings
		"harmonia_patterns_max_events":           "patterns.max_events",
		"harmonia_patterns_max_events_combined":  "patterns.max_events_combined",
		"harmonia_patterns_min_samples":          "patterns.min_samples",
		"harmonia_patterns_min_samples_combined": "patterns.min_samples_combined",
		"harmonia_patterns_analysis_interval":    "patterns.analysis_interval",

		// Selection mappings
		"harmonia_selection_default_limit":      "selection.default_limit",
		"harmonia_selection_max_limit":          "selection.max_limit",
		"harmonia_selection_repeat_window":      "selection.repeat_window",
		"harmonia_selection_backfill_threshold": "selection.backfill_threshold",

		// Discovery mappings
		"harmonia_discovery_ratio":      "discovery.ratio",
		"harmonia_discovery_cadence":    "discovery.cadence",
		"harmonia_discovery_artist_cap": "discovery.artist_cap",
		"harmonia_discovery_timeout":    "discovery.timeout",

		// Weather mappings
		"harmonia_weather_cache_ttl":       "weather.cache_ttl",
		"harmonia_weather_timeout":         "weather.timeout",
		"harmonia_weather_rate_per_minute": "weather.rate_per_minute",

		// Tracker mappings
		"harmonia_tracker_interval":           "tracker.interval",
		"harmonia_tracker_min_generation_gap": "tracker.min_generation_gap",
		"harmonia_tracker_suggestion_ttl":     "tracker.suggestion_ttl",

		// Cache mappings
		"harmonia_cache_suggestion_capacity": "cache.suggestion_capacity",
		"harmonia_cache_weather_capacity":    "cache.weather_capacity",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}

// WatchConfigFile invokes callback whenever the config file changes.
// The caller handles mutex protection around reloads.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
