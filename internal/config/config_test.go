// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}
}

func TestDefault_Values(t *testing.T) {
	cfg := Default()

	if cfg.Patterns.MaxEvents != 200 {
		t.Errorf("Patterns.MaxEvents = %d, want 200", cfg.Patterns.MaxEvents)
	}
	if cfg.Patterns.MinSamplesCombined != 10 {
		t.Errorf("Patterns.MinSamplesCombined = %d, want 10", cfg.Patterns.MinSamplesCombined)
	}
	if cfg.Selection.DefaultLimit != 25 {
		t.Errorf("Selection.DefaultLimit = %d, want 25", cfg.Selection.DefaultLimit)
	}
	if cfg.Selection.RepeatWindow != 2*time.Hour {
		t.Errorf("Selection.RepeatWindow = %v, want 2h", cfg.Selection.RepeatWindow)
	}
	if cfg.Discovery.Ratio != 0.3 {
		t.Errorf("Discovery.Ratio = %f, want 0.3", cfg.Discovery.Ratio)
	}
	if cfg.Tracker.Interval != 15*time.Minute {
		t.Errorf("Tracker.Interval = %v, want 15m", cfg.Tracker.Interval)
	}
	if cfg.Tracker.SuggestionTTL != 24*time.Hour {
		t.Errorf("Tracker.SuggestionTTL = %v, want 24h", cfg.Tracker.SuggestionTTL)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"default limit above max", func(c *Config) { c.Selection.DefaultLimit = 500 }},
		{"zero pattern min samples", func(c *Config) { c.Patterns.MinSamples = 0 }},
		{"combined below single threshold", func(c *Config) { c.Patterns.MinSamplesCombined = 1 }},
		{"backfill threshold above one", func(c *Config) { c.Selection.BackfillThreshold = 1.5 }},
		{"discovery ratio above one", func(c *Config) { c.Discovery.Ratio = 1.2 }},
		{"missing store path", func(c *Config) { c.Store.Path = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"generation gap above suggestion ttl", func(c *Config) {
			c.Tracker.MinGenerationGap = 48 * time.Hour
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestValidate_InMemoryWithoutPath(t *testing.T) {
	cfg := Default()
	cfg.Store.InMemory = true
	cfg.Store.Path = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("in-memory store without path should validate: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	// No config file, no env overrides.
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Selection.DefaultLimit != 25 {
		t.Errorf("Selection.DefaultLimit = %d, want default 25", cfg.Selection.DefaultLimit)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "harmonia.yaml")
	yaml := []byte("selection:\n  default_limit: 40\npatterns:\n  min_samples: 5\n  min_samples_combined: 15\n")
	if err := os.WriteFile(path, yaml, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Selection.DefaultLimit != 40 {
		t.Errorf("Selection.DefaultLimit = %d, want 40 from file", cfg.Selection.DefaultLimit)
	}
	if cfg.Patterns.MinSamples != 5 {
		t.Errorf("Patterns.MinSamples = %d, want 5 from file", cfg.Patterns.MinSamples)
	}
	// Untouched settings keep their defaults.
	if cfg.Discovery.Cadence != 3 {
		t.Errorf("Discovery.Cadence = %d, want default 3", cfg.Discovery.Cadence)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "harmonia.yaml")
	if err := os.WriteFile(path, []byte("selection:\n  default_limit: 40\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HARMONIA_SELECTION_DEFAULT_LIMIT", "60")
	t.Setenv("HARMONIA_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Selection.DefaultLimit != 60 {
		t.Errorf("Selection.DefaultLimit = %d, want env override 60", cfg.Selection.DefaultLimit)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestEnvTransformFunc_DropsUnmapped(t *testing.T) {
	if got := envTransformFunc("PATH"); got != "" {
		t.Errorf("envTransformFunc(PATH) = %q, want empty", got)
	}
	if got := envTransformFunc("HARMONIA_TRACKER_INTERVAL"); got != "tracker.interval" {
		t.Errorf("envTransformFunc(HARMONIA_TRACKER_INTERVAL) = %q", got)
	}
}

func TestClone_Independent(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Selection.DefaultLimit = 99
	if cfg.Selection.DefaultLimit == 99 {
		t.Error("Clone() shares state with original")
	}
}
