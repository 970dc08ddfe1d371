// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

// Package contextdetect derives the user's current situational context:
// the time-of-day bucket, day of week, weather condition, activity, and
// two change-detection signals computed from recent listening (top genres
// and coarse mood).
package contextdetect

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/harmonia-labs/harmonia/internal/logging"
	"github.com/harmonia-labs/harmonia/internal/models"
	"github.com/harmonia-labs/harmonia/internal/store"
)

// recentEventWindow is how many recent events feed the genre and mood
// signals.
const recentEventWindow = 20

// Mood thresholds on the mean energy/valence axes.
const (
	moodHighThreshold = 0.6
	moodLowThreshold  = 0.4
)

// BucketForHour maps an hour of day to its canonical bucket:
// [5,12) morning, [12,17) afternoon, [17,21) evening, else night.
// Every hour comparison in the engine goes through this function.
func BucketForHour(hour int) models.TimeOfDay {
	switch {
	case hour >= 5 && hour < 12:
		return models.TimeMorning
	case hour >= 12 && hour < 17:
		return models.TimeAfternoon
	case hour >= 17 && hour < 21:
		return models.TimeEvening
	default:
		return models.TimeNight
	}
}

// Snapshot is the detector's output: the persistable context dimensions
// plus the recent-listening signals used only for change detection.
type Snapshot struct {
	TimeOfDay models.TimeOfDay
	DayOfWeek string
	Weather   string
	Activity  string

	// RecentGenres is the top 3 genres among the recent event window.
	RecentGenres []string

	// RecentMood is the coarse energy/valence classification of the
	// recent event window.
	RecentMood models.Mood
}

// Signature converts the snapshot to a full context signature.
func (s Snapshot) Signature() models.ContextSignature {
	sig := models.ContextSignature{
		TimeOfDay: models.DimOf(string(s.TimeOfDay)),
		DayOfWeek: models.DimOf(s.DayOfWeek),
	}
	if s.Weather != "" {
		sig.Weather = models.DimOf(s.Weather)
	}
	if s.Activity != "" {
		sig.Activity = models.DimOf(s.Activity)
	}
	return sig.Normalize()
}

// WeatherProvider looks up the current weather condition. Implementations
// wrap an external service; Client in this package adds caching, rate
// limiting, and a circuit breaker.
type WeatherProvider interface {
	CurrentWeather(ctx context.Context) (Condition, error)
}

// Condition is a weather lookup result.
type Condition struct {
	// Condition is the normalized condition name, e.g. "sunny", "rainy",
	// "cloudy", "snowy".
	Condition string

	// TemperatureC is the temperature in degrees Celsius.
	TemperatureC float64
}

// Detector computes context snapshots. Weather and activity signals are
// both optional; their absence degrades the snapshot, never fails it.
type Detector struct {
	events  store.EventStore
	weather WeatherProvider

	// ActivitySource reports the user's current activity ("running",
	// "stationary", ...) or "" when unknown. Optional.
	ActivitySource func() string
}

// NewDetector creates a detector. weather may be nil when no provider is
// configured.
func NewDetector(events store.EventStore, weather WeatherProvider) *Detector {
	return &Detector{events: events, weather: weather}
}

// Detect computes the snapshot for the given user at the given time.
func (d *Detector) Detect(ctx context.Context, userID string, now time.Time) Snapshot {
	snap := Snapshot{
		TimeOfDay:  BucketForHour(now.Hour()),
		DayOfWeek:  strings.ToLower(now.Weekday().String()),
		RecentMood: models.MoodBalanced,
	}

	if d.weather != nil {
		cond, err := d.weather.CurrentWeather(ctx)
		if err != nil {
			logging.Debug().Err(err).Str("user_id", userID).Msg("weather lookup failed, continuing without")
		} else {
			snap.Weather = strings.ToLower(cond.Condition)
		}
	}

	if d.ActivitySource != nil {
		snap.Activity = strings.ToLower(d.ActivitySource())
	}

	recent, err := d.events.RecentEvents(ctx, userID, recentEventWindow)
	if err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("recent events fetch failed, mood and genre signals unavailable")
		return snap
	}

	snap.RecentGenres = topGenres(recent, 3)
	snap.RecentMood = classifyMood(recent)

	return snap
}

// topGenres ranks genres among the events by frequency, ties broken
// alphabetically for stability.
func topGenres(events []models.ListeningEvent, n int) []string {
	counts := make(map[string]int)
	for i := range events {
		for _, g := range events[i].Genres {
			g = strings.ToLower(strings.TrimSpace(g))
			if g != "" {
				counts[g]++
			}
		}
	}
	if len(counts) == 0 {
		return nil
	}

	genres := make([]string, 0, len(counts))
	for g := range counts {
		genres = append(genres, g)
	}
	sort.Slice(genres, func(i, j int) bool {
		if counts[genres[i]] != counts[genres[j]] {
			return counts[genres[i]] > counts[genres[j]]
		}
		return genres[i] < genres[j]
	})

	if len(genres) > n {
		genres = genres[:n]
	}
	return genres
}

// classifyMood thresholds the mean energy/valence of the events at 0.6
// and 0.4 on each axis.
func classifyMood(events []models.ListeningEvent) models.Mood {
	var energySum, valenceSum float64
	var energyN, valenceN int

	for i := range events {
		if e := events[i].Features.Energy; e != nil {
			energySum += *e
			energyN++
		}
		if v := events[i].Features.Valence; v != nil {
			valenceSum += *v
			valenceN++
		}
	}
	if energyN == 0 || valenceN == 0 {
		return models.MoodBalanced
	}

	energy := energySum / float64(energyN)
	valence := valenceSum / float64(valenceN)

	switch {
	case energy >= moodHighThreshold && valence >= moodHighThreshold:
		return models.MoodEnergeticHappy
	case energy >= moodHighThreshold && valence < moodLowThreshold:
		return models.MoodEnergeticIntense
	case energy < moodLowThreshold && valence >= moodHighThreshold:
		return models.MoodCalmHappy
	case energy < moodLowThreshold && valence < moodLowThreshold:
		return models.MoodCalmMelancholic
	default:
		return models.MoodBalanced
	}
}
