// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

// Package patterns aggregates listening events into per-context
// statistical profiles. One analysis pass walks every dimension family
// (time-of-day, day-of-week, weather, activity, plus a fixed list of
// combined signatures), fetches matching events, and upserts a pattern
// per signature that clears its sample threshold.
package patterns

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harmonia-labs/harmonia/internal/config"
	"github.com/harmonia-labs/harmonia/internal/logging"
	"github.com/harmonia-labs/harmonia/internal/metrics"
	"github.com/harmonia-labs/harmonia/internal/models"
	"github.com/harmonia-labs/harmonia/internal/store"
)

// Dimension family values analyzed on every pass. Weather and activity
// values outside these lists still occur in events; they surface via the
// combined signatures a deployment configures, not via the fixed families.
var (
	timeValues = []string{"morning", "afternoon", "evening", "night"}
	dayValues  = []string{
		"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	}
	weatherValues  = []string{"sunny", "cloudy", "rainy", "snowy"}
	activityValues = []string{"stationary", "walking", "running", "cycling", "commuting"}
)

// DefaultCombinedSignatures is the fixed set of multi-dimension signatures
// analyzed in addition to the single-dimension families.
func DefaultCombinedSignatures() []models.ContextSignature {
	weekendMorning := func(day string) models.ContextSignature {
		return models.ContextSignature{
			TimeOfDay: models.DimOf("morning"),
			DayOfWeek: models.DimOf(day),
		}
	}
	weekendEvening := func(day string) models.ContextSignature {
		return models.ContextSignature{
			TimeOfDay: models.DimOf("evening"),
			DayOfWeek: models.DimOf(day),
		}
	}

	return []models.ContextSignature{
		weekendMorning("saturday"),
		weekendMorning("sunday"),
		weekendEvening("friday"),
		weekendEvening("saturday"),
	}
}

// Learner turns raw events into listening patterns. Analysis runs for the
// same user are serialized with a per-user mutex, so the read-then-write
// upsert can never race itself into duplicate patterns; the store's
// keyed upsert backstops cross-process runs.
type Learner struct {
	events   store.EventStore
	patterns store.PatternStore
	cfg      config.PatternsConfig

	combined []models.ContextSignature

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

// NewLearner creates a learner with the default combined signatures.
func NewLearner(events store.EventStore, patterns store.PatternStore, cfg config.PatternsConfig) *Learner {
	return &Learner{
		events:   events,
		patterns: patterns,
		cfg:      cfg,
		combined: DefaultCombinedSignatures(),
		users:    make(map[string]*sync.Mutex),
	}
}

// SetCombinedSignatures replaces the combined signature list. Call before
// the first analysis pass.
func (l *Learner) SetCombinedSignatures(sigs []models.ContextSignature) {
	l.combined = sigs
}

// userLock returns the per-user analysis mutex.
func (l *Learner) userLock(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.users[userID]
	if !ok {
		m = &sync.Mutex{}
		l.users[userID] = m
	}
	return m
}

// Analyze runs a full pattern analysis pass for one user. Signatures
// below their sample thresholds are skipped, not deleted.
func (l *Learner) Analyze(ctx context.Context, userID string) error {
	if userID == "" {
		return models.ErrNotAuthenticated
	}

	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	logger := logging.With().Str("component", "patterns").Str("user_id", userID).Logger()

	var analyzed, skipped int
	for _, sig := range l.allSignatures() {
		ok, err := l.analyzeSignature(ctx, userID, sig)
		if err != nil {
			return fmt.Errorf("analyze %s: %w", sig.Key(), err)
		}
		if ok {
			analyzed++
		} else {
			skipped++
		}
	}

	metrics.PatternAnalysisDuration.Observe(time.Since(start).Seconds())
	logger.Info().
		Int("patterns", analyzed).
		Int("skipped", skipped).
		Dur("elapsed", time.Since(start)).
		Msg("pattern analysis complete")

	return nil
}

// allSignatures enumerates every signature analyzed in one pass.
func (l *Learner) allSignatures() []models.ContextSignature {
	sigs := make([]models.ContextSignature, 0,
		len(timeValues)+len(dayValues)+len(weatherValues)+len(activityValues)+len(l.combined))

	for _, v := range timeValues {
		sigs = append(sigs, models.ContextSignature{TimeOfDay: models.DimOf(v)})
	}
	for _, v := range dayValues {
		sigs = append(sigs, models.ContextSignature{DayOfWeek: models.DimOf(v)})
	}
	for _, v := range weatherValues {
		sigs = append(sigs, models.ContextSignature{Weather: models.DimOf(v)})
	}
	for _, v := range activityValues {
		sigs = append(sigs, models.ContextSignature{Activity: models.DimOf(v)})
	}
	sigs = append(sigs, l.combined...)

	return sigs
}

// thresholds returns the fetch limit and minimum sample size for a
// signature. Combined signatures need more evidence and fetch fewer
// events.
func (l *Learner) thresholds(sig models.ContextSignature) (limit, minSamples int) {
	if sig.SetDimensions() >= 2 {
		return l.cfg.MaxEventsCombined, l.cfg.MinSamplesCombined
	}
	return l.cfg.MaxEvents, l.cfg.MinSamples
}

// analyzeSignature fetches events for one signature and upserts its
// pattern. Returns false when the sample threshold was not met.
func (l *Learner) analyzeSignature(ctx context.Context, userID string, sig models.ContextSignature) (bool, error) {
	limit, minSamples := l.thresholds(sig)

	events, err := l.events.EventsByContext(ctx, userID, store.EventFilters{
		Signature:     sig,
		RequireEnergy: true,
		Limit:         limit,
	})
	if err != nil {
		return false, fmt.Errorf("fetch events: %w", err)
	}
	if len(events) < minSamples {
		return false, nil
	}

	pattern := buildPattern(userID, sig, events)
	if err := l.patterns.UpsertPattern(ctx, &pattern); err != nil {
		return false, fmt.Errorf("upsert pattern: %w", err)
	}

	metrics.PatternUpserts.Inc()
	return true, nil
}

// buildPattern computes the aggregate profile for one signature.
func buildPattern(userID string, sig models.ContextSignature, events []models.ListeningEvent) models.ListeningPattern {
	return models.ListeningPattern{
		UserID:     userID,
		Signature:  sig.Normalize(),
		Averages:   averageFeatures(events),
		TopGenres:  rankNames(events, func(ev *models.ListeningEvent) []string { return ev.Genres }),
		TopArtists: rankNames(events, func(ev *models.ListeningEvent) []string { return []string{ev.Artist} }),
		SampleSize: len(events),
		Confidence: models.ConfidenceScore(len(events)),
		UpdatedAt:  time.Now().UTC(),
	}
}

// averageFeatures computes field-wise means; events missing a field are
// excluded from that field's mean rather than dragging it toward zero.
func averageFeatures(events []models.ListeningEvent) models.PatternAverages {
	mean := func(get func(models.AudioFeatures) *float64) float64 {
		var sum float64
		var n int
		for i := range events {
			if ptr := get(events[i].Features); ptr != nil {
				sum += *ptr
				n++
			}
		}
		if n == 0 {
			return 0
		}
		return sum / float64(n)
	}

	return models.PatternAverages{
		Energy:           mean(func(f models.AudioFeatures) *float64 { return f.Energy }),
		Valence:          mean(func(f models.AudioFeatures) *float64 { return f.Valence }),
		Tempo:            mean(func(f models.AudioFeatures) *float64 { return f.Tempo }),
		Danceability:     mean(func(f models.AudioFeatures) *float64 { return f.Danceability }),
		Acousticness:     mean(func(f models.AudioFeatures) *float64 { return f.Acousticness }),
		Instrumentalness: mean(func(f models.AudioFeatures) *float64 { return f.Instrumentalness }),
	}
}

// rankNames counts name frequency across the events and returns the top
// entries, capped, ties broken alphabetically for stable output.
func rankNames(events []models.ListeningEvent, get func(*models.ListeningEvent) []string) []models.RankedName {
	counts := make(map[string]int)
	for i := range events {
		for _, name := range get(&events[i]) {
			name = strings.TrimSpace(name)
			if name != "" {
				counts[strings.ToLower(name)]++
			}
		}
	}
	if len(counts) == 0 {
		return nil
	}

	ranked := make([]models.RankedName, 0, len(counts))
	for name, count := range counts {
		ranked = append(ranked, models.RankedName{Name: name, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Name < ranked[j].Name
	})

	if len(ranked) > models.TopListCap {
		ranked = ranked[:models.TopListCap]
	}
	return ranked
}
