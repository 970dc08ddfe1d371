// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

// Package engine orchestrates playlist generation: it detects context,
// picks the best learned pattern, scores the candidate pool, applies
// diversity selection, blends discovery tracks, and arranges the final
// order. This is the library boundary host applications call.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/harmonia-labs/harmonia/internal/cache"
	"github.com/harmonia-labs/harmonia/internal/config"
	"github.com/harmonia-labs/harmonia/internal/contextdetect"
	"github.com/harmonia-labs/harmonia/internal/discovery"
	"github.com/harmonia-labs/harmonia/internal/features"
	"github.com/harmonia-labs/harmonia/internal/logging"
	"github.com/harmonia-labs/harmonia/internal/metrics"
	"github.com/harmonia-labs/harmonia/internal/models"
	"github.com/harmonia-labs/harmonia/internal/patterns"
	"github.com/harmonia-labs/harmonia/internal/scoring"
	"github.com/harmonia-labs/harmonia/internal/selection"
	"github.com/harmonia-labs/harmonia/internal/store"
)

// candidateEventWindow bounds how many recent events feed the candidate
// pool of one generation request.
const candidateEventWindow = 1000

// suggestionCacheTTL keeps served suggestions hot briefly; writes
// invalidate, so staleness only shows across processes.
const suggestionCacheTTL = time.Minute

var validate = validator.New(validator.WithRequiredStructEnabled())

// Option configures optional engine collaborators.
type Option func(*options)

type options struct {
	weather  contextdetect.WeatherProvider
	source   discovery.Source
	activity func() string
	clock    func() time.Time
}

// WithWeatherProvider wires a weather lookup. The engine wraps it with
// caching, rate limiting, and a circuit breaker.
func WithWeatherProvider(p contextdetect.WeatherProvider) Option {
	return func(o *options) { o.weather = p }
}

// WithDiscoverySource wires an external source of unplayed tracks.
// Without one, generation runs on listening history alone.
func WithDiscoverySource(s discovery.Source) Option {
	return func(o *options) { o.source = s }
}

// WithActivitySource wires a current-activity signal ("running",
// "stationary", ...).
func WithActivitySource(f func() string) Option {
	return func(o *options) { o.activity = f }
}

// WithClock replaces the wall clock, for tests.
func WithClock(f func() time.Time) Option {
	return func(o *options) { o.clock = f }
}

// Engine is the recommendation engine facade.
type Engine struct {
	cfg       *config.Config
	store     store.Store
	learner   *patterns.Learner
	selector  *selection.Selector
	blender   *discovery.Blender
	estimator *features.Estimator
	detector  *contextdetect.Detector

	suggestions *cache.LRUCache[[]models.GeneratedPlaylist]

	now func() time.Time
}

// New assembles an engine over the given store. A nil config falls back
// to the defaults.
func New(cfg *config.Config, st store.Store, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = time.Now
	}

	var weather contextdetect.WeatherProvider
	if o.weather != nil {
		weather = contextdetect.NewClient(o.weather, contextdetect.ClientConfig{
			CacheTTL:      cfg.Weather.CacheTTL,
			CacheCapacity: cfg.Cache.WeatherCapacity,
			Timeout:       cfg.Weather.Timeout,
			RatePerMinute: cfg.Weather.RatePerMinute,
		})
	}

	estimator := features.NewEstimator()
	detector := contextdetect.NewDetector(st, weather)
	detector.ActivitySource = o.activity

	return &Engine{
		cfg:       cfg,
		store:     st,
		learner:   patterns.NewLearner(st, st, cfg.Patterns),
		selector:  &selection.Selector{RepeatWindow: cfg.Selection.RepeatWindow, BackfillThreshold: cfg.Selection.BackfillThreshold},
		blender:   discovery.NewBlender(o.source, estimator, discovery.Config{Ratio: cfg.Discovery.Ratio, Cadence: cfg.Discovery.Cadence, ArtistCap: cfg.Discovery.ArtistCap, Timeout: cfg.Discovery.Timeout}),
		estimator: estimator,
		detector:  detector,
		suggestions: cache.New[[]models.GeneratedPlaylist](
			cfg.Cache.SuggestionCapacity, suggestionCacheTTL),
		now: o.clock,
	}
}

// request carries everything one generation pass needs.
type request struct {
	template  models.Template
	name      string
	signature models.ContextSignature
	filters   *models.PlaylistFilters
	diversity selection.DiversityLevel
	limit     int
	triggered bool
	weather   string
	mood      models.Mood
	now       time.Time
}

// GenerateFromTemplate generates a playlist for one of the named
// templates. Unknown templates behave like right_now.
func (e *Engine) GenerateFromTemplate(ctx context.Context, userID string, template models.Template, limit int) (*models.GeneratedPlaylist, error) {
	if userID == "" {
		return nil, models.ErrNotAuthenticated
	}

	start := time.Now()
	spec := specFor(template)
	now := e.now()

	pl, err := e.generate(ctx, userID, request{
		template:  template,
		name:      spec.displayName,
		signature: spec.signature(now).Normalize(),
		diversity: spec.diversity,
		limit:     limit,
		now:       now,
	})
	metrics.ObserveGeneration(string(template), outcomeFor(err), start)
	return pl, err
}

// GenerateCustom generates a playlist from explicit filters instead of a
// template. Filters that empty the pool are relaxed before the request
// fails.
func (e *Engine) GenerateCustom(ctx context.Context, userID string, filters models.PlaylistFilters, limit int) (*models.GeneratedPlaylist, error) {
	if userID == "" {
		return nil, models.ErrNotAuthenticated
	}
	if err := validateFilters(&filters); err != nil {
		return nil, err
	}

	start := time.Now()
	pl, err := e.generate(ctx, userID, request{
		name:      "Custom Mix",
		signature: filters.Context.Normalize(),
		filters:   &filters,
		diversity: selection.DiversityMedium,
		limit:     limit,
		now:       e.now(),
	})
	metrics.ObserveGeneration("custom", outcomeFor(err), start)
	return pl, err
}

// GenerateForCurrentContext detects the user's current context and
// generates against it.
func (e *Engine) GenerateForCurrentContext(ctx context.Context, userID string, limit int) (*models.GeneratedPlaylist, error) {
	if userID == "" {
		return nil, models.ErrNotAuthenticated
	}

	start := time.Now()
	now := e.now()
	snap := e.detector.Detect(ctx, userID, now)

	pl, err := e.generate(ctx, userID, request{
		template:  models.TemplateRightNow,
		name:      "Right Now",
		signature: snap.Signature(),
		diversity: selection.DiversityMedium,
		limit:     limit,
		triggered: true,
		weather:   snap.Weather,
		mood:      snap.RecentMood,
		now:       now,
	})
	metrics.ObserveGeneration("context", outcomeFor(err), start)
	return pl, err
}

// CurrentContext exposes context detection for callers that need the raw
// snapshot, such as the change tracker.
func (e *Engine) CurrentContext(ctx context.Context, userID string) contextdetect.Snapshot {
	return e.detector.Detect(ctx, userID, e.now())
}

// AnalyzePatterns runs a full pattern analysis pass for the user.
func (e *Engine) AnalyzePatterns(ctx context.Context, userID string) error {
	return e.learner.Analyze(ctx, userID)
}

// RecordEvent persists one listening event.
func (e *Engine) RecordEvent(ctx context.Context, event *models.ListeningEvent) error {
	if event == nil || event.UserID == "" {
		return models.ErrNotAuthenticated
	}
	return e.store.SaveEvent(ctx, event)
}

// ContextualSuggestions returns the user's unexpired context-triggered
// suggestions, served from a short-lived cache.
func (e *Engine) ContextualSuggestions(ctx context.Context, userID string) ([]models.GeneratedPlaylist, error) {
	if userID == "" {
		return nil, models.ErrNotAuthenticated
	}

	if cached, ok := e.suggestions.Get(userID); ok {
		metrics.SuggestionCacheHits.Inc()
		return cached, nil
	}
	metrics.SuggestionCacheMisses.Inc()

	suggestions, err := e.store.SuggestionsForUser(ctx, userID, e.now())
	if err != nil {
		return nil, fmt.Errorf("load suggestions: %w", err)
	}

	e.suggestions.Add(userID, suggestions)
	return suggestions, nil
}

// SaveSuggestion persists a playlist as the user's current
// context-triggered suggestion, replacing any prior one. A zero expiry
// gets the configured suggestion TTL.
func (e *Engine) SaveSuggestion(ctx context.Context, playlist *models.GeneratedPlaylist) error {
	if playlist == nil || playlist.UserID == "" {
		return models.ErrNotAuthenticated
	}
	if playlist.ExpiresAt.IsZero() {
		playlist.ExpiresAt = e.now().Add(e.cfg.Tracker.SuggestionTTL)
	}
	if err := e.store.SaveSuggestion(ctx, playlist); err != nil {
		return fmt.Errorf("save suggestion: %w", err)
	}

	e.suggestions.Remove(playlist.UserID)
	return nil
}

// SavePlaylist persists a playlist the user accepted.
func (e *Engine) SavePlaylist(ctx context.Context, playlist *models.GeneratedPlaylist) error {
	if playlist == nil || playlist.UserID == "" {
		return models.ErrNotAuthenticated
	}
	return e.store.SavePlaylist(ctx, playlist)
}

// LastGenerationAt returns when the user last generated a playlist, the
// zero time when never.
func (e *Engine) LastGenerationAt(ctx context.Context, userID string) (time.Time, error) {
	return e.store.LastGenerationAt(ctx, userID)
}

// generate is the shared generation pipeline.
func (e *Engine) generate(ctx context.Context, userID string, req request) (*models.GeneratedPlaylist, error) {
	limit := e.clampLimit(req.limit)
	logger := logging.With().
		Str("component", "engine").
		Str("user_id", userID).
		Str("template", string(req.template)).
		Logger()

	events, err := e.store.RecentEvents(ctx, userID, candidateEventWindow)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	candidates := buildCandidates(events)
	candidates = e.estimateMissing(candidates)
	candidates = e.filterCandidates(candidates, req.filters)
	if len(candidates) == 0 {
		return nil, models.ErrNoData
	}

	pattern, err := e.pickPattern(ctx, userID, req.signature)
	if err != nil {
		return nil, err
	}

	scorer := scoring.NewScorer(scoring.WeightsFor(req.signature, req.template), req.now)
	pool := make([]models.ScoredTrack, 0, len(candidates))
	for i := range candidates {
		if pattern != nil {
			pool = append(pool, scorer.ScoreAgainstPattern(&candidates[i], pattern))
		} else {
			pool = append(pool, scorer.ScoreNeutral(&candidates[i]))
		}
	}

	selected := e.selector.Select(pool, limit, req.diversity, req.now)
	primary := make([]models.TrackCandidate, 0, len(selected.Tracks))
	for i := range selected.Tracks {
		primary = append(primary, selected.Tracks[i].Track)
	}

	final := e.blender.Blend(ctx, primary, pattern, req.template, limit)
	final = arrangeForTemplate(req.template, final)
	if len(final) == 0 {
		return nil, models.ErrNoData
	}

	playlist := e.assemble(userID, req, final, selected.BackfillUsed)

	if err := e.store.SetLastGenerationAt(ctx, userID, req.now); err != nil {
		logger.Warn().Err(err).Msg("last generation timestamp not recorded")
	}

	logger.Info().
		Str("playlist_id", playlist.ID).
		Int("tracks", len(final)).
		Bool("pattern_matched", pattern != nil).
		Bool("backfill", selected.BackfillUsed).
		Msg("playlist generated")

	return playlist, nil
}

// pickPattern finds the learned pattern for the signature: an exact match
// first, then a time-of-day-only fallback, then none.
func (e *Engine) pickPattern(ctx context.Context, userID string, sig models.ContextSignature) (*models.ListeningPattern, error) {
	if sig.Empty() {
		return nil, nil
	}

	learned, err := e.store.PatternsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}

	key := sig.Key()
	for i := range learned {
		if learned[i].Signature.Key() == key {
			return &learned[i], nil
		}
	}

	if sig.TimeOfDay.IsSet() && sig.SetDimensions() > 1 {
		fallback := models.ContextSignature{TimeOfDay: sig.TimeOfDay}.Key()
		for i := range learned {
			if learned[i].Signature.Key() == fallback {
				return &learned[i], nil
			}
		}
	}

	return nil, nil
}

// filterCandidates applies the custom filters, relaxing them in stages
// when they empty the pool: first the feature ranges are dropped, then
// everything.
func (e *Engine) filterCandidates(candidates []models.TrackCandidate, filters *models.PlaylistFilters) []models.TrackCandidate {
	if filters == nil || len(candidates) == 0 {
		return candidates
	}

	if out := applyFilters(candidates, filters); len(out) > 0 {
		return out
	}

	if len(filters.Genres) > 0 {
		genresOnly := &models.PlaylistFilters{Genres: filters.Genres}
		if out := applyFilters(candidates, genresOnly); len(out) > 0 {
			logging.Debug().Msg("feature range filters relaxed, genre filter kept")
			return out
		}
	}

	logging.Debug().Msg("all filters relaxed, pool was empty")
	return candidates
}

// estimateMissing fills in estimated audio features for candidates whose
// events carried none, so scoring never runs blind.
func (e *Engine) estimateMissing(candidates []models.TrackCandidate) []models.TrackCandidate {
	for i := range candidates {
		if candidates[i].Features.HasCore() {
			continue
		}
		candidates[i].Features = e.estimator.Estimate(features.TrackMeta{
			Genres:      candidates[i].Genres,
			Popularity:  candidates[i].Popularity,
			Duration:    candidates[i].Duration,
			Explicit:    candidates[i].Explicit,
			ReleaseYear: candidates[i].ReleaseYr,
		})
	}
	return candidates
}

// assemble builds the playlist record from the final track order.
func (e *Engine) assemble(userID string, req request, tracks []models.TrackCandidate, backfilled bool) *models.GeneratedPlaylist {
	ids := make([]string, 0, len(tracks))
	var total time.Duration
	for i := range tracks {
		ids = append(ids, tracks[i].TrackID)
		total += tracks[i].Duration
	}

	return &models.GeneratedPlaylist{
		ID:            uuid.New().String(),
		UserID:        userID,
		Name:          req.name,
		TrackIDs:      ids,
		Tracks:        tracks,
		TotalDuration: total,
		BackfillUsed:  backfilled,
		CreatedAt:     req.now,
		Snapshot: models.ContextSnapshot{
			Template:         req.template,
			Filters:          req.filters,
			Signature:        req.signature,
			ContextTriggered: req.triggered,
			DetectedWeather:  req.weather,
			DetectedMood:     req.mood,
			DetectedAt:       req.now,
		},
	}
}

func (e *Engine) clampLimit(limit int) int {
	if limit <= 0 {
		return e.cfg.Selection.DefaultLimit
	}
	if limit > e.cfg.Selection.MaxLimit {
		return e.cfg.Selection.MaxLimit
	}
	return limit
}

// validateFilters checks field bounds and that each min/max pair is
// ordered.
func validateFilters(f *models.PlaylistFilters) error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("invalid filters: %w", err)
	}

	ordered := func(name string, min, max *float64) error {
		if min != nil && max != nil && *min > *max {
			return fmt.Errorf("invalid filters: min_%s (%g) exceeds max_%s (%g)", name, *min, name, *max)
		}
		return nil
	}
	if err := ordered("energy", f.MinEnergy, f.MaxEnergy); err != nil {
		return err
	}
	if err := ordered("valence", f.MinValence, f.MaxValence); err != nil {
		return err
	}
	return ordered("tempo", f.MinTempo, f.MaxTempo)
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrNoData):
		return "no_data"
	default:
		return "error"
	}
}
