// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

// Package tracker watches each user's situational context and proactively
// generates a playlist suggestion when it changes: a new time-of-day
// bucket, a weather or activity change, or a shift in what they have been
// listening to. A minimum gap since the last generation keeps suggestions
// from piling up.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harmonia-labs/harmonia/internal/config"
	"github.com/harmonia-labs/harmonia/internal/contextdetect"
	"github.com/harmonia-labs/harmonia/internal/logging"
	"github.com/harmonia-labs/harmonia/internal/metrics"
	"github.com/harmonia-labs/harmonia/internal/models"
)

// ChangeType classifies what moved between two context snapshots.
type ChangeType string

const (
	ChangeTimeShift        ChangeType = "time_shift"
	ChangeWeather          ChangeType = "weather_change"
	ChangeActivity         ChangeType = "activity_change"
	ChangeListeningPattern ChangeType = "listening_pattern_change"
)

// Change is one detected context transition.
type Change struct {
	Type        ChangeType
	Description string
}

// Notification is a suggestion delivery: a short title and body plus the
// generated playlist.
type Notification struct {
	Title    string
	Body     string
	Playlist *models.GeneratedPlaylist
}

// Sink receives suggestion notifications. Implementations push to
// whatever surface the host application has; delivery failures are
// logged, never retried here.
type Sink interface {
	Deliver(ctx context.Context, userID string, n Notification) error
}

// Generator is the slice of the engine the tracker drives. Satisfied by
// *engine.Engine.
type Generator interface {
	CurrentContext(ctx context.Context, userID string) contextdetect.Snapshot
	GenerateFromTemplate(ctx context.Context, userID string, template models.Template, limit int) (*models.GeneratedPlaylist, error)
	SaveSuggestion(ctx context.Context, playlist *models.GeneratedPlaylist) error
	LastGenerationAt(ctx context.Context, userID string) (time.Time, error)
}

// Tracker periodically evaluates watched users and turns context changes
// into stored suggestions. Runs as a supervised service.
type Tracker struct {
	gen  Generator
	sink Sink
	cfg  config.TrackerConfig

	now func() time.Time

	mu    sync.Mutex
	users map[string]bool
	prev  map[string]contextdetect.Snapshot
}

// New creates a tracker. sink may be nil when the host has no delivery
// surface; suggestions are still stored.
func New(gen Generator, sink Sink, cfg config.TrackerConfig) *Tracker {
	return &Tracker{
		gen:   gen,
		sink:  sink,
		cfg:   cfg,
		now:   time.Now,
		users: make(map[string]bool),
		prev:  make(map[string]contextdetect.Snapshot),
	}
}

// Watch adds a user to the evaluation loop. The first evaluation only
// records a baseline snapshot; changes fire from the second on.
func (t *Tracker) Watch(userID string) {
	if userID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.users[userID] = true
}

// Unwatch removes a user and forgets their baseline.
func (t *Tracker) Unwatch(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.users, userID)
	delete(t.prev, userID)
}

// String names the service in supervisor logs.
func (t *Tracker) String() string { return "context-tracker" }

// Serve runs the evaluation loop until the context is cancelled.
func (t *Tracker) Serve(ctx context.Context) error {
	interval := t.cfg.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logging.Info().Dur("interval", interval).Msg("context tracker started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("context tracker stopping")
			return ctx.Err()
		case <-ticker.C:
			t.evaluateAll(ctx)
		}
	}
}

// evaluateAll walks a snapshot of the watched user set.
func (t *Tracker) evaluateAll(ctx context.Context) {
	t.mu.Lock()
	ids := make([]string, 0, len(t.users))
	for id := range t.users {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	for _, id := range ids {
		t.evaluate(ctx, id)
	}
}

// evaluate runs one tick for one user.
func (t *Tracker) evaluate(ctx context.Context, userID string) {
	metrics.TrackerEvaluations.Inc()
	now := t.now()

	snap := t.gen.CurrentContext(ctx, userID)

	t.mu.Lock()
	prev, seen := t.prev[userID]
	t.prev[userID] = snap
	t.mu.Unlock()

	if !seen {
		return
	}

	changes := diff(prev, snap)
	if len(changes) == 0 {
		return
	}
	for _, c := range changes {
		metrics.TrackerChanges.WithLabelValues(string(c.Type)).Inc()
	}

	logger := logging.With().
		Str("component", "tracker").
		Str("user_id", userID).
		Logger()

	last, err := t.gen.LastGenerationAt(ctx, userID)
	if err != nil {
		logger.Warn().Err(err).Msg("generation gate check failed, skipping tick")
		return
	}
	if !last.IsZero() && now.Sub(last) < t.cfg.MinGenerationGap {
		metrics.TrackerSuppressed.Inc()
		logger.Debug().Time("last_generation", last).Msg("context change suppressed by generation gate")
		return
	}

	template := templateFor(snap, now)

	// Generation outlives a mid-tick shutdown; the suggestion either
	// completes or it doesn't, never half-saves.
	genCtx := context.WithoutCancel(ctx)
	playlist, err := t.gen.GenerateFromTemplate(genCtx, userID, template, 0)
	if err != nil {
		if errors.Is(err, models.ErrNoData) {
			logger.Debug().Msg("no listening data for proactive suggestion")
			return
		}
		logger.Error().Err(err).Str("template", string(template)).Msg("proactive generation failed")
		return
	}

	playlist.Snapshot.ContextTriggered = true
	playlist.ExpiresAt = now.Add(t.cfg.SuggestionTTL)
	if err := t.gen.SaveSuggestion(genCtx, playlist); err != nil {
		logger.Error().Err(err).Msg("suggestion not saved")
		return
	}

	logger.Info().
		Str("playlist_id", playlist.ID).
		Str("template", string(template)).
		Int("changes", len(changes)).
		Msg("context-triggered suggestion generated")

	if t.sink != nil {
		n := Notification{
			Title:    changes[0].Description,
			Body:     fmt.Sprintf("%s is ready: %d tracks picked for right now.", playlist.Name, len(playlist.Tracks)),
			Playlist: playlist,
		}
		if err := t.sink.Deliver(genCtx, userID, n); err != nil {
			logger.Warn().Err(err).Msg("suggestion notification not delivered")
		}
	}
}

// diff lists the context transitions between two snapshots.
func diff(prev, cur contextdetect.Snapshot) []Change {
	var changes []Change

	if prev.TimeOfDay != cur.TimeOfDay {
		changes = append(changes, Change{
			Type:        ChangeTimeShift,
			Description: timeGreeting(cur.TimeOfDay),
		})
	}
	// Weather changes only count when both snapshots had a signal; the
	// lookup coming up or going away is not a condition change.
	if prev.Weather != "" && cur.Weather != "" && prev.Weather != cur.Weather {
		changes = append(changes, Change{
			Type:        ChangeWeather,
			Description: fmt.Sprintf("Weather changed to %s", cur.Weather),
		})
	}
	if prev.Activity != cur.Activity && (prev.Activity != "" || cur.Activity != "") {
		desc := "Activity wound down"
		if cur.Activity != "" {
			desc = fmt.Sprintf("Looks like you're %s", cur.Activity)
		}
		changes = append(changes, Change{Type: ChangeActivity, Description: desc})
	}
	if listeningShifted(prev, cur) {
		changes = append(changes, Change{
			Type:        ChangeListeningPattern,
			Description: "Your listening mood shifted",
		})
	}

	return changes
}

// listeningShifted reports a mood change or a complete turnover of the
// recent top genres.
func listeningShifted(prev, cur contextdetect.Snapshot) bool {
	if prev.RecentMood != cur.RecentMood {
		return true
	}
	if len(prev.RecentGenres) == 0 || len(cur.RecentGenres) == 0 {
		return false
	}
	was := make(map[string]bool, len(prev.RecentGenres))
	for _, g := range prev.RecentGenres {
		was[g] = true
	}
	for _, g := range cur.RecentGenres {
		if was[g] {
			return false
		}
	}
	return true
}

func timeGreeting(tod models.TimeOfDay) string {
	switch tod {
	case models.TimeMorning:
		return "Good morning"
	case models.TimeAfternoon:
		return "Good afternoon"
	case models.TimeEvening:
		return "Good evening"
	default:
		return "Up late?"
	}
}

// templateFor picks the suggestion template: the detected mood wins,
// otherwise the time of day decides.
func templateFor(snap contextdetect.Snapshot, now time.Time) models.Template {
	switch snap.RecentMood {
	case models.MoodEnergeticHappy, models.MoodEnergeticIntense:
		return models.TemplateWorkout
	case models.MoodCalmMelancholic:
		return models.TemplateWindDown
	}

	switch snap.TimeOfDay {
	case models.TimeMorning:
		return models.TemplateMorningEnergy
	case models.TimeAfternoon:
		wd := now.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			return models.TemplateRightNow
		}
		return models.TemplateFocus
	default:
		return models.TemplateWindDown
	}
}
