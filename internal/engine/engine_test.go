// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/harmonia-labs/harmonia/internal/config"
	"github.com/harmonia-labs/harmonia/internal/models"
	"github.com/harmonia-labs/harmonia/internal/store"
)

// Monday 2026-08-31, 09:30 local: a morning on a weekday.
var testNow = time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *store.MemStore) {
	t.Helper()
	st := store.NewMemStore()
	eng := New(config.Default(), st, WithClock(func() time.Time { return testNow }))
	return eng, st
}

// seedEvents writes n events tagged with the given context, each a
// distinct track by a distinct artist so diversity caps never interfere.
func seedEvents(t *testing.T, st *store.MemStore, userID, prefix string, n int, timeOfDay, day string, energy, valence float64, genre string) {
	t.Helper()
	for i := 0; i < n; i++ {
		ev := &models.ListeningEvent{
			ID:        fmt.Sprintf("%s-ev%03d", prefix, i),
			UserID:    userID,
			TrackID:   fmt.Sprintf("%s-track%03d", prefix, i),
			TrackName: fmt.Sprintf("%s song %d", prefix, i),
			Artist:    fmt.Sprintf("%s-artist-%d", prefix, i),
			Genres:    []string{genre},
			Duration:  3 * time.Minute,
			Features: models.AudioFeatures{
				Energy:  models.Float(energy),
				Valence: models.Float(valence),
				Tempo:   models.Float(120),
			},
			// Played days ago so the repeat-penalty window never applies.
			PlayedAt:  testNow.Add(-time.Duration(i+3) * 24 * time.Hour),
			TimeOfDay: models.TimeOfDay(timeOfDay),
			DayOfWeek: day,
			Completed: true,
		}
		if err := st.SaveEvent(context.Background(), ev); err != nil {
			t.Fatalf("seed event: %v", err)
		}
	}
}

func meanEnergy(t *testing.T, tracks []models.TrackCandidate) float64 {
	t.Helper()
	var sum float64
	var n int
	for i := range tracks {
		if tracks[i].Features.Energy != nil {
			sum += *tracks[i].Features.Energy
			n++
		}
	}
	if n == 0 {
		t.Fatal("no tracks with energy")
	}
	return sum / float64(n)
}

func TestGenerateFromTemplate_MatchesLearnedPattern(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	// A morning listener of energetic music and an evening listener of
	// calm music, in one history.
	seedEvents(t, st, "u1", "morning", 60, "morning", "monday", 0.8, 0.7, "rock")
	seedEvents(t, st, "u1", "evening", 40, "evening", "monday", 0.2, 0.3, "ambient")

	if err := eng.AnalyzePatterns(ctx, "u1"); err != nil {
		t.Fatalf("analyze: %v", err)
	}

	pl, err := eng.GenerateFromTemplate(ctx, "u1", models.TemplateMorningEnergy, 10)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(pl.Tracks) != 10 {
		t.Fatalf("generated %d tracks, want 10", len(pl.Tracks))
	}

	// The playlist should echo the morning pattern, not the evening one.
	mean := meanEnergy(t, pl.Tracks)
	if distTo08 := absDiff(mean, 0.8); distTo08 >= absDiff(mean, 0.2) {
		t.Errorf("mean energy %f is closer to the evening pattern than the morning one", mean)
	}

	if pl.Snapshot.Template != models.TemplateMorningEnergy {
		t.Errorf("snapshot template = %s", pl.Snapshot.Template)
	}
	if pl.ID == "" || pl.UserID != "u1" {
		t.Errorf("playlist identity incomplete: id=%q user=%q", pl.ID, pl.UserID)
	}
	if len(pl.TrackIDs) != len(pl.Tracks) {
		t.Errorf("track id list length %d != tracks %d", len(pl.TrackIDs), len(pl.Tracks))
	}

	// Generation stamps the gate timestamp for the tracker.
	last, err := st.LastGenerationAt(ctx, "u1")
	if err != nil {
		t.Fatalf("last generation: %v", err)
	}
	if !last.Equal(testNow) {
		t.Errorf("last generation at %v, want %v", last, testNow)
	}
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

func TestGenerate_RequiresUser(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := eng.GenerateFromTemplate(ctx, "", models.TemplateFocus, 10); !errors.Is(err, models.ErrNotAuthenticated) {
		t.Errorf("template: err = %v, want ErrNotAuthenticated", err)
	}
	if _, err := eng.GenerateCustom(ctx, "", models.PlaylistFilters{}, 10); !errors.Is(err, models.ErrNotAuthenticated) {
		t.Errorf("custom: err = %v, want ErrNotAuthenticated", err)
	}
	if _, err := eng.GenerateForCurrentContext(ctx, "", 10); !errors.Is(err, models.ErrNotAuthenticated) {
		t.Errorf("current context: err = %v, want ErrNotAuthenticated", err)
	}
}

func TestGenerate_EmptyHistory(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.GenerateFromTemplate(context.Background(), "nobody", models.TemplateRightNow, 10)
	if !errors.Is(err, models.ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
}

func TestGenerateCustom_InvalidFilters(t *testing.T) {
	eng, st := newTestEngine(t)
	seedEvents(t, st, "u1", "any", 10, "morning", "monday", 0.5, 0.5, "pop")

	tests := []struct {
		name    string
		filters models.PlaylistFilters
	}{
		{"energy out of range", models.PlaylistFilters{MinEnergy: models.Float(1.5)}},
		{"tempo below floor", models.PlaylistFilters{MinTempo: models.Float(20)}},
		{"min above max", models.PlaylistFilters{MinEnergy: models.Float(0.8), MaxEnergy: models.Float(0.2)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := eng.GenerateCustom(context.Background(), "u1", tt.filters, 5); err == nil {
				t.Error("invalid filters accepted")
			}
		})
	}
}

func TestGenerateCustom_GenreFilter(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedEvents(t, st, "u1", "rock", 20, "morning", "monday", 0.7, 0.6, "rock")
	seedEvents(t, st, "u1", "jazz", 20, "evening", "monday", 0.4, 0.5, "jazz")

	pl, err := eng.GenerateCustom(ctx, "u1", models.PlaylistFilters{Genres: []string{"jazz"}}, 10)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for _, tr := range pl.Tracks {
		if len(tr.Genres) == 0 || tr.Genres[0] != "jazz" {
			t.Errorf("track %s genres %v, want jazz only", tr.TrackID, tr.Genres)
		}
	}
	if pl.Name != "Custom Mix" {
		t.Errorf("playlist name = %q", pl.Name)
	}
}

func TestGenerateCustom_RelaxesBeforeFailing(t *testing.T) {
	eng, st := newTestEngine(t)
	seedEvents(t, st, "u1", "pop", 15, "morning", "monday", 0.5, 0.5, "pop")

	// Nothing matches this genre; the pool must be rebuilt without the
	// filter instead of failing.
	pl, err := eng.GenerateCustom(context.Background(), "u1", models.PlaylistFilters{Genres: []string{"zydeco"}}, 10)
	if err != nil {
		t.Fatalf("generate after relaxation: %v", err)
	}
	if len(pl.Tracks) == 0 {
		t.Error("relaxed generation produced no tracks")
	}
}

func TestGenerate_LimitClamping(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedEvents(t, st, "u1", "big", 150, "morning", "monday", 0.6, 0.6, "pop")

	// Zero limit falls back to the default.
	pl, err := eng.GenerateFromTemplate(ctx, "u1", models.TemplateRightNow, 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(pl.Tracks) != config.Default().Selection.DefaultLimit {
		t.Errorf("default limit generated %d tracks, want %d", len(pl.Tracks), config.Default().Selection.DefaultLimit)
	}

	// Oversized limits clamp to the maximum.
	pl, err = eng.GenerateFromTemplate(ctx, "u1", models.TemplateRightNow, 10000)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(pl.Tracks) > config.Default().Selection.MaxLimit {
		t.Errorf("generated %d tracks, max %d", len(pl.Tracks), config.Default().Selection.MaxLimit)
	}
}

func TestSuggestions_SaveAndServe(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedEvents(t, st, "u1", "pop", 30, "morning", "monday", 0.6, 0.6, "pop")

	pl, err := eng.GenerateFromTemplate(ctx, "u1", models.TemplateMorningEnergy, 5)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if err := eng.SaveSuggestion(ctx, pl); err != nil {
		t.Fatalf("save suggestion: %v", err)
	}
	if pl.ExpiresAt.IsZero() {
		t.Error("suggestion expiry not stamped")
	}

	got, err := eng.ContextualSuggestions(ctx, "u1")
	if err != nil {
		t.Fatalf("suggestions: %v", err)
	}
	if len(got) != 1 || got[0].ID != pl.ID {
		t.Fatalf("suggestions = %d entries, want the saved one", len(got))
	}

	// Second read comes from the cache and still agrees.
	again, err := eng.ContextualSuggestions(ctx, "u1")
	if err != nil {
		t.Fatalf("cached suggestions: %v", err)
	}
	if len(again) != 1 || again[0].ID != pl.ID {
		t.Error("cached read diverged from store read")
	}

	// A replacement suggestion invalidates the cache.
	repl, err := eng.GenerateFromTemplate(ctx, "u1", models.TemplateRightNow, 5)
	if err != nil {
		t.Fatalf("generate replacement: %v", err)
	}
	if err := eng.SaveSuggestion(ctx, repl); err != nil {
		t.Fatalf("save replacement: %v", err)
	}
	got, err = eng.ContextualSuggestions(ctx, "u1")
	if err != nil {
		t.Fatalf("suggestions after replace: %v", err)
	}
	if len(got) != 1 || got[0].ID != repl.ID {
		t.Error("replacement suggestion not served")
	}
}

func TestBuildCandidates_Aggregation(t *testing.T) {
	base := testNow.Add(-10 * 24 * time.Hour)
	events := []models.ListeningEvent{
		{TrackID: "t1", TrackName: "old name", Artist: "a", PlayedAt: base, Skipped: true},
		{TrackID: "t1", TrackName: "new name", Artist: "a", PlayedAt: base.Add(time.Hour), Completed: true},
		{TrackID: "t2", TrackName: "other", Artist: "b", PlayedAt: base.Add(2 * time.Hour), Completed: true},
	}

	got := buildCandidates(events)
	if len(got) != 2 {
		t.Fatalf("built %d candidates, want 2", len(got))
	}

	// Newest played first.
	if got[0].TrackID != "t2" {
		t.Errorf("first candidate = %s, want t2", got[0].TrackID)
	}

	var t1 models.TrackCandidate
	for _, c := range got {
		if c.TrackID == "t1" {
			t1 = c
		}
	}
	if t1.Name != "new name" {
		t.Errorf("metadata = %q, want the most recent event's", t1.Name)
	}
	if t1.PlayCount != 2 || t1.SkipRate != 0.5 || t1.CompletionRate != 0.5 {
		t.Errorf("engagement = plays %d skip %.2f completion %.2f", t1.PlayCount, t1.SkipRate, t1.CompletionRate)
	}
}

func TestArrangeForTemplate(t *testing.T) {
	tracks := make([]models.TrackCandidate, 10)
	for i := range tracks {
		tracks[i] = models.TrackCandidate{
			TrackID:  fmt.Sprintf("t%d", i),
			Features: models.AudioFeatures{Energy: models.Float(float64(i) / 10)},
		}
	}

	t.Run("wind down descends", func(t *testing.T) {
		got := arrangeForTemplate(models.TemplateWindDown, tracks)
		for i := 1; i < len(got); i++ {
			if energyOf(&got[i]) > energyOf(&got[i-1]) {
				t.Fatalf("energy rises at position %d", i)
			}
		}
	})

	t.Run("workout arc peaks in the middle", func(t *testing.T) {
		got := arrangeForTemplate(models.TemplateWorkout, tracks)
		if len(got) != len(tracks) {
			t.Fatalf("arranged %d tracks, want %d", len(got), len(tracks))
		}
		seen := make(map[string]bool)
		for _, tr := range got {
			seen[tr.TrackID] = true
		}
		if len(seen) != len(tracks) {
			t.Fatal("arrangement is not a permutation")
		}

		peak := 0
		for i := range got {
			if energyOf(&got[i]) > energyOf(&got[peak]) {
				peak = i
			}
		}
		if peak == 0 || peak == len(got)-1 {
			t.Errorf("peak energy at position %d, want interior", peak)
		}
		// Opens below the peak and closes below the peak.
		if energyOf(&got[0]) >= energyOf(&got[peak]) {
			t.Error("arc does not start low")
		}
		if energyOf(&got[len(got)-1]) >= energyOf(&got[peak]) {
			t.Error("arc does not cool down")
		}
	})

	t.Run("other templates keep order", func(t *testing.T) {
		got := arrangeForTemplate(models.TemplateRightNow, tracks)
		for i := range got {
			if got[i].TrackID != tracks[i].TrackID {
				t.Fatalf("order changed at position %d", i)
			}
		}
	})
}

func TestMatchesGenres(t *testing.T) {
	tests := []struct {
		name   string
		track  []string
		wanted []string
		want   bool
	}{
		{"exact", []string{"rock"}, []string{"rock"}, true},
		{"track broader", []string{"indie rock"}, []string{"rock"}, true},
		{"filter broader", []string{"rock"}, []string{"indie rock"}, true},
		{"case insensitive", []string{"Jazz"}, []string{"jazz"}, true},
		{"no overlap", []string{"jazz"}, []string{"metal"}, false},
		{"empty track genres", nil, []string{"rock"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchesGenres(tt.track, tt.wanted); got != tt.want {
				t.Errorf("matchesGenres(%v, %v) = %v", tt.track, tt.wanted, got)
			}
		})
	}
}
