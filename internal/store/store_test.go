// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/harmonia-labs/harmonia/internal/models"
)

// storeFactories lets every test run against both adapters.
func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemStore()
		},
		"badger": func(t *testing.T) Store {
			s, err := OpenBadger(t.TempDir(), false, 0)
			if err != nil {
				t.Fatalf("open badger: %v", err)
			}
			return s
		},
	}
}

func makeEvent(userID, trackID string, playedAt time.Time, mutate func(*models.ListeningEvent)) *models.ListeningEvent {
	ev := &models.ListeningEvent{
		ID:        trackID + "-" + fmt.Sprint(playedAt.UnixNano()),
		UserID:    userID,
		TrackID:   trackID,
		TrackName: "Track " + trackID,
		Artist:    "Artist",
		Features:  models.AudioFeatures{Energy: models.Float(0.7)},
		PlayedAt:  playedAt,
		TimeOfDay: models.TimeMorning,
		DayOfWeek: "monday",
		Completed: true,
	}
	if mutate != nil {
		mutate(ev)
	}
	return ev
}

func TestStore_EventsNewestFirst(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			ctx := context.Background()

			base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
			for i := 0; i < 5; i++ {
				ev := makeEvent("u1", fmt.Sprintf("t%d", i), base.Add(time.Duration(i)*time.Hour), nil)
				if err := s.SaveEvent(ctx, ev); err != nil {
					t.Fatalf("SaveEvent: %v", err)
				}
			}

			events, err := s.RecentEvents(ctx, "u1", 3)
			if err != nil {
				t.Fatalf("RecentEvents: %v", err)
			}
			if len(events) != 3 {
				t.Fatalf("got %d events, want 3", len(events))
			}
			for i := 1; i < len(events); i++ {
				if events[i].PlayedAt.After(events[i-1].PlayedAt) {
					t.Error("events not in newest-first order")
				}
			}
			if events[0].TrackID != "t4" {
				t.Errorf("newest event = %s, want t4", events[0].TrackID)
			}
		})
	}
}

func TestStore_EventsByContext_Filters(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			ctx := context.Background()

			base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
			specs := []struct {
				tod      models.TimeOfDay
				day      string
				energy   bool
				complete bool
			}{
				{models.TimeMorning, "saturday", true, true},
				{models.TimeMorning, "saturday", false, true},
				{models.TimeMorning, "monday", true, true},
				{models.TimeEvening, "saturday", true, false},
			}
			for i, sp := range specs {
				ev := makeEvent("u1", fmt.Sprintf("t%d", i), base.Add(time.Duration(i)*time.Minute), func(e *models.ListeningEvent) {
					e.TimeOfDay = sp.tod
					e.DayOfWeek = sp.day
					e.Completed = sp.complete
					if !sp.energy {
						e.Features = models.AudioFeatures{}
					}
				})
				if err := s.SaveEvent(ctx, ev); err != nil {
					t.Fatal(err)
				}
			}

			morning, err := s.EventsByContext(ctx, "u1", EventFilters{
				Signature:     models.ContextSignature{TimeOfDay: models.DimOf("morning")},
				RequireEnergy: true,
			})
			if err != nil {
				t.Fatal(err)
			}
			if len(morning) != 2 {
				t.Errorf("morning+energy = %d events, want 2", len(morning))
			}

			// Filtering is monotone: adding a dimension never grows the set.
			combined, err := s.EventsByContext(ctx, "u1", EventFilters{
				Signature: models.ContextSignature{
					TimeOfDay: models.DimOf("morning"),
					DayOfWeek: models.DimOf("saturday"),
				},
				RequireEnergy: true,
			})
			if err != nil {
				t.Fatal(err)
			}
			if len(combined) > len(morning) {
				t.Errorf("combined filter grew the set: %d > %d", len(combined), len(morning))
			}
			if len(combined) != 1 {
				t.Errorf("saturday morning+energy = %d events, want 1", len(combined))
			}
		})
	}
}

func TestStore_UpsertPattern_NoDuplicates(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			ctx := context.Background()

			sig := models.ContextSignature{TimeOfDay: models.DimOf("morning")}
			p := &models.ListeningPattern{
				UserID:     "u1",
				Signature:  sig,
				Averages:   models.PatternAverages{Energy: 0.7},
				SampleSize: 40,
				Confidence: 0.4,
				UpdatedAt:  time.Now().UTC(),
			}
			if err := s.UpsertPattern(ctx, p); err != nil {
				t.Fatal(err)
			}

			p.Averages.Energy = 0.8
			p.SampleSize = 60
			p.Confidence = 0.6
			if err := s.UpsertPattern(ctx, p); err != nil {
				t.Fatal(err)
			}

			patterns, err := s.PatternsForUser(ctx, "u1")
			if err != nil {
				t.Fatal(err)
			}
			if len(patterns) != 1 {
				t.Fatalf("got %d patterns after double upsert, want 1", len(patterns))
			}
			if patterns[0].Averages.Energy != 0.8 || patterns[0].SampleSize != 60 {
				t.Errorf("upsert did not update: %+v", patterns[0])
			}
			if !patterns[0].Signature.Equal(sig) {
				t.Errorf("signature round trip failed: %s", patterns[0].Signature.Key())
			}
		})
	}
}

func TestStore_PatternSignatureRoundTrip(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			ctx := context.Background()

			sig := models.ContextSignature{
				TimeOfDay: models.DimOf("morning"),
				DayOfWeek: models.DimOf("saturday"),
			}
			p := &models.ListeningPattern{UserID: "u1", Signature: sig, SampleSize: 12}
			if err := s.UpsertPattern(ctx, p); err != nil {
				t.Fatal(err)
			}

			patterns, err := s.PatternsForUser(ctx, "u1")
			if err != nil {
				t.Fatal(err)
			}
			if len(patterns) != 1 {
				t.Fatalf("got %d patterns, want 1", len(patterns))
			}
			got := patterns[0].Signature
			if v, _ := got.TimeOfDay.Value(); v != "morning" {
				t.Errorf("time-of-day = %q, want morning", v)
			}
			if got.Weather.IsSet() {
				t.Error("weather should round trip as unspecified")
			}
			if got.SetDimensions() != 2 {
				t.Errorf("SetDimensions = %d, want 2", got.SetDimensions())
			}
		})
	}
}

func TestStore_SuggestionReplaceAndExpiry(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			ctx := context.Background()
			now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

			first := &models.GeneratedPlaylist{
				ID: "p1", UserID: "u1", Name: "Morning Mix",
				ExpiresAt: now.Add(24 * time.Hour),
			}
			if err := s.SaveSuggestion(ctx, first); err != nil {
				t.Fatal(err)
			}

			second := &models.GeneratedPlaylist{
				ID: "p2", UserID: "u1", Name: "Rainy Day",
				ExpiresAt: now.Add(24 * time.Hour),
			}
			if err := s.SaveSuggestion(ctx, second); err != nil {
				t.Fatal(err)
			}

			got, err := s.SuggestionsForUser(ctx, "u1", now)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 1 || got[0].ID != "p2" {
				t.Errorf("suggestion not replaced: %+v", got)
			}

			// Past expiry the suggestion disappears.
			got, err = s.SuggestionsForUser(ctx, "u1", now.Add(25*time.Hour))
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 0 {
				t.Errorf("expired suggestion still returned: %+v", got)
			}
		})
	}
}

func TestStore_LastGenerationAt(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			ctx := context.Background()

			at, err := s.LastGenerationAt(ctx, "u1")
			if err != nil {
				t.Fatal(err)
			}
			if !at.IsZero() {
				t.Errorf("unset last generation = %v, want zero", at)
			}

			want := time.Date(2026, 8, 30, 9, 30, 0, 0, time.UTC)
			if err := s.SetLastGenerationAt(ctx, "u1", want); err != nil {
				t.Fatal(err)
			}
			at, err = s.LastGenerationAt(ctx, "u1")
			if err != nil {
				t.Fatal(err)
			}
			if !at.Equal(want) {
				t.Errorf("LastGenerationAt = %v, want %v", at, want)
			}
		})
	}
}

func TestStore_SavePlaylistKeepsSuggestionSeparate(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			ctx := context.Background()
			now := time.Now().UTC()

			accepted := &models.GeneratedPlaylist{ID: "p1", UserID: "u1", Name: "Keeper"}
			if err := s.SavePlaylist(ctx, accepted); err != nil {
				t.Fatal(err)
			}

			got, err := s.SuggestionsForUser(ctx, "u1", now)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 0 {
				t.Error("accepted playlist leaked into suggestions")
			}
		})
	}
}

func TestStore_ContextCancellation(t *testing.T) {
	s := NewMemStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.SaveEvent(ctx, makeEvent("u1", "t1", time.Now(), nil)); err == nil {
		t.Error("SaveEvent with canceled context should fail")
	}
	if _, err := s.RecentEvents(ctx, "u1", 10); err == nil {
		t.Error("RecentEvents with canceled context should fail")
	}
}
