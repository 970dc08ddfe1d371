// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

// Package store persists listening events, learned patterns, and generated
// suggestions. The production adapter is BadgerStore (embedded Badger);
// MemStore backs tests and ephemeral deployments. Serialization happens
// only inside the adapters; everything above works with typed models.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/harmonia-labs/harmonia/internal/models"
)

// EventFilters narrows an event query. Every added constraint can only
// shrink the result set.
type EventFilters struct {
	// Signature matches events whose context tags equal every Set
	// dimension. Unspecified dimensions match anything.
	Signature models.ContextSignature

	// RequireEnergy keeps only events whose feature vector carries energy.
	RequireEnergy bool

	// CompletedOnly keeps only events that ran to completion.
	CompletedOnly bool

	// Limit bounds the result count, newest first. Zero means no limit.
	Limit int
}

// EventStore reads and writes raw listening events.
type EventStore interface {
	SaveEvent(ctx context.Context, event *models.ListeningEvent) error

	// EventsByContext returns events matching the filters, newest first.
	EventsByContext(ctx context.Context, userID string, filters EventFilters) ([]models.ListeningEvent, error)

	// RecentEvents returns the newest limit events for the user.
	RecentEvents(ctx context.Context, userID string, limit int) ([]models.ListeningEvent, error)
}

// PatternStore reads and writes learned listening patterns. UpsertPattern
// keys on (user, signature), so concurrent analysis runs can never
// materialize duplicate patterns for one signature.
type PatternStore interface {
	UpsertPattern(ctx context.Context, pattern *models.ListeningPattern) error
	PatternsForUser(ctx context.Context, userID string) ([]models.ListeningPattern, error)
}

// SuggestionStore persists generated playlists: at most one live
// context-triggered suggestion per user, plus accepted playlists, plus
// the last-generation timestamp backing the tracker's gate.
type SuggestionStore interface {
	// SaveSuggestion replaces the user's current suggestion.
	SaveSuggestion(ctx context.Context, playlist *models.GeneratedPlaylist) error

	// SuggestionsForUser returns unexpired suggestions, which today is
	// zero or one playlists.
	SuggestionsForUser(ctx context.Context, userID string, now time.Time) ([]models.GeneratedPlaylist, error)

	// SavePlaylist persists a playlist the user accepted.
	SavePlaylist(ctx context.Context, playlist *models.GeneratedPlaylist) error

	// LastGenerationAt returns the zero time when the user has never
	// generated.
	LastGenerationAt(ctx context.Context, userID string) (time.Time, error)
	SetLastGenerationAt(ctx context.Context, userID string, at time.Time) error
}

// Store is the full persistence surface the engine is built against.
type Store interface {
	EventStore
	PatternStore
	SuggestionStore

	Close() error
}

// matchesFilters reports whether an event satisfies the filters, shared by
// both adapters.
func matchesFilters(ev *models.ListeningEvent, f EventFilters) bool {
	if f.RequireEnergy && !ev.Features.HasCore() {
		return false
	}
	if f.CompletedOnly && !ev.Completed {
		return false
	}

	sig := f.Signature
	if v, ok := sig.TimeOfDay.Value(); ok && string(ev.TimeOfDay) != v {
		return false
	}
	if v, ok := sig.DayOfWeek.Value(); ok && !strings.EqualFold(ev.DayOfWeek, v) {
		return false
	}
	if v, ok := sig.Weather.Value(); ok && !strings.EqualFold(ev.Weather, v) {
		return false
	}
	if v, ok := sig.Activity.Value(); ok && !strings.EqualFold(ev.Activity, v) {
		return false
	}

	return true
}
