// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/harmonia-labs/harmonia/internal/models"
)

// MemStore is an in-memory Store for tests and ephemeral runs. It mirrors
// BadgerStore semantics: newest-first event order, upsert-by-signature
// patterns, a single live suggestion per user.
type MemStore struct {
	mu sync.RWMutex

	events      map[string][]models.ListeningEvent          // userID -> events
	patterns    map[string]map[string]models.ListeningPattern // userID -> sigKey -> pattern
	suggestions map[string]models.GeneratedPlaylist
	playlists   map[string][]models.GeneratedPlaylist
	lastGen     map[string]time.Time
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		events:      make(map[string][]models.ListeningEvent),
		patterns:    make(map[string]map[string]models.ListeningPattern),
		suggestions: make(map[string]models.GeneratedPlaylist),
		playlists:   make(map[string][]models.GeneratedPlaylist),
		lastGen:     make(map[string]time.Time),
	}
}

// Close is a no-op.
func (s *MemStore) Close() error { return nil }

func (s *MemStore) SaveEvent(ctx context.Context, event *models.ListeningEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.UserID] = append(s.events[event.UserID], *event)
	return nil
}

func (s *MemStore) EventsByContext(ctx context.Context, userID string, filters EventFilters) ([]models.ListeningEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	all := make([]models.ListeningEvent, len(s.events[userID]))
	copy(all, s.events[userID])
	s.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].PlayedAt.After(all[j].PlayedAt)
	})

	var events []models.ListeningEvent
	for i := range all {
		if filters.Limit > 0 && len(events) >= filters.Limit {
			break
		}
		if matchesFilters(&all[i], filters) {
			events = append(events, all[i])
		}
	}
	return events, nil
}

func (s *MemStore) RecentEvents(ctx context.Context, userID string, limit int) ([]models.ListeningEvent, error) {
	return s.EventsByContext(ctx, userID, EventFilters{Limit: limit})
}

func (s *MemStore) UpsertPattern(ctx context.Context, pattern *models.ListeningPattern) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userPatterns, ok := s.patterns[pattern.UserID]
	if !ok {
		userPatterns = make(map[string]models.ListeningPattern)
		s.patterns[pattern.UserID] = userPatterns
	}
	userPatterns[pattern.Signature.Key()] = *pattern
	return nil
}

func (s *MemStore) PatternsForUser(ctx context.Context, userID string) ([]models.ListeningPattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	patterns := make([]models.ListeningPattern, 0, len(s.patterns[userID]))
	for _, p := range s.patterns[userID] {
		patterns = append(patterns, p)
	}
	sort.Slice(patterns, func(i, j int) bool {
		return patterns[i].Signature.Key() < patterns[j].Signature.Key()
	})
	return patterns, nil
}

func (s *MemStore) SaveSuggestion(ctx context.Context, playlist *models.GeneratedPlaylist) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggestions[playlist.UserID] = *playlist
	return nil
}

func (s *MemStore) SuggestionsForUser(ctx context.Context, userID string, now time.Time) ([]models.GeneratedPlaylist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.suggestions[userID]
	if !ok || p.Expired(now) {
		return nil, nil
	}
	return []models.GeneratedPlaylist{p}, nil
}

func (s *MemStore) SavePlaylist(ctx context.Context, playlist *models.GeneratedPlaylist) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlists[playlist.UserID] = append(s.playlists[playlist.UserID], *playlist)
	return nil
}

func (s *MemStore) LastGenerationAt(ctx context.Context, userID string) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastGen[userID], nil
}

func (s *MemStore) SetLastGenerationAt(ctx context.Context, userID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastGen[userID] = at
	return nil
}
