// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/harmonia-labs/harmonia/internal/logging"
	"github.com/harmonia-labs/harmonia/internal/models"
)

// Key prefixes for Badger storage. Event keys embed an inverted timestamp
// so prefix iteration yields newest-first order without sorting.
const (
	eventKeyPrefix      = "event:"
	patternKeyPrefix    = "pattern:"
	suggestionKeyPrefix = "suggestion:"
	playlistKeyPrefix   = "playlist:"
	lastGenKeyPrefix    = "lastgen:"
)

// BadgerStore implements Store on an embedded Badger database, suitable
// for durable single-node deployments.
type BadgerStore struct {
	db     *badger.DB
	stopGC chan struct{}
}

// OpenBadger opens (or creates) a Badger-backed store. An empty path with
// inMemory set runs without persistence. gcInterval <= 0 disables the
// value-log GC loop.
func OpenBadger(path string, inMemory bool, gcInterval time.Duration) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithInMemory(inMemory).
		WithLogger(nil)
	if inMemory {
		opts = opts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}

	s := &BadgerStore{db: db, stopGC: make(chan struct{})}
	if gcInterval > 0 && !inMemory {
		go s.gcLoop(gcInterval)
	}

	return s, nil
}

// Close stops the GC loop and closes the database.
func (s *BadgerStore) Close() error {
	close(s.stopGC)
	return s.db.Close()
}

// gcLoop runs value-log garbage collection periodically.
func (s *BadgerStore) gcLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			for {
				if err := s.db.RunValueLogGC(0.5); err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						logging.Warn().Err(err).Msg("badger value log gc failed")
					}
					break
				}
			}
		}
	}
}

// eventKey builds event:<user>:<invertedNanos>:<eventID>. Inverting the
// timestamp makes ascending key order equal newest-first event order.
func eventKey(userID string, playedAt time.Time, eventID string) []byte {
	inverted := uint64(math.MaxInt64) - uint64(playedAt.UnixNano())
	return []byte(fmt.Sprintf("%s%s:%020d:%s", eventKeyPrefix, userID, inverted, eventID))
}

// SaveEvent persists one listening event.
func (s *BadgerStore) SaveEvent(ctx context.Context, event *models.ListeningEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(eventKey(event.UserID, event.PlayedAt, event.ID), data)
	})
}

// EventsByContext returns the user's events matching the filters, newest
// first. Filtering happens during iteration so Limit bounds the matching
// events, not the scanned ones.
func (s *BadgerStore) EventsByContext(ctx context.Context, userID string, filters EventFilters) ([]models.ListeningEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var events []models.ListeningEvent

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(eventKeyPrefix + userID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if filters.Limit > 0 && len(events) >= filters.Limit {
				break
			}

			var ev models.ListeningEvent
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ev)
			})
			if err != nil {
				return fmt.Errorf("unmarshal event: %w", err)
			}

			if matchesFilters(&ev, filters) {
				events = append(events, ev)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return events, nil
}

// RecentEvents returns the newest limit events regardless of context.
func (s *BadgerStore) RecentEvents(ctx context.Context, userID string, limit int) ([]models.ListeningEvent, error) {
	return s.EventsByContext(ctx, userID, EventFilters{Limit: limit})
}

// storedPattern carries the signature key alongside the pattern, since the
// signature type itself does not serialize.
type storedPattern struct {
	SignatureKey string                  `json:"signature_key"`
	Pattern      models.ListeningPattern `json:"pattern"`
}

func patternKey(userID, sigKey string) []byte {
	return []byte(patternKeyPrefix + userID + ":" + sigKey)
}

// UpsertPattern writes a pattern keyed by (user, signature). The key
// encodes the signature, so two analysis runs racing on the same
// signature converge on one row; last writer wins.
func (s *BadgerStore) UpsertPattern(ctx context.Context, pattern *models.ListeningPattern) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sigKey := pattern.Signature.Key()
	data, err := json.Marshal(storedPattern{SignatureKey: sigKey, Pattern: *pattern})
	if err != nil {
		return fmt.Errorf("marshal pattern: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(patternKey(pattern.UserID, sigKey), data)
	})
}

// PatternsForUser returns every learned pattern for a user.
func (s *BadgerStore) PatternsForUser(ctx context.Context, userID string) ([]models.ListeningPattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var patterns []models.ListeningPattern

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(patternKeyPrefix + userID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var sp storedPattern
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &sp)
			})
			if err != nil {
				return fmt.Errorf("unmarshal pattern: %w", err)
			}

			sp.Pattern.Signature = models.SignatureFromKey(sp.SignatureKey)
			patterns = append(patterns, sp.Pattern)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return patterns, nil
}

// storedPlaylist carries the signature keys the playlist snapshot cannot
// serialize itself.
type storedPlaylist struct {
	SignatureKey string                   `json:"signature_key"`
	FilterSigKey string                   `json:"filter_signature_key,omitempty"`
	Playlist     models.GeneratedPlaylist `json:"playlist"`
}

func marshalPlaylist(p *models.GeneratedPlaylist) ([]byte, error) {
	sp := storedPlaylist{SignatureKey: p.Snapshot.Signature.Key(), Playlist: *p}
	if p.Snapshot.Filters != nil {
		sp.FilterSigKey = p.Snapshot.Filters.Context.Key()
	}
	return json.Marshal(sp)
}

func unmarshalPlaylist(data []byte) (models.GeneratedPlaylist, error) {
	var sp storedPlaylist
	if err := json.Unmarshal(data, &sp); err != nil {
		return models.GeneratedPlaylist{}, err
	}
	sp.Playlist.Snapshot.Signature = models.SignatureFromKey(sp.SignatureKey)
	if sp.Playlist.Snapshot.Filters != nil && sp.FilterSigKey != "" {
		sp.Playlist.Snapshot.Filters.Context = models.SignatureFromKey(sp.FilterSigKey)
	}
	return sp.Playlist, nil
}

// SaveSuggestion replaces the user's current context-triggered suggestion.
func (s *BadgerStore) SaveSuggestion(ctx context.Context, playlist *models.GeneratedPlaylist) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := marshalPlaylist(playlist)
	if err != nil {
		return fmt.Errorf("marshal suggestion: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(suggestionKeyPrefix+playlist.UserID), data)
	})
}

// SuggestionsForUser returns the user's unexpired suggestions. Expired
// suggestions are dropped lazily.
func (s *BadgerStore) SuggestionsForUser(ctx context.Context, userID string, now time.Time) ([]models.GeneratedPlaylist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var playlist models.GeneratedPlaylist
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(suggestionKeyPrefix + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get suggestion: %w", err)
		}

		return item.Value(func(val []byte) error {
			p, err := unmarshalPlaylist(val)
			if err != nil {
				return err
			}
			playlist = p
			found = true
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if !found || playlist.Expired(now) {
		return nil, nil
	}
	return []models.GeneratedPlaylist{playlist}, nil
}

// SavePlaylist persists an accepted playlist.
func (s *BadgerStore) SavePlaylist(ctx context.Context, playlist *models.GeneratedPlaylist) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := marshalPlaylist(playlist)
	if err != nil {
		return fmt.Errorf("marshal playlist: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(playlistKeyPrefix+playlist.UserID+":"+playlist.ID), data)
	})
}

// LastGenerationAt returns when the user last had a playlist generated,
// or the zero time if never.
func (s *BadgerStore) LastGenerationAt(ctx context.Context, userID string) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	var at time.Time
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(lastGenKeyPrefix + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get last generation: %w", err)
		}

		return item.Value(func(val []byte) error {
			parsed, err := time.Parse(time.RFC3339Nano, string(val))
			if err != nil {
				return fmt.Errorf("parse last generation: %w", err)
			}
			at = parsed
			return nil
		})
	})
	if err != nil {
		return time.Time{}, err
	}

	return at, nil
}

// SetLastGenerationAt records the last generation timestamp.
// Last writer wins.
func (s *BadgerStore) SetLastGenerationAt(ctx context.Context, userID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(lastGenKeyPrefix+userID), []byte(at.Format(time.RFC3339Nano)))
	})
}
