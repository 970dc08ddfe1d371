// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

package engine

import (
	"sort"
	"strings"

	"github.com/harmonia-labs/harmonia/internal/models"
)

// buildCandidates collapses listening events into one candidate per
// track. The most recent event wins display metadata; engagement fields
// aggregate across all of a track's events.
func buildCandidates(events []models.ListeningEvent) []models.TrackCandidate {
	type aggregate struct {
		candidate models.TrackCandidate
		plays     int
		skips     int
		completes int
	}

	byTrack := make(map[string]*aggregate)
	order := make([]string, 0, len(events))

	for i := range events {
		ev := &events[i]
		if ev.TrackID == "" {
			continue
		}

		agg, ok := byTrack[ev.TrackID]
		if !ok {
			agg = &aggregate{}
			byTrack[ev.TrackID] = agg
			order = append(order, ev.TrackID)
		}

		agg.plays++
		if ev.Skipped {
			agg.skips++
		}
		if ev.Completed {
			agg.completes++
		}

		// Most recent event wins metadata and features.
		if ev.PlayedAt.After(agg.candidate.LastPlayed) {
			agg.candidate = models.TrackCandidate{
				TrackID:    ev.TrackID,
				Name:       ev.TrackName,
				Artist:     ev.Artist,
				ArtistID:   ev.ArtistID,
				Album:      ev.Album,
				Duration:   ev.Duration,
				Popularity: ev.Popularity,
				Explicit:   ev.Explicit,
				ReleaseYr:  ev.ReleaseYr,
				Features:   ev.Features,
				Genres:     ev.Genres,
				LastPlayed: ev.PlayedAt,
			}
		}
	}

	candidates := make([]models.TrackCandidate, 0, len(byTrack))
	for _, trackID := range order {
		agg := byTrack[trackID]
		c := agg.candidate
		c.PlayCount = agg.plays
		c.SkipRate = float64(agg.skips) / float64(agg.plays)
		c.CompletionRate = float64(agg.completes) / float64(agg.plays)
		candidates = append(candidates, c)
	}

	// Stable output: newest-played first.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].LastPlayed.After(candidates[j].LastPlayed)
	})

	return candidates
}

// applyFilters returns the candidates satisfying the range and genre
// filters. Candidates missing a filtered feature pass through leniently
// rather than being excluded.
func applyFilters(candidates []models.TrackCandidate, filters *models.PlaylistFilters) []models.TrackCandidate {
	if filters == nil {
		return candidates
	}

	inRange := func(v *float64, min, max *float64) bool {
		if v == nil {
			return true
		}
		if min != nil && *v < *min {
			return false
		}
		if max != nil && *v > *max {
			return false
		}
		return true
	}

	out := make([]models.TrackCandidate, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		if !inRange(c.Features.Energy, filters.MinEnergy, filters.MaxEnergy) {
			continue
		}
		if !inRange(c.Features.Valence, filters.MinValence, filters.MaxValence) {
			continue
		}
		if !inRange(c.Features.Tempo, filters.MinTempo, filters.MaxTempo) {
			continue
		}
		if len(filters.Genres) > 0 && !matchesGenres(c.Genres, filters.Genres) {
			continue
		}
		out = append(out, *c)
	}

	return out
}

// matchesGenres reports whether any track genre matches any wanted genre
// by bidirectional case-insensitive substring containment.
func matchesGenres(trackGenres, wanted []string) bool {
	for _, tg := range trackGenres {
		tgl := strings.ToLower(strings.TrimSpace(tg))
		for _, wg := range wanted {
			wgl := strings.ToLower(strings.TrimSpace(wg))
			if tgl == "" || wgl == "" {
				continue
			}
			if strings.Contains(tgl, wgl) || strings.Contains(wgl, tgl) {
				return true
			}
		}
	}
	return false
}
