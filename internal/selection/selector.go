// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

package selection

import (
	"math"
	"sort"
	"time"

	"github.com/harmonia-labs/harmonia/internal/logging"
	"github.com/harmonia-labs/harmonia/internal/metrics"
	"github.com/harmonia-labs/harmonia/internal/models"
)

// DiversityLevel tunes how strictly the selector spreads artists and
// genre clusters.
type DiversityLevel string

const (
	DiversityLow    DiversityLevel = "low"
	DiversityMedium DiversityLevel = "medium"
	DiversityHigh   DiversityLevel = "high"
)

// backfillThreshold is the default fill fraction below which caps relax.
const defaultBackfillThreshold = 0.8

// Selector picks the final tracks from a scored pool.
type Selector struct {
	// RepeatWindow halves the score of tracks played this recently.
	RepeatWindow time.Duration

	// BackfillThreshold overrides the 0.8 default when positive.
	BackfillThreshold float64
}

// Result is the selector's output: the chosen tracks in score order and
// whether diversity caps had to be relaxed to reach the target length.
type Result struct {
	Tracks       []models.ScoredTrack
	BackfillUsed bool
}

// caps holds the per-artist and per-cluster admission limits.
type caps struct {
	perArtist  int
	perCluster int
	// strictCluster enforces the cluster cap during the greedy walk;
	// only the high diversity level does.
	strictCluster bool
}

func capsFor(level DiversityLevel, limit int) caps {
	switch level {
	case DiversityHigh:
		return caps{
			perArtist:     2,
			perCluster:    int(math.Ceil(float64(limit) * 0.4)),
			strictCluster: true,
		}
	case DiversityLow:
		return caps{
			perArtist:  4,
			perCluster: int(math.Ceil(float64(limit) * 0.7)),
		}
	default:
		return caps{
			perArtist:  3,
			perCluster: int(math.Ceil(float64(limit) * 0.5)),
		}
	}
}

// Select ranks the pool and greedily admits tracks under the diversity
// caps, backfilling without caps if the result falls below the fill
// threshold. Output never exceeds limit and never repeats a track id.
func (s *Selector) Select(pool []models.ScoredTrack, limit int, level DiversityLevel, now time.Time) Result {
	if limit <= 0 || len(pool) == 0 {
		return Result{}
	}

	ranked := s.rankWithRepeatPenalty(pool, now)
	c := capsFor(level, limit)

	selected := make([]models.ScoredTrack, 0, limit)
	seen := make(map[string]bool, limit)
	artistCount := make(map[string]int)
	clusterCount := make(map[string]int)

	for i := range ranked {
		if len(selected) >= limit {
			break
		}
		track := &ranked[i].Track
		if seen[track.TrackID] {
			continue
		}
		if artistCount[artistKey(track)] >= c.perArtist {
			continue
		}
		cluster := trackCluster(track)
		if c.strictCluster && clusterCount[cluster] >= c.perCluster {
			continue
		}

		selected = append(selected, ranked[i])
		seen[track.TrackID] = true
		artistCount[artistKey(track)]++
		clusterCount[cluster]++
	}

	threshold := s.BackfillThreshold
	if threshold <= 0 {
		threshold = defaultBackfillThreshold
	}

	backfilled := false
	if float64(len(selected)) < float64(limit)*threshold {
		backfilled = s.backfill(&selected, ranked, seen, limit)
	}

	return Result{Tracks: selected, BackfillUsed: backfilled}
}

// rankWithRepeatPenalty halves the score of recently played tracks and
// re-sorts. The sort is stable over the already score-sorted input so
// equal scores keep their order.
func (s *Selector) rankWithRepeatPenalty(pool []models.ScoredTrack, now time.Time) []models.ScoredTrack {
	window := s.RepeatWindow
	if window <= 0 {
		window = 2 * time.Hour
	}

	ranked := make([]models.ScoredTrack, len(pool))
	copy(ranked, pool)

	for i := range ranked {
		lp := ranked[i].Track.LastPlayed
		if !lp.IsZero() && now.Sub(lp) >= 0 && now.Sub(lp) < window {
			ranked[i].Score *= 0.5
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked
}

// backfill relaxes every cap and fills remaining slots from the ranked
// list, skipping already-admitted tracks. Returns true when it added
// anything.
func (s *Selector) backfill(selected *[]models.ScoredTrack, ranked []models.ScoredTrack, seen map[string]bool, limit int) bool {
	added := false
	for i := range ranked {
		if len(*selected) >= limit {
			break
		}
		if seen[ranked[i].Track.TrackID] {
			continue
		}
		*selected = append(*selected, ranked[i])
		seen[ranked[i].Track.TrackID] = true
		added = true
	}

	if added {
		metrics.SelectorBackfills.Inc()
		logging.Debug().
			Int("selected", len(*selected)).
			Int("limit", limit).
			Msg("diversity caps relaxed to backfill selection")
	}
	return added
}

// artistKey prefers the stable artist id over the display name.
func artistKey(track *models.TrackCandidate) string {
	if track.ArtistID != "" {
		return track.ArtistID
	}
	return track.Artist
}
