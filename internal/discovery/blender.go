// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

// Package discovery blends previously-unplayed tracks into a selected
// playlist: it computes a target audio profile from the primary
// selection, asks an external source for matching unplayed candidates,
// and interleaves them with the primary tracks on a fixed cadence.
package discovery

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/harmonia-labs/harmonia/internal/features"
	"github.com/harmonia-labs/harmonia/internal/logging"
	"github.com/harmonia-labs/harmonia/internal/metrics"
	"github.com/harmonia-labs/harmonia/internal/models"
)

// profileSampleSize is how many top primary tracks feed the target
// profile.
const profileSampleSize = 20

// Source finds unplayed tracks related to the seed artists and genres.
// External collaborator; implementations wrap a music platform's
// related-artist/genre exploration.
type Source interface {
	DiscoverTracks(ctx context.Context, seeds Seeds) ([]models.TrackCandidate, error)
}

// Seeds directs the discovery exploration.
type Seeds struct {
	Artists []string
	Genres  []string

	// Limit caps how many candidates the source should return.
	Limit int
}

// TargetProfile is the audio profile discovered tracks are matched
// against.
type TargetProfile struct {
	Energy           float64
	Valence          float64
	Tempo            float64
	Danceability     float64
	Acousticness     float64
	Instrumentalness float64
}

// Config tunes the blender.
type Config struct {
	// Ratio is the discovery share of the final playlist.
	Ratio float64

	// Cadence interleaves one discovery track per this many primary
	// tracks.
	Cadence int

	// ArtistCap bounds tracks per artist across the combined output.
	ArtistCap int

	// Timeout bounds the source lookup.
	Timeout time.Duration
}

// Blender mixes discovery tracks into a primary selection.
type Blender struct {
	source    Source
	estimator *features.Estimator
	cfg       Config
	breaker   *gobreaker.CircuitBreaker[[]models.TrackCandidate]
}

// NewBlender creates a blender. A nil source disables discovery; Blend
// then returns the primary selection unchanged.
func NewBlender(source Source, estimator *features.Estimator, cfg Config) *Blender {
	if cfg.Ratio <= 0 || cfg.Ratio > 1 {
		cfg.Ratio = 0.3
	}
	if cfg.Cadence <= 0 {
		cfg.Cadence = 3
	}
	if cfg.ArtistCap <= 0 {
		cfg.ArtistCap = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[[]models.TrackCandidate](gobreaker.Settings{
		Name:        "discovery",
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &Blender{source: source, estimator: estimator, cfg: cfg, breaker: breaker}
}

// Blend produces the final track list: primary and discovery tracks
// interleaved on the configured cadence, capped at limit. Discovery
// failures degrade to the primary-only selection.
func (b *Blender) Blend(ctx context.Context, primary []models.TrackCandidate, pattern *models.ListeningPattern, template models.Template, limit int) []models.TrackCandidate {
	if limit <= 0 {
		return nil
	}
	if len(primary) > limit {
		primary = primary[:limit]
	}
	if b.source == nil {
		return primary
	}

	discoveryTarget := int(math.Round(float64(limit) * b.cfg.Ratio))
	primaryTarget := limit - discoveryTarget
	// A short primary pool leaves more room for discovery.
	if len(primary) < primaryTarget {
		discoveryTarget += primaryTarget - len(primary)
		primaryTarget = len(primary)
	}
	if discoveryTarget <= 0 {
		return primary
	}

	profile := b.targetProfile(primary, pattern, template)
	candidates := b.fetchCandidates(ctx, primary, pattern, discoveryTarget)
	if len(candidates) == 0 {
		return primary
	}

	ranked := rankByCloseness(candidates, profile)
	if len(ranked) > discoveryTarget {
		ranked = ranked[:discoveryTarget]
	}

	out := b.interleave(primary[:primaryTarget], ranked, limit)

	// If discovery under-delivered, top back up from the primary
	// overflow the split displaced.
	if len(out) < limit && primaryTarget < len(primary) {
		have := make(map[string]bool, len(out))
		for i := range out {
			have[out[i].TrackID] = true
		}
		for i := primaryTarget; i < len(primary) && len(out) < limit; i++ {
			if !have[primary[i].TrackID] {
				out = append(out, primary[i])
			}
		}
	}

	return out
}

// targetProfile averages the top primary tracks' features, then applies
// template-specific floors and ceilings.
func (b *Blender) targetProfile(primary []models.TrackCandidate, pattern *models.ListeningPattern, template models.Template) TargetProfile {
	profile := TargetProfile{
		Energy: 0.55, Valence: 0.5, Tempo: 118,
		Danceability: 0.55, Acousticness: 0.3, Instrumentalness: 0.15,
	}
	if pattern != nil {
		profile = TargetProfile{
			Energy:           pattern.Averages.Energy,
			Valence:          pattern.Averages.Valence,
			Tempo:            pattern.Averages.Tempo,
			Danceability:     pattern.Averages.Danceability,
			Acousticness:     pattern.Averages.Acousticness,
			Instrumentalness: pattern.Averages.Instrumentalness,
		}
	}

	sample := primary
	if len(sample) > profileSampleSize {
		sample = sample[:profileSampleSize]
	}
	if len(sample) > 0 {
		mean := func(get func(models.AudioFeatures) *float64, fallback float64) float64 {
			var sum float64
			var n int
			for i := range sample {
				if ptr := get(sample[i].Features); ptr != nil {
					sum += *ptr
					n++
				}
			}
			if n == 0 {
				return fallback
			}
			return sum / float64(n)
		}
		profile.Energy = mean(func(f models.AudioFeatures) *float64 { return f.Energy }, profile.Energy)
		profile.Valence = mean(func(f models.AudioFeatures) *float64 { return f.Valence }, profile.Valence)
		profile.Tempo = mean(func(f models.AudioFeatures) *float64 { return f.Tempo }, profile.Tempo)
		profile.Danceability = mean(func(f models.AudioFeatures) *float64 { return f.Danceability }, profile.Danceability)
		profile.Acousticness = mean(func(f models.AudioFeatures) *float64 { return f.Acousticness }, profile.Acousticness)
		profile.Instrumentalness = mean(func(f models.AudioFeatures) *float64 { return f.Instrumentalness }, profile.Instrumentalness)
	}

	switch template {
	case models.TemplateWorkout:
		profile.Energy = math.Max(profile.Energy, 0.75)
		profile.Tempo = math.Max(profile.Tempo, 130)
	case models.TemplateWindDown:
		profile.Energy = math.Min(profile.Energy, 0.35)
		profile.Acousticness = math.Max(profile.Acousticness, 0.6)
	case models.TemplateFocus:
		profile.Instrumentalness = math.Max(profile.Instrumentalness, 0.5)
	}

	return profile
}

// fetchCandidates asks the source for unplayed tracks, seeded by the
// primary selection's artists and the pattern's top genres. Tracks
// already in the primary set are dropped; tracks without features get
// estimated ones.
func (b *Blender) fetchCandidates(ctx context.Context, primary []models.TrackCandidate, pattern *models.ListeningPattern, target int) []models.TrackCandidate {
	seeds := Seeds{Limit: target * 3}
	seenArtists := make(map[string]bool)
	for i := range primary {
		if len(seeds.Artists) >= 5 {
			break
		}
		if !seenArtists[primary[i].Artist] {
			seenArtists[primary[i].Artist] = true
			seeds.Artists = append(seeds.Artists, primary[i].Artist)
		}
	}
	if pattern != nil {
		for i, g := range pattern.TopGenres {
			if i >= 3 {
				break
			}
			seeds.Genres = append(seeds.Genres, g.Name)
		}
	}

	candidates, err := b.breaker.Execute(func() ([]models.TrackCandidate, error) {
		lookupCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
		return b.source.DiscoverTracks(lookupCtx, seeds)
	})
	if err != nil {
		metrics.ExternalLookupFailures.WithLabelValues("discovery").Inc()
		logging.Debug().Err(err).Msg("discovery lookup failed, blending skipped")
		return nil
	}

	known := make(map[string]bool, len(primary))
	for i := range primary {
		known[primary[i].TrackID] = true
	}

	result := make([]models.TrackCandidate, 0, len(candidates))
	for i := range candidates {
		c := candidates[i]
		if c.TrackID == "" || known[c.TrackID] {
			continue
		}
		if !c.Features.HasCore() && b.estimator != nil {
			c.Features = b.estimator.Estimate(features.TrackMeta{
				Genres:      c.Genres,
				Popularity:  c.Popularity,
				Duration:    c.Duration,
				Explicit:    c.Explicit,
				ReleaseYear: c.ReleaseYr,
			})
		}
		c.IsDiscovered = true
		result = append(result, c)
	}

	return result
}

// rankByCloseness orders candidates by distance to the target profile,
// closest first.
func rankByCloseness(candidates []models.TrackCandidate, profile TargetProfile) []models.TrackCandidate {
	ranked := make([]models.TrackCandidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		return profileDistance(&ranked[i], profile) < profileDistance(&ranked[j], profile)
	})
	return ranked
}

// profileDistance measures how far a candidate sits from the target.
// Missing fields contribute a neutral half-distance so featureless
// candidates rank behind well-matched ones without being excluded.
func profileDistance(track *models.TrackCandidate, profile TargetProfile) float64 {
	var dist float64
	add := func(ptr *float64, target, span float64) {
		if ptr == nil {
			dist += 0.5
			return
		}
		dist += math.Abs(*ptr-target) / span
	}

	f := track.Features
	add(f.Energy, profile.Energy, 1)
	add(f.Valence, profile.Valence, 1)
	add(f.Tempo, profile.Tempo, 200)
	add(f.Danceability, profile.Danceability, 1)
	add(f.Acousticness, profile.Acousticness, 1)
	add(f.Instrumentalness, profile.Instrumentalness, 1)

	return dist
}

// interleave merges the two lists on the cadence (N primary, then one
// discovery), enforcing the hard combined per-artist cap. Tracks that
// would exceed the cap are dropped outright.
func (b *Blender) interleave(primary, discovered []models.TrackCandidate, limit int) []models.TrackCandidate {
	out := make([]models.TrackCandidate, 0, limit)
	artistCount := make(map[string]int)

	admit := func(track *models.TrackCandidate) bool {
		key := track.ArtistID
		if key == "" {
			key = track.Artist
		}
		if artistCount[key] >= b.cfg.ArtistCap {
			return false
		}
		artistCount[key]++
		out = append(out, *track)
		return true
	}

	pi, di := 0, 0
	sincePrimary := 0
	for len(out) < limit && (pi < len(primary) || di < len(discovered)) {
		useDiscovery := sincePrimary >= b.cfg.Cadence && di < len(discovered)
		if pi >= len(primary) {
			useDiscovery = di < len(discovered)
		}

		if useDiscovery {
			admit(&discovered[di])
			di++
			sincePrimary = 0
			continue
		}

		// Capped primaries do not count toward the cadence.
		if admit(&primary[pi]) {
			sincePrimary++
		}
		pi++
	}

	return out
}
