// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

package features

import (
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/harmonia-labs/harmonia/internal/models"
)

// vector is the estimator's working representation: every field concrete,
// so adjustments compose without nil checks. Converted back to the
// optional-field models type only at the end.
type vector struct {
	energy           float64
	valence          float64
	danceability     float64
	tempo            float64
	acousticness     float64
	instrumentalness float64
	loudness         float64
	speechiness      float64
}

// TrackMeta is the metadata the estimator works from.
type TrackMeta struct {
	Genres      []string
	Popularity  int // 0-100
	Duration    time.Duration
	Explicit    bool
	ReleaseYear int // 0 when unknown
}

// Estimator derives audio features from genre tags and track metadata.
// With a nil rng the output is fully deterministic; supplying a seeded
// rng adds a small per-field variance for realism.
type Estimator struct {
	rng *rand.Rand
}

// NewEstimator returns a deterministic estimator.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// NewEstimatorWithVariance returns an estimator that perturbs each output
// field by a small seeded random amount. Not for use where reproducibility
// matters.
func NewEstimatorWithVariance(seed int64) *Estimator {
	return &Estimator{rng: rand.New(rand.NewSource(seed))}
}

// Estimate produces an estimated feature vector for a track without
// first-party audio features.
func (e *Estimator) Estimate(meta TrackMeta) models.AudioFeatures {
	v := e.baseVector(meta.Genres)

	v = adjustForDuration(v, meta.Duration)
	v = adjustForPopularity(v, meta.Popularity)
	v = adjustForEra(v, meta.ReleaseYear)
	v = adjustForExplicit(v, meta.Explicit)

	v = refineEnergy(v)
	v = refineValence(v, meta.Genres)
	v = refineDanceability(v)

	if e.rng != nil {
		v = e.applyVariance(v)
	}

	v = clampVector(v)

	return models.AudioFeatures{
		Energy:           models.Float(v.energy),
		Valence:          models.Float(v.valence),
		Danceability:     models.Float(v.danceability),
		Tempo:            models.Float(v.tempo),
		Acousticness:     models.Float(v.acousticness),
		Instrumentalness: models.Float(v.instrumentalness),
		Loudness:         models.Float(v.loudness),
		Speechiness:      models.Float(v.speechiness),
	}
}

// baseVector matches genre tags against the profile table and averages the
// matched profiles field-wise. Fields absent from every matched profile
// fall back to the default vector's value.
func (e *Estimator) baseVector(genres []string) vector {
	matched := matchProfiles(genres)
	if len(matched) == 0 {
		return defaultVector
	}

	v := defaultVector
	v.energy = avgField(matched, func(p GenreProfile) *float64 { return p.Energy }, v.energy)
	v.valence = avgField(matched, func(p GenreProfile) *float64 { return p.Valence }, v.valence)
	v.danceability = avgField(matched, func(p GenreProfile) *float64 { return p.Danceability }, v.danceability)
	v.tempo = avgField(matched, func(p GenreProfile) *float64 { return p.Tempo }, v.tempo)
	v.acousticness = avgField(matched, func(p GenreProfile) *float64 { return p.Acousticness }, v.acousticness)
	v.instrumentalness = avgField(matched, func(p GenreProfile) *float64 { return p.Instrumentalness }, v.instrumentalness)
	v.loudness = avgField(matched, func(p GenreProfile) *float64 { return p.Loudness }, v.loudness)
	v.speechiness = avgField(matched, func(p GenreProfile) *float64 { return p.Speechiness }, v.speechiness)

	return v
}

// matchProfiles collects every profile whose name matches any track genre
// by bidirectional case-insensitive substring containment.
func matchProfiles(genres []string) []GenreProfile {
	var matched []GenreProfile
	seen := make(map[string]bool)

	for _, g := range genres {
		tag := strings.ToLower(strings.TrimSpace(g))
		if tag == "" {
			continue
		}
		for name, profile := range genreProfiles {
			if seen[name] {
				continue
			}
			if strings.Contains(tag, name) || strings.Contains(name, tag) {
				seen[name] = true
				matched = append(matched, profile)
			}
		}
	}

	return matched
}

// avgField averages one field across the matched profiles, skipping
// profiles where the field is absent.
func avgField(profiles []GenreProfile, get func(GenreProfile) *float64, fallback float64) float64 {
	var sum float64
	var n int
	for _, p := range profiles {
		if ptr := get(p); ptr != nil {
			sum += *ptr
			n++
		}
	}
	if n == 0 {
		return fallback
	}
	return sum / float64(n)
}

// adjustForDuration shifts the vector for unusually long or short tracks.
// Long tracks skew instrumental and slower; very short tracks skew punchy.
func adjustForDuration(v vector, d time.Duration) vector {
	switch {
	case d > 6*time.Minute:
		v.tempo -= 8
		v.danceability *= 0.75
		v.instrumentalness = math.Min(v.instrumentalness*1.4, 0.95)
		v.energy *= 0.9
	case d >= 5*time.Minute:
		v.tempo -= 4
		v.danceability *= 0.88
		v.instrumentalness = math.Min(v.instrumentalness*1.2, 0.95)
		v.energy *= 0.95
	case d > 0 && d < 150*time.Second:
		v.tempo += 10
		v.energy *= 1.15
		v.danceability *= 1.10
	}
	return v
}

// adjustForPopularity pulls very popular tracks toward a mainstream
// profile: tempo toward a 122 BPM anchor, danceability up, and small
// energy/valence nudges proportional to overall popularity.
func adjustForPopularity(v vector, popularity int) vector {
	if popularity <= 0 {
		return v
	}
	pop := float64(popularity)

	if popularity > 80 {
		over := (pop - 80) / 20
		v.tempo += (122 - v.tempo) * 0.5 * over
		v.danceability += 0.15 * over
	}
	v.energy += (pop/100 - 0.5) * 0.10
	v.valence += (pop/100 - 0.5) * 0.08

	return v
}

// eraAdjustment holds the fixed per-era offsets.
type eraAdjustment struct {
	tempo   float64
	valence float64
	energy  float64
}

// eraFor maps a release year to its offsets. Zero year means unknown and
// gets no adjustment.
func eraFor(year int) eraAdjustment {
	switch {
	case year <= 0:
		return eraAdjustment{}
	case year < 1980:
		return eraAdjustment{tempo: -6, valence: 0.05, energy: -0.08}
	case year < 1990:
		return eraAdjustment{tempo: -2, valence: 0.06, energy: 0.02}
	case year < 2000:
		return eraAdjustment{tempo: 0, valence: 0.02, energy: 0.03}
	case year < 2010:
		return eraAdjustment{tempo: 2, valence: -0.02, energy: 0.05}
	case year < 2015:
		return eraAdjustment{tempo: 3, valence: -0.04, energy: 0.04}
	case year < 2020:
		return eraAdjustment{tempo: 1, valence: -0.05, energy: 0.00}
	default:
		return eraAdjustment{tempo: -1, valence: -0.03, energy: -0.02}
	}
}

func adjustForEra(v vector, year int) vector {
	era := eraFor(year)
	v.tempo += era.tempo
	v.valence += era.valence
	v.energy += era.energy
	return v
}

// adjustForExplicit raises speechiness and energy for explicit tracks.
func adjustForExplicit(v vector, explicit bool) vector {
	if !explicit {
		return v
	}
	v.speechiness = math.Min(v.speechiness*1.3, 0.66)
	v.energy += 0.05
	return v
}

// refineEnergy correlates energy with tempo and loudness. The tempo term
// grades linearly from -0.15 at 80 BPM to +0.15 at 160 BPM.
func refineEnergy(v vector) vector {
	tempoTerm := (v.tempo - 120) / 80 * 0.30
	if tempoTerm > 0.15 {
		tempoTerm = 0.15
	}
	if tempoTerm < -0.15 {
		tempoTerm = -0.15
	}
	v.energy += tempoTerm

	loudNorm := (v.loudness + 60) / 60
	switch {
	case loudNorm > 0.8:
		v.energy += 0.12
	case loudNorm < 0.3:
		v.energy -= 0.10
	}

	return v
}

// refineValence applies genre-keyword heuristics.
func refineValence(v vector, genres []string) vector {
	joined := strings.ToLower(strings.Join(genres, " "))

	sad := containsAny(joined, sadKeywords)
	happy := containsAny(joined, happyKeywords)

	if sad {
		v.valence -= 0.20
	}
	if happy {
		v.valence += 0.20
	}
	if v.acousticness > 0.7 && !happy {
		v.valence -= 0.10
	}
	if v.instrumentalness > 0.8 {
		// Mostly-instrumental tracks carry weaker emotional polarity;
		// pull valence toward neutral proportionally.
		v.valence += (0.5 - v.valence) * (v.instrumentalness - 0.8) / 0.2 * 0.5
	}

	return v
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// refineDanceability rewards the 115-135 BPM sweet spot and penalizes
// extreme tempos.
func refineDanceability(v vector) vector {
	switch {
	case v.tempo >= 115 && v.tempo <= 135:
		v.danceability += 0.12
	case v.tempo < 90 || v.tempo > 160:
		v.danceability -= 0.15
	}
	return v
}

// applyVariance perturbs each field by a small random amount.
func (e *Estimator) applyVariance(v vector) vector {
	jitter := func(scale float64) float64 {
		return (e.rng.Float64()*2 - 1) * scale
	}
	v.energy += jitter(0.04)
	v.valence += jitter(0.04)
	v.danceability += jitter(0.04)
	v.tempo += jitter(4)
	v.acousticness += jitter(0.03)
	v.instrumentalness += jitter(0.03)
	v.loudness += jitter(1)
	v.speechiness += jitter(0.02)
	return v
}

// clampVector bounds every field to its valid range: tempo [40,200],
// loudness [-60,0], everything else [0,1].
func clampVector(v vector) vector {
	v.energy = clamp(v.energy, 0, 1)
	v.valence = clamp(v.valence, 0, 1)
	v.danceability = clamp(v.danceability, 0, 1)
	v.acousticness = clamp(v.acousticness, 0, 1)
	v.instrumentalness = clamp(v.instrumentalness, 0, 1)
	v.speechiness = clamp(v.speechiness, 0, 1)
	v.tempo = clamp(v.tempo, 40, 200)
	v.loudness = clamp(v.loudness, -60, 0)
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
