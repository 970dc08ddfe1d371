// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

package scoring

import (
	"math"
	"time"

	"github.com/harmonia-labs/harmonia/internal/models"
)

// Component weights for the two scoring modes.
var (
	patternWeights = models.ScoreBreakdown{
		ContextMatch:    0.40,
		AudioSimilarity: 0.25,
		Engagement:      0.20,
		Recency:         0.10,
		Diversity:       0.05,
	}
	neutralWeights = models.ScoreBreakdown{
		ContextMatch:    0.20,
		AudioSimilarity: 0.25,
		Engagement:      0.35,
		Recency:         0.15,
		Diversity:       0.05,
	}
)

// Scorer computes relevance scores. Construct one per generation request;
// it carries the resolved feature weights and the reference time.
type Scorer struct {
	weights FeatureWeights
	now     time.Time
}

// NewScorer creates a scorer with the given effective feature weights.
func NewScorer(weights FeatureWeights, now time.Time) *Scorer {
	return &Scorer{weights: weights, now: now}
}

// ScoreAgainstPattern scores a candidate relative to a learned pattern.
func (s *Scorer) ScoreAgainstPattern(track *models.TrackCandidate, pattern *models.ListeningPattern) models.ScoredTrack {
	breakdown := models.ScoreBreakdown{
		ContextMatch:    s.contextMatch(track, pattern),
		AudioSimilarity: s.audioSimilarity(track, &pattern.Averages),
		Engagement:      engagementScore(track, s.now),
		Recency:         RecencyScore(track.LastPlayed, s.now),
		Diversity:       1.0, // placeholder; diversity is enforced by the selector
	}

	score := breakdown.ContextMatch*patternWeights.ContextMatch +
		breakdown.AudioSimilarity*patternWeights.AudioSimilarity +
		breakdown.Engagement*patternWeights.Engagement +
		breakdown.Recency*patternWeights.Recency +
		breakdown.Diversity*patternWeights.Diversity

	return models.ScoredTrack{Track: *track, Score: score, Breakdown: breakdown}
}

// ScoreNeutral scores a candidate without a pattern: context is neutral,
// popularity stands in for audio similarity, and engagement dominates.
func (s *Scorer) ScoreNeutral(track *models.TrackCandidate) models.ScoredTrack {
	breakdown := models.ScoreBreakdown{
		ContextMatch:    0.5,
		AudioSimilarity: clamp01(float64(track.Popularity) / 100.0),
		Engagement:      engagementScore(track, s.now),
		Recency:         RecencyScore(track.LastPlayed, s.now),
		Diversity:       1.0,
	}

	score := breakdown.ContextMatch*neutralWeights.ContextMatch +
		breakdown.AudioSimilarity*neutralWeights.AudioSimilarity +
		breakdown.Engagement*neutralWeights.Engagement +
		breakdown.Recency*neutralWeights.Recency +
		breakdown.Diversity*neutralWeights.Diversity

	return models.ScoredTrack{Track: *track, Score: score, Breakdown: breakdown}
}

// featureSimilarity is one per-dimension comparison: the similarity value
// and the context weight it carries.
type featureSimilarity struct {
	sim    float64
	weight float64
}

// similarities collects the per-dimension similarity terms present on
// both the track and the pattern. Tempo is normalized over a 200 BPM
// span; the bounded features compare directly.
func (s *Scorer) similarities(track *models.TrackCandidate, avg *models.PatternAverages) []featureSimilarity {
	var sims []featureSimilarity
	f := track.Features

	if f.Energy != nil {
		sims = append(sims, featureSimilarity{1 - math.Abs(*f.Energy-avg.Energy), s.weights.Energy})
	}
	if f.Valence != nil {
		sims = append(sims, featureSimilarity{1 - math.Abs(*f.Valence-avg.Valence), s.weights.Valence})
	}
	if f.Tempo != nil {
		sim := 1 - math.Min(math.Abs(*f.Tempo-avg.Tempo)/200.0, 1)
		sims = append(sims, featureSimilarity{sim, s.weights.Tempo})
	}
	if f.Danceability != nil {
		sims = append(sims, featureSimilarity{1 - math.Abs(*f.Danceability-avg.Danceability), s.weights.Danceability})
	}
	if f.Acousticness != nil {
		sims = append(sims, featureSimilarity{1 - math.Abs(*f.Acousticness-avg.Acousticness), s.weights.Acousticness})
	}
	if f.Instrumentalness != nil {
		sims = append(sims, featureSimilarity{1 - math.Abs(*f.Instrumentalness-avg.Instrumentalness), s.weights.Instrumentalness})
	}

	return sims
}

// contextMatch sums the weighted per-feature similarities, then scales by
// how much evidence backs the pattern: confidence times a sample-size
// ramp saturating at 50 events.
func (s *Scorer) contextMatch(track *models.TrackCandidate, pattern *models.ListeningPattern) float64 {
	sims := s.similarities(track, &pattern.Averages)
	if len(sims) == 0 {
		return 0.5 * evidenceScale(pattern)
	}

	var sum float64
	for _, fs := range sims {
		sum += fs.sim * fs.weight
	}

	return clamp01(sum * evidenceScale(pattern))
}

func evidenceScale(pattern *models.ListeningPattern) float64 {
	ramp := math.Min(float64(pattern.SampleSize)/50.0, 1)
	return pattern.Confidence * ramp
}

// audioSimilarity is the weighted mean of the per-feature similarities,
// without the evidence scaling. Falls back to 0.5 when the track has no
// comparable features.
func (s *Scorer) audioSimilarity(track *models.TrackCandidate, avg *models.PatternAverages) float64 {
	sims := s.similarities(track, avg)
	if len(sims) == 0 {
		return 0.5
	}

	var weightedSum, weightSum float64
	for _, fs := range sims {
		weightedSum += fs.sim * fs.weight
		weightSum += fs.weight
	}
	if weightSum == 0 {
		return 0.5
	}

	return clamp01(weightedSum / weightSum)
}

// engagementScore blends completion, skip, and play-count signals, floors
// at a popularity-derived minimum, applies temporal decay, and clamps to
// [0.1, 1].
func engagementScore(track *models.TrackCandidate, now time.Time) float64 {
	base := track.CompletionRate*0.4 +
		(1-track.SkipRate)*0.3 +
		math.Min(float64(track.PlayCount)/50.0, 0.2)

	if floor := float64(track.Popularity) / 100.0 * 0.1; floor > base {
		base = floor
	}

	if !track.LastPlayed.IsZero() {
		days := now.Sub(track.LastPlayed).Hours() / 24
		switch {
		case days <= 30:
			// no decay
		case days <= 90:
			base *= 0.85
		case days <= 180:
			base *= 0.7
		default:
			base *= 0.5
		}
	}

	return math.Max(0.1, math.Min(base, 1.0))
}

// RecencyScore maps days-since-played to a preference curve: fresh plays
// score moderately, the 7-30 day band is the sweet spot, and old plays
// decline toward a 0.2 floor. Never-played tracks score 1.0 so discovery
// candidates are not penalized. Continuous at every breakpoint.
func RecencyScore(lastPlayed, now time.Time) float64 {
	if lastPlayed.IsZero() {
		return 1.0
	}

	days := now.Sub(lastPlayed).Hours() / 24
	if days < 0 {
		days = 0
	}

	switch {
	case days <= 3:
		return 0.6 + (days/3)*0.1
	case days <= 7:
		return 0.7 + ((days-3)/4)*0.2
	case days <= 30:
		return 0.9 + ((days-7)/23)*0.1
	case days <= 90:
		return 1.0 - ((days-30)/60)*0.2
	default:
		score := 0.8 - ((days-90)/365)*0.5
		return math.Max(score, 0.2)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
