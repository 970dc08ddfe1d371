// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

package features

import (
	"testing"
	"time"

	"github.com/harmonia-labs/harmonia/internal/models"
)

func val(f *float64) float64 {
	if f == nil {
		return -999
	}
	return *f
}

func TestEstimate_Deterministic(t *testing.T) {
	e := NewEstimator()
	meta := TrackMeta{
		Genres:      []string{"indie rock", "dream pop"},
		Popularity:  72,
		Duration:    3*time.Minute + 40*time.Second,
		ReleaseYear: 2018,
	}

	first := e.Estimate(meta)
	for i := 0; i < 10; i++ {
		got := e.Estimate(meta)
		if val(got.Energy) != val(first.Energy) ||
			val(got.Valence) != val(first.Valence) ||
			val(got.Tempo) != val(first.Tempo) ||
			val(got.Danceability) != val(first.Danceability) {
			t.Fatalf("estimate not deterministic on run %d: %+v vs %+v", i, got, first)
		}
	}
}

func TestEstimate_ClampRanges(t *testing.T) {
	e := NewEstimator()
	metas := []TrackMeta{
		{Genres: []string{"metal", "punk", "drum and bass"}, Popularity: 100, Duration: time.Minute, Explicit: true, ReleaseYear: 2005},
		{Genres: []string{"ambient", "classical"}, Popularity: 0, Duration: 12 * time.Minute, ReleaseYear: 1975},
		{Genres: nil, Popularity: 50, Duration: 4 * time.Minute},
		{Genres: []string{"happy party disco dance"}, Popularity: 95, Duration: 2 * time.Minute, ReleaseYear: 2023},
	}

	for _, meta := range metas {
		got := e.Estimate(meta)
		for name, ptr := range map[string]*float64{
			"energy":           got.Energy,
			"valence":          got.Valence,
			"danceability":     got.Danceability,
			"acousticness":     got.Acousticness,
			"instrumentalness": got.Instrumentalness,
			"speechiness":      got.Speechiness,
		} {
			if v := val(ptr); v < 0 || v > 1 {
				t.Errorf("%s = %f out of [0,1] for %v", name, v, meta.Genres)
			}
		}
		if v := val(got.Tempo); v < 40 || v > 200 {
			t.Errorf("tempo = %f out of [40,200] for %v", v, meta.Genres)
		}
		if v := val(got.Loudness); v < -60 || v > 0 {
			t.Errorf("loudness = %f out of [-60,0] for %v", v, meta.Genres)
		}
	}
}

func TestEstimate_NoGenresUsesDefault(t *testing.T) {
	e := NewEstimator()
	got := e.Estimate(TrackMeta{Duration: 4 * time.Minute})

	// Default vector plus refinements only; energy should land near the
	// default, well away from the extremes.
	if v := val(got.Energy); v < 0.3 || v > 0.8 {
		t.Errorf("default energy = %f, want mid-range", v)
	}
	if got.Tempo == nil {
		t.Fatal("tempo missing from default estimate")
	}
}

func TestEstimate_GenreDirection(t *testing.T) {
	e := NewEstimator()
	d := 4 * time.Minute

	metalEnergy := val(e.Estimate(TrackMeta{Genres: []string{"metal"}, Duration: d}).Energy)
	ambientEnergy := val(e.Estimate(TrackMeta{Genres: []string{"ambient"}, Duration: d}).Energy)
	if metalEnergy <= ambientEnergy {
		t.Errorf("metal energy (%f) should exceed ambient energy (%f)", metalEnergy, ambientEnergy)
	}

	folkAcoustic := val(e.Estimate(TrackMeta{Genres: []string{"folk"}, Duration: d}).Acousticness)
	technoAcoustic := val(e.Estimate(TrackMeta{Genres: []string{"techno"}, Duration: d}).Acousticness)
	if folkAcoustic <= technoAcoustic {
		t.Errorf("folk acousticness (%f) should exceed techno (%f)", folkAcoustic, technoAcoustic)
	}
}

func TestEstimate_SubstringMatchesBothWays(t *testing.T) {
	e := NewEstimator()
	d := 4 * time.Minute

	// "indie rock" contains the profile name "rock"; the profile name
	// "drum and bass" contains the tag "drum".
	a := e.Estimate(TrackMeta{Genres: []string{"indie rock"}, Duration: d})
	b := e.Estimate(TrackMeta{Genres: []string{"zzz-unmatched"}, Duration: d})
	if val(a.Energy) == val(b.Energy) && val(a.Tempo) == val(b.Tempo) {
		t.Error("tag containing a profile name produced the default vector")
	}

	c := e.Estimate(TrackMeta{Genres: []string{"drum"}, Duration: d})
	if val(c.Tempo) == val(b.Tempo) {
		t.Error("profile name containing the tag produced the default vector")
	}
}

func TestEstimate_DurationAdjustment(t *testing.T) {
	e := NewEstimator()
	genres := []string{"electronic"}

	long := e.Estimate(TrackMeta{Genres: genres, Duration: 8 * time.Minute})
	normal := e.Estimate(TrackMeta{Genres: genres, Duration: 4 * time.Minute})
	short := e.Estimate(TrackMeta{Genres: genres, Duration: 2 * time.Minute})

	if val(long.Danceability) >= val(normal.Danceability) {
		t.Error("long tracks should score lower danceability")
	}
	if val(long.Instrumentalness) <= val(normal.Instrumentalness) {
		t.Error("long tracks should score higher instrumentalness")
	}
	if val(short.Tempo) <= val(normal.Tempo) {
		t.Error("very short tracks should score higher tempo")
	}
}

func TestEstimate_ExplicitRaisesSpeechiness(t *testing.T) {
	e := NewEstimator()
	meta := TrackMeta{Genres: []string{"rap"}, Duration: 3 * time.Minute}

	clean := e.Estimate(meta)
	meta.Explicit = true
	explicit := e.Estimate(meta)

	if val(explicit.Speechiness) <= val(clean.Speechiness) {
		t.Errorf("explicit speechiness %f not above clean %f",
			val(explicit.Speechiness), val(clean.Speechiness))
	}
	if val(explicit.Speechiness) > 0.66 {
		t.Errorf("explicit speechiness %f above 0.66 cap", val(explicit.Speechiness))
	}
}

func TestEstimate_ValenceKeywords(t *testing.T) {
	e := NewEstimator()
	d := 4 * time.Minute

	sad := val(e.Estimate(TrackMeta{Genres: []string{"dark ambient"}, Duration: d}).Valence)
	happy := val(e.Estimate(TrackMeta{Genres: []string{"happy house"}, Duration: d}).Valence)
	if sad >= happy {
		t.Errorf("sad-keyword valence (%f) not below happy-keyword valence (%f)", sad, happy)
	}
}

func TestEstimate_VarianceIsSeeded(t *testing.T) {
	meta := TrackMeta{Genres: []string{"pop"}, Popularity: 60, Duration: 3 * time.Minute}

	a := NewEstimatorWithVariance(42).Estimate(meta)
	b := NewEstimatorWithVariance(42).Estimate(meta)
	if val(a.Energy) != val(b.Energy) || val(a.Tempo) != val(b.Tempo) {
		t.Error("same seed produced different estimates")
	}

	c := NewEstimatorWithVariance(7).Estimate(meta)
	deterministic := NewEstimator().Estimate(meta)
	if val(c.Energy) == val(deterministic.Energy) && val(c.Tempo) == val(deterministic.Tempo) &&
		val(c.Valence) == val(deterministic.Valence) {
		t.Error("variance pass appears to be a no-op")
	}
}

func TestEraFor_CoversAllEras(t *testing.T) {
	years := []int{1965, 1985, 1995, 2005, 2012, 2017, 2024}
	seen := make(map[eraAdjustment]bool)
	for _, y := range years {
		seen[eraFor(y)] = true
	}
	if len(seen) != len(years) {
		t.Errorf("expected %d distinct era adjustments, got %d", len(years), len(seen))
	}
	if eraFor(0) != (eraAdjustment{}) {
		t.Error("unknown year should get no adjustment")
	}
}

func TestGenreProfile_ToAudioFeatures(t *testing.T) {
	p := genreProfiles["jazz"]
	af := p.ToAudioFeatures()
	if af.Energy == nil || *af.Energy != *p.Energy {
		t.Error("ToAudioFeatures dropped energy")
	}
	if af.Mode != nil {
		t.Error("profiles never carry mode")
	}
	var _ models.AudioFeatures = af
}
