// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

// Package features estimates a track's audio-feature vector from its genre
// tags and metadata. Estimation is the fallback path for tracks whose
// first-party features are unavailable; tracks with real features never
// pass through here.
package features

import "github.com/harmonia-labs/harmonia/internal/models"

// GenreProfile is a partial audio-feature profile for one genre. Nil
// fields are excluded from averaging, not treated as zero.
type GenreProfile struct {
	Energy           *float64
	Valence          *float64
	Danceability     *float64
	Tempo            *float64
	Acousticness     *float64
	Instrumentalness *float64
	Loudness         *float64
	Speechiness      *float64
}

func f(v float64) *float64 { return &v }

// genreProfiles maps genre names to reference profiles. Matching is
// bidirectional case-insensitive substring containment, so "indie rock"
// matches both "indie" and "rock".
var genreProfiles = map[string]GenreProfile{
	"rock": {
		Energy: f(0.75), Valence: f(0.55), Danceability: f(0.50),
		Tempo: f(125), Acousticness: f(0.10), Instrumentalness: f(0.10),
		Loudness: f(-6.0),
	},
	"metal": {
		Energy: f(0.92), Valence: f(0.35), Danceability: f(0.40),
		Tempo: f(140), Acousticness: f(0.02), Instrumentalness: f(0.25),
		Loudness: f(-4.5),
	},
	"punk": {
		Energy: f(0.90), Valence: f(0.50), Danceability: f(0.45),
		Tempo: f(160), Acousticness: f(0.03), Loudness: f(-4.0),
	},
	"indie": {
		Energy: f(0.60), Valence: f(0.52), Danceability: f(0.55),
		Tempo: f(118), Acousticness: f(0.30), Instrumentalness: f(0.12),
		Loudness: f(-8.5),
	},
	"alternative": {
		Energy: f(0.68), Valence: f(0.48), Danceability: f(0.52),
		Tempo: f(122), Acousticness: f(0.15), Loudness: f(-7.0),
	},
	"pop": {
		Energy: f(0.68), Valence: f(0.62), Danceability: f(0.68),
		Tempo: f(120), Acousticness: f(0.15), Instrumentalness: f(0.02),
		Loudness: f(-6.0), Speechiness: f(0.06),
	},
	"dance pop": {
		Energy: f(0.78), Valence: f(0.65), Danceability: f(0.78),
		Tempo: f(124), Acousticness: f(0.08), Loudness: f(-5.0),
	},
	"hip hop": {
		Energy: f(0.70), Valence: f(0.55), Danceability: f(0.78),
		Tempo: f(95), Acousticness: f(0.10), Instrumentalness: f(0.02),
		Loudness: f(-6.5), Speechiness: f(0.22),
	},
	"rap": {
		Energy: f(0.72), Valence: f(0.52), Danceability: f(0.76),
		Tempo: f(98), Speechiness: f(0.26), Loudness: f(-6.0),
	},
	"trap": {
		Energy: f(0.72), Valence: f(0.42), Danceability: f(0.80),
		Tempo: f(140), Speechiness: f(0.20), Loudness: f(-6.0),
	},
	"r&b": {
		Energy: f(0.58), Valence: f(0.55), Danceability: f(0.68),
		Tempo: f(100), Acousticness: f(0.22), Speechiness: f(0.10),
		Loudness: f(-7.5),
	},
	"soul": {
		Energy: f(0.55), Valence: f(0.60), Danceability: f(0.60),
		Tempo: f(102), Acousticness: f(0.35), Loudness: f(-8.0),
	},
	"funk": {
		Energy: f(0.72), Valence: f(0.72), Danceability: f(0.78),
		Tempo: f(110), Acousticness: f(0.15), Loudness: f(-7.0),
	},
	"electronic": {
		Energy: f(0.75), Valence: f(0.50), Danceability: f(0.70),
		Tempo: f(126), Acousticness: f(0.04), Instrumentalness: f(0.55),
		Loudness: f(-6.0),
	},
	"house": {
		Energy: f(0.78), Valence: f(0.58), Danceability: f(0.80),
		Tempo: f(124), Acousticness: f(0.03), Instrumentalness: f(0.60),
		Loudness: f(-5.5),
	},
	"techno": {
		Energy: f(0.82), Valence: f(0.40), Danceability: f(0.74),
		Tempo: f(130), Acousticness: f(0.02), Instrumentalness: f(0.80),
		Loudness: f(-6.0),
	},
	"ambient": {
		Energy: f(0.25), Valence: f(0.40), Danceability: f(0.25),
		Tempo: f(90), Acousticness: f(0.60), Instrumentalness: f(0.85),
		Loudness: f(-16.0),
	},
	"drum and bass": {
		Energy: f(0.88), Valence: f(0.45), Danceability: f(0.65),
		Tempo: f(172), Instrumentalness: f(0.60), Loudness: f(-5.0),
	},
	"folk": {
		Energy: f(0.40), Valence: f(0.50), Danceability: f(0.45),
		Tempo: f(110), Acousticness: f(0.75), Instrumentalness: f(0.10),
		Loudness: f(-11.0),
	},
	"acoustic": {
		Energy: f(0.35), Valence: f(0.48), Danceability: f(0.42),
		Tempo: f(105), Acousticness: f(0.85), Loudness: f(-12.0),
	},
	"country": {
		Energy: f(0.58), Valence: f(0.60), Danceability: f(0.58),
		Tempo: f(118), Acousticness: f(0.45), Loudness: f(-8.0),
	},
	"jazz": {
		Energy: f(0.45), Valence: f(0.55), Danceability: f(0.50),
		Tempo: f(115), Acousticness: f(0.60), Instrumentalness: f(0.65),
		Loudness: f(-12.0),
	},
	"blues": {
		Energy: f(0.50), Valence: f(0.45), Danceability: f(0.50),
		Tempo: f(100), Acousticness: f(0.50), Loudness: f(-10.0),
	},
	"classical": {
		Energy: f(0.25), Valence: f(0.40), Danceability: f(0.25),
		Tempo: f(100), Acousticness: f(0.90), Instrumentalness: f(0.90),
		Loudness: f(-18.0), Speechiness: f(0.04),
	},
	"lo-fi": {
		Energy: f(0.30), Valence: f(0.45), Danceability: f(0.55),
		Tempo: f(82), Acousticness: f(0.40), Instrumentalness: f(0.80),
		Loudness: f(-13.0),
	},
	"reggae": {
		Energy: f(0.55), Valence: f(0.70), Danceability: f(0.72),
		Tempo: f(95), Acousticness: f(0.25), Loudness: f(-9.0),
	},
	"latin": {
		Energy: f(0.72), Valence: f(0.72), Danceability: f(0.76),
		Tempo: f(105), Acousticness: f(0.25), Loudness: f(-6.5),
	},
	"disco": {
		Energy: f(0.75), Valence: f(0.75), Danceability: f(0.80),
		Tempo: f(118), Acousticness: f(0.10), Loudness: f(-7.0),
	},
	"grunge": {
		Energy: f(0.80), Valence: f(0.35), Danceability: f(0.42),
		Tempo: f(120), Acousticness: f(0.06), Loudness: f(-6.0),
	},
	"emo": {
		Energy: f(0.72), Valence: f(0.30), Danceability: f(0.45),
		Tempo: f(128), Acousticness: f(0.10), Loudness: f(-6.0),
	},
	"soundtrack": {
		Energy: f(0.40), Valence: f(0.42), Danceability: f(0.30),
		Tempo: f(105), Acousticness: f(0.55), Instrumentalness: f(0.75),
		Loudness: f(-14.0),
	},
}

// defaultVector is the starting point when no genre matches.
var defaultVector = vector{
	energy:           0.55,
	valence:          0.50,
	danceability:     0.55,
	tempo:            118,
	acousticness:     0.30,
	instrumentalness: 0.15,
	loudness:         -8.0,
	speechiness:      0.07,
}

// sadKeywords and happyKeywords drive the valence refinement.
var (
	sadKeywords   = []string{"sad", "dark", "doom", "emo", "melanchol", "grunge", "gothic", "blues"}
	happyKeywords = []string{"happy", "party", "dance", "disco", "funk", "tropical", "summer"}
)

// ToAudioFeatures converts a profile to the shared models type. Used by
// tests and by callers that want the raw reference data.
func (p GenreProfile) ToAudioFeatures() models.AudioFeatures {
	return models.AudioFeatures{
		Energy:           p.Energy,
		Valence:          p.Valence,
		Danceability:     p.Danceability,
		Tempo:            p.Tempo,
		Acousticness:     p.Acousticness,
		Instrumentalness: p.Instrumentalness,
		Loudness:         p.Loudness,
		Speechiness:      p.Speechiness,
	}
}
