// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

package models

import "time"

// AudioFeatures is the per-track audio feature vector.
// Every field is optional; absent fields are excluded from averages and
// similarity calculations rather than treated as zero.
type AudioFeatures struct {
	Energy           *float64 `json:"energy,omitempty"`
	Valence          *float64 `json:"valence,omitempty"`
	Tempo            *float64 `json:"tempo,omitempty"`
	Danceability     *float64 `json:"danceability,omitempty"`
	Acousticness     *float64 `json:"acousticness,omitempty"`
	Instrumentalness *float64 `json:"instrumentalness,omitempty"`
	Liveness         *float64 `json:"liveness,omitempty"`
	Speechiness      *float64 `json:"speechiness,omitempty"`
	Loudness         *float64 `json:"loudness,omitempty"`
	Mode             *int     `json:"mode,omitempty"`
	Key              *int     `json:"key,omitempty"`
	TimeSignature    *int     `json:"time_signature,omitempty"`
}

// HasCore reports whether the vector carries the energy field, the
// minimum signal required for pattern aggregation.
func (f AudioFeatures) HasCore() bool { return f.Energy != nil }

// Float returns a pointer to v, for building feature vectors inline.
func Float(v float64) *float64 { return &v }

// ListeningEvent records one played track instance. Events are written by
// the listening tracker (out of scope) and are immutable here except for
// the engagement outcome patched in when the track finishes or is skipped.
type ListeningEvent struct {
	ID         string        `json:"id"`
	UserID     string        `json:"user_id"`
	TrackID    string        `json:"track_id"`
	TrackName  string        `json:"track_name"`
	Artist     string        `json:"artist"`
	ArtistID   string        `json:"artist_id,omitempty"`
	Album      string        `json:"album,omitempty"`
	Duration   time.Duration `json:"duration_ms"`
	Features   AudioFeatures `json:"features"`
	Genres     []string      `json:"genres,omitempty"`
	Popularity int           `json:"popularity,omitempty"`
	Explicit   bool          `json:"explicit,omitempty"`
	ReleaseYr  int           `json:"release_year,omitempty"`
	PlayedAt   time.Time     `json:"played_at"`

	// Derived context tags captured at play time.
	TimeOfDay TimeOfDay `json:"time_of_day"`
	DayOfWeek string    `json:"day_of_week"`
	Weather   string    `json:"weather,omitempty"`
	Activity  string    `json:"activity,omitempty"`

	// Engagement outcome.
	Skipped      bool          `json:"skipped"`
	Completed    bool          `json:"completed"`
	PlayDuration time.Duration `json:"play_duration_ms"`
}

// RankedName is a name with its observed frequency, used for the top
// genres/artists lists on a pattern. Stored as a typed list; JSON encoding
// happens only inside the store adapter.
type RankedName struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// PatternAverages holds the field-wise mean audio features of a pattern.
type PatternAverages struct {
	Energy           float64 `json:"energy"`
	Valence          float64 `json:"valence"`
	Tempo            float64 `json:"tempo"`
	Danceability     float64 `json:"danceability"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
}

// ListeningPattern is one learned statistical profile per distinct
// non-empty context signature.
type ListeningPattern struct {
	UserID     string           `json:"user_id"`
	Signature  ContextSignature `json:"-"`
	Averages   PatternAverages  `json:"averages"`
	TopGenres  []RankedName     `json:"top_genres"`
	TopArtists []RankedName     `json:"top_artists"`
	SampleSize int              `json:"sample_size"`
	Confidence float64          `json:"confidence_score"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// ConfidenceScore maps a sample size to [0,1]: min(n/100, 1).
// Monotonically non-decreasing and capped at 1.0.
func ConfidenceScore(sampleSize int) float64 {
	if sampleSize <= 0 {
		return 0
	}
	c := float64(sampleSize) / 100.0
	if c > 1 {
		return 1
	}
	return c
}

// TopListCap bounds the ranked genre/artist lists on a pattern.
const TopListCap = 10

// TrackCandidate is the deduplicated per-track projection built from one
// or more listening events. Ephemeral; built per generation request.
type TrackCandidate struct {
	TrackID    string        `json:"track_id"`
	Name       string        `json:"name"`
	Artist     string        `json:"artist"`
	ArtistID   string        `json:"artist_id,omitempty"`
	Album      string        `json:"album,omitempty"`
	Duration   time.Duration `json:"duration_ms"`
	Popularity int           `json:"popularity"`
	Explicit   bool          `json:"explicit"`
	ReleaseYr  int           `json:"release_year,omitempty"`
	Features   AudioFeatures `json:"features"`
	Genres     []string      `json:"genres,omitempty"`

	// Engagement aggregates across the candidate's events.
	LastPlayed     time.Time `json:"last_played,omitzero"`
	SkipRate       float64   `json:"skip_rate"`
	CompletionRate float64   `json:"completion_rate"`
	PlayCount      int       `json:"play_count"`

	IsDiscovered     bool `json:"is_discovered,omitempty"`
	IsFromSavedAlbum bool `json:"is_from_saved_album,omitempty"`
}

// ScoreBreakdown names the components of a track's relevance score.
type ScoreBreakdown struct {
	ContextMatch    float64 `json:"context_match"`
	AudioSimilarity float64 `json:"audio_similarity"`
	Engagement      float64 `json:"engagement"`
	Recency         float64 `json:"recency"`
	Diversity       float64 `json:"diversity"`
}

// ScoredTrack pairs a candidate with its score. Consumed immediately by
// the selector; never persisted.
type ScoredTrack struct {
	Track     TrackCandidate `json:"track"`
	Score     float64        `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// Template identifies a playlist generation template.
type Template string

const (
	TemplateMorningEnergy Template = "morning_energy"
	TemplateFocus         Template = "focus"
	TemplateRightNow      Template = "right_now"
	TemplateWindDown      Template = "wind_down"
	TemplateWorkout       Template = "workout"
)

// PlaylistFilters constrains custom generation. All range bounds are
// optional; adding a bound can only shrink the candidate set.
type PlaylistFilters struct {
	Context    ContextSignature `json:"-"`
	Genres     []string         `json:"genres,omitempty"`
	MinEnergy  *float64         `json:"min_energy,omitempty" validate:"omitempty,gte=0,lte=1"`
	MaxEnergy  *float64         `json:"max_energy,omitempty" validate:"omitempty,gte=0,lte=1"`
	MinValence *float64         `json:"min_valence,omitempty" validate:"omitempty,gte=0,lte=1"`
	MaxValence *float64         `json:"max_valence,omitempty" validate:"omitempty,gte=0,lte=1"`
	MinTempo   *float64         `json:"min_tempo,omitempty" validate:"omitempty,gte=40,lte=200"`
	MaxTempo   *float64         `json:"max_tempo,omitempty" validate:"omitempty,gte=40,lte=200"`
}

// ContextSnapshot records what produced a playlist.
type ContextSnapshot struct {
	Template         Template         `json:"template,omitempty"`
	Filters          *PlaylistFilters `json:"filters,omitempty"`
	Signature        ContextSignature `json:"-"`
	ContextTriggered bool             `json:"context_triggered"`
	DetectedWeather  string           `json:"detected_weather,omitempty"`
	DetectedMood     Mood             `json:"detected_mood,omitempty"`
	DetectedAt       time.Time        `json:"detected_at"`
}

// GeneratedPlaylist is the engine's output: an ordered track list plus the
// context snapshot that produced it. Persisted only when accepted by the
// user, or as a short-lived suggestion when context-triggered.
type GeneratedPlaylist struct {
	ID            string           `json:"id"`
	UserID        string           `json:"user_id"`
	Name          string           `json:"name"`
	TrackIDs      []string         `json:"track_ids"`
	Tracks        []TrackCandidate `json:"tracks"`
	TotalDuration time.Duration    `json:"total_duration_ms"`
	Snapshot      ContextSnapshot  `json:"context_snapshot"`
	BackfillUsed  bool             `json:"backfill_used,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	ExpiresAt     time.Time        `json:"expires_at,omitzero"`

	// Optional user feedback added after generation.
	Rating   *int   `json:"rating,omitempty"`
	Feedback string `json:"feedback,omitempty"`
}

// Expired reports whether a stored suggestion has passed its expiry.
func (p *GeneratedPlaylist) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}
