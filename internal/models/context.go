// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

package models

import "strings"

// TimeOfDay is the canonical time-of-day bucket.
//
// The canonical boundaries are [5,12) morning, [12,17) afternoon,
// [17,21) evening, everything else night. All hour comparisons in the
// engine go through contextdetect.BucketForHour so the boundaries cannot
// drift between subsystems.
type TimeOfDay string

const (
	TimeMorning   TimeOfDay = "morning"
	TimeAfternoon TimeOfDay = "afternoon"
	TimeEvening   TimeOfDay = "evening"
	TimeNight     TimeOfDay = "night"
)

// Mood is the coarse mood signal derived from recent listening.
type Mood string

const (
	MoodEnergeticHappy   Mood = "energetic_happy"
	MoodEnergeticIntense Mood = "energetic_intense"
	MoodCalmHappy        Mood = "calm_happy"
	MoodCalmMelancholic  Mood = "calm_melancholic"
	MoodBalanced         Mood = "balanced"
)

// DimState distinguishes the three states a signature dimension can be in.
// An Unspecified dimension is part of the signature ("any weather"), while
// an Absent dimension is simply not provided. A time-only pattern has
// day/weather/activity Unspecified, not missing.
type DimState int

const (
	// DimAbsent means the dimension was not provided at all.
	DimAbsent DimState = iota
	// DimUnspecified means the dimension is explicitly wildcarded.
	DimUnspecified
	// DimSet means the dimension carries a concrete value.
	DimSet
)

// Dim is a tagged optional signature dimension.
// The zero value is Absent.
type Dim struct {
	state DimState
	value string
}

// DimOf returns a Dim carrying a concrete value.
// An empty value yields an Unspecified Dim so a blank string can never
// masquerade as a real dimension value.
func DimOf(value string) Dim {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return Unspecified()
	}
	return Dim{state: DimSet, value: value}
}

// Unspecified returns an explicitly wildcarded Dim.
func Unspecified() Dim {
	return Dim{state: DimUnspecified}
}

// State returns the dimension state.
func (d Dim) State() DimState { return d.state }

// IsSet reports whether the dimension carries a concrete value.
func (d Dim) IsSet() bool { return d.state == DimSet }

// Value returns the concrete value and whether one is set.
func (d Dim) Value() (string, bool) {
	return d.value, d.state == DimSet
}

// Equal reports whether two dimensions have the same state and value.
func (d Dim) Equal(other Dim) bool {
	return d.state == other.state && d.value == other.value
}

// String returns a stable textual form used in signature keys.
func (d Dim) String() string {
	switch d.state {
	case DimSet:
		return d.value
	case DimUnspecified:
		return "*"
	default:
		return "-"
	}
}

// ContextSignature keys listening patterns and custom filters.
// Dimensions left Unspecified are wildcards; Absent dimensions are
// normalized to Unspecified before persistence so every stored pattern
// has all four dimensions accounted for.
type ContextSignature struct {
	TimeOfDay Dim
	DayOfWeek Dim
	Weather   Dim
	Activity  Dim
}

// Normalize returns a copy with Absent dimensions forced to Unspecified.
func (s ContextSignature) Normalize() ContextSignature {
	norm := func(d Dim) Dim {
		if d.State() == DimAbsent {
			return Unspecified()
		}
		return d
	}
	return ContextSignature{
		TimeOfDay: norm(s.TimeOfDay),
		DayOfWeek: norm(s.DayOfWeek),
		Weather:   norm(s.Weather),
		Activity:  norm(s.Activity),
	}
}

// Empty reports whether no dimension carries a concrete value.
func (s ContextSignature) Empty() bool {
	return !s.TimeOfDay.IsSet() && !s.DayOfWeek.IsSet() &&
		!s.Weather.IsSet() && !s.Activity.IsSet()
}

// Equal reports whether two signatures match exactly on all four
// dimensions after normalization. This is the upsert identity.
func (s ContextSignature) Equal(other ContextSignature) bool {
	a, b := s.Normalize(), other.Normalize()
	return a.TimeOfDay.Equal(b.TimeOfDay) && a.DayOfWeek.Equal(b.DayOfWeek) &&
		a.Weather.Equal(b.Weather) && a.Activity.Equal(b.Activity)
}

// Key returns a stable storage key for the normalized signature.
func (s ContextSignature) Key() string {
	n := s.Normalize()
	return n.TimeOfDay.String() + "|" + n.DayOfWeek.String() + "|" +
		n.Weather.String() + "|" + n.Activity.String()
}

// SignatureFromKey parses a key produced by Key back into a signature.
// Unknown or malformed keys yield the fully-unspecified signature.
func SignatureFromKey(key string) ContextSignature {
	parts := strings.Split(key, "|")
	if len(parts) != 4 {
		return ContextSignature{}.Normalize()
	}
	parse := func(s string) Dim {
		if s == "*" || s == "-" {
			return Unspecified()
		}
		return DimOf(s)
	}
	return ContextSignature{
		TimeOfDay: parse(parts[0]),
		DayOfWeek: parse(parts[1]),
		Weather:   parse(parts[2]),
		Activity:  parse(parts[3]),
	}
}

// SetDimensions returns how many dimensions carry concrete values.
// Signatures with two or more set dimensions are "combined" and require
// a larger sample before a pattern is materialized.
func (s ContextSignature) SetDimensions() int {
	count := 0
	for _, d := range []Dim{s.TimeOfDay, s.DayOfWeek, s.Weather, s.Activity} {
		if d.IsSet() {
			count++
		}
	}
	return count
}
