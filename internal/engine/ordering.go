// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

package engine

import (
	"sort"

	"github.com/harmonia-labs/harmonia/internal/models"
)

// arrangeForTemplate reorders the final track list to fit the template's
// energy shape. Always a permutation of the input; templates without a
// shape keep the score order.
func arrangeForTemplate(template models.Template, tracks []models.TrackCandidate) []models.TrackCandidate {
	switch template {
	case models.TemplateWorkout:
		return energyArc(tracks)
	case models.TemplateWindDown:
		return byEnergyDescending(tracks)
	default:
		return tracks
	}
}

// energyOf reads a track's energy, defaulting absent values to the
// midpoint so featureless tracks sort into the middle of an arc.
func energyOf(t *models.TrackCandidate) float64 {
	if t.Features.Energy != nil {
		return *t.Features.Energy
	}
	return 0.5
}

// byEnergyDescending sorts highest energy first.
func byEnergyDescending(tracks []models.TrackCandidate) []models.TrackCandidate {
	out := make([]models.TrackCandidate, len(tracks))
	copy(out, tracks)
	sort.SliceStable(out, func(i, j int) bool {
		return energyOf(&out[i]) > energyOf(&out[j])
	})
	return out
}

// energyArc arranges tracks as warm-up, peak, cool-down: the lowest-energy
// fifth rising into an ascending peak section, closing with a descending
// tail drawn from the low-mid range.
func energyArc(tracks []models.TrackCandidate) []models.TrackCandidate {
	n := len(tracks)
	if n < 4 {
		return byEnergyAscending(tracks)
	}

	asc := byEnergyAscending(tracks)
	warmN := n / 5
	if warmN < 1 {
		warmN = 1
	}
	coolN := n / 5
	if coolN < 1 {
		coolN = 1
	}

	out := make([]models.TrackCandidate, 0, n)
	out = append(out, asc[:warmN]...)
	out = append(out, asc[warmN+coolN:]...)
	for i := warmN + coolN - 1; i >= warmN; i-- {
		out = append(out, asc[i])
	}
	return out
}

func byEnergyAscending(tracks []models.TrackCandidate) []models.TrackCandidate {
	out := make([]models.TrackCandidate, len(tracks))
	copy(out, tracks)
	sort.SliceStable(out, func(i, j int) bool {
		return energyOf(&out[i]) < energyOf(&out[j])
	})
	return out
}
