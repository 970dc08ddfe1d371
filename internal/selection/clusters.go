// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

// Package selection ranks scored tracks and picks a bounded, diverse
// subset under per-artist and per-genre-cluster caps.
package selection

import (
	"strings"

	"github.com/harmonia-labs/harmonia/internal/models"
)

// Cluster sentinel values for tracks that map to no named cluster.
const (
	ClusterUnknown = "unknown"
	ClusterOther   = "other"
)

// genreCluster groups related genres under one diversity bucket.
type genreCluster struct {
	name    string
	members []string
}

// genreClusters is the fixed cluster table, checked in order; a track
// belongs to the first cluster with any bidirectional substring match
// against any of its genre tags.
var genreClusters = []genreCluster{
	{"indie", []string{"indie", "alternative", "shoegaze", "dream pop", "lo-fi"}},
	{"electronic", []string{"electronic", "house", "techno", "edm", "dubstep", "drum and bass", "trance", "ambient"}},
	{"rock", []string{"rock", "punk", "grunge", "garage", "psychedelic"}},
	{"hip-hop", []string{"hip hop", "hip-hop", "rap", "trap", "grime"}},
	{"pop", []string{"pop", "synth-pop", "k-pop", "dance pop", "disco"}},
	{"folk", []string{"folk", "acoustic", "singer-songwriter", "country", "americana"}},
	{"metal", []string{"metal", "hardcore", "doom", "thrash", "metalcore"}},
	{"jazz", []string{"jazz", "bebop", "swing", "fusion", "blues"}},
	{"classical", []string{"classical", "orchestral", "baroque", "opera", "piano"}},
	{"soul", []string{"soul", "r&b", "rnb", "funk", "motown", "gospel"}},
}

// ClusterFor maps a track's genre tags to its diversity cluster:
// "unknown" when it has no genres, "other" when nothing matches.
func ClusterFor(genres []string) string {
	tags := make([]string, 0, len(genres))
	for _, g := range genres {
		g = strings.ToLower(strings.TrimSpace(g))
		if g != "" {
			tags = append(tags, g)
		}
	}
	if len(tags) == 0 {
		return ClusterUnknown
	}

	for _, cluster := range genreClusters {
		for _, member := range cluster.members {
			for _, tag := range tags {
				if strings.Contains(tag, member) || strings.Contains(member, tag) {
					return cluster.name
				}
			}
		}
	}

	return ClusterOther
}

// trackCluster is a convenience wrapper for candidates.
func trackCluster(track *models.TrackCandidate) string {
	return ClusterFor(track.Genres)
}
