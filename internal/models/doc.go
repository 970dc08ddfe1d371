// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

// Package models defines the shared data model for the recommendation engine:
// listening events, context signatures, learned listening patterns, track
// candidates, scored tracks and generated playlists.
//
// The package has no dependencies on other internal packages so every
// component can share these types without import cycles. Serialization of
// these types happens only at the store boundary; domain logic works with
// the typed representations directly.
package models
