// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

package models

import "errors"

// Sentinel errors shared across the engine. Callers check these with
// errors.Is; components wrap them with operation context.
var (
	// ErrNotAuthenticated is returned when an operation requires a user id
	// and none was provided. Fatal for the call.
	ErrNotAuthenticated = errors.New("not authenticated: no user id")

	// ErrNoData is returned when the candidate pool is empty even after
	// relaxing all filters. Generation never fails on a merely-filtered-out
	// pool; it relaxes first and returns this only when nothing remains.
	ErrNoData = errors.New("no listening data available")

	// ErrNotFound is returned by stores when a requested record does not
	// exist.
	ErrNotFound = errors.New("record not found")
)
