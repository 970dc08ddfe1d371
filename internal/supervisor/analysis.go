// Harmonia - Contextual Music Recommendation Engine
// Copyright 2026 Harmonia Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harmonia-labs/harmonia

package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/harmonia-labs/harmonia/internal/logging"
)

// Analyzer is the slice of the engine the scheduler drives. Satisfied by
// *engine.Engine.
type Analyzer interface {
	AnalyzePatterns(ctx context.Context, userID string) error
}

// AnalysisService periodically refreshes listening patterns for the
// watched users. Runs under the learning layer of the tree.
type AnalysisService struct {
	analyzer Analyzer
	interval time.Duration

	mu    sync.Mutex
	users map[string]bool
}

// NewAnalysisService creates the scheduler. A non-positive interval
// defaults to one hour.
func NewAnalysisService(analyzer Analyzer, interval time.Duration) *AnalysisService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &AnalysisService{
		analyzer: analyzer,
		interval: interval,
		users:    make(map[string]bool),
	}
}

// Watch adds a user to the analysis schedule.
func (s *AnalysisService) Watch(userID string) {
	if userID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = true
}

// Unwatch removes a user from the schedule.
func (s *AnalysisService) Unwatch(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
}

// String names the service in supervisor logs.
func (s *AnalysisService) String() string { return "pattern-analysis" }

// Serve runs the schedule until the context is cancelled. An analysis
// failure for one user is logged and does not stop the loop or skip the
// remaining users.
func (s *AnalysisService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logging.Info().Dur("interval", s.interval).Msg("pattern analysis scheduler started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runPass(ctx)
		}
	}
}

func (s *AnalysisService) runPass(ctx context.Context) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		if err := s.analyzer.AnalyzePatterns(ctx, id); err != nil {
			logging.Warn().Err(err).Str("user_id", id).Msg("scheduled pattern analysis failed")
		}
	}
}
