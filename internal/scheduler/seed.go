package scheduler

import (
	"context"
	"fmt"

	"twittermoo/internal/model"
)

// Seed records every timeline item older than the lookback period as
// seeded, without delivering anything, so a first launch does not replay
// the backlog. Items inside the period stay eligible for delivery. It
// returns the number of items recorded.
func (s *Scheduler) Seed(ctx context.Context) (int, error) {
	s.log.Debug("fetching current timeline for baseline")

	items, err := s.fetcher.Timeline(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch timeline: %w", err)
	}

	threshold := s.now().Add(-s.opts.Period)
	n := 0
	for _, item := range items {
		if !item.CreatedAt.Before(threshold) {
			continue
		}
		if err := s.store.Set(ctx, item.Fingerprint(), model.StatusSeeded); err != nil {
			return n, fmt.Errorf("set status: %w", err)
		}
		n++
	}
	return n, nil
}
