package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/five82/checklist/internal/checklist"
	"github.com/five82/checklist/internal/state"
)

const (
	defaultPollInterval = 5 * time.Second
	maxBackoff          = 30 * time.Second
	recentExecutions    = 20
)

// runPoller refreshes the store until ctx is cancelled. After failures the
// wait grows exponentially up to maxBackoff.
func runPoller(ctx context.Context, store *state.Store, fetcher checklist.Fetcher, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		failures := 0
		if err := refresh(ctx, store, fetcher); err != nil {
			if ctx.Err() != nil {
				return
			}
			failures = store.Snapshot().ConsecutiveFailures
			logger.Warn("backend poll failed",
				zap.Error(err),
				zap.Int("consecutive_failures", failures),
			)
		}
		timer.Reset(calculateBackoff(failures, interval))
	}
}

// calculateBackoff returns base doubled once per failure, capped at
// maxBackoff. A base already above the cap is returned unchanged.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 || base >= maxBackoff {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

func refresh(ctx context.Context, store *state.Store, fetcher checklist.Fetcher) error {
	stats, err := fetcher.FetchDashboard(ctx)
	if err != nil {
		err = fmt.Errorf("fetch dashboard: %w", err)
		store.Update(nil, nil, err)
		return err
	}
	history, err := fetcher.ListExecutions(ctx, checklist.HistoryQuery{Page: 1, PageSize: recentExecutions})
	if err != nil {
		err = fmt.Errorf("fetch executions: %w", err)
		store.Update(nil, nil, err)
		return err
	}
	store.Update(&stats, history.Items, nil)
	return nil
}
