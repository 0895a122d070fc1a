package roster

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
)

// DefaultSchedule refreshes the roster every 30 seconds (gronx seconds syntax).
const DefaultSchedule = "*/30 * * * * *"

// retryDelay is how long Run waits when the next tick cannot be computed.
const retryDelay = 30 * time.Second

// Refresher refreshes a Cache on a cron schedule, independent of message polling.
type Refresher struct {
	cache    *Cache
	schedule string
}

// NewRefresher validates schedule and returns a refresher for cache.
// An empty schedule uses DefaultSchedule.
func NewRefresher(cache *Cache, schedule string) (*Refresher, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if !gronx.IsValid(schedule) {
		return nil, fmt.Errorf("invalid roster schedule: %q", schedule)
	}
	return &Refresher{cache: cache, schedule: schedule}, nil
}

// Run refreshes the cache on every scheduled tick until ctx is cancelled.
// Failed refreshes are logged and the previous snapshot is kept.
func (r *Refresher) Run(ctx context.Context) {
	slog.Info("Roster refresher started", "schedule", r.schedule)
	defer slog.Info("Roster refresher stopped")

	for {
		next, err := gronx.NextTickAfter(r.schedule, time.Now(), false)
		wait := time.Until(next)
		if err != nil {
			slog.Error("Roster schedule failed", "schedule", r.schedule, "error", err)
			wait = retryDelay
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err != nil {
			continue
		}
		if err := r.cache.Refresh(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("Roster refresh failed", "error", err)
		}
	}
}
