package sync

import (
	"context"
	"log/slog"
	"time"
)

// TriggerFunc starts (or joins) an update cycle
type TriggerFunc func(ctx context.Context) error

// Scheduler triggers an update on a fixed interval
type Scheduler struct {
	trigger  TriggerFunc
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler. A zero interval disables it.
func NewScheduler(trigger TriggerFunc, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{trigger: trigger, interval: interval, logger: logger}
}

// Run blocks until ctx is done, triggering an update every interval.
// Failed updates are logged and retried on the next tick.
func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.trigger(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("scheduled update failed", "error", err)
			}
		}
	}
}
