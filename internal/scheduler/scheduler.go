package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/naffle-labs/allowlist-engine/internal/lock"
	"github.com/naffle-labs/allowlist-engine/internal/services"
)

// Lock keys for the two background processes. Each loop holds its own lock
// so multiple service instances never double-process a tick.
const (
	endedCampaignsLockKey = "ended-allowlist-check"
	vrfPollLockKey        = "vrf-fulfillment-check"
)

// Scheduler runs the two periodic background processes: the ended-campaign
// check and the VRF fulfillment poll. Each tick runs under a distributed
// lock whose lease is shorter than the tick interval, so overlapping ticks
// across instances serialize instead of duplicating work.
type Scheduler struct {
	draws        services.DrawService
	locks        *lock.Manager
	tickInterval time.Duration
	lockTTL      time.Duration
}

// New creates a Scheduler
func New(draws services.DrawService, locks *lock.Manager, tickInterval, lockTTL time.Duration) *Scheduler {
	return &Scheduler{
		draws:        draws,
		locks:        locks,
		tickInterval: tickInterval,
		lockTTL:      lockTTL,
	}
}

// Run starts both loops and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.loop(ctx, endedCampaignsLockKey, s.draws.ProcessEndedCampaigns)
	}()
	go func() {
		defer wg.Done()
		s.loop(ctx, vrfPollLockKey, s.draws.PollDrawingCampaigns)
	}()
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, lockKey string, tick func(context.Context) error) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	slog.Info("Scheduler loop started", "lockKey", lockKey, "interval", s.tickInterval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler loop stopped", "lockKey", lockKey)
			return
		case <-ticker.C:
			s.runTick(ctx, lockKey, tick)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context, lockKey string, tick func(context.Context) error) {
	lease, err := s.locks.Acquire(ctx, lockKey, s.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrLockHeld) {
			// Another instance owns this tick.
			return
		}
		slog.Error("Failed to acquire scheduler lock", "error", err, "lockKey", lockKey)
		return
	}
	defer func() {
		if err := lease.Release(ctx); err != nil {
			slog.Warn("Failed to release scheduler lock", "error", err, "lockKey", lockKey)
		}
	}()

	if err := tick(ctx); err != nil {
		slog.Error("Scheduler tick failed", "error", err, "lockKey", lockKey)
	}
}
