package worker

import (
	"context"
	"time"

	"github.com/ignite/campaign-dispatch/internal/metrics"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// =============================================================================
// RECLAIM WORKER - Returns Stuck Processing Items To Pending
// =============================================================================
// If a pass dies between claim and mark, its items stay in 'processing'
// forever. Every pass already reclaims before claiming; this worker keeps
// doing it when nothing else is running.

const (
	// DefaultReclaimInterval is how often we scan for stuck items.
	DefaultReclaimInterval = time.Minute

	// DefaultStaleAge is how long an item can sit in processing before we
	// consider the pass that claimed it dead.
	DefaultStaleAge = 5 * time.Minute
)

// StaleReclaimer is the store operation the reclaim worker needs.
type StaleReclaimer interface {
	ReclaimStale(ctx context.Context, before time.Time) (int, error)
}

// ReclaimWorker periodically resets stale processing items.
type ReclaimWorker struct {
	store    StaleReclaimer
	interval time.Duration
	staleAge time.Duration
	now      func() time.Time
	log      *logger.Logger
}

// NewReclaimWorker creates a reclaim worker. Non-positive durations fall back
// to the defaults.
func NewReclaimWorker(store StaleReclaimer, interval, staleAge time.Duration) *ReclaimWorker {
	if interval <= 0 {
		interval = DefaultReclaimInterval
	}
	if staleAge <= 0 {
		staleAge = DefaultStaleAge
	}
	return &ReclaimWorker{
		store:    store,
		interval: interval,
		staleAge: staleAge,
		now:      time.Now,
		log:      logger.Named("worker.ReclaimWorker"),
	}
}

// Start begins the reclaim loop. It blocks until ctx is cancelled.
func (w *ReclaimWorker) Start(ctx context.Context) {
	w.log.Info("starting", "interval", w.interval.String(), "stale_age", w.staleAge.String())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("stopping")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and returns the number of items reset.
func (w *ReclaimWorker) RunOnce(ctx context.Context) int {
	queryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	n, err := w.store.ReclaimStale(queryCtx, w.now().Add(-w.staleAge))
	if err != nil {
		w.log.Error("reclaim failed", "error", err)
		return 0
	}
	if n > 0 {
		metrics.QueueReclaimed.Add(float64(n))
		w.log.Info("reclaimed stuck items", "count", n)
	}
	return n
}
