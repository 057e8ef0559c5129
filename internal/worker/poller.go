package worker

import (
	"context"
	"time"

	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/ignite/campaign-dispatch/internal/service/dispatch"
)

// DefaultPollInterval is how often the background poller drains the queue.
const DefaultPollInterval = time.Minute

// Drainer runs bounded drains over the shared queue.
type Drainer interface {
	Drain(ctx context.Context, batchSize int) (*dispatch.DrainResult, error)
}

// DispatchPoller drains the queue on a fixed interval with the background
// batch size. It is the safety net for enqueue triggers and events that
// never arrived.
type DispatchPoller struct {
	drainer   Drainer
	batchSize int
	interval  time.Duration
	log       *logger.Logger
}

// NewDispatchPoller creates a poller. batchSize is clamped to the pass bounds.
func NewDispatchPoller(drainer Drainer, batchSize int, interval time.Duration) *DispatchPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &DispatchPoller{
		drainer:   drainer,
		batchSize: dispatch.ClampBatch(batchSize),
		interval:  interval,
		log:       logger.Named("worker.DispatchPoller"),
	}
}

// Start runs one drain immediately, then one per tick until ctx is cancelled.
func (p *DispatchPoller) Start(ctx context.Context) {
	p.log.Info("starting", "interval", p.interval.String(), "batch_size", p.batchSize)

	p.RunOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("stopping")
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single drain and returns its result. Errors are logged.
func (p *DispatchPoller) RunOnce(ctx context.Context) *dispatch.DrainResult {
	res, err := p.drainer.Drain(dispatch.WithTrigger(ctx, "poller"), p.batchSize)
	if err != nil && ctx.Err() == nil {
		p.log.Error("drain failed", "error", err)
	}
	if res != nil && res.Claimed > 0 {
		p.log.Info("drain complete",
			"passes", res.Passes, "claimed", res.Claimed, "sent", res.Sent,
			"failed", res.Failed, "permanent", res.Permanent)
	}
	return res
}
