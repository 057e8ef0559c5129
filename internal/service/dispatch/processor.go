package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/metrics"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/ignite/campaign-dispatch/internal/transport"
)

// Batch size bounds for a single pass.
const (
	MinBatchSize = 10
	MaxBatchSize = 50
)

// Defaults for Options.
const (
	DefaultStaleAfter      = 5 * time.Minute
	DefaultDrainIterations = 10
	DefaultDrainPause      = 2 * time.Second
)

// ClampBatch bounds n to [MinBatchSize, MaxBatchSize].
func ClampBatch(n int) int {
	if n < MinBatchSize {
		return MinBatchSize
	}
	if n > MaxBatchSize {
		return MaxBatchSize
	}
	return n
}

// Options tunes a Processor. Zero values take the defaults above.
type Options struct {
	FromName        string
	FromEmail       string
	StaleAfter      time.Duration
	DrainIterations int
	DrainPause      time.Duration
}

// Deps are the collaborators of a Processor. Conversations, Unread and
// Stats may be nil.
type Deps struct {
	Store         Store
	Transport     transport.Transport
	Contacts      ContactResolver
	Conversations ConversationWriter
	Unread        UnreadRefresher
	Stats         StatsRecorder
}

// PassResult summarises one pass.
type PassResult struct {
	Reclaimed int `json:"reclaimed"`
	Claimed   int `json:"claimed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Permanent int `json:"permanent"`
	// Released counts claimed items handed back to pending unsent.
	Released int `json:"released"`
	// Throttled is set when the rate limiter cut the pass short.
	Throttled bool `json:"throttled"`
}

// DrainResult summarises a drain.
type DrainResult struct {
	Passes    int  `json:"passes"`
	Reclaimed int  `json:"reclaimed"`
	Claimed   int  `json:"claimed"`
	Sent      int  `json:"sent"`
	Failed    int  `json:"failed"`
	Permanent int  `json:"permanent"`
	Released  int  `json:"released"`
	Throttled bool `json:"throttled"`
}

func (d *DrainResult) add(p *PassResult) {
	d.Passes++
	d.Reclaimed += p.Reclaimed
	d.Claimed += p.Claimed
	d.Sent += p.Sent
	d.Failed += p.Failed
	d.Permanent += p.Permanent
	d.Released += p.Released
	d.Throttled = d.Throttled || p.Throttled
}

// Processor runs processing passes over the queue.
type Processor struct {
	deps     Deps
	opts     Options
	renderer *renderer
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	log      *logger.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(deps Deps, opts Options) *Processor {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.DrainIterations <= 0 {
		opts.DrainIterations = DefaultDrainIterations
	}
	if opts.DrainPause <= 0 {
		opts.DrainPause = DefaultDrainPause
	}
	return &Processor{
		deps:     deps,
		opts:     opts,
		renderer: newRenderer(),
		now:      time.Now,
		sleep:    sleepCtx,
		log:      logger.Named("dispatch.Processor"),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type triggerKey struct{}

// WithTrigger labels passes run with ctx for metrics and logs.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey{}, trigger)
}

func triggerFrom(ctx context.Context) string {
	if t, ok := ctx.Value(triggerKey{}).(string); ok && t != "" {
		return t
	}
	return "unknown"
}

// RunPass reclaims stale items, claims one batch and processes it.
func (p *Processor) RunPass(ctx context.Context, batchSize int) (*PassResult, error) {
	start := time.Now()
	trigger := triggerFrom(ctx)
	defer func() {
		metrics.PassDuration.WithLabelValues(trigger).Observe(time.Since(start).Seconds())
	}()

	now := p.now().UTC()
	res := &PassResult{}

	reclaimed, err := p.deps.Store.ReclaimStale(ctx, now.Add(-p.opts.StaleAfter))
	if err != nil {
		return nil, fmt.Errorf("reclaim stale items: %w", err)
	}
	res.Reclaimed = reclaimed
	if reclaimed > 0 {
		metrics.QueueReclaimed.Add(float64(reclaimed))
		p.log.Warn("reclaimed stale items", "count", reclaimed, "trigger", trigger)
	}

	items, err := p.deps.Store.Claim(ctx, ClampBatch(batchSize), domain.MaxRetries, now)
	if err != nil {
		return nil, fmt.Errorf("claim items: %w", err)
	}
	res.Claimed = len(items)
	metrics.QueueClaimed.Add(float64(len(items)))
	if len(items) == 0 {
		return res, nil
	}

	successes := make(map[uuid.UUID]int64)
loop:
	for i := range items {
		if ctx.Err() != nil {
			res.Released += p.release(ctx, items[i:], "cancelled")
			break
		}
		item := &items[i]
		switch p.processItem(ctx, item) {
		case outcomeSent:
			res.Sent++
			successes[item.ApplicantID]++
		case outcomePermanent:
			res.Failed++
			res.Permanent++
		case outcomeFailed:
			res.Failed++
		case outcomeThrottled:
			// The budget is shared, so the rest of the batch would be
			// refused too.
			res.Throttled = true
			res.Released += p.release(ctx, items[i:], "throttled")
			break loop
		case outcomeInterrupted:
			res.Released += p.release(ctx, items[i:], "cancelled")
			break loop
		}
	}

	p.recordStats(ctx, successes)
	p.log.Info("pass complete",
		"trigger", trigger,
		"claimed", res.Claimed,
		"sent", res.Sent,
		"failed", res.Failed,
		"released", res.Released,
		"throttled", res.Throttled,
		"reclaimed", res.Reclaimed)
	return res, nil
}

// Drain runs passes until one claims nothing, the rate limiter refuses a
// send, or the iteration limit is reached, pausing between passes.
func (p *Processor) Drain(ctx context.Context, batchSize int) (*DrainResult, error) {
	res := &DrainResult{}
	for i := 0; i < p.opts.DrainIterations; i++ {
		if i > 0 {
			if err := p.sleep(ctx, p.opts.DrainPause); err != nil {
				return res, err
			}
		}
		pass, err := p.RunPass(ctx, batchSize)
		if err != nil {
			return res, err
		}
		res.add(pass)
		if pass.Claimed == 0 || pass.Throttled {
			break
		}
	}
	return res, nil
}

// recordStats issues one counter update per applicant with at least one
// success. Errors are logged and dropped. Sends that went out before a
// cancellation are still counted.
func (p *Processor) recordStats(ctx context.Context, successes map[uuid.UUID]int64) {
	if p.deps.Stats == nil || len(successes) == 0 {
		return
	}
	ctx, cancel := detached(ctx)
	defer cancel()

	for applicant, n := range successes {
		if n == 0 {
			continue
		}
		if err := p.deps.Stats.RecordStats(ctx, applicant, 1, n); err != nil {
			metrics.BestEffortErrors.WithLabelValues("stats").Inc()
			p.log.Warn("record stats failed", "applicant_id", applicant, "error", err)
		}
	}
}
