package dispatch

import (
	"context"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// PostEnqueueTrigger runs one pass right after a campaign is enqueued so
// the first batch goes out without waiting for the background poller.
type PostEnqueueTrigger struct {
	proc      *Processor
	batchSize int
}

// NewPostEnqueueTrigger creates a trigger that runs passes of batchSize.
func NewPostEnqueueTrigger(proc *Processor, batchSize int) *PostEnqueueTrigger {
	return &PostEnqueueTrigger{proc: proc, batchSize: batchSize}
}

// CampaignEnqueued runs a pass. Errors are logged; the items stay queued
// for the next trigger.
func (t *PostEnqueueTrigger) CampaignEnqueued(ctx context.Context, c *domain.Campaign, items int) {
	if items == 0 {
		return
	}
	res, err := t.proc.RunPass(WithTrigger(ctx, "post_enqueue"), t.batchSize)
	if err != nil {
		t.proc.log.Error("post-enqueue pass failed", "campaign_id", c.ID, "error", err)
		return
	}
	t.proc.log.Debug("post-enqueue pass", "campaign_id", c.ID, "sent", res.Sent, "failed", res.Failed)
}
