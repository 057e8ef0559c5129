package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/metrics"
	"github.com/ignite/campaign-dispatch/internal/transport"
)

type outcome int

const (
	outcomeSent outcome = iota
	outcomeFailed
	outcomePermanent
	// outcomeUnrecorded means the send succeeded or failed but the store
	// update did not land or the item was no longer ours; the item is left
	// for lease expiry or for the pass that now owns it.
	outcomeUnrecorded
	// outcomeThrottled means our own limiter refused the send. The item
	// and the rest of the batch go back to pending.
	outcomeThrottled
	// outcomeInterrupted means the pass was cancelled before the item was
	// settled. It goes back to pending.
	outcomeInterrupted
)

// bookkeepingTimeout bounds store writes that run on a context detached
// from a cancelled pass.
const bookkeepingTimeout = 10 * time.Second

// detached returns a context that survives cancellation of ctx, so a sent
// item is still marked sent after a shutdown signal.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
}

var errUnsubscribed = errors.New("recipient is unsubscribed")

// processItem handles one claimed item. It never panics and never returns
// an error; every failure ends up on the item.
func (p *Processor) processItem(ctx context.Context, item *domain.QueueItem) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("panic while processing item", "item_id", item.ID, "panic", fmt.Sprint(r))
			out = p.markFailed(ctx, item, fmt.Errorf("panic: %v", r), "panic")
		}
	}()

	contact, err := p.deps.Contacts.FindByEmail(ctx, item.Recipient)
	if err != nil {
		if ctx.Err() != nil {
			return outcomeInterrupted
		}
		return p.fail(ctx, item, fmt.Errorf("resolve contact: %w", err), false)
	}
	if contact != nil && contact.Unsubscribed {
		return p.fail(ctx, item, errUnsubscribed, true)
	}

	subject, err := p.renderer.render(item.Subject, item, contact)
	if err != nil {
		return p.fail(ctx, item, fmt.Errorf("render subject: %w", err), true)
	}
	body, err := p.renderer.render(item.Body, item, contact)
	if err != nil {
		return p.fail(ctx, item, fmt.Errorf("render body: %w", err), true)
	}

	msg := &domain.EmailMessage{
		QueueItemID: item.ID.String(),
		CampaignID:  item.CampaignID.String(),
		To:          item.Recipient,
		FromName:    p.opts.FromName,
		FromEmail:   p.opts.FromEmail,
		Subject:     subject,
		HTMLBody:    body,
	}
	res, err := p.deps.Transport.Send(ctx, msg)
	if err != nil {
		switch {
		case transport.IsThrottled(err):
			p.log.Info("send throttled", "item_id", item.ID, "error", err)
			return outcomeThrottled
		case ctx.Err() != nil:
			return outcomeInterrupted
		}
		return p.fail(ctx, item, err, transport.IsPermanent(err))
	}

	sctx, cancel := detached(ctx)
	defer cancel()

	ok, err := p.deps.Store.MarkSent(sctx, item.ID, res.MessageID, p.now().UTC())
	if err != nil {
		p.log.Error("mark sent failed", "item_id", item.ID, "error", err)
		return outcomeUnrecorded
	}
	if !ok {
		// The lease expired and another pass reclaimed the item. That pass
		// owns its bookkeeping.
		p.log.Warn("item no longer processing, skipping bookkeeping",
			"item_id", item.ID, "recipient", item.Recipient, "message_id", res.MessageID)
		return outcomeUnrecorded
	}
	metrics.QueueSent.Inc()

	if contact != nil {
		p.reconcile(sctx, contact, msg, res.MessageID)
	}
	return outcomeSent
}

func (p *Processor) fail(ctx context.Context, item *domain.QueueItem, cause error, permanent bool) outcome {
	if permanent {
		return p.markFailed(ctx, item, cause, "permanent")
	}
	return p.markFailed(ctx, item, cause, "transient")
}

// markFailed records the failure on the item. kind is transient,
// permanent or panic; only permanent exhausts the item's retries.
func (p *Processor) markFailed(ctx context.Context, item *domain.QueueItem, cause error, kind string) outcome {
	permanent := kind == "permanent"
	metrics.QueueFailed.WithLabelValues(kind).Inc()

	sctx, cancel := detached(ctx)
	defer cancel()

	ok, err := p.deps.Store.MarkFailed(sctx, item.ID, cause.Error(), permanent, p.now().UTC())
	if err != nil {
		p.log.Error("mark failed failed", "item_id", item.ID, "error", err)
		return outcomeUnrecorded
	}
	if !ok {
		p.log.Warn("item no longer processing, failure not recorded", "item_id", item.ID, "error", cause)
		return outcomeUnrecorded
	}
	p.log.Warn("send failed",
		"item_id", item.ID,
		"recipient", item.Recipient,
		"permanent", permanent,
		"retry_count", item.RetryCount+1,
		"error", cause)
	if permanent {
		return outcomePermanent
	}
	return outcomeFailed
}

// reconcile writes the outbound conversation record and refreshes the
// unread flag. Both are best effort.
func (p *Processor) reconcile(ctx context.Context, contact *domain.Contact, msg *domain.EmailMessage, messageID string) {
	if p.deps.Conversations != nil {
		rec := &domain.ConversationRecord{
			ID:        uuid.New(),
			ContactID: contact.ID,
			From:      msg.FromEmail,
			To:        msg.To,
			Subject:   msg.Subject,
			Body:      msg.HTMLBody,
			MessageID: messageID,
			Read:      true,
			Direction: domain.DirectionOutbound,
			CreatedAt: p.now().UTC(),
		}
		if err := p.deps.Conversations.InsertConversation(ctx, rec); err != nil {
			metrics.BestEffortErrors.WithLabelValues("conversation").Inc()
			p.log.Warn("conversation write failed", "contact_id", contact.ID, "error", err)
		}
	}
	if p.deps.Unread != nil {
		if err := p.deps.Unread.RefreshUnread(ctx, contact.ID); err != nil {
			metrics.BestEffortErrors.WithLabelValues("unread").Inc()
			p.log.Warn("unread refresh failed", "contact_id", contact.ID, "error", err)
		}
	}
}

// release hands unsettled items back to pending without spending a retry.
// It runs on a detached context so a cancelled pass still frees its claims.
func (p *Processor) release(ctx context.Context, items []domain.QueueItem, reason string) int {
	if len(items) == 0 {
		return 0
	}
	rctx, cancel := detached(ctx)
	defer cancel()

	n := 0
	for i := range items {
		ok, err := p.deps.Store.Release(rctx, items[i].ID)
		if err != nil {
			p.log.Error("release item failed", "item_id", items[i].ID, "reason", reason, "error", err)
			continue
		}
		if ok {
			n++
		}
	}
	metrics.QueueReleased.WithLabelValues(reason).Add(float64(n))
	p.log.Info("released claimed items", "count", n, "reason", reason)
	return n
}
