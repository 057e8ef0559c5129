// Package queue fans approved campaigns out into per-recipient queue items
// and reports their progress.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/metrics"
)

// ErrNotApproved is returned when enqueueing a campaign that is not approved.
var ErrNotApproved = errors.New("campaign is not approved")

// Store persists queue items.
type Store interface {
	// InsertItems inserts items, skipping any (campaign_id, recipient)
	// pair that already exists. Returns the number actually inserted.
	InsertItems(ctx context.Context, items []domain.QueueItem) (int, error)

	// Progress counts a campaign's items by status.
	Progress(ctx context.Context, campaignID uuid.UUID, maxRetries int) (*domain.QueueProgress, error)
}

// Enqueuer creates queue items for approved campaigns. Calls are
// idempotent: enqueueing the same campaign twice creates nothing new.
type Enqueuer struct {
	store Store
	now   func() time.Time
}

// NewEnqueuer creates an Enqueuer.
func NewEnqueuer(store Store) *Enqueuer {
	return &Enqueuer{store: store, now: time.Now}
}

// Enqueue inserts one pending item per recipient and returns how many
// were new.
func (e *Enqueuer) Enqueue(ctx context.Context, c *domain.Campaign) (int, error) {
	if c.Status != domain.CampaignApproved {
		return 0, ErrNotApproved
	}
	items := domain.NewQueueItems(c, e.now().UTC())
	if len(items) == 0 {
		return 0, nil
	}
	n, err := e.store.InsertItems(ctx, items)
	if err != nil {
		return 0, fmt.Errorf("enqueue campaign %s: %w", c.ID, err)
	}
	metrics.ItemsEnqueued.Add(float64(n))
	return n, nil
}

// Progress returns per-status counts for a campaign.
func (e *Enqueuer) Progress(ctx context.Context, campaignID uuid.UUID) (*domain.QueueProgress, error) {
	return e.store.Progress(ctx, campaignID, domain.MaxRetries)
}
