package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxRetries is the highest retry_count at which a failed item is still
// picked up again. An item whose retry_count exceeds it stays failed.
const MaxRetries = 3

// QueueItemStatus enumerates the lifecycle of a single recipient send.
type QueueItemStatus string

const (
	QueuePending    QueueItemStatus = "pending"
	QueueProcessing QueueItemStatus = "processing"
	QueueSent       QueueItemStatus = "sent"
	QueueFailed     QueueItemStatus = "failed"
)

// QueueItem is one recipient of an approved campaign. Subject and body are
// copied from the campaign at enqueue time.
type QueueItem struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	CampaignID   uuid.UUID       `json:"campaign_id" db:"campaign_id"`
	Recipient    string          `json:"recipient" db:"recipient"`
	Subject      string          `json:"subject" db:"subject"`
	Body         string          `json:"body" db:"body"`
	Status       QueueItemStatus `json:"status" db:"status"`
	RetryCount   int             `json:"retry_count" db:"retry_count"`
	ErrorMessage *string         `json:"error_message,omitempty" db:"error_message"`
	MessageID    *string         `json:"message_id,omitempty" db:"message_id"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty" db:"processed_at"`

	// ApplicantID is joined from the owning campaign when an item is claimed.
	ApplicantID uuid.UUID `json:"applicant_id" db:"-"`
}

// Eligible reports whether the item may be claimed by a processing pass.
func (q *QueueItem) Eligible(maxRetries int) bool {
	switch q.Status {
	case QueuePending, QueueFailed:
		return q.RetryCount <= maxRetries
	}
	return false
}

// Exhausted reports whether a failed item has used up its retries.
func (q *QueueItem) Exhausted(maxRetries int) bool {
	return q.Status == QueueFailed && q.RetryCount > maxRetries
}

// NewQueueItems explodes an approved campaign into one pending item per
// recipient.
func NewQueueItems(c *Campaign, now time.Time) []QueueItem {
	items := make([]QueueItem, 0, len(c.Recipients))
	for _, r := range c.Recipients {
		items = append(items, QueueItem{
			ID:          uuid.New(),
			CampaignID:  c.ID,
			Recipient:   r,
			Subject:     c.Subject,
			Body:        c.Body,
			Status:      QueuePending,
			RetryCount:  0,
			CreatedAt:   now,
			ApplicantID: c.ApplicantID,
		})
	}
	return items
}

// QueueProgress holds per-status item counts for one campaign.
type QueueProgress struct {
	CampaignID uuid.UUID `json:"campaign_id"`
	Total      int       `json:"total"`
	Pending    int       `json:"pending"`
	Processing int       `json:"processing"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Exhausted  int       `json:"exhausted"`
}
