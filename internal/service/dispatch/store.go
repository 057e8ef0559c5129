package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Store is the queue item store used by a pass. Implementations must be
// safe for concurrent use by overlapping passes.
type Store interface {
	// ReclaimStale returns processing items whose processed_at is before
	// the cutoff to pending and clears processed_at.
	ReclaimStale(ctx context.Context, before time.Time) (int, error)

	// Claim atomically moves up to limit eligible items, oldest first, to
	// processing and returns them with ApplicantID filled in. Eligible is
	// pending, or failed with retry_count <= maxRetries.
	Claim(ctx context.Context, limit, maxRetries int, now time.Time) ([]domain.QueueItem, error)

	// MarkSent records a successful send. Only processing items change;
	// the bool reports whether this call moved the item.
	MarkSent(ctx context.Context, id uuid.UUID, messageID string, at time.Time) (bool, error)

	// MarkFailed records a failed attempt and increments retry_count. A
	// permanent failure raises retry_count past MaxRetries. Only
	// processing items change; the bool reports whether this call moved
	// the item.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, permanent bool, at time.Time) (bool, error)

	// Release returns a processing item to pending and clears processed_at
	// without touching retry_count.
	Release(ctx context.Context, id uuid.UUID) (bool, error)
}

// ContactResolver looks up the contact behind a recipient address. It
// returns nil and no error when there is none.
type ContactResolver interface {
	FindByEmail(ctx context.Context, email string) (*domain.Contact, error)
}

// ConversationWriter appends to a contact's conversation history.
type ConversationWriter interface {
	InsertConversation(ctx context.Context, rec *domain.ConversationRecord) error
}

// UnreadRefresher recomputes a contact's has-unread flag.
type UnreadRefresher interface {
	RefreshUnread(ctx context.Context, contactID uuid.UUID) error
}

// StatsRecorder bumps per-user send counters.
type StatsRecorder interface {
	RecordStats(ctx context.Context, userID uuid.UUID, sendDelta, recipientDelta int64) error
}
