package approval

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Create inserts a new pending campaign.
	Create(ctx context.Context, c *domain.Campaign) error

	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)

	// List returns campaigns matching the filter, newest first, and the
	// total number of matches.
	List(ctx context.Context, filter ListFilter) ([]domain.Campaign, int, error)

	// UpdateContent changes subject and body of a pending campaign.
	// Returns ErrInvalidTransition if the campaign has left pending.
	UpdateContent(ctx context.Context, id uuid.UUID, subject, body string, at time.Time) error

	// Approve moves a pending campaign to approved and inserts its queue
	// items in the same transaction. Returns the number of items inserted,
	// or ErrInvalidTransition if the campaign was not pending.
	Approve(ctx context.Context, id, approver uuid.UUID, at time.Time, items []domain.QueueItem) (int, error)

	// Reject moves a pending campaign to rejected.
	Reject(ctx context.Context, id, approver uuid.UUID, at time.Time) error

	// OldestPending returns the earliest submitted pending campaign, or
	// ErrNotFound.
	OldestPending(ctx context.Context) (*domain.Campaign, error)
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Status      domain.CampaignStatus
	ApplicantID *uuid.UUID
	Limit       int
	Offset      int
}
