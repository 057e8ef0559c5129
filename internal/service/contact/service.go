// Package contact exposes the customer contact store to the API: listing,
// lookup and the unsubscribe flag. Imports go through package dedup.
package contact

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

var ErrNotFound = errors.New("contact not found")

// ListFilter controls pagination and filtering for contact lists.
type ListFilter struct {
	Search       string
	Unsubscribed *bool
	Limit        int
	Offset       int
}

// Repository defines the data access contract for contacts.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Contact, error)
	List(ctx context.Context, f ListFilter) ([]domain.Contact, int, error)
	// SetUnsubscribed returns ErrNotFound if no contact has the id.
	SetUnsubscribed(ctx context.Context, id uuid.UUID, unsubscribed bool) error
}

// Service wraps the contact repository.
type Service struct {
	repo Repository
	log  *logger.Logger
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, log: logger.Named("contact.Service")}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Contact, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Contact, int, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, f)
}

// SetUnsubscribed flips the flag and returns the updated contact. Pending
// queue items for the contact fail permanently when they are processed.
func (s *Service) SetUnsubscribed(ctx context.Context, id uuid.UUID, unsubscribed bool) (*domain.Contact, error) {
	if err := s.repo.SetUnsubscribed(ctx, id, unsubscribed); err != nil {
		return nil, err
	}
	s.log.Info("contact subscription changed", "contact_id", id, "unsubscribed", unsubscribed)
	return s.repo.Get(ctx, id)
}
