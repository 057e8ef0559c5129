// Package stats maintains per-user aggregate send counters.
package stats

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/campaign-dispatch/internal/domain"
)

var (
	ErrNegativeDelta = errors.New("stats deltas must not be negative")
	ErrUserNotFound  = errors.New("user not found")
)

// Repository applies counter increments atomically.
type Repository interface {
	// Increment adds the deltas in a single statement. Returns
	// ErrUserNotFound if no row matched.
	Increment(ctx context.Context, userID uuid.UUID, sendDelta, recipientDelta int64) error
	Counters(ctx context.Context, userID uuid.UUID) (*domain.UserCounters, error)
}

// Service records send statistics.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RecordStats adds sendDelta to the user's send count and recipientDelta
// to the recipient count. Negative deltas are rejected; zero deltas are a
// no-op.
func (s *Service) RecordStats(ctx context.Context, userID uuid.UUID, sendDelta, recipientDelta int64) error {
	if sendDelta < 0 || recipientDelta < 0 {
		return ErrNegativeDelta
	}
	if sendDelta == 0 && recipientDelta == 0 {
		return nil
	}
	if err := s.repo.Increment(ctx, userID, sendDelta, recipientDelta); err != nil {
		return fmt.Errorf("record stats for %s: %w", userID, err)
	}
	return nil
}

// Counters returns the user's current counters.
func (s *Service) Counters(ctx context.Context, userID uuid.UUID) (*domain.UserCounters, error) {
	return s.repo.Counters(ctx, userID)
}
