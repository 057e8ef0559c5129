package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/service/stats"
)

// UserRepo implements stats.Repository.
type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// Increment adds both deltas in one statement so concurrent passes never
// lose an update.
func (r *UserRepo) Increment(ctx context.Context, userID uuid.UUID, sendDelta, recipientDelta int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET email_send_count = email_send_count + $1,
		    email_recipient_count = email_recipient_count + $2
		WHERE id = $3
	`, sendDelta, recipientDelta, userID)
	if err != nil {
		return fmt.Errorf("increment user counters: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return stats.ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) Counters(ctx context.Context, userID uuid.UUID) (*domain.UserCounters, error) {
	c := &domain.UserCounters{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email_send_count, email_recipient_count FROM users WHERE id = $1
	`, userID).Scan(&c.UserID, &c.EmailSendCount, &c.EmailRecipientCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, stats.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user counters: %w", err)
	}
	return c, nil
}

// EnsureUser creates the user if missing and updates email and role
// otherwise.
func (r *UserRepo) EnsureUser(ctx context.Context, id uuid.UUID, email string, role domain.Role) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, role) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, role = EXCLUDED.role
	`, id, email, role)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}
