package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// ConversationRepo stores per-contact conversation history.
type ConversationRepo struct{ db *sql.DB }

func NewConversationRepo(db *sql.DB) *ConversationRepo { return &ConversationRepo{db: db} }

func (r *ConversationRepo) InsertConversation(ctx context.Context, rec *domain.ConversationRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations
			(id, contact_id, from_address, to_address, subject, body, message_id, read, direction, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, rec.ID, rec.ContactID, rec.From, rec.To, rec.Subject, rec.Body, rec.MessageID,
		rec.Read, rec.Direction, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}
