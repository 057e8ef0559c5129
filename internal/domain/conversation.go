package domain

import (
	"time"

	"github.com/google/uuid"
)

// Direction of a conversation message relative to us.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// ConversationRecord is one message in a contact's history.
type ConversationRecord struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ContactID uuid.UUID `json:"contact_id" db:"contact_id"`
	From      string    `json:"from" db:"from_address"`
	To        string    `json:"to" db:"to_address"`
	Subject   string    `json:"subject" db:"subject"`
	Body      string    `json:"body" db:"body"`
	MessageID string    `json:"message_id" db:"message_id"`
	Read      bool      `json:"read" db:"read"`
	Direction Direction `json:"direction" db:"direction"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
