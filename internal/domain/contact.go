package domain

import (
	"time"

	"github.com/google/uuid"
)

// FaxStatus marks whether a contact's fax line is used for outreach.
type FaxStatus string

const (
	FaxActive   FaxStatus = "active"
	FaxInactive FaxStatus = "inactive"
)

// Contact is a customer record that may receive campaign email.
type Contact struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Company      string    `json:"company" db:"company"`
	Email        *string   `json:"email" db:"email"`
	Fax          *string   `json:"fax" db:"fax"`
	FaxStatus    FaxStatus `json:"fax_status" db:"fax_status"`
	Unsubscribed bool      `json:"unsubscribed" db:"unsubscribed"`
	HasUnread    bool      `json:"has_unread" db:"has_unread"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// HasContactMethod reports whether the contact has an email or a fax.
func (c *Contact) HasContactMethod() bool {
	return (c.Email != nil && *c.Email != "") || (c.Fax != nil && *c.Fax != "")
}
