package domain

import "github.com/google/uuid"

// Role is a user's privilege level in the dispatch pipeline.
type Role string

const (
	RoleApplicant Role = "applicant"
	RoleApprover  Role = "approver"
	RoleAdmin     Role = "admin"
)

// Actor is the authenticated identity performing an operation.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

// CanApprove reports whether the actor holds approver privilege.
func (a Actor) CanApprove() bool {
	return a.Role == RoleApprover || a.Role == RoleAdmin
}

// UserCounters are the per-user aggregate send statistics.
type UserCounters struct {
	UserID              uuid.UUID `json:"user_id" db:"id"`
	EmailSendCount      int64     `json:"email_send_count" db:"email_send_count"`
	EmailRecipientCount int64     `json:"email_recipient_count" db:"email_recipient_count"`
}
