package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CampaignStatus enumerates the approval lifecycle of a campaign.
type CampaignStatus string

const (
	CampaignPending  CampaignStatus = "pending"
	CampaignApproved CampaignStatus = "approved"
	CampaignRejected CampaignStatus = "rejected"
)

// Valid reports whether s is a known campaign status.
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignPending, CampaignApproved, CampaignRejected:
		return true
	}
	return false
}

// CanTransition reports whether a campaign may move from s to next.
// Only pending campaigns move, and only to approved or rejected.
func (s CampaignStatus) CanTransition(next CampaignStatus) bool {
	return s == CampaignPending && (next == CampaignApproved || next == CampaignRejected)
}

// Campaign is an email submitted for approval together with its full
// fan-out recipient list.
type Campaign struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	ApplicantID uuid.UUID      `json:"applicant_id" db:"applicant_id"`
	Subject     string         `json:"subject" db:"subject"`
	Body        string         `json:"body" db:"body"`
	Recipients  []string       `json:"recipients" db:"recipients"`
	Status      CampaignStatus `json:"status" db:"status"`
	ApproverID  *uuid.UUID     `json:"approver_id,omitempty" db:"approver_id"`
	ApprovedAt  *time.Time     `json:"approved_at,omitempty" db:"approved_at"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true once the campaign has been approved or rejected.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignApproved || c.Status == CampaignRejected
}

// NormalizeRecipients trims and lower-cases addresses, drops blanks and
// keeps the first occurrence of each address in its original order.
func NormalizeRecipients(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, r := range in {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
