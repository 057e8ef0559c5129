package approval

import "errors"

// Sentinel errors for the approval service layer.
var (
	ErrNotFound           = errors.New("campaign not found")
	ErrInvalidTransition  = errors.New("campaign is not pending")
	ErrForbidden          = errors.New("actor lacks permission for this campaign")
	ErrMissingSubject     = errors.New("subject is required")
	ErrMissingBody        = errors.New("body is required")
	ErrNoRecipients       = errors.New("at least one recipient is required")
	ErrNoPendingCampaigns = errors.New("no pending campaigns")
)
