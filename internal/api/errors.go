package api

import (
	"errors"
	"net/http"

	"github.com/ignite/campaign-dispatch/internal/pkg/httputil"
	"github.com/ignite/campaign-dispatch/internal/service/approval"
	"github.com/ignite/campaign-dispatch/internal/service/contact"
	"github.com/ignite/campaign-dispatch/internal/service/dedup"
	"github.com/ignite/campaign-dispatch/internal/service/queue"
	"github.com/ignite/campaign-dispatch/internal/service/stats"
)

// writeServiceError maps service sentinels to HTTP statuses. Anything
// unrecognised is a 500 whose message is logged, never returned.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *dedup.ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.ErrorCode(w, http.StatusUnprocessableEntity, "validation_failed", verr.Error(), map[string]any{
			"row":   verr.Row,
			"field": verr.Field,
			"value": verr.Value,
		})
	case errors.Is(err, approval.ErrNotFound),
		errors.Is(err, contact.ErrNotFound),
		errors.Is(err, stats.ErrUserNotFound),
		errors.Is(err, approval.ErrNoPendingCampaigns):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, approval.ErrForbidden):
		httputil.Forbidden(w, err.Error())
	case errors.Is(err, approval.ErrInvalidTransition),
		errors.Is(err, queue.ErrNotApproved):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, approval.ErrMissingSubject),
		errors.Is(err, approval.ErrMissingBody),
		errors.Is(err, approval.ErrNoRecipients):
		httputil.ErrorCode(w, http.StatusUnprocessableEntity, "invalid_campaign", err.Error(), nil)
	default:
		httputil.InternalError(w, err)
	}
}
