package api

import (
	"net/http"

	"github.com/ignite/campaign-dispatch/internal/pkg/httputil"
)

func (h *Handlers) autoApprovalConfigured(w http.ResponseWriter) bool {
	if h.AutoApproval == nil {
		httputil.ErrorCode(w, http.StatusServiceUnavailable, "not_configured", "auto approval is not configured", nil)
		return false
	}
	return true
}

// AutoApprovalStatus reports the scheduler state.
//
//	GET /api/auto-approval
func (h *Handlers) AutoApprovalStatus(w http.ResponseWriter, r *http.Request) {
	if !h.autoApprovalConfigured(w) {
		return
	}
	httputil.OK(w, h.AutoApproval.Status())
}

// StartAutoApproval schedules the approver.
//
//	POST /api/auto-approval/start
func (h *Handlers) StartAutoApproval(w http.ResponseWriter, r *http.Request) {
	if !h.autoApprovalConfigured(w) {
		return
	}
	if err := h.AutoApproval.Start(); err != nil {
		httputil.Conflict(w, err.Error())
		return
	}
	httputil.OK(w, h.AutoApproval.Status())
}

// StopAutoApproval unschedules the approver. Stopping a stopped scheduler
// is a no-op.
//
//	POST /api/auto-approval/stop
func (h *Handlers) StopAutoApproval(w http.ResponseWriter, r *http.Request) {
	if !h.autoApprovalConfigured(w) {
		return
	}
	h.AutoApproval.Stop()
	httputil.OK(w, h.AutoApproval.Status())
}
