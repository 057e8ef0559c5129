package api

import (
	"net/http"

	"github.com/ignite/campaign-dispatch/internal/pkg/httputil"
)

// MyStats returns the caller's send counters.
//
//	GET /api/me/stats
func (h *Handlers) MyStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	c, err := h.Stats.Counters(r.Context(), actor.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}
