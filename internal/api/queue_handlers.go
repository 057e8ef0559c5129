package api

import (
	"net/http"

	"github.com/ignite/campaign-dispatch/internal/pkg/httputil"
	"github.com/ignite/campaign-dispatch/internal/service/dispatch"
)

// ProcessQueue runs one interactive pass with the small batch so the caller
// gets an answer quickly.
//
//	POST /api/queue/process
func (h *Handlers) ProcessQueue(w http.ResponseWriter, r *http.Request) {
	ctx := dispatch.WithTrigger(r.Context(), "api")
	res, err := h.Processor.RunPass(ctx, dispatch.ClampBatch(h.InteractiveBatch))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, res)
}
