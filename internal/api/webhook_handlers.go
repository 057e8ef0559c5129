package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/ignite/campaign-dispatch/internal/metrics"
	"github.com/ignite/campaign-dispatch/internal/pkg/httputil"
	"github.com/ignite/campaign-dispatch/internal/service/dispatch"
)

// requireWebhookKey accepts the shared key from X-Webhook-Key or ?key=.
// With no key configured every webhook answers 503.
func (h *Handlers) requireWebhookKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.WebhookKey == "" {
			metrics.WebhookRequests.WithLabelValues(strconv.Itoa(http.StatusServiceUnavailable)).Inc()
			httputil.ErrorCode(w, http.StatusServiceUnavailable, "not_configured", "webhooks are disabled", nil)
			return
		}
		key := r.Header.Get("X-Webhook-Key")
		if key == "" {
			key = r.URL.Query().Get("key")
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(h.WebhookKey)) != 1 {
			metrics.WebhookRequests.WithLabelValues(strconv.Itoa(http.StatusUnauthorized)).Inc()
			httputil.Unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WebhookProcessQueue drains the queue with the background batch and
// records the run in the history buffer.
//
//	POST /webhooks/queue/process
func (h *Handlers) WebhookProcessQueue(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	run := WebhookRun{At: start.UTC(), Path: r.URL.Path, RemoteAddr: r.RemoteAddr}

	ctx := dispatch.WithTrigger(r.Context(), "webhook")
	res, err := h.Processor.Drain(ctx, dispatch.ClampBatch(h.BackgroundBatch))
	run.Result = res
	run.DurationMS = time.Since(start).Milliseconds()

	if err != nil {
		run.Status = http.StatusInternalServerError
		run.Error = err.Error()
		h.record(run)
		httputil.InternalError(w, err)
		return
	}
	run.Status = http.StatusOK
	h.record(run)
	httputil.OK(w, res)
}

func (h *Handlers) record(run WebhookRun) {
	metrics.WebhookRequests.WithLabelValues(strconv.Itoa(run.Status)).Inc()
	if h.History != nil {
		h.History.Add(run)
	}
}

// WebhookHistory returns recent webhook runs, oldest first.
//
//	GET /webhooks/history
func (h *Handlers) WebhookHistory(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"runs": []WebhookRun{}, "capacity": 0, "total": uint64(0)}
	if h.History != nil {
		resp["runs"] = h.History.Snapshot()
		resp["capacity"] = h.History.Cap()
		resp["total"] = h.History.Total()
	}
	httputil.OK(w, resp)
}
