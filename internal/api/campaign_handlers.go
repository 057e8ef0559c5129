package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/httputil"
	"github.com/ignite/campaign-dispatch/internal/service/approval"
	"github.com/ignite/campaign-dispatch/internal/service/dispatch"
)

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// visibleCampaign loads a campaign the actor may see. Applicants only see
// their own; others get 404 rather than 403 so ids do not leak.
func (h *Handlers) visibleCampaign(w http.ResponseWriter, r *http.Request, actor domain.Actor) (*domain.Campaign, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}
	c, err := h.Campaigns.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	if !actor.CanApprove() && c.ApplicantID != actor.ID {
		writeServiceError(w, approval.ErrNotFound)
		return nil, false
	}
	return c, true
}

// SubmitCampaign creates a pending campaign owned by the caller.
//
//	POST /api/campaigns
func (h *Handlers) SubmitCampaign(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var in approval.SubmitInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	c, err := h.Campaigns.Submit(r.Context(), actor, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Created(w, c)
}

// ListCampaigns lists campaigns newest first. Applicants see only their own.
//
//	GET /api/campaigns?status=pending&limit=20&offset=0
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	p := ParsePagination(r, 20, 100)
	f := approval.ListFilter{Limit: p.Limit, Offset: p.Offset}
	if s := r.URL.Query().Get("status"); s != "" {
		f.Status = domain.CampaignStatus(s)
		if !f.Status.Valid() {
			httputil.BadRequest(w, "invalid status")
			return
		}
	}
	if !actor.CanApprove() {
		id := actor.ID
		f.ApplicantID = &id
	}
	items, total, err := h.Campaigns.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if items == nil {
		items = []domain.Campaign{}
	}
	httputil.OK(w, ListResponse{Data: items, Total: total, Limit: p.Limit, Offset: p.Offset})
}

// GetCampaign returns one campaign.
//
//	GET /api/campaigns/{id}
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if c, ok := h.visibleCampaign(w, r, actor); ok {
		httputil.OK(w, c)
	}
}

// EditCampaign changes subject or body of a pending campaign.
//
//	PUT /api/campaigns/{id}
func (h *Handlers) EditCampaign(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in approval.EditInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	c, err := h.Campaigns.Edit(r.Context(), actor, id, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}

type approveResponse struct {
	Campaign *domain.Campaign `json:"campaign"`
	Enqueued int              `json:"enqueued"`
}

// ApproveCampaign approves a pending campaign and enqueues its recipients.
//
//	POST /api/campaigns/{id}/approve
func (h *Handlers) ApproveCampaign(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ctx := dispatch.WithTrigger(r.Context(), "approve")
	c, n, err := h.Campaigns.Approve(ctx, actor, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, approveResponse{Campaign: c, Enqueued: n})
}

// RejectCampaign rejects a pending campaign.
//
//	POST /api/campaigns/{id}/reject
func (h *Handlers) RejectCampaign(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.Campaigns.Reject(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}

// EnqueueCampaign re-runs the enqueue of an approved campaign. Recipients
// already queued are skipped, so repeats insert nothing.
//
//	POST /api/campaigns/{id}/enqueue
func (h *Handlers) EnqueueCampaign(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	c, ok := h.visibleCampaign(w, r, actor)
	if !ok {
		return
	}
	n, err := h.Queue.Enqueue(r.Context(), c)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, approveResponse{Campaign: c, Enqueued: n})
}

// CampaignProgress returns per-status item counts.
//
//	GET /api/campaigns/{id}/progress
func (h *Handlers) CampaignProgress(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	c, ok := h.visibleCampaign(w, r, actor)
	if !ok {
		return
	}
	p, err := h.Queue.Progress(r.Context(), c.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, p)
}
