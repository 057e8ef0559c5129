package api

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/ignite/campaign-dispatch/internal/datanorm"
	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/httputil"
	"github.com/ignite/campaign-dispatch/internal/service/contact"
)

// maxImportBody caps an import request.
const maxImportBody = 32 << 20

// ListContacts lists contacts with optional search and opt-out filter.
//
//	GET /api/contacts?search=acme&unsubscribed=false&limit=50
func (h *Handlers) ListContacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := ParsePagination(r, 50, 500)
	f := contact.ListFilter{Search: q.Get("search"), Limit: p.Limit, Offset: p.Offset}
	if v := q.Get("unsubscribed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			httputil.BadRequest(w, "unsubscribed must be true or false")
			return
		}
		f.Unsubscribed = &b
	}
	items, total, err := h.Contacts.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if items == nil {
		items = []domain.Contact{}
	}
	httputil.OK(w, ListResponse{Data: items, Total: total, Limit: p.Limit, Offset: p.Offset})
}

type unsubscribeRequest struct {
	Unsubscribed *bool `json:"unsubscribed"`
}

// SetUnsubscribed sets or clears a contact's opt-out flag. An empty body
// means unsubscribe.
//
//	PUT /api/contacts/{id}/unsubscribe
func (h *Handlers) SetUnsubscribed(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	flag := true
	if r.ContentLength != 0 {
		var req unsubscribeRequest
		if !httputil.Decode(w, r, &req) {
			return
		}
		if req.Unsubscribed != nil {
			flag = *req.Unsubscribed
		}
	}
	c, err := h.Contacts.SetUnsubscribed(r.Context(), id, flag)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}

type importRequest struct {
	Rows []datanorm.RawContact `json:"rows"`
}

// ImportContacts runs a dedup import. The body is either JSON
// ({"rows": [...]}) or a CSV file sent as text/csv. A fatal row error
// answers 422 with the row number and nothing is written.
//
//	POST /api/contacts/import
func (h *Handlers) ImportContacts(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)

	var rows []datanorm.RawContact
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "text/csv" {
		var err error
		rows, err = datanorm.ReadContacts(r.Body)
		if err != nil {
			httputil.BadRequest(w, "invalid CSV: "+err.Error())
			return
		}
	} else {
		var req importRequest
		if !httputil.Decode(w, r, &req) {
			return
		}
		rows = req.Rows
		for i := range rows {
			if rows[i].Row == 0 {
				rows[i].Row = i + 1
			}
		}
	}
	_, _ = io.Copy(io.Discard, r.Body)

	if len(rows) == 0 {
		httputil.BadRequest(w, "no rows to import")
		return
	}

	report, err := h.Importer.Import(r.Context(), rows)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	log.Info("contact import finished",
		"total", report.Total, "inserted", report.Inserted,
		"email_dropped", report.EmailDropped, "rejected", len(report.Rejected))
	httputil.OK(w, report)
}
