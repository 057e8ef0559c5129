package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-dispatch/internal/auth"
	"github.com/ignite/campaign-dispatch/internal/datanorm"
	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/ringbuf"
	"github.com/ignite/campaign-dispatch/internal/service/approval"
	"github.com/ignite/campaign-dispatch/internal/service/contact"
	"github.com/ignite/campaign-dispatch/internal/service/dedup"
	"github.com/ignite/campaign-dispatch/internal/service/dispatch"
	"github.com/ignite/campaign-dispatch/internal/service/queue"
	"github.com/ignite/campaign-dispatch/internal/worker"
)

// ---------------------------------------------------------------------------
// fakes
// ---------------------------------------------------------------------------

type fakeCampaigns struct {
	byID       map[uuid.UUID]*domain.Campaign
	lastFilter approval.ListFilter
	submitErr  error
}

func newFakeCampaigns() *fakeCampaigns {
	return &fakeCampaigns{byID: map[uuid.UUID]*domain.Campaign{}}
}

func (f *fakeCampaigns) add(c *domain.Campaign) *domain.Campaign {
	f.byID[c.ID] = c
	return c
}

func (f *fakeCampaigns) Submit(ctx context.Context, actor domain.Actor, in approval.SubmitInput) (*domain.Campaign, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if in.Subject == "" {
		return nil, approval.ErrMissingSubject
	}
	c := &domain.Campaign{ID: uuid.New(), ApplicantID: actor.ID, Subject: in.Subject, Body: in.Body,
		Recipients: in.Recipients, Status: domain.CampaignPending}
	return f.add(c), nil
}

func (f *fakeCampaigns) Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, approval.ErrNotFound
	}
	return c, nil
}

func (f *fakeCampaigns) List(ctx context.Context, flt approval.ListFilter) ([]domain.Campaign, int, error) {
	f.lastFilter = flt
	var out []domain.Campaign
	for _, c := range f.byID {
		if flt.ApplicantID != nil && c.ApplicantID != *flt.ApplicantID {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (f *fakeCampaigns) Edit(ctx context.Context, actor domain.Actor, id uuid.UUID, in approval.EditInput) (*domain.Campaign, error) {
	c, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignPending {
		return nil, approval.ErrInvalidTransition
	}
	if in.Subject != nil {
		c.Subject = *in.Subject
	}
	return c, nil
}

func (f *fakeCampaigns) Approve(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Campaign, int, error) {
	c, err := f.Get(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if c.Status != domain.CampaignPending {
		return nil, 0, approval.ErrInvalidTransition
	}
	c.Status = domain.CampaignApproved
	return c, len(c.Recipients), nil
}

func (f *fakeCampaigns) Reject(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Campaign, error) {
	c, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Status = domain.CampaignRejected
	return c, nil
}

type fakeQueue struct{}

func (fakeQueue) Enqueue(ctx context.Context, c *domain.Campaign) (int, error) {
	if c.Status != domain.CampaignApproved {
		return 0, queue.ErrNotApproved
	}
	return 0, nil
}

func (fakeQueue) Progress(ctx context.Context, id uuid.UUID) (*domain.QueueProgress, error) {
	return &domain.QueueProgress{CampaignID: id, Total: 3, Sent: 2, Pending: 1}, nil
}

type fakeProcessor struct {
	passBatch  int
	drainBatch int
	drainErr   error
}

func (f *fakeProcessor) RunPass(ctx context.Context, batchSize int) (*dispatch.PassResult, error) {
	f.passBatch = batchSize
	return &dispatch.PassResult{Claimed: 1, Sent: 1}, nil
}

func (f *fakeProcessor) Drain(ctx context.Context, batchSize int) (*dispatch.DrainResult, error) {
	f.drainBatch = batchSize
	if f.drainErr != nil {
		return &dispatch.DrainResult{}, f.drainErr
	}
	return &dispatch.DrainResult{Passes: 2, Claimed: 5, Sent: 5}, nil
}

type fakeContacts struct {
	lastFilter contact.ListFilter
}

func (f *fakeContacts) List(ctx context.Context, flt contact.ListFilter) ([]domain.Contact, int, error) {
	f.lastFilter = flt
	return nil, 0, nil
}

func (f *fakeContacts) SetUnsubscribed(ctx context.Context, id uuid.UUID, unsubscribed bool) (*domain.Contact, error) {
	if id == uuid.Nil {
		return nil, contact.ErrNotFound
	}
	return &domain.Contact{ID: id, Unsubscribed: unsubscribed}, nil
}

type fakeImporter struct {
	rows []datanorm.RawContact
	err  error
}

func (f *fakeImporter) Import(ctx context.Context, rows []datanorm.RawContact) (*dedup.ImportReport, error) {
	f.rows = rows
	if f.err != nil {
		return nil, f.err
	}
	return &dedup.ImportReport{Total: len(rows), Inserted: len(rows)}, nil
}

type fakeStats struct{}

func (fakeStats) Counters(ctx context.Context, id uuid.UUID) (*domain.UserCounters, error) {
	return &domain.UserCounters{UserID: id, EmailSendCount: 2, EmailRecipientCount: 7}, nil
}

type fakeAutoApproval struct {
	running bool
}

func (f *fakeAutoApproval) Start() error {
	if f.running {
		return errors.New("auto approver is already running")
	}
	f.running = true
	return nil
}
func (f *fakeAutoApproval) Stop() { f.running = false }
func (f *fakeAutoApproval) Status() worker.AutoApprovalStatus {
	return worker.AutoApprovalStatus{Running: f.running, Schedule: "*/5 * * * *"}
}

// ---------------------------------------------------------------------------
// harness
// ---------------------------------------------------------------------------

type harness struct {
	t         *testing.T
	router    http.Handler
	h         *Handlers
	campaigns *fakeCampaigns
	proc      *fakeProcessor
	contacts  *fakeContacts
	importer  *fakeImporter
	auth      *auth.Manager
	applicant domain.Actor
	approver  domain.Actor
}

func newHarness(t *testing.T) *harness {
	mgr := auth.NewManager("test-secret", "dispatch", time.Hour)
	hs := &harness{
		t:         t,
		campaigns: newFakeCampaigns(),
		proc:      &fakeProcessor{},
		contacts:  &fakeContacts{},
		importer:  &fakeImporter{},
		auth:      mgr,
		applicant: domain.Actor{ID: uuid.New(), Role: domain.RoleApplicant},
		approver:  domain.Actor{ID: uuid.New(), Role: domain.RoleApprover},
	}
	hs.h = &Handlers{
		Auth:             mgr,
		Campaigns:        hs.campaigns,
		Queue:            fakeQueue{},
		Processor:        hs.proc,
		Contacts:         hs.contacts,
		Importer:         hs.importer,
		Stats:            fakeStats{},
		AutoApproval:     &fakeAutoApproval{},
		WebhookKey:       "hook-key",
		History:          ringbuf.New[WebhookRun](2),
		InteractiveBatch: 10,
		BackgroundBatch:  50,
	}
	hs.router = SetupRoutes(hs.h, nil)
	return hs
}

func (hs *harness) do(method, path string, actor *domain.Actor, body string, headers ...string) *httptest.ResponseRecorder {
	hs.t.Helper()
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	if actor != nil {
		tok, err := hs.auth.IssueToken(*actor)
		require.NoError(hs.t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	hs.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// ---------------------------------------------------------------------------
// tests
// ---------------------------------------------------------------------------

func TestHealthCheck_NoAuth(t *testing.T) {
	hs := newHarness(t)
	rec := hs.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthCheck_CriticalDown(t *testing.T) {
	hs := newHarness(t)
	hs.h.Health = NewHealthChecker().
		Add("database", true, func(ctx context.Context) error { return errors.New("refused") }).
		Add("redis", false, nil)

	rec := hs.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestAPI_RequiresToken(t *testing.T) {
	hs := newHarness(t)
	rec := hs.do(http.MethodGet, "/api/campaigns", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmitCampaign(t *testing.T) {
	hs := newHarness(t)

	rec := hs.do(http.MethodPost, "/api/campaigns", &hs.applicant,
		`{"subject":"Hello","body":"Hi {{ contact.company }}","recipients":["a@example.com"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, hs.applicant.ID.String(), body["applicant_id"])

	rec = hs.do(http.MethodPost, "/api/campaigns", &hs.applicant, `{"body":"x","recipients":["a@example.com"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = hs.do(http.MethodPost, "/api/campaigns", &hs.applicant, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitCampaign_HidesInternalErrors(t *testing.T) {
	hs := newHarness(t)
	hs.campaigns.submitErr = errors.New("pq: connection reset")

	rec := hs.do(http.MethodPost, "/api/campaigns", &hs.applicant, `{"subject":"s","body":"b","recipients":["a@x.io"]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pq:")
}

func TestListCampaigns_ApplicantScoped(t *testing.T) {
	hs := newHarness(t)
	hs.campaigns.add(&domain.Campaign{ID: uuid.New(), ApplicantID: hs.applicant.ID, Status: domain.CampaignPending})
	hs.campaigns.add(&domain.Campaign{ID: uuid.New(), ApplicantID: uuid.New(), Status: domain.CampaignPending})

	rec := hs.do(http.MethodGet, "/api/campaigns?status=pending&limit=5", &hs.applicant, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 1, body["total"])
	require.NotNil(t, hs.campaigns.lastFilter.ApplicantID)
	assert.Equal(t, hs.applicant.ID, *hs.campaigns.lastFilter.ApplicantID)
	assert.Equal(t, 5, hs.campaigns.lastFilter.Limit)

	rec = hs.do(http.MethodGet, "/api/campaigns", &hs.approver, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, hs.campaigns.lastFilter.ApplicantID)

	rec = hs.do(http.MethodGet, "/api/campaigns?status=bogus", &hs.approver, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCampaign_OtherApplicantIsNotFound(t *testing.T) {
	hs := newHarness(t)
	c := hs.campaigns.add(&domain.Campaign{ID: uuid.New(), ApplicantID: uuid.New(), Status: domain.CampaignPending})

	rec := hs.do(http.MethodGet, "/api/campaigns/"+c.ID.String(), &hs.applicant, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = hs.do(http.MethodGet, "/api/campaigns/"+c.ID.String(), &hs.approver, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = hs.do(http.MethodGet, "/api/campaigns/not-a-uuid", &hs.approver, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApproveCampaign(t *testing.T) {
	hs := newHarness(t)
	c := hs.campaigns.add(&domain.Campaign{ID: uuid.New(), ApplicantID: hs.applicant.ID,
		Recipients: []string{"a@x.io", "b@x.io"}, Status: domain.CampaignPending})
	path := "/api/campaigns/" + c.ID.String() + "/approve"

	rec := hs.do(http.MethodPost, path, &hs.applicant, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = hs.do(http.MethodPost, path, &hs.approver, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["enqueued"])

	rec = hs.do(http.MethodPost, path, &hs.approver, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestEditCampaign_AfterApprovalConflicts(t *testing.T) {
	hs := newHarness(t)
	c := hs.campaigns.add(&domain.Campaign{ID: uuid.New(), ApplicantID: hs.applicant.ID, Status: domain.CampaignApproved})

	rec := hs.do(http.MethodPut, "/api/campaigns/"+c.ID.String(), &hs.applicant, `{"subject":"new"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestEnqueueCampaign_RequiresApproved(t *testing.T) {
	hs := newHarness(t)
	pending := hs.campaigns.add(&domain.Campaign{ID: uuid.New(), Status: domain.CampaignPending})
	approved := hs.campaigns.add(&domain.Campaign{ID: uuid.New(), Status: domain.CampaignApproved})

	rec := hs.do(http.MethodPost, "/api/campaigns/"+pending.ID.String()+"/enqueue", &hs.approver, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = hs.do(http.MethodPost, "/api/campaigns/"+approved.ID.String()+"/enqueue", &hs.approver, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decodeBody(t, rec)["enqueued"])
}

func TestCampaignProgress(t *testing.T) {
	hs := newHarness(t)
	c := hs.campaigns.add(&domain.Campaign{ID: uuid.New(), ApplicantID: hs.applicant.ID, Status: domain.CampaignApproved})

	rec := hs.do(http.MethodGet, "/api/campaigns/"+c.ID.String()+"/progress", &hs.applicant, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["sent"])
}

func TestProcessQueue_InteractiveBatch(t *testing.T) {
	hs := newHarness(t)

	rec := hs.do(http.MethodPost, "/api/queue/process", &hs.applicant, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = hs.do(http.MethodPost, "/api/queue/process", &hs.approver, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, hs.proc.passBatch)
}

func TestListContacts_Filters(t *testing.T) {
	hs := newHarness(t)

	rec := hs.do(http.MethodGet, "/api/contacts?search=acme&unsubscribed=true&limit=1000", &hs.applicant, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acme", hs.contacts.lastFilter.Search)
	require.NotNil(t, hs.contacts.lastFilter.Unsubscribed)
	assert.True(t, *hs.contacts.lastFilter.Unsubscribed)
	assert.Equal(t, 500, hs.contacts.lastFilter.Limit)

	rec = hs.do(http.MethodGet, "/api/contacts?unsubscribed=maybe", &hs.applicant, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetUnsubscribed(t *testing.T) {
	hs := newHarness(t)
	id := uuid.New()

	rec := hs.do(http.MethodPut, "/api/contacts/"+id.String()+"/unsubscribe", &hs.applicant, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["unsubscribed"])

	rec = hs.do(http.MethodPut, "/api/contacts/"+id.String()+"/unsubscribe", &hs.applicant, `{"unsubscribed":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["unsubscribed"])

	rec = hs.do(http.MethodPut, "/api/contacts/"+uuid.Nil.String()+"/unsubscribe", &hs.applicant, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImportContacts_JSON(t *testing.T) {
	hs := newHarness(t)

	rec := hs.do(http.MethodPost, "/api/contacts/import", &hs.applicant,
		`{"rows":[{"company":"Acme","email":"a@acme.jp"},{"company":"Beta","fax":"03-1234-5678"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, hs.importer.rows, 2)
	assert.Equal(t, 1, hs.importer.rows[0].Row)
	assert.Equal(t, 2, hs.importer.rows[1].Row)
	assert.EqualValues(t, 2, decodeBody(t, rec)["inserted"])

	rec = hs.do(http.MethodPost, "/api/contacts/import", &hs.applicant, `{"rows":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportContacts_CSV(t *testing.T) {
	hs := newHarness(t)

	csv := "会社名,メール,FAX\nAcme,a@acme.jp,\nBeta,,03-1234-5678\n"
	rec := hs.do(http.MethodPost, "/api/contacts/import", &hs.applicant, csv, "Content-Type", "text/csv; charset=utf-8")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, hs.importer.rows, 2)
	assert.Equal(t, "Acme", hs.importer.rows[0].Company)
}

func TestImportContacts_ValidationError(t *testing.T) {
	hs := newHarness(t)
	hs.importer.err = &dedup.ValidationError{Row: 7, Field: "email", Value: "foo at bar", Err: dedup.ErrAmbiguousEmail}

	rec := hs.do(http.MethodPost, "/api/contacts/import", &hs.applicant, `{"rows":[{"company":"x","email":"foo at bar"}]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "validation_failed", body["code"])
	details, ok := body["details"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 7, details["row"])
}

func TestMyStats(t *testing.T) {
	hs := newHarness(t)
	rec := hs.do(http.MethodGet, "/api/me/stats", &hs.applicant, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 7, body["email_recipient_count"])
}

func TestAutoApproval_Control(t *testing.T) {
	hs := newHarness(t)

	rec := hs.do(http.MethodGet, "/api/auto-approval", &hs.applicant, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = hs.do(http.MethodPost, "/api/auto-approval/start", &hs.approver, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["running"])

	rec = hs.do(http.MethodPost, "/api/auto-approval/start", &hs.approver, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = hs.do(http.MethodPost, "/api/auto-approval/stop", &hs.approver, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["running"])
}

func TestAutoApproval_NotConfigured(t *testing.T) {
	hs := newHarness(t)
	hs.h.AutoApproval = nil
	rec := hs.do(http.MethodGet, "/api/auto-approval", &hs.approver, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWebhook_KeyRequired(t *testing.T) {
	hs := newHarness(t)

	rec := hs.do(http.MethodPost, "/webhooks/queue/process", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = hs.do(http.MethodPost, "/webhooks/queue/process?key=wrong", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, hs.proc.drainBatch)
}

func TestWebhook_DrainAndHistory(t *testing.T) {
	hs := newHarness(t)

	rec := hs.do(http.MethodPost, "/webhooks/queue/process", nil, "", "X-Webhook-Key", "hook-key")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, hs.proc.drainBatch)

	hs.proc.drainErr = errors.New("db gone")
	rec = hs.do(http.MethodPost, "/webhooks/queue/process?key=hook-key", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	hs.proc.drainErr = nil
	rec = hs.do(http.MethodPost, "/webhooks/queue/process?key=hook-key", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = hs.do(http.MethodGet, "/webhooks/history?key=hook-key", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	runs, ok := body["runs"].([]interface{})
	require.True(t, ok)
	// Capacity 2: the first success was evicted.
	require.Len(t, runs, 2)
	assert.EqualValues(t, 3, body["total"])
	first := runs[0].(map[string]interface{})
	assert.EqualValues(t, http.StatusInternalServerError, first["status"])
	assert.True(t, strings.Contains(first["error"].(string), "db gone"))
}

func TestWebhook_DisabledWithoutKey(t *testing.T) {
	hs := newHarness(t)
	hs.h.WebhookKey = ""
	rec := hs.do(http.MethodPost, "/webhooks/queue/process?key=", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
