package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-dispatch/internal/auth"
	"github.com/ignite/campaign-dispatch/internal/datanorm"
	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/httputil"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/ignite/campaign-dispatch/internal/pkg/ringbuf"
	"github.com/ignite/campaign-dispatch/internal/service/approval"
	"github.com/ignite/campaign-dispatch/internal/service/contact"
	"github.com/ignite/campaign-dispatch/internal/service/dedup"
	"github.com/ignite/campaign-dispatch/internal/service/dispatch"
	"github.com/ignite/campaign-dispatch/internal/worker"
)

// CampaignService is the approval workflow used by the campaign routes.
type CampaignService interface {
	Submit(ctx context.Context, actor domain.Actor, in approval.SubmitInput) (*domain.Campaign, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)
	List(ctx context.Context, f approval.ListFilter) ([]domain.Campaign, int, error)
	Edit(ctx context.Context, actor domain.Actor, id uuid.UUID, in approval.EditInput) (*domain.Campaign, error)
	Approve(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Campaign, int, error)
	Reject(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Campaign, error)
}

// QueueService enqueues approved campaigns and reports their progress.
type QueueService interface {
	Enqueue(ctx context.Context, c *domain.Campaign) (int, error)
	Progress(ctx context.Context, campaignID uuid.UUID) (*domain.QueueProgress, error)
}

// QueueProcessor runs processing passes.
type QueueProcessor interface {
	RunPass(ctx context.Context, batchSize int) (*dispatch.PassResult, error)
	Drain(ctx context.Context, batchSize int) (*dispatch.DrainResult, error)
}

// ContactService lists contacts and toggles their opt-out flag.
type ContactService interface {
	List(ctx context.Context, f contact.ListFilter) ([]domain.Contact, int, error)
	SetUnsubscribed(ctx context.Context, id uuid.UUID, unsubscribed bool) (*domain.Contact, error)
}

// ContactImporter resolves and persists a contact import.
type ContactImporter interface {
	Import(ctx context.Context, rows []datanorm.RawContact) (*dedup.ImportReport, error)
}

// StatsService reads per-user counters.
type StatsService interface {
	Counters(ctx context.Context, userID uuid.UUID) (*domain.UserCounters, error)
}

// AutoApprovalController starts and stops the scheduled approver.
type AutoApprovalController interface {
	Start() error
	Stop()
	Status() worker.AutoApprovalStatus
}

// WebhookRun is one recorded webhook invocation.
type WebhookRun struct {
	At         time.Time             `json:"at"`
	Path       string                `json:"path"`
	RemoteAddr string                `json:"remote_addr"`
	Status     int                   `json:"status"`
	DurationMS int64                 `json:"duration_ms"`
	Result     *dispatch.DrainResult `json:"result,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// Handlers holds the dependencies of every route. Nil optional services
// answer 503.
type Handlers struct {
	Auth         *auth.Manager
	Campaigns    CampaignService
	Queue        QueueService
	Processor    QueueProcessor
	Contacts     ContactService
	Importer     ContactImporter
	Stats        StatsService
	AutoApproval AutoApprovalController
	Health       *HealthChecker

	// WebhookKey guards /webhooks. Empty disables them.
	WebhookKey string
	// History records recent webhook runs.
	History *ringbuf.Buffer[WebhookRun]

	InteractiveBatch int
	BackgroundBatch  int
}

var log = logger.Named("api")

func actorFrom(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	a, ok := auth.FromContext(r.Context())
	if !ok {
		httputil.Unauthorized(w)
	}
	return a, ok
}
