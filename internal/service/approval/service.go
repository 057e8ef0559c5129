package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/metrics"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// EnqueueListener is notified after a campaign has been approved and its
// queue items committed. Listeners run synchronously in registration
// order; their failures are theirs to log.
type EnqueueListener interface {
	CampaignEnqueued(ctx context.Context, c *domain.Campaign, items int)
}

// EnqueueListenerFunc adapts a function to EnqueueListener.
type EnqueueListenerFunc func(ctx context.Context, c *domain.Campaign, items int)

func (f EnqueueListenerFunc) CampaignEnqueued(ctx context.Context, c *domain.Campaign, items int) {
	f(ctx, c, items)
}

// Service implements the approval workflow. All public methods are safe
// for concurrent use if the underlying repository is.
type Service struct {
	repo      Repository
	listeners []EnqueueListener
	now       func() time.Time
	log       *logger.Logger
}

// NewService creates an approval service backed by the given repository.
func NewService(repo Repository, listeners ...EnqueueListener) *Service {
	return &Service{
		repo:      repo,
		listeners: listeners,
		now:       time.Now,
		log:       logger.Named("approval.Service"),
	}
}

// AddListener registers a post-enqueue listener. Not safe to call
// concurrently with Approve.
func (s *Service) AddListener(l EnqueueListener) {
	s.listeners = append(s.listeners, l)
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SubmitInput holds the fields of a new campaign.
type SubmitInput struct {
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Recipients []string `json:"recipients"`
}

// EditInput holds the editable fields of a pending campaign. Nil fields
// are left unchanged.
type EditInput struct {
	Subject *string `json:"subject"`
	Body    *string `json:"body"`
}

// Submit validates and persists a new pending campaign owned by actor.
func (s *Service) Submit(ctx context.Context, actor domain.Actor, in SubmitInput) (*domain.Campaign, error) {
	if strings.TrimSpace(in.Subject) == "" {
		return nil, ErrMissingSubject
	}
	if strings.TrimSpace(in.Body) == "" {
		return nil, ErrMissingBody
	}
	recipients := domain.NormalizeRecipients(in.Recipients)
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	now := s.now().UTC()
	c := &domain.Campaign{
		ID:          uuid.New(),
		ApplicantID: actor.ID,
		Subject:     in.Subject,
		Body:        in.Body,
		Recipients:  recipients,
		Status:      domain.CampaignPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info("campaign submitted", "campaign_id", c.ID, "applicant_id", actor.ID, "recipients", len(recipients))
	return c, nil
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	return s.repo.Get(ctx, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error) {
	return s.repo.List(ctx, f)
}

// Edit changes subject or body while the campaign is pending. The owner
// and approvers may edit.
func (s *Service) Edit(ctx context.Context, actor domain.Actor, id uuid.UUID, in EditInput) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.ApplicantID != actor.ID && !actor.CanApprove() {
		return nil, ErrForbidden
	}
	if c.Status != domain.CampaignPending {
		return nil, ErrInvalidTransition
	}

	if in.Subject != nil {
		if strings.TrimSpace(*in.Subject) == "" {
			return nil, ErrMissingSubject
		}
		c.Subject = *in.Subject
	}
	if in.Body != nil {
		if strings.TrimSpace(*in.Body) == "" {
			return nil, ErrMissingBody
		}
		c.Body = *in.Body
	}

	now := s.now().UTC()
	if err := s.repo.UpdateContent(ctx, id, c.Subject, c.Body, now); err != nil {
		return nil, err
	}
	c.UpdatedAt = now
	return c, nil
}

// Approve moves a pending campaign to approved, enqueues one item per
// recipient and then notifies listeners. Returns the campaign and the
// number of items enqueued.
func (s *Service) Approve(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Campaign, int, error) {
	if !actor.CanApprove() {
		return nil, 0, ErrForbidden
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	return s.approve(ctx, actor, c)
}

func (s *Service) approve(ctx context.Context, actor domain.Actor, c *domain.Campaign) (*domain.Campaign, int, error) {
	if !c.Status.CanTransition(domain.CampaignApproved) {
		return nil, 0, ErrInvalidTransition
	}

	now := s.now().UTC()
	items := domain.NewQueueItems(c, now)
	n, err := s.repo.Approve(ctx, c.ID, actor.ID, now, items)
	if err != nil {
		if !errors.Is(err, ErrInvalidTransition) && !errors.Is(err, ErrNotFound) {
			metrics.ApprovalTransitions.WithLabelValues("approve_failed").Inc()
			err = fmt.Errorf("approve campaign %s: %w", c.ID, err)
		}
		return nil, 0, err
	}

	c.Status = domain.CampaignApproved
	c.ApproverID = &actor.ID
	c.ApprovedAt = &now
	c.UpdatedAt = now
	metrics.ApprovalTransitions.WithLabelValues("approved").Inc()
	metrics.ItemsEnqueued.Add(float64(n))
	s.log.Info("campaign approved", "campaign_id", c.ID, "approver_id", actor.ID, "items", n)

	for _, l := range s.listeners {
		l.CampaignEnqueued(ctx, c, n)
	}
	return c, n, nil
}

// Reject moves a pending campaign to rejected.
func (s *Service) Reject(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Campaign, error) {
	if !actor.CanApprove() {
		return nil, ErrForbidden
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Status.CanTransition(domain.CampaignRejected) {
		return nil, ErrInvalidTransition
	}

	now := s.now().UTC()
	if err := s.repo.Reject(ctx, id, actor.ID, now); err != nil {
		return nil, err
	}
	c.Status = domain.CampaignRejected
	c.ApproverID = &actor.ID
	c.ApprovedAt = &now
	c.UpdatedAt = now
	metrics.ApprovalTransitions.WithLabelValues("rejected").Inc()
	s.log.Info("campaign rejected", "campaign_id", c.ID, "approver_id", actor.ID)
	return c, nil
}

// ApproveOldestPending approves the earliest submitted pending campaign.
// It returns ErrNoPendingCampaigns when there is nothing to approve.
func (s *Service) ApproveOldestPending(ctx context.Context, actor domain.Actor) (*domain.Campaign, int, error) {
	if !actor.CanApprove() {
		return nil, 0, ErrForbidden
	}
	c, err := s.repo.OldestPending(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, 0, ErrNoPendingCampaigns
	}
	if err != nil {
		return nil, 0, err
	}
	return s.approve(ctx, actor, c)
}
