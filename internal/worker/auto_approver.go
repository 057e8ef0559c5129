package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/distlock"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/ignite/campaign-dispatch/internal/service/approval"
)

// DefaultAutoApprovalSchedule approves one campaign every five minutes.
const DefaultAutoApprovalSchedule = "*/5 * * * *"

// OldestApprover approves the oldest pending campaign.
type OldestApprover interface {
	ApproveOldestPending(ctx context.Context, actor domain.Actor) (*domain.Campaign, int, error)
}

// AutoApprovalStatus is the scheduler state reported to operators.
type AutoApprovalStatus struct {
	Running      bool       `json:"running"`
	Schedule     string     `json:"schedule"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	LastApproved *uuid.UUID `json:"last_approved,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	Approved     int        `json:"approved"`
	StoppedEmpty bool       `json:"stopped_empty"`
}

// AutoApprover approves the oldest pending campaign on a cron schedule.
// Each tick holds a distributed lock so only one replica approves at a
// time. When no pending campaign is left the job removes itself.
type AutoApprover struct {
	approver OldestApprover
	actor    domain.Actor
	schedule string
	newLock  func() distlock.DistLock

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
	status  AutoApprovalStatus
	now     func() time.Time
	log     *logger.Logger
}

// NewAutoApprover creates an auto approver. newLock is called once per tick;
// passing nil runs ticks without a lock.
func NewAutoApprover(approver OldestApprover, actor domain.Actor, schedule string, newLock func() distlock.DistLock) *AutoApprover {
	if schedule == "" {
		schedule = DefaultAutoApprovalSchedule
	}
	return &AutoApprover{
		approver: approver,
		actor:    actor,
		schedule: schedule,
		newLock:  newLock,
		status:   AutoApprovalStatus{Schedule: schedule},
		now:      time.Now,
		log:      logger.Named("worker.AutoApprover"),
	}
}

// Start schedules the job. Starting twice is an error.
func (a *AutoApprover) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cron != nil {
		return fmt.Errorf("auto approver is already running")
	}

	c := cron.New()
	id, err := c.AddFunc(a.schedule, func() { a.Tick(context.Background()) })
	if err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	a.cron = c
	a.entryID = id
	a.status.Running = true
	a.status.StoppedEmpty = false
	c.Start()

	a.log.Info("started", "schedule", a.schedule)
	return nil
}

// Stop unschedules the job and waits for a running tick to finish.
func (a *AutoApprover) Stop() {
	a.mu.Lock()
	c := a.cron
	a.cron = nil
	a.status.Running = false
	a.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	a.log.Info("stopped")
}

// Status returns a snapshot of the scheduler state.
func (a *AutoApprover) Status() AutoApprovalStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Tick approves at most one campaign. It is exported so operators and tests
// can trigger a run outside the schedule.
func (a *AutoApprover) Tick(ctx context.Context) {
	run := func(ctx context.Context) error {
		c, items, err := a.approver.ApproveOldestPending(ctx, a.actor)
		if err != nil {
			return err
		}
		a.mu.Lock()
		id := c.ID
		a.status.LastApproved = &id
		a.status.Approved++
		a.mu.Unlock()
		a.log.Info("approved campaign", "campaign_id", c.ID, "items", items)
		return nil
	}

	var err error
	if a.newLock == nil {
		err = run(ctx)
	} else {
		var ran bool
		ran, err = distlock.WithLock(ctx, a.newLock(), run)
		if err == nil && !ran {
			a.log.Debug("lock held elsewhere, skipping tick")
			return
		}
	}

	at := a.now()
	a.mu.Lock()
	a.status.LastRunAt = &at
	a.status.LastError = ""
	if err != nil && !errors.Is(err, approval.ErrNoPendingCampaigns) {
		a.status.LastError = err.Error()
	}
	a.mu.Unlock()

	switch {
	case errors.Is(err, approval.ErrNoPendingCampaigns):
		a.log.Info("no pending campaigns, stopping schedule")
		a.stopEmpty()
	case err != nil:
		a.log.Error("auto approval failed", "error", err)
	}
}

// stopEmpty removes the cron entry without waiting on the running job,
// which is the caller.
func (a *AutoApprover) stopEmpty() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cron == nil {
		return
	}
	a.cron.Remove(a.entryID)
	a.cron.Stop()
	a.cron = nil
	a.status.Running = false
	a.status.StoppedEmpty = true
}
