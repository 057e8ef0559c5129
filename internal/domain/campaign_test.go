package domain

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCampaignStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to CampaignStatus
		want     bool
	}{
		{CampaignPending, CampaignApproved, true},
		{CampaignPending, CampaignRejected, true},
		{CampaignPending, CampaignPending, false},
		{CampaignApproved, CampaignRejected, false},
		{CampaignApproved, CampaignPending, false},
		{CampaignRejected, CampaignApproved, false},
		{CampaignRejected, CampaignPending, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestNormalizeRecipients(t *testing.T) {
	got := NormalizeRecipients([]string{" P@ex.com", "q@ex.com", "", "p@ex.com", "  "})
	want := []string{"p@ex.com", "q@ex.com"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeRecipients = %v, want %v", got, want)
	}
}

func TestNewQueueItems_OnePerRecipient(t *testing.T) {
	c := &Campaign{
		ID:          uuid.New(),
		ApplicantID: uuid.New(),
		Subject:     "Hello",
		Body:        "<p>Hi</p>",
		Recipients:  []string{"p@ex.com", "q@ex.com", "r@ex.com"},
		Status:      CampaignApproved,
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	items := NewQueueItems(c, now)
	if len(items) != len(c.Recipients) {
		t.Fatalf("got %d items, want %d", len(items), len(c.Recipients))
	}
	for i, it := range items {
		if it.Recipient != c.Recipients[i] {
			t.Errorf("item %d recipient = %q, want %q", i, it.Recipient, c.Recipients[i])
		}
		if it.Status != QueuePending || it.RetryCount != 0 {
			t.Errorf("item %d = %s/%d, want pending/0", i, it.Status, it.RetryCount)
		}
		if it.Subject != c.Subject || it.Body != c.Body {
			t.Errorf("item %d did not copy subject/body", i)
		}
		if it.CampaignID != c.ID || it.ApplicantID != c.ApplicantID {
			t.Errorf("item %d has wrong campaign/applicant", i)
		}
	}

	// Later edits to the campaign do not leak into queued items.
	c.Subject = "Changed"
	if items[0].Subject != "Hello" {
		t.Errorf("queued subject changed to %q", items[0].Subject)
	}
}

func TestQueueItem_Eligible(t *testing.T) {
	tests := []struct {
		status QueueItemStatus
		retry  int
		want   bool
	}{
		{QueuePending, 0, true},
		{QueueFailed, 1, true},
		{QueueFailed, MaxRetries, true},
		{QueueFailed, MaxRetries + 1, false},
		{QueueProcessing, 0, false},
		{QueueSent, 0, false},
	}
	for _, tt := range tests {
		q := QueueItem{Status: tt.status, RetryCount: tt.retry}
		if got := q.Eligible(MaxRetries); got != tt.want {
			t.Errorf("Eligible(%s, %d) = %v, want %v", tt.status, tt.retry, got, tt.want)
		}
	}
}

func TestActor_CanApprove(t *testing.T) {
	if (Actor{Role: RoleApplicant}).CanApprove() {
		t.Error("applicant should not approve")
	}
	if !(Actor{Role: RoleApprover}).CanApprove() || !(Actor{Role: RoleAdmin}).CanApprove() {
		t.Error("approver and admin should approve")
	}
}
