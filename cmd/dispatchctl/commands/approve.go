package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/service/approval"
)

var approverID string

var approveOldestCmd = &cobra.Command{
	Use:   "approve-oldest",
	Short: "Approve the oldest pending campaign",
	Long: `Approves the earliest submitted pending campaign, enqueues its
recipients and runs one processing pass. Exits cleanly when nothing is
pending.`,
	RunE: runApproveOldest,
}

func init() {
	approveOldestCmd.Flags().StringVar(&approverID, "approver", "",
		"Approver user id (default: auto_approval.approver_id)")
}

func runApproveOldest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	raw := approverID
	if raw == "" {
		raw = a.Config.AutoApproval.ApproverID
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("approver id: %w", err)
	}

	c, n, err := a.Approval.ApproveOldestPending(ctx, domain.Actor{ID: id, Role: domain.RoleApprover})
	if errors.Is(err, approval.ErrNoPendingCampaigns) {
		fmt.Println("no pending campaigns")
		return nil
	}
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(map[string]interface{}{"campaign": c, "enqueued": n})
	}
	fmt.Printf("approved %s (%q), enqueued %d recipients\n", c.ID, c.Subject, n)
	return nil
}
