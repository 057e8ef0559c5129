package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ignite/campaign-dispatch/internal/service/dispatch"
)

var (
	drainBatch int
	drainOnce  bool
)

var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Process the send queue",
	Long: `Runs processing passes until one claims nothing or the configured
iteration limit is reached. With --once a single pass is run.`,
	RunE: runDrain,
}

func init() {
	drainCmd.Flags().IntVar(&drainBatch, "batch", 0,
		"Items per pass (default: dispatch.background_batch_size)")
	drainCmd.Flags().BoolVar(&drainOnce, "once", false, "Run a single pass")
}

func runDrain(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	batch := drainBatch
	if batch == 0 {
		batch = a.Config.Dispatch.BackgroundBatchSize
	}
	batch = dispatch.ClampBatch(batch)
	ctx = dispatch.WithTrigger(ctx, "cli")

	if drainOnce {
		res, err := a.Processor.RunPass(ctx, batch)
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			return outputJSON(res)
		}
		fmt.Printf("claimed %d  sent %d  failed %d  permanent %d  reclaimed %d\n",
			res.Claimed, res.Sent, res.Failed, res.Permanent, res.Reclaimed)
		return nil
	}

	res, err := a.Processor.Drain(ctx, batch)
	if err != nil {
		return err
	}
	if outputFormat == "json" {
		return outputJSON(res)
	}
	fmt.Printf("passes %d  claimed %d  sent %d  failed %d  permanent %d  reclaimed %d\n",
		res.Passes, res.Claimed, res.Sent, res.Failed, res.Permanent, res.Reclaimed)
	return nil
}
