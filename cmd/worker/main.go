package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/campaign-dispatch/internal/app"
	"github.com/ignite/campaign-dispatch/internal/config"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	log := logger.Named("worker")
	log.Info("starting dispatch worker")

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, cfg, app.Options{Publish: true})
	if err != nil {
		log.Error("failed to initialise services", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.StartWorkers(ctx); err != nil {
		log.Error("failed to start workers", "error", err)
		os.Exit(1)
	}
	log.Info("worker running",
		"poll_interval", cfg.Dispatch.PollInterval().String(),
		"reclaim_interval", cfg.Dispatch.ReclaimInterval().String(),
		"amqp", cfg.AMQP.Enabled(),
		"auto_approval", cfg.AutoApproval.Enabled)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker")
	cancel()

	// Let in-flight passes observe the cancellation.
	time.Sleep(2 * time.Second)
	log.Info("worker stopped")
}
