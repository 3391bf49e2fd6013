// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"workspace-billing/internal/application"
	"workspace-billing/internal/config"
	"workspace-billing/internal/infra/api"
	"workspace-billing/internal/infra/api/apiv1"
	"workspace-billing/internal/infra/logging"
	"workspace-billing/internal/infra/metrics"
	"workspace-billing/internal/infra/sched"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	noWorkers := flag.Bool("no-workers", false, "serve HTTP only; trials are swept via /api/cron/expire-trials")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		boot := logging.New(config.LogConfig{Level: "info"}, true)
		boot.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := application.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("bootstrap")
	}
	defer c.Close()

	// ---- HTTP ----
	routes := api.Routes{
		Webhooks: api.NewWebhookHandler(c.Reconcile, cfg.Billing, cfg.HTTP.MaxWebhookBytes, logger),
		Cron:     api.NewCronHandler(c.Status, cfg.Auth.CronSecret, cfg.Scheduler.TrialSweepBatch, logger),
		API:      apiv1.NewServer(c.Workspaces, c.Status, c.Limits, c.Subscriptions, c.Plans, logger),
		Auth:     apiv1.NewAuthManager(cfg.Auth.JWTSecret, 0),
	}
	if c.Limiter != nil {
		routes.Limiter = c.Limiter
	}
	server := api.NewServer(cfg.HTTP, api.NewRouter(cfg, routes, logger), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logger.Info().Msg("shutdown requested")
		return server.Shutdown(shutdownCtx)
	})

	// ---- Workers ----
	if !*noWorkers {
		expiry := sched.NewExpiryWorker(cfg.Scheduler.TrialSweepInterval, cfg.Scheduler.TrialSweepBatch, c.Status, c.Locker, logger)
		reminders := sched.NewNotificationWorker(cfg.Scheduler.ReminderInterval, cfg.Scheduler.ReminderAhead, c.Notifications, c.Locker, logger)
		stats := sched.NewStatsWorker(cfg.Scheduler.StatsInterval, c.Stats, c.Pool.Stat, logger)
		for _, run := range []func(context.Context) error{expiry.Run, reminders.Run, stats.Run} {
			run := run
			g.Go(func() error { return ignoreCanceled(run(gctx)) })
		}
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("service stopped with error")
		c.Close()
		os.Exit(1)
	}
	logger.Info().Msg("service stopped")
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
