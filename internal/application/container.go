package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"workspace-billing/internal/config"
	"workspace-billing/internal/domain/ports/adapter"
	"workspace-billing/internal/domain/ports/repository"
	pg "workspace-billing/internal/infra/db/postgres"
	"workspace-billing/internal/infra/notify"
	"workspace-billing/internal/infra/payment/razorpay"
	"workspace-billing/internal/infra/payment/stripe"
	red "workspace-billing/internal/infra/redis"
	"workspace-billing/internal/infra/worker"
	"workspace-billing/internal/usecase"
)

// Container composes repositories, providers and use cases for the service and the CLI.
type Container struct {
	Pool  *pgxpool.Pool
	Redis *red.Client // nil when redis.url is unset

	Providers []adapter.BillingProvider
	Locker    red.Locker       // nil without redis
	Limiter   *red.RateLimiter // nil without redis

	Status        usecase.StatusUseCase
	Limits        usecase.LimitUseCase
	Subscriptions usecase.SubscriptionUseCase
	Workspaces    usecase.WorkspaceUseCase
	Reconcile     usecase.ReconcileUseCase
	Plans         usecase.PlanUseCase
	Notifications usecase.NotificationUseCase
	Stats         usecase.StatsUseCase

	notifyPool *worker.Pool
	closeOnce  sync.Once
	log        *zerolog.Logger
}

// New connects to Postgres (and Redis when configured) and wires every use case.
// Workers of the notification pool live until Close.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*Container, error) {
	c := &Container{log: logger}

	pool, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	c.Pool = pool

	if cfg.Database.AutoMigrate {
		if err := pg.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	var (
		planRepo repository.PlanRepository         = pg.NewPostgresPlanRepo(pool)
		subRepo  repository.SubscriptionRepository = pg.NewSubscriptionRepo(pool)
	)
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		c.Redis = rc
		c.Locker = red.NewLocker(rc)
		c.Limiter = red.NewRateLimiter(rc)
		planRepo = pg.NewPlanRepoCacheDecorator(planRepo, rc, cfg.Redis.PlanTTL, logger)
		subRepo = pg.NewSubscriptionRepoCacheDecorator(subRepo, rc, cfg.Redis.SubscriptionTTL, logger)
	} else {
		logger.Warn().Msg("redis.url not set: caching, sweep locking and rate limiting disabled")
	}
	workspaceRepo := pg.NewWorkspaceRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	tm := pg.NewTxManager(pool)

	c.Providers = providers(cfg.Billing, logger)

	var sender adapter.Notifier = notify.NewLogNotifier(cfg.Runtime.Dev, logger)
	if cfg.Notify.Postmark.ServerToken != "" {
		pm, err := notify.NewPostmarkNotifier(cfg.Notify.Postmark, cfg.Runtime.Dev, logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		sender = pm
	}
	c.notifyPool = worker.NewPool(cfg.Notify.Workers, cfg.Notify.QueueSize, logger)
	c.notifyPool.Start(context.WithoutCancel(ctx))
	notifier := notify.NewAsync(sender, c.notifyPool, cfg.Notify.SendTimeout, logger)

	c.Notifications = usecase.NewNotificationUseCase(subRepo, workspaceRepo, notifier, logger)
	c.Status = usecase.NewStatusUseCase(subRepo, planRepo, logger)
	c.Limits = usecase.NewLimitUseCase(subRepo, planRepo, workspaceRepo, logger)
	c.Plans = usecase.NewPlanUseCase(planRepo, c.Providers, logger)
	c.Stats = usecase.NewStatsUseCase(subRepo, paymentRepo, logger)
	c.Subscriptions = usecase.NewSubscriptionUseCase(subRepo, planRepo, workspaceRepo, paymentRepo, c.Providers,
		c.Limits, c.Notifications, usecase.SubscriptionOptions{
			TrialPlanSlug: cfg.Billing.TrialPlanSlug,
			SuccessURL:    cfg.Billing.SuccessURL,
			CancelURL:     cfg.Billing.CancelURL,
		}, logger)
	c.Workspaces = usecase.NewWorkspaceUseCase(workspaceRepo, c.Subscriptions, c.Limits, c.Notifications, tm, logger)
	c.Reconcile = usecase.NewReconcileUseCase(subRepo, planRepo, paymentRepo, c.Notifications, logger)
	return c, nil
}

// providers builds a client for every provider whose API keys are configured.
func providers(cfg config.BillingConfig, logger *zerolog.Logger) []adapter.BillingProvider {
	var out []adapter.BillingProvider
	if cfg.Razorpay.KeyID != "" {
		if p, err := razorpay.NewClient(cfg.Razorpay, logger); err != nil {
			logger.Warn().Err(err).Msg("razorpay disabled")
		} else {
			out = append(out, p)
		}
	}
	if cfg.Stripe.SecretKey != "" {
		if p, err := stripe.NewClient(cfg.Stripe, logger); err != nil {
			logger.Warn().Err(err).Msg("stripe disabled")
		} else {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		logger.Warn().Msg("no payment provider configured: checkout and plan changes will fail")
	}
	return out
}

// Close drains pending notifications, then releases connections.
func (c *Container) Close() {
	c.closeOnce.Do(func() {
		if c.notifyPool != nil {
			c.notifyPool.Stop()
		}
		if c.Redis != nil {
			if err := c.Redis.Close(); err != nil {
				c.log.Warn().Err(err).Msg("redis close")
			}
		}
		if c.Pool != nil {
			c.Pool.Close()
		}
	})
}
