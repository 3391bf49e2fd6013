package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"workspace-billing/internal/domain"
	"workspace-billing/internal/domain/model"
	"workspace-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ StatusUseCase = (*statusUC)(nil)

type StatusUseCase interface {
	// WorkspaceStatus computes the subscription view for a workspace. A trialing
	// subscription found past its trial end is persisted as expired before returning.
	WorkspaceStatus(ctx context.Context, workspaceID string) (*model.StatusView, error)

	// ExpireLapsedTrials is the explicit sweep counterpart of the lazy expiry above.
	ExpireLapsedTrials(ctx context.Context, limit int) (int, error)
}

type statusUC struct {
	subs  repository.SubscriptionRepository
	plans repository.PlanRepository
	log   *zerolog.Logger
	now   func() time.Time
}

func NewStatusUseCase(subs repository.SubscriptionRepository, plans repository.PlanRepository, logger *zerolog.Logger) *statusUC {
	l := logger.With().Str("component", "StatusUseCase").Logger()
	return &statusUC{subs: subs, plans: plans, log: &l, now: time.Now}
}

func (uc *statusUC) WorkspaceStatus(ctx context.Context, workspaceID string) (*model.StatusView, error) {
	if workspaceID == "" {
		return nil, domain.ErrInvalidArgument
	}
	sub, err := uc.subs.LatestByWorkspace(ctx, repository.NoTX, workspaceID)
	if errors.Is(err, domain.ErrNotFound) {
		return model.NoSubscriptionView(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}

	now := uc.now()
	if sub.IsTrialExpired(now) {
		sub = uc.expire(ctx, sub)
	}

	plan, err := uc.plans.FindByID(ctx, repository.NoTX, sub.PlanID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	return model.NewStatusView(sub, plan, now), nil
}

// expire persists the trialing -> expired transition. A failed write is logged and the
// view is still computed as expired; the next read retries the write.
func (uc *statusUC) expire(ctx context.Context, sub *model.Subscription) *model.Subscription {
	updated, err := uc.subs.ExpireTrial(ctx, repository.NoTX, sub.ID)
	if err == nil {
		uc.log.Info().Str("workspace_id", sub.WorkspaceID).Str("subscription_id", sub.ID).Msg("trial expired")
		return updated
	}
	if !errors.Is(err, domain.ErrNotFound) {
		uc.log.Error().Err(err).Str("subscription_id", sub.ID).Msg("failed to persist trial expiry")
	}
	cp := *sub
	cp.Status = model.SubscriptionStatusExpired
	return &cp
}

func (uc *statusUC) ExpireLapsedTrials(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 500
	}
	lapsed, err := uc.subs.ListLapsedTrials(ctx, repository.NoTX, uc.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list lapsed trials: %w", err)
	}
	n := 0
	for _, s := range lapsed {
		if _, err := uc.subs.ExpireTrial(ctx, repository.NoTX, s.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue // converted meanwhile by a webhook or a read
			}
			return n, fmt.Errorf("expire trial %s: %w", s.ID, err)
		}
		n++
	}
	return n, nil
}
