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
var _ LimitUseCase = (*limitUC)(nil)

// defaultWorkspaceAllowance applies when none of a user's workspaces has an active subscription.
const defaultWorkspaceAllowance = 1

// LimitUseCase is the Limit Enforcement Gate.
//
// Counts are live queries at decision time and are not locked against concurrent
// inserts: two simultaneous adds may both pass at count == limit-1.
type LimitUseCase interface {
	CanAddMember(ctx context.Context, workspaceID string) (model.LimitResult, error)
	CanAddProject(ctx context.Context, workspaceID string) (model.LimitResult, error)
	CanCreateWorkspace(ctx context.Context, userID string) (model.LimitResult, error)
	RequireActiveSubscription(ctx context.Context, workspaceID string) (*model.Subscription, error)
}

type limitUC struct {
	subs       repository.SubscriptionRepository
	plans      repository.PlanRepository
	workspaces repository.WorkspaceRepository
	log        *zerolog.Logger
	now        func() time.Time
}

func NewLimitUseCase(subs repository.SubscriptionRepository, plans repository.PlanRepository, workspaces repository.WorkspaceRepository, logger *zerolog.Logger) *limitUC {
	l := logger.With().Str("component", "LimitUseCase").Logger()
	return &limitUC{subs: subs, plans: plans, workspaces: workspaces, log: &l, now: time.Now}
}

func (uc *limitUC) CanAddMember(ctx context.Context, workspaceID string) (model.LimitResult, error) {
	return uc.check(ctx, workspaceID, model.ResourceMembers,
		func(p *model.Plan) int { return p.MaxUsers },
		uc.workspaces.CountMembers)
}

func (uc *limitUC) CanAddProject(ctx context.Context, workspaceID string) (model.LimitResult, error) {
	return uc.check(ctx, workspaceID, model.ResourceProjects,
		func(p *model.Plan) int { return p.MaxProjects },
		uc.workspaces.CountProjects)
}

func (uc *limitUC) check(
	ctx context.Context,
	workspaceID string,
	res model.Resource,
	limitOf func(*model.Plan) int,
	count func(ctx context.Context, tx repository.Tx, workspaceID string) (int, error),
) (model.LimitResult, error) {
	sub, err := uc.subs.LatestByWorkspace(ctx, repository.NoTX, workspaceID)
	if errors.Is(err, domain.ErrNotFound) {
		return model.Deny("No active subscription"), nil
	}
	if err != nil {
		return model.LimitResult{}, fmt.Errorf("load subscription: %w", err)
	}
	if !sub.IsActive(uc.now()) {
		return model.Deny("Your subscription is not active. Please upgrade to continue."), nil
	}

	plan, err := uc.plans.FindByID(ctx, repository.NoTX, sub.PlanID)
	if errors.Is(err, domain.ErrNotFound) {
		return model.Deny("Plan not found"), nil
	}
	if err != nil {
		return model.LimitResult{}, fmt.Errorf("load plan: %w", err)
	}

	limit := limitOf(plan)
	if limit == model.Unlimited {
		return model.Allow(), nil
	}
	current, err := count(ctx, repository.NoTX, workspaceID)
	if err != nil {
		return model.LimitResult{}, fmt.Errorf("count %s: %w", res, err)
	}
	if current < limit {
		return model.AllowWithUsage(current, limit), nil
	}
	uc.log.Debug().Str("workspace_id", workspaceID).Str("resource", string(res)).
		Int("current", current).Int("limit", limit).Msg("limit reached")
	return model.DenyLimitReached(res, current, limit), nil
}

// CanCreateWorkspace governs a user by the best plan among every workspace they belong to,
// not by any single workspace's plan.
func (uc *limitUC) CanCreateWorkspace(ctx context.Context, userID string) (model.LimitResult, error) {
	ids, err := uc.workspaces.ListWorkspaceIDsForUser(ctx, repository.NoTX, userID)
	if err != nil {
		return model.LimitResult{}, fmt.Errorf("list memberships: %w", err)
	}
	if len(ids) == 0 {
		return model.Allow(), nil
	}

	now := uc.now()
	effective := defaultWorkspaceAllowance
	for _, id := range ids {
		sub, err := uc.subs.LatestByWorkspace(ctx, repository.NoTX, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return model.LimitResult{}, fmt.Errorf("load subscription for %s: %w", id, err)
		}
		if !sub.IsActive(now) {
			continue
		}
		plan, err := uc.plans.FindByID(ctx, repository.NoTX, sub.PlanID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return model.LimitResult{}, fmt.Errorf("load plan: %w", err)
		}
		if plan.MaxWorkspaces == model.Unlimited {
			return model.Allow(), nil
		}
		if plan.MaxWorkspaces > effective {
			effective = plan.MaxWorkspaces
		}
	}

	current := len(ids)
	if current < effective {
		return model.AllowWithUsage(current, effective), nil
	}
	return model.DenyLimitReached(model.ResourceWorkspaces, current, effective), nil
}

func (uc *limitUC) RequireActiveSubscription(ctx context.Context, workspaceID string) (*model.Subscription, error) {
	sub, err := uc.subs.LatestByWorkspace(ctx, repository.NoTX, workspaceID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNoSubscription
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if !sub.IsActive(uc.now()) {
		return nil, domain.ErrSubscriptionInactive
	}
	return sub, nil
}
