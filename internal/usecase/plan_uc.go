package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"workspace-billing/internal/domain"
	"workspace-billing/internal/domain/model"
	"workspace-billing/internal/domain/ports/adapter"
	"workspace-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ PlanUseCase = (*planUC)(nil)

// PlanUseCase manages the plan catalog.
type PlanUseCase interface {
	// Create saves or updates a plan.
	Create(ctx context.Context, plan *model.Plan) error
	List(ctx context.Context) ([]*model.Plan, error)
	// Limits returns the plan's limits with -1 passed through as unlimited.
	Limits(ctx context.Context, slug string) (model.PlanLimits, error)
	// SyncProviders creates provider-side plans for every active plan missing an id and
	// stores the returned ids. It returns how many ids were stored.
	SyncProviders(ctx context.Context) (int, error)
}

type planUC struct {
	repo      repository.PlanRepository
	providers []adapter.BillingProvider
	log       *zerolog.Logger
}

// NewPlanUseCase constructs a PlanUseCase.
func NewPlanUseCase(repo repository.PlanRepository, providers []adapter.BillingProvider, logger *zerolog.Logger) *planUC {
	l := logger.With().Str("component", "PlanUseCase").Logger()
	return &planUC{repo: repo, providers: providers, log: &l}
}

func (uc *planUC) Create(ctx context.Context, plan *model.Plan) error {
	if plan.IsZero() || plan.Slug == "" {
		return domain.ErrInvalidArgument
	}
	return uc.repo.Save(ctx, repository.NoTX, plan)
}

func (uc *planUC) List(ctx context.Context) ([]*model.Plan, error) {
	return uc.repo.ListActive(ctx, repository.NoTX)
}

func (uc *planUC) Limits(ctx context.Context, slug string) (model.PlanLimits, error) {
	p, err := uc.repo.FindBySlug(ctx, repository.NoTX, slug)
	if errors.Is(err, domain.ErrNotFound) {
		return model.PlanLimits{}, domain.ErrPlanNotFound
	}
	if err != nil {
		return model.PlanLimits{}, err
	}
	return p.Limits(), nil
}

func (uc *planUC) SyncProviders(ctx context.Context) (int, error) {
	plans, err := uc.repo.ListActive(ctx, repository.NoTX)
	if err != nil {
		return 0, fmt.Errorf("list plans: %w", err)
	}
	synced := 0
	for _, p := range plans {
		for _, prov := range uc.providers {
			if p.ProviderPlanID(prov.Name()) != "" {
				continue
			}
			if price, _ := p.Price(prov.Name().Currency()); price == 0 {
				continue // free tiers are never billed
			}
			id, err := prov.CreatePlan(ctx, p)
			if err != nil {
				return synced, fmt.Errorf("%w: create %s plan for %q: %w", domain.ErrProviderFailure, prov.Name(), p.Slug, err)
			}
			if err := uc.repo.SetProviderPlanID(ctx, repository.NoTX, p.ID, prov.Name(), id); err != nil {
				return synced, fmt.Errorf("store %s plan id for %q: %w", prov.Name(), p.Slug, err)
			}
			uc.log.Info().Str("plan", p.Slug).Str("provider", string(prov.Name())).Str("provider_plan_id", id).Msg("provider plan created")
			synced++
		}
	}
	return synced, nil
}
