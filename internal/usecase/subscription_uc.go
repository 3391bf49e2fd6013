// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"workspace-billing/internal/domain"
	"workspace-billing/internal/domain/model"
	"workspace-billing/internal/domain/ports/adapter"
	"workspace-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type SubscriptionUseCase interface {
	// CreateTrial inserts the trialing subscription for a new workspace on the trial plan.
	CreateTrial(ctx context.Context, tx repository.Tx, workspaceID string) (*model.Subscription, error)

	// StartCheckout opens a hosted checkout with the provider that bills the currency.
	StartCheckout(ctx context.Context, workspaceID, planSlug, currency string) (*adapter.CheckoutResult, error)

	// ChangePlan moves a paid subscription to another plan. The provider is updated
	// first; a provider failure leaves local state untouched.
	ChangePlan(ctx context.Context, workspaceID, planSlug string) (*model.Subscription, error)

	// Cancel asks the provider to cancel at period end and flags the local row.
	// The status itself changes when the provider's cancellation event arrives.
	Cancel(ctx context.Context, workspaceID string) (*model.Subscription, error)

	Payments(ctx context.Context, workspaceID string, limit int) ([]*model.PaymentRecord, error)
}

// SubscriptionOptions holds the deployment-level knobs of the subscription flows.
type SubscriptionOptions struct {
	TrialPlanSlug string
	SuccessURL    string
	CancelURL     string
}

type subscriptionUC struct {
	subs       repository.SubscriptionRepository
	plans      repository.PlanRepository
	workspaces repository.WorkspaceRepository
	payments   repository.PaymentRepository
	providers  map[model.PaymentProvider]adapter.BillingProvider
	limits     LimitUseCase
	notify     NotificationUseCase
	opts       SubscriptionOptions
	log        *zerolog.Logger
	now        func() time.Time
}

func NewSubscriptionUseCase(
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	workspaces repository.WorkspaceRepository,
	payments repository.PaymentRepository,
	providers []adapter.BillingProvider,
	limits LimitUseCase,
	notify NotificationUseCase,
	opts SubscriptionOptions,
	logger *zerolog.Logger,
) *subscriptionUC {
	byName := make(map[model.PaymentProvider]adapter.BillingProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	if opts.TrialPlanSlug == "" {
		opts.TrialPlanSlug = "pro"
	}
	l := logger.With().Str("component", "SubscriptionUseCase").Logger()
	return &subscriptionUC{
		subs:       subs,
		plans:      plans,
		workspaces: workspaces,
		payments:   payments,
		providers:  byName,
		limits:     limits,
		notify:     notify,
		opts:       opts,
		log:        &l,
		now:        time.Now,
	}
}

func (uc *subscriptionUC) CreateTrial(ctx context.Context, tx repository.Tx, workspaceID string) (*model.Subscription, error) {
	plan, err := uc.plans.FindBySlug(ctx, tx, uc.opts.TrialPlanSlug)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("trial plan %q: %w", uc.opts.TrialPlanSlug, domain.ErrPlanNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load trial plan: %w", err)
	}
	sub, err := model.NewTrialSubscription(uuid.NewString(), workspaceID, plan, uc.now())
	if err != nil {
		return nil, err
	}
	if err := uc.subs.Create(ctx, tx, sub); err != nil {
		return nil, fmt.Errorf("create trial subscription: %w", err)
	}
	return sub, nil
}

func (uc *subscriptionUC) StartCheckout(ctx context.Context, workspaceID, planSlug, currency string) (*adapter.CheckoutResult, error) {
	providerName, err := model.ProviderForCurrency(currency)
	if err != nil {
		return nil, err
	}
	provider, err := uc.provider(providerName)
	if err != nil {
		return nil, err
	}
	plan, err := uc.activePlan(ctx, planSlug)
	if err != nil {
		return nil, err
	}
	providerPlanID := plan.ProviderPlanID(providerName)
	if providerPlanID == "" {
		return nil, fmt.Errorf("plan %q on %s: %w", plan.Slug, providerName, domain.ErrPlanNotConfigured)
	}
	ws, err := uc.workspaces.FindByID(ctx, repository.NoTX, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}

	current, err := uc.subs.LatestByWorkspace(ctx, repository.NoTX, workspaceID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if current != nil && current.ProviderSubID() != "" && current.Status == model.SubscriptionStatusActive {
		return nil, fmt.Errorf("workspace already has a paid subscription: %w", domain.ErrAlreadyExists)
	}

	res, err := provider.StartCheckout(ctx, adapter.CheckoutRequest{
		WorkspaceID:    workspaceID,
		CustomerEmail:  ws.BillingEmail,
		CustomerName:   ws.Name,
		Plan:           plan,
		ProviderPlanID: providerPlanID,
		SuccessURL:     uc.opts.SuccessURL,
		CancelURL:      uc.opts.CancelURL,
	})
	if err != nil {
		uc.log.Error().Err(err).Str("workspace_id", workspaceID).Str("provider", string(providerName)).Msg("checkout failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderFailure, err)
	}

	if err := uc.linkCheckout(ctx, current, workspaceID, plan, providerName, res.ProviderSubscriptionID); err != nil {
		return nil, err
	}
	uc.log.Info().Str("workspace_id", workspaceID).Str("provider", string(providerName)).Str("plan", plan.Slug).Msg("checkout started")
	return res, nil
}

// linkCheckout records the pending checkout locally. A trial that was never paid is
// re-linked to the newest checkout. Any other row already bound to a provider
// subscription is immutable, so a fresh row becomes the authoritative one.
func (uc *subscriptionUC) linkCheckout(ctx context.Context, current *model.Subscription, workspaceID string, plan *model.Plan, provider model.PaymentProvider, providerSubID string) error {
	if current != nil && (current.ProviderSubID() == "" || unpaidTrial(current)) {
		if providerSubID == "" {
			return nil
		}
		_, err := uc.subs.Update(ctx, repository.NoTX, current.ID, model.SubscriptionUpdate{
			PaymentProvider:        &provider,
			ProviderSubscriptionID: &providerSubID,
		})
		if err != nil {
			return fmt.Errorf("link provider subscription: %w", err)
		}
		return nil
	}

	now := uc.now().UTC()
	fresh := &model.Subscription{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		PlanID:      plan.ID,
		Status:      model.SubscriptionStatusExpired,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if current != nil {
		fresh.Status = current.Status
		fresh.TrialStart, fresh.TrialEnd = current.TrialStart, current.TrialEnd
	}
	if providerSubID != "" {
		fresh.PaymentProvider = &provider
		fresh.ProviderSubscriptionID = &providerSubID
	}
	if err := uc.subs.Create(ctx, repository.NoTX, fresh); err != nil {
		return fmt.Errorf("create checkout subscription: %w", err)
	}
	return nil
}

func unpaidTrial(s *model.Subscription) bool {
	return s.Status == model.SubscriptionStatusTrialing && s.CurrentPeriodEnd == nil
}

func (uc *subscriptionUC) ChangePlan(ctx context.Context, workspaceID, planSlug string) (*model.Subscription, error) {
	sub, err := uc.limits.RequireActiveSubscription(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if sub.ProviderSubID() == "" {
		return nil, domain.ErrNoProviderLink
	}
	plan, err := uc.activePlan(ctx, planSlug)
	if err != nil {
		return nil, err
	}
	if plan.ID == sub.PlanID {
		return sub, nil
	}
	providerPlanID := plan.ProviderPlanID(sub.Provider())
	if providerPlanID == "" {
		return nil, fmt.Errorf("plan %q on %s: %w", plan.Slug, sub.Provider(), domain.ErrPlanNotConfigured)
	}
	provider, err := uc.provider(sub.Provider())
	if err != nil {
		return nil, err
	}

	if err := provider.UpdateSubscription(ctx, sub.ProviderSubID(), providerPlanID); err != nil {
		uc.log.Error().Err(err).Str("workspace_id", workspaceID).Str("provider", string(sub.Provider())).Msg("plan change failed at provider")
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderFailure, err)
	}

	updated, err := uc.subs.Update(ctx, repository.NoTX, sub.ID, model.SubscriptionUpdate{PlanID: &plan.ID})
	if err != nil {
		return nil, fmt.Errorf("update plan: %w", err)
	}
	uc.log.Info().Str("workspace_id", workspaceID).Str("plan", plan.Slug).Msg("plan changed")
	return updated, nil
}

func (uc *subscriptionUC) Cancel(ctx context.Context, workspaceID string) (*model.Subscription, error) {
	sub, err := uc.limits.RequireActiveSubscription(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if sub.ProviderSubID() == "" {
		return nil, domain.ErrNoProviderLink
	}
	provider, err := uc.provider(sub.Provider())
	if err != nil {
		return nil, err
	}
	if err := provider.CancelSubscription(ctx, sub.ProviderSubID()); err != nil {
		uc.log.Error().Err(err).Str("workspace_id", workspaceID).Msg("cancel failed at provider")
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderFailure, err)
	}

	flag := true
	updated, err := uc.subs.Update(ctx, repository.NoTX, sub.ID, model.SubscriptionUpdate{CancelAtPeriodEnd: &flag})
	if err != nil {
		return nil, fmt.Errorf("flag cancellation: %w", err)
	}
	uc.notify.WorkspaceEvent(ctx, adapter.NotifySubscriptionCancelled, workspaceID,
		"Your subscription will not renew",
		"Your subscription has been cancelled and stays active until the end of the current billing period.")
	return updated, nil
}

func (uc *subscriptionUC) Payments(ctx context.Context, workspaceID string, limit int) ([]*model.PaymentRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return uc.payments.ListByWorkspace(ctx, repository.NoTX, workspaceID, limit)
}

func (uc *subscriptionUC) activePlan(ctx context.Context, slug string) (*model.Plan, error) {
	plan, err := uc.plans.FindBySlug(ctx, repository.NoTX, slug)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("plan %q: %w", slug, domain.ErrPlanNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	if !plan.Active {
		return nil, fmt.Errorf("plan %q is inactive: %w", slug, domain.ErrPlanNotFound)
	}
	return plan, nil
}

func (uc *subscriptionUC) provider(name model.PaymentProvider) (adapter.BillingProvider, error) {
	p, ok := uc.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured: %w", name, domain.ErrProviderFailure)
	}
	return p, nil
}
