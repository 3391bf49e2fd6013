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
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileOutcome reports what applying an event did. Every outcome is acknowledged
// to the provider; only a returned error is.
type ReconcileOutcome string

const (
	OutcomeApplied   ReconcileOutcome = "applied"
	OutcomeIgnored   ReconcileOutcome = "ignored"
	OutcomeUnmatched ReconcileOutcome = "unmatched"
	OutcomeDuplicate ReconcileOutcome = "duplicate"
)

// ReconcileUseCase applies verified provider events to local subscription and payment state.
type ReconcileUseCase interface {
	Apply(ctx context.Context, ev model.BillingEvent) (ReconcileOutcome, error)
}

type reconcileUC struct {
	subs     repository.SubscriptionRepository
	plans    repository.PlanRepository
	payments repository.PaymentRepository
	notify   NotificationUseCase
	log      *zerolog.Logger
	now      func() time.Time
}

func NewReconcileUseCase(
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	payments repository.PaymentRepository,
	notify NotificationUseCase,
	logger *zerolog.Logger,
) *reconcileUC {
	l := logger.With().Str("component", "ReconcileUseCase").Logger()
	return &reconcileUC{subs: subs, plans: plans, payments: payments, notify: notify, log: &l, now: time.Now}
}

func (uc *reconcileUC) Apply(ctx context.Context, ev model.BillingEvent) (ReconcileOutcome, error) {
	switch e := ev.(type) {
	case *model.SubscriptionActivated:
		return uc.activated(ctx, e)
	case *model.SubscriptionCharged:
		return uc.charged(ctx, e)
	case *model.SubscriptionCancelled:
		return uc.cancelled(ctx, e)
	case *model.PaymentCaptured:
		return uc.paymentCaptured(ctx, e)
	default:
		uc.log.Debug().Str("provider", string(ev.EventProvider())).Str("event", ev.EventType()).Msg("event ignored")
		return OutcomeIgnored, nil
	}
}

func (uc *reconcileUC) activated(ctx context.Context, e *model.SubscriptionActivated) (ReconcileOutcome, error) {
	status := model.SubscriptionStatusActive
	upd := model.SubscriptionUpdate{Status: &status, Period: e.Period}
	if e.PlanID != "" {
		if _, err := uc.plans.FindByID(ctx, repository.NoTX, e.PlanID); err == nil {
			upd.PlanID = &e.PlanID
		} else {
			uc.log.Warn().Err(err).Str("plan_id", e.PlanID).Msg("activation names an unknown plan; keeping current plan")
		}
	}

	var (
		sub *model.Subscription
		err error
	)
	if e.WorkspaceID != "" {
		sub, err = uc.subs.LatestByWorkspace(ctx, repository.NoTX, e.WorkspaceID)
		if errors.Is(err, domain.ErrNotFound) {
			return uc.unmatched(e, e.WorkspaceID), nil
		}
		if err != nil {
			return "", fmt.Errorf("load subscription: %w", err)
		}
		provider := e.EventProvider()
		upd.PaymentProvider = &provider
		if e.ProviderSubscriptionID != "" {
			upd.ProviderSubscriptionID = &e.ProviderSubscriptionID
		}
		sub, err = uc.subs.Update(ctx, repository.NoTX, sub.ID, upd)
	} else {
		sub, err = uc.subs.UpdateByProviderSubscriptionID(ctx, repository.NoTX, e.ProviderSubscriptionID, upd)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return uc.unmatched(e, e.ProviderSubscriptionID), nil
	}
	if err != nil {
		return "", fmt.Errorf("activate subscription: %w", err)
	}

	uc.log.Info().Str("workspace_id", sub.WorkspaceID).Str("provider", string(e.EventProvider())).Msg("subscription activated")
	uc.notify.WorkspaceEvent(ctx, adapter.NotifySubscriptionActivated, sub.WorkspaceID,
		"Your subscription is active", "Thanks for subscribing. Your workspace is now on a paid plan.")
	return OutcomeApplied, nil
}

func (uc *reconcileUC) charged(ctx context.Context, e *model.SubscriptionCharged) (ReconcileOutcome, error) {
	var (
		sub *model.Subscription
		err error
	)
	if e.Period != nil {
		sub, err = uc.subs.UpdateByProviderSubscriptionID(ctx, repository.NoTX, e.ProviderSubscriptionID, model.SubscriptionUpdate{Period: e.Period})
	} else {
		sub, err = uc.subs.FindByProviderSubscriptionID(ctx, repository.NoTX, e.ProviderSubscriptionID)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return uc.unmatched(e, e.ProviderSubscriptionID), nil
	}
	if err != nil {
		return "", fmt.Errorf("renew subscription: %w", err)
	}
	if e.Payment == nil {
		return OutcomeApplied, nil
	}
	return uc.record(ctx, sub, e.EventProvider(), *e.Payment)
}

func (uc *reconcileUC) cancelled(ctx context.Context, e *model.SubscriptionCancelled) (ReconcileOutcome, error) {
	status := model.SubscriptionStatusCancelled
	upd := model.SubscriptionUpdate{Status: &status}
	if e.AtPeriodEnd {
		flag := true
		upd.CancelAtPeriodEnd = &flag
	}
	sub, err := uc.subs.UpdateByProviderSubscriptionID(ctx, repository.NoTX, e.ProviderSubscriptionID, upd)
	if errors.Is(err, domain.ErrNotFound) {
		return uc.unmatched(e, e.ProviderSubscriptionID), nil
	}
	if err != nil {
		return "", fmt.Errorf("cancel subscription: %w", err)
	}
	uc.log.Info().Str("workspace_id", sub.WorkspaceID).Str("provider", string(e.EventProvider())).Msg("subscription cancelled")
	uc.notify.WorkspaceEvent(ctx, adapter.NotifySubscriptionCancelled, sub.WorkspaceID,
		"Your subscription has been cancelled", "Your subscription was cancelled by the payment provider.")
	return OutcomeApplied, nil
}

func (uc *reconcileUC) paymentCaptured(ctx context.Context, e *model.PaymentCaptured) (ReconcileOutcome, error) {
	if e.WorkspaceID == "" {
		return OutcomeIgnored, nil
	}
	sub, err := uc.subs.LatestByWorkspace(ctx, repository.NoTX, e.WorkspaceID)
	if errors.Is(err, domain.ErrNotFound) {
		return uc.unmatched(e, e.WorkspaceID), nil
	}
	if err != nil {
		return "", fmt.Errorf("load subscription: %w", err)
	}
	p := e.Payment
	if p.Description == "" {
		p.Description = "Payment"
		if e.PlanSlug != "" {
			p.Description = fmt.Sprintf("Payment for %s plan", e.PlanSlug)
		}
	}
	return uc.record(ctx, sub, e.EventProvider(), p)
}

// record appends to the payment ledger. A redelivered payment hits the unique
// (provider, provider_payment_id) index and is acknowledged as a duplicate.
func (uc *reconcileUC) record(ctx context.Context, sub *model.Subscription, provider model.PaymentProvider, p model.CapturedPayment) (ReconcileOutcome, error) {
	rec, err := model.NewPaymentRecord(uuid.NewString(), sub, provider, p, uc.now())
	if err != nil {
		return "", fmt.Errorf("build payment record: %w", err)
	}
	err = uc.payments.Insert(ctx, repository.NoTX, rec)
	if errors.Is(err, domain.ErrAlreadyExists) {
		uc.log.Debug().Str("provider", string(provider)).Str("provider_payment_id", p.ProviderPaymentID).Msg("duplicate payment ignored")
		return OutcomeDuplicate, nil
	}
	if err != nil {
		return "", fmt.Errorf("insert payment: %w", err)
	}
	uc.log.Info().Str("workspace_id", rec.WorkspaceID).Int64("amount", rec.Amount).Str("currency", rec.Currency).Msg("payment recorded")
	uc.notify.WorkspaceEvent(ctx, adapter.NotifyPaymentReceived, rec.WorkspaceID, "Payment received",
		fmt.Sprintf("We received your payment of %s %s. Thank you!", formatMinor(rec.Amount), rec.Currency))
	return OutcomeApplied, nil
}

func (uc *reconcileUC) unmatched(ev model.BillingEvent, key string) ReconcileOutcome {
	uc.log.Warn().Str("provider", string(ev.EventProvider())).Str("event", ev.EventType()).Str("key", key).Msg("no subscription matched event")
	return OutcomeUnmatched
}

// formatMinor renders a smallest-unit amount with two decimals.
func formatMinor(amount int64) string {
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}
