package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"workspace-billing/internal/domain/model"
	"workspace-billing/internal/domain/ports/adapter"
	"workspace-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

type NotificationUseCase interface {
	// WorkspaceEvent notifies the workspace's billing contact. Failures are logged and
	// swallowed; callers never fail on notification problems.
	WorkspaceEvent(ctx context.Context, kind adapter.NotificationKind, workspaceID, subject, body string)

	// NotifyTrialsEnding sends reminders for trials ending in the day-wide window that
	// closes `within` from now. It returns how many reminders were handed to the notifier.
	NotifyTrialsEnding(ctx context.Context, within time.Duration) (int, error)
}

type notificationUC struct {
	subs       repository.SubscriptionRepository
	workspaces repository.WorkspaceRepository
	notifier   adapter.Notifier
	log        *zerolog.Logger
	now        func() time.Time
}

func NewNotificationUseCase(subs repository.SubscriptionRepository, workspaces repository.WorkspaceRepository, notifier adapter.Notifier, logger *zerolog.Logger) *notificationUC {
	l := logger.With().Str("component", "NotificationUseCase").Logger()
	return &notificationUC{subs: subs, workspaces: workspaces, notifier: notifier, log: &l, now: time.Now}
}

func (n *notificationUC) WorkspaceEvent(ctx context.Context, kind adapter.NotificationKind, workspaceID, subject, body string) {
	ws, err := n.workspaces.FindByID(ctx, repository.NoTX, workspaceID)
	if err != nil {
		n.log.Warn().Err(err).Str("workspace_id", workspaceID).Str("kind", string(kind)).Msg("notification skipped: workspace lookup failed")
		return
	}
	if ws.BillingEmail == "" {
		return
	}
	err = n.notifier.Notify(ctx, adapter.Notification{
		Kind:        kind,
		WorkspaceID: workspaceID,
		To:          ws.BillingEmail,
		Subject:     subject,
		Body:        body,
	})
	if err != nil {
		n.log.Warn().Err(err).Str("workspace_id", workspaceID).Str("kind", string(kind)).Msg("notification failed")
	}
}

func (n *notificationUC) NotifyTrialsEnding(ctx context.Context, within time.Duration) (int, error) {
	now := n.now()
	to := now.Add(within)
	from := to.Add(-24 * time.Hour)
	if from.Before(now) {
		from = now
	}
	items, err := n.subs.ListTrialsEndingBetween(ctx, repository.NoTX, from, to)
	if err != nil {
		return 0, fmt.Errorf("list ending trials: %w", err)
	}
	for _, s := range items {
		days := s.TrialDaysRemaining(now)
		n.WorkspaceEvent(ctx, adapter.NotifyTrialEnding, s.WorkspaceID,
			"Your trial is ending soon",
			fmt.Sprintf("Your free trial ends in %d day(s). Choose a plan to keep your workspace running.", days))
	}
	return len(items), nil
}

func trialStartedBody(s *model.Subscription) string {
	return fmt.Sprintf("Your %d-day free trial has started. It ends on %s.",
		int(model.TrialPeriod/(24*time.Hour)), s.TrialEnd.Format("2 Jan 2006"))
}
