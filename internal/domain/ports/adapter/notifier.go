package adapter

import "context"

type NotificationKind string

const (
	NotifyTrialStarted          NotificationKind = "trial_started"
	NotifyTrialEnding           NotificationKind = "trial_ending"
	NotifySubscriptionActivated NotificationKind = "subscription_activated"
	NotifySubscriptionCancelled NotificationKind = "subscription_cancelled"
	NotifyPaymentReceived       NotificationKind = "payment_received"
)

type Notification struct {
	Kind        NotificationKind
	WorkspaceID string
	To          string
	Subject     string
	Body        string
}

// Notifier delivers a notification. Callers treat it as fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
