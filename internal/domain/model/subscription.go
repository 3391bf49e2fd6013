package model

import (
	"math"
	"time"

	"workspace-billing/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusTrialing  SubscriptionStatus = "trialing"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"

	// SubscriptionStatusNone is only reported by status views when no row exists.
	SubscriptionStatusNone SubscriptionStatus = "none"
)

// SubscriptionStatuses lists the statuses a stored row can have.
func SubscriptionStatuses() []SubscriptionStatus {
	return []SubscriptionStatus{
		SubscriptionStatusTrialing,
		SubscriptionStatusActive,
		SubscriptionStatusCancelled,
		SubscriptionStatusExpired,
	}
}

type PaymentProvider string

const (
	ProviderRazorpay PaymentProvider = "razorpay"
	ProviderStripe   PaymentProvider = "stripe"
)

const (
	CurrencyINR = "INR"
	CurrencyUSD = "USD"
)

// TrialPeriod is the length of the trial granted at workspace creation.
const TrialPeriod = 14 * 24 * time.Hour

// ProviderForCurrency maps a checkout currency to the provider that bills it.
func ProviderForCurrency(currency string) (PaymentProvider, error) {
	switch currency {
	case CurrencyINR:
		return ProviderRazorpay, nil
	case CurrencyUSD:
		return ProviderStripe, nil
	default:
		return "", domain.ErrUnsupportedCurrency
	}
}

// Currency is the currency a provider bills in.
func (p PaymentProvider) Currency() string {
	switch p {
	case ProviderRazorpay:
		return CurrencyINR
	case ProviderStripe:
		return CurrencyUSD
	default:
		return ""
	}
}

// Subscription is a workspace's billing relationship. Only the most recently
// created row per workspace is authoritative.
type Subscription struct {
	ID          string
	WorkspaceID string
	PlanID      string
	Status      SubscriptionStatus

	TrialStart *time.Time
	TrialEnd   *time.Time

	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time

	PaymentProvider        *PaymentProvider
	ProviderSubscriptionID *string
	CancelAtPeriodEnd      bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BillingPeriod is a paid period reported by a provider.
type BillingPeriod struct {
	Start time.Time
	End   time.Time
}

// PeriodFromUnix converts provider unix-second bounds into a period.
func PeriodFromUnix(start, end int64) *BillingPeriod {
	return &BillingPeriod{Start: time.Unix(start, 0).UTC(), End: time.Unix(end, 0).UTC()}
}

// SubscriptionUpdate is a partial mutation; nil fields are left unchanged.
// ProviderSubscriptionID is only written when the row has none yet.
type SubscriptionUpdate struct {
	Status                 *SubscriptionStatus
	Period                 *BillingPeriod
	PaymentProvider        *PaymentProvider
	ProviderSubscriptionID *string
	PlanID                 *string
	CancelAtPeriodEnd      *bool
}

// NewTrialSubscription builds the trialing row created alongside a workspace.
func NewTrialSubscription(id, workspaceID string, plan *Plan, now time.Time) (*Subscription, error) {
	if id == "" || workspaceID == "" || plan.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	start := now.UTC()
	end := start.Add(TrialPeriod)
	return &Subscription{
		ID:          id,
		WorkspaceID: workspaceID,
		PlanID:      plan.ID,
		Status:      SubscriptionStatusTrialing,
		TrialStart:  &start,
		TrialEnd:    &end,
		CreatedAt:   start,
		UpdatedAt:   start,
	}, nil
}

// IsTrialExpired reports whether a trialing subscription has passed its trial end.
// Any other status, or a missing trial end, is "trial not applicable" and yields false.
func (s *Subscription) IsTrialExpired(now time.Time) bool {
	if s == nil || s.Status != SubscriptionStatusTrialing || s.TrialEnd == nil {
		return false
	}
	return now.After(*s.TrialEnd)
}

// TrialDaysRemaining rounds partial days up, so 30 hours left is 2 days.
func (s *Subscription) TrialDaysRemaining(now time.Time) int {
	if s == nil || s.Status != SubscriptionStatusTrialing || s.TrialEnd == nil {
		return 0
	}
	remaining := s.TrialEnd.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(float64(remaining) / float64(24*time.Hour)))
}

// IsActive is computed from data on every call and never trusts a stale stored status.
func (s *Subscription) IsActive(now time.Time) bool {
	if s == nil {
		return false
	}
	switch s.Status {
	case SubscriptionStatusActive:
		return true
	case SubscriptionStatusTrialing:
		return !s.IsTrialExpired(now)
	default:
		return false
	}
}

func (s *Subscription) ProviderSubID() string {
	if s == nil || s.ProviderSubscriptionID == nil {
		return ""
	}
	return *s.ProviderSubscriptionID
}

func (s *Subscription) Provider() PaymentProvider {
	if s == nil || s.PaymentProvider == nil {
		return ""
	}
	return *s.PaymentProvider
}

// StatusView is the computed status of a workspace's subscription.
type StatusView struct {
	IsActive           bool               `json:"is_active"`
	Status             SubscriptionStatus `json:"status"`
	Plan               *Plan              `json:"plan"`
	TrialDaysRemaining int                `json:"trial_days_remaining"`
	IsTrialing         bool               `json:"is_trialing"`
	CancelAtPeriodEnd  bool               `json:"cancel_at_period_end"`
	CurrentPeriodEnd   *time.Time         `json:"current_period_end,omitempty"`
}

// NoSubscriptionView is reported for workspaces without any subscription row.
func NoSubscriptionView() *StatusView {
	return &StatusView{Status: SubscriptionStatusNone}
}

// NewStatusView computes the view for a subscription and its plan at a given time.
func NewStatusView(s *Subscription, plan *Plan, now time.Time) *StatusView {
	return &StatusView{
		IsActive:           s.IsActive(now),
		Status:             s.Status,
		Plan:               plan,
		TrialDaysRemaining: s.TrialDaysRemaining(now),
		IsTrialing:         s.Status == SubscriptionStatusTrialing && !s.IsTrialExpired(now),
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
	}
}
