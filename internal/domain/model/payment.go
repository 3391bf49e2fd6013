package model

import (
	"strings"
	"time"

	"workspace-billing/internal/domain"
)

const PaymentStatusCaptured = "captured"

// PaymentRecord is an append-only ledger entry for a successful charge.
// Amount is in the smallest currency unit exactly as the processor reported it.
type PaymentRecord struct {
	ID                string
	WorkspaceID       string
	SubscriptionID    string
	Amount            int64
	Currency          string // uppercase ISO code
	Provider          PaymentProvider
	ProviderPaymentID string
	Status            string
	Description       string
	CreatedAt         time.Time
}

// CapturedPayment is the provider-reported charge carried by billing events.
type CapturedPayment struct {
	ProviderPaymentID string
	Amount            int64
	Currency          string
	Description       string
}

// NewPaymentRecord builds a captured ledger entry for a subscription.
func NewPaymentRecord(id string, sub *Subscription, provider PaymentProvider, p CapturedPayment, now time.Time) (*PaymentRecord, error) {
	if id == "" || sub == nil || p.ProviderPaymentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &PaymentRecord{
		ID:                id,
		WorkspaceID:       sub.WorkspaceID,
		SubscriptionID:    sub.ID,
		Amount:            p.Amount,
		Currency:          strings.ToUpper(p.Currency),
		Provider:          provider,
		ProviderPaymentID: p.ProviderPaymentID,
		Status:            PaymentStatusCaptured,
		Description:       p.Description,
		CreatedAt:         now.UTC(),
	}, nil
}
