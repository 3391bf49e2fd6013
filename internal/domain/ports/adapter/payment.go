package adapter

import (
	"context"

	"workspace-billing/internal/domain/model"
)

// CheckoutRequest describes a hosted checkout for one workspace and plan.
type CheckoutRequest struct {
	WorkspaceID    string
	CustomerEmail  string
	CustomerName   string
	Plan           *model.Plan
	ProviderPlanID string
	SuccessURL     string
	CancelURL      string
}

// CheckoutResult carries the URL to send the customer to. ProviderSubscriptionID is
// set when the provider creates the subscription up front (Razorpay); Stripe links it
// later through checkout.session.completed.
type CheckoutResult struct {
	URL                    string
	ProviderSubscriptionID string
	SessionID              string
}

// BillingProvider is the hex port for a payment processor. Implementations are
// explicitly constructed handles; failures are returned, never swallowed.
type BillingProvider interface {
	Name() model.PaymentProvider

	// CreatePlan registers the plan's recurring price and returns the provider plan id.
	CreatePlan(ctx context.Context, plan *model.Plan) (string, error)
	CreateCustomer(ctx context.Context, workspaceID, email, name string) (string, error)
	StartCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	UpdateSubscription(ctx context.Context, providerSubID, providerPlanID string) error
	CancelSubscription(ctx context.Context, providerSubID string) error
}
