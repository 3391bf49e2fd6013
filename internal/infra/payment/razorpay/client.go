package razorpay

import (
	"context"
	"errors"
	"fmt"

	rzp "github.com/razorpay/razorpay-go"
	"github.com/rs/zerolog"

	"workspace-billing/internal/config"
	"workspace-billing/internal/domain/model"
	"workspace-billing/internal/domain/ports/adapter"
	"workspace-billing/internal/infra/metrics"
)

var _ adapter.BillingProvider = (*Client)(nil)

// resource is the call shape shared by the razorpay-go plan, customer and subscription resources.
type resource interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type subscriptionResource interface {
	resource
	Update(subscriptionID string, data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Cancel(subscriptionID string, data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Client is the Razorpay BillingProvider. It bills in INR.
type Client struct {
	plans         resource
	customers     resource
	subscriptions subscriptionResource
	totalCount    int
	log           zerolog.Logger
}

func NewClient(cfg config.RazorpayConfig, logger *zerolog.Logger) (*Client, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, errors.New("razorpay key id and secret are required")
	}
	sdk := rzp.NewClient(cfg.KeyID, cfg.KeySecret)
	return newClient(sdk.Plan, sdk.Customer, sdk.Subscription, cfg.TotalCount, logger), nil
}

func newClient(plans, customers resource, subs subscriptionResource, totalCount int, logger *zerolog.Logger) *Client {
	if totalCount <= 0 {
		totalCount = 120
	}
	return &Client{
		plans:         plans,
		customers:     customers,
		subscriptions: subs,
		totalCount:    totalCount,
		log:           logger.With().Str("component", "razorpay").Logger(),
	}
}

func (c *Client) Name() model.PaymentProvider { return model.ProviderRazorpay }

// CreatePlan registers a monthly plan priced in paise.
func (c *Client) CreatePlan(ctx context.Context, plan *model.Plan) (string, error) {
	resp, err := c.plans.Create(map[string]interface{}{
		"period":   "monthly",
		"interval": 1,
		"item": map[string]interface{}{
			"name":     plan.Name,
			"amount":   plan.PriceINR * 100,
			"currency": model.CurrencyINR,
		},
		"notes": map[string]interface{}{notePlanID: plan.ID, notePlanSlug: plan.Slug},
	}, nil)
	id, err := c.idFrom("create_plan", resp, err)
	if err != nil {
		return "", err
	}
	c.log.Info().Str("plan", plan.Slug).Str("razorpay_plan_id", id).Msg("razorpay plan created")
	return id, nil
}

func (c *Client) CreateCustomer(ctx context.Context, workspaceID, email, name string) (string, error) {
	resp, err := c.customers.Create(map[string]interface{}{
		"name":          name,
		"email":         email,
		"fail_existing": "0",
		"notes":         map[string]interface{}{noteWorkspaceID: workspaceID},
	}, nil)
	return c.idFrom("create_customer", resp, err)
}

// StartCheckout creates the subscription up front and returns its hosted payment link.
func (c *Client) StartCheckout(ctx context.Context, req adapter.CheckoutRequest) (*adapter.CheckoutResult, error) {
	data := map[string]interface{}{
		"plan_id":         req.ProviderPlanID,
		"total_count":     c.totalCount,
		"customer_notify": 1,
		"notes": map[string]interface{}{
			noteWorkspaceID: req.WorkspaceID,
			notePlanID:      req.Plan.ID,
			notePlanSlug:    req.Plan.Slug,
		},
	}
	if req.CustomerEmail != "" {
		customerID, err := c.CreateCustomer(ctx, req.WorkspaceID, req.CustomerEmail, req.CustomerName)
		if err != nil {
			return nil, err
		}
		data["customer_id"] = customerID
	}

	resp, err := c.subscriptions.Create(data, nil)
	id, err := c.idFrom("checkout", resp, err)
	if err != nil {
		return nil, err
	}
	url, _ := resp["short_url"].(string)
	return &adapter.CheckoutResult{URL: url, ProviderSubscriptionID: id}, nil
}

// UpdateSubscription switches the plan immediately.
func (c *Client) UpdateSubscription(ctx context.Context, providerSubID, providerPlanID string) error {
	_, err := c.subscriptions.Update(providerSubID, map[string]interface{}{
		"plan_id":            providerPlanID,
		"schedule_change_at": "now",
	}, nil)
	metrics.IncProviderCall(string(model.ProviderRazorpay), "update_subscription", err)
	if err != nil {
		return fmt.Errorf("razorpay update subscription %s: %w", providerSubID, err)
	}
	return nil
}

// CancelSubscription cancels at the end of the current cycle.
func (c *Client) CancelSubscription(ctx context.Context, providerSubID string) error {
	_, err := c.subscriptions.Cancel(providerSubID, map[string]interface{}{"cancel_at_cycle_end": 1}, nil)
	metrics.IncProviderCall(string(model.ProviderRazorpay), "cancel_subscription", err)
	if err != nil {
		return fmt.Errorf("razorpay cancel subscription %s: %w", providerSubID, err)
	}
	return nil
}

func (c *Client) idFrom(op string, resp map[string]interface{}, err error) (string, error) {
	metrics.IncProviderCall(string(model.ProviderRazorpay), op, err)
	if err != nil {
		return "", fmt.Errorf("razorpay %s: %w", op, err)
	}
	id, _ := resp["id"].(string)
	if id == "" {
		return "", fmt.Errorf("razorpay %s: response without id", op)
	}
	return id, nil
}
