package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"workspace-billing/internal/config"
	"workspace-billing/internal/domain/model"
	"workspace-billing/internal/domain/ports/adapter"
	"workspace-billing/internal/infra/metrics"
)

var _ adapter.BillingProvider = (*Client)(nil)

type customerAPI interface {
	New(params *stripelib.CustomerParams) (*stripelib.Customer, error)
}

type priceAPI interface {
	New(params *stripelib.PriceParams) (*stripelib.Price, error)
}

type checkoutAPI interface {
	New(params *stripelib.CheckoutSessionParams) (*stripelib.CheckoutSession, error)
}

type subscriptionAPI interface {
	Get(id string, params *stripelib.SubscriptionParams) (*stripelib.Subscription, error)
	Update(id string, params *stripelib.SubscriptionParams) (*stripelib.Subscription, error)
}

// Client is the Stripe BillingProvider. It bills in USD.
type Client struct {
	customers     customerAPI
	prices        priceAPI
	sessions      checkoutAPI
	subscriptions subscriptionAPI
	log           zerolog.Logger
}

func NewClient(cfg config.StripeConfig, logger *zerolog.Logger) (*Client, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	sc := client.New(cfg.SecretKey, nil)
	return newClient(sc.Customers, sc.Prices, sc.CheckoutSessions, sc.Subscriptions, logger), nil
}

func newClient(customers customerAPI, prices priceAPI, sessions checkoutAPI, subs subscriptionAPI, logger *zerolog.Logger) *Client {
	return &Client{
		customers:     customers,
		prices:        prices,
		sessions:      sessions,
		subscriptions: subs,
		log:           logger.With().Str("component", "stripe").Logger(),
	}
}

func (c *Client) Name() model.PaymentProvider { return model.ProviderStripe }

// CreatePlan creates a monthly recurring USD price with an inline product.
func (c *Client) CreatePlan(ctx context.Context, plan *model.Plan) (string, error) {
	params := &stripelib.PriceParams{
		Currency:   stripelib.String(string(stripelib.CurrencyUSD)),
		UnitAmount: stripelib.Int64(plan.PriceUSD * 100),
		Recurring: &stripelib.PriceRecurringParams{
			Interval: stripelib.String(string(stripelib.PriceRecurringIntervalMonth)),
		},
		ProductData: &stripelib.PriceProductDataParams{Name: stripelib.String(plan.Name)},
		LookupKey:   stripelib.String("plan_" + plan.Slug + "_monthly"),
	}
	params.Context = ctx
	params.AddMetadata(metaPlanID, plan.ID)

	price, err := c.prices.New(params)
	metrics.IncProviderCall(string(model.ProviderStripe), "create_plan", err)
	if err != nil {
		return "", fmt.Errorf("stripe create price: %w", err)
	}
	c.log.Info().Str("plan", plan.Slug).Str("stripe_price_id", price.ID).Msg("stripe price created")
	return price.ID, nil
}

func (c *Client) CreateCustomer(ctx context.Context, workspaceID, email, name string) (string, error) {
	params := &stripelib.CustomerParams{
		Email: stripelib.String(email),
		Name:  stripelib.String(name),
	}
	params.Context = ctx
	params.AddMetadata(metaWorkspaceID, workspaceID)

	cust, err := c.customers.New(params)
	metrics.IncProviderCall(string(model.ProviderStripe), "create_customer", err)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return cust.ID, nil
}

// StartCheckout opens a subscription-mode Checkout Session. The subscription id is
// linked later by checkout.session.completed through the workspace metadata.
func (c *Client) StartCheckout(ctx context.Context, req adapter.CheckoutRequest) (*adapter.CheckoutResult, error) {
	params := &stripelib.CheckoutSessionParams{
		Mode: stripelib.String(string(stripelib.CheckoutSessionModeSubscription)),
		LineItems: []*stripelib.CheckoutSessionLineItemParams{
			{Price: stripelib.String(req.ProviderPlanID), Quantity: stripelib.Int64(1)},
		},
		SuccessURL:        stripelib.String(req.SuccessURL),
		CancelURL:         stripelib.String(req.CancelURL),
		ClientReferenceID: stripelib.String(req.WorkspaceID),
		SubscriptionData: &stripelib.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{metaWorkspaceID: req.WorkspaceID, metaPlanID: req.Plan.ID},
		},
	}
	params.Context = ctx
	params.AddMetadata(metaWorkspaceID, req.WorkspaceID)
	params.AddMetadata(metaPlanID, req.Plan.ID)

	if req.CustomerEmail != "" {
		customerID, err := c.CreateCustomer(ctx, req.WorkspaceID, req.CustomerEmail, req.CustomerName)
		if err != nil {
			return nil, err
		}
		params.Customer = stripelib.String(customerID)
	}

	sess, err := c.sessions.New(params)
	metrics.IncProviderCall(string(model.ProviderStripe), "checkout", err)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	return &adapter.CheckoutResult{URL: sess.URL, SessionID: sess.ID}, nil
}

// UpdateSubscription swaps the price on the subscription's single item, with proration.
func (c *Client) UpdateSubscription(ctx context.Context, providerSubID, providerPlanID string) error {
	getParams := &stripelib.SubscriptionParams{}
	getParams.Context = ctx
	sub, err := c.subscriptions.Get(providerSubID, getParams)
	if err != nil {
		metrics.IncProviderCall(string(model.ProviderStripe), "update_subscription", err)
		return fmt.Errorf("stripe get subscription %s: %w", providerSubID, err)
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return fmt.Errorf("stripe subscription %s has no items", providerSubID)
	}

	params := &stripelib.SubscriptionParams{
		Items: []*stripelib.SubscriptionItemsParams{
			{ID: stripelib.String(sub.Items.Data[0].ID), Price: stripelib.String(providerPlanID)},
		},
		ProrationBehavior: stripelib.String("create_prorations"),
	}
	params.Context = ctx
	_, err = c.subscriptions.Update(providerSubID, params)
	metrics.IncProviderCall(string(model.ProviderStripe), "update_subscription", err)
	if err != nil {
		return fmt.Errorf("stripe update subscription %s: %w", providerSubID, err)
	}
	return nil
}

// CancelSubscription sets cancel_at_period_end; customer.subscription.deleted follows at period end.
func (c *Client) CancelSubscription(ctx context.Context, providerSubID string) error {
	params := &stripelib.SubscriptionParams{CancelAtPeriodEnd: stripelib.Bool(true)}
	params.Context = ctx
	_, err := c.subscriptions.Update(providerSubID, params)
	metrics.IncProviderCall(string(model.ProviderStripe), "cancel_subscription", err)
	if err != nil {
		return fmt.Errorf("stripe cancel subscription %s: %w", providerSubID, err)
	}
	return nil
}
