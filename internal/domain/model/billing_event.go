package model

// BillingEvent is a verified, parsed provider notification. The set of variants
// is closed; providers map anything they do not recognize to UnrecognizedEvent.
type BillingEvent interface {
	EventType() string
	EventProvider() PaymentProvider
	isBillingEvent()
}

type eventHeader struct {
	Provider PaymentProvider
	Type     string
}

func (h eventHeader) EventType() string              { return h.Type }
func (h eventHeader) EventProvider() PaymentProvider { return h.Provider }
func (eventHeader) isBillingEvent()                  {}

// SubscriptionActivated moves a subscription to active.
// With WorkspaceID set, the workspace's latest subscription is linked to
// ProviderSubscriptionID; otherwise the row is matched by provider subscription id.
type SubscriptionActivated struct {
	eventHeader
	ProviderSubscriptionID string
	WorkspaceID            string
	// PlanID is the plan chosen at checkout, carried in provider metadata. Empty keeps the current plan.
	PlanID string
	Period *BillingPeriod
}

// SubscriptionCharged reports a renewal: new period and, optionally, the charge.
type SubscriptionCharged struct {
	eventHeader
	ProviderSubscriptionID string
	Period                 *BillingPeriod
	Payment                *CapturedPayment
}

type SubscriptionCancelled struct {
	eventHeader
	ProviderSubscriptionID string
	AtPeriodEnd            bool
}

// PaymentCaptured is a one-off capture attributed to a workspace via provider notes.
type PaymentCaptured struct {
	eventHeader
	WorkspaceID string
	PlanSlug    string
	Payment     CapturedPayment
}

// UnrecognizedEvent is acknowledged without side effects.
type UnrecognizedEvent struct {
	eventHeader
}

func NewSubscriptionActivated(p PaymentProvider, typ, providerSubID, workspaceID, planID string, period *BillingPeriod) *SubscriptionActivated {
	return &SubscriptionActivated{eventHeader{p, typ}, providerSubID, workspaceID, planID, period}
}

func NewSubscriptionCharged(p PaymentProvider, typ, providerSubID string, period *BillingPeriod, payment *CapturedPayment) *SubscriptionCharged {
	return &SubscriptionCharged{eventHeader{p, typ}, providerSubID, period, payment}
}

func NewSubscriptionCancelled(p PaymentProvider, typ, providerSubID string, atPeriodEnd bool) *SubscriptionCancelled {
	return &SubscriptionCancelled{eventHeader{p, typ}, providerSubID, atPeriodEnd}
}

func NewPaymentCaptured(p PaymentProvider, typ, workspaceID, planSlug string, payment CapturedPayment) *PaymentCaptured {
	return &PaymentCaptured{eventHeader{p, typ}, workspaceID, planSlug, payment}
}

func NewUnrecognizedEvent(p PaymentProvider, typ string) *UnrecognizedEvent {
	return &UnrecognizedEvent{eventHeader{p, typ}}
}
