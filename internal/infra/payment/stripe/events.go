package stripe

import (
	"encoding/json"
	"errors"
	"fmt"

	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"workspace-billing/internal/domain/model"
)

const (
	SignatureHeader = "Stripe-Signature"

	EventCheckoutCompleted    = "checkout.session.completed"
	EventInvoicePaid          = "invoice.paid"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
	metaWorkspaceID           = "workspace_id"
	metaPlanID                = "plan_id"
	invoicePaymentDescription = "Subscription payment"
)

var (
	// ErrInvalidSignature wraps every verification failure raised by the SDK.
	ErrInvalidSignature = errors.New("invalid stripe signature")
	ErrMalformedEvent   = errors.New("malformed stripe event")
)

// ConstructEvent verifies the signature header and timestamp tolerance, then returns the event.
func ConstructEvent(payload []byte, header, secret string) (stripelib.Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripelib.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return ev, nil
}

type checkoutSession struct {
	ID                string            `json:"id"`
	Subscription      stringOrObject    `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

type invoice struct {
	ID            string         `json:"id"`
	Subscription  stringOrObject `json:"subscription"`
	PaymentIntent stringOrObject `json:"payment_intent"`
	AmountPaid    int64          `json:"amount_paid"`
	Currency      string         `json:"currency"`
	PeriodStart   int64          `json:"period_start"`
	PeriodEnd     int64          `json:"period_end"`
	Parent        *struct {
		SubscriptionDetails *struct {
			Subscription stringOrObject `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	Lines struct {
		Data []struct {
			Period struct {
				Start int64 `json:"start"`
				End   int64 `json:"end"`
			} `json:"period"`
		} `json:"data"`
	} `json:"lines"`
}

type subscription struct {
	ID string `json:"id"`
}

// stringOrObject accepts either an id or an expanded object carrying one.
type stringOrObject string

func (s *stringOrObject) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	var id string
	if err := json.Unmarshal(b, &id); err == nil {
		*s = stringOrObject(id)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*s = stringOrObject(obj.ID)
	return nil
}

// ParseEvent maps a verified Stripe event onto a billing event.
func ParseEvent(ev stripelib.Event) (model.BillingEvent, error) {
	typ := string(ev.Type)
	if ev.Data == nil {
		return nil, fmt.Errorf("%w: %s without data", ErrMalformedEvent, typ)
	}

	switch typ {
	case EventCheckoutCompleted:
		var s checkoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("%w: decode checkout.session: %v", ErrMalformedEvent, err)
		}
		workspaceID := s.Metadata[metaWorkspaceID]
		if workspaceID == "" {
			workspaceID = s.ClientReferenceID
		}
		return model.NewSubscriptionActivated(model.ProviderStripe, typ, string(s.Subscription), workspaceID, s.Metadata[metaPlanID], nil), nil

	case EventInvoicePaid:
		var inv invoice
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("%w: decode invoice: %v", ErrMalformedEvent, err)
		}
		subID := inv.subscriptionID()
		if subID == "" {
			return model.NewUnrecognizedEvent(model.ProviderStripe, typ), nil
		}
		paymentID := string(inv.PaymentIntent)
		if paymentID == "" {
			paymentID = inv.ID
		}
		return model.NewSubscriptionCharged(model.ProviderStripe, typ, subID, inv.period(), &model.CapturedPayment{
			ProviderPaymentID: paymentID,
			Amount:            inv.AmountPaid,
			Currency:          inv.Currency,
			Description:       invoicePaymentDescription,
		}), nil

	case EventSubscriptionDeleted:
		var s subscription
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil || s.ID == "" {
			return nil, fmt.Errorf("%w: decode subscription", ErrMalformedEvent)
		}
		return model.NewSubscriptionCancelled(model.ProviderStripe, typ, s.ID, false), nil

	default:
		return model.NewUnrecognizedEvent(model.ProviderStripe, typ), nil
	}
}

// subscriptionID reads the top-level field of older API versions, then the invoice parent.
func (inv invoice) subscriptionID() string {
	if inv.Subscription != "" {
		return string(inv.Subscription)
	}
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil {
		return string(inv.Parent.SubscriptionDetails.Subscription)
	}
	return ""
}

// period prefers the subscription line's service period over the invoice's own window.
func (inv invoice) period() *model.BillingPeriod {
	if len(inv.Lines.Data) > 0 && inv.Lines.Data[0].Period.End > 0 {
		p := inv.Lines.Data[0].Period
		return model.PeriodFromUnix(p.Start, p.End)
	}
	if inv.PeriodEnd > 0 {
		return model.PeriodFromUnix(inv.PeriodStart, inv.PeriodEnd)
	}
	return nil
}
