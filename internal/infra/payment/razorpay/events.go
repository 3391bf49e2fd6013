package razorpay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"workspace-billing/internal/domain/model"
)

const (
	EventSubscriptionActivated = "subscription.activated"
	EventSubscriptionCharged   = "subscription.charged"
	EventSubscriptionCancelled = "subscription.cancelled"
	EventPaymentCaptured       = "payment.captured"

	noteWorkspaceID = "workspace_id"
	notePlanID      = "plan_id"
	notePlanSlug    = "plan_slug"
)

var ErrMalformedEvent = errors.New("malformed razorpay event")

type envelope struct {
	Event   string `json:"event"`
	Payload struct {
		Subscription *struct {
			Entity subscriptionEntity `json:"entity"`
		} `json:"subscription"`
		Payment *struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type subscriptionEntity struct {
	ID           string `json:"id"`
	PlanID       string `json:"plan_id"`
	Status       string `json:"status"`
	CurrentStart *int64 `json:"current_start"`
	CurrentEnd   *int64 `json:"current_end"`
	Notes        notes  `json:"notes"`
}

type paymentEntity struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	Description string `json:"description"`
	Notes       notes  `json:"notes"`
}

// notes is Razorpay's key/value bag. An empty bag arrives as [] rather than {}.
type notes map[string]string

func (n *notes) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] == '[' || bytes.Equal(b, []byte("null")) {
		*n = notes{}
		return nil
	}
	raw := map[string]any{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(notes, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case string:
			out[k] = t
		case nil:
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	*n = out
	return nil
}

// ParseEvent maps a verified webhook body onto a billing event.
func ParseEvent(body []byte) (model.BillingEvent, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: missing event", ErrMalformedEvent)
	}

	sub := env.Payload.Subscription
	switch env.Event {
	case EventSubscriptionActivated:
		if sub == nil || sub.Entity.ID == "" {
			return nil, fmt.Errorf("%w: %s without subscription", ErrMalformedEvent, env.Event)
		}
		return model.NewSubscriptionActivated(model.ProviderRazorpay, env.Event, sub.Entity.ID, "",
			sub.Entity.Notes[notePlanID], sub.Entity.period()), nil

	case EventSubscriptionCharged:
		if sub == nil || sub.Entity.ID == "" {
			return nil, fmt.Errorf("%w: %s without subscription", ErrMalformedEvent, env.Event)
		}
		var payment *model.CapturedPayment
		if p := env.Payload.Payment; p != nil && p.Entity.ID != "" {
			payment = &model.CapturedPayment{
				ProviderPaymentID: p.Entity.ID,
				Amount:            p.Entity.Amount,
				Currency:          p.Entity.Currency,
				Description:       "Subscription renewal",
			}
		}
		return model.NewSubscriptionCharged(model.ProviderRazorpay, env.Event, sub.Entity.ID, sub.Entity.period(), payment), nil

	case EventSubscriptionCancelled:
		if sub == nil || sub.Entity.ID == "" {
			return nil, fmt.Errorf("%w: %s without subscription", ErrMalformedEvent, env.Event)
		}
		return model.NewSubscriptionCancelled(model.ProviderRazorpay, env.Event, sub.Entity.ID, true), nil

	case EventPaymentCaptured:
		p := env.Payload.Payment
		if p == nil || p.Entity.ID == "" {
			return nil, fmt.Errorf("%w: %s without payment", ErrMalformedEvent, env.Event)
		}
		return model.NewPaymentCaptured(model.ProviderRazorpay, env.Event,
			p.Entity.Notes[noteWorkspaceID], p.Entity.Notes[notePlanSlug],
			model.CapturedPayment{
				ProviderPaymentID: p.Entity.ID,
				Amount:            p.Entity.Amount,
				Currency:          p.Entity.Currency,
				Description:       p.Entity.Description,
			}), nil

	default:
		return model.NewUnrecognizedEvent(model.ProviderRazorpay, env.Event), nil
	}
}

func (s subscriptionEntity) period() *model.BillingPeriod {
	if s.CurrentStart == nil || s.CurrentEnd == nil {
		return nil
	}
	return model.PeriodFromUnix(*s.CurrentStart, *s.CurrentEnd)
}
