//go:build !integration

package razorpay

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-billing/internal/domain/model"
	"workspace-billing/internal/domain/ports/adapter"
)

func TestVerifyWebhookSignature(t *testing.T) {
	body := []byte(`{"event":"subscription.activated"}`)
	good := Sign(body, "whsec")

	cases := map[string]struct {
		body      []byte
		signature string
		secret    string
		want      bool
	}{
		"valid":           {body, good, "whsec", true},
		"uppercase hex":   {body, strings.ToUpper(good), "whsec", true},
		"wrong secret":    {body, good, "other", false},
		"tampered body":   {[]byte(`{"event":"subscription.cancelled"}`), good, "whsec", false},
		"empty signature": {body, "", "whsec", false},
		"not hex":         {body, "zz-not-hex", "whsec", false},
		"truncated":       {body, good[:10], "whsec", false},
		"too long":        {body, good + "00", "whsec", false},
		"empty secret":    {body, good, "", false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, VerifyWebhookSignature(tc.body, tc.signature, tc.secret))
		})
	}
}

func TestParseEvent(t *testing.T) {
	t.Run("subscription.activated", func(t *testing.T) {
		ev, err := ParseEvent([]byte(`{"event":"subscription.activated","payload":{"subscription":{"entity":{
			"id":"sub_X","current_start":1700000000,"current_end":1702592000,"notes":{"plan_id":"plan-pro"}}}}}`))
		require.NoError(t, err)
		act, ok := ev.(*model.SubscriptionActivated)
		require.True(t, ok, "got %T", ev)
		assert.Equal(t, "sub_X", act.ProviderSubscriptionID)
		assert.Equal(t, "plan-pro", act.PlanID)
		assert.Empty(t, act.WorkspaceID)
		require.NotNil(t, act.Period)
		assert.Equal(t, int64(1702592000), act.Period.End.Unix())
	})

	t.Run("subscription.charged with payment and empty notes", func(t *testing.T) {
		ev, err := ParseEvent([]byte(`{"event":"subscription.charged","payload":{
			"subscription":{"entity":{"id":"sub_X","current_start":100,"current_end":200,"notes":[]}},
			"payment":{"entity":{"id":"pay_1","amount":99900,"currency":"INR","notes":[]}}}}`))
		require.NoError(t, err)
		ch := ev.(*model.SubscriptionCharged)
		require.NotNil(t, ch.Payment)
		assert.Equal(t, "pay_1", ch.Payment.ProviderPaymentID)
		assert.Equal(t, int64(99900), ch.Payment.Amount)
		assert.Equal(t, "Subscription renewal", ch.Payment.Description)
		assert.Equal(t, int64(200), ch.Period.End.Unix())
	})

	t.Run("subscription.charged without payment", func(t *testing.T) {
		ev, err := ParseEvent([]byte(`{"event":"subscription.charged","payload":{"subscription":{"entity":{"id":"sub_X"}}}}`))
		require.NoError(t, err)
		ch := ev.(*model.SubscriptionCharged)
		assert.Nil(t, ch.Payment)
		assert.Nil(t, ch.Period)
	})

	t.Run("subscription.cancelled", func(t *testing.T) {
		ev, err := ParseEvent([]byte(`{"event":"subscription.cancelled","payload":{"subscription":{"entity":{"id":"sub_X"}}}}`))
		require.NoError(t, err)
		c := ev.(*model.SubscriptionCancelled)
		assert.Equal(t, "sub_X", c.ProviderSubscriptionID)
		assert.True(t, c.AtPeriodEnd)
	})

	t.Run("payment.captured reads notes", func(t *testing.T) {
		ev, err := ParseEvent([]byte(`{"event":"payment.captured","payload":{"payment":{"entity":{
			"id":"pay_9","amount":49900,"currency":"INR","notes":{"workspace_id":"ws-1","plan_slug":"pro","seats":3}}}}}`))
		require.NoError(t, err)
		pc := ev.(*model.PaymentCaptured)
		assert.Equal(t, "ws-1", pc.WorkspaceID)
		assert.Equal(t, "pro", pc.PlanSlug)
		assert.Equal(t, "pay_9", pc.Payment.ProviderPaymentID)
	})

	t.Run("unknown event is unrecognized", func(t *testing.T) {
		ev, err := ParseEvent([]byte(`{"event":"order.paid","payload":{}}`))
		require.NoError(t, err)
		_, ok := ev.(*model.UnrecognizedEvent)
		assert.True(t, ok)
		assert.Equal(t, "order.paid", ev.EventType())
	})

	t.Run("malformed", func(t *testing.T) {
		for _, body := range []string{`not json`, `{}`, `{"event":"subscription.activated","payload":{}}`, `{"event":"payment.captured","payload":{}}`} {
			_, err := ParseEvent([]byte(body))
			assert.ErrorIs(t, err, ErrMalformedEvent, body)
		}
	})
}

type fakeResource struct {
	creates  []map[string]interface{}
	updates  []string
	cancels  []string
	resp     map[string]interface{}
	err      error
	lastData map[string]interface{}
}

func (f *fakeResource) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	f.creates = append(f.creates, data)
	return f.resp, f.err
}

func (f *fakeResource) Update(id string, data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	f.updates = append(f.updates, id)
	f.lastData = data
	return f.resp, f.err
}

func (f *fakeResource) Cancel(id string, data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	f.cancels = append(f.cancels, id)
	f.lastData = data
	return f.resp, f.err
}

func testClient(plans, customers, subs *fakeResource) *Client {
	l := zerolog.Nop()
	return newClient(plans, customers, subs, 12, &l)
}

func TestClient_CreatePlan(t *testing.T) {
	plans := &fakeResource{resp: map[string]interface{}{"id": "plan_abc"}}
	c := testClient(plans, &fakeResource{}, &fakeResource{})

	id, err := c.CreatePlan(context.Background(), &model.Plan{ID: "plan-pro", Name: "Pro", Slug: "pro", PriceINR: 999})
	require.NoError(t, err)
	assert.Equal(t, "plan_abc", id)
	item := plans.creates[0]["item"].(map[string]interface{})
	assert.Equal(t, int64(99900), item["amount"], "whole rupees become paise")
	assert.Equal(t, "INR", item["currency"])
}

func TestClient_StartCheckout(t *testing.T) {
	customers := &fakeResource{resp: map[string]interface{}{"id": "cust_1"}}
	subs := &fakeResource{resp: map[string]interface{}{"id": "sub_new", "short_url": "https://rzp.io/i/abc"}}
	c := testClient(&fakeResource{}, customers, subs)

	res, err := c.StartCheckout(context.Background(), adapter.CheckoutRequest{
		WorkspaceID: "ws-1", CustomerEmail: "billing@acme.test", CustomerName: "Acme",
		Plan: &model.Plan{ID: "plan-pro", Slug: "pro"}, ProviderPlanID: "plan_abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "sub_new", res.ProviderSubscriptionID)
	assert.Equal(t, "https://rzp.io/i/abc", res.URL)

	data := subs.creates[0]
	assert.Equal(t, "plan_abc", data["plan_id"])
	assert.Equal(t, "cust_1", data["customer_id"])
	assert.Equal(t, 12, data["total_count"])
	notes := data["notes"].(map[string]interface{})
	assert.Equal(t, "ws-1", notes["workspace_id"])
	assert.Equal(t, "plan-pro", notes["plan_id"])
}

func TestClient_Failures(t *testing.T) {
	boom := errors.New("BAD_REQUEST_ERROR")
	subs := &fakeResource{err: boom}
	c := testClient(&fakeResource{resp: map[string]interface{}{}}, &fakeResource{}, subs)

	_, err := c.CreatePlan(context.Background(), &model.Plan{ID: "p", Name: "P"})
	assert.ErrorContains(t, err, "response without id")

	err = c.UpdateSubscription(context.Background(), "sub_1", "plan_new")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "now", subs.lastData["schedule_change_at"])

	err = c.CancelSubscription(context.Background(), "sub_1")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, subs.lastData["cancel_at_cycle_end"])
}
