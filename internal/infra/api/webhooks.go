package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"workspace-billing/internal/config"
	"workspace-billing/internal/domain/model"
	"workspace-billing/internal/infra/api/apiv1"
	"workspace-billing/internal/infra/logging"
	"workspace-billing/internal/infra/metrics"
	"workspace-billing/internal/infra/payment/razorpay"
	"workspace-billing/internal/infra/payment/stripe"
	"workspace-billing/internal/usecase"
)

const (
	msgMissingSignature = "Missing signature header"
	msgNoSecret         = "Webhook secret not configured"
	msgInvalidSignature = "Invalid signature"
	msgInvalidPayload   = "Invalid payload"
	msgInternal         = "Internal server error"
)

// WebhookHandler verifies provider deliveries and hands typed events to reconciliation.
// Secrets are read per request; a missing secret is a 500, not a startup failure.
type WebhookHandler struct {
	reconcile usecase.ReconcileUseCase
	billing   config.BillingConfig
	maxBytes  int64
	log       *zerolog.Logger
}

func NewWebhookHandler(reconcile usecase.ReconcileUseCase, billing config.BillingConfig, maxBytes int64, logger *zerolog.Logger) *WebhookHandler {
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	l := logger.With().Str("component", "webhooks").Logger()
	return &WebhookHandler{reconcile: reconcile, billing: billing, maxBytes: maxBytes, log: &l}
}

func (h *WebhookHandler) Razorpay(w http.ResponseWriter, r *http.Request) {
	const provider = string(model.ProviderRazorpay)
	defer observe(provider, time.Now())
	ctx := logging.WithProvider(r.Context(), provider)
	l := logging.With(ctx, h.log)

	body, ok := h.readBody(w, r, provider, l)
	if !ok {
		return
	}
	sig := r.Header.Get(razorpay.SignatureHeader)
	if sig == "" {
		reject(w, provider, "missing_signature", http.StatusBadRequest, msgMissingSignature)
		return
	}
	secret := h.billing.Razorpay.WebhookSecret
	if secret == "" {
		l.Error().Msg("razorpay webhook secret is not configured")
		reject(w, provider, "no_secret", http.StatusInternalServerError, msgNoSecret)
		return
	}
	if !razorpay.VerifyWebhookSignature(body, sig, secret) {
		l.Warn().Msg("razorpay signature mismatch")
		reject(w, provider, "bad_signature", http.StatusBadRequest, msgInvalidSignature)
		return
	}
	ev, err := razorpay.ParseEvent(body)
	if err != nil {
		l.Warn().Err(err).Msg("razorpay payload rejected")
		reject(w, provider, "bad_payload", http.StatusBadRequest, msgInvalidPayload)
		return
	}
	h.apply(ctx, w, l, ev)
}

func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	const provider = string(model.ProviderStripe)
	defer observe(provider, time.Now())
	ctx := logging.WithProvider(r.Context(), provider)
	l := logging.With(ctx, h.log)

	body, ok := h.readBody(w, r, provider, l)
	if !ok {
		return
	}
	sig := r.Header.Get(stripe.SignatureHeader)
	if sig == "" {
		reject(w, provider, "missing_signature", http.StatusBadRequest, msgMissingSignature)
		return
	}
	secret := h.billing.Stripe.WebhookSecret
	if secret == "" {
		l.Error().Msg("stripe webhook secret is not configured")
		reject(w, provider, "no_secret", http.StatusInternalServerError, msgNoSecret)
		return
	}
	raw, err := stripe.ConstructEvent(body, sig, secret)
	if err != nil {
		l.Warn().Err(err).Msg("stripe signature rejected")
		reject(w, provider, "bad_signature", http.StatusBadRequest, msgInvalidSignature)
		return
	}
	ev, err := stripe.ParseEvent(raw)
	if err != nil {
		l.Warn().Err(err).Str("event_id", raw.ID).Msg("stripe payload rejected")
		reject(w, provider, "bad_payload", http.StatusBadRequest, msgInvalidPayload)
		return
	}
	el := l.With().Str("event_id", raw.ID).Logger()
	h.apply(ctx, w, &el, ev)
}

func (h *WebhookHandler) readBody(w http.ResponseWriter, r *http.Request, provider string, l *zerolog.Logger) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			reject(w, provider, "too_large", http.StatusRequestEntityTooLarge, "Payload too large")
			return nil, false
		}
		l.Warn().Err(err).Msg("read webhook body")
		reject(w, provider, "bad_body", http.StatusBadRequest, msgInvalidPayload)
		return nil, false
	}
	return body, true
}

func (h *WebhookHandler) apply(ctx context.Context, w http.ResponseWriter, l *zerolog.Logger, ev model.BillingEvent) {
	provider := string(ev.EventProvider())
	outcome, err := h.reconcile.Apply(ctx, ev)
	if err != nil {
		metrics.IncWebhookEvent(provider, ev.EventType(), "error")
		l.Error().Err(err).Str("event", ev.EventType()).Msg("webhook reconciliation failed")
		apiv1.WriteError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	metrics.IncWebhookEvent(provider, ev.EventType(), string(outcome))
	l.Info().Str("event", ev.EventType()).Str("outcome", string(outcome)).Msg("webhook processed")
	apiv1.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func reject(w http.ResponseWriter, provider, reason string, code int, msg string) {
	metrics.IncWebhookRejected(provider, reason)
	apiv1.WriteError(w, code, msg)
}

func observe(provider string, start time.Time) {
	metrics.ObserveWebhook(provider, time.Since(start))
}
