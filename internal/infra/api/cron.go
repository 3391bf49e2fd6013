package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/rs/zerolog"

	"workspace-billing/internal/infra/api/apiv1"
	"workspace-billing/internal/infra/logging"
	"workspace-billing/internal/infra/metrics"
	"workspace-billing/internal/usecase"
)

const cronSecretHeader = "X-Cron-Secret"

// CronHandler lets an external scheduler trigger the trial expiry sweep.
type CronHandler struct {
	status usecase.StatusUseCase
	secret string
	batch  int
	log    *zerolog.Logger
}

func NewCronHandler(status usecase.StatusUseCase, secret string, batch int, logger *zerolog.Logger) *CronHandler {
	l := logger.With().Str("component", "cron").Logger()
	return &CronHandler{status: status, secret: secret, batch: batch, log: &l}
}

func (h *CronHandler) ExpireTrials(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), h.log)
	if h.secret == "" {
		l.Error().Msg("cron secret is not configured")
		apiv1.WriteError(w, http.StatusInternalServerError, "Cron secret not configured")
		return
	}
	got := r.Header.Get(cronSecretHeader)
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		apiv1.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	n, err := h.status.ExpireLapsedTrials(r.Context(), h.batch)
	if err != nil {
		metrics.IncJob("expire_trials_cron", "error")
		l.Error().Err(err).Int("expired", n).Msg("trial sweep failed")
		apiv1.WriteError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	metrics.IncJob("expire_trials_cron", "ok")
	metrics.IncTrialsExpired("cron", n)
	l.Info().Int("expired", n).Msg("trial sweep finished")
	apiv1.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "expired": n})
}
