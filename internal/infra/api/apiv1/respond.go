package apiv1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"workspace-billing/internal/domain"
	"workspace-billing/internal/domain/model"
	"workspace-billing/internal/infra/logging"
)

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, map[string]string{"error": msg})
}

// domainStatus maps expected domain violations to a status code. Order matters:
// the first sentinel the error wraps wins.
var domainStatus = []struct {
	err  error
	code int
}{
	{domain.ErrInvalidArgument, http.StatusBadRequest},
	{domain.ErrUnsupportedCurrency, http.StatusBadRequest},
	{domain.ErrForbidden, http.StatusForbidden},
	{domain.ErrSubscriptionInactive, http.StatusForbidden},
	{domain.ErrLimitReached, http.StatusForbidden},
	{domain.ErrNoSubscription, http.StatusNotFound},
	{domain.ErrPlanNotFound, http.StatusNotFound},
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrPlanNotConfigured, http.StatusConflict},
	{domain.ErrNoProviderLink, http.StatusConflict},
	{domain.ErrAlreadyExists, http.StatusConflict},
}

type limitDenied struct {
	Error string `json:"error"`
	model.LimitResult
}

// writeDomainError answers domain violations with their message and everything
// else with a generic 500, logging the cause.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	var le *model.LimitError
	if errors.As(err, &le) {
		WriteJSON(w, http.StatusForbidden, limitDenied{Error: le.Result.Reason, LimitResult: le.Result})
		return
	}
	for _, m := range domainStatus {
		if errors.Is(err, m.err) {
			logging.With(r.Context(), logger).Debug().Err(err).Int("status", m.code).Msg("request rejected")
			WriteError(w, m.code, m.err.Error())
			return
		}
	}
	logging.With(r.Context(), logger).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	WriteError(w, http.StatusInternalServerError, "Internal server error")
}
