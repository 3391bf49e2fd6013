package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"workspace-billing/internal/config"
	"workspace-billing/internal/infra/api/apiv1"
	"workspace-billing/internal/infra/redis"
)

// Routes groups the handlers mounted by NewRouter.
type Routes struct {
	Webhooks *WebhookHandler
	Cron     *CronHandler
	API      *apiv1.Server
	Auth     *apiv1.AuthManager
	// Limiter is optional; nil disables per-user rate limiting.
	Limiter apiv1.Limiter
}

func NewRouter(cfg *config.Config, routes Routes, logger *zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(logger), Recover(logger), Timeout(cfg.HTTP.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/webhook/razorpay", routes.Webhooks.Razorpay)
	r.Post("/webhook/stripe", routes.Webhooks.Stripe)
	r.Post("/api/cron/expire-trials", routes.Cron.ExpireTrials)

	var mws []func(http.Handler) http.Handler
	if routes.Limiter != nil {
		mws = append(mws, apiv1.RateLimit(routes.Limiter, redis.UserActionKey, cfg.Auth.RateLimit, cfg.Auth.RateWindow, logger))
	}
	apiv1.RegisterAPIV1(r, routes.API, routes.Auth, mws...)
	return r
}

// Server owns the listening http.Server.
type Server struct {
	server *http.Server
	log    *zerolog.Logger
}

func NewServer(cfg config.HTTPConfig, handler http.Handler, logger *zerolog.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		log: logger,
	}
}

// Start blocks until the server stops. A graceful shutdown returns nil.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
