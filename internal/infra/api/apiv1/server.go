package apiv1

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"workspace-billing/internal/infra/logging"
	"workspace-billing/internal/usecase"
)

// Server serves the /api/v1 surface: the public plan catalog and the workspace
// billing actions.
type Server struct {
	workspaces usecase.WorkspaceUseCase
	status     usecase.StatusUseCase
	limits     usecase.LimitUseCase
	subs       usecase.SubscriptionUseCase
	plans      usecase.PlanUseCase
	log        *zerolog.Logger
}

func NewServer(
	workspaces usecase.WorkspaceUseCase,
	status usecase.StatusUseCase,
	limits usecase.LimitUseCase,
	subs usecase.SubscriptionUseCase,
	plans usecase.PlanUseCase,
	logger *zerolog.Logger,
) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "apiv1").Logger()
	return &Server{workspaces: workspaces, status: status, limits: limits, subs: subs, plans: plans, log: &l}
}

// RegisterAPIV1 mounts the routes on r. Workspace routes require a bearer token and
// membership of the workspace; mws run after authentication.
func RegisterAPIV1(r chi.Router, s *Server, auth *AuthManager, mws ...func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plans", s.listPlans)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate(s.log))
			r.Use(mws...)

			r.Post("/workspaces", s.createWorkspace)
			r.Route("/workspaces/{id}", func(r chi.Router) {
				r.Use(s.requireMember)
				r.Get("/subscription", s.getSubscription)
				r.Get("/limits", s.getLimits)
				r.Post("/members", s.addMember)
				r.Post("/projects", s.addProject)
				r.Post("/checkout", s.startCheckout)
				r.Post("/plan", s.changePlan)
				r.Post("/cancel", s.cancel)
				r.Get("/payments", s.listPayments)
			})
		})
	})
}

func (s *Server) requireMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		r = r.WithContext(logging.WithWorkspaceID(r.Context(), id))
		if err := s.workspaces.Authorize(r.Context(), UserID(r.Context()), id); err != nil {
			writeDomainError(w, r, s.log, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
