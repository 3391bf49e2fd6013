package apiv1

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"workspace-billing/internal/domain"
	"workspace-billing/internal/domain/model"
	"workspace-billing/internal/infra/logging"
	"workspace-billing/internal/infra/metrics"
)

type Plan struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Slug          string   `json:"slug"`
	PriceINR      int64    `json:"price_inr"`
	PriceUSD      int64    `json:"price_usd"`
	MaxUsers      int      `json:"max_users"`
	MaxProjects   int      `json:"max_projects"`
	MaxWorkspaces int      `json:"max_workspaces"`
	Features      []string `json:"features"`
}

type Subscription struct {
	ID                     string     `json:"id"`
	WorkspaceID            string     `json:"workspace_id"`
	PlanID                 string     `json:"plan_id"`
	Status                 string     `json:"status"`
	TrialEnd               *time.Time `json:"trial_end,omitempty"`
	CurrentPeriodStart     *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `json:"current_period_end,omitempty"`
	PaymentProvider        string     `json:"payment_provider,omitempty"`
	ProviderSubscriptionID string     `json:"provider_subscription_id,omitempty"`
	CancelAtPeriodEnd      bool       `json:"cancel_at_period_end"`
}

type Status struct {
	IsActive           bool       `json:"is_active"`
	Status             string     `json:"status"`
	Plan               *Plan      `json:"plan"`
	TrialDaysRemaining int        `json:"trial_days_remaining"`
	IsTrialing         bool       `json:"is_trialing"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
}

type Payment struct {
	ID                string    `json:"id"`
	Amount            int64     `json:"amount"`
	Currency          string    `json:"currency"`
	Provider          string    `json:"provider"`
	ProviderPaymentID string    `json:"provider_payment_id"`
	Status            string    `json:"status"`
	Description       string    `json:"description"`
	CreatedAt         time.Time `json:"created_at"`
}

func toPlan(p *model.Plan) *Plan {
	if p == nil {
		return nil
	}
	features := p.Features
	if features == nil {
		features = []string{}
	}
	return &Plan{
		ID: p.ID, Name: p.Name, Slug: p.Slug,
		PriceINR: p.PriceINR, PriceUSD: p.PriceUSD,
		MaxUsers: p.MaxUsers, MaxProjects: p.MaxProjects, MaxWorkspaces: p.MaxWorkspaces,
		Features: features,
	}
}

func toSubscription(s *model.Subscription) Subscription {
	return Subscription{
		ID:                     s.ID,
		WorkspaceID:            s.WorkspaceID,
		PlanID:                 s.PlanID,
		Status:                 string(s.Status),
		TrialEnd:               s.TrialEnd,
		CurrentPeriodStart:     s.CurrentPeriodStart,
		CurrentPeriodEnd:       s.CurrentPeriodEnd,
		PaymentProvider:        string(s.Provider()),
		ProviderSubscriptionID: s.ProviderSubID(),
		CancelAtPeriodEnd:      s.CancelAtPeriodEnd,
	}
}

func decode(r *http.Request, v any) bool {
	if r.Body == nil {
		return false
	}
	return json.NewDecoder(r.Body).Decode(v) == nil
}

func (s *Server) listPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.plans.List(r.Context())
	if err != nil {
		writeDomainError(w, r, s.log, err)
		return
	}
	items := make([]*Plan, 0, len(plans))
	for _, p := range plans {
		items = append(items, toPlan(p))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

type createWorkspaceRequest struct {
	Name         string `json:"name"`
	BillingEmail string `json:"billing_email"`
}

func (s *Server) createWorkspace(w http.ResponseWriter, r *http.Request) {
	var req createWorkspaceRequest
	if !decode(r, &req) || strings.TrimSpace(req.Name) == "" {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	ws, trial, err := s.workspaces.Create(r.Context(), UserID(r.Context()), strings.TrimSpace(req.Name), req.BillingEmail)
	recordGate(model.ResourceWorkspaces, err)
	if err != nil {
		writeDomainError(w, r, s.log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{
		"workspace": map[string]any{
			"id":            ws.ID,
			"name":          ws.Name,
			"owner_id":      ws.OwnerID,
			"billing_email": ws.BillingEmail,
			"created_at":    ws.CreatedAt,
		},
		"subscription": toSubscription(trial),
	})
}

// recordGate counts gated actions that reached the limit check.
func recordGate(res model.Resource, err error) {
	switch {
	case err == nil:
		metrics.IncLimitCheck(string(res), true)
	case errors.Is(err, domain.ErrLimitReached):
		metrics.IncLimitCheck(string(res), false)
	}
}

func (s *Server) getSubscription(w http.ResponseWriter, r *http.Request) {
	view, err := s.status.WorkspaceStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, s.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, Status{
		IsActive:           view.IsActive,
		Status:             string(view.Status),
		Plan:               toPlan(view.Plan),
		TrialDaysRemaining: view.TrialDaysRemaining,
		IsTrialing:         view.IsTrialing,
		CancelAtPeriodEnd:  view.CancelAtPeriodEnd,
		CurrentPeriodEnd:   view.CurrentPeriodEnd,
	})
}

func (s *Server) getLimits(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	members, err := s.limits.CanAddMember(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, s.log, err)
		return
	}
	projects, err := s.limits.CanAddProject(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, s.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]model.LimitResult{"members": members, "projects": projects})
}

func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if !decode(r, &req) || req.UserID == "" {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	m, err := s.workspaces.AddMember(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), req.UserID)
	recordGate(model.ResourceMembers, err)
	if err != nil {
		writeDomainError(w, r, s.log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{
		"workspace_id": m.WorkspaceID,
		"user_id":      m.UserID,
		"role":         m.Role,
		"created_at":   m.CreatedAt,
	})
}

func (s *Server) addProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decode(r, &req) || strings.TrimSpace(req.Name) == "" {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	p, err := s.workspaces.AddProject(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), strings.TrimSpace(req.Name))
	recordGate(model.ResourceProjects, err)
	if err != nil {
		writeDomainError(w, r, s.log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{
		"id":           p.ID,
		"workspace_id": p.WorkspaceID,
		"name":         p.Name,
		"created_at":   p.CreatedAt,
	})
}

func (s *Server) startCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlanSlug string `json:"plan_slug"`
		Currency string `json:"currency"`
	}
	if !decode(r, &req) || req.PlanSlug == "" || req.Currency == "" {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	res, err := s.subs.StartCheckout(r.Context(), chi.URLParam(r, "id"), req.PlanSlug, req.Currency)
	if err != nil {
		writeDomainError(w, r, s.log, err)
		return
	}
	logging.With(r.Context(), s.log).Info().Str("plan_slug", req.PlanSlug).Str("currency", req.Currency).Msg("checkout started")
	WriteJSON(w, http.StatusOK, map[string]string{
		"url":                      res.URL,
		"provider_subscription_id": res.ProviderSubscriptionID,
		"session_id":               res.SessionID,
	})
}

func (s *Server) changePlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlanSlug string `json:"plan_slug"`
	}
	if !decode(r, &req) || req.PlanSlug == "" {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	sub, err := s.subs.ChangePlan(r.Context(), chi.URLParam(r, "id"), req.PlanSlug)
	if err != nil {
		writeDomainError(w, r, s.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, toSubscription(sub))
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subs.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, s.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, toSubscription(sub))
}

func (s *Server) listPayments(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 || n > 500 {
			WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}
	rows, err := s.subs.Payments(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeDomainError(w, r, s.log, err)
		return
	}
	items := make([]Payment, 0, len(rows))
	for _, p := range rows {
		items = append(items, Payment{
			ID:                p.ID,
			Amount:            p.Amount,
			Currency:          p.Currency,
			Provider:          string(p.Provider),
			ProviderPaymentID: p.ProviderPaymentID,
			Status:            p.Status,
			Description:       p.Description,
			CreatedAt:         p.CreatedAt,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}
