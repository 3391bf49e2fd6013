package model

import (
	"slices"
	"strings"
	"time"

	"workspace-billing/internal/domain"
)

// Unlimited is the limit sentinel meaning "no cap" for seats, projects or workspaces.
const Unlimited = -1

// Plan is a purchasable tier. Prices are whole currency units, not minor units.
type Plan struct {
	ID       string
	Name     string
	Slug     string
	PriceINR int64
	PriceUSD int64

	MaxUsers      int
	MaxProjects   int
	MaxWorkspaces int
	Features      []string
	Active        bool

	// Provider-side identifiers, empty until synced.
	RazorpayPlanID string
	StripePriceID  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PlanLimits is the limit view of a plan. Unlimited (-1) passes through untouched.
type PlanLimits struct {
	MaxUsers      int      `json:"max_users"`
	MaxProjects   int      `json:"max_projects"`
	MaxWorkspaces int      `json:"max_workspaces"`
	Features      []string `json:"features"`
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// Limits returns the plan's limits without coercing the unlimited sentinel.
func (p *Plan) Limits() PlanLimits {
	return PlanLimits{
		MaxUsers:      p.MaxUsers,
		MaxProjects:   p.MaxProjects,
		MaxWorkspaces: p.MaxWorkspaces,
		Features:      slices.Clone(p.Features),
	}
}

func (p *Plan) HasFeature(f string) bool { return slices.Contains(p.Features, f) }

// ProviderPlanID returns the identifier the given provider knows this plan by.
func (p *Plan) ProviderPlanID(provider PaymentProvider) string {
	switch provider {
	case ProviderRazorpay:
		return p.RazorpayPlanID
	case ProviderStripe:
		return p.StripePriceID
	default:
		return ""
	}
}

// Price returns the whole-unit price for a currency code.
func (p *Plan) Price(currency string) (int64, error) {
	switch strings.ToUpper(currency) {
	case CurrencyINR:
		return p.PriceINR, nil
	case CurrencyUSD:
		return p.PriceUSD, nil
	default:
		return 0, domain.ErrUnsupportedCurrency
	}
}

// NewPlan validates and constructs a plan.
func NewPlan(id, name, slug string, priceINR, priceUSD int64, maxUsers, maxProjects, maxWorkspaces int, features []string) (*Plan, error) {
	if id == "" || name == "" || slug == "" || priceINR < 0 || priceUSD < 0 {
		return nil, domain.ErrInvalidArgument
	}
	for _, l := range []int{maxUsers, maxProjects, maxWorkspaces} {
		if l < Unlimited {
			return nil, domain.ErrInvalidArgument
		}
	}
	now := time.Now().UTC()
	return &Plan{
		ID:            id,
		Name:          name,
		Slug:          slug,
		PriceINR:      priceINR,
		PriceUSD:      priceUSD,
		MaxUsers:      maxUsers,
		MaxProjects:   maxProjects,
		MaxWorkspaces: maxWorkspaces,
		Features:      features,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
