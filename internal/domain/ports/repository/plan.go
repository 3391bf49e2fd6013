package repository

import (
	"context"

	"workspace-billing/internal/domain/model"
)

// PlanRepository is the port for the Plan Catalog.
type PlanRepository interface {
	Save(ctx context.Context, tx Tx, plan *model.Plan) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Plan, error)
	FindBySlug(ctx context.Context, tx Tx, slug string) (*model.Plan, error)
	ListActive(ctx context.Context, tx Tx) ([]*model.Plan, error)
	SetProviderPlanID(ctx context.Context, tx Tx, id string, provider model.PaymentProvider, providerPlanID string) error
}
