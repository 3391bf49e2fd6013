package repository

import (
	"context"
	"time"

	"workspace-billing/internal/domain/model"
)

// SubscriptionRepository is the port for the Subscription Store.
// Mutating methods return the updated row, or domain.ErrNotFound when nothing matched.
type SubscriptionRepository interface {
	Create(ctx context.Context, tx Tx, s *model.Subscription) error
	LatestByWorkspace(ctx context.Context, tx Tx, workspaceID string) (*model.Subscription, error)
	FindByProviderSubscriptionID(ctx context.Context, tx Tx, providerSubID string) (*model.Subscription, error)

	// Update applies upd to the row with the given id.
	Update(ctx context.Context, tx Tx, id string, upd model.SubscriptionUpdate) (*model.Subscription, error)
	// UpdateByProviderSubscriptionID applies upd to the row linked to providerSubID.
	UpdateByProviderSubscriptionID(ctx context.Context, tx Tx, providerSubID string, upd model.SubscriptionUpdate) (*model.Subscription, error)

	// ExpireTrial flips a trialing row to expired; a row in any other status is not touched.
	ExpireTrial(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	ListLapsedTrials(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.Subscription, error)
	ListTrialsEndingBetween(ctx context.Context, tx Tx, from, to time.Time) ([]*model.Subscription, error)

	CountByStatus(ctx context.Context, tx Tx) (map[model.SubscriptionStatus]int, error)
}
