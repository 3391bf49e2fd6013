package repository

import (
	"context"
	"time"

	"workspace-billing/internal/domain/model"
)

// PaymentRepository is the append-only payment ledger.
type PaymentRepository interface {
	// Insert returns domain.ErrAlreadyExists when the provider payment id was already recorded.
	Insert(ctx context.Context, tx Tx, p *model.PaymentRecord) error
	ListByWorkspace(ctx context.Context, tx Tx, workspaceID string, limit int) ([]*model.PaymentRecord, error)
	// SumSince totals captured amounts per currency created at or after since.
	SumSince(ctx context.Context, tx Tx, since time.Time) (map[string]int64, error)
}
