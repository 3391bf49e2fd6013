package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"workspace-billing/internal/domain"
	"workspace-billing/internal/domain/model"
	"workspace-billing/internal/domain/ports/repository"
	"workspace-billing/internal/infra/metrics"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

// Insert relies on the (provider, provider_payment_id) unique index for idempotency.
func (r *paymentRepo) Insert(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error {
	const q = `
INSERT INTO payments (id, workspace_id, subscription_id, amount, currency, provider,
                      provider_payment_id, status, description, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.WorkspaceID, p.SubscriptionID, p.Amount, p.Currency, string(p.Provider),
		p.ProviderPaymentID, p.Status, p.Description, p.CreatedAt)
	if err = mapError(err); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			metrics.IncPayment(string(p.Provider), "duplicate")
		}
		return err
	}
	metrics.IncPayment(string(p.Provider), "recorded")
	metrics.AddPaymentRevenue(p.Currency, p.Amount)
	return nil
}

func (r *paymentRepo) ListByWorkspace(ctx context.Context, tx repository.Tx, workspaceID string, limit int) ([]*model.PaymentRecord, error) {
	const q = `
SELECT id, workspace_id, subscription_id, amount, currency, provider, provider_payment_id,
       status, description, created_at
  FROM payments
 WHERE workspace_id=$1
 ORDER BY created_at DESC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, workspaceID, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*model.PaymentRecord
	for rows.Next() {
		var (
			p        model.PaymentRecord
			provider string
		)
		if err := rows.Scan(&p.ID, &p.WorkspaceID, &p.SubscriptionID, &p.Amount, &p.Currency, &provider,
			&p.ProviderPaymentID, &p.Status, &p.Description, &p.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		p.Provider = model.PaymentProvider(provider)
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *paymentRepo) SumSince(ctx context.Context, tx repository.Tx, since time.Time) (map[string]int64, error) {
	const q = `
SELECT currency, COALESCE(SUM(amount),0)
  FROM payments
 WHERE status='captured' AND created_at >= $1
 GROUP BY currency;`
	rows, err := queryRows(ctx, r.pool, tx, q, since)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			currency string
			total    int64
		)
		if err := rows.Scan(&currency, &total); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[currency] = total
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
