package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"workspace-billing/internal/domain"
	"workspace-billing/internal/domain/model"
	"workspace-billing/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

const subscriptionColumns = `id, workspace_id, plan_id, status, trial_start, trial_end,
       current_period_start, current_period_end, payment_provider, provider_subscription_id,
       cancel_at_period_end, created_at, updated_at`

type subscriptionRepo struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool, now: time.Now}
}

func (r *subscriptionRepo) Create(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  id, workspace_id, plan_id, status, trial_start, trial_end, current_period_start, current_period_end,
  payment_provider, provider_subscription_id, cancel_at_period_end, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13);`

	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.WorkspaceID, s.PlanID, string(s.Status), s.TrialStart, s.TrialEnd,
		s.CurrentPeriodStart, s.CurrentPeriodEnd, providerArg(s.PaymentProvider), s.ProviderSubscriptionID,
		s.CancelAtPeriodEnd, s.CreatedAt, s.UpdatedAt)
	return mapError(err)
}

// LatestByWorkspace returns the authoritative (most recently created) row.
func (r *subscriptionRepo) LatestByWorkspace(ctx context.Context, tx repository.Tx, workspaceID string) (*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE workspace_id=$1
 ORDER BY created_at DESC, id DESC
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, workspaceID)
}

func (r *subscriptionRepo) FindByProviderSubscriptionID(ctx context.Context, tx repository.Tx, providerSubID string) (*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE provider_subscription_id=$1;`
	return r.queryOne(ctx, tx, q, providerSubID)
}

// setClause is shared by both update paths. The caller picks how the provider
// subscription id is written.
func setClause(providerSubID string) string {
	return `
   SET status                   = COALESCE($2, status),
       current_period_start     = COALESCE($3, current_period_start),
       current_period_end       = COALESCE($4, current_period_end),
       payment_provider         = COALESCE($5, payment_provider),
       provider_subscription_id = ` + providerSubID + `,
       plan_id                  = COALESCE($7, plan_id),
       cancel_at_period_end     = COALESCE($8, cancel_at_period_end),
       updated_at               = $9`
}

var (
	// relinkSet replaces the provider link of a row addressed by id.
	relinkSet = setClause("COALESCE($6, provider_subscription_id)")
	// keepLinkSet never rewrites the id the row was matched by.
	keepLinkSet = setClause("COALESCE(provider_subscription_id, $6)")
)

func (r *subscriptionRepo) Update(ctx context.Context, tx repository.Tx, id string, upd model.SubscriptionUpdate) (*model.Subscription, error) {
	q := `
UPDATE subscriptions` + relinkSet + `
 WHERE id=$1
RETURNING ` + subscriptionColumns + `;`
	return r.queryOne(ctx, tx, q, r.updateArgs(id, upd)...)
}

func (r *subscriptionRepo) UpdateByProviderSubscriptionID(ctx context.Context, tx repository.Tx, providerSubID string, upd model.SubscriptionUpdate) (*model.Subscription, error) {
	q := `
UPDATE subscriptions` + keepLinkSet + `
 WHERE provider_subscription_id=$1
RETURNING ` + subscriptionColumns + `;`
	return r.queryOne(ctx, tx, q, r.updateArgs(providerSubID, upd)...)
}

func (r *subscriptionRepo) updateArgs(key string, upd model.SubscriptionUpdate) []any {
	var status *string
	if upd.Status != nil {
		s := string(*upd.Status)
		status = &s
	}
	var start, end *time.Time
	if upd.Period != nil {
		start, end = &upd.Period.Start, &upd.Period.End
	}
	return []any{key, status, start, end, providerArg(upd.PaymentProvider), upd.ProviderSubscriptionID,
		upd.PlanID, upd.CancelAtPeriodEnd, r.now().UTC()}
}

func (r *subscriptionRepo) ExpireTrial(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	const q = `
UPDATE subscriptions
   SET status='expired', updated_at=$2
 WHERE id=$1 AND status='trialing'
RETURNING ` + subscriptionColumns + `;`
	return r.queryOne(ctx, tx, q, id, r.now().UTC())
}

func (r *subscriptionRepo) ListLapsedTrials(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE status='trialing' AND trial_end < $1
 ORDER BY trial_end ASC
 LIMIT $2;`
	return r.queryMany(ctx, tx, q, now, limit)
}

func (r *subscriptionRepo) ListTrialsEndingBetween(ctx context.Context, tx repository.Tx, from, to time.Time) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE status='trialing' AND trial_end >= $1 AND trial_end < $2
 ORDER BY trial_end ASC;`
	return r.queryMany(ctx, tx, q, from, to)
}

// CountByStatus counts only the authoritative row of each workspace.
func (r *subscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	const q = `
SELECT status, COUNT(*)
  FROM (SELECT DISTINCT ON (workspace_id) status
          FROM subscriptions
         ORDER BY workspace_id, created_at DESC, id DESC) latest
 GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	counts := make(map[model.SubscriptionStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		counts[model.SubscriptionStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return counts, nil
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	s, err := scanSubscription(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, mapError(err)
	}
	return s, nil
}

func (r *subscriptionRepo) queryMany(ctx context.Context, tx repository.Tx, sql string, args ...any) ([]*model.Subscription, error) {
	rows, err := queryRows(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var (
		s        model.Subscription
		status   string
		provider *string
	)
	if err := row.Scan(&s.ID, &s.WorkspaceID, &s.PlanID, &status, &s.TrialStart, &s.TrialEnd,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &provider, &s.ProviderSubscriptionID,
		&s.CancelAtPeriodEnd, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Status = model.SubscriptionStatus(status)
	if provider != nil {
		p := model.PaymentProvider(*provider)
		s.PaymentProvider = &p
	}
	return &s, nil
}

func providerArg(p *model.PaymentProvider) *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}
