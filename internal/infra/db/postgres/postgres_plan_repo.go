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

var _ repository.PlanRepository = (*PostgresPlanRepo)(nil)

const planColumns = `id, name, slug, price_inr, price_usd, max_users, max_projects, max_workspaces,
       features, active, razorpay_plan_id, stripe_price_id, created_at, updated_at`

type PostgresPlanRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPlanRepo(pool *pgxpool.Pool) *PostgresPlanRepo {
	return &PostgresPlanRepo{pool: pool}
}

// Save upserts by id. Provider ids already stored are kept when the incoming plan has none.
func (r *PostgresPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	const q = `
INSERT INTO plans (id, name, slug, price_inr, price_usd, max_users, max_projects, max_workspaces,
                   features, active, razorpay_plan_id, stripe_price_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE
  SET name             = EXCLUDED.name,
      slug             = EXCLUDED.slug,
      price_inr        = EXCLUDED.price_inr,
      price_usd        = EXCLUDED.price_usd,
      max_users        = EXCLUDED.max_users,
      max_projects     = EXCLUDED.max_projects,
      max_workspaces   = EXCLUDED.max_workspaces,
      features         = EXCLUDED.features,
      active           = EXCLUDED.active,
      razorpay_plan_id = COALESCE(EXCLUDED.razorpay_plan_id, plans.razorpay_plan_id),
      stripe_price_id  = COALESCE(EXCLUDED.stripe_price_id, plans.stripe_price_id),
      updated_at       = EXCLUDED.updated_at;`

	features := p.Features
	if features == nil {
		features = []string{}
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.Name, p.Slug, p.PriceINR, p.PriceUSD, p.MaxUsers, p.MaxProjects, p.MaxWorkspaces,
		features, p.Active, nullable(p.RazorpayPlanID), nullable(p.StripePriceID), created, time.Now().UTC())
	return mapError(err)
}

func (r *PostgresPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	const q = `SELECT ` + planColumns + ` FROM plans WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *PostgresPlanRepo) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.Plan, error) {
	const q = `SELECT ` + planColumns + ` FROM plans WHERE slug=$1;`
	return r.queryOne(ctx, tx, q, slug)
}

func (r *PostgresPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	const q = `
SELECT ` + planColumns + `
  FROM plans
 WHERE active
 ORDER BY price_usd ASC, slug ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *PostgresPlanRepo) SetProviderPlanID(ctx context.Context, tx repository.Tx, id string, provider model.PaymentProvider, providerPlanID string) error {
	var q string
	switch provider {
	case model.ProviderRazorpay:
		q = `UPDATE plans SET razorpay_plan_id=$2, updated_at=NOW() WHERE id=$1;`
	case model.ProviderStripe:
		q = `UPDATE plans SET stripe_price_id=$2, updated_at=NOW() WHERE id=$1;`
	default:
		return domain.ErrInvalidArgument
	}
	tag, err := execSQL(ctx, r.pool, tx, q, id, providerPlanID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresPlanRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.Plan, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	p, err := scanPlan(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, mapError(err)
	}
	return p, nil
}

func scanPlan(row pgx.Row) (*model.Plan, error) {
	var (
		p             model.Plan
		razorpay, str *string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.PriceINR, &p.PriceUSD, &p.MaxUsers, &p.MaxProjects,
		&p.MaxWorkspaces, &p.Features, &p.Active, &razorpay, &str, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if razorpay != nil {
		p.RazorpayPlanID = *razorpay
	}
	if str != nil {
		p.StripePriceID = *str
	}
	return &p, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
