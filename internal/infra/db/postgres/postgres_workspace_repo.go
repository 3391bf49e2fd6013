package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"workspace-billing/internal/domain"
	"workspace-billing/internal/domain/model"
	"workspace-billing/internal/domain/ports/repository"
)

var _ repository.WorkspaceRepository = (*workspaceRepo)(nil)

type workspaceRepo struct {
	pool *pgxpool.Pool
}

func NewWorkspaceRepo(pool *pgxpool.Pool) *workspaceRepo {
	return &workspaceRepo{pool: pool}
}

func (r *workspaceRepo) Create(ctx context.Context, tx repository.Tx, w *model.Workspace) error {
	const q = `
INSERT INTO workspaces (id, name, owner_id, billing_email, created_at)
VALUES ($1,$2,$3,$4,$5);`
	_, err := execSQL(ctx, r.pool, tx, q, w.ID, w.Name, w.OwnerID, w.BillingEmail, w.CreatedAt)
	return mapError(err)
}

func (r *workspaceRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Workspace, error) {
	const q = `SELECT id, name, owner_id, billing_email, created_at FROM workspaces WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var w model.Workspace
	if err := row.Scan(&w.ID, &w.Name, &w.OwnerID, &w.BillingEmail, &w.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &w, nil
}

func (r *workspaceRepo) AddMember(ctx context.Context, tx repository.Tx, m *model.Membership) error {
	const q = `
INSERT INTO workspace_members (workspace_id, user_id, role, created_at)
VALUES ($1,$2,$3,$4);`
	_, err := execSQL(ctx, r.pool, tx, q, m.WorkspaceID, m.UserID, string(m.Role), m.CreatedAt)
	return mapError(err)
}

func (r *workspaceRepo) IsMember(ctx context.Context, tx repository.Tx, workspaceID, userID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM workspace_members WHERE workspace_id=$1 AND user_id=$2);`
	return r.scanBool(ctx, tx, q, workspaceID, userID)
}

func (r *workspaceRepo) CountMembers(ctx context.Context, tx repository.Tx, workspaceID string) (int, error) {
	const q = `SELECT COUNT(*) FROM workspace_members WHERE workspace_id=$1;`
	return r.scanCount(ctx, tx, q, workspaceID)
}

func (r *workspaceRepo) ListWorkspaceIDsForUser(ctx context.Context, tx repository.Tx, userID string) ([]string, error) {
	const q = `
SELECT workspace_id
  FROM workspace_members
 WHERE user_id=$1
 ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return ids, nil
}

func (r *workspaceRepo) CreateProject(ctx context.Context, tx repository.Tx, p *model.Project) error {
	const q = `INSERT INTO projects (id, workspace_id, name, created_at) VALUES ($1,$2,$3,$4);`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.WorkspaceID, p.Name, p.CreatedAt)
	return mapError(err)
}

func (r *workspaceRepo) CountProjects(ctx context.Context, tx repository.Tx, workspaceID string) (int, error) {
	const q = `SELECT COUNT(*) FROM projects WHERE workspace_id=$1;`
	return r.scanCount(ctx, tx, q, workspaceID)
}

func (r *workspaceRepo) scanCount(ctx context.Context, tx repository.Tx, q string, args ...any) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

func (r *workspaceRepo) scanBool(ctx context.Context, tx repository.Tx, q string, args ...any) (bool, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, mapError(err)
	}
	return ok, nil
}
