package repository

import (
	"context"

	"workspace-billing/internal/domain/model"
)

// WorkspaceRepository covers workspaces and the rows the limit gate counts.
type WorkspaceRepository interface {
	Create(ctx context.Context, tx Tx, w *model.Workspace) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Workspace, error)

	AddMember(ctx context.Context, tx Tx, m *model.Membership) error
	IsMember(ctx context.Context, tx Tx, workspaceID, userID string) (bool, error)
	CountMembers(ctx context.Context, tx Tx, workspaceID string) (int, error)
	ListWorkspaceIDsForUser(ctx context.Context, tx Tx, userID string) ([]string, error)

	CreateProject(ctx context.Context, tx Tx, p *model.Project) error
	CountProjects(ctx context.Context, tx Tx, workspaceID string) (int, error)
}
