package model

import (
	"strings"
	"time"

	"workspace-billing/internal/domain"
)

type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleMember MemberRole = "member"
)

// Workspace is the tenant boundary a subscription belongs to.
type Workspace struct {
	ID           string
	Name         string
	OwnerID      string
	BillingEmail string
	CreatedAt    time.Time
}

type Membership struct {
	WorkspaceID string
	UserID      string
	Role        MemberRole
	CreatedAt   time.Time
}

type Project struct {
	ID          string
	WorkspaceID string
	Name        string
	CreatedAt   time.Time
}

func NewWorkspace(id, name, ownerID, billingEmail string) (*Workspace, error) {
	name = strings.TrimSpace(name)
	if id == "" || name == "" || ownerID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Workspace{
		ID:           id,
		Name:         name,
		OwnerID:      ownerID,
		BillingEmail: strings.TrimSpace(billingEmail),
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func NewProject(id, workspaceID, name string) (*Project, error) {
	name = strings.TrimSpace(name)
	if id == "" || workspaceID == "" || name == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Project{ID: id, WorkspaceID: workspaceID, Name: name, CreatedAt: time.Now().UTC()}, nil
}
