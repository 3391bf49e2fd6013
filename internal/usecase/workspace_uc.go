package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"workspace-billing/internal/domain"
	"workspace-billing/internal/domain/model"
	"workspace-billing/internal/domain/ports/adapter"
	"workspace-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ WorkspaceUseCase = (*workspaceUC)(nil)

type WorkspaceUseCase interface {
	// Create gates on the user's workspace allowance, then inserts the workspace,
	// its owner membership and the trial subscription in one transaction.
	Create(ctx context.Context, userID, name, billingEmail string) (*model.Workspace, *model.Subscription, error)
	AddMember(ctx context.Context, actorID, workspaceID, userID string) (*model.Membership, error)
	AddProject(ctx context.Context, actorID, workspaceID, name string) (*model.Project, error)

	// Authorize returns domain.ErrForbidden unless actorID is a member of the workspace.
	Authorize(ctx context.Context, actorID, workspaceID string) error
}

type workspaceUC struct {
	workspaces repository.WorkspaceRepository
	subs       SubscriptionUseCase
	limits     LimitUseCase
	notify     NotificationUseCase
	tm         repository.TransactionManager
	log        *zerolog.Logger
}

func NewWorkspaceUseCase(
	workspaces repository.WorkspaceRepository,
	subs SubscriptionUseCase,
	limits LimitUseCase,
	notify NotificationUseCase,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *workspaceUC {
	l := logger.With().Str("component", "WorkspaceUseCase").Logger()
	return &workspaceUC{workspaces: workspaces, subs: subs, limits: limits, notify: notify, tm: tm, log: &l}
}

func (uc *workspaceUC) Create(ctx context.Context, userID, name, billingEmail string) (*model.Workspace, *model.Subscription, error) {
	gate, err := uc.limits.CanCreateWorkspace(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if !gate.Allowed {
		uc.log.Info().Str("user_id", userID).Str("reason", gate.Reason).Msg("workspace creation denied")
		return nil, nil, &model.LimitError{Result: gate}
	}

	ws, err := model.NewWorkspace(uuid.NewString(), name, userID, billingEmail)
	if err != nil {
		return nil, nil, err
	}

	var trial *model.Subscription
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.workspaces.Create(ctx, tx, ws); err != nil {
			return fmt.Errorf("create workspace: %w", err)
		}
		owner := &model.Membership{WorkspaceID: ws.ID, UserID: userID, Role: model.RoleOwner, CreatedAt: ws.CreatedAt}
		if err := uc.workspaces.AddMember(ctx, tx, owner); err != nil {
			return fmt.Errorf("add owner: %w", err)
		}
		sub, err := uc.subs.CreateTrial(ctx, tx, ws.ID)
		if err != nil {
			return err
		}
		trial = sub
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	uc.log.Info().Str("workspace_id", ws.ID).Str("user_id", userID).Msg("workspace created")
	uc.notify.WorkspaceEvent(ctx, adapter.NotifyTrialStarted, ws.ID, "Welcome! Your trial has started", trialStartedBody(trial))
	return ws, trial, nil
}

func (uc *workspaceUC) AddMember(ctx context.Context, actorID, workspaceID, userID string) (*model.Membership, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if err := uc.Authorize(ctx, actorID, workspaceID); err != nil {
		return nil, err
	}
	gate, err := uc.limits.CanAddMember(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if !gate.Allowed {
		return nil, &model.LimitError{Result: gate}
	}
	m := &model.Membership{WorkspaceID: workspaceID, UserID: userID, Role: model.RoleMember, CreatedAt: time.Now().UTC()}
	if err := uc.workspaces.AddMember(ctx, repository.NoTX, m); err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	return m, nil
}

func (uc *workspaceUC) AddProject(ctx context.Context, actorID, workspaceID, name string) (*model.Project, error) {
	p, err := model.NewProject(uuid.NewString(), workspaceID, name)
	if err != nil {
		return nil, err
	}
	if err := uc.Authorize(ctx, actorID, workspaceID); err != nil {
		return nil, err
	}
	gate, err := uc.limits.CanAddProject(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if !gate.Allowed {
		return nil, &model.LimitError{Result: gate}
	}
	if err := uc.workspaces.CreateProject(ctx, repository.NoTX, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

func (uc *workspaceUC) Authorize(ctx context.Context, actorID, workspaceID string) error {
	if actorID == "" || workspaceID == "" {
		return domain.ErrForbidden
	}
	ok, err := uc.workspaces.IsMember(ctx, repository.NoTX, workspaceID, actorID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return domain.ErrForbidden
	}
	return nil
}
