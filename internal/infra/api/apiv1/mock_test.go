//go:build !integration

package apiv1_test

import (
	"context"
	"time"

	"workspace-billing/internal/domain"
	"workspace-billing/internal/domain/model"
	"workspace-billing/internal/domain/ports/adapter"
	"workspace-billing/internal/domain/ports/repository"
)

type fakeWorkspaces struct {
	// members[workspaceID][userID]
	members     map[string]map[string]bool
	CreateFunc  func(ctx context.Context, userID, name, email string) (*model.Workspace, *model.Subscription, error)
	AddMemberFn func(ctx context.Context, actorID, workspaceID, userID string) (*model.Membership, error)
}

func (f *fakeWorkspaces) Create(ctx context.Context, userID, name, email string) (*model.Workspace, *model.Subscription, error) {
	return f.CreateFunc(ctx, userID, name, email)
}

func (f *fakeWorkspaces) AddMember(ctx context.Context, actorID, workspaceID, userID string) (*model.Membership, error) {
	if f.AddMemberFn != nil {
		return f.AddMemberFn(ctx, actorID, workspaceID, userID)
	}
	return &model.Membership{WorkspaceID: workspaceID, UserID: userID, Role: model.RoleMember}, nil
}

func (f *fakeWorkspaces) AddProject(ctx context.Context, actorID, workspaceID, name string) (*model.Project, error) {
	return &model.Project{ID: "prj-1", WorkspaceID: workspaceID, Name: name}, nil
}

func (f *fakeWorkspaces) Authorize(ctx context.Context, actorID, workspaceID string) error {
	if f.members[workspaceID][actorID] {
		return nil
	}
	return domain.ErrForbidden
}

type fakeStatus struct {
	view *model.StatusView
	err  error
}

func (f *fakeStatus) WorkspaceStatus(ctx context.Context, workspaceID string) (*model.StatusView, error) {
	return f.view, f.err
}

func (f *fakeStatus) ExpireLapsedTrials(ctx context.Context, limit int) (int, error) { return 0, nil }

type fakeLimits struct {
	member, project model.LimitResult
}

func (f *fakeLimits) CanAddMember(ctx context.Context, workspaceID string) (model.LimitResult, error) {
	return f.member, nil
}

func (f *fakeLimits) CanAddProject(ctx context.Context, workspaceID string) (model.LimitResult, error) {
	return f.project, nil
}

func (f *fakeLimits) CanCreateWorkspace(ctx context.Context, userID string) (model.LimitResult, error) {
	return model.Allow(), nil
}

func (f *fakeLimits) RequireActiveSubscription(ctx context.Context, workspaceID string) (*model.Subscription, error) {
	return nil, domain.ErrNoSubscription
}

type fakeSubs struct {
	CheckoutFn   func(ctx context.Context, workspaceID, planSlug, currency string) (*adapter.CheckoutResult, error)
	ChangePlanFn func(ctx context.Context, workspaceID, planSlug string) (*model.Subscription, error)
	payments     []*model.PaymentRecord
	lastLimit    int
}

func (f *fakeSubs) CreateTrial(ctx context.Context, tx repository.Tx, workspaceID string) (*model.Subscription, error) {
	return nil, nil
}

func (f *fakeSubs) StartCheckout(ctx context.Context, workspaceID, planSlug, currency string) (*adapter.CheckoutResult, error) {
	return f.CheckoutFn(ctx, workspaceID, planSlug, currency)
}

func (f *fakeSubs) ChangePlan(ctx context.Context, workspaceID, planSlug string) (*model.Subscription, error) {
	return f.ChangePlanFn(ctx, workspaceID, planSlug)
}

func (f *fakeSubs) Cancel(ctx context.Context, workspaceID string) (*model.Subscription, error) {
	provider, psid := model.ProviderStripe, "sub_1"
	return &model.Subscription{ID: "s1", WorkspaceID: workspaceID, PlanID: "plan-pro", Status: model.SubscriptionStatusActive,
		PaymentProvider: &provider, ProviderSubscriptionID: &psid, CancelAtPeriodEnd: true}, nil
}

func (f *fakeSubs) Payments(ctx context.Context, workspaceID string, limit int) ([]*model.PaymentRecord, error) {
	f.lastLimit = limit
	return f.payments, nil
}

type fakePlans struct {
	plans []*model.Plan
	err   error
}

func (f *fakePlans) Create(ctx context.Context, plan *model.Plan) error { return nil }

func (f *fakePlans) List(ctx context.Context) ([]*model.Plan, error) { return f.plans, f.err }

func (f *fakePlans) Limits(ctx context.Context, slug string) (model.PlanLimits, error) {
	return model.PlanLimits{}, domain.ErrPlanNotFound
}

func (f *fakePlans) SyncProviders(ctx context.Context) (int, error) { return 0, nil }

type fakeLimiter struct {
	allowed int
	calls   int
	err     error
}

func (f *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.calls <= f.allowed, nil
}
