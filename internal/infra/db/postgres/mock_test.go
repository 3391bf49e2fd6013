//go:build !integration

package postgres

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"workspace-billing/internal/domain"
	"workspace-billing/internal/domain/model"
	"workspace-billing/internal/domain/ports/repository"
	red "workspace-billing/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// mockInnerPlanRepo mocks the database repository that the Plan decorator wraps.
type mockInnerPlanRepo struct {
	SaveFunc              func(ctx context.Context, tx repository.Tx, plan *model.Plan) error
	FindByIDFunc          func(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error)
	FindBySlugFunc        func(ctx context.Context, tx repository.Tx, slug string) (*model.Plan, error)
	ListActiveFunc        func(ctx context.Context, tx repository.Tx) ([]*model.Plan, error)
	SetProviderPlanIDFunc func(ctx context.Context, tx repository.Tx, id string, provider model.PaymentProvider, providerPlanID string) error
}

func (m *mockInnerPlanRepo) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	return m.SaveFunc(ctx, tx, plan)
}
func (m *mockInnerPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	if m.FindByIDFunc == nil {
		return nil, domain.ErrNotFound
	}
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerPlanRepo) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.Plan, error) {
	return m.FindBySlugFunc(ctx, tx, slug)
}
func (m *mockInnerPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	return m.ListActiveFunc(ctx, tx)
}
func (m *mockInnerPlanRepo) SetProviderPlanID(ctx context.Context, tx repository.Tx, id string, provider model.PaymentProvider, providerPlanID string) error {
	return m.SetProviderPlanIDFunc(ctx, tx, id, provider, providerPlanID)
}

// mockInnerSubscriptionRepo counts LatestByWorkspace calls and answers from a fixed row.
type mockInnerSubscriptionRepo struct {
	repository.SubscriptionRepository
	row         *model.Subscription
	latestCalls int
}

func (m *mockInnerSubscriptionRepo) LatestByWorkspace(ctx context.Context, tx repository.Tx, workspaceID string) (*model.Subscription, error) {
	m.latestCalls++
	if m.row == nil || m.row.WorkspaceID != workspaceID {
		return nil, domain.ErrNotFound
	}
	cp := *m.row
	return &cp, nil
}

func (m *mockInnerSubscriptionRepo) ExpireTrial(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	if m.row == nil || m.row.ID != id || m.row.Status != model.SubscriptionStatusTrialing {
		return nil, domain.ErrNotFound
	}
	m.row.Status = model.SubscriptionStatusExpired
	cp := *m.row
	return &cp, nil
}

func (m *mockInnerSubscriptionRepo) Create(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	m.row = s
	return nil
}

// mockRedisClient mocks our Redis client wrapper. Unset funcs behave like an empty cache.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc == nil {
		return "", red.Nil
	}
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }
