//go:build !integration

package usecase

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"workspace-billing/internal/domain"
	"workspace-billing/internal/domain/model"
	"workspace-billing/internal/domain/ports/adapter"
	"workspace-billing/internal/domain/ports/repository"
)

// -----------------------------
// Utilities
// -----------------------------

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func ptr[T any](v T) *T { return &v }

// -----------------------------
// Subscriptions
// -----------------------------

type memSubRepo struct {
	mu   sync.Mutex
	rows []*model.Subscription // insertion order

	LatestErr error
	ExpireErr error
	UpdateErr error
	writes    int
}

func newMemSubRepo(rows ...*model.Subscription) *memSubRepo {
	r := &memSubRepo{}
	for _, s := range rows {
		cp := *s
		r.rows = append(r.rows, &cp)
	}
	return r
}

func (r *memSubRepo) Create(_ context.Context, _ repository.Tx, s *model.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.rows {
		if x.ID == s.ID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *s
	r.rows = append(r.rows, &cp)
	r.writes++
	return nil
}

func (r *memSubRepo) latest(workspaceID string) *model.Subscription {
	var out *model.Subscription
	for _, s := range r.rows {
		if s.WorkspaceID != workspaceID {
			continue
		}
		if out == nil || !s.CreatedAt.Before(out.CreatedAt) {
			out = s
		}
	}
	return out
}

func (r *memSubRepo) LatestByWorkspace(_ context.Context, _ repository.Tx, workspaceID string) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.LatestErr != nil {
		return nil, r.LatestErr
	}
	s := r.latest(workspaceID)
	if s == nil {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSubRepo) byProviderID(id string) *model.Subscription {
	if id == "" {
		return nil
	}
	for _, s := range r.rows {
		if s.ProviderSubID() == id {
			return s
		}
	}
	return nil
}

func (r *memSubRepo) FindByProviderSubscriptionID(_ context.Context, _ repository.Tx, providerSubID string) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.byProviderID(providerSubID)
	if s == nil {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// apply mirrors the SQL update; relink is true for updates addressed by row id.
func (r *memSubRepo) apply(s *model.Subscription, upd model.SubscriptionUpdate, relink bool) *model.Subscription {
	if upd.Status != nil {
		s.Status = *upd.Status
	}
	if upd.Period != nil {
		st, en := upd.Period.Start, upd.Period.End
		s.CurrentPeriodStart, s.CurrentPeriodEnd = &st, &en
	}
	if upd.PaymentProvider != nil {
		p := *upd.PaymentProvider
		s.PaymentProvider = &p
	}
	if upd.ProviderSubscriptionID != nil && (relink || s.ProviderSubscriptionID == nil) {
		id := *upd.ProviderSubscriptionID
		s.ProviderSubscriptionID = &id
	}
	if upd.PlanID != nil {
		s.PlanID = *upd.PlanID
	}
	if upd.CancelAtPeriodEnd != nil {
		s.CancelAtPeriodEnd = *upd.CancelAtPeriodEnd
	}
	r.writes++
	cp := *s
	return &cp
}

func (r *memSubRepo) Update(_ context.Context, _ repository.Tx, id string, upd model.SubscriptionUpdate) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UpdateErr != nil {
		return nil, r.UpdateErr
	}
	for _, s := range r.rows {
		if s.ID == id {
			return r.apply(s, upd, true), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memSubRepo) UpdateByProviderSubscriptionID(_ context.Context, _ repository.Tx, providerSubID string, upd model.SubscriptionUpdate) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UpdateErr != nil {
		return nil, r.UpdateErr
	}
	s := r.byProviderID(providerSubID)
	if s == nil {
		return nil, domain.ErrNotFound
	}
	return r.apply(s, upd, false), nil
}

func (r *memSubRepo) ExpireTrial(_ context.Context, _ repository.Tx, id string) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ExpireErr != nil {
		return nil, r.ExpireErr
	}
	for _, s := range r.rows {
		if s.ID == id && s.Status == model.SubscriptionStatusTrialing {
			s.Status = model.SubscriptionStatusExpired
			r.writes++
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memSubRepo) ListLapsedTrials(_ context.Context, _ repository.Tx, now time.Time, limit int) ([]*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Subscription
	for _, s := range r.rows {
		if s.IsTrialExpired(now) && len(out) < limit {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memSubRepo) ListTrialsEndingBetween(_ context.Context, _ repository.Tx, from, to time.Time) ([]*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Subscription
	for _, s := range r.rows {
		if s.Status != model.SubscriptionStatusTrialing || s.TrialEnd == nil {
			continue
		}
		if !s.TrialEnd.Before(from) && s.TrialEnd.Before(to) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memSubRepo) CountByStatus(_ context.Context, _ repository.Tx) (map[model.SubscriptionStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[model.SubscriptionStatus]int{}
	for _, s := range r.rows {
		out[s.Status]++
	}
	return out, nil
}

func (r *memSubRepo) all(workspaceID string) []*model.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Subscription
	for _, s := range r.rows {
		if s.WorkspaceID == workspaceID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out
}

// -----------------------------
// Plans
// -----------------------------

type memPlanRepo struct {
	mu    sync.Mutex
	plans map[string]*model.Plan
}

func newMemPlanRepo(plans ...*model.Plan) *memPlanRepo {
	r := &memPlanRepo{plans: map[string]*model.Plan{}}
	for _, p := range plans {
		cp := *p
		r.plans[p.ID] = &cp
	}
	return r
}

func (r *memPlanRepo) Save(_ context.Context, _ repository.Tx, p *model.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.plans {
		if x.Slug == p.Slug && x.ID != p.ID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *p
	r.plans[p.ID] = &cp
	return nil
}

func (r *memPlanRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPlanRepo) FindBySlug(_ context.Context, _ repository.Tx, slug string) (*model.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.plans {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memPlanRepo) ListActive(_ context.Context, _ repository.Tx) ([]*model.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Plan
	for _, p := range r.plans {
		if p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceUSD < out[j].PriceUSD })
	return out, nil
}

func (r *memPlanRepo) SetProviderPlanID(_ context.Context, _ repository.Tx, id string, provider model.PaymentProvider, providerPlanID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return domain.ErrNotFound
	}
	switch provider {
	case model.ProviderRazorpay:
		p.RazorpayPlanID = providerPlanID
	case model.ProviderStripe:
		p.StripePriceID = providerPlanID
	}
	return nil
}

// -----------------------------
// Workspaces
// -----------------------------

type memWorkspaceRepo struct {
	mu         sync.Mutex
	workspaces map[string]*model.Workspace
	members    map[string]map[string]model.MemberRole
	projects   map[string]int

	CreateErr error
}

func newMemWorkspaceRepo() *memWorkspaceRepo {
	return &memWorkspaceRepo{
		workspaces: map[string]*model.Workspace{},
		members:    map[string]map[string]model.MemberRole{},
		projects:   map[string]int{},
	}
}

// seed registers a workspace with the given members.
func (r *memWorkspaceRepo) seed(id, email string, users ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workspaces[id] = &model.Workspace{ID: id, Name: id, BillingEmail: email}
	if r.members[id] == nil {
		r.members[id] = map[string]model.MemberRole{}
	}
	for _, u := range users {
		r.members[id][u] = model.RoleMember
	}
}

func (r *memWorkspaceRepo) Create(_ context.Context, _ repository.Tx, w *model.Workspace) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return r.CreateErr
	}
	cp := *w
	r.workspaces[w.ID] = &cp
	return nil
}

func (r *memWorkspaceRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workspaces[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (r *memWorkspaceRepo) AddMember(_ context.Context, _ repository.Tx, m *model.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[m.WorkspaceID] == nil {
		r.members[m.WorkspaceID] = map[string]model.MemberRole{}
	}
	if _, ok := r.members[m.WorkspaceID][m.UserID]; ok {
		return domain.ErrAlreadyExists
	}
	r.members[m.WorkspaceID][m.UserID] = m.Role
	return nil
}

func (r *memWorkspaceRepo) IsMember(_ context.Context, _ repository.Tx, workspaceID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[workspaceID][userID]
	return ok, nil
}

func (r *memWorkspaceRepo) CountMembers(_ context.Context, _ repository.Tx, workspaceID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members[workspaceID]), nil
}

func (r *memWorkspaceRepo) ListWorkspaceIDsForUser(_ context.Context, _ repository.Tx, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for ws, m := range r.members {
		if _, ok := m[userID]; ok {
			out = append(out, ws)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *memWorkspaceRepo) CreateProject(_ context.Context, _ repository.Tx, p *model.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[p.WorkspaceID]++
	return nil
}

func (r *memWorkspaceRepo) CountProjects(_ context.Context, _ repository.Tx, workspaceID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.projects[workspaceID], nil
}

// -----------------------------
// Payments
// -----------------------------

type memPaymentRepo struct {
	mu   sync.Mutex
	rows []*model.PaymentRecord
}

func (r *memPaymentRepo) Insert(_ context.Context, _ repository.Tx, p *model.PaymentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.rows {
		if x.Provider == p.Provider && x.ProviderPaymentID == p.ProviderPaymentID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *p
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *memPaymentRepo) ListByWorkspace(_ context.Context, _ repository.Tx, workspaceID string, limit int) ([]*model.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PaymentRecord
	for i := len(r.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if r.rows[i].WorkspaceID == workspaceID {
			cp := *r.rows[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memPaymentRepo) SumSince(_ context.Context, _ repository.Tx, since time.Time) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]int64{}
	for _, p := range r.rows {
		if !p.CreatedAt.Before(since) {
			out[p.Currency] += p.Amount
		}
	}
	return out, nil
}

func (r *memPaymentRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// -----------------------------
// Transactions, providers, notifications
// -----------------------------

// fakeTxManager runs fn without a real transaction.
type fakeTxManager struct{ calls int }

func (m *fakeTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.calls++
	return fn(ctx, nil)
}

type MockProvider struct {
	name model.PaymentProvider

	CreatePlanFunc         func(ctx context.Context, plan *model.Plan) (string, error)
	StartCheckoutFunc      func(ctx context.Context, req adapter.CheckoutRequest) (*adapter.CheckoutResult, error)
	UpdateSubscriptionFunc func(ctx context.Context, providerSubID, providerPlanID string) error
	CancelSubscriptionFunc func(ctx context.Context, providerSubID string) error

	Calls []string
}

func (m *MockProvider) Name() model.PaymentProvider { return m.name }

func (m *MockProvider) CreatePlan(ctx context.Context, plan *model.Plan) (string, error) {
	m.Calls = append(m.Calls, "CreatePlan:"+plan.Slug)
	if m.CreatePlanFunc != nil {
		return m.CreatePlanFunc(ctx, plan)
	}
	return string(m.name) + "_plan_" + plan.Slug, nil
}

func (m *MockProvider) CreateCustomer(_ context.Context, workspaceID, _, _ string) (string, error) {
	m.Calls = append(m.Calls, "CreateCustomer:"+workspaceID)
	return "cust_" + workspaceID, nil
}

func (m *MockProvider) StartCheckout(ctx context.Context, req adapter.CheckoutRequest) (*adapter.CheckoutResult, error) {
	m.Calls = append(m.Calls, "StartCheckout:"+req.ProviderPlanID)
	if m.StartCheckoutFunc != nil {
		return m.StartCheckoutFunc(ctx, req)
	}
	return &adapter.CheckoutResult{URL: "https://pay.example/" + req.WorkspaceID}, nil
}

func (m *MockProvider) UpdateSubscription(ctx context.Context, providerSubID, providerPlanID string) error {
	m.Calls = append(m.Calls, "UpdateSubscription:"+providerSubID+":"+providerPlanID)
	if m.UpdateSubscriptionFunc != nil {
		return m.UpdateSubscriptionFunc(ctx, providerSubID, providerPlanID)
	}
	return nil
}

func (m *MockProvider) CancelSubscription(ctx context.Context, providerSubID string) error {
	m.Calls = append(m.Calls, "CancelSubscription:"+providerSubID)
	if m.CancelSubscriptionFunc != nil {
		return m.CancelSubscriptionFunc(ctx, providerSubID)
	}
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []adapter.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg adapter.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) kinds() []adapter.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]adapter.NotificationKind, 0, len(n.sent))
	for _, m := range n.sent {
		out = append(out, m.Kind)
	}
	return out
}

// noopNotifications satisfies NotificationUseCase for tests that do not inspect notices.
type noopNotifications struct{ events []adapter.NotificationKind }

func (n *noopNotifications) WorkspaceEvent(_ context.Context, kind adapter.NotificationKind, _, _, _ string) {
	n.events = append(n.events, kind)
}

func (n *noopNotifications) NotifyTrialsEnding(context.Context, time.Duration) (int, error) {
	return 0, nil
}

// -----------------------------
// Fixtures
// -----------------------------

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testPlan(id, slug string, users, projects, workspaces int) *model.Plan {
	return &model.Plan{
		ID:             id,
		Name:           slug,
		Slug:           slug,
		PriceINR:       999,
		PriceUSD:       19,
		MaxUsers:       users,
		MaxProjects:    projects,
		MaxWorkspaces:  workspaces,
		Active:         true,
		RazorpayPlanID: "plan_rzp_" + slug,
		StripePriceID:  "price_" + slug,
	}
}

func trialingSub(id, ws, planID string, trialEnd time.Time) *model.Subscription {
	start := trialEnd.Add(-model.TrialPeriod)
	return &model.Subscription{
		ID:          id,
		WorkspaceID: ws,
		PlanID:      planID,
		Status:      model.SubscriptionStatusTrialing,
		TrialStart:  &start,
		TrialEnd:    &trialEnd,
		CreatedAt:   start,
		UpdatedAt:   start,
	}
}

func paidSub(id, ws, planID string, provider model.PaymentProvider, providerSubID string, status model.SubscriptionStatus) *model.Subscription {
	created := testNow.Add(-30 * 24 * time.Hour)
	return &model.Subscription{
		ID:                     id,
		WorkspaceID:            ws,
		PlanID:                 planID,
		Status:                 status,
		PaymentProvider:        &provider,
		ProviderSubscriptionID: &providerSubID,
		CreatedAt:              created,
		UpdatedAt:              created,
	}
}
