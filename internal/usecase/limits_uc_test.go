//go:build !integration

package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"workspace-billing/internal/domain"
	"workspace-billing/internal/domain/model"
)

func newLimitUC(subs *memSubRepo, plans *memPlanRepo, ws *memWorkspaceRepo) *limitUC {
	uc := NewLimitUseCase(subs, plans, ws, newTestLogger())
	uc.now = fixedClock(testNow)
	return uc
}

func members(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("user-%d", i)
	}
	return out
}

func TestLimitUseCase_CanAddMember(t *testing.T) {
	ctx := context.Background()
	starter := testPlan("plan-starter", "starter", 3, 5, 1)
	unlimited := testPlan("plan-biz", "business", model.Unlimited, model.Unlimited, model.Unlimited)

	tests := []struct {
		name       string
		sub        *model.Subscription
		plan       *model.Plan
		current    int
		allowed    bool
		reasonPart string
	}{
		{
			name:       "no subscription",
			plan:       starter,
			allowed:    false,
			reasonPart: "No active subscription",
		},
		{
			name:       "expired trial",
			sub:        trialingSub("s1", "ws-1", starter.ID, testNow.Add(-time.Second)),
			plan:       starter,
			current:    1,
			allowed:    false,
			reasonPart: "not active",
		},
		{
			name:       "cancelled",
			sub:        paidSub("s1", "ws-1", starter.ID, model.ProviderStripe, "sub_1", model.SubscriptionStatusCancelled),
			plan:       starter,
			current:    1,
			allowed:    false,
			reasonPart: "not active",
		},
		{
			name:    "one below limit",
			sub:     paidSub("s1", "ws-1", starter.ID, model.ProviderStripe, "sub_1", model.SubscriptionStatusActive),
			plan:    starter,
			current: 2,
			allowed: true,
		},
		{
			name:       "at limit",
			sub:        paidSub("s1", "ws-1", starter.ID, model.ProviderStripe, "sub_1", model.SubscriptionStatusActive),
			plan:       starter,
			current:    3,
			allowed:    false,
			reasonPart: "Plan limit reached (3/3 members)",
		},
		{
			name:    "running trial below limit",
			sub:     trialingSub("s1", "ws-1", starter.ID, testNow.Add(time.Hour)),
			plan:    starter,
			current: 1,
			allowed: true,
		},
		{
			name:    "unlimited ignores usage",
			sub:     paidSub("s1", "ws-1", unlimited.ID, model.ProviderRazorpay, "sub_1", model.SubscriptionStatusActive),
			plan:    unlimited,
			current: 10000,
			allowed: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			subs := newMemSubRepo()
			if tc.sub != nil {
				subs = newMemSubRepo(tc.sub)
			}
			ws := newMemWorkspaceRepo()
			ws.seed("ws-1", "", members(tc.current)...)
			uc := newLimitUC(subs, newMemPlanRepo(tc.plan), ws)

			res, err := uc.CanAddMember(ctx, "ws-1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Allowed != tc.allowed {
				t.Fatalf("allowed=%v, want %v (reason %q)", res.Allowed, tc.allowed, res.Reason)
			}
			if tc.reasonPart != "" && !strings.Contains(res.Reason, tc.reasonPart) {
				t.Fatalf("reason %q does not contain %q", res.Reason, tc.reasonPart)
			}
		})
	}
}

func TestLimitUseCase_CanAddProject_ReportsUsage(t *testing.T) {
	ctx := context.Background()
	starter := testPlan("plan-starter", "starter", 3, 5, 1)
	subs := newMemSubRepo(paidSub("s1", "ws-1", starter.ID, model.ProviderStripe, "sub_1", model.SubscriptionStatusActive))
	ws := newMemWorkspaceRepo()
	ws.seed("ws-1", "")
	ws.projects["ws-1"] = 4
	uc := newLimitUC(subs, newMemPlanRepo(starter), ws)

	res, err := uc.CanAddProject(ctx, "ws-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Allowed || res.CurrentUsage == nil || *res.CurrentUsage != 4 || res.Limit == nil || *res.Limit != 5 {
		t.Fatalf("unexpected result: %+v", res)
	}

	ws.projects["ws-1"] = 5
	res, _ = uc.CanAddProject(ctx, "ws-1")
	if res.Allowed || *res.CurrentUsage != 5 || *res.Limit != 5 {
		t.Fatalf("expected denial at limit, got %+v", res)
	}
}

func TestLimitUseCase_CanCreateWorkspace(t *testing.T) {
	ctx := context.Background()
	starter := testPlan("plan-starter", "starter", 3, 5, 1)
	pro := testPlan("plan-pro", "pro", 10, 20, 3)
	biz := testPlan("plan-biz", "business", model.Unlimited, model.Unlimited, model.Unlimited)
	plans := newMemPlanRepo(starter, pro, biz)

	t.Run("zero memberships is always allowed", func(t *testing.T) {
		uc := newLimitUC(newMemSubRepo(), plans, newMemWorkspaceRepo())
		res, err := uc.CanCreateWorkspace(ctx, "alice")
		if err != nil || !res.Allowed {
			t.Fatalf("expected allow, got %+v err=%v", res, err)
		}
	})

	t.Run("one membership without an active subscription is denied at 1/1", func(t *testing.T) {
		ws := newMemWorkspaceRepo()
		ws.seed("ws-1", "", "alice")
		subs := newMemSubRepo(trialingSub("s1", "ws-1", pro.ID, testNow.Add(-time.Hour)))
		uc := newLimitUC(subs, plans, ws)
		res, err := uc.CanCreateWorkspace(ctx, "alice")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Allowed {
			t.Fatal("expected denial")
		}
		if !strings.Contains(res.Reason, "Plan limit reached (1/1 workspaces)") {
			t.Fatalf("unexpected reason %q", res.Reason)
		}
		if res.Limit == nil || *res.Limit != 1 {
			t.Fatalf("expected limit 1, got %+v", res.Limit)
		}
	})

	t.Run("effective limit is the best plan across memberships", func(t *testing.T) {
		ws := newMemWorkspaceRepo()
		ws.seed("ws-a", "", "alice")
		ws.seed("ws-b", "", "alice")
		subs := newMemSubRepo(
			paidSub("sa", "ws-a", starter.ID, model.ProviderStripe, "sub_a", model.SubscriptionStatusActive),
			paidSub("sb", "ws-b", pro.ID, model.ProviderStripe, "sub_b", model.SubscriptionStatusActive),
		)
		uc := newLimitUC(subs, plans, ws)
		res, err := uc.CanCreateWorkspace(ctx, "alice")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Allowed || *res.CurrentUsage != 2 || *res.Limit != 3 {
			t.Fatalf("expected 2/3 allowed, got %+v", res)
		}
	})

	t.Run("inactive subscriptions do not raise the limit", func(t *testing.T) {
		ws := newMemWorkspaceRepo()
		ws.seed("ws-a", "", "alice")
		ws.seed("ws-b", "", "alice")
		subs := newMemSubRepo(
			paidSub("sa", "ws-a", starter.ID, model.ProviderStripe, "sub_a", model.SubscriptionStatusActive),
			paidSub("sb", "ws-b", biz.ID, model.ProviderStripe, "sub_b", model.SubscriptionStatusCancelled),
		)
		uc := newLimitUC(subs, plans, ws)
		res, _ := uc.CanCreateWorkspace(ctx, "alice")
		if res.Allowed {
			t.Fatalf("expected denial, got %+v", res)
		}
	})

	t.Run("any unlimited plan allows immediately", func(t *testing.T) {
		ws := newMemWorkspaceRepo()
		for i := 0; i < 5; i++ {
			ws.seed(fmt.Sprintf("ws-%d", i), "", "alice")
		}
		subs := newMemSubRepo(paidSub("s4", "ws-4", biz.ID, model.ProviderRazorpay, "sub_4", model.SubscriptionStatusActive))
		uc := newLimitUC(subs, plans, ws)
		res, err := uc.CanCreateWorkspace(ctx, "alice")
		if err != nil || !res.Allowed || res.Limit != nil {
			t.Fatalf("expected unconditional allow, got %+v err=%v", res, err)
		}
	})
}

func TestLimitUseCase_RequireActiveSubscription(t *testing.T) {
	ctx := context.Background()
	pro := testPlan("plan-pro", "pro", 10, 20, 3)

	uc := newLimitUC(newMemSubRepo(), newMemPlanRepo(pro), newMemWorkspaceRepo())
	if _, err := uc.RequireActiveSubscription(ctx, "ws-1"); !errors.Is(err, domain.ErrNoSubscription) {
		t.Fatalf("expected ErrNoSubscription, got %v", err)
	}

	subs := newMemSubRepo(trialingSub("s1", "ws-1", pro.ID, testNow.Add(-time.Hour)))
	uc = newLimitUC(subs, newMemPlanRepo(pro), newMemWorkspaceRepo())
	if _, err := uc.RequireActiveSubscription(ctx, "ws-1"); !errors.Is(err, domain.ErrSubscriptionInactive) {
		t.Fatalf("expected ErrSubscriptionInactive, got %v", err)
	}

	subs = newMemSubRepo(paidSub("s1", "ws-1", pro.ID, model.ProviderStripe, "sub_1", model.SubscriptionStatusActive))
	uc = newLimitUC(subs, newMemPlanRepo(pro), newMemWorkspaceRepo())
	sub, err := uc.RequireActiveSubscription(ctx, "ws-1")
	if err != nil || sub.ID != "s1" {
		t.Fatalf("expected active sub, got %+v err=%v", sub, err)
	}
}
