package model

import (
	"fmt"

	"workspace-billing/internal/domain"
)

type Resource string

const (
	ResourceMembers    Resource = "members"
	ResourceProjects   Resource = "projects"
	ResourceWorkspaces Resource = "workspaces"
)

// LimitResult is the soft outcome of a limit gate check.
type LimitResult struct {
	Allowed      bool   `json:"allowed"`
	Reason       string `json:"reason,omitempty"`
	CurrentUsage *int   `json:"current_usage,omitempty"`
	Limit        *int   `json:"limit,omitempty"`
}

func Allow() LimitResult { return LimitResult{Allowed: true} }

// AllowWithUsage allows and reports usage against a finite limit.
func AllowWithUsage(current, limit int) LimitResult {
	return LimitResult{Allowed: true, CurrentUsage: &current, Limit: &limit}
}

func Deny(reason string) LimitResult { return LimitResult{Reason: reason} }

// DenyLimitReached reports a reached limit with current usage.
func DenyLimitReached(res Resource, current, limit int) LimitResult {
	return LimitResult{
		Reason:       fmt.Sprintf("Plan limit reached (%d/%d %s). Upgrade your plan to add more.", current, limit, res),
		CurrentUsage: &current,
		Limit:        &limit,
	}
}

// LimitError turns a denied gate result into an error for direct actions.
type LimitError struct {
	Result LimitResult
}

func (e *LimitError) Error() string { return e.Result.Reason }

func (e *LimitError) Unwrap() error { return domain.ErrLimitReached }
