package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrForbidden          = errors.New("forbidden")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid database execution context")

	// Billing
	ErrNoSubscription       = errors.New("no subscription found")
	ErrSubscriptionInactive = errors.New("subscription has expired or is not active")
	ErrLimitReached         = errors.New("plan limit reached")
	ErrPlanNotFound         = errors.New("plan not found")
	ErrPlanNotConfigured    = errors.New("plan is not configured for this payment provider")
	ErrUnsupportedCurrency  = errors.New("unsupported currency")
	ErrProviderFailure      = errors.New("payment provider request failed")
	ErrNoProviderLink       = errors.New("subscription is not linked to a payment provider")
)
