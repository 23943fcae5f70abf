package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Purchase validation errors (reported synchronously, never retried)
	ErrPlanNotFound                = errors.New("plan not found or deleted")
	ErrMemberNotFound              = errors.New("member not found")
	ErrInvalidPaymentMethod        = errors.New("unsupported payment method")
	ErrMissingPaymentSource        = errors.New("card payment requires a source token")
	ErrAmountBelowMinimum          = errors.New("amount below the method minimum")
	ErrDuplicateActiveSubscription = errors.New("member already has an active subscription to this plan")

	// Storage-layer failures surfaced through repositories
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid transaction context")
)
