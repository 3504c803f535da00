package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrAlreadyExists        = errors.New("entity already exists")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrMissingPlanField     = errors.New("payment link is missing a required plan field")
	ErrOrderAlreadySettled  = errors.New("order already settled")

	// Infrastructure-level errors surfaced by repositories
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context")

	// Lock errors
	ErrOrderLocked = errors.New("order is being settled by another caller")
)
