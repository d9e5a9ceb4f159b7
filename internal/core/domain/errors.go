package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSyncInProgress indicates a batch run is already running.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrBudgetExhausted signals that the run's request ceiling was reached.
	// It is a control signal: callers stop issuing calls but do not fail.
	ErrBudgetExhausted = errors.New("request budget exhausted")

	// Authentication Errors.

	// ErrAuthInvalid indicates the access token was rejected by the API.
	ErrAuthInvalid = errors.New("authentication invalid")

	// ErrTokenRefreshFailed indicates the token renewal call did not succeed.
	ErrTokenRefreshFailed = errors.New("token refresh failed")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)
