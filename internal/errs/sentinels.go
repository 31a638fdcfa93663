// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication (missing/invalid/expired token, bad login).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation indicates malformed or incomplete input.
	ErrValidation = errors.New("validation")

	// ErrSyncFailed indicates a calendar provider call failed. Never surfaced to API callers.
	ErrSyncFailed = errors.New("calendar sync failed")

	// ErrNoCalendarCredential indicates the principal has no calendar refresh credential.
	ErrNoCalendarCredential = errors.New("no calendar credential")
)
