package domain

import "errors"

// Failure classes surfaced by the board. Every operation failure is
// mapped onto one of these before it reaches a caller, so transports
// can translate them without inspecting backend-specific errors.
var (
	// ErrSetupFailed means the backend connection could not be
	// established. It blocks the whole UI and is never retried
	// automatically.
	ErrSetupFailed = errors.New("backend setup failed")

	// ErrAuthFailed means a sign-in or sign-out attempt failed. The
	// session continues without a resolved identity.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrNotAuthenticated means an operation requiring an identity ran
	// before one was resolved.
	ErrNotAuthenticated = errors.New("no authenticated identity")

	// ErrSubscriptionFailed means the live listings subscription broke.
	// The last published list stays visible.
	ErrSubscriptionFailed = errors.New("subscription failed")

	// ErrInvalidListing means create input failed validation. No write
	// was attempted.
	ErrInvalidListing = errors.New("invalid listing")

	// ErrWriteFailed means a create or delete was rejected or lost by
	// the backend. Never retried automatically.
	ErrWriteFailed = errors.New("write failed")

	// ErrCreateInFlight means a create was attempted while another one
	// was still awaiting acknowledgement.
	ErrCreateInFlight = errors.New("create already in flight")
)
