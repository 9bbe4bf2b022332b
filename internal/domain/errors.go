package domain

import "errors"

// Failure taxonomy for order execution. Business-rule failures are returned
// to the caller as-is; infrastructure failures are retried internally where
// the operation is idempotent and only surfaced once retries are exhausted.
var (
	// ErrUnknownInstrument - symbol outside the fixed universe. Caller bug,
	// never retried.
	ErrUnknownInstrument = errors.New("unknown instrument")

	// ErrInvalidQuantity - non-positive order quantity. Caller bug.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrInsufficientPosition - sell for more than the held quantity. The
	// order is rejected and no state is mutated.
	ErrInsufficientPosition = errors.New("insufficient position")

	// ErrStorageUnavailable - transient storage failure, eligible for retry.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrConcurrentUpdateConflict - a position mutation lost a version race.
	// The engine retries a bounded number of times before surfacing it.
	ErrConcurrentUpdateConflict = errors.New("concurrent update conflict")
)
