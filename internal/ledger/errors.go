package ledger

import "errors"

// Sentinel errors at the service boundary. Callers branch on these with
// errors.Is instead of relying on error types crossing layers.
var (
	// ErrLockTimeout is a retryable contention failure: the append's
	// lock wait expired before the key was freed.
	ErrLockTimeout = errors.New("ledger lock timeout")

	// ErrInsufficientBalance rejects a debit that would drive a money
	// balance negative. Non-retryable business rule; nothing was appended.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientPosition rejects a sell that would drive an
	// inventory position negative.
	ErrInsufficientPosition = errors.New("insufficient position")

	// ErrInvalidMagnitude rejects a negative magnitude; the sign lives
	// in Side, never in the magnitude.
	ErrInvalidMagnitude = errors.New("magnitude must be non-negative")

	// ErrInvalidSide rejects a side other than +1/-1.
	ErrInvalidSide = errors.New("side must be credit (+1) or debit (-1)")
)
