package models

import "errors"

var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidTransfer     = errors.New("sender and recipient must differ")
	ErrInvalidAccount      = errors.New("account id must not be empty")
	ErrAccountNotFound     = errors.New("account not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrCancelled           = errors.New("transfer cancelled")
	ErrStorageFault        = errors.New("storage fault")
	ErrIdempotencyConflict = errors.New("idempotency key reused with different parameters")
)

// IsRejection reports whether err is a deterministic validation or business
// rule failure. Such errors are never retried.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidTransfer) ||
		errors.Is(err, ErrInvalidAccount) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrIdempotencyConflict)
}
