package domain

import "errors"

var (
	ErrNotFound                  = errors.New("not found")
	ErrInvalidRequest            = errors.New("invalid request")
	ErrInsufficientInventory     = errors.New("not enough available seats")
	ErrConcurrencyConflict       = errors.New("concurrent modification, retry")
	ErrInvalidTransition         = errors.New("invalid status transition")
	ErrUniqueGenerationExhausted = errors.New("could not generate a unique code")
	ErrTimeout                   = errors.New("storage timeout")
)

// Retryable reports whether an operation may succeed if repeated as is.
func Retryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, ErrTimeout)
}
