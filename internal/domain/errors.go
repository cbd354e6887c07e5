package domain

import "errors"

// Error taxonomy shared by every layer. Callers classify with errors.Is.
var (
	ErrValidation     = errors.New("validation error")
	ErrGateway        = errors.New("payment gateway error")
	ErrGatewayTimeout = errors.New("payment gateway timeout")
	ErrNotFound       = errors.New("not found")
	ErrStorage        = errors.New("storage error")
)

// Repository-level outcomes.
var (
	ErrAlreadyExists     = errors.New("record already exists")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// IsRetriable reports whether the caller may retry the failed operation.
// Validation failures are never retriable.
func IsRetriable(err error) bool {
	if err == nil || errors.Is(err, ErrValidation) {
		return false
	}
	return errors.Is(err, ErrGateway) ||
		errors.Is(err, ErrGatewayTimeout) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrStorage)
}
