package errors

import (
	goerrors "errors"
	"fmt"
)

// Failure classes. Every error crossing a component boundary wraps one of them
// so transports can decide what the caller sees.
var (
	ErrValidation  = fmt.Errorf("validation failed")
	ErrPersistence = fmt.Errorf("persistence failure")
	ErrDelivery    = fmt.Errorf("delivery failed")
	ErrIdentity    = fmt.Errorf("identity could not be resolved")
)

var (
	ErrMessageNotFound    = fmt.Errorf("message not found")
	ErrForbidden          = fmt.Errorf("operation not allowed for this user")
	ErrUnknownMethod      = fmt.Errorf("unknown method")
	ErrRateLimited        = fmt.Errorf("too many invocations")
	ErrConnectionClosed   = fmt.Errorf("connection closed")
	ErrBufferFull         = fmt.Errorf("connection buffer full")
	ErrInvalidCursor      = fmt.Errorf("invalid cursor")
	ErrInvalidStoreDriver = fmt.Errorf("unknown store driver")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrEmptyWords         = fmt.Errorf("no words have been found")
)

// Validation wraps a human readable reason into a ValidationError.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Persistence wraps a storage failure into a PersistenceError.
func Persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// Delivery wraps a fan-out failure into a DeliveryError.
func Delivery(err error) error {
	return fmt.Errorf("%w: %w", ErrDelivery, err)
}

// Kind returns the wire name of the failure class of err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case goerrors.Is(err, ErrValidation), goerrors.Is(err, ErrInvalidCursor):
		return "validation"
	case goerrors.Is(err, ErrIdentity):
		return "identity"
	case goerrors.Is(err, ErrMessageNotFound):
		return "not_found"
	case goerrors.Is(err, ErrForbidden):
		return "forbidden"
	case goerrors.Is(err, ErrUnknownMethod):
		return "unknown_method"
	case goerrors.Is(err, ErrRateLimited):
		return "rate_limited"
	case goerrors.Is(err, ErrPersistence):
		return "persistence"
	case goerrors.Is(err, ErrDelivery), goerrors.Is(err, ErrBufferFull), goerrors.Is(err, ErrConnectionClosed):
		return "delivery"
	default:
		return "internal"
	}
}
