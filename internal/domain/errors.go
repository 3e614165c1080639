package domain

import "errors"

// Domain errors
var (
	// Transition errors
	ErrSalonClosed   = errors.New("salon is closed for new joins")
	ErrEntryNotFound = errors.New("queue entry not found")
	ErrInvalidState  = errors.New("invalid queue state")

	// Validation errors
	ErrInvalidRequest = errors.New("missing or malformed request fields")
	ErrInvalidSalonID = errors.New("invalid salon id")

	// Authorization errors
	ErrUnauthorized = errors.New("operation requires owner role")
)

// ErrorCode maps a domain error to its wire error code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrSalonClosed):
		return "SALON_CLOSED"
	case errors.Is(err, ErrEntryNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidState):
		return "INVALID_STATE"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInvalidSalonID):
		return "INVALID_REQUEST"
	default:
		return "INTERNAL_ERROR"
	}
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrInvalidSalonID)
}

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrEntryNotFound)
}
