package host

import (
	"errors"
	"fmt"
)

var (
	// ErrServiceNotFound is returned when no handler is registered for a domain/service pair.
	ErrServiceNotFound = errors.New("host: service not found")

	// ErrInvalidService is returned when registering an empty name or nil handler.
	ErrInvalidService = errors.New("host: invalid service registration")

	// ErrTimeout is returned when a remote service call is not answered in time.
	ErrTimeout = errors.New("host: service call timed out")

	// ErrStatesUnavailable is returned when no entity snapshot has been received yet.
	ErrStatesUnavailable = errors.New("host: entity states unavailable")
)

// ServiceError is a rejection raised by a service handler. Message is
// human-readable and safe to show to the user.
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// NewServiceError formats a ServiceError.
func NewServiceError(format string, args ...any) *ServiceError {
	return &ServiceError{Message: fmt.Sprintf(format, args...)}
}

// RejectionMessage returns the user-facing message carried by err, or
// fallback when err is not a ServiceError.
func RejectionMessage(err error, fallback string) string {
	var se *ServiceError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return fallback
}
