package session

import "errors"

var (
	// ErrSubmissionInFlight is returned by Submit while a submission is running.
	ErrSubmissionInFlight = errors.New("session: submission already in flight")

	// ErrResetNotAllowed is returned by Reset while a submission is running.
	ErrResetNotAllowed = errors.New("session: reset not allowed while submitting")

	// ErrNotCollecting is returned when input arrives after the session finished.
	// Reset returns the session to collecting.
	ErrNotCollecting = errors.New("session: not collecting input")

	// ErrWrongMode is returned for guided-only operations on a single-mode session.
	ErrWrongMode = errors.New("session: operation not available in this mode")

	// ErrInvalidMode is returned for an unknown mode.
	ErrInvalidMode = errors.New("session: invalid mode")

	// ErrSessionClosed is returned for input to a session after Close.
	ErrSessionClosed = errors.New("session: closed")

	// ErrSessionNotFound is returned by Manager lookups.
	ErrSessionNotFound = errors.New("session: not found")
)
