package automation

import "errors"

// Domain errors for the automation package.
//
//	if errors.Is(err, automation.ErrInvalidYAML) {
//	    // ask for a different description
//	}
var (
	// ErrNotFound is returned when a generated automation record does not exist.
	ErrNotFound = errors.New("automation: not found")

	// ErrExists is returned when creating a record with an ID that already exists.
	ErrExists = errors.New("automation: already exists")

	// ErrEmptyDescription is returned when no description was given.
	ErrEmptyDescription = errors.New("automation: description is required")

	// ErrDescriptionTooLong is returned when a description exceeds maxDescriptionLen.
	ErrDescriptionTooLong = errors.New("automation: description too long")

	// ErrNotConfigured is returned when no language model is configured.
	ErrNotConfigured = errors.New("automation: language model not configured")

	// ErrEmptyResponse is returned when the model returned no content.
	ErrEmptyResponse = errors.New("automation: empty model response")

	// ErrInvalidYAML is returned when generated text is not a single automation mapping.
	ErrInvalidYAML = errors.New("automation: invalid automation YAML")

	// ErrNoResult is returned by a ResultStore that holds nothing yet.
	ErrNoResult = errors.New("automation: no result stored")
)
