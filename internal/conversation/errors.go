package conversation

import "errors"

// Domain errors for the conversation package.
var (
	// ErrEmptyInput is returned when an answer is empty after trimming.
	// The engine state is unchanged.
	ErrEmptyInput = errors.New("conversation: empty input")

	// ErrNotComplete is returned when the transcript is requested before
	// every question has been answered.
	ErrNotComplete = errors.New("conversation: not complete")

	// ErrComplete is returned when an answer is submitted after the last
	// question has already been answered.
	ErrComplete = errors.New("conversation: already complete")

	// ErrNoQuestions is returned when an engine is created without questions.
	ErrNoQuestions = errors.New("conversation: no questions")
)
