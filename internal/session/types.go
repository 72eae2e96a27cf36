package session

import (
	"context"
	"time"

	"github.com/nerrad567/automation-creator/internal/conversation"
	"github.com/nerrad567/automation-creator/internal/submission"
)

// Phase is the lifecycle position of a session.
type Phase string

const (
	PhaseCollecting Phase = "collecting"
	PhaseSubmitting Phase = "submitting"
	PhaseDone       Phase = "done"
	PhaseError      Phase = "error"
)

// Mode selects how the description is gathered.
type Mode string

const (
	// ModeGuided asks the configured questions one at a time.
	ModeGuided Mode = "guided"

	// ModeSingle takes one free-text description.
	ModeSingle Mode = "single"
)

// ParseMode validates a mode string. Empty means guided.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeGuided:
		return ModeGuided, nil
	case ModeSingle:
		return ModeSingle, nil
	default:
		return "", ErrInvalidMode
	}
}

// Messages shown after a submission resolves without result text.
const (
	infoPendingCorroborated = "Automation created and saved. The YAML is not available yet; it will appear in your automations list."
	infoPending             = "The automation was submitted but its YAML could not be retrieved. Check your automations list before trying again."
)

// State is an immutable view of a session, suitable for JSON.
type State struct {
	ID    string `json:"id"`
	Mode  Mode   `json:"mode"`
	Phase Phase  `json:"phase"`

	// Guided mode only.
	Messages      []conversation.Message `json:"messages,omitempty"`
	CurrentPrompt string                 `json:"current_prompt,omitempty"`
	StepIndex     int                    `json:"step_index"`
	StepCount     int                    `json:"step_count"`
	Complete      bool                   `json:"complete"`

	// PendingDescription is the request being submitted.
	PendingDescription string `json:"pending_description,omitempty"`

	// Set once a submission resolves.
	Outcome    string `json:"outcome,omitempty"`
	ResultText string `json:"result_text,omitempty"`
	ErrorText  string `json:"error_text,omitempty"`
	Info       string `json:"info,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`

	seq uint64
}

// Submitter resolves a request into an outcome. *submission.Orchestrator
// satisfies it.
type Submitter interface {
	Submit(ctx context.Context, req submission.Request) submission.Outcome
}

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
