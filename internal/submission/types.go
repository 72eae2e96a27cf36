package submission

import (
	"time"

	"github.com/nerrad567/automation-creator/internal/infrastructure/config"
)

// Host services and markers used by the orchestrator.
const (
	// Domain is the host service domain of the automation creator.
	Domain = "ai_automation_creator"

	// ServiceCreate generates an automation from {"description": ...}.
	ServiceCreate = "create_automation"

	// ServiceFetch returns the most recently generated automation.
	ServiceFetch = "get_automation_yaml"

	// SuccessNotificationID is the persistent notification the backend raises
	// after writing an automation.
	SuccessNotificationID = "ai_automation_creator_success"

	// genericFailure is shown when a rejection carries no message.
	genericFailure = "Failed to create automation"
)

// resultKeys are the response fields that may carry the generated text, in
// order of preference.
var resultKeys = []string{"result_text", "automation", "yaml"}

// Kind tags an Outcome.
type Kind int

const (
	// KindSuccess means the generated text is available.
	KindSuccess Kind = iota + 1

	// KindPendingFetch means creation was accepted but the text could not be retrieved.
	KindPendingFetch

	// KindFailure means creation was rejected or the submission broke.
	KindFailure
)

// String returns the kind in snake_case.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindPendingFetch:
		return "pending_fetch"
	case KindFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Request is one submission. It is built once and never modified.
type Request struct {
	Description string
}

// Outcome is the result of a submission.
//
// ResultText is set only for KindSuccess and ErrorText only for KindFailure.
// Attempts counts fetch calls. Corroborated is set for KindPendingFetch when
// the host showed the success notification.
type Outcome struct {
	Kind         Kind
	ResultText   string
	ErrorText    string
	Attempts     int
	Corroborated bool
}

// Success builds a KindSuccess outcome.
func Success(text string) Outcome {
	return Outcome{Kind: KindSuccess, ResultText: text}
}

// PendingFetch builds a KindPendingFetch outcome.
func PendingFetch() Outcome {
	return Outcome{Kind: KindPendingFetch}
}

// Failure builds a KindFailure outcome.
func Failure(text string) Outcome {
	return Outcome{Kind: KindFailure, ErrorText: text}
}

// Policy controls result polling.
type Policy struct {
	// InitialDelay is waited once before the first fetch.
	InitialDelay time.Duration

	// RetryDelay is waited between consecutive fetches.
	RetryDelay time.Duration

	// MaxFetchAttempts is the total fetch budget.
	MaxFetchAttempts int
}

// DefaultPolicy returns 1.5s delays and three fetches.
func DefaultPolicy() Policy {
	return Policy{
		InitialDelay:     1500 * time.Millisecond,
		RetryDelay:       1500 * time.Millisecond,
		MaxFetchAttempts: 3,
	}
}

// PolicyFromConfig converts the submission section of config.yaml.
func PolicyFromConfig(cfg config.SubmissionConfig) Policy {
	return Policy{
		InitialDelay:     time.Duration(cfg.InitialDelayMS) * time.Millisecond,
		RetryDelay:       time.Duration(cfg.RetryDelayMS) * time.Millisecond,
		MaxFetchAttempts: cfg.MaxFetchAttempts,
	}
}

// Recorder receives one call per completed submission.
type Recorder interface {
	RecordSubmission(outcome Outcome, duration time.Duration)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(outcome Outcome, duration time.Duration)

// RecordSubmission calls f.
func (f RecorderFunc) RecordSubmission(outcome Outcome, duration time.Duration) {
	f(outcome, duration)
}

// Logger defines the logging interface used by the orchestrator.
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
