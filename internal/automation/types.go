package automation

import (
	"context"
	"time"
)

// Host service names served by Service.
const (
	Domain         = "ai_automation_creator"
	ServiceCreate  = "create_automation"
	ServiceFetch   = "get_automation_yaml"
	ReloadDomain   = "automation"
	ServiceReload  = "reload"
	entityIDPrefix = "automation."
)

// Persistent notification IDs and titles.
const (
	NotificationSuccess         = "ai_automation_creator_success"
	NotificationWarning         = "ai_automation_creator_warning"
	NotificationError           = "ai_automation_creator_error"
	NotificationAPIError        = "ai_automation_creator_api_error"
	NotificationGenerationError = "ai_automation_creator_generation_error"

	titleSuccess = "AI Automation Creator Success"
	titleWarning = "AI Automation Creator Warning"
	titleError   = "AI Automation Creator Error"
)

// Record is one generated automation kept in the history.
type Record struct {
	ID           string    `json:"id"`
	AutomationID string    `json:"automation_id"`
	Alias        string    `json:"alias,omitempty"`
	Description  string    `json:"description"`
	YAML         string    `json:"yaml"`
	Model        string    `json:"model,omitempty"`
	Saved        bool      `json:"saved"`
	CreatedAt    time.Time `json:"created_at"`
}

// Generator produces automation YAML from a description.
type Generator interface {
	// Generate returns the raw model text for description. entities lists
	// the host entities the automation may refer to.
	Generate(ctx context.Context, description string, entities []string) (string, error)

	// Model names the model in use, for the history.
	Model() string
}

// ResultStore holds the most recently generated automation YAML.
type ResultStore interface {
	// Save replaces the stored result.
	Save(ctx context.Context, yaml string) error

	// Latest returns the stored result or ErrNoResult.
	Latest(ctx context.Context) (string, error)
}

// Logger is the logging interface used by this package.
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
