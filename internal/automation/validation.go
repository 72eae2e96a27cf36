package automation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxDescriptionLen = 4000
	maxIDBaseLen      = 40
	idPrefix          = "ai_automation_"
	idTimeLayout      = "20060102150405"
)

var (
	nonAlnum      = regexp.MustCompile(`[^a-z0-9]`)
	nonIDChar     = regexp.MustCompile(`[^a-z0-9_]`)
	repeatedUnder = regexp.MustCompile(`_+`)
)

// ValidateDescription checks a description before it is sent to the model.
func ValidateDescription(description string) error {
	if strings.TrimSpace(description) == "" {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		return fmt.Errorf("%w: exceeds %d characters", ErrDescriptionTooLong, maxDescriptionLen)
	}
	return nil
}

// GenerateAutomationID derives an automation ID from a description.
//
// The description is lowercased, every character outside a-z0-9 becomes an
// underscore, runs of underscores collapse, and the result is trimmed and cut
// to 40 characters. The timestamp keeps IDs unique across repeated requests.
//
//	GenerateAutomationID("Turn on lights at sunset!", t) // ai_automation_turn_on_lights_at_sunset_20240101120000
func GenerateAutomationID(description string, at time.Time) string {
	base := nonAlnum.ReplaceAllString(strings.ToLower(description), "_")
	base = repeatedUnder.ReplaceAllString(base, "_")
	base = strings.Trim(base, "_")
	if len(base) > maxIDBaseLen {
		base = strings.TrimRight(base[:maxIDBaseLen], "_")
	}
	if base == "" {
		base = "automation"
	}
	return idPrefix + base + "_" + at.Format(idTimeLayout)
}

// cleanTriggerID makes a trigger ID safe for use in a trigger condition.
func cleanTriggerID(id string) string {
	id = nonIDChar.ReplaceAllString(strings.ToLower(id), "_")
	return repeatedUnder.ReplaceAllString(id, "_")
}

// GenerateID creates a new UUID for a history record.
func GenerateID() string {
	return uuid.New().String()
}
