// AI Automation Creator
//
// This is the main entry point for the automation creator. It serves a
// panel that turns a short guided conversation, or a single free-text
// description, into a Home Assistant automation generated by a language
// model and appended to automations.yaml.
//
// Usage:
//
//	automationcreator serve --config configs/config.yaml
//	automationcreator token --role admin
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on Ctrl+C and SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCommand().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// getConfigPath returns the configuration file path.
// An explicit flag wins, then AUTOCREATOR_CONFIG, then the default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("AUTOCREATOR_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
