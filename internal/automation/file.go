package automation

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	fileHeader    = "# Automations created by AI Automation Creator\n\n"
	entryComment  = "\n# AI Generated Automation\n"
	fileDirPerm   = 0o750
	fileWritePerm = 0o640
)

// FileEntry is one automation read back from the automations file.
type FileEntry struct {
	ID    string `yaml:"id"`
	Alias string `yaml:"alias"`
}

// AutomationsFile appends generated automations to a host automations file.
//
// Thread Safety: all methods are safe for concurrent use.
type AutomationsFile struct {
	path string
	mu   sync.Mutex
}

// NewAutomationsFile returns a writer for path. The file is created on the
// first append.
func NewAutomationsFile(path string) *AutomationsFile {
	return &AutomationsFile{path: path}
}

// Path returns the file path.
func (f *AutomationsFile) Path() string {
	return f.path
}

// Append adds an automation as a list item, creating the file with a header
// when it does not exist.
func (f *AutomationsFile) Append(automationYAML string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), fileDirPerm); err != nil {
		return fmt.Errorf("creating automations directory: %w", err)
	}

	if _, err := os.Stat(f.path); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(f.path, []byte(fileHeader), fileWritePerm); err != nil {
			return fmt.Errorf("creating automations file: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("checking automations file: %w", err)
	}

	out, err := os.OpenFile(f.path, os.O_APPEND|os.O_WRONLY, fileWritePerm) //nolint:gosec // path comes from config
	if err != nil {
		return fmt.Errorf("opening automations file: %w", err)
	}

	_, writeErr := out.WriteString(entryComment + FormatForFile(automationYAML) + "\n")
	closeErr := out.Close()
	if writeErr != nil {
		return fmt.Errorf("writing automation: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing automations file: %w", closeErr)
	}
	return nil
}

// Load reads the automations in the file. A missing or empty file yields
// no entries.
func (f *AutomationsFile) Load() ([]FileEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading automations file: %w", err)
	}

	var entries []FileEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing automations file: %w", err)
	}
	return entries, nil
}

// FormatForFile turns a single automation mapping into a list item: the
// first line gets a "- " marker and the rest are indented to match.
func FormatForFile(automationYAML string) string {
	lines := strings.Split(strings.TrimRight(automationYAML, "\n"), "\n")
	for i, line := range lines {
		switch {
		case i == 0:
			lines[i] = "- " + line
		case line == "":
		default:
			lines[i] = "  " + line
		}
	}
	return strings.Join(lines, "\n")
}
