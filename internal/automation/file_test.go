package automation

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFormatForFile(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "nested",
			in:   "id: x\nalias: y\ntriggers:\n  - id: t\n",
			want: "- id: x\n  alias: y\n  triggers:\n    - id: t",
		},
		{
			name: "single line",
			in:   "id: x",
			want: "- id: x",
		},
		{
			name: "blank lines stay blank",
			in:   "id: x\n\nalias: y\n",
			want: "- id: x\n\n  alias: y",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatForFile(tt.in); got != tt.want {
				t.Errorf("FormatForFile() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAutomationsFile_AppendCreatesWithHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "automations.yaml")
	f := NewAutomationsFile(path)

	if err := f.Append("id: a\nalias: A\n"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	want := fileHeader + entryComment + "- id: a\n  alias: A\n"
	if string(data) != want {
		t.Errorf("file = %q, want %q", data, want)
	}
}

func TestAutomationsFile_AppendKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "automations.yaml")
	existing := "- id: manual\n  alias: Manual\n"
	if err := os.WriteFile(path, []byte(existing), 0o600); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	f := NewAutomationsFile(path)
	if err := f.Append("id: generated\nalias: Generated\n"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	entries, err := f.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []FileEntry{{ID: "manual", Alias: "Manual"}, {ID: "generated", Alias: "Generated"}}
	if len(entries) != len(want) {
		t.Fatalf("Load() = %+v, want %+v", entries, want)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entries[%d] = %+v, want %+v", i, entries[i], want[i])
		}
	}
}

func TestAutomationsFile_LoadMissingOrEmpty(t *testing.T) {
	dir := t.TempDir()

	entries, err := NewAutomationsFile(filepath.Join(dir, "missing.yaml")).Load()
	if err != nil || entries != nil {
		t.Errorf("Load() missing = %v, %v; want nil, nil", entries, err)
	}

	// A freshly created file holds only the header comment.
	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte(fileHeader), 0o600); err != nil {
		t.Fatalf("seeding file: %v", err)
	}
	entries, err = NewAutomationsFile(empty).Load()
	if err != nil || len(entries) != 0 {
		t.Errorf("Load() header only = %v, %v; want empty, nil", entries, err)
	}
}

func TestAutomationsFile_AppendFailsWhenParentIsFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	f := NewAutomationsFile(filepath.Join(blocker, "automations.yaml"))
	if err := f.Append("id: a\n"); err == nil {
		t.Error("Append() error = nil, want error")
	}
}
