package automation

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the history schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}

	// Matches migrations/20260101_000000_generated_automations.up.sql
	schema := `
		CREATE TABLE generated_automations (
			id TEXT PRIMARY KEY,
			automation_id TEXT NOT NULL,
			alias TEXT,
			description TEXT NOT NULL,
			yaml TEXT NOT NULL,
			model TEXT,
			saved INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		) STRICT;`

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func testRecord(id string, at time.Time) *Record {
	return &Record{
		ID:           id,
		AutomationID: "ai_automation_" + id,
		Alias:        "Alias " + id,
		Description:  "turn on the lights " + id,
		YAML:         "id: ai_automation_" + id + "\n",
		Model:        "gpt-3.5-turbo",
		Saved:        true,
		CreatedAt:    at,
	}
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC)
	rec := testRecord("a1", at)
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "a1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.AutomationID != rec.AutomationID || got.Alias != rec.Alias || got.YAML != rec.YAML {
		t.Errorf("GetByID() = %+v, want %+v", got, rec)
	}
	if !got.Saved {
		t.Error("Saved = false, want true")
	}
	if !got.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, at)
	}
}

func TestSQLiteRepository_CreateFillsDefaults(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	rec := &Record{AutomationID: "x", Description: "d", YAML: "id: x\n"}
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rec.ID == "" {
		t.Error("ID not generated")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	got, err := repo.GetByID(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Alias != "" || got.Model != "" {
		t.Errorf("nullable fields = %q/%q, want empty", got.Alias, got.Model)
	}
}

func TestSQLiteRepository_CreateDuplicate(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testRecord("dup", time.Now())); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	err := repo.Create(ctx, testRecord("dup", time.Now()))
	if !errors.Is(err, ErrExists) {
		t.Errorf("Create() duplicate error = %v, want ErrExists", err)
	}
}

func TestSQLiteRepository_GetByIDNotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_LatestAndList(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if _, err := repo.Latest(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Latest() on empty error = %v, want ErrNotFound", err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// Sub-second offsets check that ordering is chronological, not textual.
	offsets := []time.Duration{0, 500 * time.Millisecond, time.Second, 2 * time.Second}
	for i, off := range offsets {
		if err := repo.Create(ctx, testRecord(string(rune('a'+i)), base.Add(off))); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	latest, err := repo.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.ID != "d" {
		t.Errorf("Latest().ID = %q, want %q", latest.ID, "d")
	}

	tests := []struct {
		name    string
		limit   int
		wantIDs []string
	}{
		{"default limit", 0, []string{"d", "c", "b", "a"}},
		{"limited", 2, []string{"d", "c"}},
		{"over max", 1000, []string{"d", "c", "b", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.limit)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("List() len = %d, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("List()[%d].ID = %q, want %q", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testRecord("del", time.Now())); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Delete(ctx, "del"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "del"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}
