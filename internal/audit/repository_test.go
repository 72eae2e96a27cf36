package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the audit schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	// A second pooled connection would see a different :memory: database.
	db.SetMaxOpenConns(1)

	// Matches migrations/20260101_000001_audit_entries.up.sql
	schema := `
		CREATE TABLE audit_entries (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT,
			subject TEXT,
			source TEXT NOT NULL,
			details TEXT,
			created_at TEXT NOT NULL
		) STRICT;`

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// newTestRepo returns a repository whose clock advances one second per entry.
func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo := NewSQLiteRepository(setupTestDB(t))
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	repo.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	return repo
}

func TestSQLiteRepository_CreateDefaults(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e := &Entry{
		Action:     ActionSessionCreate,
		EntityType: EntitySession,
		EntityID:   "sess-1",
		Subject:    "panel-admin",
		Details:    map[string]any{"mode": "guided"},
	}
	if err := repo.Create(ctx, e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if e.ID == "" {
		t.Error("ID not generated")
	}
	if e.Source != "api" {
		t.Errorf("Source = %q, want api", e.Source)
	}
	if e.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	page, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 1 || len(page.Entries) != 1 {
		t.Fatalf("List() total=%d len=%d, want 1/1", page.Total, len(page.Entries))
	}
	got := page.Entries[0]
	if got.ID != e.ID || got.Subject != "panel-admin" || got.EntityID != "sess-1" {
		t.Errorf("entry = %+v", got)
	}
	if got.Details["mode"] != "guided" {
		t.Errorf("details = %v, want mode=guided", got.Details)
	}
	if !got.CreatedAt.Equal(e.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, e.CreatedAt)
	}
}

func TestSQLiteRepository_CreateRequiresAction(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.Create(context.Background(), &Entry{EntityType: EntitySession}); err == nil {
		t.Error("Create() without action should fail")
	}
	if err := repo.Create(context.Background(), &Entry{Action: ActionSessionCreate}); err == nil {
		t.Error("Create() without entity type should fail")
	}
}

func TestSQLiteRepository_ListFiltersAndOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seed := []Entry{
		{Action: ActionSessionCreate, EntityType: EntitySession, EntityID: "s1", Subject: "alice"},
		{Action: ActionSessionSubmit, EntityType: EntitySession, EntityID: "s1", Subject: "alice"},
		{Action: ActionSessionCreate, EntityType: EntitySession, EntityID: "s2", Subject: "bob"},
		{Action: ActionAutomationDelete, EntityType: EntityAutomation, EntityID: "gen-1", Subject: "bob"},
	}
	for i := range seed {
		if err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("Create(%d) error = %v", i, err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantFirst string
	}{
		{name: "all newest first", filter: Filter{}, wantTotal: 4, wantFirst: ActionAutomationDelete},
		{name: "by action", filter: Filter{Action: ActionSessionCreate}, wantTotal: 2, wantFirst: ActionSessionCreate},
		{name: "by entity", filter: Filter{EntityType: EntitySession, EntityID: "s1"}, wantTotal: 2, wantFirst: ActionSessionSubmit},
		{name: "by subject", filter: Filter{Subject: "bob"}, wantTotal: 2, wantFirst: ActionAutomationDelete},
		{name: "no match", filter: Filter{Action: ActionSessionReset}, wantTotal: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if page.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", page.Total, tt.wantTotal)
			}
			if len(page.Entries) != tt.wantTotal {
				t.Fatalf("len(Entries) = %d, want %d", len(page.Entries), tt.wantTotal)
			}
			if tt.wantTotal > 0 && page.Entries[0].Action != tt.wantFirst {
				t.Errorf("first action = %q, want %q", page.Entries[0].Action, tt.wantFirst)
			}
		})
	}
}

func TestSQLiteRepository_ListPagination(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := repo.Create(ctx, &Entry{Action: ActionSessionReset, EntityType: EntitySession}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	page, err := repo.List(ctx, Filter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 5 || len(page.Entries) != 1 {
		t.Errorf("total=%d len=%d, want 5/1", page.Total, len(page.Entries))
	}

	page, err = repo.List(ctx, Filter{Limit: MaxLimit + 50, Offset: -3})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Limit != MaxLimit || page.Offset != 0 {
		t.Errorf("limit=%d offset=%d, want %d/0", page.Limit, page.Offset, MaxLimit)
	}
}

func TestSQLiteRepository_ListEmpty(t *testing.T) {
	repo := newTestRepo(t)
	page, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Entries == nil {
		t.Error("Entries should be an empty slice, not nil")
	}
	if page.Limit != DefaultLimit {
		t.Errorf("Limit = %d, want %d", page.Limit, DefaultLimit)
	}
}
