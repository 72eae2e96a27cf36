package automation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for generated automation history.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id string) (*Record, error)
	Latest(ctx context.Context) (*Record, error)
	List(ctx context.Context, limit int) ([]Record, error)
	Delete(ctx context.Context, id string) error
}

// recordColumns is the SELECT column list for record queries.
const recordColumns = `id, automation_id, alias, description, yaml, model, saved, created_at`

// timeLayout is fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new record. ID and CreatedAt are filled in when empty.
func (r *SQLiteRepository) Create(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = GenerateID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO generated_automations (
			id, automation_id, alias, description, yaml, model, saved, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.AutomationID,
		nullableString(rec.Alias),
		rec.Description,
		rec.YAML,
		nullableString(rec.Model),
		boolToInt(rec.Saved),
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting generated automation: %w", err)
	}
	return nil
}

// GetByID retrieves a record by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM generated_automations WHERE id = ?`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying generated automation: %w", err)
	}
	return rec, nil
}

// Latest retrieves the most recently created record.
func (r *SQLiteRepository) Latest(ctx context.Context) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM generated_automations ORDER BY created_at DESC LIMIT 1`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying latest generated automation: %w", err)
	}
	return rec, nil
}

// List retrieves recent records, newest first. limit is clamped to 1-100
// and defaults to 20.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := `SELECT ` + recordColumns + ` FROM generated_automations ORDER BY created_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying generated automations: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning generated automation: %w", scanErr)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating generated automations: %w", err)
	}
	return records, nil
}

// Delete removes a record by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM generated_automations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting generated automation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(scanner rowScanner) (*Record, error) {
	var rec Record
	var alias, model sql.NullString
	var saved int
	var createdAt string

	err := scanner.Scan(
		&rec.ID,
		&rec.AutomationID,
		&alias,
		&rec.Description,
		&rec.YAML,
		&model,
		&saved,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Alias = alias.String
	rec.Model = model.String
	rec.Saved = saved != 0
	if t, parseErr := time.Parse(timeLayout, createdAt); parseErr == nil {
		rec.CreatedAt = t
	}
	return &rec, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
