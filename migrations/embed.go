// Package migrations compiles the SQLite schema into the binary. Importing
// it for side effects points the database package at the embedded files.
package migrations

import (
	"embed"

	"github.com/nerrad567/automation-creator/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.MigrationsFS = files
	database.MigrationsDir = "."
}
