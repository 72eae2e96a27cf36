// Package database provides the SQLite store for the automation creator.
//
// It manages the connection (WAL mode, busy timeout, single writer) and
// applies schema migrations. It holds the history of generated automations
// and the audit trail; sessions live in memory.
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(ctx, database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be nullable or have defaults,
// and every YYYYMMDD_HHMMSS_name.up.sql has a matching .down.sql.
package database
