package db

import (
	"database/sql"
	"fmt"
)

// baselineLegacy records goose versions for databases created by the
// pre-Go implementation, which applied schema.sql directly and kept no
// migration bookkeeping. Without a baseline, goose would try to re-create
// tables that already exist.
func baselineLegacy(conn *sql.DB) error {
	hasTable := func(name string) (bool, error) {
		var count int
		err := conn.QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name,
		).Scan(&count)
		if err != nil {
			return false, fmt.Errorf("check table %s: %w", name, err)
		}
		return count > 0, nil
	}

	// Already bootstrapped (or fresh database about to be migrated).
	if ok, err := hasTable("goose_db_version"); err != nil || ok {
		return err
	}

	// Legacy databases always have the sessions table.
	if ok, err := hasTable("sessions"); err != nil || !ok {
		return err
	}

	// Map existing legacy tables to the migrations that would create them.
	baseline := []struct {
		table   string
		version int
	}{
		{"sessions", 1},
		{"entities", 2},
		{"cli_versions", 3},
	}

	_, err := conn.Exec(`CREATE TABLE goose_db_version (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		version_id INTEGER NOT NULL,
		is_applied INTEGER NOT NULL,
		tstamp TIMESTAMP DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create goose_db_version: %w", err)
	}
	if _, err := conn.Exec(
		`INSERT INTO goose_db_version (version_id, is_applied) VALUES (0, 1)`,
	); err != nil {
		return fmt.Errorf("insert goose zero version: %w", err)
	}

	for _, b := range baseline {
		ok, err := hasTable(b.table)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if _, err := conn.Exec(
			`INSERT INTO goose_db_version (version_id, is_applied) VALUES (?, 1)`, b.version,
		); err != nil {
			return fmt.Errorf("insert goose version %d: %w", b.version, err)
		}
	}

	return nil
}
