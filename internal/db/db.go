// Package db is the storage layer for memtrail: a single local SQLite
// database holding sessions, per-session events, the knowledge base,
// project aggregates, and the entity graph. All writes are short-lived
// single statements or transactions so that concurrent tool processes
// never observe a half-written row.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned for malformed input rejected before any write.
var ErrValidation = errors.New("validation failed")

// DB wraps a sql.DB connection to the SQLite database.
type DB struct {
	conn *sql.DB
}

// Open creates the database file if needed, applies pending migrations,
// and returns a ready connection. The parent directory is created on demand
// so first-run invocations work from a clean home directory.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := baselineLegacy(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("baseline legacy database: %w", err)
	}

	if err := migrate(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &DB{conn: conn}, nil
}

// migrate applies all pending goose migrations from the embedded FS.
func migrate(conn *sql.DB) error {
	goose.SetBaseFS(migrationFS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(conn, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying *sql.DB for use by other packages if needed.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
