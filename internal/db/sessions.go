package db

import (
	"database/sql"
	"errors"
	"fmt"
)

// Session identifies one CLI tool invocation, tracked start-to-end.
type Session struct {
	ID              string
	Tool            string
	StartTime       string
	EndTime         *string
	WorkingDir      string
	GitRepo         *string
	GitBranch       *string
	GitCommit       *string
	ExitCode        *int
	DurationSeconds *int64
}

const sessionColumns = `session_id, cli_tool, start_time, end_time, working_dir, git_repo, git_branch, git_commit, exit_code, duration_seconds`

func scanSession(scanner interface{ Scan(...any) error }, s *Session) error {
	return scanner.Scan(&s.ID, &s.Tool, &s.StartTime, &s.EndTime, &s.WorkingDir, &s.GitRepo, &s.GitBranch, &s.GitCommit, &s.ExitCode, &s.DurationSeconds)
}

// InsertSession creates a new open session record.
func (d *DB) InsertSession(s *Session) error {
	_, err := d.conn.Exec(
		`INSERT INTO sessions (session_id, cli_tool, start_time, working_dir, git_repo, git_branch, git_commit)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Tool, s.StartTime, s.WorkingDir, s.GitRepo, s.GitBranch, s.GitCommit,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession retrieves a single session by ID. Returns ErrNotFound if absent.
func (d *DB) GetSession(id string) (*Session, error) {
	s := &Session{}
	row := d.conn.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, id)
	if err := scanSession(row, s); errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return s, nil
}

// CloseSession sets the end fields of an open session. The WHERE clause
// guards on end_time IS NULL so a second call is a no-op; the boolean
// return reports whether this call actually closed the session.
func (d *DB) CloseSession(id string, endTime string, exitCode int, durationSeconds int64) (bool, error) {
	res, err := d.conn.Exec(
		`UPDATE sessions SET end_time = ?, exit_code = ?, duration_seconds = ?
		 WHERE session_id = ? AND end_time IS NULL`,
		endTime, exitCode, durationSeconds, id,
	)
	if err != nil {
		return false, fmt.Errorf("close session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("close session %s: rows affected: %w", id, err)
	}
	return n > 0, nil
}

// RecentSessionsByDir returns the most recent sessions whose working
// directory equals dir, newest first. An empty tool matches all tools.
func (d *DB) RecentSessionsByDir(dir, tool string, limit int) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE working_dir = ?`
	args := []any{dir}
	if tool != "" {
		query += ` AND cli_tool = ?`
		args = append(args, tool)
	}
	query += ` ORDER BY start_time DESC LIMIT ?`
	args = append(args, limit)

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent sessions: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := scanSession(rows, &s); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// SessionsInRange returns sessions for a tool whose start time falls in
// [from, to). An empty projectPath matches all projects; otherwise it
// matches sessions whose project root (git repo, or working dir when not
// in a repo) equals projectPath.
func (d *DB) SessionsInRange(tool, projectPath, from, to string) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		 WHERE cli_tool = ? AND start_time >= ? AND start_time < ?`
	args := []any{tool, from, to}
	if projectPath != "" {
		query += ` AND COALESCE(git_repo, working_dir) = ?`
		args = append(args, projectPath)
	}
	query += ` ORDER BY start_time ASC`

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("sessions in range: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := scanSession(rows, &s); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ListSessions returns sessions ordered by start time descending.
func (d *DB) ListSessions(limit, offset int) ([]Session, error) {
	rows, err := d.conn.Query(
		`SELECT `+sessionColumns+` FROM sessions ORDER BY start_time DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := scanSession(rows, &s); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
