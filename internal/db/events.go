package db

import "fmt"

// FileAction records one file touched during a session.
type FileAction struct {
	ID           int64
	SessionID    string
	FilePath     string
	Action       string // created, modified, deleted, read
	Language     *string
	LinesAdded   int
	LinesRemoved int
	Timestamp    string
}

// Command records one shell command executed during a session.
type Command struct {
	ID            int64
	SessionID     string
	Command       string
	ExitCode      int
	OutputSummary *string
	Timestamp     string
}

// ContextNote is a free-form typed note attached to a session. The data
// field is an opaque JSON blob interpreted by collaborators, not the core.
type ContextNote struct {
	ID        int64
	SessionID string
	Type      string // decision, error, solution, ...
	Data      *string
	Timestamp string
}

// InsertFileAction appends a file event to a session.
func (d *DB) InsertFileAction(f *FileAction) error {
	_, err := d.conn.Exec(
		`INSERT INTO session_files (session_id, file_path, action, language, lines_added, lines_removed, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.SessionID, f.FilePath, f.Action, f.Language, f.LinesAdded, f.LinesRemoved, f.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert file action: %w", err)
	}
	return nil
}

// InsertCommand appends a command event to a session.
func (d *DB) InsertCommand(c *Command) error {
	_, err := d.conn.Exec(
		`INSERT INTO session_commands (session_id, command, exit_code, output_summary, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		c.SessionID, c.Command, c.ExitCode, c.OutputSummary, c.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert command: %w", err)
	}
	return nil
}

// InsertContextNote appends a context note to a session.
func (d *DB) InsertContextNote(n *ContextNote) error {
	_, err := d.conn.Exec(
		`INSERT INTO session_context (session_id, context_type, context_data, timestamp)
		 VALUES (?, ?, ?, ?)`,
		n.SessionID, n.Type, n.Data, n.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert context note: %w", err)
	}
	return nil
}

// ListFileActions returns a session's file events ordered by timestamp.
func (d *DB) ListFileActions(sessionID string) ([]FileAction, error) {
	rows, err := d.conn.Query(
		`SELECT id, session_id, file_path, action, language, lines_added, lines_removed, timestamp
		 FROM session_files WHERE session_id = ? ORDER BY timestamp ASC, id ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list file actions: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var actions []FileAction
	for rows.Next() {
		var f FileAction
		if err := rows.Scan(&f.ID, &f.SessionID, &f.FilePath, &f.Action, &f.Language, &f.LinesAdded, &f.LinesRemoved, &f.Timestamp); err != nil {
			return nil, fmt.Errorf("scan file action: %w", err)
		}
		actions = append(actions, f)
	}
	return actions, rows.Err()
}

// ListCommands returns a session's command events ordered by timestamp.
func (d *DB) ListCommands(sessionID string) ([]Command, error) {
	rows, err := d.conn.Query(
		`SELECT id, session_id, command, exit_code, output_summary, timestamp
		 FROM session_commands WHERE session_id = ? ORDER BY timestamp ASC, id ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var commands []Command
	for rows.Next() {
		var c Command
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Command, &c.ExitCode, &c.OutputSummary, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		commands = append(commands, c)
	}
	return commands, rows.Err()
}

// ListContextNotes returns a session's context notes ordered by timestamp.
func (d *DB) ListContextNotes(sessionID string) ([]ContextNote, error) {
	rows, err := d.conn.Query(
		`SELECT id, session_id, context_type, context_data, timestamp
		 FROM session_context WHERE session_id = ? ORDER BY timestamp ASC, id ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list context notes: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	return scanContextNotes(rows)
}

// ContextNotesInRange returns notes of the given types across all sessions
// of a tool within [from, to), ordered by timestamp. Used by the weekly
// summarizer to collect decisions and solutions.
func (d *DB) ContextNotesInRange(tool string, types []string, from, to string) ([]ContextNote, error) {
	if len(types) == 0 {
		return nil, nil
	}
	query := `SELECT c.id, c.session_id, c.context_type, c.context_data, c.timestamp
		 FROM session_context c
		 JOIN sessions s ON s.session_id = c.session_id
		 WHERE s.cli_tool = ? AND c.timestamp >= ? AND c.timestamp < ? AND c.context_type IN (`
	args := []any{tool, from, to}
	for i, t := range types {
		if i > 0 {
			query += `,`
		}
		query += `?`
		args = append(args, t)
	}
	query += `) ORDER BY c.timestamp ASC`

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("context notes in range: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	return scanContextNotes(rows)
}

// TopLanguageForProject tallies file-event languages across all sessions
// rooted at projectPath and returns the most frequent one, or "" when no
// file events carry a language.
func (d *DB) TopLanguageForProject(projectPath string) (string, error) {
	var lang string
	err := d.conn.QueryRow(
		`SELECT f.language FROM session_files f
		 JOIN sessions s ON s.session_id = f.session_id
		 WHERE COALESCE(s.git_repo, s.working_dir) = ? AND f.language IS NOT NULL AND f.language != ''
		 GROUP BY f.language ORDER BY COUNT(*) DESC LIMIT 1`, projectPath,
	).Scan(&lang)
	if err != nil {
		if isNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("top language for %s: %w", projectPath, err)
	}
	return lang, nil
}

func scanContextNotes(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]ContextNote, error) {
	var notes []ContextNote
	for rows.Next() {
		var n ContextNote
		if err := rows.Scan(&n.ID, &n.SessionID, &n.Type, &n.Data, &n.Timestamp); err != nil {
			return nil, fmt.Errorf("scan context note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
