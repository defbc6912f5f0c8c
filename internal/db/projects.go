package db

import "fmt"

// Project is the aggregate record for one working-directory root across
// all sessions.
type Project struct {
	ID               int64
	Path             string
	Name             string
	SessionCount     int
	TotalTimeSeconds int64
	LastSessionID    *string
	PrimaryLanguage  *string
	Framework        *string
	UpdatedAt        string
}

const projectColumns = `id, project_path, project_name, session_count, total_time_seconds, last_session_id, primary_language, framework, updated_at`

func scanProject(scanner interface{ Scan(...any) error }, p *Project) error {
	return scanner.Scan(&p.ID, &p.Path, &p.Name, &p.SessionCount, &p.TotalTimeSeconds, &p.LastSessionID, &p.PrimaryLanguage, &p.Framework, &p.UpdatedAt)
}

// UpsertProjectStart creates or updates the project row when a session
// starts in its directory: increments session_count and records the
// session as the project's latest.
func (d *DB) UpsertProjectStart(path, name, sessionID, now string) error {
	_, err := d.conn.Exec(
		`INSERT INTO projects (project_path, project_name, session_count, last_session_id, updated_at)
		 VALUES (?, ?, 1, ?, ?)
		 ON CONFLICT(project_path) DO UPDATE SET
			session_count = session_count + 1,
			last_session_id = excluded.last_session_id,
			updated_at = excluded.updated_at`,
		path, name, sessionID, now,
	)
	if err != nil {
		return fmt.Errorf("upsert project %s: %w", path, err)
	}
	return nil
}

// AddProjectTime adds a completed session's duration to the project total.
func (d *DB) AddProjectTime(path string, seconds int64, now string) error {
	_, err := d.conn.Exec(
		`UPDATE projects SET total_time_seconds = total_time_seconds + ?, updated_at = ?
		 WHERE project_path = ?`,
		seconds, now, path,
	)
	if err != nil {
		return fmt.Errorf("add project time %s: %w", path, err)
	}
	return nil
}

// GetProjectByPath retrieves a project by its root path. Returns
// ErrNotFound if the directory has never hosted a session.
func (d *DB) GetProjectByPath(path string) (*Project, error) {
	p := &Project{}
	row := d.conn.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE project_path = ?`, path)
	if err := scanProject(row, p); err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("project %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("get project %s: %w", path, err)
	}
	return p, nil
}

// SetProjectStack records the inferred primary language and framework.
// Empty strings leave the existing values untouched.
func (d *DB) SetProjectStack(path, language, framework, now string) error {
	_, err := d.conn.Exec(
		`UPDATE projects SET
			primary_language = CASE WHEN ? != '' THEN ? ELSE primary_language END,
			framework = CASE WHEN ? != '' THEN ? ELSE framework END,
			updated_at = ?
		 WHERE project_path = ?`,
		language, language, framework, framework, now, path,
	)
	if err != nil {
		return fmt.Errorf("set project stack %s: %w", path, err)
	}
	return nil
}

// TopProjects returns projects ordered by session count descending.
func (d *DB) TopProjects(limit int) ([]Project, error) {
	rows, err := d.conn.Query(
		`SELECT `+projectColumns+` FROM projects ORDER BY session_count DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("top projects: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var projects []Project
	for rows.Next() {
		var p Project
		if err := scanProject(rows, &p); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}
