package db

import "fmt"

// ProjectPattern is a typed, confidence-scored observation about how a
// project works ("tests with go test", "uses feature branches").
// Confidence lives in [0, 1].
type ProjectPattern struct {
	ID          int64
	ProjectID   int64
	PatternType string
	PatternData *string
	Confidence  float64
	UpdatedAt   string
}

const patternColumns = `id, project_id, pattern_type, pattern_data, confidence, updated_at`

func scanPattern(scanner interface{ Scan(...any) error }, p *ProjectPattern) error {
	return scanner.Scan(&p.ID, &p.ProjectID, &p.PatternType, &p.PatternData, &p.Confidence, &p.UpdatedAt)
}

// GetPattern retrieves the pattern of the given type for a project.
// Returns ErrNotFound when the project has no such pattern yet.
func (d *DB) GetPattern(projectID int64, patternType string) (*ProjectPattern, error) {
	p := &ProjectPattern{}
	row := d.conn.QueryRow(
		`SELECT `+patternColumns+` FROM project_patterns WHERE project_id = ? AND pattern_type = ?`,
		projectID, patternType,
	)
	if err := scanPattern(row, p); err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("pattern %s for project %d: %w", patternType, projectID, ErrNotFound)
		}
		return nil, fmt.Errorf("get pattern %s: %w", patternType, err)
	}
	return p, nil
}

// InsertPattern creates a new pattern observation for a project.
func (d *DB) InsertPattern(p *ProjectPattern) (int64, error) {
	res, err := d.conn.Exec(
		`INSERT INTO project_patterns (project_id, pattern_type, pattern_data, confidence, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.ProjectID, p.PatternType, p.PatternData, p.Confidence, p.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert pattern: %w", err)
	}
	return res.LastInsertId()
}

// UpdatePattern replaces a pattern's data and confidence. The blended
// confidence is computed by the caller.
func (d *DB) UpdatePattern(id int64, data *string, confidence float64, now string) error {
	_, err := d.conn.Exec(
		`UPDATE project_patterns SET pattern_data = ?, confidence = ?, updated_at = ? WHERE id = ?`,
		data, confidence, now, id,
	)
	if err != nil {
		return fmt.Errorf("update pattern %d: %w", id, err)
	}
	return nil
}

// ListPatternsForProject returns a project's patterns ordered by
// confidence descending.
func (d *DB) ListPatternsForProject(projectID int64) ([]ProjectPattern, error) {
	rows, err := d.conn.Query(
		`SELECT `+patternColumns+` FROM project_patterns WHERE project_id = ? ORDER BY confidence DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var patterns []ProjectPattern
	for rows.Next() {
		var p ProjectPattern
		if err := scanPattern(rows, &p); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}
