package db

import "fmt"

// WeeklySummary is a compressed rollup of one tool's activity in one ISO
// week, optionally scoped to a single project. The (year, week, tool,
// project) tuple is unique; re-running the summarizer replaces the row.
type WeeklySummary struct {
	ID               int64
	Year             int
	Week             int
	Tool             string
	ProjectPath      string // "" for the all-projects rollup
	SummaryData      *string
	SessionCount     int
	TotalTimeSeconds int64
	CreatedAt        string
}

const summaryColumns = `id, year, week_number, cli_tool, project_path, summary_data, session_count, total_time_seconds, created_at`

func scanSummary(scanner interface{ Scan(...any) error }, w *WeeklySummary) error {
	return scanner.Scan(&w.ID, &w.Year, &w.Week, &w.Tool, &w.ProjectPath, &w.SummaryData, &w.SessionCount, &w.TotalTimeSeconds, &w.CreatedAt)
}

// UpsertWeeklySummary writes the rollup for its key, replacing any
// earlier aggregation of the same period.
func (d *DB) UpsertWeeklySummary(w *WeeklySummary) error {
	_, err := d.conn.Exec(
		`INSERT INTO weekly_summaries (year, week_number, cli_tool, project_path, summary_data, session_count, total_time_seconds, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(year, week_number, cli_tool, project_path) DO UPDATE SET
			summary_data = excluded.summary_data,
			session_count = excluded.session_count,
			total_time_seconds = excluded.total_time_seconds,
			created_at = excluded.created_at`,
		w.Year, w.Week, w.Tool, w.ProjectPath, w.SummaryData, w.SessionCount, w.TotalTimeSeconds, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert weekly summary %d-W%02d: %w", w.Year, w.Week, err)
	}
	return nil
}

// GetWeeklySummary retrieves the rollup for a (year, week, tool, project)
// key. Returns ErrNotFound when that period has not been summarized.
func (d *DB) GetWeeklySummary(year, week int, tool, projectPath string) (*WeeklySummary, error) {
	w := &WeeklySummary{}
	row := d.conn.QueryRow(
		`SELECT `+summaryColumns+` FROM weekly_summaries
		 WHERE year = ? AND week_number = ? AND cli_tool = ? AND project_path = ?`,
		year, week, tool, projectPath,
	)
	if err := scanSummary(row, w); err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("weekly summary %d-W%02d: %w", year, week, ErrNotFound)
		}
		return nil, fmt.Errorf("get weekly summary %d-W%02d: %w", year, week, err)
	}
	return w, nil
}

// ListWeeklySummaries returns summaries for a week, newest key ordering
// by project path for stable output.
func (d *DB) ListWeeklySummaries(year, week int, tool string) ([]WeeklySummary, error) {
	rows, err := d.conn.Query(
		`SELECT `+summaryColumns+` FROM weekly_summaries
		 WHERE year = ? AND week_number = ? AND cli_tool = ?
		 ORDER BY project_path ASC`,
		year, week, tool,
	)
	if err != nil {
		return nil, fmt.Errorf("list weekly summaries: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var summaries []WeeklySummary
	for rows.Next() {
		var w WeeklySummary
		if err := scanSummary(rows, &w); err != nil {
			return nil, fmt.Errorf("scan weekly summary: %w", err)
		}
		summaries = append(summaries, w)
	}
	return summaries, rows.Err()
}
