package db

import "fmt"

// ToolStat aggregates all sessions of one CLI tool.
type ToolStat struct {
	Tool             string `json:"tool"`
	Sessions         int    `json:"sessions"`
	TotalTimeSeconds int64  `json:"total_time_seconds"`
}

// DayActivity counts sessions started on one calendar day.
type DayActivity struct {
	Date     string `json:"date"`
	Sessions int    `json:"sessions"`
}

// ToolStats returns per-tool session counts and total recorded time.
func (d *DB) ToolStats() ([]ToolStat, error) {
	rows, err := d.conn.Query(
		`SELECT cli_tool, COUNT(*), COALESCE(SUM(duration_seconds), 0)
		 FROM sessions GROUP BY cli_tool ORDER BY cli_tool ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("tool stats: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var stats []ToolStat
	for rows.Next() {
		var s ToolStat
		if err := rows.Scan(&s.Tool, &s.Sessions, &s.TotalTimeSeconds); err != nil {
			return nil, fmt.Errorf("scan tool stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// RecentActivity returns per-day session counts for sessions started on
// or after the given cutoff, oldest day first.
func (d *DB) RecentActivity(since string) ([]DayActivity, error) {
	rows, err := d.conn.Query(
		`SELECT DATE(start_time), COUNT(*)
		 FROM sessions WHERE start_time >= ?
		 GROUP BY DATE(start_time) ORDER BY DATE(start_time) ASC`, since,
	)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var days []DayActivity
	for rows.Next() {
		var a DayActivity
		if err := rows.Scan(&a.Date, &a.Sessions); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		days = append(days, a)
	}
	return days, rows.Err()
}
