package db

import "fmt"

// ToolVersion tracks the installed version of an AI CLI tool, refreshed
// by the background version check.
type ToolVersion struct {
	Tool            string
	Version         *string
	InstallPath     *string
	LastCheck       *string
	UpdateAvailable bool
	LatestVersion   *string
	UpdatedAt       string
}

// UpsertToolVersion records the result of a version check.
func (d *DB) UpsertToolVersion(v *ToolVersion) error {
	_, err := d.conn.Exec(
		`INSERT INTO cli_versions (tool_name, version, install_path, last_check, update_available, latest_version, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(tool_name) DO UPDATE SET
			version = excluded.version,
			install_path = excluded.install_path,
			last_check = excluded.last_check,
			update_available = excluded.update_available,
			latest_version = excluded.latest_version,
			updated_at = excluded.updated_at`,
		v.Tool, v.Version, v.InstallPath, v.LastCheck, boolToInt(v.UpdateAvailable), v.LatestVersion, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert tool version %s: %w", v.Tool, err)
	}
	return nil
}

// GetToolVersion retrieves the recorded version row for a tool. Returns
// ErrNotFound when the tool has never been checked.
func (d *DB) GetToolVersion(tool string) (*ToolVersion, error) {
	v := &ToolVersion{}
	var avail int
	err := d.conn.QueryRow(
		`SELECT tool_name, version, install_path, last_check, update_available, latest_version, updated_at
		 FROM cli_versions WHERE tool_name = ?`, tool,
	).Scan(&v.Tool, &v.Version, &v.InstallPath, &v.LastCheck, &avail, &v.LatestVersion, &v.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("tool version %s: %w", tool, ErrNotFound)
		}
		return nil, fmt.Errorf("get tool version %s: %w", tool, err)
	}
	v.UpdateAvailable = avail == 1
	return v, nil
}
