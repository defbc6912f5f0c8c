// Package syncer backs the memory database up to a local directory with
// content checksums, and restores from a chosen backup. Sync state lives
// in a small JSON file next to the database so repeated backups of an
// unchanged database can be skipped.
package syncer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// backupTimeLayout names backup files so they sort chronologically.
const backupTimeLayout = "20060102-150405"

// State is the persisted sync state.
type State struct {
	BackupDir    string `json:"backup_dir"`
	LastSync     string `json:"last_sync,omitempty"`
	LastChecksum string `json:"last_checksum,omitempty"`
}

// BackupInfo describes one backup file.
type BackupInfo struct {
	Path      string `json:"path"`
	Checksum  string `json:"checksum"`
	SizeBytes int64  `json:"size_bytes"`
	CreatedAt string `json:"created_at"`
	Skipped   bool   `json:"skipped,omitempty"`
}

// Status reports the sync state plus the available backups.
type Status struct {
	State   State        `json:"state"`
	Backups []BackupInfo `json:"backups"`
}

// Syncer copies the database to and from the backup directory.
type Syncer struct {
	dbPath    string
	statePath string
	backupDir string

	// Now is the clock used for backup names; overridable in tests.
	Now func() time.Time
}

// New creates a Syncer for the database at dbPath. State and the default
// backup directory live under stateDir.
func New(dbPath, stateDir string) *Syncer {
	return &Syncer{
		dbPath:    dbPath,
		statePath: filepath.Join(stateDir, "sync.json"),
		backupDir: filepath.Join(stateDir, "backups"),
		Now:       time.Now,
	}
}

// Backup copies the database into the backup directory under a
// timestamped name and records its checksum. When the database checksum
// matches the last recorded one the copy is skipped.
func (s *Syncer) Backup() (*BackupInfo, error) {
	state, err := s.loadState()
	if err != nil {
		return nil, err
	}

	sum, size, err := checksumFile(s.dbPath)
	if err != nil {
		return nil, fmt.Errorf("checksum database: %w", err)
	}

	now := s.Now().UTC()
	if sum == state.LastChecksum && state.LastChecksum != "" {
		return &BackupInfo{Checksum: sum, SizeBytes: size, Skipped: true}, nil
	}

	if err := os.MkdirAll(state.BackupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	name := fmt.Sprintf("memtrail-%s.db", now.Format(backupTimeLayout))
	dest := filepath.Join(state.BackupDir, name)
	if err := copyFile(s.dbPath, dest); err != nil {
		return nil, fmt.Errorf("copy database: %w", err)
	}

	state.LastSync = now.Format(time.RFC3339)
	state.LastChecksum = sum
	if err := s.saveState(state); err != nil {
		return nil, err
	}

	return &BackupInfo{
		Path:      dest,
		Checksum:  sum,
		SizeBytes: size,
		CreatedAt: state.LastSync,
	}, nil
}

// Restore replaces the database with the named backup. The current
// database is kept next to itself with a .pre-restore suffix. The backup
// is verified against its own checksum after the copy.
func (s *Syncer) Restore(backupPath string) error {
	wantSum, _, err := checksumFile(backupPath)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}

	if _, err := os.Stat(s.dbPath); err == nil {
		if err := copyFile(s.dbPath, s.dbPath+".pre-restore"); err != nil {
			return fmt.Errorf("preserve current database: %w", err)
		}
	}

	if err := copyFile(backupPath, s.dbPath); err != nil {
		return fmt.Errorf("restore database: %w", err)
	}

	gotSum, _, err := checksumFile(s.dbPath)
	if err != nil {
		return fmt.Errorf("verify restore: %w", err)
	}
	if gotSum != wantSum {
		return fmt.Errorf("restore verification failed: checksum mismatch")
	}

	state, err := s.loadState()
	if err != nil {
		return err
	}
	state.LastChecksum = gotSum
	state.LastSync = s.Now().UTC().Format(time.RFC3339)
	return s.saveState(state)
}

// Status returns the sync state and the backups currently on disk,
// newest first.
func (s *Syncer) Status() (*Status, error) {
	state, err := s.loadState()
	if err != nil {
		return nil, err
	}

	status := &Status{State: state, Backups: []BackupInfo{}}

	entries, err := os.ReadDir(state.BackupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return status, nil
		}
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".db") {
			continue
		}
		path := filepath.Join(state.BackupDir, entry.Name())
		sum, size, err := checksumFile(path)
		if err != nil {
			continue
		}
		info, _ := entry.Info()
		created := ""
		if info != nil {
			created = info.ModTime().UTC().Format(time.RFC3339)
		}
		status.Backups = append(status.Backups, BackupInfo{
			Path:      path,
			Checksum:  sum,
			SizeBytes: size,
			CreatedAt: created,
		})
	}

	sort.Slice(status.Backups, func(i, j int) bool {
		return status.Backups[i].Path > status.Backups[j].Path
	})
	return status, nil
}

func (s *Syncer) loadState() (State, error) {
	state := State{BackupDir: s.backupDir}
	data, err := os.ReadFile(s.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return state, fmt.Errorf("read sync state: %w", err)
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("parse sync state: %w", err)
	}
	if state.BackupDir == "" {
		state.BackupDir = s.backupDir
	}
	return state, nil
}

func (s *Syncer) saveState(state State) error {
	if err := os.MkdirAll(filepath.Dir(s.statePath), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sync state: %w", err)
	}
	if err := os.WriteFile(s.statePath, data, 0o644); err != nil {
		return fmt.Errorf("write sync state: %w", err)
	}
	return nil
}

// checksumFile returns the hex sha256 and size of a file.
func checksumFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// copyFile copies src to dest through a temp file in the destination
// directory so a failed copy never leaves a truncated target.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".memtrail-copy-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
