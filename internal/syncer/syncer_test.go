package syncer

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestSyncer(t *testing.T) (*Syncer, string) {
	t.Helper()
	stateDir := t.TempDir()
	dbPath := filepath.Join(stateDir, "memory.db")
	if err := os.WriteFile(dbPath, []byte("database contents v1"), 0o644); err != nil {
		t.Fatalf("seed database: %v", err)
	}
	return New(dbPath, stateDir), dbPath
}

func TestBackupCreatesTimestampedCopy(t *testing.T) {
	s, _ := newTestSyncer(t)
	s.Now = func() time.Time { return time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC) }

	info, err := s.Backup()
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if info.Skipped {
		t.Fatal("expected first backup to run")
	}
	if filepath.Base(info.Path) != "memtrail-20260826-120000.db" {
		t.Fatalf("unexpected backup name %q", info.Path)
	}

	data, err := os.ReadFile(info.Path)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if string(data) != "database contents v1" {
		t.Fatalf("backup content mismatch: %q", data)
	}
	if info.Checksum == "" || info.SizeBytes != int64(len(data)) {
		t.Fatalf("unexpected backup info %+v", info)
	}
}

func TestBackupSkipsUnchangedDatabase(t *testing.T) {
	s, dbPath := newTestSyncer(t)

	if _, err := s.Backup(); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	info, err := s.Backup()
	if err != nil {
		t.Fatalf("Backup rerun: %v", err)
	}
	if !info.Skipped {
		t.Fatal("expected unchanged database to skip")
	}

	// A change makes the next backup run again.
	if err := os.WriteFile(dbPath, []byte("database contents v2"), 0o644); err != nil {
		t.Fatalf("modify database: %v", err)
	}
	info, err = s.Backup()
	if err != nil {
		t.Fatalf("Backup after change: %v", err)
	}
	if info.Skipped {
		t.Fatal("expected changed database to back up")
	}
}

func TestRestoreReplacesDatabase(t *testing.T) {
	s, dbPath := newTestSyncer(t)

	first, err := s.Backup()
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}

	if err := os.WriteFile(dbPath, []byte("corrupted"), 0o644); err != nil {
		t.Fatalf("modify database: %v", err)
	}

	if err := s.Restore(first.Path); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	data, err := os.ReadFile(dbPath)
	if err != nil {
		t.Fatalf("read database: %v", err)
	}
	if string(data) != "database contents v1" {
		t.Fatalf("expected restored contents, got %q", data)
	}

	// The pre-restore copy preserves what was there.
	pre, err := os.ReadFile(dbPath + ".pre-restore")
	if err != nil {
		t.Fatalf("read pre-restore copy: %v", err)
	}
	if string(pre) != "corrupted" {
		t.Fatalf("expected pre-restore copy, got %q", pre)
	}
}

func TestStatusListsBackupsNewestFirst(t *testing.T) {
	s, dbPath := newTestSyncer(t)

	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return base }
	if _, err := s.Backup(); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	if err := os.WriteFile(dbPath, []byte("database contents v2"), 0o644); err != nil {
		t.Fatalf("modify database: %v", err)
	}
	s.Now = func() time.Time { return base.Add(time.Hour) }
	if _, err := s.Backup(); err != nil {
		t.Fatalf("Backup again: %v", err)
	}

	status, err := s.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(status.Backups) != 2 {
		t.Fatalf("expected 2 backups, got %d", len(status.Backups))
	}
	if filepath.Base(status.Backups[0].Path) != "memtrail-20260826-130000.db" {
		t.Fatalf("expected newest first, got %q", status.Backups[0].Path)
	}
	if status.State.LastSync == "" || status.State.LastChecksum == "" {
		t.Fatalf("expected sync state recorded, got %+v", status.State)
	}
}

func TestStatusNoBackups(t *testing.T) {
	s, _ := newTestSyncer(t)

	status, err := s.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(status.Backups) != 0 {
		t.Fatalf("expected no backups, got %+v", status.Backups)
	}
}
