package recorder

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/memtrail/memtrail/internal/db"
)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestStartSessionCreatesProject(t *testing.T) {
	d := openTestDB(t)
	r := New(d)

	id, err := r.StartSession("claude", "/home/dev/proj", GitInfo{})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if len(id) != 16 {
		t.Fatalf("expected 16-char session id, got %q", id)
	}

	s, err := d.GetSession(id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if s.WorkingDir != "/home/dev/proj" {
		t.Fatalf("unexpected working dir %q", s.WorkingDir)
	}

	p, err := d.GetProjectByPath("/home/dev/proj")
	if err != nil {
		t.Fatalf("GetProjectByPath: %v", err)
	}
	if p.SessionCount != 1 {
		t.Fatalf("expected session_count 1, got %d", p.SessionCount)
	}
	if p.LastSessionID == nil || *p.LastSessionID != id {
		t.Fatalf("expected last_session_id %q, got %+v", id, p.LastSessionID)
	}
}

func TestStartSessionUsesGitRootAsProject(t *testing.T) {
	d := openTestDB(t)
	r := New(d)

	git := GitInfo{Repo: "/home/dev/proj", Branch: "feature/x", Commit: "abc1234"}
	if _, err := r.StartSession("claude", "/home/dev/proj/sub/dir", git); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if _, err := d.GetProjectByPath("/home/dev/proj"); err != nil {
		t.Fatalf("expected project keyed by git root: %v", err)
	}
	if _, err := d.GetProjectByPath("/home/dev/proj/sub/dir"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected no project for subdirectory, got %v", err)
	}
}

func TestStartSessionValidation(t *testing.T) {
	d := openTestDB(t)
	r := New(d)

	if _, err := r.StartSession("", "/p", GitInfo{}); !errors.Is(err, db.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty tool, got %v", err)
	}
	if _, err := r.StartSession("claude", "", GitInfo{}); !errors.Is(err, db.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty dir, got %v", err)
	}
}

func TestSessionIDsUnique(t *testing.T) {
	d := openTestDB(t)
	r := New(d)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		id, err := r.StartSession("claude", "/p", GitInfo{})
		if err != nil {
			t.Fatalf("StartSession %d: %v", i, err)
		}
		if seen[id] {
			t.Fatalf("duplicate session id %q", id)
		}
		seen[id] = true
	}
}

func TestEndSessionComputesDuration(t *testing.T) {
	d := openTestDB(t)
	r := New(d)

	start := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	r.Now = func() time.Time { return start }

	id, err := r.StartSession("claude", "/p", GitInfo{})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	r.Now = func() time.Time { return start.Add(120 * time.Second) }
	if err := r.EndSession(id, 0); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	s, err := d.GetSession(id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if s.DurationSeconds == nil || *s.DurationSeconds != 120 {
		t.Fatalf("expected duration 120, got %+v", s.DurationSeconds)
	}
	if s.ExitCode == nil || *s.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %+v", s.ExitCode)
	}

	p, err := d.GetProjectByPath("/p")
	if err != nil {
		t.Fatalf("GetProjectByPath: %v", err)
	}
	if p.TotalTimeSeconds != 120 {
		t.Fatalf("expected project total 120, got %d", p.TotalTimeSeconds)
	}
}

func TestEndSessionIdempotent(t *testing.T) {
	d := openTestDB(t)
	r := New(d)

	start := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	r.Now = func() time.Time { return start }
	id, err := r.StartSession("claude", "/p", GitInfo{})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	r.Now = func() time.Time { return start.Add(60 * time.Second) }
	if err := r.EndSession(id, 0); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	r.Now = func() time.Time { return start.Add(600 * time.Second) }
	if err := r.EndSession(id, 1); err != nil {
		t.Fatalf("EndSession second call: %v", err)
	}

	s, err := d.GetSession(id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if s.DurationSeconds == nil || *s.DurationSeconds != 60 {
		t.Fatalf("expected first close to win, got %+v", s.DurationSeconds)
	}

	// Project time must not double-count either.
	p, err := d.GetProjectByPath("/p")
	if err != nil {
		t.Fatalf("GetProjectByPath: %v", err)
	}
	if p.TotalTimeSeconds != 60 {
		t.Fatalf("expected project total 60, got %d", p.TotalTimeSeconds)
	}
}

func TestEndSessionClampsNegativeDuration(t *testing.T) {
	d := openTestDB(t)
	r := New(d)

	start := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	r.Now = func() time.Time { return start }
	id, err := r.StartSession("claude", "/p", GitInfo{})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	// Clock went backwards.
	r.Now = func() time.Time { return start.Add(-time.Hour) }
	if err := r.EndSession(id, 0); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	s, err := d.GetSession(id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if s.DurationSeconds == nil || *s.DurationSeconds != 0 {
		t.Fatalf("expected clamped duration 0, got %+v", s.DurationSeconds)
	}
}

func TestEndSessionOrphanRecordsNote(t *testing.T) {
	d := openTestDB(t)
	r := New(d)

	if err := r.EndSession("nosuchsession1234", 2); err != nil {
		t.Fatalf("EndSession on unknown id: %v", err)
	}

	notes, err := d.ListContextNotes("nosuchsession1234")
	if err != nil {
		t.Fatalf("ListContextNotes: %v", err)
	}
	if len(notes) != 1 || notes[0].Type != "orphaned_end" {
		t.Fatalf("expected one orphaned_end note, got %+v", notes)
	}
}

func TestLogFileActionValidation(t *testing.T) {
	d := openTestDB(t)
	r := New(d)

	if err := r.LogFileAction("", "/f.go", "modified", "go", 1, 0); !errors.Is(err, db.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty session, got %v", err)
	}
	if err := r.LogFileAction("s1", "/f.go", "modified", "go", -1, 0); !errors.Is(err, db.ErrValidation) {
		t.Fatalf("expected ErrValidation for negative lines, got %v", err)
	}

	// Late events against unknown sessions are accepted.
	if err := r.LogFileAction("unknownsession00", "/f.go", "modified", "go", 5, 2); err != nil {
		t.Fatalf("expected late event to be accepted, got %v", err)
	}
}

func TestEndSessionInfersPrimaryLanguage(t *testing.T) {
	d := openTestDB(t)
	r := New(d)

	id, err := r.StartSession("claude", "/p", GitInfo{})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := r.LogFileAction(id, "/p/main.go", "modified", "go", 10, 2); err != nil {
			t.Fatalf("LogFileAction: %v", err)
		}
	}
	if err := r.LogFileAction(id, "/p/notes.md", "modified", "markdown", 1, 0); err != nil {
		t.Fatalf("LogFileAction: %v", err)
	}

	if err := r.EndSession(id, 0); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	p, err := d.GetProjectByPath("/p")
	if err != nil {
		t.Fatalf("GetProjectByPath: %v", err)
	}
	if p.PrimaryLanguage == nil || *p.PrimaryLanguage != "go" {
		t.Fatalf("expected primary language go, got %+v", p.PrimaryLanguage)
	}
}
