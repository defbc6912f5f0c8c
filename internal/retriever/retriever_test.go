package retriever

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/memtrail/memtrail/internal/db"
	"github.com/memtrail/memtrail/internal/recorder"
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

func TestGetContextEmptyHistory(t *testing.T) {
	d := openTestDB(t)
	r := New(d)

	payload, err := r.GetContext("/never/seen", "", 10)
	if err != nil {
		t.Fatalf("GetContext: %v", err)
	}
	if payload.Project != nil {
		t.Fatalf("expected no project, got %+v", payload.Project)
	}
	if payload.RecentSessions == nil || payload.ProjectPatterns == nil || payload.RelevantKnowledge == nil {
		t.Fatal("expected non-nil empty lists")
	}
	if len(payload.RecentSessions) != 0 {
		t.Fatalf("expected no sessions, got %d", len(payload.RecentSessions))
	}
}

func TestGetContextWithHistory(t *testing.T) {
	d := openTestDB(t)
	rec := recorder.New(d)

	id, err := rec.StartSession("claude", "/home/dev/proj", recorder.GitInfo{})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := rec.EndSession(id, 0); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	payload, err := New(d).GetContext("/home/dev/proj", "claude", 10)
	if err != nil {
		t.Fatalf("GetContext: %v", err)
	}
	if payload.Project == nil || payload.Project.Path != "/home/dev/proj" {
		t.Fatalf("expected project match, got %+v", payload.Project)
	}
	if len(payload.RecentSessions) != 1 || payload.RecentSessions[0].ID != id {
		t.Fatalf("expected the recorded session, got %+v", payload.RecentSessions)
	}
}

func TestGetContextResolvesGitRoot(t *testing.T) {
	d := openTestDB(t)
	rec := recorder.New(d)

	git := recorder.GitInfo{Repo: "/home/dev/proj", Branch: "main"}
	if _, err := rec.StartSession("claude", "/home/dev/proj/sub", git); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	payload, err := New(d).GetContext("/home/dev/proj/sub", "", 10)
	if err != nil {
		t.Fatalf("GetContext: %v", err)
	}
	if payload.Project == nil || payload.Project.Path != "/home/dev/proj" {
		t.Fatalf("expected project resolved via git root, got %+v", payload.Project)
	}
}

func TestGetContextReinforcesKnowledge(t *testing.T) {
	d := openTestDB(t)
	rec := recorder.New(d)
	now := time.Now().UTC().Format(time.RFC3339)

	if _, err := rec.StartSession("claude", "/home/dev/proj", recorder.GitInfo{}); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := d.SetProjectStack("/home/dev/proj", "go", "", now); err != nil {
		t.Fatalf("SetProjectStack: %v", err)
	}

	desc := "prefer table tests in go code"
	if _, err := d.InsertKnowledge(&db.KnowledgeEntry{
		Category:    "preference",
		Title:       "table tests",
		Description: &desc,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		t.Fatalf("InsertKnowledge: %v", err)
	}

	r := New(d)
	payload, err := r.GetContext("/home/dev/proj", "", 10)
	if err != nil {
		t.Fatalf("GetContext: %v", err)
	}
	if len(payload.RelevantKnowledge) != 1 {
		t.Fatalf("expected 1 knowledge entry, got %d", len(payload.RelevantKnowledge))
	}

	e, err := d.GetKnowledgeByKey("preference", "table tests")
	if err != nil {
		t.Fatalf("GetKnowledgeByKey: %v", err)
	}
	if e.Frequency != 2 {
		t.Fatalf("expected retrieval to bump frequency to 2, got %d", e.Frequency)
	}
}

func TestGetContextSkipsKnowledgeWithoutProject(t *testing.T) {
	d := openTestDB(t)
	now := time.Now().UTC().Format(time.RFC3339)

	desc := "ruby gems cache under vendor"
	if _, err := d.InsertKnowledge(&db.KnowledgeEntry{
		Category:    "gotcha",
		Title:       "gem cache",
		Description: &desc,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		t.Fatalf("InsertKnowledge: %v", err)
	}

	payload, err := New(d).GetContext("/never/seen/dir", "", 10)
	if err != nil {
		t.Fatalf("GetContext: %v", err)
	}
	if len(payload.RelevantKnowledge) != 0 {
		t.Fatalf("expected no knowledge for an unknown directory, got %+v", payload.RelevantKnowledge)
	}

	// Nothing returned means nothing reinforced.
	e, err := d.GetKnowledgeByKey("gotcha", "gem cache")
	if err != nil {
		t.Fatalf("GetKnowledgeByKey: %v", err)
	}
	if e.Frequency != 1 {
		t.Fatalf("expected frequency untouched at 1, got %d", e.Frequency)
	}
}

func TestGetContextCapsKnowledge(t *testing.T) {
	d := openTestDB(t)
	rec := recorder.New(d)
	now := time.Now().UTC().Format(time.RFC3339)

	if _, err := rec.StartSession("claude", "/home/dev/api", recorder.GitInfo{}); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := d.SetProjectStack("/home/dev/api", "go", "", now); err != nil {
		t.Fatalf("SetProjectStack: %v", err)
	}

	desc := "observed in go sources"
	for i := 0; i < knowledgeCap+5; i++ {
		if _, err := d.InsertKnowledge(&db.KnowledgeEntry{
			Category:    "pattern",
			Title:       string(rune('a'+i%26)) + string(rune('0'+i/26)),
			Description: &desc,
			CreatedAt:   now,
			UpdatedAt:   now,
		}); err != nil {
			t.Fatalf("InsertKnowledge %d: %v", i, err)
		}
	}

	payload, err := New(d).GetContext("/home/dev/api", "", 10)
	if err != nil {
		t.Fatalf("GetContext: %v", err)
	}
	if len(payload.RelevantKnowledge) != knowledgeCap {
		t.Fatalf("expected cap of %d, got %d", knowledgeCap, len(payload.RelevantKnowledge))
	}
}

func TestSessionDetail(t *testing.T) {
	d := openTestDB(t)
	rec := recorder.New(d)

	id, err := rec.StartSession("claude", "/home/dev/proj", recorder.GitInfo{})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := rec.LogFileAction(id, "main.go", "modified", "go", 12, 3); err != nil {
		t.Fatalf("LogFileAction: %v", err)
	}
	if err := rec.LogCommand(id, "go test ./...", 0, "ok"); err != nil {
		t.Fatalf("LogCommand: %v", err)
	}
	if err := rec.LogContext(id, "decision", `{"what":"kept the retry loop"}`); err != nil {
		t.Fatalf("LogContext: %v", err)
	}
	if err := rec.EndSession(id, 0); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	detail, err := New(d).SessionDetail(id)
	if err != nil {
		t.Fatalf("SessionDetail: %v", err)
	}
	if detail.Session.ID != id || detail.Session.EndTime == nil {
		t.Fatalf("unexpected session view: %+v", detail.Session)
	}
	if len(detail.Files) != 1 || detail.Files[0].Path != "main.go" || detail.Files[0].LinesAdded != 12 {
		t.Fatalf("unexpected files: %+v", detail.Files)
	}
	if len(detail.Commands) != 1 || detail.Commands[0].Command != "go test ./..." {
		t.Fatalf("unexpected commands: %+v", detail.Commands)
	}
	if len(detail.Notes) != 1 || detail.Notes[0].Type != "decision" {
		t.Fatalf("unexpected notes: %+v", detail.Notes)
	}
}

func TestSessionDetailUnknownSession(t *testing.T) {
	d := openTestDB(t)

	_, err := New(d).SessionDetail("missing0000000ab")
	if !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStatsEmptyAndPopulated(t *testing.T) {
	d := openTestDB(t)
	r := New(d)

	stats, err := r.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.ByTool == nil || stats.RecentActivity == nil || stats.TopProjects == nil {
		t.Fatal("expected non-nil empty lists")
	}

	rec := recorder.New(d)
	id, err := rec.StartSession("claude", "/p", recorder.GitInfo{})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := rec.EndSession(id, 0); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	stats, err = r.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats.ByTool) != 1 || stats.ByTool[0].Sessions != 1 {
		t.Fatalf("unexpected tool stats: %+v", stats.ByTool)
	}
	if len(stats.RecentActivity) != 1 {
		t.Fatalf("expected one activity day, got %+v", stats.RecentActivity)
	}
	if len(stats.TopProjects) != 1 || stats.TopProjects[0].Path != "/p" {
		t.Fatalf("unexpected top projects: %+v", stats.TopProjects)
	}
}
