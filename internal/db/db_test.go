package db

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func strPtr(s string) *string { return &s }

func now() string { return time.Now().UTC().Format(time.RFC3339) }

func insertTestSession(t *testing.T, d *DB, id, tool, dir string) {
	t.Helper()
	err := d.InsertSession(&Session{
		ID:         id,
		Tool:       tool,
		StartTime:  now(),
		WorkingDir: dir,
	})
	if err != nil {
		t.Fatalf("InsertSession: %v", err)
	}
}

func TestOpenAndMigrate(t *testing.T) {
	d := openTestDB(t)

	// Verify the schema landed by checking goose bookkeeping.
	var version int
	err := d.Conn().QueryRow(`SELECT MAX(version_id) FROM goose_db_version`).Scan(&version)
	if err != nil {
		t.Fatalf("query goose version: %v", err)
	}
	if version < 3 {
		t.Fatalf("expected schema version >= 3, got %d", version)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	d := openTestDB(t)

	insertTestSession(t, d, "abc123", "claude", "/home/dev/proj")

	s, err := d.GetSession("abc123")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if s.Tool != "claude" {
		t.Fatalf("expected tool claude, got %q", s.Tool)
	}
	if s.EndTime != nil {
		t.Fatalf("expected open session, got end time %q", *s.EndTime)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	d := openTestDB(t)

	_, err := d.GetSession("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCloseSessionIdempotent(t *testing.T) {
	d := openTestDB(t)
	insertTestSession(t, d, "abc123", "claude", "/home/dev/proj")

	applied, err := d.CloseSession("abc123", now(), 0, 120)
	if err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if !applied {
		t.Fatal("expected first close to apply")
	}

	applied, err = d.CloseSession("abc123", now(), 1, 999)
	if err != nil {
		t.Fatalf("CloseSession second call: %v", err)
	}
	if applied {
		t.Fatal("expected second close to be a no-op")
	}

	s, err := d.GetSession("abc123")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if s.DurationSeconds == nil || *s.DurationSeconds != 120 {
		t.Fatalf("expected original duration 120 to survive, got %+v", s.DurationSeconds)
	}
}

func TestProjectUpsertCounts(t *testing.T) {
	d := openTestDB(t)

	for i := 0; i < 3; i++ {
		if err := d.UpsertProjectStart("/home/dev/proj", "proj", "s1", now()); err != nil {
			t.Fatalf("UpsertProjectStart: %v", err)
		}
	}

	p, err := d.GetProjectByPath("/home/dev/proj")
	if err != nil {
		t.Fatalf("GetProjectByPath: %v", err)
	}
	if p.SessionCount != 3 {
		t.Fatalf("expected session_count 3, got %d", p.SessionCount)
	}
}

func TestAddProjectTime(t *testing.T) {
	d := openTestDB(t)

	if err := d.UpsertProjectStart("/p", "p", "s1", now()); err != nil {
		t.Fatalf("UpsertProjectStart: %v", err)
	}
	if err := d.AddProjectTime("/p", 100, now()); err != nil {
		t.Fatalf("AddProjectTime: %v", err)
	}
	if err := d.AddProjectTime("/p", 20, now()); err != nil {
		t.Fatalf("AddProjectTime: %v", err)
	}

	p, err := d.GetProjectByPath("/p")
	if err != nil {
		t.Fatalf("GetProjectByPath: %v", err)
	}
	if p.TotalTimeSeconds != 120 {
		t.Fatalf("expected total time 120, got %d", p.TotalTimeSeconds)
	}
}

func TestKnowledgeSearchRanking(t *testing.T) {
	d := openTestDB(t)

	for i, title := range []string{"goroutine leak", "nil map write"} {
		_, err := d.InsertKnowledge(&KnowledgeEntry{
			Category:    "gotcha",
			Title:       title,
			Description: strPtr("go runtime behavior"),
			CreatedAt:   now(),
			UpdatedAt:   now(),
		})
		if err != nil {
			t.Fatalf("InsertKnowledge %d: %v", i, err)
		}
	}

	// Bump the second entry so it outranks the first.
	e, err := d.GetKnowledgeByKey("gotcha", "nil map write")
	if err != nil {
		t.Fatalf("GetKnowledgeByKey: %v", err)
	}
	if err := d.TouchKnowledge([]int64{e.ID}, now()); err != nil {
		t.Fatalf("TouchKnowledge: %v", err)
	}

	entries, err := d.SearchKnowledge([]string{"go"}, 10)
	if err != nil {
		t.Fatalf("SearchKnowledge: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Title != "nil map write" {
		t.Fatalf("expected touched entry first, got %q", entries[0].Title)
	}
	if entries[0].Frequency != 2 {
		t.Fatalf("expected frequency 2 after touch, got %d", entries[0].Frequency)
	}
}

func TestWeeklySummaryReplaces(t *testing.T) {
	d := openTestDB(t)

	w := &WeeklySummary{
		Year: 2026, Week: 35, Tool: "claude", ProjectPath: "",
		SessionCount: 2, TotalTimeSeconds: 300, CreatedAt: now(),
	}
	if err := d.UpsertWeeklySummary(w); err != nil {
		t.Fatalf("UpsertWeeklySummary: %v", err)
	}
	w.SessionCount = 5
	if err := d.UpsertWeeklySummary(w); err != nil {
		t.Fatalf("UpsertWeeklySummary rerun: %v", err)
	}

	got, err := d.GetWeeklySummary(2026, 35, "claude", "")
	if err != nil {
		t.Fatalf("GetWeeklySummary: %v", err)
	}
	if got.SessionCount != 5 {
		t.Fatalf("expected replaced count 5, got %d", got.SessionCount)
	}

	var rows int
	if err := d.Conn().QueryRow(`SELECT COUNT(*) FROM weekly_summaries`).Scan(&rows); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected single row after rerun, got %d", rows)
	}
}

func TestEntityUpsertKeepsID(t *testing.T) {
	d := openTestDB(t)

	id1, err := d.UpsertEntity("redis", "technology", nil, now())
	if err != nil {
		t.Fatalf("UpsertEntity: %v", err)
	}
	id2, err := d.UpsertEntity("redis", "technology", strPtr(`["cache layer"]`), now())
	if err != nil {
		t.Fatalf("UpsertEntity again: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected stable id, got %d then %d", id1, id2)
	}

	entities, err := d.ListEntities()
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if len(entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(entities))
	}
	if entities[0].Metadata == nil || *entities[0].Metadata != `["cache layer"]` {
		t.Fatalf("expected metadata updated, got %+v", entities[0].Metadata)
	}
}

func TestToolStats(t *testing.T) {
	d := openTestDB(t)

	insertTestSession(t, d, "s1", "claude", "/p")
	insertTestSession(t, d, "s2", "claude", "/p")
	insertTestSession(t, d, "s3", "cursor", "/p")
	if _, err := d.CloseSession("s1", now(), 0, 60); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}

	stats, err := d.ToolStats()
	if err != nil {
		t.Fatalf("ToolStats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(stats))
	}
	if stats[0].Tool != "claude" || stats[0].Sessions != 2 || stats[0].TotalTimeSeconds != 60 {
		t.Fatalf("unexpected claude stats: %+v", stats[0])
	}
}

func TestBaselineLegacyDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	// Build a pre-migration database by hand: sessions table, no goose
	// bookkeeping.
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := d.Conn().Exec(`DROP TABLE goose_db_version`); err != nil {
		t.Fatalf("drop goose table: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen: the baseline pass must adopt the existing schema instead of
	// failing on duplicate tables.
	d2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen legacy database: %v", err)
	}
	defer d2.Close()

	var version int
	if err := d2.Conn().QueryRow(`SELECT MAX(version_id) FROM goose_db_version`).Scan(&version); err != nil {
		t.Fatalf("query goose version: %v", err)
	}
	if version < 3 {
		t.Fatalf("expected baselined schema version >= 3, got %d", version)
	}
}
