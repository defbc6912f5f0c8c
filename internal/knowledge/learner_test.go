package knowledge

import (
	"testing"
	"time"

	"github.com/memtrail/memtrail/internal/db"
)

func TestLearnEmptyHistory(t *testing.T) {
	d := openTestDB(t)

	learnings, err := New(d).Learn()
	if err != nil {
		t.Fatalf("Learn: %v", err)
	}
	if len(learnings) != 0 {
		t.Fatalf("expected no learnings from empty history, got %+v", learnings)
	}
}

func TestLearnDistillsHabits(t *testing.T) {
	d := openTestDB(t)
	s := New(d)

	branch := "feature/context"
	for i := 0; i < 4; i++ {
		id := string(rune('a'+i)) + "aaaaaaaaaaaaaaa"
		err := d.InsertSession(&db.Session{
			ID:         id,
			Tool:       "claude",
			StartTime:  time.Now().UTC().Format(time.RFC3339),
			WorkingDir: "/home/dev/proj",
			GitBranch:  &branch,
		})
		if err != nil {
			t.Fatalf("InsertSession: %v", err)
		}
		if _, err := d.CloseSession(id, time.Now().UTC().Format(time.RFC3339), 0, 600); err != nil {
			t.Fatalf("CloseSession: %v", err)
		}
	}

	learnings, err := s.Learn()
	if err != nil {
		t.Fatalf("Learn: %v", err)
	}

	want := map[string]bool{
		"preferred tool":         false,
		"primary work location":  false,
		"typical session length": false,
		"branch naming habit":    false,
	}
	for _, l := range learnings {
		if _, ok := want[l.Title]; ok {
			want[l.Title] = true
		}
	}
	for title, seen := range want {
		if !seen {
			t.Fatalf("expected learning %q, got %+v", title, learnings)
		}
	}

	// Learnings land in the knowledge base under the profile category.
	entries, err := d.ListKnowledge("profile", 10)
	if err != nil {
		t.Fatalf("ListKnowledge: %v", err)
	}
	if len(entries) != len(learnings) {
		t.Fatalf("expected %d profile entries, got %d", len(learnings), len(entries))
	}

	// A second run merges instead of duplicating.
	if _, err := s.Learn(); err != nil {
		t.Fatalf("Learn rerun: %v", err)
	}
	entries, err = d.ListKnowledge("profile", 10)
	if err != nil {
		t.Fatalf("ListKnowledge rerun: %v", err)
	}
	if len(entries) != len(learnings) {
		t.Fatalf("expected rerun to merge, got %d entries", len(entries))
	}
	if entries[0].Frequency < 2 {
		t.Fatalf("expected rerun to bump frequency, got %d", entries[0].Frequency)
	}
}
