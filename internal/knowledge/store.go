// Package knowledge maintains the durable cross-session layer: the
// deduplicating knowledge base, per-project pattern scores, the entity
// graph, and the profile learner that distills habits out of recorded
// sessions.
package knowledge

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/memtrail/memtrail/internal/db"
)

// Store wraps the database with the merge and scoring semantics that do
// not fit in single SQL statements.
type Store struct {
	db *db.DB

	// Now is the clock used for all timestamps; overridable in tests.
	Now func() time.Time
}

// New creates a Store over the given database.
func New(database *db.DB) *Store {
	return &Store{db: database, Now: time.Now}
}

// AddKnowledge captures a fact. The (category, title) pair is the
// identity: a repeated capture merges into the existing entry, bumping
// frequency, refreshing last_used, overwriting the description when the
// new one is non-empty, and appending the source session once. Returns
// the entry id.
func (s *Store) AddKnowledge(category, title, description, context, sessionID string) (int64, error) {
	if category == "" || title == "" {
		return 0, fmt.Errorf("category and title required: %w", db.ErrValidation)
	}

	now := s.Now().UTC().Format(time.RFC3339)

	existing, err := s.db.GetKnowledgeByKey(category, title)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			return 0, err
		}
		entry := &db.KnowledgeEntry{
			Category:  category,
			Title:     title,
			LastUsed:  &now,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if description != "" {
			entry.Description = &description
		}
		if context != "" {
			entry.Context = &context
		}
		if sessionID != "" {
			sources := mustSessionList(nil, sessionID)
			entry.SourceSessions = &sources
		}
		return s.db.InsertKnowledge(entry)
	}

	desc := existing.Description
	if description != "" {
		desc = &description
	}

	sources := existing.SourceSessions
	if sessionID != "" {
		merged := mustSessionList(existing.SourceSessions, sessionID)
		sources = &merged
	}

	if err := s.db.MergeKnowledge(existing.ID, desc, sources, now); err != nil {
		return 0, err
	}
	return existing.ID, nil
}

// ListKnowledge returns entries in rank order, optionally filtered by
// category.
func (s *Store) ListKnowledge(category string, limit int) ([]db.KnowledgeEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.db.ListKnowledge(category, limit)
}

// mustSessionList appends a session id to a JSON-array blob, skipping
// duplicates. A malformed stored blob is replaced rather than propagated.
func mustSessionList(stored *string, sessionID string) string {
	var ids []string
	if stored != nil {
		if err := json.Unmarshal([]byte(*stored), &ids); err != nil {
			ids = nil
		}
	}
	for _, id := range ids {
		if id == sessionID {
			out, _ := json.Marshal(ids)
			return string(out)
		}
	}
	ids = append(ids, sessionID)
	out, _ := json.Marshal(ids)
	return string(out)
}
