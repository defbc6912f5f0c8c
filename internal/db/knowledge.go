package db

import "fmt"

// KnowledgeEntry is a reusable cross-session fact: a pattern, solution,
// gotcha, or preference. Frequency counts both captures and retrieval
// matches, so hot entries surface first.
type KnowledgeEntry struct {
	ID             int64
	Category       string
	Title          string
	Description    *string
	Context        *string
	Frequency      int
	LastUsed       *string
	SourceSessions *string // JSON array of session ids
	CreatedAt      string
	UpdatedAt      string
}

const knowledgeColumns = `id, category, title, description, context, frequency, last_used, source_sessions, created_at, updated_at`

func scanKnowledge(scanner interface{ Scan(...any) error }, k *KnowledgeEntry) error {
	return scanner.Scan(&k.ID, &k.Category, &k.Title, &k.Description, &k.Context, &k.Frequency, &k.LastUsed, &k.SourceSessions, &k.CreatedAt, &k.UpdatedAt)
}

// GetKnowledgeByKey retrieves the entry for the (category, title) dedupe
// key. Returns ErrNotFound when no such entry exists.
func (d *DB) GetKnowledgeByKey(category, title string) (*KnowledgeEntry, error) {
	k := &KnowledgeEntry{}
	row := d.conn.QueryRow(
		`SELECT `+knowledgeColumns+` FROM knowledge_base WHERE category = ? AND title = ?`,
		category, title,
	)
	if err := scanKnowledge(row, k); err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("knowledge %s/%s: %w", category, title, ErrNotFound)
		}
		return nil, fmt.Errorf("get knowledge %s/%s: %w", category, title, err)
	}
	return k, nil
}

// InsertKnowledge creates a fresh entry with frequency 1.
func (d *DB) InsertKnowledge(k *KnowledgeEntry) (int64, error) {
	res, err := d.conn.Exec(
		`INSERT INTO knowledge_base (category, title, description, context, frequency, last_used, source_sessions, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?)`,
		k.Category, k.Title, k.Description, k.Context, k.LastUsed, k.SourceSessions, k.CreatedAt, k.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert knowledge: %w", err)
	}
	return res.LastInsertId()
}

// MergeKnowledge folds a repeated capture into an existing entry: bumps
// frequency, refreshes last_used, and replaces description and source
// sessions with the merged values computed by the caller.
func (d *DB) MergeKnowledge(id int64, description, sourceSessions *string, now string) error {
	_, err := d.conn.Exec(
		`UPDATE knowledge_base SET
			frequency = frequency + 1,
			description = ?,
			source_sessions = ?,
			last_used = ?,
			updated_at = ?
		 WHERE id = ?`,
		description, sourceSessions, now, now, id,
	)
	if err != nil {
		return fmt.Errorf("merge knowledge %d: %w", id, err)
	}
	return nil
}

// TouchKnowledge reinforces entries returned by a retrieval: frequency
// goes up and last_used moves forward, so they rank higher next time.
func (d *DB) TouchKnowledge(ids []int64, now string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE knowledge_base SET frequency = frequency + 1, last_used = ? WHERE id IN (`
	args := []any{now}
	for i, id := range ids {
		if i > 0 {
			query += `,`
		}
		query += `?`
		args = append(args, id)
	}
	query += `)`
	if _, err := d.conn.Exec(query, args...); err != nil {
		return fmt.Errorf("touch knowledge: %w", err)
	}
	return nil
}

// SearchKnowledge returns entries whose title, description, or context
// contains any of the given terms, ranked by frequency then recency of
// use. With no terms it falls back to the overall top entries.
func (d *DB) SearchKnowledge(terms []string, limit int) ([]KnowledgeEntry, error) {
	query := `SELECT ` + knowledgeColumns + ` FROM knowledge_base`
	var args []any
	if len(terms) > 0 {
		query += ` WHERE `
		for i, t := range terms {
			if i > 0 {
				query += ` OR `
			}
			query += `(title LIKE ? OR description LIKE ? OR context LIKE ?)`
			pattern := "%" + t + "%"
			args = append(args, pattern, pattern, pattern)
		}
	}
	query += ` ORDER BY frequency DESC, last_used DESC LIMIT ?`
	args = append(args, limit)

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search knowledge: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var entries []KnowledgeEntry
	for rows.Next() {
		var k KnowledgeEntry
		if err := scanKnowledge(rows, &k); err != nil {
			return nil, fmt.Errorf("scan knowledge: %w", err)
		}
		entries = append(entries, k)
	}
	return entries, rows.Err()
}

// KnowledgeUsedInRange returns titles of entries used within [from, to),
// most frequent first. Feeds the weekly summary.
func (d *DB) KnowledgeUsedInRange(from, to string) ([]string, error) {
	rows, err := d.conn.Query(
		`SELECT title FROM knowledge_base WHERE last_used >= ? AND last_used < ?
		 ORDER BY frequency DESC, title ASC`, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("knowledge used in range: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan knowledge title: %w", err)
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

// ListKnowledge returns entries in rank order, optionally filtered by
// category.
func (d *DB) ListKnowledge(category string, limit int) ([]KnowledgeEntry, error) {
	query := `SELECT ` + knowledgeColumns + ` FROM knowledge_base`
	var args []any
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY frequency DESC, last_used DESC LIMIT ?`
	args = append(args, limit)

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list knowledge: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var entries []KnowledgeEntry
	for rows.Next() {
		var k KnowledgeEntry
		if err := scanKnowledge(rows, &k); err != nil {
			return nil, fmt.Errorf("scan knowledge: %w", err)
		}
		entries = append(entries, k)
	}
	return entries, rows.Err()
}
