package knowledge

import (
	"fmt"
	"strings"
)

// learnWindow is how many recent sessions the learner inspects.
const learnWindow = 200

// Learning is one distilled habit, already persisted to the knowledge
// base when returned.
type Learning struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Learn inspects recent completed sessions and distills working habits
// into profile knowledge entries: the preferred tool, the dominant work
// location, the typical session length, and the branch naming habit.
// Each run re-captures the current habits, so the merge path keeps their
// descriptions fresh while frequency tracks how stable they are.
func (s *Store) Learn() ([]Learning, error) {
	sessions, err := s.db.ListSessions(learnWindow, 0)
	if err != nil {
		return nil, err
	}

	toolCounts := map[string]int{}
	dirCounts := map[string]int{}
	prefixCounts := map[string]int{}
	var totalDuration, completed int64

	for _, sess := range sessions {
		toolCounts[sess.Tool]++
		dirCounts[sess.WorkingDir]++
		if sess.DurationSeconds != nil {
			totalDuration += *sess.DurationSeconds
			completed++
		}
		if sess.GitBranch != nil {
			if prefix, _, ok := strings.Cut(*sess.GitBranch, "/"); ok {
				prefixCounts[prefix]++
			}
		}
	}

	var learnings []Learning
	capture := func(title, description string) error {
		if _, err := s.AddKnowledge("profile", title, description, "", ""); err != nil {
			return err
		}
		learnings = append(learnings, Learning{Title: title, Description: description})
		return nil
	}

	if tool, n := topKey(toolCounts); n > 0 {
		desc := fmt.Sprintf("%s is the most used CLI tool (%d of %d recent sessions)", tool, n, len(sessions))
		if err := capture("preferred tool", desc); err != nil {
			return nil, err
		}
	}
	if dir, n := topKey(dirCounts); n > 1 {
		desc := fmt.Sprintf("most sessions run from %s (%d of %d)", dir, n, len(sessions))
		if err := capture("primary work location", desc); err != nil {
			return nil, err
		}
	}
	if completed > 0 {
		avg := totalDuration / completed
		desc := fmt.Sprintf("typical session lasts about %d minutes", avg/60)
		if err := capture("typical session length", desc); err != nil {
			return nil, err
		}
	}
	if prefix, n := topKey(prefixCounts); n > 1 {
		desc := fmt.Sprintf("branches usually use the %s/ prefix", prefix)
		if err := capture("branch naming habit", desc); err != nil {
			return nil, err
		}
	}

	return learnings, nil
}

// topKey returns the key with the highest count. Ties break on the
// lexically smaller key so repeated runs are deterministic.
func topKey(counts map[string]int) (string, int) {
	var best string
	var n int
	for k, v := range counts {
		if v > n || (v == n && (best == "" || k < best)) {
			best, n = k, v
		}
	}
	return best, n
}
