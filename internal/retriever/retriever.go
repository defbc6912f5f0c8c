// Package retriever assembles the context payload injected into new AI
// CLI sessions: recent sessions for the working directory, the project's
// confidence-ranked patterns, and knowledge entries matching the
// project's recorded stack. Matching is deliberately a bounded substring
// filter over stored fields, not a semantic ranking model.
package retriever

import (
	"errors"
	"strings"
	"time"

	"github.com/memtrail/memtrail/internal/db"
)

// knowledgeCap bounds the knowledge section of every payload.
const knowledgeCap = 20

// SessionView is the payload shape for one prior session.
type SessionView struct {
	ID              string  `json:"id"`
	Tool            string  `json:"tool"`
	StartTime       string  `json:"start_time"`
	EndTime         *string `json:"end_time,omitempty"`
	WorkingDir      string  `json:"working_dir"`
	GitBranch       *string `json:"git_branch,omitempty"`
	ExitCode        *int    `json:"exit_code,omitempty"`
	DurationSeconds *int64  `json:"duration_seconds,omitempty"`
}

// PatternView is the payload shape for one project pattern.
type PatternView struct {
	Type       string  `json:"type"`
	Data       *string `json:"data,omitempty"`
	Confidence float64 `json:"confidence"`
}

// KnowledgeView is the payload shape for one knowledge entry.
type KnowledgeView struct {
	Category    string  `json:"category"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Frequency   int     `json:"frequency"`
	LastUsed    *string `json:"last_used,omitempty"`
}

// ProjectView is the payload shape for the matched project, when any.
type ProjectView struct {
	Path             string  `json:"path"`
	Name             string  `json:"name"`
	SessionCount     int     `json:"session_count"`
	TotalTimeSeconds int64   `json:"total_time_seconds"`
	PrimaryLanguage  *string `json:"primary_language,omitempty"`
	Framework        *string `json:"framework,omitempty"`
}

// ContextPayload is the bounded result set handed to the calling hook.
// All list fields are present (possibly empty) so a directory with zero
// history still yields a well-formed document.
type ContextPayload struct {
	Project           *ProjectView    `json:"project,omitempty"`
	RecentSessions    []SessionView   `json:"recent_sessions"`
	ProjectPatterns   []PatternView   `json:"project_patterns"`
	RelevantKnowledge []KnowledgeView `json:"relevant_knowledge"`
}

// Retriever reads context from the store and reinforces what it returns.
type Retriever struct {
	db *db.DB

	// Now is the clock used for reinforcement timestamps; overridable
	// in tests.
	Now func() time.Time
}

// New creates a Retriever over the given database.
func New(database *db.DB) *Retriever {
	return &Retriever{db: database, Now: time.Now}
}

// GetContext returns the context payload for a working directory. The
// optional tool filters the recent-session list; limit caps it. Absence
// of history is not an error; the payload is simply empty.
func (r *Retriever) GetContext(workingDir, tool string, limit int) (*ContextPayload, error) {
	if limit <= 0 {
		limit = 10
	}

	payload := &ContextPayload{
		RecentSessions:    []SessionView{},
		ProjectPatterns:   []PatternView{},
		RelevantKnowledge: []KnowledgeView{},
	}

	sessions, err := r.db.RecentSessionsByDir(workingDir, tool, limit)
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		payload.RecentSessions = append(payload.RecentSessions, SessionView{
			ID:              s.ID,
			Tool:            s.Tool,
			StartTime:       s.StartTime,
			EndTime:         s.EndTime,
			WorkingDir:      s.WorkingDir,
			GitBranch:       s.GitBranch,
			ExitCode:        s.ExitCode,
			DurationSeconds: s.DurationSeconds,
		})
	}

	project, err := r.resolveProject(workingDir, sessions)
	if err != nil {
		return nil, err
	}

	var terms []string
	if project != nil {
		payload.Project = &ProjectView{
			Path:             project.Path,
			Name:             project.Name,
			SessionCount:     project.SessionCount,
			TotalTimeSeconds: project.TotalTimeSeconds,
			PrimaryLanguage:  project.PrimaryLanguage,
			Framework:        project.Framework,
		}

		patterns, err := r.db.ListPatternsForProject(project.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range patterns {
			payload.ProjectPatterns = append(payload.ProjectPatterns, PatternView{
				Type:       p.PatternType,
				Data:       p.PatternData,
				Confidence: p.Confidence,
			})
		}

		terms = relevanceTerms(project)
	}

	// Knowledge is scoped to the matched project's recorded stack. With
	// no project there is nothing to match against, so the list stays
	// empty rather than leaking the global top entries.
	if len(terms) == 0 {
		return payload, nil
	}

	entries, err := r.db.SearchKnowledge(terms, knowledgeCap)
	if err != nil {
		return nil, err
	}

	var touched []int64
	for _, k := range entries {
		payload.RelevantKnowledge = append(payload.RelevantKnowledge, KnowledgeView{
			Category:    k.Category,
			Title:       k.Title,
			Description: k.Description,
			Frequency:   k.Frequency,
			LastUsed:    k.LastUsed,
		})
		touched = append(touched, k.ID)
	}

	// Retrieval reinforces ranking: every returned entry gets hotter.
	now := r.Now().UTC().Format(time.RFC3339)
	if err := r.db.TouchKnowledge(touched, now); err != nil {
		return nil, err
	}

	return payload, nil
}

// FileEventView is the detail shape for one file event.
type FileEventView struct {
	Path         string  `json:"path"`
	Action       string  `json:"action"`
	Language     *string `json:"language,omitempty"`
	LinesAdded   int     `json:"lines_added"`
	LinesRemoved int     `json:"lines_removed"`
	Timestamp    string  `json:"timestamp"`
}

// CommandView is the detail shape for one command event.
type CommandView struct {
	Command       string  `json:"command"`
	ExitCode      int     `json:"exit_code"`
	OutputSummary *string `json:"output_summary,omitempty"`
	Timestamp     string  `json:"timestamp"`
}

// NoteView is the detail shape for one context note.
type NoteView struct {
	Type      string  `json:"type"`
	Data      *string `json:"data,omitempty"`
	Timestamp string  `json:"timestamp"`
}

// SessionDetail is the full record of one session: the session row plus
// every event logged against it, in timestamp order.
type SessionDetail struct {
	Session  SessionView     `json:"session"`
	Files    []FileEventView `json:"files"`
	Commands []CommandView   `json:"commands"`
	Notes    []NoteView      `json:"notes"`
}

// SessionDetail returns one session with its logged events. Returns
// db.ErrNotFound for an unknown session id.
func (r *Retriever) SessionDetail(sessionID string) (*SessionDetail, error) {
	s, err := r.db.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	detail := &SessionDetail{
		Session: SessionView{
			ID:              s.ID,
			Tool:            s.Tool,
			StartTime:       s.StartTime,
			EndTime:         s.EndTime,
			WorkingDir:      s.WorkingDir,
			GitBranch:       s.GitBranch,
			ExitCode:        s.ExitCode,
			DurationSeconds: s.DurationSeconds,
		},
		Files:    []FileEventView{},
		Commands: []CommandView{},
		Notes:    []NoteView{},
	}

	files, err := r.db.ListFileActions(sessionID)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		detail.Files = append(detail.Files, FileEventView{
			Path:         f.FilePath,
			Action:       f.Action,
			Language:     f.Language,
			LinesAdded:   f.LinesAdded,
			LinesRemoved: f.LinesRemoved,
			Timestamp:    f.Timestamp,
		})
	}

	commands, err := r.db.ListCommands(sessionID)
	if err != nil {
		return nil, err
	}
	for _, c := range commands {
		detail.Commands = append(detail.Commands, CommandView{
			Command:       c.Command,
			ExitCode:      c.ExitCode,
			OutputSummary: c.OutputSummary,
			Timestamp:     c.Timestamp,
		})
	}

	notes, err := r.db.ListContextNotes(sessionID)
	if err != nil {
		return nil, err
	}
	for _, n := range notes {
		detail.Notes = append(detail.Notes, NoteView{
			Type:      n.Type,
			Data:      n.Data,
			Timestamp: n.Timestamp,
		})
	}

	return detail, nil
}

// resolveProject finds the project row for a directory. When the
// directory itself is not a project root (a repo subdirectory, say), the
// most recent session's recorded root is used instead.
func (r *Retriever) resolveProject(workingDir string, sessions []db.Session) (*db.Project, error) {
	p, err := r.db.GetProjectByPath(workingDir)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	for _, s := range sessions {
		if s.GitRepo == nil || *s.GitRepo == workingDir {
			continue
		}
		p, err := r.db.GetProjectByPath(*s.GitRepo)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// relevanceTerms derives the substring-match terms from a project's
// recorded stack.
func relevanceTerms(p *db.Project) []string {
	var terms []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" {
			terms = append(terms, s)
		}
	}
	if p.PrimaryLanguage != nil {
		add(*p.PrimaryLanguage)
	}
	if p.Framework != nil {
		add(*p.Framework)
	}
	add(p.Name)
	return terms
}
