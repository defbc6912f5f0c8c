// Package summary compresses a week of session history into one rollup
// row per project plus an all-projects rollup. The aggregation is
// deterministic; an optional LLM pass rewrites the narrative field and
// degrades silently back to the deterministic text when unavailable.
package summary

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/memtrail/memtrail/internal/db"
)

// noteTypes are the context-note kinds folded into the weekly narrative.
var noteTypes = []string{"decision", "solution", "error"}

// Summarizer builds weekly rollups from recorded sessions.
type Summarizer struct {
	db *db.DB

	// Polish optionally rewrites the deterministic narrative. A nil
	// Polish or a Polish error leaves the deterministic text in place.
	Polish func(text string) (string, error)

	// Now is the clock used for created_at stamps; overridable in tests.
	Now func() time.Time
}

// New creates a Summarizer over the given database.
func New(database *db.DB) *Summarizer {
	return &Summarizer{db: database, Now: time.Now}
}

// ProjectSummary is the aggregation stored per project in the rollup
// blob.
type ProjectSummary struct {
	ProjectPath      string   `json:"project_path"`
	Sessions         int      `json:"sessions"`
	TotalTimeSeconds int64    `json:"total_time_seconds"`
	Branches         []string `json:"branches,omitempty"`
	Notes            []string `json:"notes,omitempty"`
}

// WeekReport is the decoded shape of a weekly summary_data blob.
type WeekReport struct {
	Year              int              `json:"year"`
	Week              int              `json:"week"`
	Tool              string           `json:"tool"`
	Sessions          int              `json:"sessions"`
	TotalTimeSeconds  int64            `json:"total_time_seconds"`
	AvgSessionSeconds int64            `json:"avg_session_seconds"`
	Projects          []ProjectSummary `json:"projects"`
	KnowledgeTouched  []string         `json:"knowledge_touched,omitempty"`
	Narrative         string           `json:"narrative"`
}

// WeekWindow returns the ISO year and week containing ref, plus the UTC
// half-open [start, end) interval of that week. Weeks start Monday.
func WeekWindow(ref time.Time) (year, week int, start, end time.Time) {
	ref = ref.UTC()
	year, week = ref.ISOWeek()

	day := ref.Truncate(24 * time.Hour)
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday belongs to the week that started six days back
	}
	start = day.AddDate(0, 0, 1-weekday)
	end = start.AddDate(0, 0, 7)
	return year, week, start, end
}

// WeekRef returns a time inside the given ISO week, suitable as a
// Summarize ref. Any past week can be recomputed by passing its year
// and week number through here. Jan 4 always falls in week 1 of its
// ISO year, which anchors the arithmetic.
func WeekRef(year, week int) time.Time {
	jan4 := time.Date(year, 1, 4, 0, 0, 0, 0, time.UTC)
	_, _, start, _ := WeekWindow(jan4)
	return start.AddDate(0, 0, (week-1)*7)
}

// Summarize aggregates one tool's sessions for the week containing ref
// and upserts a rollup per project plus the all-projects rollup.
// Re-running over the same week replaces the earlier rows. Returns the
// all-projects report.
func (s *Summarizer) Summarize(tool string, ref time.Time) (*WeekReport, error) {
	if tool == "" {
		return nil, fmt.Errorf("tool name required: %w", db.ErrValidation)
	}

	year, week, start, end := WeekWindow(ref)
	from := start.Format(time.RFC3339)
	to := end.Format(time.RFC3339)

	sessions, err := s.db.SessionsInRange(tool, "", from, to)
	if err != nil {
		return nil, err
	}
	notes, err := s.db.ContextNotesInRange(tool, noteTypes, from, to)
	if err != nil {
		return nil, err
	}

	notesBySession := map[string][]string{}
	for _, n := range notes {
		text := n.Type
		if n.Data != nil {
			text = fmt.Sprintf("%s: %s", n.Type, *n.Data)
		}
		notesBySession[n.SessionID] = append(notesBySession[n.SessionID], text)
	}

	byProject := map[string]*ProjectSummary{}
	branchSeen := map[string]map[string]bool{}
	report := &WeekReport{Year: year, Week: week, Tool: tool, Projects: []ProjectSummary{}}

	for _, sess := range sessions {
		root := sess.WorkingDir
		if sess.GitRepo != nil && *sess.GitRepo != "" {
			root = *sess.GitRepo
		}

		ps := byProject[root]
		if ps == nil {
			ps = &ProjectSummary{ProjectPath: root}
			byProject[root] = ps
			branchSeen[root] = map[string]bool{}
		}
		ps.Sessions++
		report.Sessions++
		if sess.DurationSeconds != nil {
			ps.TotalTimeSeconds += *sess.DurationSeconds
			report.TotalTimeSeconds += *sess.DurationSeconds
		}
		if sess.GitBranch != nil && *sess.GitBranch != "" && !branchSeen[root][*sess.GitBranch] {
			branchSeen[root][*sess.GitBranch] = true
			ps.Branches = append(ps.Branches, *sess.GitBranch)
		}
		ps.Notes = append(ps.Notes, notesBySession[sess.ID]...)
	}

	if report.Sessions > 0 {
		report.AvgSessionSeconds = report.TotalTimeSeconds / int64(report.Sessions)
	}

	touched, err := s.db.KnowledgeUsedInRange(from, to)
	if err != nil {
		return nil, err
	}
	report.KnowledgeTouched = touched

	roots := make([]string, 0, len(byProject))
	for root := range byProject {
		roots = append(roots, root)
	}
	sort.Strings(roots)
	for _, root := range roots {
		report.Projects = append(report.Projects, *byProject[root])
	}

	report.Narrative = s.narrative(report)

	now := s.Now().UTC().Format(time.RFC3339)
	for _, ps := range report.Projects {
		blob, err := json.Marshal(ps)
		if err != nil {
			return nil, fmt.Errorf("encode project summary: %w", err)
		}
		data := string(blob)
		if err := s.db.UpsertWeeklySummary(&db.WeeklySummary{
			Year:             year,
			Week:             week,
			Tool:             tool,
			ProjectPath:      ps.ProjectPath,
			SummaryData:      &data,
			SessionCount:     ps.Sessions,
			TotalTimeSeconds: ps.TotalTimeSeconds,
			CreatedAt:        now,
		}); err != nil {
			return nil, err
		}
	}

	blob, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode week report: %w", err)
	}
	data := string(blob)
	if err := s.db.UpsertWeeklySummary(&db.WeeklySummary{
		Year:             year,
		Week:             week,
		Tool:             tool,
		ProjectPath:      "",
		SummaryData:      &data,
		SessionCount:     report.Sessions,
		TotalTimeSeconds: report.TotalTimeSeconds,
		CreatedAt:        now,
	}); err != nil {
		return nil, err
	}

	return report, nil
}

// Report retrieves the stored all-projects rollup for a week.
func (s *Summarizer) Report(tool string, year, week int) (*WeekReport, error) {
	row, err := s.db.GetWeeklySummary(year, week, tool, "")
	if err != nil {
		return nil, err
	}
	report := &WeekReport{}
	if row.SummaryData != nil {
		if err := json.Unmarshal([]byte(*row.SummaryData), report); err != nil {
			return nil, fmt.Errorf("decode week report: %w", err)
		}
	}
	return report, nil
}

// ProjectRollups retrieves the stored per-project summaries for a week,
// decoded from their blobs and ordered by project path. The all-projects
// rollup row is excluded; Report covers that one.
func (s *Summarizer) ProjectRollups(tool string, year, week int) ([]ProjectSummary, error) {
	rows, err := s.db.ListWeeklySummaries(year, week, tool)
	if err != nil {
		return nil, err
	}

	out := []ProjectSummary{}
	for _, row := range rows {
		if row.ProjectPath == "" {
			continue
		}
		ps := ProjectSummary{
			ProjectPath:      row.ProjectPath,
			Sessions:         row.SessionCount,
			TotalTimeSeconds: row.TotalTimeSeconds,
		}
		if row.SummaryData != nil {
			if err := json.Unmarshal([]byte(*row.SummaryData), &ps); err != nil {
				return nil, fmt.Errorf("decode project summary: %w", err)
			}
		}
		out = append(out, ps)
	}
	return out, nil
}

// narrative renders the deterministic one-paragraph summary and runs the
// optional polish pass over it.
func (s *Summarizer) narrative(r *WeekReport) string {
	text := fmt.Sprintf("%d-W%02d %s: %d sessions across %d projects, %dm recorded.",
		r.Year, r.Week, r.Tool, r.Sessions, len(r.Projects), r.TotalTimeSeconds/60)
	for _, p := range r.Projects {
		text += fmt.Sprintf(" %s: %d sessions", p.ProjectPath, p.Sessions)
		if len(p.Branches) > 0 {
			text += fmt.Sprintf(" on %v", p.Branches)
		}
		text += "."
	}

	if s.Polish != nil {
		if polished, err := s.Polish(text); err == nil && polished != "" {
			return polished
		}
	}
	return text
}
