package retriever

import (
	"time"

	"github.com/memtrail/memtrail/internal/db"
)

// recentWindow is how far back the activity breakdown looks.
const recentWindow = 7 * 24 * time.Hour

// topProjectCount bounds the project leaderboard.
const topProjectCount = 10

// Stats is the usage overview across all recorded history.
type Stats struct {
	ByTool         []db.ToolStat    `json:"by_tool"`
	RecentActivity []db.DayActivity `json:"recent_activity"`
	TopProjects    []ProjectView    `json:"top_projects"`
}

// Stats aggregates per-tool totals, the last week of daily activity, and
// the most-visited projects. Empty history yields empty, non-nil lists.
func (r *Retriever) Stats() (*Stats, error) {
	stats := &Stats{
		ByTool:         []db.ToolStat{},
		RecentActivity: []db.DayActivity{},
		TopProjects:    []ProjectView{},
	}

	byTool, err := r.db.ToolStats()
	if err != nil {
		return nil, err
	}
	stats.ByTool = append(stats.ByTool, byTool...)

	since := r.Now().UTC().Add(-recentWindow).Format(time.RFC3339)
	activity, err := r.db.RecentActivity(since)
	if err != nil {
		return nil, err
	}
	stats.RecentActivity = append(stats.RecentActivity, activity...)

	projects, err := r.db.TopProjects(topProjectCount)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		stats.TopProjects = append(stats.TopProjects, ProjectView{
			Path:             p.Path,
			Name:             p.Name,
			SessionCount:     p.SessionCount,
			TotalTimeSeconds: p.TotalTimeSeconds,
			PrimaryLanguage:  p.PrimaryLanguage,
			Framework:        p.Framework,
		})
	}

	return stats, nil
}
