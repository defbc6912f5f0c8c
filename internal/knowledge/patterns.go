package knowledge

import (
	"errors"
	"fmt"
	"time"

	"github.com/memtrail/memtrail/internal/db"
)

// Confidence blend weights for repeated pattern observations. An
// existing score dominates so one contradictory session cannot flip a
// well-established pattern.
const (
	oldWeight      = 0.7
	observedWeight = 0.3
)

// AddOrUpdatePattern records a pattern observation for the project at
// the given root path. A first observation stores the confidence as
// given; later ones blend it toward the new observation and replace the
// data blob. Confidence is clamped to [0, 1].
func (s *Store) AddOrUpdatePattern(projectPath, patternType, data string, confidence float64) error {
	if projectPath == "" || patternType == "" {
		return fmt.Errorf("project path and pattern type required: %w", db.ErrValidation)
	}
	confidence = clamp01(confidence)

	project, err := s.db.GetProjectByPath(projectPath)
	if err != nil {
		return err
	}

	now := s.Now().UTC().Format(time.RFC3339)
	var blob *string
	if data != "" {
		blob = &data
	}

	existing, err := s.db.GetPattern(project.ID, patternType)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			return err
		}
		_, err := s.db.InsertPattern(&db.ProjectPattern{
			ProjectID:   project.ID,
			PatternType: patternType,
			PatternData: blob,
			Confidence:  confidence,
			UpdatedAt:   now,
		})
		return err
	}

	blended := clamp01(existing.Confidence*oldWeight + confidence*observedWeight)
	if blob == nil {
		blob = existing.PatternData
	}
	return s.db.UpdatePattern(existing.ID, blob, blended, now)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
