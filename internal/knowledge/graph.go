package knowledge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/memtrail/memtrail/internal/db"
)

// GraphEntity is the export shape of one graph node, compatible with
// the MCP memory-server format.
type GraphEntity struct {
	Name         string   `json:"name"`
	EntityType   string   `json:"entityType"`
	Observations []string `json:"observations"`
}

// GraphRelation is the export shape of one graph edge.
type GraphRelation struct {
	From         string  `json:"from"`
	To           string  `json:"to"`
	RelationType string  `json:"relationType"`
	Strength     float64 `json:"strength"`
}

// Graph is the full exported entity graph.
type Graph struct {
	Entities  []GraphEntity   `json:"entities"`
	Relations []GraphRelation `json:"relations"`
}

// AddEntity records a graph node. Observations are stored as the
// metadata blob; re-adding an entity replaces its observations. Returns
// the entity id.
func (s *Store) AddEntity(name, entityType string, observations []string) (int64, error) {
	if name == "" || entityType == "" {
		return 0, fmt.Errorf("entity name and type required: %w", db.ErrValidation)
	}

	var metadata *string
	if len(observations) > 0 {
		blob, err := json.Marshal(observations)
		if err != nil {
			return 0, fmt.Errorf("encode observations: %w", err)
		}
		str := string(blob)
		metadata = &str
	}

	now := s.Now().UTC().Format(time.RFC3339)
	return s.db.UpsertEntity(name, entityType, metadata, now)
}

// Relate records a typed edge between two entities, creating either
// endpoint if absent. Re-relating updates the strength.
func (s *Store) Relate(fromName, fromType, toName, toType, relationType string, strength float64) error {
	if relationType == "" {
		return fmt.Errorf("relation type required: %w", db.ErrValidation)
	}
	strength = clamp01(strength)

	fromID, err := s.AddEntity(fromName, fromType, nil)
	if err != nil {
		return err
	}
	toID, err := s.AddEntity(toName, toType, nil)
	if err != nil {
		return err
	}

	now := s.Now().UTC().Format(time.RFC3339)
	return s.db.UpsertRelation(fromID, toID, relationType, strength, now)
}

// ExportGraph renders the whole graph in the MCP memory-server
// interchange format. Lists are non-nil even when empty.
func (s *Store) ExportGraph() (*Graph, error) {
	graph := &Graph{
		Entities:  []GraphEntity{},
		Relations: []GraphRelation{},
	}

	entities, err := s.db.ListEntities()
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		ge := GraphEntity{
			Name:         e.Name,
			EntityType:   e.Type,
			Observations: []string{},
		}
		if e.Metadata != nil {
			var obs []string
			if err := json.Unmarshal([]byte(*e.Metadata), &obs); err == nil {
				ge.Observations = obs
			}
		}
		graph.Entities = append(graph.Entities, ge)
	}

	relations, err := s.db.ListNamedRelations()
	if err != nil {
		return nil, err
	}
	for _, r := range relations {
		graph.Relations = append(graph.Relations, GraphRelation{
			From:         r.FromName,
			To:           r.ToName,
			RelationType: r.RelationType,
			Strength:     r.Strength,
		})
	}

	return graph, nil
}
