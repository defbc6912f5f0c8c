package db

import "fmt"

// Entity is a node in the cross-session semantic graph: a person,
// project, technology, file, or concept. Metadata is an opaque JSON blob.
type Entity struct {
	ID        int64
	Name      string
	Type      string
	Metadata  *string
	CreatedAt string
}

// EntityRelation is a typed, strength-scored directed edge between two
// entities. The (from, to, type) tuple is unique; re-adding an edge
// updates its strength instead of duplicating it.
type EntityRelation struct {
	ID           int64
	FromEntityID int64
	ToEntityID   int64
	RelationType string
	Strength     float64
	CreatedAt    string
}

// NamedRelation is a relation with entity names resolved, used for the
// graph export payload.
type NamedRelation struct {
	FromName     string  `json:"from"`
	RelationType string  `json:"relation_type"`
	ToName       string  `json:"to"`
	Strength     float64 `json:"strength"`
}

// UpsertEntity creates the entity if absent and returns its id. On
// conflict, non-null metadata replaces the stored blob.
func (d *DB) UpsertEntity(name, entityType string, metadata *string, now string) (int64, error) {
	_, err := d.conn.Exec(
		`INSERT INTO entities (entity_name, entity_type, metadata, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(entity_name, entity_type) DO UPDATE SET
			metadata = COALESCE(excluded.metadata, metadata)`,
		name, entityType, metadata, now,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert entity %s: %w", name, err)
	}

	var id int64
	err = d.conn.QueryRow(
		`SELECT id FROM entities WHERE entity_name = ? AND entity_type = ?`, name, entityType,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("resolve entity id %s: %w", name, err)
	}
	return id, nil
}

// UpsertRelation creates or updates the edge between two entities.
func (d *DB) UpsertRelation(fromID, toID int64, relationType string, strength float64, now string) error {
	_, err := d.conn.Exec(
		`INSERT INTO entity_relations (from_entity_id, to_entity_id, relation_type, strength, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(from_entity_id, to_entity_id, relation_type) DO UPDATE SET
			strength = excluded.strength`,
		fromID, toID, relationType, strength, now,
	)
	if err != nil {
		return fmt.Errorf("upsert relation %d->%d: %w", fromID, toID, err)
	}
	return nil
}

// ListEntities returns all entities ordered by name.
func (d *DB) ListEntities() ([]Entity, error) {
	rows, err := d.conn.Query(
		`SELECT id, entity_name, entity_type, metadata, created_at FROM entities ORDER BY entity_name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var entities []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.ID, &e.Name, &e.Type, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// ListNamedRelations returns all edges with entity names resolved.
func (d *DB) ListNamedRelations() ([]NamedRelation, error) {
	rows, err := d.conn.Query(`
		SELECT e1.entity_name, er.relation_type, e2.entity_name, er.strength
		FROM entity_relations er
		JOIN entities e1 ON er.from_entity_id = e1.id
		JOIN entities e2 ON er.to_entity_id = e2.id
		ORDER BY e1.entity_name ASC, er.relation_type ASC`)
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var relations []NamedRelation
	for rows.Next() {
		var r NamedRelation
		if err := rows.Scan(&r.FromName, &r.RelationType, &r.ToName, &r.Strength); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		relations = append(relations, r)
	}
	return relations, rows.Err()
}
