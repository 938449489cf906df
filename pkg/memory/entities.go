// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// AddEntity inserts (name, type) if it doesn't already exist and returns its
// id either way — idempotent on (name, type) per §8's round-trip law.
func (s *Store) AddEntity(ctx context.Context, name string, typ EntityType) (string, error) {
	row := s.storage.db.QueryRowContext(ctx,
		"SELECT id FROM memory_entities WHERE name = ? AND entity_type = ?", name, string(typ))
	var id string
	err := row.Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("memory: lookup entity: %w", err)
	}

	id = uuid.NewString()
	if _, err := s.storage.db.ExecContext(ctx,
		"INSERT INTO memory_entities (id, name, entity_type) VALUES (?, ?, ?)", id, name, string(typ)); err != nil {
		return "", fmt.Errorf("memory: insert entity: %w", err)
	}
	return id, nil
}

// Link ties a memory to an entity with a relationship label.
func (s *Store) Link(ctx context.Context, memoryID, entityID, relationship string) error {
	if _, err := s.storage.db.ExecContext(ctx,
		"INSERT INTO memory_entity_links (memory_id, entity_id, relationship) VALUES (?, ?, ?)",
		memoryID, entityID, relationship); err != nil {
		return fmt.Errorf("memory: link %s to %s: %w", memoryID, entityID, err)
	}
	return nil
}

// ByEntity returns every memory linked to an entity matching name (by
// substring, owner-scoped), ordered tier-first then by confidence.
func (s *Store) ByEntity(ctx context.Context, name, userID string) ([]Memory, error) {
	query := `
		SELECT DISTINCT m.id, m.owner_user_id, m.category, m.content, m.summary, m.tier,
		       m.confidence, m.access_count, m.last_accessed, m.created_at, m.updated_at,
		       m.source, m.embedding
		FROM memories m
		JOIN memory_entity_links l ON m.id = l.memory_id
		JOIN memory_entities e ON l.entity_id = e.id
		WHERE e.name LIKE ?`
	args := []any{"%" + name + "%"}
	if userID != "" {
		query += " AND (m.owner_user_id = ? OR m.owner_user_id IS NULL)"
		args = append(args, userID)
	}
	query += " ORDER BY CASE m.tier WHEN 'core' THEN 0 WHEN 'long_term' THEN 1 ELSE 2 END, m.confidence DESC"

	rows, err := s.storage.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("memory: by entity: %w", err)
	}
	defer rows.Close()
	return scanMemoryRows(rows)
}
