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
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ashestoaltar/tamor-core/pkg/config"
)

// sqlStorage is a raw database/sql backing store: no ORM, explicit schema,
// driver-portable SQL across sqlite/postgres/mysql. Embeddings are stored
// as a BLOB of the little-endian float32 vector (encodeEmbedding), which
// round-trips the vector byte-for-byte.
type sqlStorage struct {
	db      *sql.DB
	dialect string
}

// createTablesSQL is deliberately plain ANSI SQL (TEXT/REAL/INTEGER,
// no AUTOINCREMENT) so the same statement set runs unmodified against
// sqlite, postgres, and mysql; ids are client-generated UUIDs rather than
// autoincrement, sidestepping the three dialects' differing syntax for it.
const createTablesSQL = `
CREATE TABLE IF NOT EXISTS memories (
    id TEXT PRIMARY KEY,
    owner_user_id TEXT,
    category TEXT NOT NULL,
    content TEXT NOT NULL,
    summary TEXT,
    tier TEXT NOT NULL,
    confidence REAL NOT NULL,
    access_count INTEGER NOT NULL DEFAULT 0,
    last_accessed TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    source TEXT NOT NULL,
    embedding BLOB
);

CREATE TABLE IF NOT EXISTS memory_entities (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    entity_type TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS memory_entity_links (
    memory_id TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    relationship TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS memory_settings (
    user_id TEXT PRIMARY KEY,
    auto_save_enabled INTEGER NOT NULL DEFAULT 1,
    auto_save_categories TEXT,
    core_cap INTEGER NOT NULL DEFAULT 10
);
`

// openSQLStorage opens (and migrates) the SQL-backed store named by cfg.
func openSQLStorage(cfg *config.MemoryConfig) (*sqlStorage, error) {
	driverName := cfg.Driver
	if driverName == "sqlite" {
		driverName = "sqlite3"
	}
	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("memory: open %s: %w", cfg.Driver, err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("memory: ping %s: %w", cfg.Driver, err)
	}
	s := &sqlStorage{db: db, dialect: cfg.Driver}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *sqlStorage) migrate() error {
	if _, err := s.db.Exec(createTablesSQL); err != nil {
		return fmt.Errorf("memory: migrate schema: %w", err)
	}
	return nil
}

func (s *sqlStorage) Close() error {
	return s.db.Close()
}

func (s *sqlStorage) insertMemory(ctx context.Context, m Memory) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memories
		(id, owner_user_id, category, content, summary, tier, confidence, access_count, last_accessed, created_at, updated_at, source, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, nullable(m.OwnerUserID), m.Category, m.Content, m.Summary, string(m.Tier),
		m.Confidence, m.AccessCount, m.LastAccessed, m.CreatedAt, m.UpdatedAt, string(m.Source),
		encodeEmbedding(m.Embedding))
	if err != nil {
		return fmt.Errorf("memory: insert: %w", err)
	}
	return nil
}

func (s *sqlStorage) getMemory(ctx context.Context, id string) (*Memory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_user_id, category, content, summary, tier, confidence, access_count,
		       last_accessed, created_at, updated_at, source, embedding
		FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err != nil {
		return nil, err
	}
	return m, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*Memory, error) {
	var m Memory
	var owner sql.NullString
	var lastAccessed sql.NullTime
	var tier, source string
	var embBytes []byte
	err := row.Scan(&m.ID, &owner, &m.Category, &m.Content, &m.Summary, &tier, &m.Confidence,
		&m.AccessCount, &lastAccessed, &m.CreatedAt, &m.UpdatedAt, &source, &embBytes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: scan: %w", err)
	}
	m.OwnerUserID = owner.String
	if lastAccessed.Valid {
		m.LastAccessed = lastAccessed.Time
	}
	m.Tier = Tier(tier)
	m.Source = Source(source)
	m.Embedding = decodeEmbedding(embBytes)
	return &m, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
