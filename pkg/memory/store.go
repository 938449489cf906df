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
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ashestoaltar/tamor-core/pkg/config"
	"github.com/ashestoaltar/tamor-core/pkg/embedder"
)

// Store is the memory subsystem's public API: §4.3's add/update/delete/
// get/list/search/record_access plus entity management and governance
// settings. Embeddings are regenerated atomically on any content change and
// semantic search scores every owned memory's stored embedding against the
// query in process, the same way the original's numpy-based
// core_search_memories does — this core has no need for an external vector
// index over a handful of per-user memories.
type Store struct {
	storage  *sqlStorage
	embedder embedder.Embedder
	cfg      config.MemoryConfig
}

// Open constructs a Store backed by cfg's SQL driver/DSN.
func Open(cfg config.MemoryConfig, emb embedder.Embedder) (*Store, error) {
	cfg.SetDefaults()
	s, err := openSQLStorage(&cfg)
	if err != nil {
		return nil, err
	}
	return &Store{storage: s, embedder: emb, cfg: cfg}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.storage.Close()
}

// Add stores a new memory, demoting a full core tier to long_term per the
// cap invariant (§8 invariant 1), and returns the new memory's id either way.
func (s *Store) Add(ctx context.Context, content, category, userID string, source Source, tier Tier, confidence float64) (string, error) {
	if !tier.Valid() {
		tier = TierLongTerm
	}
	confidence = clampConfidence(confidence)

	if tier == TierCore {
		count, err := s.CountTier(ctx, userID, TierCore)
		if err != nil {
			return "", err
		}
		if count >= s.cfg.CoreCap {
			slog.Warn("memory: core tier full, demoting to long_term", "user_id", userID, "cap", s.cfg.CoreCap)
			tier = TierLongTerm
		}
	}

	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return "", fmt.Errorf("memory: embed content: %w", err)
	}

	now := nowUTC()
	m := Memory{
		ID:          uuid.NewString(),
		OwnerUserID: userID,
		Category:    category,
		Content:     content,
		Tier:        tier,
		Confidence:  confidence,
		LastAccessed: now,
		CreatedAt:   now,
		UpdatedAt:   now,
		Source:      source,
		Embedding:   vec,
	}
	if err := s.storage.insertMemory(ctx, m); err != nil {
		return "", err
	}
	return m.ID, nil
}

// UpdateFields is the set of optional fields Update can change. A nil field
// leaves the corresponding column untouched.
type UpdateFields struct {
	Content    *string
	Category   *string
	Tier       *Tier
	Confidence *float64
	Summary    *string
}

// Update applies the given field changes, ownership-checked when userID is
// non-empty. Changing Content re-embeds atomically; re-embedding the
// identical content a memory already has is a content no-op that preserves
// the stored embedding byte-for-byte (the embedder is deterministic).
func (s *Store) Update(ctx context.Context, id string, fields UpdateFields, userID string) (bool, error) {
	existing, err := s.authorizedGet(ctx, id, userID)
	if err != nil || existing == nil {
		return false, err
	}

	set := []string{"updated_at = ?"}
	args := []any{nowUTC()}

	if fields.Content != nil {
		vec, err := s.embedder.Embed(ctx, *fields.Content)
		if err != nil {
			return false, fmt.Errorf("memory: re-embed content: %w", err)
		}
		set = append(set, "content = ?", "embedding = ?")
		args = append(args, *fields.Content, encodeEmbedding(vec))
	}
	if fields.Category != nil {
		set = append(set, "category = ?")
		args = append(args, *fields.Category)
	}
	if fields.Tier != nil && fields.Tier.Valid() {
		set = append(set, "tier = ?")
		args = append(args, string(*fields.Tier))
	}
	if fields.Confidence != nil {
		set = append(set, "confidence = ?")
		args = append(args, clampConfidence(*fields.Confidence))
	}
	if fields.Summary != nil {
		set = append(set, "summary = ?")
		args = append(args, *fields.Summary)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE memories SET %s WHERE id = ?", strings.Join(set, ", "))
	res, err := s.storage.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("memory: update %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Delete removes a memory and its entity links first, matching invariant 3
// (no dangling memory_entity_links rows after delete).
func (s *Store) Delete(ctx context.Context, id string, userID string) (bool, error) {
	existing, err := s.authorizedGet(ctx, id, userID)
	if err != nil || existing == nil {
		return false, err
	}

	if _, err := s.storage.db.ExecContext(ctx, "DELETE FROM memory_entity_links WHERE memory_id = ?", id); err != nil {
		return false, fmt.Errorf("memory: delete links for %s: %w", id, err)
	}
	res, err := s.storage.db.ExecContext(ctx, "DELETE FROM memories WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("memory: delete %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Get returns a single memory by id, or nil if not found.
func (s *Store) Get(ctx context.Context, id string) (*Memory, error) {
	return s.storage.getMemory(ctx, id)
}

// ListFilters narrows List's result set. Zero values are "no filter".
type ListFilters struct {
	UserID   string
	Category string
	Source   Source
	Tier     Tier
	Limit    int
}

// List returns memories matching the given filters, core-tier first, then
// long_term, then episodic, each ordered by descending confidence.
func (s *Store) List(ctx context.Context, f ListFilters) ([]Memory, error) {
	where := []string{}
	args := []any{}

	if f.UserID != "" {
		where = append(where, "(owner_user_id = ? OR owner_user_id IS NULL)")
		args = append(args, f.UserID)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, string(f.Source))
	}
	if f.Tier != "" {
		where = append(where, "tier = ?")
		args = append(args, string(f.Tier))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 200
	}

	query := `SELECT id, owner_user_id, category, content, summary, tier, confidence, access_count,
	                 last_accessed, created_at, updated_at, source, embedding
	          FROM memories`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY
		CASE tier WHEN 'core' THEN 0 WHEN 'long_term' THEN 1 ELSE 2 END,
		confidence DESC, created_at DESC LIMIT %d`, limit)

	rows, err := s.storage.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("memory: list: %w", err)
	}
	defer rows.Close()

	return scanMemoryRows(rows)
}

// GetByTier returns every memory a user owns (or global) in the given tier.
func (s *Store) GetByTier(ctx context.Context, userID string, tier Tier) ([]Memory, error) {
	return s.List(ctx, ListFilters{UserID: userID, Tier: tier, Limit: 10000})
}

// CountTier returns the number of memories a user owns in the given tier.
func (s *Store) CountTier(ctx context.Context, userID string, tier Tier) (int, error) {
	row := s.storage.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM memories WHERE tier = ? AND (owner_user_id = ? OR owner_user_id IS NULL)",
		string(tier), userID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("memory: count tier: %w", err)
	}
	return n, nil
}

// Search performs semantic search over a user's memories, applying the
// decay rule to rank results before truncating to k.
func (s *Store) Search(ctx context.Context, query, userID string, k int) ([]Scored, error) {
	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("memory: embed query: %w", err)
	}

	all, err := s.List(ctx, ListFilters{UserID: userID, Limit: 10000})
	if err != nil {
		return nil, err
	}

	scored := make([]Scored, 0, len(all))
	for _, m := range all {
		raw := cosineSimilarity(qvec, m.Embedding)
		if raw == 0 && len(m.Embedding) == 0 {
			continue
		}
		d := decay(raw, m.Tier, m.LastAccessed, m.Confidence, s.cfg.EpisodicHalfLifeDays, s.cfg.LongTermHalfLifeDays)
		scored = append(scored, Scored{Memory: m, Score: d, RawScore: raw})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > 0 && k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

// RecordAccess updates last_accessed and increments access_count for every
// id in a single batch. The batch is applied inside one transaction, so it
// is all-or-nothing per §5's ordering guarantee.
func (s *Store) RecordAccess(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.storage.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("memory: record access begin tx: %w", err)
	}
	now := nowUTC()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			"UPDATE memories SET last_accessed = ?, access_count = access_count + 1 WHERE id = ?",
			now, id); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("memory: record access %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *Store) authorizedGet(ctx context.Context, id, userID string) (*Memory, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	if userID != "" && m.OwnerUserID != "" && m.OwnerUserID != userID {
		return nil, nil
	}
	return m, nil
}

func scanMemoryRows(rows *sql.Rows) ([]Memory, error) {
	var out []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
