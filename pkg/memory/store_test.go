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
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashestoaltar/tamor-core/pkg/config"
	"github.com/ashestoaltar/tamor-core/pkg/embedder"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.MemoryConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		CoreCap: 2,
	}
	s, err := Open(cfg, embedder.NewDeterministicEmbedder(32))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_AddGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Add(ctx, "the user's favorite language is Go", CategoryPreference, "u1", SourceManual, TierLongTerm, 0.8)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	m, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Equal(t, "the user's favorite language is Go", m.Content)
	require.Equal(t, TierLongTerm, m.Tier)
	require.NotEmpty(t, m.Embedding)
}

func TestStore_Add_CoreCapDemotesToLongTerm(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Add(ctx, "core fact 1", CategoryIdentity, "u1", SourceManual, TierCore, 1.0)
	require.NoError(t, err)
	_, err = s.Add(ctx, "core fact 2", CategoryIdentity, "u1", SourceManual, TierCore, 1.0)
	require.NoError(t, err)

	thirdID, err := s.Add(ctx, "core fact 3", CategoryIdentity, "u1", SourceManual, TierCore, 1.0)
	require.NoError(t, err)

	third, err := s.Get(ctx, thirdID)
	require.NoError(t, err)
	require.Equal(t, TierLongTerm, third.Tier, "third core memory should be demoted once the cap is full")
}

func TestStore_Update_ReembedsOnlyOnContentChange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Add(ctx, "likes tea", CategoryPreference, "u1", SourceManual, TierLongTerm, 0.5)
	require.NoError(t, err)
	before, err := s.Get(ctx, id)
	require.NoError(t, err)

	newConfidence := 0.9
	ok, err := s.Update(ctx, id, UpdateFields{Confidence: &newConfidence}, "u1")
	require.NoError(t, err)
	require.True(t, ok)

	after, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, before.Embedding, after.Embedding, "embedding must be unchanged when content is untouched")
	require.Equal(t, 0.9, after.Confidence)
}

func TestStore_Update_SameContentPreservesEmbeddingByteForByte(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Add(ctx, "likes tea", CategoryPreference, "u1", SourceManual, TierLongTerm, 0.5)
	require.NoError(t, err)
	before, err := s.Get(ctx, id)
	require.NoError(t, err)

	same := "likes tea"
	ok, err := s.Update(ctx, id, UpdateFields{Content: &same}, "u1")
	require.NoError(t, err)
	require.True(t, ok)

	after, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, before.Embedding, after.Embedding)
}

func TestStore_Update_RejectsForeignOwner(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Add(ctx, "likes tea", CategoryPreference, "u1", SourceManual, TierLongTerm, 0.5)
	require.NoError(t, err)

	newConfidence := 0.1
	ok, err := s.Update(ctx, id, UpdateFields{Confidence: &newConfidence}, "someone-else")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_Delete_RemovesLinksToo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Add(ctx, "works on Tamor", CategoryProject, "u1", SourceManual, TierLongTerm, 0.7)
	require.NoError(t, err)
	entityID, err := s.AddEntity(ctx, "Tamor", EntityProject)
	require.NoError(t, err)
	require.NoError(t, s.Link(ctx, id, entityID, "about"))

	ok, err := s.Delete(ctx, id, "u1")
	require.NoError(t, err)
	require.True(t, ok)

	var count int
	row := s.storage.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memory_entity_links WHERE memory_id = ?", id)
	require.NoError(t, row.Scan(&count))
	require.Zero(t, count)
}

func TestStore_Search_RanksExactMatchHighest(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Add(ctx, "the user enjoys hiking in the mountains", CategoryPreference, "u1", SourceManual, TierLongTerm, 0.8)
	require.NoError(t, err)
	_, err = s.Add(ctx, "the user's favorite color is blue", CategoryPreference, "u1", SourceManual, TierLongTerm, 0.8)
	require.NoError(t, err)

	results, err := s.Search(ctx, "the user enjoys hiking in the mountains", "u1", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "the user enjoys hiking in the mountains", results[0].Content)
}

func TestStore_RecordAccess_IncrementsCount(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Add(ctx, "likes tea", CategoryPreference, "u1", SourceManual, TierLongTerm, 0.5)
	require.NoError(t, err)

	require.NoError(t, s.RecordAccess(ctx, []string{id}))
	m, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 1, m.AccessCount)
}
