// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/ashestoaltar/tamor-core/pkg/config"
)

// payloadKey is the chromem metadata field under which the caller's
// arbitrary payload is JSON-encoded. chromem metadata values are
// map[string]string; encoding preserves the payload's original types
// across a round trip instead of flattening everything to strings.
const payloadKey = "_payload"

// chromemStore is the embedded, zero-network default backend. Good for the
// CLI harness and local/dev use; not distributed, all vectors in RAM with
// optional gzip-compressed file persistence.
type chromemStore struct {
	db   *chromem.DB
	path string

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

func newChromemStore(cfg *config.VectorStoreConfig) (*chromemStore, error) {
	var db *chromem.DB
	if cfg.Path != "" {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("vectorstore: create chromem persist dir: %w", err)
		}
		dbPath := cfg.Path + "/vectors.gob.gz"
		if _, err := os.Stat(dbPath); err == nil {
			loaded, loadErr := chromem.NewPersistentDB(dbPath, true)
			if loadErr != nil {
				slog.Warn("vectorstore: failed to load persisted chromem db, starting fresh", "path", dbPath, "error", loadErr)
				db = chromem.NewDB()
			} else {
				db = loaded
			}
		} else {
			db = chromem.NewDB()
		}
	} else {
		db = chromem.NewDB()
	}

	return &chromemStore{
		db:          db,
		path:        cfg.Path,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// identityEmbed never runs: every vector this store sees is already
// computed by pkg/embedder before Add/TopK is called.
func identityEmbed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("vectorstore: chromem embedding func invoked, vectors must be pre-computed")
}

func (s *chromemStore) collection(name string) (*chromem.Collection, error) {
	s.mu.RLock()
	if c, ok := s.collections[name]; ok {
		s.mu.RUnlock()
		return c, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		return c, nil
	}
	c, err := s.db.GetOrCreateCollection(name, nil, identityEmbed)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: get/create collection %q: %w", name, err)
	}
	s.collections[name] = c
	return c, nil
}

func (s *chromemStore) Add(ctx context.Context, collection, id string, vector []float32, payload map[string]any) error {
	col, err := s.collection(collection)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("vectorstore: encode payload: %w", err)
	}

	doc := chromem.Document{
		ID:        id,
		Metadata:  map[string]string{payloadKey: string(encoded)},
		Embedding: vector,
	}
	if err := col.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("vectorstore: chromem add: %w", err)
	}
	return s.persist()
}

func (s *chromemStore) TopK(ctx context.Context, collection string, query []float32, k int, filter map[string]any) ([]ScoredItem, error) {
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	// chromem rejects a result count above the collection's size (or <= 0).
	if n := col.Count(); k > n {
		k = n
	}
	if k <= 0 {
		return []ScoredItem{}, nil
	}

	results, err := col.QueryEmbedding(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: chromem query: %w", err)
	}

	items := make([]ScoredItem, 0, len(results))
	for _, r := range results {
		payload := map[string]any{}
		if raw, ok := r.Metadata[payloadKey]; ok {
			_ = json.Unmarshal([]byte(raw), &payload)
		}
		if !matchesFilter(payload, filter) {
			continue
		}
		items = append(items, ScoredItem{
			ID:      r.ID,
			Score:   float64(r.Similarity),
			Payload: payload,
		})
	}
	return items, nil
}

func (s *chromemStore) Close() error {
	return s.persist()
}

func (s *chromemStore) persist() error {
	if s.path == "" {
		return nil
	}
	//nolint:staticcheck // Export is deprecated upstream but ExportToFile is not in v0.7.0
	if err := s.db.Export(s.path+"/vectors.gob.gz", true, ""); err != nil {
		return fmt.Errorf("vectorstore: persist chromem db: %w", err)
	}
	return nil
}

// matchesFilter applies exact-match filtering in Go, since chromem's
// server-side where-clause operates on its own string-typed metadata map
// rather than the caller's arbitrary payload.
func matchesFilter(payload map[string]any, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := payload[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

var _ Store = (*chromemStore)(nil)
