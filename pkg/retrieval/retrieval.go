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

// Package retrieval runs the project/library fan-out the router triggers
// before a broad agent pipeline, built on pkg/vectorstore and pkg/embedder.
// File-diversification and dedup are pure functions over []turn.Chunk, kept
// free of I/O so they're unit-testable without a backing vector store.
package retrieval

import (
	"context"
	"fmt"

	"github.com/ashestoaltar/tamor-core/pkg/config"
	"github.com/ashestoaltar/tamor-core/pkg/embedder"
	"github.com/ashestoaltar/tamor-core/pkg/turn"
	"github.com/ashestoaltar/tamor-core/pkg/vectorstore"
)

const (
	minProjectK          = 50
	perFileK             = 10
	narrowProjectK       = 10
	libraryK             = 10
	libraryMinSimilarity = 0.3
	perFileCap           = 5
	diversifiedCap       = 25
	finalCap             = 30
)

// Coordinator runs §4.4's merged project+library retrieval.
type Coordinator struct {
	store    vectorstore.Store
	embedder embedder.Embedder
	cfg      config.RetrievalConfig
}

// New builds a Coordinator over the given vector store and embedder.
func New(store vectorstore.Store, emb embedder.Embedder, cfg config.RetrievalConfig) *Coordinator {
	cfg.SetDefaults()
	return &Coordinator{store: store, embedder: emb, cfg: cfg}
}

// Retrieve returns the merged, deduplicated, capped chunk list for one turn.
// projectID empty means no project context. broad must be true exactly when
// the turn's primary intent is research, write, summarize, or explain.
// fileCount is the number of files in the project's collection, used by the
// K formula; it is ignored when projectID is empty or broad is false.
func (c *Coordinator) Retrieve(ctx context.Context, query, projectID string, fileCount int, broad bool) ([]turn.Chunk, error) {
	qvec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}

	var project []turn.Chunk
	if projectID != "" {
		k := narrowProjectK
		if broad {
			k = minProjectK
			if fileCount*perFileK > k {
				k = fileCount * perFileK
			}
		}
		project, err = c.searchCollection(ctx, c.projectCollection(projectID), qvec, k, 0, "project")
		if err != nil {
			return nil, err
		}
		if broad {
			project = diversifyByFile(project, perFileCap, diversifiedCap)
		}
	}

	var library []turn.Chunk
	if broad {
		library, err = c.searchCollection(ctx, c.cfg.LibraryCollection, qvec, libraryK, libraryMinSimilarity, "library")
		if err != nil {
			return nil, err
		}
	}

	merged := append(append([]turn.Chunk{}, project...), library...)
	merged = dedupeByPrefix(merged, 200)
	if len(merged) > finalCap {
		merged = merged[:finalCap]
	}
	return merged, nil
}

func (c *Coordinator) projectCollection(projectID string) string {
	return fmt.Sprintf("%s:%s", c.cfg.ProjectCollection, projectID)
}

func (c *Coordinator) searchCollection(ctx context.Context, collection string, qvec []float32, k int, minSimilarity float64, source string) ([]turn.Chunk, error) {
	results, err := c.store.TopK(ctx, collection, qvec, k, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieval: search %s: %w", collection, err)
	}

	chunks := make([]turn.Chunk, 0, len(results))
	for _, r := range results {
		if r.Score < minSimilarity {
			continue
		}
		chunks = append(chunks, chunkFromPayload(r, source))
	}
	return chunks, nil
}

func chunkFromPayload(item vectorstore.ScoredItem, source string) turn.Chunk {
	chunk := turn.Chunk{
		Score:  item.Score,
		Source: source,
	}
	if v, ok := item.Payload["file_id"].(string); ok {
		chunk.FileID = v
	}
	if v, ok := item.Payload["file_name"].(string); ok {
		chunk.FileName = v
	}
	if v, ok := item.Payload["chunk_index"].(float64); ok {
		chunk.ChunkIndex = int(v)
	}
	if v, ok := item.Payload["chunk_index"].(int); ok {
		chunk.ChunkIndex = v
	}
	if v, ok := item.Payload["content"].(string); ok {
		chunk.Content = v
	}
	if v, ok := item.Payload["page"].(float64); ok {
		page := int(v)
		chunk.Page = &page
	}
	if v, ok := item.Payload["page"].(int); ok {
		page := v
		chunk.Page = &page
	}
	return chunk
}
