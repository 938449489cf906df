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

// Package vectorstore exposes the two vector operations this core calls,
// Add and TopK, over three interchangeable backends: chromem as the
// embedded dev default, qdrant and pinecone for production deployments.
// New selects the backend named by the configuration's Backend field.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/ashestoaltar/tamor-core/pkg/config"
)

// ScoredItem is one TopK result: a stored vector's id, payload, and cosine
// similarity against the query vector.
type ScoredItem struct {
	ID       string
	Score    float64
	Payload  map[string]any
}

// Store is the narrow interface every backend satisfies. A single backend
// instance may hold many named collections (project chunks, library
// chunks, memory embeddings).
type Store interface {
	// Add inserts or overwrites the vector and payload stored under id in
	// collection.
	Add(ctx context.Context, collection, id string, vector []float32, payload map[string]any) error

	// TopK returns up to k items from collection ranked by cosine
	// similarity to query, optionally restricted by filter (exact-match
	// payload fields). Backends that do not support server-side filtering
	// apply it after retrieval.
	TopK(ctx context.Context, collection string, query []float32, k int, filter map[string]any) ([]ScoredItem, error)

	// Close releases backend resources (persists to disk, closes network
	// clients).
	Close() error
}

// New builds the Store selected by cfg.Backend.
func New(cfg *config.VectorStoreConfig) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("vectorstore: nil config")
	}
	switch cfg.Backend {
	case config.VectorBackendChromem:
		return newChromemStore(cfg)
	case config.VectorBackendQdrant:
		return newQdrantStore(cfg)
	case config.VectorBackendPinecone:
		return newPineconeStore(cfg)
	default:
		return nil, fmt.Errorf("vectorstore: unsupported backend %q", cfg.Backend)
	}
}
