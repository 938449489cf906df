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

package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ashestoaltar/tamor-core/pkg/config"
)

// pineconeStore wraps a single Pinecone index, named by cfg.IndexHost.
// Pinecone indexes are provisioned out of band (console or admin API); this
// store assumes the index already exists.
type pineconeStore struct {
	client    *pinecone.Client
	indexHost string
}

func newPineconeStore(cfg *config.VectorStoreConfig) (*pineconeStore, error) {
	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: create pinecone client: %w", err)
	}
	return &pineconeStore{client: client, indexHost: cfg.IndexHost}, nil
}

func (s *pineconeStore) conn(ctx context.Context, namespace string) (*pinecone.IndexConnection, error) {
	return s.client.Index(pinecone.NewIndexConnParams{Host: s.indexHost, Namespace: namespace})
}

func (s *pineconeStore) Add(ctx context.Context, collection, id string, vector []float32, payload map[string]any) error {
	conn, err := s.conn(ctx, collection)
	if err != nil {
		return fmt.Errorf("vectorstore: pinecone index connection: %w", err)
	}
	defer conn.Close()

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("vectorstore: encode payload: %w", err)
	}
	meta, err := structpb.NewStruct(map[string]any{payloadKey: string(encoded)})
	if err != nil {
		return fmt.Errorf("vectorstore: convert payload: %w", err)
	}

	_, err = conn.UpsertVectors(ctx, []*pinecone.Vector{{
		Id:       id,
		Values:   vector,
		Metadata: meta,
	}})
	if err != nil {
		return fmt.Errorf("vectorstore: pinecone upsert: %w", err)
	}
	return nil
}

func (s *pineconeStore) TopK(ctx context.Context, collection string, query []float32, k int, filter map[string]any) ([]ScoredItem, error) {
	conn, err := s.conn(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: pinecone index connection: %w", err)
	}
	defer conn.Close()

	resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          query,
		TopK:            uint32(k),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: pinecone query: %w", err)
	}

	items := make([]ScoredItem, 0, len(resp.Matches))
	for _, match := range resp.Matches {
		if match.Vector == nil {
			continue
		}
		payload := map[string]any{}
		if match.Vector.Metadata != nil {
			if raw, ok := match.Vector.Metadata.AsMap()[payloadKey]; ok {
				if s, ok := raw.(string); ok {
					_ = json.Unmarshal([]byte(s), &payload)
				}
			}
		}
		if !matchesFilter(payload, filter) {
			continue
		}
		items = append(items, ScoredItem{ID: match.Vector.Id, Score: float64(match.Score), Payload: payload})
	}
	return items, nil
}

func (s *pineconeStore) Close() error {
	return nil
}

var _ Store = (*pineconeStore)(nil)
