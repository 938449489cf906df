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
	"net"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/ashestoaltar/tamor-core/pkg/config"
)

type qdrantStore struct {
	client *qdrant.Client
	dim    int
}

func newQdrantStore(cfg *config.VectorStoreConfig) (*qdrantStore, error) {
	host, port := cfg.Host, 6334
	if h, p, err := net.SplitHostPort(cfg.Host); err == nil {
		host = h
		if n, convErr := strconv.Atoi(p); convErr == nil {
			port = n
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: create qdrant client for %s:%d: %w", host, port, err)
	}
	return &qdrantStore{client: client, dim: cfg.Dimension}, nil
}

func (s *qdrantStore) ensureCollection(ctx context.Context, collection string, dim int) error {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("vectorstore: check qdrant collection: %w", err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("vectorstore: create qdrant collection: %w", err)
	}
	return nil
}

func (s *qdrantStore) Add(ctx context.Context, collection, id string, vector []float32, payload map[string]any) error {
	if err := s.ensureCollection(ctx, collection, len(vector)); err != nil {
		return err
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("vectorstore: encode payload: %w", err)
	}
	val, err := qdrant.NewValue(string(encoded))
	if err != nil {
		return fmt.Errorf("vectorstore: convert payload: %w", err)
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(id),
		Vectors: qdrant.NewVectors(vector...),
		Payload: map[string]*qdrant.Value{payloadKey: val},
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("vectorstore: qdrant upsert: %w", err)
	}
	return nil
}

func (s *qdrantStore) TopK(ctx context.Context, collection string, query []float32, k int, filter map[string]any) ([]ScoredItem, error) {
	pointsClient := s.client.GetPointsClient()
	result, err := pointsClient.Search(ctx, &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         query,
		Limit:          uint64(k),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: qdrant search: %w", err)
	}

	items := make([]ScoredItem, 0, len(result.Result))
	for _, point := range result.Result {
		payload := map[string]any{}
		if v, ok := point.Payload[payloadKey]; ok {
			_ = json.Unmarshal([]byte(v.GetStringValue()), &payload)
		}
		if !matchesFilter(payload, filter) {
			continue
		}
		var id string
		if point.Id != nil {
			switch opt := point.Id.PointIdOptions.(type) {
			case *qdrant.PointId_Uuid:
				id = opt.Uuid
			case *qdrant.PointId_Num:
				id = fmt.Sprintf("%d", opt.Num)
			}
		}
		items = append(items, ScoredItem{ID: id, Score: float64(point.Score), Payload: payload})
	}
	return items, nil
}

func (s *qdrantStore) Close() error {
	return s.client.Close()
}

var _ Store = (*qdrantStore)(nil)
