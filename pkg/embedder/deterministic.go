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

package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DeterministicEmbedder produces a fixed-dimension embedding via the
// feature-hashing trick: each token is hashed into a bucket and its sign
// (derived from a second hash) determines whether it adds or subtracts
// from that bucket, after which the vector is L2-normalized. It requires
// no network access and no model weights, and is byte-identical across
// runs for the same input — useful for local development, tests, and
// offline operation when no embedding API is configured.
type DeterministicEmbedder struct {
	dim int
}

// NewDeterministicEmbedder returns an embedder producing vectors of the
// given dimension.
func NewDeterministicEmbedder(dim int) *DeterministicEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return &DeterministicEmbedder{dim: dim}
}

func (e *DeterministicEmbedder) Dimension() int { return e.dim }
func (e *DeterministicEmbedder) Model() string  { return "deterministic-hashing-v1" }
func (e *DeterministicEmbedder) Close() error   { return nil }

func (e *DeterministicEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.vectorize(text), nil
}

func (e *DeterministicEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vectorize(t)
	}
	return out, nil
}

func (e *DeterministicEmbedder) vectorize(text string) []float32 {
	vec := make([]float64, e.dim)

	for _, token := range tokenize(text) {
		bucket := hashBucket(token, e.dim)
		sign := hashSign(token)
		vec[bucket] += sign
	}

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, e.dim)
	if norm == 0 {
		return out
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func hashBucket(token string, dim int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return int(h.Sum32() % uint32(dim))
}

func hashSign(token string) float64 {
	h := fnv.New32()
	_, _ = h.Write([]byte("sign:" + token))
	if h.Sum32()%2 == 0 {
		return 1.0
	}
	return -1.0
}
