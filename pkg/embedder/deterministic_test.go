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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// referenceStrings pin the determinism contract: the same input must
// produce byte-identical vectors on any worker, any run.
var referenceStrings = []string{
	"",
	"covenant",
	"The quick brown fox jumps over the lazy dog.",
	"What does Romans 8 say about the law?",
	"I prefer three-paragraph responses.",
}

func TestDeterministicEmbedder_ByteIdenticalAcrossInstances(t *testing.T) {
	ctx := context.Background()
	a := NewDeterministicEmbedder(256)
	b := NewDeterministicEmbedder(256)

	for _, s := range referenceStrings {
		va, err := a.Embed(ctx, s)
		require.NoError(t, err)
		vb, err := b.Embed(ctx, s)
		require.NoError(t, err)
		require.Equal(t, va, vb, "input %q must embed identically on any instance", s)

		again, err := a.Embed(ctx, s)
		require.NoError(t, err)
		require.Equal(t, va, again, "repeat embedding of %q must be identical", s)
	}
}

func TestDeterministicEmbedder_FixedWidth(t *testing.T) {
	ctx := context.Background()
	e := NewDeterministicEmbedder(64)

	for _, s := range referenceStrings {
		v, err := e.Embed(ctx, s)
		require.NoError(t, err)
		assert.Len(t, v, 64)
	}
	assert.Equal(t, 64, e.Dimension())
}

func TestDeterministicEmbedder_L2Normalized(t *testing.T) {
	ctx := context.Background()
	e := NewDeterministicEmbedder(128)

	v, err := e.Embed(ctx, "a nonempty input with several tokens")
	require.NoError(t, err)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestDeterministicEmbedder_DistinguishesInputs(t *testing.T) {
	ctx := context.Background()
	e := NewDeterministicEmbedder(256)

	v1, err := e.Embed(ctx, "tea ceremonies in japan")
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "manuscript dating evidence")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)
}

func TestDeterministicEmbedder_BatchMatchesSingle(t *testing.T) {
	ctx := context.Background()
	e := NewDeterministicEmbedder(256)

	batch, err := e.EmbedBatch(ctx, referenceStrings)
	require.NoError(t, err)
	require.Len(t, batch, len(referenceStrings))

	for i, s := range referenceStrings {
		single, err := e.Embed(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}
