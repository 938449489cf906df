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

package intent

import (
	"context"
	"testing"

	"github.com/ashestoaltar/tamor-core/pkg/config"
	"github.com/stretchr/testify/require"
)

func newTestClassifier() *Classifier {
	return New(config.ClassifierConfig{CacheCapacity: 4}, nil)
}

func TestClassify_EmptyMessage(t *testing.T) {
	c := newTestClassifier()
	intents, source, err := c.Classify(context.Background(), "   ")
	require.NoError(t, err)
	require.Empty(t, intents)
	require.Equal(t, SourceNone, source)
}

func TestClassify_MemoryBeatsWrite(t *testing.T) {
	c := newTestClassifier()
	intents, source, err := c.Classify(context.Background(), "Remember that I prefer three-paragraph responses.")
	require.NoError(t, err)
	require.Equal(t, SourceHeuristic, source)
	require.Contains(t, intents, Memory)
}

func TestClassify_PlanBeforeWrite(t *testing.T) {
	c := newTestClassifier()
	intents, source, err := c.Classify(context.Background(),
		"I'd like to write an article connecting the sabbath to the new covenant.")
	require.NoError(t, err)
	require.Equal(t, SourceHeuristic, source)
	require.Contains(t, intents, Plan)
}

func TestClassify_ResearchScholarly(t *testing.T) {
	c := newTestClassifier()
	intents, source, err := c.Classify(context.Background(), "What does Romans 8 say about the Torah?")
	require.NoError(t, err)
	require.Equal(t, SourceHeuristic, source)
	require.Contains(t, intents, Research)
}

func TestClassify_CodeIntent(t *testing.T) {
	c := newTestClassifier()
	intents, source, err := c.Classify(context.Background(), "Can you fix this function for me?")
	require.NoError(t, err)
	require.Equal(t, SourceHeuristic, source)
	require.Contains(t, intents, Code)
}

func TestClassify_NoHeuristicNoGateway(t *testing.T) {
	c := newTestClassifier()
	intents, source, err := c.Classify(context.Background(), "xyz abc 123")
	require.NoError(t, err)
	require.Empty(t, intents)
	require.Equal(t, SourceNone, source)
}

func TestClassify_Deterministic(t *testing.T) {
	c := newTestClassifier()
	msg := "Please explain how justification works."
	first, _, err := c.Classify(context.Background(), msg)
	require.NoError(t, err)
	second, _, err := c.Classify(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestCache_HitMissAccounting(t *testing.T) {
	c := newCache(2)
	_, ok := c.get("hello world")
	require.False(t, ok)

	c.set("hello world", []Intent{Explain})
	_, ok = c.get("hello world")
	require.True(t, ok)

	stats := c.stats()
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
	require.Equal(t, 1, stats.Size)
	require.InDelta(t, 0.5, stats.HitRate(), 0.0001)
}

func TestCache_NormalizesWhitespaceAndCase(t *testing.T) {
	c := newCache(2)
	c.set("  Hello   World  ", []Intent{Explain})
	got, ok := c.get("hello world")
	require.True(t, ok)
	require.Equal(t, []Intent{Explain}, got)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newCache(2)
	c.set("a", []Intent{Code})
	c.set("b", []Intent{Write})
	c.set("c", []Intent{Research})

	_, ok := c.get("a")
	require.False(t, ok, "a should have been evicted")

	_, ok = c.get("b")
	require.True(t, ok)
	_, ok = c.get("c")
	require.True(t, ok)
}
