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

package epistemic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashestoaltar/tamor-core/pkg/turn"
)

func TestIsRelevant(t *testing.T) {
	tests := []struct {
		name    string
		claim   string
		content string
		want    bool
	}{
		{
			name:    "two content words overlap",
			claim:   "the manuscript dating evidence",
			content: "Recent papyri work revised the dating of several manuscript families.",
			want:    true,
		},
		{
			name:    "short claim needs only one overlap",
			claim:   "manuscript families",
			content: "several manuscript traditions",
			want:    true,
		},
		{
			name:    "stop words alone never match",
			claim:   "this is the one that was",
			content: "this is the one that was",
			want:    false,
		},
		{
			name:    "no overlap",
			claim:   "carbon dating results",
			content: "the weather in Jerusalem",
			want:    false,
		},
		{
			name:    "empty content",
			claim:   "anything",
			content: "",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRelevant(tt.claim, tt.content))
		})
	}
}

func TestFindAnchors_SessionContextFirst(t *testing.T) {
	a := NewAnchorService(testRules())
	a.SetSessionContext([]turn.Chunk{
		{FileID: "f1", FileName: "survey.pdf", Content: "the manuscript dating evidence from recent papyri", Score: 0.8},
		{FileID: "f2", FileName: "weather.md", Content: "rainfall patterns in the region", Score: 0.9},
	})

	result := a.FindAnchors("manuscript dating evidence", false, 3)

	require.True(t, result.Found)
	require.Len(t, result.Anchors, 1)
	assert.Equal(t, "survey.pdf", result.Anchors[0].SourceName)
	assert.Equal(t, "session_context", result.Anchors[0].Source)
	assert.Contains(t, result.SourcesChecked, "session_context")
}

type stubSearcher struct{ anchors []Anchor }

func (s *stubSearcher) Search(claim string, maxResults int) []Anchor { return s.anchors }

func TestFindAnchors_ExternalSourceAndRanking(t *testing.T) {
	a := NewAnchorService(testRules())
	a.RegisterSource("library_cache", &stubSearcher{anchors: []Anchor{
		{Source: "library_cache", SourceName: "low.pdf", Relevance: 0.2},
		{Source: "library_cache", SourceName: "high.pdf", Relevance: 0.95},
	}})

	result := a.FindAnchors("completely unrelated claim text", false, 3)

	require.True(t, result.Found)
	require.Len(t, result.Anchors, 2)
	assert.Equal(t, "high.pdf", result.Anchors[0].SourceName, "anchors are returned by descending relevance")
}

func TestFindAnchors_CapsAtMax(t *testing.T) {
	a := NewAnchorService(testRules())
	var many []Anchor
	for i := 0; i < 6; i++ {
		many = append(many, Anchor{Source: "library_cache", SourceName: "doc.pdf", Relevance: 0.5})
	}
	a.RegisterSource("library_cache", &stubSearcher{anchors: many})

	result := a.FindAnchors("anything here", false, 3)

	assert.Len(t, result.Anchors, 3)
}

func TestFindAnchors_NothingFound(t *testing.T) {
	a := NewAnchorService(testRules())

	result := a.FindAnchors("a claim with no evidence anywhere", false, 3)

	assert.False(t, result.Found)
	assert.Empty(t, result.Anchors)
}
