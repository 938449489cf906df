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

package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashestoaltar/tamor-core/pkg/agents"
	"github.com/ashestoaltar/tamor-core/pkg/turn"
)

func intPtr(n int) *int { return &n }

func TestCompose_FinalTextAppendsGroupedSources(t *testing.T) {
	outputs := []turn.AgentOutput{
		{
			AgentName: "researcher",
			Kind:      turn.ContentResearchNotes,
			Content:   &turn.ResearchNotes{Summary: "notes"},
			Citations: []turn.Citation{
				{FileID: "f1", FileName: "history.pdf", ChunkIndex: 0, Page: intPtr(7), Snippet: "a"},
				{FileID: "f1", FileName: "history.pdf", ChunkIndex: 3, Page: intPtr(3), Snippet: "b"},
				{FileID: "f2", FileName: "letters.md", ChunkIndex: 1, Snippet: "c"},
			},
		},
		{
			AgentName: "writer",
			Kind:      turn.ContentText,
			Content:   "The essay body.",
			Final:     true,
			Citations: []turn.Citation{
				// Duplicate of a researcher citation; must not repeat.
				{FileID: "f1", FileName: "history.pdf", ChunkIndex: 0, Page: intPtr(7), Snippet: "a"},
			},
		},
	}

	text, citations := compose(&turn.RequestContext{}, outputs)

	require.Len(t, citations, 3)
	assert.Contains(t, text, "The essay body.")
	assert.Contains(t, text, "**Sources**")
	assert.Contains(t, text, "1. history.pdf (pp. 3, 7)")
	assert.Contains(t, text, "2. letters.md")
}

func TestCompose_ResearcherOnlyFormatsNotes(t *testing.T) {
	outputs := []turn.AgentOutput{{
		AgentName: "researcher",
		Kind:      turn.ContentResearchNotes,
		Content: &turn.ResearchNotes{
			Summary: "Romans 8 frames the law through the Spirit.",
			KeyFindings: []turn.Finding{
				{Finding: "The law is fulfilled, not abolished", Source: "[1]", Confidence: 0.8},
			},
			Themes: []string{"law and spirit"},
			Gaps:   []string{"no rabbinic sources retrieved"},
		},
		Citations: []turn.Citation{{FileName: "romans-commentary.pdf", ChunkIndex: 2, Snippet: "s"}},
	}}

	text, citations := compose(&turn.RequestContext{}, outputs)

	require.Len(t, citations, 1)
	assert.Contains(t, text, "## Summary")
	assert.Contains(t, text, "## Key Findings")
	assert.Contains(t, text, "## Themes")
	assert.Contains(t, text, "## Gaps")
	assert.Contains(t, text, "**Sources**")
}

func TestCompose_ArchivistAcks(t *testing.T) {
	tests := []struct {
		name   string
		result *agents.ArchivistResult
		want   string
	}{
		{"stored", &agents.ArchivistResult{Action: "stored"}, "Got it - I'll remember that."},
		{"forgot one", &agents.ArchivistResult{Action: "forgotten", Count: 1}, "Done - I've forgotten that."},
		{"forgot none", &agents.ArchivistResult{Action: "forgotten", Count: 0}, "I couldn't find a matching memory to forget."},
		{"analyzed quiet", &agents.ArchivistResult{Action: "analyzed"}, "Nothing new to remember from that."},
		{"analyzed with changes", &agents.ArchivistResult{Action: "analyzed", StoredCount: 2}, "Noted - I've updated what I remember."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outputs := []turn.AgentOutput{{AgentName: "archivist", Content: tt.result}}
			text, citations := compose(&turn.RequestContext{}, outputs)
			assert.Equal(t, tt.want, text)
			assert.Empty(t, citations)
		})
	}
}

func TestCompose_PlannerClarifyingQuestions(t *testing.T) {
	outputs := []turn.AgentOutput{{
		AgentName: "planner",
		Kind:      turn.ContentProjectPlan,
		Content: &turn.ProjectPlan{
			ClarifyingQuestions: []string{"Who is the audience?", "How long should it be?"},
		},
		Final: true,
	}}

	text, _ := compose(&turn.RequestContext{}, outputs)

	assert.Contains(t, text, "1. Who is the audience?")
	assert.Contains(t, text, "2. How long should it be?")
}

func TestCompose_CodeArtifacts(t *testing.T) {
	outputs := []turn.AgentOutput{{
		AgentName: "engineer",
		Kind:      turn.ContentCodeArtifacts,
		Content: &turn.CodeArtifacts{Artifacts: []turn.CodeArtifact{
			{Type: "code", Language: "go", Content: "package main", FilePath: "main.go"},
		}},
		Final: true,
	}}

	text, _ := compose(&turn.RequestContext{}, outputs)

	assert.Contains(t, text, "**main.go**")
	assert.Contains(t, text, "```go\npackage main\n```")
}

func TestFormatPageList(t *testing.T) {
	assert.Equal(t, "p. 4", formatPageList([]int{4}))
	assert.Equal(t, "pp. 2, 5, 9", formatPageList([]int{9, 2, 5, 2}))
}
