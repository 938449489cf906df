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

package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashestoaltar/tamor-core/pkg/intent"
	"github.com/ashestoaltar/tamor-core/pkg/turn"
)

func TestCanHandle(t *testing.T) {
	researcher := NewResearcher(nil)
	writer := NewWriter(nil)
	engineer := NewEngineer(nil)
	planner := NewPlanner(nil)
	archivist := NewArchivist(nil, nil, nil, nil)

	assert.True(t, researcher.CanHandle([]intent.Intent{intent.Research}))
	assert.True(t, researcher.CanHandle([]intent.Intent{intent.Summarize}))
	assert.False(t, researcher.CanHandle([]intent.Intent{intent.Memory}))

	assert.True(t, writer.CanHandle([]intent.Intent{intent.Write}))
	assert.True(t, engineer.CanHandle([]intent.Intent{intent.Code}))
	assert.True(t, planner.CanHandle([]intent.Intent{intent.Plan}))
	assert.True(t, archivist.CanHandle([]intent.Intent{intent.Memory}))
	assert.False(t, archivist.CanHandle([]intent.Intent{intent.Write}))
}

func TestFormatRetrievedContext(t *testing.T) {
	page := 12
	chunks := []turn.Chunk{
		{FileName: "notes.md", Content: "first chunk"},
		{FileName: "study.pdf", Page: &page, Content: "second chunk"},
	}

	text := formatRetrievedContext(chunks)

	assert.Contains(t, text, "[1] notes.md")
	assert.Contains(t, text, "[2] study.pdf, p. 12")
	assert.Contains(t, text, "first chunk")
	assert.Empty(t, formatRetrievedContext(nil))
}

func TestCitationsFromChunks_TruncatesSnippets(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	chunks := []turn.Chunk{{FileID: "f1", FileName: "big.txt", ChunkIndex: 4, Content: string(long), Score: 0.7}}

	citations := citationsFromChunks(chunks)

	require.Len(t, citations, 1)
	assert.Len(t, citations[0].Snippet, 200)
	assert.Equal(t, 4, citations[0].ChunkIndex)
	require.NotNil(t, citations[0].Relevance)
	assert.InDelta(t, 0.7, *citations[0].Relevance, 1e-9)
}

func TestStripMarkdownFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripMarkdownFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripMarkdownFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripMarkdownFences(`{"a":1}`))
}

func TestParseResearchNotes(t *testing.T) {
	valid := `{
		"summary": "Two sources agree on the dating.",
		"key_findings": [{"finding": "Early date supported", "source": "[1]", "confidence": 0.8}],
		"themes": ["dating"],
		"contradictions": [{"issue": "One outlier", "sources": ["[2]"]}],
		"gaps": ["no external corroboration"],
		"open_questions": ["provenance of fragment B"],
		"recommended_structure": "chronological"
	}`

	notes := parseResearchNotes(valid)
	require.NotNil(t, notes)
	assert.Equal(t, "Two sources agree on the dating.", notes.Summary)
	require.Len(t, notes.KeyFindings, 1)
	assert.Equal(t, "[1]", notes.KeyFindings[0].Source)
	require.Len(t, notes.Contradictions, 1)
	assert.Equal(t, "chronological", notes.RecommendedStructure)

	fallback := parseResearchNotes("not json at all")
	require.NotNil(t, fallback)
	assert.Contains(t, fallback.Gaps, "Could not parse structured response")
	require.Len(t, fallback.KeyFindings, 1)
}

func TestParsePlanResponse(t *testing.T) {
	valid := `{
		"clarifying_questions": [],
		"tasks": [
			{"task_type": "research", "description": "gather sources", "agent": "researcher", "depends_on": [], "estimated_scope": "small"},
			{"task_type": "draft", "description": "write the piece", "agent": "writer", "depends_on": [0], "estimated_scope": "medium"}
		]
	}`

	plan, ok := parsePlanResponse(valid)
	require.True(t, ok)
	require.Len(t, plan.Tasks, 2)
	assert.Equal(t, []int{0}, plan.Tasks[1].DependsOn)

	questions := `{"clarifying_questions": ["Which audience?"], "tasks": []}`
	plan, ok = parsePlanResponse(questions)
	require.True(t, ok)
	assert.Empty(t, plan.Tasks)
	assert.Equal(t, []string{"Which audience?"}, plan.ClarifyingQuestions)

	_, ok = parsePlanResponse("I think you should start by...")
	assert.False(t, ok)
}

func TestFormatPlanForUser(t *testing.T) {
	questions := &turn.ProjectPlan{ClarifyingQuestions: []string{"Which audience?"}}
	text := FormatPlanForUser(questions, true)
	assert.Contains(t, text, "1. Which audience?")

	tasks := &turn.ProjectPlan{Tasks: []turn.PlanTask{
		{TaskType: "research", Description: "gather sources", Agent: "researcher"},
	}}
	text = FormatPlanForUser(tasks, true)
	assert.Contains(t, text, "[RESEARCH] gather sources -> researcher")

	text = FormatPlanForUser(&turn.ProjectPlan{}, false)
	assert.Contains(t, text, "restate")
}

func TestExtractCodeArtifacts(t *testing.T) {
	response := "Here's the implementation.\n\n" +
		"## File: cmd/main.go\n" +
		"```go\npackage main\n\nfunc main() {}\n```\n\n" +
		"And a helper script:\n" +
		"```bash\necho done\n```\n"

	artifacts := extractCodeArtifacts(response)

	require.Len(t, artifacts.Artifacts, 2)
	assert.Equal(t, "go", artifacts.Artifacts[0].Language)
	assert.Equal(t, "cmd/main.go", artifacts.Artifacts[0].FilePath)
	assert.Equal(t, "package main\n\nfunc main() {}", artifacts.Artifacts[0].Content)
	assert.Equal(t, "bash", artifacts.Artifacts[1].Language)
	assert.Empty(t, artifacts.Artifacts[1].FilePath)
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "go", detectLanguage("pkg/server/main.go"))
	assert.Equal(t, "python", detectLanguage("scripts/etl.py"))
	assert.Empty(t, detectLanguage("README"))
}

func TestDetectOutputType(t *testing.T) {
	assert.Contains(t, detectOutputType("write me an article about tea"), "Article")
	assert.Contains(t, detectOutputType("summarize the findings"), "Summary")
	assert.Contains(t, detectOutputType("give me an outline"), "Outline")
	assert.Contains(t, detectOutputType("tell me things"), "Standard")
}

func TestDetectExplicitMemoryAction(t *testing.T) {
	action, content, ok := detectExplicitMemoryAction("Remember that I prefer dark mode")
	require.True(t, ok)
	assert.Equal(t, "remember", action)
	assert.Equal(t, "I prefer dark mode", content)

	action, _, ok = detectExplicitMemoryAction("Please forget that I mentioned the deadline")
	require.True(t, ok)
	assert.Equal(t, "forget", action)

	_, _, ok = detectExplicitMemoryAction("what is a covenant")
	assert.False(t, ok)
}

func TestClassifyExplicitMemory(t *testing.T) {
	tests := []struct {
		content  string
		tier     string
		category string
	}{
		{"my name is Dana", "core", "identity"},
		{"I value honesty above all", "core", "values"},
		{"my wife teaches high school", "core", "relationship"},
		{"I prefer short answers", "long_term", "preference"},
		{"the deploy runs on Fridays", "long_term", "general"},
	}

	for _, tt := range tests {
		tier, category, confidence := classifyExplicitMemory(tt.content)
		assert.Equal(t, tt.tier, tier, tt.content)
		assert.Equal(t, tt.category, category, tt.content)
		assert.GreaterOrEqual(t, confidence, 0.8)
	}
}

func TestParseArchivistResponse(t *testing.T) {
	valid := `{
		"memories_to_store": [{"content": "Prefers tea over coffee", "category": "preference", "tier": "long_term", "confidence": 0.7}],
		"memories_to_update": [],
		"memories_to_forget": [{"id": "m-1", "reason": "stale"}],
		"consolidations": [],
		"analysis": "one preference, one stale entry"
	}`

	parsed, ok := parseArchivistResponse(valid)
	require.True(t, ok)
	require.Len(t, parsed.MemoriesToStore, 1)
	assert.Equal(t, "preference", parsed.MemoriesToStore[0].Category)
	require.Len(t, parsed.MemoriesToForget, 1)

	wrapped := "Here is my analysis:\n" + valid + "\nDone."
	parsed, ok = parseArchivistResponse(wrapped)
	require.True(t, ok, "falls back to the outermost JSON object")
	assert.Len(t, parsed.MemoriesToStore, 1)

	_, ok = parseArchivistResponse("nothing structured here")
	assert.False(t, ok)
}

func TestWriterResearchInput_PrefersPriorResearcherOutput(t *testing.T) {
	notes := &turn.ResearchNotes{Summary: "prior analysis"}
	reqCtx := &turn.RequestContext{
		PriorOutputs: []turn.AgentOutput{{
			AgentName: "researcher",
			Kind:      turn.ContentResearchNotes,
			Content:   notes,
			Citations: []turn.Citation{{FileName: "a.pdf"}},
		}},
		RetrievedChunks: []turn.Chunk{{FileName: "raw.md", Content: "raw chunk"}},
	}

	got, citations := writerResearchInput(reqCtx)
	assert.Same(t, notes, got)
	require.Len(t, citations, 1)
	assert.Equal(t, "a.pdf", citations[0].FileName)
}

func TestWriterResearchInput_FallsBackToChunks(t *testing.T) {
	reqCtx := &turn.RequestContext{
		RetrievedChunks: []turn.Chunk{{FileName: "raw.md", Content: "raw chunk text"}},
	}

	notes, citations := writerResearchInput(reqCtx)
	require.NotNil(t, notes)
	require.Len(t, notes.KeyFindings, 1)
	assert.Len(t, citations, 1)

	empty, _ := writerResearchInput(&turn.RequestContext{})
	assert.Nil(t, empty)
}
