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

// Package turn holds the transient, per-turn types shared by the router,
// agents, and epistemic pipeline. Nothing here is persisted; a RequestContext
// and its agent outputs live only for the duration of one handle_turn call.
package turn

import "time"

// Message is a single role-tagged entry in the conversation history.
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// RequestContext is created by the caller and consumed by the router.
// It accumulates retrieval and agent state as the turn progresses but is
// never persisted beyond the turn.
type RequestContext struct {
	UserMessage      string
	ConversationID   string
	ProjectID        string
	UserID           string
	History          []Message // ordered, newest last
	Memories         []MemoryRef
	RetrievedChunks  []Chunk
	ScriptureContext string
	LibraryContext   string
	ProjectContext   string
	PriorOutputs     []AgentOutput
	Mode             string // default "Auto"

	// HermeneuticProfile names the textual-study profile this
	// conversation/project declared, if any. The overlay never activates
	// without one.
	HermeneuticProfile string
	// SystemPromptAdd is filled by the router before agent execution
	// (hermeneutic frame challenges, profile directives). Agents append it
	// to their own system prompts.
	SystemPromptAdd string
}

// HasProjectContext reports whether this turn is scoped to a project.
func (c *RequestContext) HasProjectContext() bool {
	return c.ProjectID != ""
}

// MemoryRef is the subset of a stored memory the router injects into a turn.
// It mirrors memory.Memory's user-facing fields without importing pkg/memory;
// the router copies each memory.Scored it injects into this shape.
type MemoryRef struct {
	ID       string
	Category string
	Content  string
	Tier     string
	Score    float64
}

// Chunk is a retrieval result, opaque to the router beyond these fields.
type Chunk struct {
	FileID     string
	FileName   string
	ChunkIndex int
	Page       *int
	Content    string
	Score      float64
	Source     string // "project" | "library"
}

// ContentKind discriminates AgentOutput.Content's tagged-union payload.
type ContentKind string

const (
	ContentText          ContentKind = "text"
	ContentResearchNotes ContentKind = "research_notes"
	ContentProjectPlan   ContentKind = "project_plan"
	ContentCodeArtifacts ContentKind = "code_artifacts"
)

// AgentOutput is what every agent's Run returns.
type AgentOutput struct {
	AgentName    string
	Kind         ContentKind
	Content      any // string, *ResearchNotes, *ProjectPlan, or *CodeArtifacts
	Final        bool
	Citations    []Citation
	TokensUsed   int
	ProcessingMS int64
	Err          error
	ProviderUsed string
	ModelUsed    string
}

// AsText returns Content as a string when Kind is ContentText.
func (o AgentOutput) AsText() (string, bool) {
	s, ok := o.Content.(string)
	return s, ok && o.Kind == ContentText
}

// AsResearchNotes returns Content as *ResearchNotes when Kind matches.
func (o AgentOutput) AsResearchNotes() (*ResearchNotes, bool) {
	n, ok := o.Content.(*ResearchNotes)
	return n, ok && o.Kind == ContentResearchNotes
}

// AsProjectPlan returns Content as *ProjectPlan when Kind matches.
func (o AgentOutput) AsProjectPlan() (*ProjectPlan, bool) {
	p, ok := o.Content.(*ProjectPlan)
	return p, ok && o.Kind == ContentProjectPlan
}

// AsCodeArtifacts returns Content as *CodeArtifacts when Kind matches.
func (o AgentOutput) AsCodeArtifacts() (*CodeArtifacts, bool) {
	a, ok := o.Content.(*CodeArtifacts)
	return a, ok && o.Kind == ContentCodeArtifacts
}

// Citation points at a source snippet backing a claim.
type Citation struct {
	FileID     string
	FileName   string
	ChunkIndex int
	Page       *int
	Snippet    string // <= 200 chars
	Relevance  *float64
}

// ResearchNotes is the Researcher agent's structured output.
type ResearchNotes struct {
	Summary              string
	KeyFindings          []Finding
	Themes               []string
	Contradictions       []Contradiction
	Gaps                 []string
	OpenQuestions        []string
	RecommendedStructure string
}

// Finding is one entry in ResearchNotes.KeyFindings.
type Finding struct {
	Finding    string
	Source     string
	Confidence float64
}

// Contradiction is one entry in ResearchNotes.Contradictions.
type Contradiction struct {
	Issue   string
	Sources []string
}

// ProjectPlan is the Planner agent's structured output.
type ProjectPlan struct {
	ClarifyingQuestions []string // non-empty iff the request was ambiguous
	Tasks               []PlanTask
}

// PlanTask is one task entry in a ProjectPlan.
type PlanTask struct {
	TaskType       string // research | draft | review | revise
	Description    string
	Agent          string // researcher | writer | none
	DependsOn      []int
	EstimatedScope string
}

// CodeArtifacts is the Engineer agent's structured output.
type CodeArtifacts struct {
	Artifacts []CodeArtifact
}

// CodeArtifact is one fenced code block extracted from an Engineer response.
type CodeArtifact struct {
	Type     string // "code" | "patch" | ...
	Language string
	Content  string
	FilePath string
}

// Now is overridable in tests; production code always uses time.Now.
var Now = time.Now
