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
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ashestoaltar/tamor-core/pkg/config"
	"github.com/ashestoaltar/tamor-core/pkg/intent"
	"github.com/ashestoaltar/tamor-core/pkg/llmgateway"
	"github.com/ashestoaltar/tamor-core/pkg/turn"
)

const researcherSystemPrompt = `You are a Research agent. Your role is to gather, analyze, and organize information from provided sources.

## Your Responsibilities
1. Extract relevant information from the provided sources
2. Identify key facts, claims, and evidence
3. Note contradictions or inconsistencies between sources
4. Flag gaps or missing information
5. Organize findings into structured notes

## Constraints
- ONLY use information from the provided sources
- NEVER invent or hallucinate facts
- NEVER write final prose or articles (that's the Writer's job)
- ALWAYS cite which source each piece of information comes from
- If sources don't contain relevant information, say so explicitly

## Output Format
Respond with a JSON object containing:
{
  "summary": "Brief overview of what the sources contain",
  "key_findings": [{"finding": "...", "source": "[1]", "confidence": 0.8}],
  "themes": ["theme1", "theme2"],
  "contradictions": [{"issue": "...", "sources": ["[1]", "[2]"]}],
  "gaps": ["What's missing or unclear"],
  "open_questions": ["Questions that remain unanswered"],
  "recommended_structure": "Suggested outline for writing"
}

Be thorough but concise. Focus on actionable insights.`

// Researcher gathers and analyzes information from retrieved sources,
// producing structured notes the Writer consumes. It never produces final
// prose.
type Researcher struct {
	gateway *llmgateway.Gateway
}

// NewResearcher builds a Researcher backed by gateway.
func NewResearcher(gateway *llmgateway.Gateway) *Researcher {
	return &Researcher{gateway: gateway}
}

func (r *Researcher) Name() string { return "researcher" }

func (r *Researcher) CanHandle(intents []intent.Intent) bool {
	return hasAny(intents, intent.Research, intent.Summarize, intent.Explain, intent.Write)
}

func (r *Researcher) Run(ctx context.Context, reqCtx *turn.RequestContext) turn.AgentOutput {
	start := turn.Now()

	if len(reqCtx.RetrievedChunks) == 0 && !reqCtx.HasProjectContext() {
		return turn.AgentOutput{
			AgentName: r.Name(),
			Kind:      turn.ContentResearchNotes,
			Content: &turn.ResearchNotes{
				Summary: "No sources available for research.",
				Gaps:    []string{"No project files or retrieved content to analyze"},
			},
			Final:        false,
			Err:          fmt.Errorf("no sources available"),
			ProcessingMS: elapsedMS(start),
		}
	}

	systemPrompt := researcherSystemPrompt
	if mem := formatMemoriesForPrompt(reqCtx.Memories, 5); mem != "" {
		systemPrompt += "\n\n## User Context\n" + mem
	}
	if reqCtx.SystemPromptAdd != "" {
		systemPrompt += "\n\n" + reqCtx.SystemPromptAdd
	}

	sourcesText := formatRetrievedContext(reqCtx.RetrievedChunks)
	if sourcesText == "" {
		sourcesText = "## Sources\nNo sources provided."
	}

	userMessage := fmt.Sprintf("## Research Request\n%s\n\n%s\n\nAnalyze these sources and provide structured research notes in JSON format.",
		reqCtx.UserMessage, sourcesText)

	result, err := r.gateway.Chat(ctx, config.RoleResearcher, []llmgateway.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userMessage},
	})
	if err != nil {
		return turn.AgentOutput{
			AgentName:    r.Name(),
			Kind:         turn.ContentResearchNotes,
			Content:      &turn.ResearchNotes{Summary: "Research failed: " + err.Error()},
			Final:        false,
			Err:          err,
			ProcessingMS: elapsedMS(start),
		}
	}

	notes := parseResearchNotes(result.Text)
	citations := citationsFromChunks(reqCtx.RetrievedChunks)

	return turn.AgentOutput{
		AgentName:    r.Name(),
		Kind:         turn.ContentResearchNotes,
		Content:      notes,
		Final:        false,
		Citations:    citations,
		TokensUsed:   result.TokensUsed,
		ProcessingMS: elapsedMS(start),
		ProviderUsed: result.Model,
		ModelUsed:    result.Model,
	}
}

func elapsedMS(start time.Time) int64 {
	return turn.Now().Sub(start).Milliseconds()
}

// jsonResearchNotes mirrors the researcher's JSON output schema for
// unmarshaling before converting to *turn.ResearchNotes.
type jsonResearchNotes struct {
	Summary       string `json:"summary"`
	KeyFindings   []struct {
		Finding    string  `json:"finding"`
		Source     string  `json:"source"`
		Confidence float64 `json:"confidence"`
	} `json:"key_findings"`
	Themes        []string `json:"themes"`
	Contradictions []struct {
		Issue   string   `json:"issue"`
		Sources []string `json:"sources"`
	} `json:"contradictions"`
	Gaps                 []string `json:"gaps"`
	OpenQuestions        []string `json:"open_questions"`
	RecommendedStructure string   `json:"recommended_structure"`
}

func parseResearchNotes(text string) *turn.ResearchNotes {
	stripped := stripMarkdownFences(text)

	var parsed jsonResearchNotes
	if err := json.Unmarshal([]byte(stripped), &parsed); err != nil {
		summary := text
		if len(summary) > 500 {
			summary = summary[:500]
		}
		return &turn.ResearchNotes{
			Summary: summary,
			KeyFindings: []turn.Finding{
				{Finding: text, Source: "response", Confidence: 0.3},
			},
			Gaps: []string{"Could not parse structured response"},
		}
	}

	notes := &turn.ResearchNotes{
		Summary:              parsed.Summary,
		Themes:               parsed.Themes,
		Gaps:                 parsed.Gaps,
		OpenQuestions:        parsed.OpenQuestions,
		RecommendedStructure: parsed.RecommendedStructure,
	}
	for _, f := range parsed.KeyFindings {
		notes.KeyFindings = append(notes.KeyFindings, turn.Finding{
			Finding: f.Finding, Source: f.Source, Confidence: f.Confidence,
		})
	}
	for _, c := range parsed.Contradictions {
		notes.Contradictions = append(notes.Contradictions, turn.Contradiction{
			Issue: c.Issue, Sources: c.Sources,
		})
	}
	return notes
}
