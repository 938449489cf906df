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
	"fmt"
	"strings"

	"github.com/ashestoaltar/tamor-core/pkg/config"
	"github.com/ashestoaltar/tamor-core/pkg/intent"
	"github.com/ashestoaltar/tamor-core/pkg/llmgateway"
	"github.com/ashestoaltar/tamor-core/pkg/turn"
)

const writerSystemPrompt = `You are a Writer agent. Your role is to transform research notes into polished, readable prose.

## Your Responsibilities
1. Take structured research notes and write clear, engaging content
2. Follow the recommended structure when provided
3. Maintain a consistent voice and tone
4. Include citations in the text (e.g., "According to [1]..." or "The document states [2]...")
5. Make the content accessible and well-organized

## Constraints
- ONLY use information from the research notes provided
- NEVER invent facts, quotes, or claims not in the research
- NEVER add information from your own knowledge
- If research is incomplete, note what's missing rather than filling gaps
- Keep citations inline so readers can trace claims

## Style Guidelines
- Clear, direct prose
- Active voice when possible
- Short paragraphs for readability
- Use headers to organize longer pieces
- Match the formality level to the request (article vs summary vs explanation)

## Output
Write the requested content directly. Do not wrap in JSON or markdown code blocks unless specifically asked.
Do NOT include a Sources section - the system appends properly formatted citations automatically.`

// Writer transforms research notes into polished prose. It is always a
// final, user-facing pipeline stage.
type Writer struct {
	gateway *llmgateway.Gateway
}

// NewWriter builds a Writer backed by gateway.
func NewWriter(gateway *llmgateway.Gateway) *Writer {
	return &Writer{gateway: gateway}
}

func (w *Writer) Name() string { return "writer" }

func (w *Writer) CanHandle(intents []intent.Intent) bool {
	return hasAny(intents, intent.Write, intent.Explain, intent.Summarize)
}

func (w *Writer) Run(ctx context.Context, reqCtx *turn.RequestContext) turn.AgentOutput {
	start := turn.Now()

	notes, citations := writerResearchInput(reqCtx)
	if notes == nil {
		return turn.AgentOutput{
			AgentName:    w.Name(),
			Kind:         turn.ContentText,
			Content:      "No research notes available. Please provide sources or run the research step first.",
			Final:        true,
			Err:          fmt.Errorf("no research data"),
			ProcessingMS: elapsedMS(start),
		}
	}

	systemPrompt := writerSystemPrompt
	if style := extractStylePreferences(reqCtx.Memories); style != "" {
		systemPrompt += "\n\n## User Style Preferences\n" + style
	}
	if reqCtx.SystemPromptAdd != "" {
		systemPrompt += "\n\n" + reqCtx.SystemPromptAdd
	}

	outputType := detectOutputType(reqCtx.UserMessage)
	researchText := formatResearchNotesSection(notes)

	userMessage := fmt.Sprintf("## Writing Request\n%s\n\n## Output Type\n%s\n\n%s\n\nWrite the requested content based on these research notes. Include inline citations [1], [2], etc.",
		reqCtx.UserMessage, outputType, researchText)

	result, err := w.gateway.Chat(ctx, config.RoleWriter, []llmgateway.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userMessage},
	})
	if err != nil {
		return turn.AgentOutput{
			AgentName:    w.Name(),
			Kind:         turn.ContentText,
			Content:      "Error generating content: " + err.Error(),
			Final:        true,
			Err:          err,
			ProcessingMS: elapsedMS(start),
		}
	}

	return turn.AgentOutput{
		AgentName:    w.Name(),
		Kind:         turn.ContentText,
		Content:      result.Text,
		Final:        true,
		Citations:    citations,
		TokensUsed:   result.TokensUsed,
		ProcessingMS: elapsedMS(start),
		ProviderUsed: result.Model,
		ModelUsed:    result.Model,
	}
}

// writerResearchInput resolves the Writer's research input from a prior
// Researcher output, falling back to the raw retrieved chunks when no
// Researcher ran in this pipeline, and returns the citations to carry
// forward alongside it.
func writerResearchInput(reqCtx *turn.RequestContext) (*turn.ResearchNotes, []turn.Citation) {
	for _, o := range reqCtx.PriorOutputs {
		if o.AgentName != "researcher" {
			continue
		}
		if notes, ok := o.AsResearchNotes(); ok {
			return notes, o.Citations
		}
	}

	if len(reqCtx.RetrievedChunks) == 0 {
		return nil, nil
	}

	chunks := reqCtx.RetrievedChunks
	if len(chunks) > 5 {
		chunks = chunks[:5]
	}
	notes := &turn.ResearchNotes{
		Summary: "Direct sources provided (no prior research analysis)",
	}
	for i, c := range chunks {
		content := c.Content
		if len(content) > 200 {
			content = content[:200]
		}
		notes.KeyFindings = append(notes.KeyFindings, turn.Finding{
			Finding: content, Source: fmt.Sprintf("[%d]", i+1), Confidence: 0.5,
		})
	}
	return notes, citationsFromChunks(reqCtx.RetrievedChunks)
}

func formatResearchNotesSection(n *turn.ResearchNotes) string {
	var b strings.Builder
	b.WriteString("## Research Notes\n\n")

	if n.Summary != "" {
		fmt.Fprintf(&b, "### Summary\n%s\n\n", n.Summary)
	}
	if len(n.KeyFindings) > 0 {
		b.WriteString("### Key Findings\n")
		for _, f := range n.KeyFindings {
			fmt.Fprintf(&b, "- %s %s (%.2f)\n", f.Finding, f.Source, f.Confidence)
		}
		b.WriteString("\n")
	}
	if len(n.Themes) > 0 {
		fmt.Fprintf(&b, "### Themes\n%s\n\n", strings.Join(n.Themes, ", "))
	}
	if len(n.Contradictions) > 0 {
		b.WriteString("### Contradictions/Tensions\n")
		for _, c := range n.Contradictions {
			fmt.Fprintf(&b, "- %s (sources: %s)\n", c.Issue, strings.Join(c.Sources, ", "))
		}
		b.WriteString("\n")
	}
	if len(n.Gaps) > 0 {
		b.WriteString("### Information Gaps\n")
		for _, g := range n.Gaps {
			fmt.Fprintf(&b, "- %s\n", g)
		}
		b.WriteString("\n")
	}
	if n.RecommendedStructure != "" {
		fmt.Fprintf(&b, "### Recommended Structure\n%s\n", n.RecommendedStructure)
	}

	return strings.TrimRight(b.String(), "\n")
}

func detectOutputType(message string) string {
	msg := strings.ToLower(message)
	switch {
	case containsAny(msg, "article", "blog", "post"):
		return "Article (800-1200 words, engaging, with introduction and conclusion)"
	case containsAny(msg, "summary", "summarize", "overview"):
		return "Summary (200-400 words, key points only)"
	case containsAny(msg, "explain", "explanation"):
		return "Explanation (clear, educational, step-by-step if needed)"
	case containsAny(msg, "outline", "structure"):
		return "Outline (hierarchical structure with brief descriptions)"
	case containsAny(msg, "draft", "first draft"):
		return "Draft (complete but may need revision)"
	case containsAny(msg, "brief", "short", "quick"):
		return "Brief (100-200 words, essential points only)"
	default:
		return "Standard response (appropriate length for the request)"
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// extractStylePreferences pulls writing-style preference memories (tone,
// voice, formality) from the full memory list, not just the top-5 context
// window formatMemoriesForPrompt uses.
func extractStylePreferences(memories []turn.MemoryRef) string {
	var prefs []string
	for _, m := range memories {
		if m.Category != "preference" {
			continue
		}
		content := strings.ToLower(m.Content)
		if containsAny(content, "style", "tone", "voice", "write", "formal", "casual") {
			prefs = append(prefs, m.Content)
		}
	}
	if len(prefs) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range prefs {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	return strings.TrimRight(b.String(), "\n")
}
