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

// Package agents implements the pipeline stages the router dispatches to:
// Researcher, Writer, Engineer, Planner, and Archivist. Every agent is
// stateless between turns; all state an agent needs travels in the
// *turn.RequestContext it is given.
package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashestoaltar/tamor-core/pkg/intent"
	"github.com/ashestoaltar/tamor-core/pkg/turn"
)

// Agent is implemented by every pipeline stage the router can dispatch to.
type Agent interface {
	// Name is the key the router's agent-sequence table and trace use,
	// e.g. "researcher".
	Name() string
	// CanHandle reports whether this agent is a plausible handler for one
	// of the detected intents. The router's sequence table is authoritative
	// over dispatch; CanHandle exists for introspection and tests.
	CanHandle(intents []intent.Intent) bool
	// Run executes the agent against reqCtx, which already carries any
	// prior pipeline outputs in reqCtx.PriorOutputs.
	Run(ctx context.Context, reqCtx *turn.RequestContext) turn.AgentOutput
}

func hasAny(intents []intent.Intent, want ...intent.Intent) bool {
	for _, in := range intents {
		for _, w := range want {
			if in == w {
				return true
			}
		}
	}
	return false
}

// formatRetrievedContext renders reqCtx.RetrievedChunks as a numbered
// source list suitable for inclusion in an LLM prompt.
func formatRetrievedContext(chunks []turn.Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Retrieved Context\n\n")
	for i, c := range chunks {
		loc := c.FileName
		if c.Page != nil {
			loc = fmt.Sprintf("%s, p. %d", c.FileName, *c.Page)
		}
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, loc, c.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatPriorOutputs renders the text or structured summary of every prior
// agent output so a downstream agent (e.g. Writer reading Researcher) can
// consume it as prompt context.
func formatPriorOutputs(outputs []turn.AgentOutput) string {
	if len(outputs) == 0 {
		return ""
	}
	var b strings.Builder
	for _, o := range outputs {
		if o.Err != nil {
			continue
		}
		if text, ok := o.AsText(); ok {
			fmt.Fprintf(&b, "## %s output\n\n%s\n\n", titleCase(o.AgentName), text)
			continue
		}
		if notes, ok := o.AsResearchNotes(); ok {
			fmt.Fprintf(&b, "## %s output\n\n%s\n\n", titleCase(o.AgentName), formatResearchNotesForPrompt(notes))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatResearchNotesForPrompt(n *turn.ResearchNotes) string {
	var b strings.Builder
	if n.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", n.Summary)
	}
	for _, f := range n.KeyFindings {
		fmt.Fprintf(&b, "- %s (%s)\n", f.Finding, f.Source)
	}
	if len(n.Themes) > 0 {
		fmt.Fprintf(&b, "Themes: %s\n", strings.Join(n.Themes, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatMemoriesForPrompt renders up to max memory refs as a bulleted
// category-tagged list, mirroring the reference agents' memory-context
// formatting.
func formatMemoriesForPrompt(memories []turn.MemoryRef, max int) string {
	if len(memories) == 0 {
		return ""
	}
	if max > 0 && len(memories) > max {
		memories = memories[:max]
	}
	var b strings.Builder
	for _, m := range memories {
		fmt.Fprintf(&b, "- [%s] %s\n", m.Category, m.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// citationsFromChunks builds the Citations a final agent output attaches,
// one per retrieved chunk, in the same order the chunks were retrieved.
func citationsFromChunks(chunks []turn.Chunk) []turn.Citation {
	if len(chunks) == 0 {
		return nil
	}
	out := make([]turn.Citation, 0, len(chunks))
	for _, c := range chunks {
		snippet := c.Content
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		score := c.Score
		out = append(out, turn.Citation{
			FileID:     c.FileID,
			FileName:   c.FileName,
			ChunkIndex: c.ChunkIndex,
			Page:       c.Page,
			Snippet:    snippet,
			Relevance:  &score,
		})
	}
	return out
}

// stripMarkdownFences removes a single leading/trailing ``` or ```json
// fence pair, returning the inner text unchanged if no fence is present.
func stripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	parts := strings.SplitN(text, "```", 3)
	if len(parts) < 2 {
		return text
	}
	inner := strings.TrimSpace(parts[1])
	inner = strings.TrimPrefix(inner, "json")
	return strings.TrimSpace(inner)
}
