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
	"fmt"
	"sort"
	"strings"

	"github.com/ashestoaltar/tamor-core/pkg/agents"
	"github.com/ashestoaltar/tamor-core/pkg/turn"
)

// compose turns the pipeline's accumulated outputs into the user-facing
// text. The last output is the primary surface; how it renders depends on
// which agent produced it.
func compose(reqCtx *turn.RequestContext, outputs []turn.AgentOutput) (string, []turn.Citation) {
	last := outputs[len(outputs)-1]
	citations := collectCitations(outputs)

	switch last.AgentName {
	case "archivist":
		return formatArchivistAck(last), nil
	case "planner":
		if plan, ok := last.AsProjectPlan(); ok {
			return agents.FormatPlanForUser(plan, last.Err == nil), nil
		}
	case "researcher":
		if notes, ok := last.AsResearchNotes(); ok {
			return appendSources(formatResearchNotes(notes), citations), citations
		}
	}

	if text, ok := last.AsText(); ok {
		if last.Final {
			return appendSources(text, citations), citations
		}
		return text, citations
	}
	if artifacts, ok := last.AsCodeArtifacts(); ok {
		return appendSources(formatCodeArtifacts(artifacts), citations), citations
	}

	// An unrecognized content shape still has to surface something.
	return fmt.Sprintf("%v", last.Content), citations
}

// collectCitations merges citations from every output in pipeline order,
// deduplicating on (file, chunk).
func collectCitations(outputs []turn.AgentOutput) []turn.Citation {
	var merged []turn.Citation
	seen := map[string]bool{}
	for _, o := range outputs {
		for _, c := range o.Citations {
			key := fmt.Sprintf("%s/%s#%d", c.FileID, c.FileName, c.ChunkIndex)
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, c)
		}
	}
	return merged
}

// appendSources adds the trailing "Sources" block: one entry per file, in
// first-citation order, with the page list when pages are known.
func appendSources(text string, citations []turn.Citation) string {
	if len(citations) == 0 || text == "" {
		return text
	}

	type fileGroup struct {
		name  string
		pages []int
	}
	var order []string
	groups := map[string]*fileGroup{}
	for _, c := range citations {
		name := c.FileName
		if name == "" {
			continue
		}
		g, ok := groups[name]
		if !ok {
			g = &fileGroup{name: name}
			groups[name] = g
			order = append(order, name)
		}
		if c.Page != nil {
			g.pages = append(g.pages, *c.Page)
		}
	}
	if len(order) == 0 {
		return text
	}

	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\n---\n**Sources**\n")
	for i, name := range order {
		g := groups[name]
		if len(g.pages) > 0 {
			fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, g.name, formatPageList(g.pages))
		} else {
			fmt.Fprintf(&b, "%d. %s\n", i+1, g.name)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatPageList(pages []int) string {
	sort.Ints(pages)
	uniq := pages[:0]
	for i, p := range pages {
		if i == 0 || p != uniq[len(uniq)-1] {
			uniq = append(uniq, p)
		}
	}
	label := "pp."
	if len(uniq) == 1 {
		label = "p."
	}
	parts := make([]string, len(uniq))
	for i, p := range uniq {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return label + " " + strings.Join(parts, ", ")
}

// formatResearchNotes renders structured researcher output for direct
// display when no writer stage follows.
func formatResearchNotes(notes *turn.ResearchNotes) string {
	var b strings.Builder

	if notes.Summary != "" {
		b.WriteString("## Summary\n\n")
		b.WriteString(notes.Summary)
		b.WriteString("\n\n")
	}
	if len(notes.KeyFindings) > 0 {
		b.WriteString("## Key Findings\n\n")
		for i, f := range notes.KeyFindings {
			fmt.Fprintf(&b, "%d. %s", i+1, f.Finding)
			if f.Source != "" {
				fmt.Fprintf(&b, " _%s_", f.Source)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if len(notes.Themes) > 0 {
		b.WriteString("## Themes\n\n")
		for _, t := range notes.Themes {
			fmt.Fprintf(&b, "- %s\n", t)
		}
		b.WriteString("\n")
	}
	if len(notes.Contradictions) > 0 {
		b.WriteString("## Tensions in the Sources\n\n")
		for _, c := range notes.Contradictions {
			fmt.Fprintf(&b, "- %s", c.Issue)
			if len(c.Sources) > 0 {
				fmt.Fprintf(&b, " (%s)", strings.Join(c.Sources, "; "))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if len(notes.Gaps) > 0 {
		b.WriteString("## Gaps\n\n")
		for _, g := range notes.Gaps {
			fmt.Fprintf(&b, "- %s\n", g)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// formatCodeArtifacts renders the engineer's extracted artifacts back into
// displayable fenced blocks.
func formatCodeArtifacts(artifacts *turn.CodeArtifacts) string {
	if artifacts == nil || len(artifacts.Artifacts) == 0 {
		return "I wasn't able to produce code for that request."
	}
	var b strings.Builder
	for i, a := range artifacts.Artifacts {
		if a.FilePath != "" {
			fmt.Fprintf(&b, "**%s**\n", a.FilePath)
		}
		fmt.Fprintf(&b, "```%s\n%s\n```", a.Language, strings.TrimRight(a.Content, "\n"))
		if i < len(artifacts.Artifacts)-1 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

// formatArchivistAck renders the archivist's result as a terse
// acknowledgement. Auto-analysis runs stay quiet unless they changed
// something.
func formatArchivistAck(out turn.AgentOutput) string {
	result, ok := out.Content.(*agents.ArchivistResult)
	if !ok {
		return "Memory updated."
	}
	switch result.Action {
	case "stored":
		return "Got it - I'll remember that."
	case "forgotten":
		switch result.Count {
		case 0:
			return "I couldn't find a matching memory to forget."
		case 1:
			return "Done - I've forgotten that."
		default:
			return fmt.Sprintf("Done - I've forgotten %d related memories.", result.Count)
		}
	case "analyzed":
		if result.StoredCount+result.UpdatedCount+result.ForgottenCount+result.Consolidations > 0 {
			return "Noted - I've updated what I remember."
		}
		return "Nothing new to remember from that."
	default:
		if result.Reason != "" {
			return result.Reason
		}
		return "No memory changes were made."
	}
}
