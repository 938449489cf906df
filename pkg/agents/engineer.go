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
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/ashestoaltar/tamor-core/pkg/config"
	"github.com/ashestoaltar/tamor-core/pkg/intent"
	"github.com/ashestoaltar/tamor-core/pkg/llmgateway"
	"github.com/ashestoaltar/tamor-core/pkg/turn"
)

const engineerSystemPrompt = `You are an Engineer agent. Your role is to generate high-quality code, patches, and technical artifacts.

## Your Responsibilities
1. Generate clean, working code based on requirements
2. Follow existing patterns and conventions from the codebase
3. Produce complete, drop-in artifacts (not fragments)
4. Include necessary imports, error handling, and documentation
5. Respect the project's architecture and style

## Constraints
- Follow existing code patterns shown in the context
- Do NOT execute code - only generate it
- Do NOT make assumptions about undefined requirements - ask or note them
- Include all necessary imports and dependencies
- Add brief inline comments for complex logic only

## Output Format
For code generation, output the complete file or patch:
` + "```" + `language
// Full code here
` + "```" + `

For multiple files, separate with a clear header before each block:
## File: path/to/file.ext
` + "```" + `language
// code
` + "```" + `

If you need clarification on requirements, state what's unclear before providing code.`

var codeExtToLang = map[string]string{
	".py": "python", ".js": "javascript", ".jsx": "jsx", ".ts": "typescript", ".tsx": "tsx",
	".go": "go", ".html": "html", ".css": "css", ".sql": "sql", ".sh": "bash",
	".json": "json", ".yaml": "yaml", ".yml": "yaml", ".md": "markdown",
}

// Engineer generates code and technical artifacts. It is always a final,
// user-facing pipeline stage.
type Engineer struct {
	gateway *llmgateway.Gateway
}

// NewEngineer builds an Engineer backed by gateway.
func NewEngineer(gateway *llmgateway.Gateway) *Engineer {
	return &Engineer{gateway: gateway}
}

func (e *Engineer) Name() string { return "engineer" }

func (e *Engineer) CanHandle(intents []intent.Intent) bool {
	return hasAny(intents, intent.Code)
}

func (e *Engineer) Run(ctx context.Context, reqCtx *turn.RequestContext) turn.AgentOutput {
	start := turn.Now()

	systemPrompt := engineerSystemPrompt
	if len(reqCtx.RetrievedChunks) > 0 {
		systemPrompt += "\n\n## Existing Code Context\n" + formatCodeContext(reqCtx.RetrievedChunks)
	}
	if prefs := extractCodePreferences(reqCtx.Memories); prefs != "" {
		systemPrompt += "\n\n## User Preferences\n" + prefs
	}
	if reqCtx.SystemPromptAdd != "" {
		systemPrompt += "\n\n" + reqCtx.SystemPromptAdd
	}

	userMessage := reqCtx.UserMessage
	if specs := specsFromPriorResearch(reqCtx.PriorOutputs); specs != "" {
		userMessage = fmt.Sprintf("%s\n\n## Technical Specifications\n%s", reqCtx.UserMessage, specs)
	}

	result, err := e.gateway.Chat(ctx, config.RoleEngineer, []llmgateway.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userMessage},
	})
	if err != nil {
		return turn.AgentOutput{
			AgentName:    e.Name(),
			Kind:         turn.ContentText,
			Content:      "Error generating code: " + err.Error(),
			Final:        true,
			Err:          err,
			ProcessingMS: elapsedMS(start),
		}
	}

	artifacts := extractCodeArtifacts(result.Text)

	return turn.AgentOutput{
		AgentName:    e.Name(),
		Kind:         turn.ContentCodeArtifacts,
		Content:      artifacts,
		Final:        true,
		TokensUsed:   result.TokensUsed,
		ProcessingMS: elapsedMS(start),
		ProviderUsed: result.Model,
		ModelUsed:    result.Model,
	}
}

func formatCodeContext(chunks []turn.Chunk) string {
	var b strings.Builder
	seen := map[string]bool{}
	limit := chunks
	if len(limit) > 10 {
		limit = limit[:10]
	}
	for _, c := range limit {
		if seen[c.FileName] {
			continue
		}
		seen[c.FileName] = true

		lang := detectLanguage(c.FileName)
		content := c.Content
		if len(content) > 1500 {
			content = content[:1500]
		}
		fmt.Fprintf(&b, "### %s\n```%s\n%s\n```\n\n", c.FileName, lang, content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func detectLanguage(filename string) string {
	for ext, lang := range codeExtToLang {
		if strings.HasSuffix(filename, ext) {
			return lang
		}
	}
	return ""
}

func extractCodePreferences(memories []turn.MemoryRef) string {
	var prefs []string
	for _, m := range memories {
		if m.Category != "preference" && m.Category != "engineering" {
			continue
		}
		content := strings.ToLower(m.Content)
		if containsAny(content, "code", "style", "prefer", "always", "never", "use") {
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

func specsFromPriorResearch(outputs []turn.AgentOutput) string {
	for _, o := range outputs {
		if o.AgentName != "researcher" {
			continue
		}
		notes, ok := o.AsResearchNotes()
		if !ok {
			continue
		}
		var b strings.Builder
		if notes.Summary != "" {
			fmt.Fprintf(&b, "**Overview:** %s\n", notes.Summary)
		}
		if len(notes.KeyFindings) > 0 {
			b.WriteString("\n**Requirements:**\n")
			for _, f := range notes.KeyFindings {
				fmt.Fprintf(&b, "- %s\n", f.Finding)
			}
		}
		return strings.TrimRight(b.String(), "\n")
	}
	return ""
}

// extractCodeArtifacts scans a fenced-code response for ```lang ... ```
// blocks and optional preceding "## File: path" headers, pairing them by
// position. A plain stdlib scanner is enough here: no example repo carries
// a fenced-code extractor to ground this on, so regexp/bufio is the
// appropriate tool rather than a third-party markdown parser.
func extractCodeArtifacts(response string) *turn.CodeArtifacts {
	out := &turn.CodeArtifacts{}

	scanner := bufio.NewScanner(strings.NewReader(response))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var pendingPath string
	var inFence bool
	var fenceLang string
	var body strings.Builder

	flush := func() {
		if inFence {
			out.Artifacts = append(out.Artifacts, turn.CodeArtifact{
				Type:     "code",
				Language: fenceLang,
				Content:  strings.TrimRight(body.String(), "\n"),
				FilePath: pendingPath,
			})
		}
		pendingPath = ""
		inFence = false
		fenceLang = ""
		body.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if !inFence && strings.HasPrefix(trimmed, "## File:") {
			pendingPath = strings.TrimSpace(strings.TrimPrefix(trimmed, "## File:"))
			continue
		}

		if strings.HasPrefix(trimmed, "```") {
			if inFence {
				flush()
			} else {
				inFence = true
				fenceLang = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
				if fenceLang == "" {
					fenceLang = "text"
				}
			}
			continue
		}

		if inFence {
			body.WriteString(line)
			body.WriteString("\n")
		}
	}

	return out
}
