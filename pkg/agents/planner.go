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
	"strings"

	"github.com/ashestoaltar/tamor-core/pkg/config"
	"github.com/ashestoaltar/tamor-core/pkg/intent"
	"github.com/ashestoaltar/tamor-core/pkg/llmgateway"
	"github.com/ashestoaltar/tamor-core/pkg/turn"
)

const plannerSystemPrompt = `You are a Project Planner. Your role is to break down complex writing projects into executable pipeline tasks.

## Your Responsibilities
1. Analyze the user's writing request
2. If unclear, ask 1-3 clarifying questions (max)
3. Once you have enough information, create a task pipeline
4. NEVER write the actual content - only plan the steps

## Task Types You Can Plan
- research: Gather information on a specific topic -> Researcher agent
- draft: Write content based on research -> Writer agent
- review: Present draft for user feedback (no agent, just checkpoint)
- revise: Incorporate user edits -> Writer agent

## CRITICAL: Output Format
You MUST respond with a JSON object. Do NOT write prose, outlines, or article drafts.

If you need clarification:
{
  "project_summary": "Brief description",
  "clarifying_questions": ["Question 1", "Question 2"],
  "tasks": [],
  "notes": ""
}

If you have enough information to plan (including when the user has answered your questions):
{
  "project_summary": "Brief description",
  "clarifying_questions": [],
  "tasks": [
    {"task_type": "research", "description": "...", "agent": "researcher", "depends_on": [], "estimated_scope": "brief|moderate|extensive"},
    {"task_type": "draft", "description": "...", "agent": "writer", "depends_on": [0], "estimated_scope": "moderate"}
  ],
  "notes": "Any additional context"
}

## When to Plan vs When to Ask
- If the conversation history shows you already asked questions AND the user answered them -> CREATE TASKS NOW
- If this is a fresh request with clear requirements -> CREATE TASKS NOW
- Only ask questions if genuinely unclear AND you haven't asked before

## Guidelines
- Research tasks first, then draft tasks
- Include a review task for user feedback before final revision
- 3-6 tasks is typical; max 8
- Each task gets one agent (researcher or writer)
- NEVER output an article outline as prose - only JSON task objects`

// Planner breaks complex, multi-step writing requests into a sequence of
// tasks. It never persists a plan itself: task execution and storage are
// owned by whatever host schedules the individual steps, so Planner's
// output is a pure in-memory *turn.ProjectPlan the caller decides what to
// do with.
type Planner struct {
	gateway *llmgateway.Gateway
}

// NewPlanner builds a Planner backed by gateway.
func NewPlanner(gateway *llmgateway.Gateway) *Planner {
	return &Planner{gateway: gateway}
}

func (p *Planner) Name() string { return "planner" }

func (p *Planner) CanHandle(intents []intent.Intent) bool {
	return hasAny(intents, intent.Plan)
}

func (p *Planner) Run(ctx context.Context, reqCtx *turn.RequestContext) turn.AgentOutput {
	start := turn.Now()

	systemPrompt := plannerSystemPrompt
	if mem := formatMemoriesForPrompt(reqCtx.Memories, 5); mem != "" {
		systemPrompt += "\n\n## User Context\n" + mem
	}
	if reqCtx.SystemPromptAdd != "" {
		systemPrompt += "\n\n" + reqCtx.SystemPromptAdd
	}

	messages := []llmgateway.Message{{Role: "system", Content: systemPrompt}}
	for _, h := range lastN(reqCtx.History, 10) {
		messages = append(messages, llmgateway.Message{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, llmgateway.Message{
		Role: "user",
		Content: fmt.Sprintf("## Planning Request\n%s\n\nIf you have enough information (including from any previous conversation), output a JSON task plan.\nIf genuinely unclear, ask clarifying questions. Do NOT output prose or article outlines.",
			reqCtx.UserMessage),
	})

	result, err := p.gateway.Chat(ctx, config.RolePlanner, messages)
	if err != nil {
		return turn.AgentOutput{
			AgentName:    p.Name(),
			Kind:         turn.ContentText,
			Content:      "Error generating plan: " + err.Error(),
			Final:        true,
			Err:          err,
			ProcessingMS: elapsedMS(start),
		}
	}

	plan, parsedOK := parsePlanResponse(result.Text)

	var parseErr error
	if !parsedOK {
		parseErr = fmt.Errorf("could not parse planner response as JSON")
	}

	return turn.AgentOutput{
		AgentName:    p.Name(),
		Kind:         turn.ContentProjectPlan,
		Content:      plan,
		Final:        true,
		Err:          parseErr,
		TokensUsed:   result.TokensUsed,
		ProcessingMS: elapsedMS(start),
		ProviderUsed: result.Model,
		ModelUsed:    result.Model,
	}
}

func lastN(messages []turn.Message, n int) []turn.Message {
	if len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}

type jsonPlanTask struct {
	TaskType       string `json:"task_type"`
	Description    string `json:"description"`
	Agent          string `json:"agent"`
	DependsOn      []int  `json:"depends_on"`
	EstimatedScope string `json:"estimated_scope"`
}

type jsonPlanResponse struct {
	ProjectSummary      string         `json:"project_summary"`
	ClarifyingQuestions []string       `json:"clarifying_questions"`
	Tasks               []jsonPlanTask `json:"tasks"`
	Notes               string         `json:"notes"`
}

// parsePlanResponse parses the planner's JSON output, falling back to an
// unparsed-notes plan (no clarifying questions, no tasks) when the LLM
// didn't return valid JSON. The second return value reports whether
// parsing succeeded.
func parsePlanResponse(text string) (*turn.ProjectPlan, bool) {
	stripped := stripMarkdownFences(text)

	var parsed jsonPlanResponse
	if err := json.Unmarshal([]byte(stripped), &parsed); err != nil {
		return &turn.ProjectPlan{}, false
	}

	plan := &turn.ProjectPlan{ClarifyingQuestions: parsed.ClarifyingQuestions}
	for _, t := range parsed.Tasks {
		plan.Tasks = append(plan.Tasks, turn.PlanTask{
			TaskType:       t.TaskType,
			Description:    t.Description,
			Agent:          t.Agent,
			DependsOn:      t.DependsOn,
			EstimatedScope: t.EstimatedScope,
		})
	}
	return plan, true
}

// FormatPlanForUser renders a ProjectPlan as the text the router shows
// when Planner is the final pipeline stage.
func FormatPlanForUser(plan *turn.ProjectPlan, parsedOK bool) string {
	if !parsedOK {
		return "I wasn't able to structure a plan from that - could you restate what you'd like to accomplish?"
	}
	if len(plan.ClarifyingQuestions) > 0 {
		var b strings.Builder
		b.WriteString("Before I plan this out, I have a few questions:\n\n")
		for i, q := range plan.ClarifyingQuestions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, q)
		}
		return strings.TrimRight(b.String(), "\n")
	}
	if len(plan.Tasks) == 0 {
		return "I don't have enough to plan yet - tell me more about what you're trying to write."
	}

	var b strings.Builder
	b.WriteString("Here's the plan:\n\n")
	for i, t := range plan.Tasks {
		fmt.Fprintf(&b, "%d. [%s] %s -> %s\n", i+1, strings.ToUpper(t.TaskType), t.Description, t.Agent)
	}
	b.WriteString("\n**Ready to start step 1?**")
	return b.String()
}
