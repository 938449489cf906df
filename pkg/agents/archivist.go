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
	"log/slog"
	"strings"
	"time"

	"github.com/ashestoaltar/tamor-core/pkg/config"
	"github.com/ashestoaltar/tamor-core/pkg/intent"
	"github.com/ashestoaltar/tamor-core/pkg/llmgateway"
	"github.com/ashestoaltar/tamor-core/pkg/memory"
	"github.com/ashestoaltar/tamor-core/pkg/turn"
)

const archivistSystemPrompt = `You are the Archivist, the memory manager for a personal research assistant. You analyze conversations to decide what is worth remembering about the user, so future turns can draw on it without the user repeating themselves.

## Memory Tiers

- core: Who they are as a person - identity, deeply-held values, beliefs, personality, relationship dynamics. Capped, changes rarely.
- long_term: Useful knowledge, preferences, project context, relationships, interests, opinions. Grows over time, subject to natural decay.
- episodic: Session-specific context - what was discussed or decided. Fades naturally.

## What to Remember

- Identity and self-description
- Values, convictions, and worldview
- Personality traits, humor style, communication style
- Preferences (response length, terminology, tone)
- Project context and technical decisions, with the reasoning behind them
- Dead ends and things already tried that didn't work
- Recurring friction points
- People, projects, and organizations mentioned, and how they relate

## What NOT to Remember

- Trivial conversation filler ("ok", "thanks", "got it")
- Temporary instructions ("run this command", "check that file")
- Information already covered by an existing core memory
- Raw responses or code blocks - too verbose for memory
- Sensitive data (passwords, API keys, tokens)

## Memory Quality

Memories should be concise facts, not transcripts. Distill the essence of what was said rather than quoting it at length.

## Output Format

Respond with ONLY a JSON object (no markdown, no explanation):
{
  "memories_to_store": [
    {
      "content": "Clear, concise fact to remember",
      "category": "identity|personality|values|preference|relationship|project|general",
      "tier": "core|long_term|episodic",
      "confidence": 0.0-1.0,
      "entities": [{"name": "entity name", "type": "person|project|tool|concept|organization", "relationship": "about|uses|teaches|studies_with"}],
      "reason": "Brief reason for remembering"
    }
  ],
  "memories_to_update": [{"id": "...", "new_content": "...", "new_confidence": 0.0-1.0, "reason": "..."}],
  "memories_to_forget": [{"id": "...", "reason": "..."}],
  "consolidations": [{"source_ids": ["..."], "merged_content": "...", "tier": "long_term", "confidence": 0.8, "reason": "..."}],
  "analysis": "Brief explanation of memory decisions"
}

If nothing is worth remembering, return empty arrays with an analysis explaining why.`

// ArchivistResult is the Archivist's structured output. It is not one of
// turn.ContentKind's four tagged variants (research notes, a plan, code -
// nothing about a memory lifecycle decision belongs to a conversational
// response shape); the router recognizes it by type-asserting
// AgentOutput.Content when AgentName == "archivist", the same way the
// router dispatches on agent identity rather than content shape for every
// non-final stage.
type ArchivistResult struct {
	Action         string
	MemoryID       string
	Content        string
	Category       string
	Tier           string
	MemoryIDs      []string
	Count          int
	Reason         string
	StoredCount    int
	UpdatedCount   int
	ForgottenCount int
	Consolidations int
	Analysis       string
}

// Archivist governs the memory lifecycle: deciding what to store, update,
// forget, or consolidate. It never produces a final user-facing response by
// itself; the router formats its result.
type Archivist struct {
	gateway    *llmgateway.Gateway
	admin      memory.AdminOps
	entities   memory.EntityOps
	governance memory.GovernanceCaller
}

// NewArchivist builds an Archivist over the memory store's admin, entity,
// and governance surfaces.
func NewArchivist(gateway *llmgateway.Gateway, admin memory.AdminOps, entities memory.EntityOps, governance memory.GovernanceCaller) *Archivist {
	return &Archivist{gateway: gateway, admin: admin, entities: entities, governance: governance}
}

func (a *Archivist) Name() string { return "archivist" }

func (a *Archivist) CanHandle(intents []intent.Intent) bool {
	return hasAny(intents, intent.Memory)
}

func (a *Archivist) Run(ctx context.Context, reqCtx *turn.RequestContext) turn.AgentOutput {
	start := turn.Now()

	// Explicit remember/forget commands are manual operations; governance
	// settings only gate automatic saving.
	if action, content, ok := detectExplicitMemoryAction(reqCtx.UserMessage); ok {
		return a.handleExplicitAction(ctx, reqCtx, action, content, start)
	}

	if reqCtx.UserID != "" && a.governance != nil {
		settings, err := a.governance.GetSettings(ctx, reqCtx.UserID)
		if err == nil && !settings.AutoSaveEnabled {
			return turn.AgentOutput{
				AgentName:    a.Name(),
				Content:      &ArchivistResult{Action: "no_action", Reason: "Auto-save disabled by user settings."},
				Final:        false,
				ProcessingMS: elapsedMS(start),
			}
		}
	}

	return a.llmAnalyze(ctx, reqCtx, start)
}

// detectExplicitMemoryAction recognizes an explicit remember/forget command
// and extracts the content it refers to.
func detectExplicitMemoryAction(message string) (action, content string, ok bool) {
	lower := strings.ToLower(message)

	rememberPhrases := []string{"remember that", "remember this", "please remember", "don't forget"}
	for _, p := range rememberPhrases {
		if strings.Contains(lower, p) {
			return "remember", extractMemoryContent(message), true
		}
	}

	forgetPhrases := []string{"forget that", "forget this", "please forget", "don't remember"}
	for _, p := range forgetPhrases {
		if strings.Contains(lower, p) {
			return "forget", message, true
		}
	}

	return "", "", false
}

var memoryContentPrefixes = []string{
	"remember that", "remember this:", "please remember", "don't forget that", "don't forget:",
}

func extractMemoryContent(message string) string {
	lower := strings.ToLower(message)
	for _, prefix := range memoryContentPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return strings.TrimSpace(message[len(prefix):])
		}
	}
	return message
}

func (a *Archivist) handleExplicitAction(ctx context.Context, reqCtx *turn.RequestContext, action, content string, start time.Time) turn.AgentOutput {
	switch action {
	case "remember":
		return a.rememberExplicit(ctx, reqCtx, content, start)
	case "forget":
		return a.forgetExplicit(ctx, reqCtx, content, start)
	default:
		return turn.AgentOutput{
			AgentName:    a.Name(),
			Content:      &ArchivistResult{Action: "no_action", Reason: "Could not process memory command"},
			Final:        false,
			ProcessingMS: elapsedMS(start),
		}
	}
}

func (a *Archivist) rememberExplicit(ctx context.Context, reqCtx *turn.RequestContext, content string, start time.Time) turn.AgentOutput {
	if reqCtx.UserID == "" || content == "" {
		return turn.AgentOutput{
			AgentName:    a.Name(),
			Content:      &ArchivistResult{Action: "no_action", Reason: "No user to store memory against."},
			Final:        false,
			ProcessingMS: elapsedMS(start),
		}
	}

	tier, category, confidence := classifyExplicitMemory(content)

	id, err := a.admin.Add(ctx, content, category, reqCtx.UserID, memory.SourceManual, memory.Tier(tier), confidence)
	if err != nil {
		return turn.AgentOutput{
			AgentName:    a.Name(),
			Content:      &ArchivistResult{Action: "no_action", Reason: "Failed to store memory: " + err.Error()},
			Final:        false,
			Err:          err,
			ProcessingMS: elapsedMS(start),
		}
	}

	return turn.AgentOutput{
		AgentName: a.Name(),
		Content: &ArchivistResult{
			Action: "stored", MemoryID: id, Content: content, Category: category, Tier: tier,
		},
		Final:        false,
		ProcessingMS: elapsedMS(start),
	}
}

// classifyExplicitMemory mirrors the explicit-command heuristic: an
// explicit "remember that" is high-confidence by construction, and a small
// set of surface patterns promotes it into the core tier.
func classifyExplicitMemory(content string) (tier, category string, confidence float64) {
	lower := strings.ToLower(content)
	switch {
	case containsAny(lower, "my name", "i am", "i'm a", "my role"):
		return "core", "identity", 0.95
	case containsAny(lower, "i value", "i believe", "my faith", "i'm convicted"):
		return "core", "values", 0.9
	case containsAny(lower, "my wife", "my husband", "my family"):
		return "core", "relationship", 0.9
	case containsAny(lower, "my humor", "i find funny", "makes me laugh", "my personality"):
		return "core", "personality", 0.85
	case containsAny(lower, "prefer", "like", "always", "never"):
		return "long_term", "preference", 0.85
	default:
		return "long_term", "general", 0.8
	}
}

func (a *Archivist) forgetExplicit(ctx context.Context, reqCtx *turn.RequestContext, content string, start time.Time) turn.AgentOutput {
	if reqCtx.UserID == "" {
		return turn.AgentOutput{
			AgentName:    a.Name(),
			Content:      &ArchivistResult{Action: "no_action", Reason: "No user to forget memory for."},
			Final:        false,
			ProcessingMS: elapsedMS(start),
		}
	}

	matches, err := a.admin.Search(ctx, content, reqCtx.UserID, 3)
	if err != nil {
		return turn.AgentOutput{
			AgentName:    a.Name(),
			Content:      &ArchivistResult{Action: "no_action", Reason: "Search failed: " + err.Error()},
			Final:        false,
			Err:          err,
			ProcessingMS: elapsedMS(start),
		}
	}

	var forgotten []string
	for _, m := range matches {
		if m.Score <= 0.5 {
			continue
		}
		if ok, err := a.admin.Delete(ctx, m.ID, reqCtx.UserID); err == nil && ok {
			forgotten = append(forgotten, m.ID)
		}
	}

	return turn.AgentOutput{
		AgentName: a.Name(),
		Content: &ArchivistResult{
			Action: "forgotten", MemoryIDs: forgotten, Count: len(forgotten),
		},
		Final:        false,
		ProcessingMS: elapsedMS(start),
	}
}

func (a *Archivist) llmAnalyze(ctx context.Context, reqCtx *turn.RequestContext, start time.Time) turn.AgentOutput {
	if a.gateway == nil || !a.gateway.IsAvailable(config.RoleArchivist) {
		return a.heuristicAnalyze(ctx, reqCtx, start)
	}

	existing, err := a.admin.List(ctx, memory.ListFilters{UserID: reqCtx.UserID, Limit: 30})
	existingSummary := "(No existing memories)"
	if err == nil && len(existing) > 0 {
		existingSummary = summarizeExistingMemories(existing)
	}

	userPrompt := fmt.Sprintf(`Analyze this conversation for memories worth storing.

## Existing Memories (avoid duplicates)
%s

## Current Conversation
%s

## Current User Message
%s

What should be remembered, updated, or forgotten? Return JSON only.`,
		existingSummary, buildConversationExcerpt(reqCtx.History), reqCtx.UserMessage)

	result, err := a.gateway.Chat(ctx, config.RoleArchivist, []llmgateway.Message{
		{Role: "system", Content: archivistSystemPrompt},
		{Role: "user", Content: userPrompt},
	})
	if err != nil {
		return a.heuristicAnalyze(ctx, reqCtx, start)
	}

	parsed, ok := parseArchivistResponse(result.Text)
	if !ok {
		return a.heuristicAnalyze(ctx, reqCtx, start)
	}

	return a.executeMemoryOperations(ctx, reqCtx, parsed, start, result.Model)
}

func summarizeExistingMemories(memories []memory.Memory) string {
	if len(memories) > 30 {
		memories = memories[:30]
	}
	var b strings.Builder
	for _, m := range memories {
		content := m.Content
		if len(content) > 120 {
			content = content[:120]
		}
		fmt.Fprintf(&b, "[%s/%s] id=%s: %s\n", m.Tier, m.Category, m.ID, content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func buildConversationExcerpt(history []turn.Message) string {
	if len(history) == 0 {
		return "(No prior messages in this conversation)"
	}
	recent := lastN(history, 6)
	var b strings.Builder
	for _, m := range recent {
		content := m.Content
		if len(content) > 300 {
			content = content[:300]
		}
		fmt.Fprintf(&b, "**%s**: %s\n\n", m.Role, content)
	}
	return strings.TrimRight(b.String(), "\n")
}

type jsonArchivistEntity struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Relationship string `json:"relationship"`
}

type jsonArchivistStore struct {
	Content    string                `json:"content"`
	Category   string                `json:"category"`
	Tier       string                `json:"tier"`
	Confidence float64               `json:"confidence"`
	Entities   []jsonArchivistEntity `json:"entities"`
	Reason     string                `json:"reason"`
}

type jsonArchivistUpdate struct {
	ID            string  `json:"id"`
	NewContent    string  `json:"new_content"`
	NewConfidence float64 `json:"new_confidence"`
	Reason        string  `json:"reason"`
}

type jsonArchivistForget struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type jsonArchivistConsolidation struct {
	SourceIDs     []string `json:"source_ids"`
	MergedContent string   `json:"merged_content"`
	Tier          string   `json:"tier"`
	Confidence    float64  `json:"confidence"`
	Reason        string   `json:"reason"`
}

type jsonArchivistResponse struct {
	MemoriesToStore    []jsonArchivistStore         `json:"memories_to_store"`
	MemoriesToUpdate   []jsonArchivistUpdate        `json:"memories_to_update"`
	MemoriesToForget   []jsonArchivistForget        `json:"memories_to_forget"`
	Consolidations     []jsonArchivistConsolidation `json:"consolidations"`
	Analysis           string                       `json:"analysis"`
}

// parseArchivistResponse strips markdown fences, then on a plain decode
// failure falls back to scanning for the outermost {...} span before
// giving up - the same two-stage fallback the reference archivist uses.
func parseArchivistResponse(text string) (*jsonArchivistResponse, bool) {
	stripped := stripMarkdownFences(text)

	var parsed jsonArchivistResponse
	if err := json.Unmarshal([]byte(stripped), &parsed); err == nil {
		return &parsed, true
	}

	start := strings.Index(stripped, "{")
	end := strings.LastIndex(stripped, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	if err := json.Unmarshal([]byte(stripped[start:end+1]), &parsed); err != nil {
		return nil, false
	}
	return &parsed, true
}

// executeMemoryOperations applies the Archivist's LLM decision in
// store -> update -> forget -> consolidate order, so a consolidation that
// both forgets stale sources and stores a merged replacement never races
// against an independent forget of the same id.
func (a *Archivist) executeMemoryOperations(ctx context.Context, reqCtx *turn.RequestContext, parsed *jsonArchivistResponse, start time.Time, model string) turn.AgentOutput {
	var storedIDs, updatedIDs, forgottenIDs []string

	for _, m := range parsed.MemoriesToStore {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		category := m.Category
		if category == "" {
			category = memory.CategoryGeneral
		}
		tier := memory.Tier(m.Tier)
		if !tier.Valid() {
			tier = memory.TierLongTerm
		}
		confidence := m.Confidence
		if confidence == 0 {
			confidence = 0.5
		}

		id, err := a.admin.Add(ctx, content, category, reqCtx.UserID, memory.SourceAuto, tier, confidence)
		if err != nil || id == "" {
			continue
		}
		storedIDs = append(storedIDs, id)

		if a.entities == nil {
			continue
		}
		for _, e := range m.Entities {
			if e.Name == "" {
				continue
			}
			entType := memory.EntityType(e.Type)
			if entType == "" {
				entType = memory.EntityConcept
			}
			entityID, err := a.entities.AddEntity(ctx, e.Name, entType)
			if err != nil || entityID == "" {
				continue
			}
			relationship := e.Relationship
			if relationship == "" {
				relationship = "about"
			}
			_ = a.entities.Link(ctx, id, entityID, relationship)
		}
	}

	for _, m := range parsed.MemoriesToUpdate {
		if m.ID == "" {
			continue
		}
		fields := memory.UpdateFields{}
		if m.NewContent != "" {
			fields.Content = &m.NewContent
		}
		if m.NewConfidence != 0 {
			fields.Confidence = &m.NewConfidence
		}
		if ok, err := a.admin.Update(ctx, m.ID, fields, reqCtx.UserID); err == nil && ok {
			updatedIDs = append(updatedIDs, m.ID)
		}
	}

	for _, m := range parsed.MemoriesToForget {
		if m.ID == "" {
			continue
		}
		if ok, err := a.admin.Delete(ctx, m.ID, reqCtx.UserID); err == nil && ok {
			forgottenIDs = append(forgottenIDs, m.ID)
		}
	}

	consolidations := 0
	for _, c := range parsed.Consolidations {
		if len(c.SourceIDs) == 0 || c.MergedContent == "" {
			continue
		}
		tier := memory.Tier(c.Tier)
		if !tier.Valid() {
			tier = memory.TierLongTerm
		}
		confidence := c.Confidence
		if confidence == 0 {
			confidence = 0.8
		}
		newID, err := a.admin.Add(ctx, c.MergedContent, memory.CategoryGeneral, reqCtx.UserID, memory.SourceAuto, tier, confidence)
		if err != nil || newID == "" {
			continue
		}
		for _, sid := range c.SourceIDs {
			if ok, err := a.admin.Delete(ctx, sid, reqCtx.UserID); err != nil || !ok {
				slog.Warn("archivist consolidation: source memory not deleted, skipping",
					"source_id", sid, "error", err)
			}
		}
		consolidations++
		storedIDs = append(storedIDs, newID)
	}

	return turn.AgentOutput{
		AgentName: a.Name(),
		Content: &ArchivistResult{
			Action:         "analyzed",
			MemoryIDs:      storedIDs,
			StoredCount:    len(storedIDs),
			UpdatedCount:   len(updatedIDs),
			ForgottenCount: len(forgottenIDs),
			Consolidations: consolidations,
			Analysis:       parsed.Analysis,
		},
		Final:        false,
		ProcessingMS: elapsedMS(start),
		ModelUsed:    model,
	}
}

// heuristicAnalyze is the safety-net path used when no Archivist LLM
// provider is configured or the LLM call/parse failed: a minimal
// identity/preference-only classifier, deliberately conservative.
func (a *Archivist) heuristicAnalyze(ctx context.Context, reqCtx *turn.RequestContext, start time.Time) turn.AgentOutput {
	lower := strings.ToLower(reqCtx.UserMessage)

	var category, tier string
	var confidence float64
	switch {
	case containsAny(lower, "my name is", "i am a ", "i work at", "i'm the creator"):
		category, tier, confidence = "identity", "core", 0.8
	case containsAny(lower, "i prefer", "i like", "i always", "i never"):
		category, tier, confidence = "preference", "long_term", 0.7
	default:
		return turn.AgentOutput{
			AgentName:    a.Name(),
			Content:      &ArchivistResult{Action: "analyzed", Analysis: "Heuristic fallback: no memory-worthy pattern found"},
			Final:        false,
			ProcessingMS: elapsedMS(start),
		}
	}

	var storedIDs []string
	if reqCtx.UserID != "" {
		if id, err := a.admin.Add(ctx, reqCtx.UserMessage, category, reqCtx.UserID, memory.SourceAuto, memory.Tier(tier), confidence); err == nil && id != "" {
			storedIDs = append(storedIDs, id)
		}
	}

	return turn.AgentOutput{
		AgentName: a.Name(),
		Content: &ArchivistResult{
			Action:      "analyzed",
			MemoryIDs:   storedIDs,
			StoredCount: len(storedIDs),
			Analysis:    fmt.Sprintf("Heuristic fallback: found %d potential memory", len(storedIDs)),
		},
		Final:        false,
		ProcessingMS: elapsedMS(start),
	}
}
