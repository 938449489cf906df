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

// Package intent classifies a user message into zero or more named intents
// using an ordered regex heuristic tier, falling back to a small LLM role
// when no heuristic fires. Results are cached by normalized-message hash.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ashestoaltar/tamor-core/pkg/config"
	"github.com/ashestoaltar/tamor-core/pkg/llmgateway"
)

// Intent is one of the recognized categories a message can be classified
// into.
type Intent string

const (
	Research  Intent = "research"
	Write     Intent = "write"
	Summarize Intent = "summarize"
	Explain   Intent = "explain"
	Code      Intent = "code"
	Memory    Intent = "memory"
	Plan      Intent = "plan"
	General   Intent = "general"
)

// Source records which classification tier produced a result.
type Source string

const (
	SourceHeuristic     Source = "heuristic"
	SourceLocalLLM      Source = "local_llm"
	SourceLocalLLMCache Source = "local_llm_cache"
	SourceNone          Source = "none"
)

// priorityOrder is the fixed scan order for the heuristic tier: memory and
// plan are checked before write so an ambiguous "I'd like to write an
// article connecting X to Y" routes to planning rather than straight to
// prose.
var priorityOrder = []Intent{Memory, Plan, Code, Write, Research, Summarize, Explain}

var allowedLLMIntents = map[Intent]bool{
	Research: true, Write: true, Summarize: true, Explain: true, Code: true, Memory: true,
}

// patterns holds the ordered regex list for each intent in priorityOrder.
// First match within an intent's list is enough; patterns are evaluated
// case-insensitively.
var patterns = map[Intent][]*regexp.Regexp{
	Memory: compileAll(
		`\bremember\s+(that|this|my)\b`,
		`\bdon'?t\s+forget\b`,
		`\bforget\s+(that|this|my)\b`,
		`\bi\s+prefer\b`,
		`\bmy\s+(name|preference|favorite)\b`,
		`\bstore\s+(this|that)\s+(in\s+)?memory\b`,
	),
	Plan: compileAll(
		`\b(plan|organize|break\s*down)\s+(a\s+)?(project|writing|article|series)\b`,
		`\bcreate\s+(a\s+)?(project\s+)?plan\b`,
		`\bhelp\s+me\s+(plan|organize)\b`,
		`\b(multi-?step|complex)\s+(project|writing)\b`,
		`\bsteps\s+(to|for)\s+(write|create|produce)\b`,
		`\bi'?d?\s+like\s+to\s+(write|create|draft)\s+(an?\s+)?(article|essay|piece|series)\b`,
		`\b(write|create|draft)\s+(an?\s+)?(article|essay|piece)\s+(exploring|examining|investigating|connecting|comparing)\b`,
		`\bhow\s+.+\s+connects?\s+to\b.*\b(article|essay|piece|write)\b`,
	),
	Code: compileAll(
		`\b(write|create|generate|fix|debug)\s+(\w+\s+)*(code|function|class|script|method)\b`,
		`\bimplement\b`,
		`\b(add|update|modify)\s+(a\s+)?(\w+\s+)*(feature|endpoint|component|function)\b`,
		`\b(code|patch|refactor)\b.*\b(for|to|that)\b`,
		`\bbuild\s+(a\s+)?(\w+\s+)*(component|feature|api|service)\b`,
	),
	Write: compileAll(
		`^(write|draft|compose)\s+(me\s+)?(an?\s+)?(\w+\s+)?(article|essay|summary|document|post|outline|teaching|paragraph|piece|response|explanation|blog)`,
		`\b(write|draft|compose|create)\s+(an?\s+)?(\w+\s+)?(article|essay|summary|document|post|outline|teaching|paragraph|piece|response|explanation|blog)`,
		`\b(summarize|explain)\b.*\b(in|as)\s+(an?\s+)?(article|essay|paragraph)`,
		`\bwrite\s+(about|on)\b`,
	),
	Research: compileAll(
		`\b(research|analyze|find|search|look up|investigate)\b`,
		`\bwhat (do|does|did|is|are|was|were)\b.*\b(say|mention|state|indicate)\b`,
		`\baccording to\b`,
		`\bin the (document|file|source|transcript)`,
		`\bcompare\b.*\b(and|with|to)\b`,
		`\b(matthew|mark|luke|john|genesis|exodus|leviticus|deuteronomy|psalm|proverb|isaiah|jeremiah|ezekiel|daniel|romans|corinthians|galatians|ephesians|hebrews|revelation)\s+\d`,
		`\b(torah|gospel|epistle|scripture|biblical|talmud|midrash)\b`,
		`\b(hebrew|greek)\s+(word|term|meaning|root)\b`,
		`\brelationship\s+between\b.*\b(and|teaching|doctrine)\b`,
	),
	Summarize: compileAll(
		`\bsummarize\b`,
		`\bgive\s+(me\s+)?(a\s+)?summary\b`,
		`\bwhat('s| is) the (main|key|gist)\b`,
		`\btl;?dr\b`,
	),
	Explain: compileAll(
		`\bexplain\b`,
		`\bwhat (is|are|does)\b`,
		`\bhow (do|does|did|to)\b`,
		`\bwhy (is|are|does|did)\b`,
	),
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

// Classifier runs the heuristic-then-LLM classification tiers over an LRU
// result cache.
type Classifier struct {
	gateway *llmgateway.Gateway
	cache   *cache
	model   string
}

// New builds a Classifier. gateway may be nil, in which case the LLM
// fallback tier is always skipped and a heuristic miss yields no intents.
func New(cfg config.ClassifierConfig, gateway *llmgateway.Gateway) *Classifier {
	cfg.SetDefaults()
	return &Classifier{
		gateway: gateway,
		cache:   newCache(cfg.CacheCapacity),
		model:   cfg.Model,
	}
}

// Classify returns the detected intents, most-specific-first, and which
// tier produced them. An empty message or a message that hits neither tier
// returns an empty intent list and SourceNone.
func (c *Classifier) Classify(ctx context.Context, message string) ([]Intent, Source, error) {
	if strings.TrimSpace(message) == "" {
		return nil, SourceNone, nil
	}

	if hits := c.heuristic(message); len(hits) > 0 {
		return hits, SourceHeuristic, nil
	}

	intents, fromCache, err := c.localLLM(ctx, message)
	if err != nil {
		return nil, SourceNone, err
	}
	if len(intents) == 0 {
		return nil, SourceNone, nil
	}
	if fromCache {
		return intents, SourceLocalLLMCache, nil
	}
	return intents, SourceLocalLLM, nil
}

// heuristic scans patterns in priorityOrder, returning every intent with a
// match in the order it was matched (memory first, explain last).
func (c *Classifier) heuristic(message string) []Intent {
	var detected []Intent
	for _, in := range priorityOrder {
		for _, pat := range patterns[in] {
			if pat.MatchString(message) {
				detected = append(detected, in)
				break
			}
		}
	}
	return detected
}

// localLLM consults the cache, then (on miss) the classifier LLM role,
// caching any non-empty result.
func (c *Classifier) localLLM(ctx context.Context, message string) ([]Intent, bool, error) {
	if cached, ok := c.cache.get(message); ok {
		return cached, true, nil
	}

	if c.gateway == nil || !c.gateway.IsAvailable(config.RoleClassifier) {
		return nil, false, nil
	}

	prompt := buildClassifyPrompt(message)
	result, err := c.gateway.Chat(ctx, config.RoleClassifier, []llmgateway.Message{
		{Role: "user", Content: prompt},
	})
	if err != nil {
		// Classifier LLM failure is silent per the ambient error-handling
		// contract: the heuristic result (here, empty) is what callers see.
		return nil, false, nil
	}

	intents := parseClassifyResponse(result.Text)
	if len(intents) > 0 {
		c.cache.set(message, intents)
	}
	return intents, false, nil
}

func buildClassifyPrompt(message string) string {
	return fmt.Sprintf(`Classify the following user message into one or more intent categories.

Categories:
- research: Looking up information, analyzing sources, comparing documents
- write: Creating prose content, articles, summaries, essays
- summarize: Condensing content, getting the gist, TL;DR
- explain: Understanding concepts, how things work, why something is
- code: Writing, fixing, or modifying code, implementing features
- memory: Storing preferences, remembering information, forgetting things

User message: %q

Respond with ONLY a JSON array of intent strings, most specific first.
Example: ["research", "summarize"]
Example: ["code"]

JSON array:`, message)
}

func parseClassifyResponse(text string) []Intent {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		parts := strings.SplitN(text, "```", 3)
		if len(parts) >= 2 {
			text = strings.TrimPrefix(strings.TrimSpace(parts[1]), "json")
			text = strings.TrimSpace(text)
		}
	}

	var raw []string
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil
	}

	out := make([]Intent, 0, len(raw))
	for _, s := range raw {
		in := Intent(s)
		if allowedLLMIntents[in] {
			out = append(out, in)
		}
	}
	return out
}

// Stats reports cache hit/miss counters for observability.
func (c *Classifier) Stats() CacheStats {
	return c.cache.stats()
}
