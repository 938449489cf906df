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

package epistemic

import (
	"sort"
	"strings"
	"time"

	epconfig "github.com/ashestoaltar/tamor-core/pkg/epistemic/config"
	"github.com/ashestoaltar/tamor-core/pkg/turn"
)

// Anchor is a piece of supporting evidence attached to a claim.
type Anchor struct {
	Source     string
	SourceID   string
	SourceName string
	Content    string
	Relevance  float64
	Page       *int
}

// AnchorResult is the output of a bounded anchor search.
type AnchorResult struct {
	Found          bool
	Anchors        []Anchor
	SearchTimeMS   int64
	SourcesChecked []string
	BudgetExceeded bool
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true, "will": true, "would": true, "could": true,
	"should": true, "may": true, "might": true, "must": true, "shall": true, "this": true,
	"that": true, "these": true, "those": true, "i": true, "you": true, "he": true, "she": true,
	"it": true, "we": true, "they": true, "what": true, "which": true, "who": true, "whom": true,
	"whose": true, "where": true, "when": true, "why": true, "how": true, "and": true, "or": true,
	"but": true, "if": true, "then": true, "so": true, "than": true, "too": true, "very": true,
	"just": true, "only": true, "own": true, "same": true, "as": true, "of": true, "at": true,
	"by": true, "for": true, "with": true, "about": true, "to": true, "from": true, "in": true,
	"on": true, "not": true, "no": true,
}

// AnchorService searches for evidence supporting a claim within a time
// budget. Only the session-context source is backed by data this core
// owns directly (the turn's own retrieved chunks); library_cache and
// reference_cache name external collaborators (library search, SWORD/
// Sefaria) outside this core's scope, so they are modeled as an
// injectable SourceSearcher a host may wire in, and are otherwise
// skipped with no anchors found.
type AnchorService struct {
	rules      *epconfig.Rules
	externals  map[string]SourceSearcher
	sessionCtx []turn.Chunk
}

// SourceSearcher is the narrow interface a host implements to make an
// external evidence source (library cache, scripture reference cache)
// available to the anchor search. It is never required: a core with no
// SourceSearcher wired simply yields no anchors for that source.
type SourceSearcher interface {
	Search(claim string, maxResults int) []Anchor
}

// NewAnchorService builds an AnchorService over the given rule set.
func NewAnchorService(rules *epconfig.Rules) *AnchorService {
	return &AnchorService{rules: rules, externals: map[string]SourceSearcher{}}
}

// SetSessionContext supplies the chunks already retrieved for this turn,
// searched first and fastest since no network or disk I/O is needed.
func (a *AnchorService) SetSessionContext(chunks []turn.Chunk) {
	a.sessionCtx = chunks
}

// RegisterSource wires an external evidence source (e.g. "library_cache"
// or "reference_cache") behind a SourceSearcher.
func (a *AnchorService) RegisterSource(name string, searcher SourceSearcher) {
	a.externals[name] = searcher
}

// FindAnchors searches for evidence supporting claim, honoring the
// configured time budget and source priority order.
func (a *AnchorService) FindAnchors(claim string, deepSearch bool, maxAnchors int) AnchorResult {
	budgetMS := a.rules.AnchorSettings.FastBudgetMS
	if deepSearch {
		budgetMS = a.rules.AnchorSettings.DeepBudgetMS
	}

	start := time.Now()
	var anchors []Anchor
	var sourcesChecked []string

	sources := a.rules.AnchorSettings.Sources
	if len(sources) == 0 {
		sources = []string{"session_context", "library_cache", "reference_cache"}
	}

	for _, source := range sources {
		if time.Since(start) >= time.Duration(budgetMS)*time.Millisecond {
			break
		}
		sourcesChecked = append(sourcesChecked, source)

		var found []Anchor
		if source == "session_context" {
			found = a.searchSessionContext(claim)
		} else if searcher, ok := a.externals[source]; ok {
			found = searcher.Search(claim, 3)
		}
		anchors = append(anchors, found...)

		if len(anchors) >= maxAnchors {
			break
		}
	}

	elapsed := time.Since(start)

	sort.SliceStable(anchors, func(i, j int) bool { return anchors[i].Relevance > anchors[j].Relevance })
	if len(anchors) > maxAnchors {
		anchors = anchors[:maxAnchors]
	}

	return AnchorResult{
		Found:          len(anchors) > 0,
		Anchors:        anchors,
		SearchTimeMS:   elapsed.Milliseconds(),
		SourcesChecked: sourcesChecked,
		BudgetExceeded: elapsed >= time.Duration(budgetMS)*time.Millisecond && len(anchors) == 0,
	}
}

func (a *AnchorService) searchSessionContext(claim string) []Anchor {
	var anchors []Anchor
	for _, chunk := range a.sessionCtx {
		if !isRelevant(claim, chunk.Content) {
			continue
		}
		content := chunk.Content
		if len(content) > 500 {
			content = content[:500]
		}
		score := chunk.Score
		if score == 0 {
			score = 0.5
		}
		anchors = append(anchors, Anchor{
			Source:     "session_context",
			SourceID:   chunk.FileID,
			SourceName: chunk.FileName,
			Content:    content,
			Relevance:  score,
			Page:       chunk.Page,
		})
	}
	return anchors
}

// isRelevant is a keyword-overlap relevance check: stop words removed,
// relevant if overlap >= 2, or >= 1 when the claim has <= 3 content
// words.
func isRelevant(claim, content string) bool {
	if claim == "" || content == "" {
		return false
	}

	claimWords := contentWords(claim)
	contentWordsSet := contentWords(content)

	if len(claimWords) == 0 {
		return false
	}

	overlap := 0
	for w := range claimWords {
		if contentWordsSet[w] {
			overlap++
		}
	}

	return overlap >= 2 || (overlap >= 1 && len(claimWords) <= 3)
}

func contentWords(text string) map[string]bool {
	words := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'()[]")
		if w == "" || stopWords[w] {
			continue
		}
		words[w] = true
	}
	return words
}
