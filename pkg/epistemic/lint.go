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
	"regexp"
	"strings"

	epconfig "github.com/ashestoaltar/tamor-core/pkg/epistemic/config"
)

// LintSeverity is the severity of a single lint issue.
type LintSeverity string

const (
	SeverityLow    LintSeverity = "low"
	SeverityMedium LintSeverity = "medium"
	SeverityHigh   LintSeverity = "high"
)

// LintCategory distinguishes certainty issues from clarity issues.
type LintCategory string

const (
	CategoryCertainty LintCategory = "certainty"
	CategoryClarity   LintCategory = "clarity"
)

// LintIssue is a single flagged span of text.
type LintIssue struct {
	Severity   LintSeverity
	Category   LintCategory
	Message    string
	TextSpan   string
	Start, End int
	Suggestion string
}

// RepairStrategy names the repair approach the linter recommends.
type RepairStrategy string

const (
	RepairAnchor  RepairStrategy = "anchor"
	RepairRewrite RepairStrategy = "rewrite"
	RepairClarify RepairStrategy = "clarify"
)

// LintResult is the output of Lint.
type LintResult struct {
	HasIssues      bool
	Issues         []LintIssue
	CertaintyScore float64
	ClarityScore   float64
	NeedsRepair    bool
	RepairStrategy RepairStrategy
}

var sentenceSplitRe = regexp.MustCompile(`(?s)(?:[.!?])\s+`)

// Linter flags overconfident or evasive phrasing in response text.
type Linter struct {
	rules      *epconfig.Rules
	highRisk   []*regexp.Regexp
	mediumRisk []*regexp.Regexp
}

// NewLinter builds a Linter over the given rule set.
func NewLinter(rules *epconfig.Rules) *Linter {
	l := &Linter{rules: rules}
	for _, p := range rules.RiskyPhrases.HighRisk {
		l.highRisk = append(l.highRisk, regexp.MustCompile("(?i)"+regexp.QuoteMeta(p)))
	}
	for _, p := range rules.RiskyPhrases.MediumRisk {
		l.mediumRisk = append(l.mediumRisk, regexp.MustCompile("(?i)"+regexp.QuoteMeta(p)))
	}
	return l
}

// Lint checks responseText for epistemic issues given its classification.
func (l *Linter) Lint(responseText string, classification ClassificationResult) LintResult {
	var issues []LintIssue
	issues = append(issues, l.checkCertainty(responseText, classification)...)
	issues = append(issues, l.checkClarity(responseText)...)

	certaintyScore := l.certaintyScore(issues)
	clarityScore := l.clarityScore(issues, responseText)

	needsRepair := false
	for _, i := range issues {
		if i.Severity == SeverityHigh {
			needsRepair = true
			break
		}
	}

	var strategy RepairStrategy
	if needsRepair {
		strategy = l.determineRepairStrategy(issues, classification)
	}

	return LintResult{
		HasIssues:      len(issues) > 0,
		Issues:         issues,
		CertaintyScore: certaintyScore,
		ClarityScore:   clarityScore,
		NeedsRepair:    needsRepair,
		RepairStrategy: strategy,
	}
}

func (l *Linter) checkCertainty(text string, classification ClassificationResult) []LintIssue {
	var issues []LintIssue

	for _, re := range l.highRisk {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			match := text[loc[0]:loc[1]]
			sentence := l.sentenceAt(text, loc[0])
			if l.rules.IsAllowedAbsolute(sentence) {
				continue
			}
			if classification.AnswerType == Deterministic || classification.AnswerType == GroundedDirect {
				continue
			}
			issues = append(issues, LintIssue{
				Severity:   SeverityHigh,
				Category:   CategoryCertainty,
				Message:    "absolutist claim '" + match + "' without grounding",
				TextSpan:   match,
				Start:      loc[0],
				End:        loc[1],
				Suggestion: "attach citation or soften claim",
			})
		}
	}

	if classification.AnswerType == Ungrounded {
		for _, re := range l.mediumRisk {
			for _, loc := range re.FindAllStringIndex(text, -1) {
				match := text[loc[0]:loc[1]]
				sentence := l.sentenceAt(text, loc[0])
				if l.rules.IsAllowedAbsolute(sentence) {
					continue
				}
				issues = append(issues, LintIssue{
					Severity:   SeverityMedium,
					Category:   CategoryCertainty,
					Message:    "strong claim '" + match + "' in ungrounded response",
					TextSpan:   match,
					Start:      loc[0],
					End:        loc[1],
					Suggestion: "consider softening or adding source",
				})
			}
		}
	}

	return issues
}

func (l *Linter) checkClarity(text string) []LintIssue {
	var issues []LintIssue

	for _, sentence := range l.splitSentences(text) {
		hedgeCount := 0
		sentenceLower := strings.ToLower(sentence)
		for _, token := range l.rules.HedgeTokens {
			if strings.Contains(sentenceLower, strings.ToLower(token)) {
				hedgeCount++
			}
		}
		if hedgeCount <= l.rules.MaxHedges {
			continue
		}

		pos := strings.Index(text, sentence)
		span := sentence
		if len(span) > 50 {
			span = span[:50] + "..."
		}
		issues = append(issues, LintIssue{
			Severity:   SeverityMedium,
			Category:   CategoryClarity,
			Message:    "sentence has excessive hedge tokens",
			TextSpan:   span,
			Start:      pos,
			End:        pos + len(sentence),
			Suggestion: "state thesis clearly, then qualify",
		})
	}

	return issues
}

func (l *Linter) sentenceAt(text string, position int) string {
	start := strings.LastIndex(text[:min(position, len(text))], ".")
	if start == -1 {
		start = 0
	} else {
		start++
	}
	rest := text[position:]
	end := strings.Index(rest, ".")
	if end == -1 {
		end = len(text)
	} else {
		end = position + end + 1
	}
	if start > end || start > len(text) {
		return ""
	}
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(text[start:end])
}

func (l *Linter) splitSentences(text string) []string {
	parts := sentenceSplitRe.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (l *Linter) certaintyScore(issues []LintIssue) float64 {
	var high, medium int
	for _, i := range issues {
		if i.Category != CategoryCertainty {
			continue
		}
		switch i.Severity {
		case SeverityHigh:
			high++
		case SeverityMedium:
			medium++
		}
	}
	if high == 0 && medium == 0 {
		return 0.0
	}
	score := float64(high)*0.3 + float64(medium)*0.1
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func (l *Linter) clarityScore(issues []LintIssue, text string) float64 {
	var clarityIssues int
	for _, i := range issues {
		if i.Category == CategoryClarity {
			clarityIssues++
		}
	}
	if clarityIssues == 0 {
		return 1.0
	}
	sentenceCount := len(l.splitSentences(text))
	if sentenceCount == 0 {
		return 1.0
	}
	ratio := float64(clarityIssues) / float64(sentenceCount)
	score := 1.0 - ratio
	if score < 0 {
		score = 0
	}
	return score
}

func (l *Linter) determineRepairStrategy(issues []LintIssue, classification ClassificationResult) RepairStrategy {
	var certaintyCount, clarityCount int
	for _, i := range issues {
		switch i.Category {
		case CategoryCertainty:
			certaintyCount++
		case CategoryClarity:
			clarityCount++
		}
	}

	if classification.AnswerType == Ungrounded && certaintyCount > 0 {
		return RepairAnchor
	}
	if classification.AnswerType == GroundedContested {
		return RepairRewrite
	}
	if clarityCount > certaintyCount {
		return RepairClarify
	}
	return RepairRewrite
}
