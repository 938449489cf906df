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
	"unicode"
)

// RepairResult is the output of a repair attempt.
type RepairResult struct {
	Repaired       bool
	OriginalText   string
	RepairedText   string
	ChangesMade    []string
	AnchorsAttached []Anchor
}

// softenings maps a high-risk phrase to its softened replacement. Only
// high-severity certainty issues are ever rewritten; nothing else in the
// response is touched.
var softenings = []struct{ from, to string }{
	{"definitively proves", "strongly suggests"},
	{"this proves", "this strongly suggests"},
	{"this definitively", "this appears to"},
	{"this settles", "this addresses"},
	{"this refutes", "this challenges"},
	{"without question", "with strong evidence"},
	{"beyond doubt", "with high confidence"},
	{"the only interpretation", "a compelling interpretation"},
	{"clearly teaches", "appears to teach"},
	{"obviously means", "likely means"},
	{"definitely", "likely"},
	{"certainly", "appears"},
	{"always", "typically"},
	{"never", "rarely"},
	{"must be", "likely is"},
	{"cannot be", "is unlikely to be"},
}

// RepairService applies minimal, voice-preserving repairs to flagged
// text.
type RepairService struct{}

// NewRepairService builds a RepairService.
func NewRepairService() *RepairService { return &RepairService{} }

// Repair applies the lint result's recommended strategy to text.
func (r *RepairService) Repair(text string, lint LintResult, anchors *AnchorResult) RepairResult {
	if !lint.NeedsRepair {
		return RepairResult{OriginalText: text, RepairedText: text}
	}

	repaired := text
	var changes []string
	var anchorsAttached []Anchor

	switch lint.RepairStrategy {
	case RepairAnchor:
		if anchors != nil && anchors.Found {
			var anchorChanges []string
			repaired, anchorChanges = r.applyAnchorStrategy(repaired, lint, *anchors)
			changes = append(changes, anchorChanges...)
			anchorsAttached = anchors.Anchors
		}
		if len(changes) == 0 {
			// No evidence to attach: soften the phrasing instead.
			var rewriteChanges []string
			repaired, rewriteChanges = r.applyRewriteStrategy(repaired, lint)
			changes = append(changes, rewriteChanges...)
		}
	case RepairRewrite:
		var rewriteChanges []string
		repaired, rewriteChanges = r.applyRewriteStrategy(repaired, lint)
		changes = append(changes, rewriteChanges...)
	case RepairClarify:
		var clarifyChanges []string
		repaired, clarifyChanges = r.applyClarifyStrategy(repaired, lint)
		changes = append(changes, clarifyChanges...)
	}

	return RepairResult{
		Repaired:        len(changes) > 0,
		OriginalText:    text,
		RepairedText:    repaired,
		ChangesMade:     changes,
		AnchorsAttached: anchorsAttached,
	}
}

func (r *RepairService) applyAnchorStrategy(text string, lint LintResult, anchors AnchorResult) (string, []string) {
	if len(anchors.Anchors) == 0 {
		return text, nil
	}

	var highIssue *LintIssue
	for i := range lint.Issues {
		if lint.Issues[i].Severity == SeverityHigh && lint.Issues[i].Category == CategoryCertainty {
			highIssue = &lint.Issues[i]
			break
		}
	}
	if highIssue == nil {
		return text, nil
	}

	anchorText := formatAnchors(anchors.Anchors)

	sentenceEnd := strings.Index(text[highIssue.End:], ".")
	var insertAt int
	if sentenceEnd == -1 {
		insertAt = len(text)
	} else {
		insertAt = highIssue.End + sentenceEnd + 1
	}

	repaired := text[:insertAt] + anchorText + text[insertAt:]
	return repaired, []string{"attached supporting reference(s)"}
}

func formatAnchors(anchors []Anchor) string {
	if len(anchors) == 0 {
		return ""
	}
	max := anchors
	if len(max) > 2 {
		max = max[:2]
	}
	var parts []string
	for _, a := range max {
		parts = append(parts, "["+a.SourceName+"]")
	}
	return " " + strings.Join(parts, ", ")
}

func (r *RepairService) applyRewriteStrategy(text string, lint LintResult) (string, []string) {
	var changes []string
	repaired := text

	for _, issue := range lint.Issues {
		if issue.Severity != SeverityHigh || issue.Category != CategoryCertainty {
			continue
		}

		phraseLower := strings.ToLower(issue.TextSpan)
		for _, s := range softenings {
			if !strings.Contains(phraseLower, s.from) {
				continue
			}
			re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(s.from))
			replaced := false
			newText := re.ReplaceAllStringFunc(repaired, func(match string) string {
				if replaced {
					return match
				}
				replaced = true
				return preserveCase(match, s.to)
			})
			if newText != repaired {
				repaired = newText
				changes = append(changes, "softened '"+s.from+"' to '"+s.to+"'")
			}
			break
		}
	}

	return repaired, changes
}

func preserveCase(orig, replacement string) string {
	if orig == strings.ToUpper(orig) {
		return strings.ToUpper(replacement)
	}
	r := []rune(orig)
	if len(r) > 0 && unicode.IsUpper(r[0]) {
		rr := []rune(replacement)
		if len(rr) > 0 {
			rr[0] = unicode.ToUpper(rr[0])
		}
		return string(rr)
	}
	return replacement
}

func (r *RepairService) applyClarifyStrategy(text string, lint LintResult) (string, []string) {
	for _, issue := range lint.Issues {
		if issue.Category == CategoryClarity {
			return text, []string{"flagged for manual clarity improvement"}
		}
	}
	return text, nil
}
