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

// Package epistemic classifies, lints, and repairs generated text before
// it reaches the user: it tags a response with its provenance
// (deterministic, grounded, contested, or ungrounded), flags
// overconfident or evasive phrasing, and attempts to attach supporting
// evidence or soften unsupported claims without altering the author's
// voice.
package epistemic

import (
	"regexp"
	"strings"

	epconfig "github.com/ashestoaltar/tamor-core/pkg/epistemic/config"
)

// AnswerType is the four-tier provenance classification.
type AnswerType string

const (
	Deterministic     AnswerType = "deterministic"
	GroundedDirect    AnswerType = "grounded_direct"
	GroundedContested AnswerType = "grounded_contested"
	Ungrounded        AnswerType = "ungrounded"
)

// ContestationLevel is the three-level contestation scale.
type ContestationLevel string

const (
	C1IntraTradition ContestationLevel = "C1"
	C2CrossTradition ContestationLevel = "C2"
	C3Minority       ContestationLevel = "C3"
)

// ClassificationResult is the output of Classify.
type ClassificationResult struct {
	AnswerType AnswerType
	Confidence float64

	HasCitations  bool
	CitationCount int
	Sources       []string

	IsContested          bool
	ContestedDomains     []string
	ContestationLevel    ContestationLevel
	ContestationTopic    string
	AlternativePositions []string

	Reason string
}

// ClassifyContext carries the optional signals the classifier consults
// before falling back to pattern matching: an explicit deterministic
// flag (set by the router when a deterministic gate already fired),
// a query type, and any sources the caller already attached (e.g. the
// turn's retrieved chunks).
type ClassifyContext struct {
	IsDeterministic bool
	QueryType       string
	Sources         []string
}

var deterministicPatterns = compileAll(
	`there (?:are|is) \d+`,
	`you have \d+`,
	`(?:scheduled|set) for \d`,
	`(?:reminder|task) (?:at|on) `,
	`total[:\s]+\d+`,
	`count[:\s]+\d+`,
	`^\d+\s+(?:files?|items?|tasks?)`,
)

var groundedPatterns = compileAll(
	`according to`,
	`the (?:text|passage|verse) (?:says|states)`,
	`in (?:verse|chapter) \d+`,
	`Paul (?:writes|says|states)`,
	`(?:Genesis|Exodus|Leviticus|Numbers|Deuteronomy|Matthew|Mark|Luke|John|Acts|Romans|Corinthians|Galatians|Ephesians|Philippians|Colossians|Thessalonians|Timothy|Titus|Philemon|Hebrews|James|Peter|Jude|Revelation) \d+[:\d]*`,
	`\[\d+\]`,
	`(?:source|citation|reference):`,
)

const scriptureRefPattern = `\b(?:Genesis|Exodus|Leviticus|Numbers|Deuteronomy|Joshua|Judges|Ruth|Samuel|Kings|Chronicles|Ezra|Nehemiah|Esther|Job|Psalm|Proverbs|Ecclesiastes|Song|Isaiah|Jeremiah|Lamentations|Ezekiel|Daniel|Hosea|Joel|Amos|Obadiah|Jonah|Micah|Nahum|Habakkuk|Zephaniah|Haggai|Zechariah|Malachi|Matthew|Mark|Luke|John|Acts|Romans|Corinthians|Galatians|Ephesians|Philippians|Colossians|Thessalonians|Timothy|Titus|Philemon|Hebrews|James|Peter|Jude|Revelation)\s+\d+(?::\d+(?:-\d+)?)?`

var scriptureRefRe = regexp.MustCompile("(?i)" + scriptureRefPattern)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile("(?i)"+p))
	}
	return out
}

// Classifier classifies response text into one of the four provenance
// tiers, using rules loaded from pkg/epistemic/config.
type Classifier struct {
	rules *epconfig.Rules
}

// NewClassifier builds a Classifier over the given rule set.
func NewClassifier(rules *epconfig.Rules) *Classifier {
	return &Classifier{rules: rules}
}

// Classify inspects responseText and returns its provenance
// classification.
func (c *Classifier) Classify(responseText string, ctx ClassifyContext) ClassificationResult {
	if c.isDeterministic(responseText, ctx) {
		return ClassificationResult{
			AnswerType: Deterministic,
			Confidence: 1.0,
			Reason:     "response contains computed/exact data",
		}
	}

	grounded, sources := c.checkGrounding(responseText, ctx)
	if grounded {
		contested, domains, level, topic, alternatives := c.checkContestation(responseText)
		if contested {
			return ClassificationResult{
				AnswerType:           GroundedContested,
				Confidence:           0.85,
				HasCitations:         true,
				CitationCount:        len(sources),
				Sources:              sources,
				IsContested:          true,
				ContestedDomains:     domains,
				ContestationLevel:    level,
				ContestationTopic:    topic,
				AlternativePositions: alternatives,
				Reason:               "response is grounded but addresses contested topic",
			}
		}
		return ClassificationResult{
			AnswerType:    GroundedDirect,
			Confidence:    0.9,
			HasCitations:  true,
			CitationCount: len(sources),
			Sources:       sources,
			Reason:        "response directly references source material",
		}
	}

	return ClassificationResult{
		AnswerType: Ungrounded,
		Confidence: 0.7,
		Reason:     "response is inferential without direct grounding",
	}
}

func (c *Classifier) isDeterministic(text string, ctx ClassifyContext) bool {
	if ctx.IsDeterministic {
		return true
	}
	switch ctx.QueryType {
	case "count", "list", "schedule", "status":
		return true
	}
	for _, re := range deterministicPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func (c *Classifier) checkGrounding(text string, ctx ClassifyContext) (bool, []string) {
	seen := map[string]bool{}
	var sources []string
	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		sources = append(sources, s)
	}

	for _, s := range ctx.Sources {
		add(s)
	}

	for _, re := range groundedPatterns {
		matches := re.FindAllString(text, -1)
		if len(matches) > 5 {
			matches = matches[:5]
		}
		for _, m := range matches {
			add(m)
		}
	}

	for _, ref := range c.findScriptureRefs(text) {
		add(ref)
	}

	return len(sources) > 0, sources
}

func (c *Classifier) findScriptureRefs(text string) []string {
	matches := scriptureRefRe.FindAllString(text, -1)
	if len(matches) > 10 {
		matches = matches[:10]
	}
	return matches
}

func (c *Classifier) checkContestation(text string) (contested bool, domains []string, level ContestationLevel, topic string, alternatives []string) {
	textLower := strings.ToLower(text)
	domainSeen := map[string]bool{}

	for domain, markers := range c.rules.ContestedMarkers {
		for _, marker := range markers {
			if strings.Contains(textLower, strings.ToLower(marker)) {
				contested = true
				if !domainSeen[domain] {
					domainSeen[domain] = true
					domains = append(domains, domain)
				}
			}
		}
	}

	for _, markers := range c.rules.ContestedMarkers {
		for _, marker := range markers {
			if !strings.Contains(textLower, strings.ToLower(marker)) {
				continue
			}
			if tc, ok := c.rules.TopicContestationFor(marker); ok {
				contested = true
				topic = marker
				switch tc.Level {
				case "C1":
					level = C1IntraTradition
				case "C3":
					level = C3Minority
				default:
					level = C2CrossTradition
				}
				alternatives = tc.Positions
				break
			}
		}
		if topic != "" {
			break
		}
	}

	if contested && level == "" {
		level = C2CrossTradition
	}

	return contested, domains, level, topic, alternatives
}
