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

// Package hermeneutic implements the optional per-conversation overlay:
// before a turn, it scans the user's question for assumed post-biblical
// frameworks and surfaces a challenge directive; after a turn, it scans
// the generated response for framework usage requiring disclosure and
// for premature-harmonization or comfort-softening language.
package hermeneutic

import (
	"regexp"
	"strings"

	hmconfig "github.com/ashestoaltar/tamor-core/pkg/hermeneutic/config"
)

// FrameAssumption is a single detected framework assumption in a
// question.
type FrameAssumption struct {
	FrameworkID    string
	FrameworkName  string
	Origin         string
	TriggerPhrase  string
	ChallengePrompt string
}

type framePattern struct {
	patterns  []*regexp.Regexp
	challenge string
}

var framePatterns = map[string]framePattern{
	"moral_ceremonial_civil": {
		patterns: compile(
			`moral\s+law`,
			`ceremonial\s+law`,
			`civil\s+law`,
			`moral[,\s]+ceremonial`,
			`ceremonial[,\s]+(?:vs?\.?|versus|or)\s+moral`,
			`which\s+laws?\s+(?:are|is)\s+(?:still\s+)?(?:binding|valid)`,
			`(?:is|are)\s+(?:the\s+)?(?:dietary|food|sabbath)\s+(?:laws?|rules?)\s+(?:moral|ceremonial)`,
		),
		challenge: "This question assumes a distinction between 'moral' and 'ceremonial' law " +
			"that Scripture itself doesn't make. The Torah doesn't categorize commands this way — " +
			"that framework developed in medieval scholasticism.\n\n" +
			"Let's examine what the biblical texts actually say:",
	},
	"fulfilled_equals_ended": {
		patterns: compile(
			`fulfilled\s+(?:means?|=|equals?)\s+(?:ended|abolished|done)`,
			`(?:did|does|has)\s+(?:jesus|christ)\s+(?:end|abolish|fulfill)`,
			`law\s+(?:was\s+)?fulfilled\s+(?:so|therefore|and)`,
			`fulfilled\s+(?:and\s+)?(?:therefore\s+)?(?:no\s+longer|not\s+)`,
			`since\s+(?:christ|jesus)\s+fulfilled`,
		),
		challenge: "This question assumes 'fulfilled' means 'ended' — but that equivalence isn't " +
			"established in the text. In Matthew 5:17, Jesus explicitly denies coming to abolish, " +
			"using 'fulfill' in contrast to 'destroy.'\n\n" +
			"Let's look at how the texts actually use these terms:",
	},
	"under_law_vs_grace": {
		patterns: compile(
			`under\s+(?:the\s+)?law\s+(?:or|vs?\.?|versus)\s+(?:under\s+)?grace`,
			`(?:are\s+)?(?:we|christians?)\s+(?:still\s+)?under\s+(?:the\s+)?law`,
			`grace\s+(?:replaced|replaces|vs?\.?|versus)\s+(?:the\s+)?law`,
			`law\s+(?:or|vs?\.?|versus)\s+grace`,
			`not\s+under\s+law\s+but\s+under\s+grace`,
		),
		challenge: "This framing assumes 'under law' and 'under grace' are opposites — but Paul's " +
			"usage is more specific. In context, 'under law' often refers to the law's condemning " +
			"function for those seeking justification by works, not to Torah observance itself.\n\n" +
			"Let's examine how Paul actually uses these phrases:",
	},
	"old_new_covenant_replacement": {
		patterns: compile(
			`new\s+covenant\s+(?:replaced?|replaces?|superseded?)`,
			`old\s+covenant\s+(?:ended|obsolete|replaced)`,
			`(?:did|does)\s+(?:the\s+)?new\s+covenant\s+(?:replace|end|abolish)`,
			`(?:are\s+)?(?:we|christians?)\s+(?:under|in)\s+(?:the\s+)?new\s+covenant\s+(?:not|instead)`,
		),
		challenge: "This question assumes the New Covenant *replaces* rather than *renews*. But Jeremiah 31 " +
			"describes the New Covenant as writing the *same Torah* on hearts — internalization, not " +
			"replacement.\n\n" +
			"Let's look at the covenant texts directly:",
	},
	"works_of_law": {
		patterns: compile(
			`works\s+of\s+(?:the\s+)?law\s+(?:means?|=|refers?\s+to)\s+(?:torah|obedience|keeping)`,
			`(?:paul|scripture)\s+(?:condemns?|rejects?)\s+(?:keeping|obeying)\s+(?:the\s+)?law`,
			`justified\s+by\s+(?:faith|grace)\s+not\s+(?:by\s+)?(?:works|law)`,
		),
		challenge: "This framing may conflate 'works of the law' with Torah obedience generally. Recent " +
			"scholarship suggests Paul's phrase refers specifically to Jewish identity markers " +
			"(circumcision, dietary laws, calendar) as covenant boundary conditions — not to " +
			"faithful obedience itself.\n\n" +
			"Let's examine Paul's actual usage:",
	},
	"sabbath_ceremonial": {
		patterns: compile(
			`(?:is|was)\s+(?:the\s+)?sabbath\s+(?:ceremonial|moral)`,
			`sabbath\s+(?:ended|abolished|fulfilled|transferred)`,
			`(?:do|should)\s+(?:we|christians?)\s+(?:keep|observe)\s+(?:the\s+)?sabbath`,
		),
		challenge: "This question assumes we can categorize Sabbath as 'ceremonial' or 'moral' — but " +
			"that framework isn't biblical. The Sabbath is grounded in creation (Genesis 2) and " +
			"the Decalogue (Exodus 20), yet involves specific practices.\n\n" +
			"Let's look at what Scripture says about Sabbath directly:",
	},
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile("(?i)"+p))
	}
	return out
}

// FrameAnalyzer detects framework assumptions in a question before the
// pipeline answers it.
type FrameAnalyzer struct {
	frameworks map[string]hmconfig.FrameworkDisclosure
}

// NewFrameAnalyzer builds a FrameAnalyzer over the given constraint set.
func NewFrameAnalyzer(constraints *hmconfig.Constraints) *FrameAnalyzer {
	byID := map[string]hmconfig.FrameworkDisclosure{}
	for _, f := range constraints.FrameworksRequiringDisclosure {
		byID[f.ID] = f
	}
	return &FrameAnalyzer{frameworks: byID}
}

// Analyze scans question for framework assumptions, returning one
// FrameAssumption per framework that matched (first match only).
func (a *FrameAnalyzer) Analyze(question string) []FrameAssumption {
	var assumptions []FrameAssumption

	for frameID, fp := range framePatterns {
		for _, re := range fp.patterns {
			loc := re.FindStringIndex(question)
			if loc == nil {
				continue
			}
			info, ok := a.frameworks[frameID]
			name := frameID
			origin := "Post-biblical"
			if ok {
				if info.Name != "" {
					name = info.Name
				}
				if info.Origin != "" {
					origin = info.Origin
				}
			}
			assumptions = append(assumptions, FrameAssumption{
				FrameworkID:     frameID,
				FrameworkName:   name,
				Origin:          origin,
				TriggerPhrase:   question[loc[0]:loc[1]],
				ChallengePrompt: fp.challenge,
			})
			break
		}
	}

	return assumptions
}

// ShouldChallenge reports whether question assumes one or more
// frameworks and, if so, returns combined challenge text.
func (a *FrameAnalyzer) ShouldChallenge(question string) (bool, string) {
	assumptions := a.Analyze(question)
	if len(assumptions) == 0 {
		return false, ""
	}
	if len(assumptions) == 1 {
		return true, assumptions[0].ChallengePrompt
	}

	var b strings.Builder
	b.WriteString("This question assumes several post-biblical frameworks:\n\n")
	for i, a := range assumptions {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("**" + a.FrameworkName + ":** " + a.ChallengePrompt)
	}
	return true, b.String()
}
