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

package hermeneutic

import (
	"regexp"
	"strings"

	hmconfig "github.com/ashestoaltar/tamor-core/pkg/hermeneutic/config"
)

// FrameworkUsage is a detected framework in generated text that
// requires disclosure.
type FrameworkUsage struct {
	FrameworkID   string
	FrameworkName string
	Origin        string
	MatchedText   string
}

// EnforcementResult is the output of a post-answer enforcement check.
type EnforcementResult struct {
	Passed             bool
	FrameworksUsed     []FrameworkUsage
	Warnings           []string
	DisclosureRequired bool
	DisclosureText     string
}

var frameworkPatterns = map[string][]*regexp.Regexp{
	"moral_ceremonial_civil": compile(
		`moral law`,
		`ceremonial law`,
		`civil law`,
		`moral[,\s]+ceremonial[,\s]+(?:and\s+)?civil`,
	),
	"fulfilled_equals_ended": compile(
		`fulfilled[,\s]+(?:and\s+)?(?:therefore\s+)?(?:ended|abolished|done away)`,
		`fulfilled\s+means?\s+(?:ended|abolished|finished)`,
		`fulfilled\s+in\s+Christ[,\s]+(?:so|therefore)`,
	),
	"covenant_of_works": compile(
		`covenant of works`,
		`works\s+covenant`,
	),
	"dispensational_ages": compile(
		`dispensation(?:al)?\s+(?:of|age)`,
		`age of (?:law|grace)`,
		`church age`,
	),
	"replacement_theology": compile(
		`church\s+(?:replaces?|replaced)\s+Israel`,
		`new Israel`,
		`spiritual Israel`,
	),
	"law_gospel_antithesis": compile(
		`law\s+(?:vs?\.?|versus|against)\s+gospel`,
		`antithesis\s+(?:of|between)\s+law\s+and\s+gospel`,
	),
}

var harmonizationPatterns = compile(
	`(?:simply|obviously|clearly)\s+(?:means?|teaches?)`,
	`(?:all|most)\s+(?:scholars?|theologians?)\s+agree`,
	`the\s+(?:clear|obvious|plain)\s+(?:meaning|teaching)`,
	`(?:resolves?|solved?)\s+(?:the|this)\s+(?:tension|contradiction)`,
)

var softeningPatterns = compile(
	`(?:but|however)[,\s]+(?:we|Christians?)\s+(?:today|now)`,
	`(?:of course|naturally)[,\s]+(?:this|that)\s+(?:doesn't|does not)\s+(?:mean|apply)`,
	`(?:we\s+)?(?:shouldn't|should not)\s+(?:take|read)\s+(?:this|that)\s+(?:too\s+)?literally`,
)

// Enforcer checks generated responses for framework usage requiring
// disclosure and for premature-harmonization or comfort-softening
// language.
type Enforcer struct {
	frameworks map[string]hmconfig.FrameworkDisclosure
}

// NewEnforcer builds an Enforcer over the given constraint set.
func NewEnforcer(constraints *hmconfig.Constraints) *Enforcer {
	byID := map[string]hmconfig.FrameworkDisclosure{}
	for _, f := range constraints.FrameworksRequiringDisclosure {
		byID[f.ID] = f
	}
	return &Enforcer{frameworks: byID}
}

// Enforce checks responseText for GHM compliance.
func (e *Enforcer) Enforce(responseText string) EnforcementResult {
	frameworksUsed := e.detectFrameworks(responseText)

	var warnings []string
	if matches := e.checkHarmonization(responseText); len(matches) > 0 {
		warnings = append(warnings, "Possible premature harmonization detected: "+matches[0])
	}
	if matches := e.checkSoftening(responseText); len(matches) > 0 {
		warnings = append(warnings, "Possible comfort-softening detected: "+matches[0])
	}

	disclosureRequired := len(frameworksUsed) > 0
	var disclosureText string
	if disclosureRequired {
		disclosureText = e.buildDisclosure(frameworksUsed)
	}

	return EnforcementResult{
		Passed:             true,
		FrameworksUsed:     frameworksUsed,
		Warnings:           warnings,
		DisclosureRequired: disclosureRequired,
		DisclosureText:     disclosureText,
	}
}

func (e *Enforcer) detectFrameworks(text string) []FrameworkUsage {
	var found []FrameworkUsage
	for frameID, patterns := range frameworkPatterns {
		for _, re := range patterns {
			loc := re.FindStringIndex(text)
			if loc == nil {
				continue
			}
			info, ok := e.frameworks[frameID]
			name := frameID
			origin := "Unknown"
			if ok {
				if info.Name != "" {
					name = info.Name
				}
				if info.Origin != "" {
					origin = info.Origin
				}
			}
			found = append(found, FrameworkUsage{
				FrameworkID:   frameID,
				FrameworkName: name,
				Origin:        origin,
				MatchedText:   text[loc[0]:loc[1]],
			})
			break
		}
	}
	return found
}

func (e *Enforcer) checkHarmonization(text string) []string {
	var matches []string
	for _, re := range harmonizationPatterns {
		if m := re.FindString(text); m != "" {
			matches = append(matches, m)
		}
	}
	return matches
}

func (e *Enforcer) checkSoftening(text string) []string {
	var matches []string
	for _, re := range softeningPatterns {
		if m := re.FindString(text); m != "" {
			matches = append(matches, m)
		}
	}
	return matches
}

func (e *Enforcer) buildDisclosure(frameworks []FrameworkUsage) string {
	if len(frameworks) == 0 {
		return ""
	}
	lines := []string{"**Frameworks used (post-biblical):**"}
	for _, fw := range frameworks {
		lines = append(lines, "- "+fw.FrameworkName+" (origin: "+fw.Origin+")")
	}
	return strings.Join(lines, "\n")
}
