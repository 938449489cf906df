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
	"fmt"
	"strings"

	hmconfig "github.com/ashestoaltar/tamor-core/pkg/hermeneutic/config"
)

// BeforeResult is the overlay's pre-answer output: a system-prompt
// augmentation directing the model to challenge an assumed frame before
// answering within it.
type BeforeResult struct {
	ShouldChallenge bool
	ChallengeText   string
	SystemPromptAdd string
}

// AfterResult is the overlay's post-answer output.
type AfterResult struct {
	DisclosureRequired bool
	DisclosureText     string
	Warnings           []string
}

// Overlay ties the frame analyzer, enforcer, and active profile
// together for a single conversation. It only ever runs when the
// conversation/project has an explicitly declared profile; intent or
// scholarly-question classification alone never activates it.
type Overlay struct {
	analyzer *FrameAnalyzer
	enforcer *Enforcer
	loader   *hmconfig.ProfileLoader
}

// NewOverlay builds an Overlay over the given constraints and profile
// directory.
func NewOverlay(constraints *hmconfig.Constraints, profileDir string) *Overlay {
	return &Overlay{
		analyzer: NewFrameAnalyzer(constraints),
		enforcer: NewEnforcer(constraints),
		loader:   hmconfig.NewProfileLoader(profileDir),
	}
}

// Before runs the pre-answer phase: frame-assumption detection plus the
// active profile's prompt addition, if any.
func (o *Overlay) Before(userMessage, profileID string) (BeforeResult, error) {
	should, challenge := o.analyzer.ShouldChallenge(userMessage)

	var profileAdd string
	if profileID != "" {
		profile, err := o.loader.Load(profileID)
		if err != nil {
			return BeforeResult{}, err
		}
		if profile != nil {
			profileAdd = BuildProfilePromptAddition(profile)
		}
	}

	var b strings.Builder
	if should {
		b.WriteString("Before answering, explicitly challenge the assumed frame in the user's question:\n\n")
		b.WriteString(challenge)
	}
	if profileAdd != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(profileAdd)
	}

	return BeforeResult{
		ShouldChallenge: should,
		ChallengeText:   challenge,
		SystemPromptAdd: b.String(),
	}, nil
}

// After runs the post-answer phase: framework-disclosure and
// harmonization/softening warning detection over the generated text.
func (o *Overlay) After(responseText string) AfterResult {
	result := o.enforcer.Enforce(responseText)
	return AfterResult{
		DisclosureRequired: result.DisclosureRequired,
		DisclosureText:     result.DisclosureText,
		Warnings:           result.Warnings,
	}
}

// IsValidProfile reports whether profileID names an existing profile.
func (o *Overlay) IsValidProfile(profileID string) bool {
	return o.loader.IsValid(profileID)
}

// AvailableProfiles lists the profiles found in the configured
// directory.
func (o *Overlay) AvailableProfiles() ([]hmconfig.ProfileSummary, error) {
	return o.loader.Available()
}

// BuildProfilePromptAddition renders a profile definition into the
// multi-section system-prompt text a profile contributes: principle,
// evidence weighting, questions to surface, discrimination rules,
// plausibility notes, guardrails, and disclosure requirement.
func BuildProfilePromptAddition(p *hmconfig.Profile) string {
	var sections []string

	displayName := p.DisplayName
	if displayName == "" {
		displayName = p.ID
	}
	sections = append(sections, "## Active Profile: "+displayName, "")

	if strings.TrimSpace(p.Principle) != "" {
		sections = append(sections, "**Core Principle:** "+strings.TrimSpace(p.Principle), "")
	}

	if len(p.Weighting) > 0 {
		sections = append(sections, "### Evidence Weighting")
		for key, rule := range p.Weighting {
			desc := rule.Description
			if desc == "" {
				desc = key
			}
			sections = append(sections, fmt.Sprintf("- %s (weight: %s)", desc, rule.Weight))
		}
		sections = append(sections, "")
	}

	if len(p.QuestionPrompts) > 0 {
		sections = append(sections, "### Questions to Surface")
		sections = append(sections, "When relevant, surface these questions (do not answer them for the user):")
		for _, q := range p.QuestionPrompts {
			sections = append(sections, fmt.Sprintf("- **%s:** %q", q.Trigger, strings.TrimSpace(q.Question)))
			for _, cf := range q.ContextFilters {
				sections = append(sections, "  - Context: "+cf)
			}
			for _, sw := range q.SkipWhen {
				sections = append(sections, "  - Skip when: "+sw)
			}
		}
		sections = append(sections, "")
	}

	suppress := p.DiscriminationRules.SuppressContinuityQuestionsWhen
	strengthen := p.DiscriminationRules.StrengthenContinuityQuestionsWhen
	if len(suppress) > 0 || len(strengthen) > 0 {
		sections = append(sections, "### Discrimination Rules")
		if len(suppress) > 0 {
			sections = append(sections, "**Suppress continuity questions when:**")
			for _, r := range suppress {
				sections = append(sections, "- "+r.Condition+" — "+r.Reason)
			}
			sections = append(sections, "")
		}
		if len(strengthen) > 0 {
			sections = append(sections, "**Strengthen continuity questions when:**")
			for _, r := range strengthen {
				sections = append(sections, "- "+r.Condition+" — "+r.Reason)
			}
			sections = append(sections, "")
		}
	}

	if len(p.PlausibilityNotes) > 0 {
		sections = append(sections, "### Plausibility Notes")
		sections = append(sections, "You may reference these when relevant (attribute as historical context):")
		for _, n := range p.PlausibilityNotes {
			sections = append(sections, "- "+n.Note)
		}
		sections = append(sections, "")
	}

	if len(p.Guardrails) > 0 {
		sections = append(sections, "### Profile Guardrails (STRICT)")
		for _, g := range p.Guardrails {
			sections = append(sections, "- "+g)
		}
		sections = append(sections, "")
	}

	if p.OutputMarkers.Disclosure != "" {
		sections = append(sections,
			"### Disclosure Requirement",
			"Include this disclosure when profile influences the response:",
			fmt.Sprintf("%q", p.OutputMarkers.Disclosure),
			"",
		)
	}

	return strings.Join(sections, "\n")
}
