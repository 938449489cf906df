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
	epconfig "github.com/ashestoaltar/tamor-core/pkg/epistemic/config"
	"github.com/ashestoaltar/tamor-core/pkg/turn"
)

// Metadata is the UI-facing summary of a pipeline run.
type Metadata struct {
	AnswerType string
	Badge      string // "deterministic", "grounded", "contested", or "" (no badge)

	IsContested          bool
	ContestationLevel    string
	ContestedDomains     []string
	AlternativePositions []string

	HasSources bool
	Sources    []string

	HadIssues      bool
	WasRepaired    bool
	CertaintyScore float64
	ClarityScore   float64
}

// Result is the complete output of Process.
type Result struct {
	OriginalText  string
	ProcessedText string
	Metadata      Metadata

	Classification ClassificationResult
	Lint           LintResult
	Anchor         *AnchorResult
	Repair         *RepairResult
}

// Pipeline orchestrates classify -> lint -> anchor -> repair for a single
// response, then summarizes the run for the UI.
type Pipeline struct {
	classifier *Classifier
	linter     *Linter
	anchors    *AnchorService
	repairer   *RepairService

	userPrefersAccuracy bool
}

// NewPipeline builds a Pipeline over the given rule set.
func NewPipeline(rules *epconfig.Rules) *Pipeline {
	return &Pipeline{
		classifier: NewClassifier(rules),
		linter:     NewLinter(rules),
		anchors:    NewAnchorService(rules),
		repairer:   NewRepairService(),
	}
}

// SetSessionContext supplies the chunks retrieved for the current turn
// to the anchor service, and records whether the user prefers a deeper
// (slower) anchor search.
func (p *Pipeline) SetSessionContext(chunks []turn.Chunk, userPrefersAccuracy bool) {
	p.anchors.SetSessionContext(chunks)
	p.userPrefersAccuracy = userPrefersAccuracy
}

// RegisterAnchorSource wires an external evidence source into the
// pipeline's anchor search (see AnchorService.RegisterSource).
func (p *Pipeline) RegisterAnchorSource(name string, searcher SourceSearcher) {
	p.anchors.RegisterSource(name, searcher)
}

// Process runs responseText through the full pipeline. skipRepair
// classifies and lints but leaves the text untouched, still returning
// metadata (used when the turn's deadline is close and the router opts
// to skip anchoring/repair but not classification).
func (p *Pipeline) Process(responseText string, classifyCtx ClassifyContext, skipRepair bool) Result {
	classification := p.classifier.Classify(responseText, classifyCtx)
	lint := p.linter.Lint(responseText, classification)

	var anchorResult *AnchorResult
	if !skipRepair && lint.NeedsRepair && lint.RepairStrategy == RepairAnchor {
		// Anchor search needs the whole claim, not just the risky phrase:
		// the containing sentence carries the content words that overlap
		// with evidence.
		var claim string
		for _, issue := range lint.Issues {
			if issue.Category == CategoryCertainty {
				claim = p.linter.sentenceAt(responseText, issue.Start)
				break
			}
		}
		if claim != "" {
			result := p.anchors.FindAnchors(claim, p.userPrefersAccuracy, 3)
			anchorResult = &result
		}
	}

	var repairResult *RepairResult
	processedText := responseText
	if lint.NeedsRepair && !skipRepair {
		rr := p.repairer.Repair(responseText, lint, anchorResult)
		repairResult = &rr
		if rr.Repaired {
			processedText = rr.RepairedText
		}
	}

	metadata := buildMetadata(classification, lint, repairResult)

	return Result{
		OriginalText:   responseText,
		ProcessedText:  processedText,
		Metadata:       metadata,
		Classification: classification,
		Lint:           lint,
		Anchor:         anchorResult,
		Repair:         repairResult,
	}
}

// buildMetadata assigns the UI badge. Per the system's explicit contract
// an ungrounded answer never surfaces "ungrounded" as a badge; it gets no
// badge unless the anchor-repair strategy actually attached evidence, in
// which case it is shown as grounded.
func buildMetadata(classification ClassificationResult, lint LintResult, repair *RepairResult) Metadata {
	var badge string
	switch classification.AnswerType {
	case Deterministic:
		badge = "deterministic"
	case GroundedContested:
		badge = "contested"
	case GroundedDirect:
		badge = "grounded"
	default:
		if repair != nil && len(repair.AnchorsAttached) > 0 {
			badge = "grounded"
		}
	}

	sources := classification.Sources
	if len(sources) > 5 {
		sources = sources[:5]
	}

	return Metadata{
		AnswerType:           string(classification.AnswerType),
		Badge:                badge,
		IsContested:          classification.IsContested,
		ContestationLevel:    string(classification.ContestationLevel),
		ContestedDomains:     classification.ContestedDomains,
		AlternativePositions: classification.AlternativePositions,
		HasSources:           classification.HasCitations,
		Sources:              sources,
		HadIssues:            lint.HasIssues,
		WasRepaired:          repair != nil && repair.Repaired,
		CertaintyScore:       lint.CertaintyScore,
		ClarityScore:         lint.ClarityScore,
	}
}
