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

// Package config loads the constraint rules and profile definitions the
// hermeneutic overlay runs against. Both load once from YAML and are
// cached for the life of the process; missing files fall back to
// minimal built-in defaults rather than failing startup.
package config

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// FrameworkDisclosure names a post-biblical framework the overlay must
// disclose when detected in generated text, and challenge when assumed
// by a question.
type FrameworkDisclosure struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Origin string `yaml:"origin"`
}

// Constraints is the overlay's rule set: the frameworks requiring
// disclosure, loaded once from the constraint YAML.
type Constraints struct {
	Version                     string                `yaml:"version"`
	FrameworksRequiringDisclosure []FrameworkDisclosure `yaml:"frameworks_requiring_disclosure"`
}

// DefaultConstraints returns the minimal built-in constraint set used
// when no constraint file is configured.
func DefaultConstraints() *Constraints {
	return &Constraints{
		Version: "default",
		FrameworksRequiringDisclosure: []FrameworkDisclosure{
			{ID: "moral_ceremonial_civil", Name: "Moral/Ceremonial/Civil division", Origin: "Medieval scholasticism"},
			{ID: "fulfilled_equals_ended", Name: "Fulfilled = Ended", Origin: "Post-biblical supersessionism"},
			{ID: "covenant_of_works", Name: "Covenant of Works", Origin: "Reformed federal theology"},
			{ID: "dispensational_ages", Name: "Dispensational Ages", Origin: "19th-century dispensationalism"},
			{ID: "replacement_theology", Name: "Replacement Theology", Origin: "Patristic-era supersessionism"},
			{ID: "law_gospel_antithesis", Name: "Law/Gospel Antithesis", Origin: "Lutheran scholasticism"},
			{ID: "under_law_vs_grace", Name: "Under Law vs. Grace", Origin: "Post-biblical dichotomy"},
			{ID: "old_new_covenant_replacement", Name: "Old/New Covenant Replacement", Origin: "Supersessionist reading"},
			{ID: "works_of_law", Name: "Works of the Law", Origin: "Reformation-era reading of Paul"},
			{ID: "sabbath_ceremonial", Name: "Sabbath as Ceremonial", Origin: "Post-biblical classification"},
		},
	}
}

var (
	constraintsOnce sync.Once
	constraintsPath string
	cachedConstr    *Constraints
	cachedConstrErr error
)

// LoadConstraints loads the overlay constraint file at path, caching the
// result for the process lifetime. An empty path returns the built-in
// defaults.
func LoadConstraints(path string) (*Constraints, error) {
	if path == "" {
		return DefaultConstraints(), nil
	}
	if constraintsPath != "" && constraintsPath != path {
		// Reloading a different path only happens in tests.
		return loadConstraints(path)
	}
	constraintsOnce.Do(func() {
		constraintsPath = path
		cachedConstr, cachedConstrErr = loadConstraints(path)
	})
	return cachedConstr, cachedConstrErr
}

func loadConstraints(path string) (*Constraints, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConstraints(), nil
		}
		return nil, err
	}
	var c Constraints
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if len(c.FrameworksRequiringDisclosure) == 0 {
		c.FrameworksRequiringDisclosure = DefaultConstraints().FrameworksRequiringDisclosure
	}
	return &c, nil
}

// WeightingRule is one entry in a profile's evidence-weighting table.
type WeightingRule struct {
	Description string `yaml:"description"`
	Weight      string `yaml:"weight"`
}

// QuestionPrompt is one "question to surface" entry in a profile.
type QuestionPrompt struct {
	Trigger       string   `yaml:"trigger"`
	Question      string   `yaml:"question"`
	ContextFilters []string `yaml:"context_filters"`
	SkipWhen      []string `yaml:"skip_when"`
}

// DiscriminationRule is one suppress/strengthen condition+reason pair.
type DiscriminationRule struct {
	Condition string `yaml:"condition"`
	Reason    string `yaml:"reason"`
}

// DiscriminationRules groups the suppress/strengthen lists for
// continuity questions.
type DiscriminationRules struct {
	SuppressContinuityQuestionsWhen   []DiscriminationRule `yaml:"suppress_continuity_questions_when"`
	StrengthenContinuityQuestionsWhen []DiscriminationRule `yaml:"strengthen_continuity_questions_when"`
}

// PlausibilityNote is a single attributable historical-context note.
type PlausibilityNote struct {
	Note string `yaml:"note"`
}

// OutputMarkers names text the profile expects to see appended to a
// response it influenced.
type OutputMarkers struct {
	Disclosure string `yaml:"disclosure"`
}

// Profile is a textual-study profile definition: evidence weighting,
// observational question prompts, and guardrails layered on top of the
// core's epistemic honesty, never prescribing a conclusion on its own.
type Profile struct {
	ID                  string               `yaml:"id"`
	DisplayName         string               `yaml:"display_name"`
	Category            string               `yaml:"category"`
	RequiresGHM         bool                 `yaml:"requires_ghm"`
	Version             string               `yaml:"version"`
	Principle           string               `yaml:"principle"`
	Weighting           map[string]WeightingRule `yaml:"weighting"`
	QuestionPrompts     []QuestionPrompt     `yaml:"question_prompts"`
	DiscriminationRules DiscriminationRules  `yaml:"discrimination_rules"`
	PlausibilityNotes   []PlausibilityNote   `yaml:"plausibility_notes"`
	Guardrails          []string             `yaml:"guardrails"`
	OutputMarkers       OutputMarkers        `yaml:"output_markers"`
}

// ProfileSummary is the metadata get_available_profiles-equivalent
// callers use to list selectable profiles without loading each in full.
type ProfileSummary struct {
	ID          string
	DisplayName string
	Category    string
	RequiresGHM bool
	Version     string
}

// ProfileLoader loads profile definitions from a directory of YAML
// files, one per profile, caching each by ID after first load.
type ProfileLoader struct {
	dir string

	mu       sync.Mutex
	profiles map[string]*Profile
}

// NewProfileLoader builds a ProfileLoader rooted at dir.
func NewProfileLoader(dir string) *ProfileLoader {
	return &ProfileLoader{dir: dir, profiles: map[string]*Profile{}}
}

// Load loads a profile by ID, returning (nil, nil) if no such profile
// file exists.
func (l *ProfileLoader) Load(profileID string) (*Profile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if p, ok := l.profiles[profileID]; ok {
		return p, nil
	}

	path := filepath.Join(l.dir, profileID+".yml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.profiles[profileID] = nil
			return nil, nil
		}
		return nil, err
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = profileID
	}
	l.profiles[profileID] = &p
	return &p, nil
}

// IsValid reports whether profileID resolves to an existing profile.
func (l *ProfileLoader) IsValid(profileID string) bool {
	p, err := l.Load(profileID)
	return err == nil && p != nil
}

// Available scans the profile directory and returns summary metadata
// for every profile found, sorted by ID.
func (l *ProfileLoader) Available() ([]ProfileSummary, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yml" {
			continue
		}
		ids = append(ids, e.Name()[:len(e.Name())-len(".yml")])
	}
	sort.Strings(ids)

	var out []ProfileSummary
	for _, id := range ids {
		p, err := l.Load(id)
		if err != nil || p == nil {
			continue
		}
		out = append(out, ProfileSummary{
			ID:          valueOr(p.ID, id),
			DisplayName: valueOr(p.DisplayName, id),
			Category:    p.Category,
			RequiresGHM: p.RequiresGHM,
			Version:     valueOr(p.Version, "0.1"),
		})
	}
	return out, nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
