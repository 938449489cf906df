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

// Package config loads the rule sets the epistemic pipeline lints and
// classifies against: risky phrases, contested-domain markers, topic
// contestation mappings, hedge tokens, allowed absolutes, and anchor
// search settings. Rules load once from a YAML file and are cached for
// the life of the process; a missing file falls back to a minimal
// built-in rule set rather than failing startup.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// RiskyPhrases splits certainty-linting phrases by severity tier.
type RiskyPhrases struct {
	HighRisk   []string `yaml:"high_risk"`
	MediumRisk []string `yaml:"medium_risk"`
}

// TopicContestation names the contestation level and alternative
// positions for a specific, manually-mapped topic.
type TopicContestation struct {
	Level     string   `yaml:"level"`
	Positions []string `yaml:"positions"`
}

// AllowedAbsolute is a sentence-level exemption: if the sentence
// containing a high-risk phrase matches this pattern, the phrase is not
// flagged (e.g. quoting a creed verbatim).
type AllowedAbsolute struct {
	Pattern string `yaml:"pattern"`
}

// AnchorSettings controls the anchor service's time budgets and source
// priority order.
type AnchorSettings struct {
	FastBudgetMS int      `yaml:"fast_budget_ms"`
	DeepBudgetMS int      `yaml:"deep_budget_ms"`
	Sources      []string `yaml:"sources"`
}

// Rules is the full epistemic rule set, loaded from YAML.
type Rules struct {
	Version           string                        `yaml:"version"`
	RiskyPhrases      RiskyPhrases                  `yaml:"risky_phrases"`
	ContestedMarkers  map[string][]string           `yaml:"contested_markers"`
	TopicContestation map[string]TopicContestation  `yaml:"topic_contestation"`
	AllowedAbsolutes  []AllowedAbsolute             `yaml:"allowed_absolutes"`
	HedgeTokens       []string                      `yaml:"hedge_tokens"`
	MaxHedges         int                           `yaml:"max_hedges_per_sentence"`
	AnchorSettings    AnchorSettings                `yaml:"anchor_settings"`
}

// DefaultRules returns the minimal built-in rule set used when no YAML
// file is configured or the configured path does not exist.
func DefaultRules() *Rules {
	return &Rules{
		Version: "1.0",
		RiskyPhrases: RiskyPhrases{
			HighRisk:   []string{"definitively proves", "this proves", "definitively", "definitely", "without question"},
			MediumRisk: []string{"certainly", "always", "never"},
		},
		ContestedMarkers:  map[string][]string{},
		TopicContestation: map[string]TopicContestation{},
		AllowedAbsolutes:  nil,
		HedgeTokens:       []string{"maybe", "possibly", "perhaps", "might", "could"},
		MaxHedges:         2,
		AnchorSettings: AnchorSettings{
			FastBudgetMS: 250,
			DeepBudgetMS: 800,
			Sources:      []string{"session_context", "library_cache"},
		},
	}
}

var (
	loadOnce   sync.Once
	cachedPath string
	cached     *Rules
	cachedErr  error
)

// Load reads and parses the rule set at path, caching the result for the
// life of the process. A path that does not exist returns DefaultRules
// with no error, matching the source's "minimal defaults if config file
// missing" behavior. Subsequent calls with a different path force a
// reload; this is only expected in tests.
func Load(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	loadOnce.Do(func() {
		cachedPath = path
		cached, cachedErr = load(path)
	})
	if cachedPath != path {
		return load(path)
	}
	return cached, cachedErr
}

func load(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultRules(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("epistemic config: read %s: %w", path, err)
	}

	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("epistemic config: parse %s: %w", path, err)
	}
	if rules.MaxHedges == 0 {
		rules.MaxHedges = 2
	}
	if rules.AnchorSettings.FastBudgetMS == 0 {
		rules.AnchorSettings.FastBudgetMS = 250
	}
	if rules.AnchorSettings.DeepBudgetMS == 0 {
		rules.AnchorSettings.DeepBudgetMS = 800
	}
	if len(rules.AnchorSettings.Sources) == 0 {
		rules.AnchorSettings.Sources = []string{"session_context", "library_cache"}
	}
	return &rules, nil
}

// TopicContestationFor looks up a manual contestation mapping for topic,
// trying an exact key match first and falling back to a case-insensitive
// substring match in either direction.
func (r *Rules) TopicContestationFor(topic string) (TopicContestation, bool) {
	if tc, ok := r.TopicContestation[topic]; ok {
		return tc, true
	}
	topicLower := strings.ToLower(topic)
	for key, tc := range r.TopicContestation {
		keyLower := strings.ToLower(key)
		if strings.Contains(topicLower, keyLower) || strings.Contains(keyLower, topicLower) {
			return tc, true
		}
	}
	return TopicContestation{}, false
}

// IsAllowedAbsolute reports whether text matches one of the rule set's
// allowed-absolute patterns. Patterns are case-insensitive regular
// expressions, same as the source's re.search(pattern, text, IGNORECASE).
func (r *Rules) IsAllowedAbsolute(text string) bool {
	for _, allowed := range r.AllowedAbsolutes {
		if allowed.Pattern == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + allowed.Pattern)
		if err != nil {
			continue
		}
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
