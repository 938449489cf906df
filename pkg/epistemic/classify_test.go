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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	epconfig "github.com/ashestoaltar/tamor-core/pkg/epistemic/config"
)

func testRules() *epconfig.Rules {
	r := epconfig.DefaultRules()
	r.ContestedMarkers = map[string][]string{
		"torah_observance": {"moral law", "ceremonial law"},
	}
	r.TopicContestation = map[string]epconfig.TopicContestation{
		"moral law": {
			Level:     "C2",
			Positions: []string{"threefold division of the law", "unitary law fulfilled in Messiah"},
		},
	}
	return r
}

func TestClassify_Deterministic(t *testing.T) {
	c := NewClassifier(testRules())

	tests := []struct {
		name string
		text string
		ctx  ClassifyContext
	}{
		{"explicit flag", "Anything at all.", ClassifyContext{IsDeterministic: true}},
		{"count query type", "Three items.", ClassifyContext{QueryType: "count"}},
		{"count pattern in text", "There are 7 files in this project.", ClassifyContext{}},
		{"schedule pattern", "Your review is scheduled for 3pm tomorrow.", ClassifyContext{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify(tt.text, tt.ctx)
			assert.Equal(t, Deterministic, result.AnswerType)
			assert.Equal(t, 1.0, result.Confidence)
		})
	}
}

func TestClassify_GroundedDirect(t *testing.T) {
	c := NewClassifier(testRules())

	tests := []struct {
		name string
		text string
		ctx  ClassifyContext
	}{
		{"according-to phrasing", "According to the transcript, the meeting ran long.", ClassifyContext{}},
		{"inline citation marker", "The committee approved the draft [1] after two rounds.", ClassifyContext{}},
		{"scripture reference", "Romans 8:2 sets the frame for the whole chapter.", ClassifyContext{}},
		{"caller-supplied sources", "The argument follows from the primary text.", ClassifyContext{Sources: []string{"essay.pdf"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify(tt.text, tt.ctx)
			require.Equal(t, GroundedDirect, result.AnswerType, tt.text)
			assert.True(t, result.HasCitations)
			assert.NotEmpty(t, result.Sources)
		})
	}
}

func TestClassify_GroundedContested(t *testing.T) {
	c := NewClassifier(testRules())

	result := c.Classify("According to the commentary, the moral law remains binding.", ClassifyContext{})

	require.Equal(t, GroundedContested, result.AnswerType)
	assert.True(t, result.IsContested)
	assert.Equal(t, []string{"torah_observance"}, result.ContestedDomains)
	assert.Equal(t, C2CrossTradition, result.ContestationLevel)
	assert.Equal(t, "moral law", result.ContestationTopic)
	assert.Len(t, result.AlternativePositions, 2)
}

func TestClassify_Ungrounded(t *testing.T) {
	c := NewClassifier(testRules())

	result := c.Classify("The author was probably influenced by earlier thinkers.", ClassifyContext{})

	assert.Equal(t, Ungrounded, result.AnswerType)
	assert.False(t, result.HasCitations)
	assert.Empty(t, result.Sources)
}
