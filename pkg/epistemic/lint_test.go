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

func TestLint_HighRiskInUngroundedText(t *testing.T) {
	l := NewLinter(testRules())

	result := l.Lint("This definitively proves the point.", ClassificationResult{AnswerType: Ungrounded})

	require.True(t, result.NeedsRepair)
	assert.Equal(t, RepairAnchor, result.RepairStrategy)

	var high int
	for _, i := range result.Issues {
		if i.Severity == SeverityHigh && i.Category == CategoryCertainty {
			high++
		}
	}
	assert.Greater(t, high, 0)
	assert.Greater(t, result.CertaintyScore, 0.0)
}

func TestLint_HighRiskSkippedWhenGroundedDirect(t *testing.T) {
	l := NewLinter(testRules())

	result := l.Lint("This definitively proves the point [1].", ClassificationResult{AnswerType: GroundedDirect})

	assert.False(t, result.NeedsRepair)
	for _, i := range result.Issues {
		assert.NotEqual(t, SeverityHigh, i.Severity)
	}
}

func TestLint_ContestedHighRiskUsesRewrite(t *testing.T) {
	l := NewLinter(testRules())

	result := l.Lint("This definitively proves the moral law is binding.",
		ClassificationResult{AnswerType: GroundedContested})

	require.True(t, result.NeedsRepair)
	assert.Equal(t, RepairRewrite, result.RepairStrategy)
}

func TestLint_MediumRiskOnlyInUngrounded(t *testing.T) {
	l := NewLinter(testRules())

	ungrounded := l.Lint("That reading is certainly older.", ClassificationResult{AnswerType: Ungrounded})
	var medium int
	for _, i := range ungrounded.Issues {
		if i.Severity == SeverityMedium {
			medium++
		}
	}
	assert.Greater(t, medium, 0)
	assert.False(t, ungrounded.NeedsRepair, "medium issues alone never trigger repair")

	grounded := l.Lint("That reading is certainly older.", ClassificationResult{AnswerType: GroundedDirect})
	assert.Empty(t, grounded.Issues)
}

func TestLint_AllowedAbsoluteExemptsSentence(t *testing.T) {
	rules := testRules()
	rules.AllowedAbsolutes = []epconfig.AllowedAbsolute{{Pattern: `the creed states`}}
	l := NewLinter(rules)

	result := l.Lint("The creed states this definitively proves nothing by itself.",
		ClassificationResult{AnswerType: Ungrounded})

	for _, i := range result.Issues {
		assert.NotEqual(t, SeverityHigh, i.Severity)
	}
}

func TestLint_HedgeOverloadFlagsClarity(t *testing.T) {
	l := NewLinter(testRules())

	result := l.Lint("It might possibly perhaps be the later reading.",
		ClassificationResult{AnswerType: Ungrounded})

	var clarity int
	for _, i := range result.Issues {
		if i.Category == CategoryClarity {
			clarity++
		}
	}
	require.Greater(t, clarity, 0)
	assert.False(t, result.NeedsRepair, "clarity issues alone never trigger repair")
	assert.Less(t, result.ClarityScore, 1.0)
}

func TestLint_CleanTextHasNoIssues(t *testing.T) {
	l := NewLinter(testRules())

	result := l.Lint("The manuscript evidence points toward an early date.",
		ClassificationResult{AnswerType: Ungrounded})

	assert.False(t, result.HasIssues)
	assert.False(t, result.NeedsRepair)
}
