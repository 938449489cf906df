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

	"github.com/ashestoaltar/tamor-core/pkg/turn"
)

func TestPipeline_OverconfidentUngroundedRewrite(t *testing.T) {
	p := NewPipeline(testRules())

	result := p.Process("This definitively proves X.", ClassifyContext{}, false)

	assert.Equal(t, "ungrounded", result.Metadata.AnswerType)
	assert.Empty(t, result.Metadata.Badge, "ungrounded never surfaces a badge")
	assert.True(t, result.Metadata.WasRepaired)
	assert.Equal(t, "This strongly suggests X.", result.ProcessedText)
	assert.Equal(t, "This definitively proves X.", result.OriginalText)
}

func TestPipeline_AnchorAttachmentEarnsGroundedBadge(t *testing.T) {
	p := NewPipeline(testRules())
	p.SetSessionContext([]turn.Chunk{
		{FileID: "f1", FileName: "survey.pdf", Content: "early dating evidence from the papyri record", Score: 0.9},
	}, false)

	result := p.Process("This definitively proves the early dating evidence.", ClassifyContext{}, false)

	require.NotNil(t, result.Anchor)
	require.True(t, result.Anchor.Found)
	assert.True(t, result.Metadata.WasRepaired)
	assert.Contains(t, result.ProcessedText, "[survey.pdf]")
	assert.Equal(t, "grounded", result.Metadata.Badge, "anchored evidence upgrades the badge")
}

func TestPipeline_ContestedTopicBadge(t *testing.T) {
	p := NewPipeline(testRules())

	result := p.Process("According to the commentary, the moral law remains binding.", ClassifyContext{}, false)

	assert.Equal(t, "contested", result.Metadata.Badge)
	assert.Equal(t, "C2", result.Metadata.ContestationLevel)
	assert.Equal(t, []string{"torah_observance"}, result.Metadata.ContestedDomains)
	assert.NotEmpty(t, result.Metadata.AlternativePositions)
}

func TestPipeline_DeterministicBadge(t *testing.T) {
	p := NewPipeline(testRules())

	result := p.Process("There are 4 files in the project.", ClassifyContext{IsDeterministic: true}, false)

	assert.Equal(t, "deterministic", result.Metadata.Badge)
	assert.False(t, result.Metadata.WasRepaired)
	assert.Equal(t, result.OriginalText, result.ProcessedText)
}

func TestPipeline_CleanGroundedTextUntouched(t *testing.T) {
	p := NewPipeline(testRules())
	text := "According to the minutes, the vote carried narrowly."

	result := p.Process(text, ClassifyContext{}, false)

	assert.Equal(t, "grounded", result.Metadata.Badge)
	assert.Equal(t, text, result.ProcessedText)
	assert.False(t, result.Metadata.WasRepaired)
}

func TestPipeline_SkipRepairLeavesTextButKeepsMetadata(t *testing.T) {
	p := NewPipeline(testRules())
	text := "This definitively proves X."

	result := p.Process(text, ClassifyContext{}, true)

	assert.Equal(t, text, result.ProcessedText, "skipRepair must not modify the text")
	assert.Equal(t, "ungrounded", result.Metadata.AnswerType)
	assert.True(t, result.Metadata.HadIssues, "classification and linting still run")
}
