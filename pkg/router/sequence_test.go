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

package router

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashestoaltar/tamor-core/pkg/intent"
	"github.com/ashestoaltar/tamor-core/pkg/turn"
)

func TestSelectSequence(t *testing.T) {
	tests := []struct {
		name    string
		intents []intent.Intent
		message string
		project string
		want    []string
	}{
		{
			name:    "no intents means single LLM",
			intents: nil,
			message: "hello",
			want:    nil,
		},
		{
			name:    "memory routes to archivist",
			intents: []intent.Intent{intent.Memory},
			message: "Remember that I like tea",
			want:    []string{"archivist"},
		},
		{
			name:    "plan routes to planner",
			intents: []intent.Intent{intent.Plan},
			message: "I'd like to write an article connecting X to Y",
			want:    []string{"planner"},
		},
		{
			name:    "code without project reference",
			intents: []intent.Intent{intent.Code},
			message: "implement a rate limiter",
			want:    []string{"engineer"},
		},
		{
			name:    "code referencing the project's code",
			intents: []intent.Intent{intent.Code},
			message: "fix the bug in the code following our pattern",
			want:    []string{"researcher", "engineer"},
		},
		{
			name:    "scholarly write chains researcher first",
			intents: []intent.Intent{intent.Write},
			message: "Write a teaching on Romans 8 and the covenant",
			want:    []string{"researcher", "writer"},
		},
		{
			name:    "plain write goes straight to writer",
			intents: []intent.Intent{intent.Write},
			message: "Write a short post about morning routines",
			want:    []string{"writer"},
		},
		{
			name:    "write with project context researches first",
			intents: []intent.Intent{intent.Write},
			message: "Write a summary post",
			project: "p1",
			want:    []string{"researcher", "writer"},
		},
		{
			name:    "research without project or scholarly topic falls to single LLM",
			intents: []intent.Intent{intent.Research},
			message: "look up the tallest mountain",
			want:    nil,
		},
		{
			name:    "scholarly research runs researcher alone",
			intents: []intent.Intent{intent.Research},
			message: "What does Romans 8 say about the law?",
			want:    []string{"researcher"},
		},
		{
			name:    "research plus write adds the writer",
			intents: []intent.Intent{intent.Research, intent.Write},
			message: "analyze the sources in the project",
			project: "p1",
			want:    []string{"researcher", "writer"},
		},
		{
			name:    "summarize with project",
			intents: []intent.Intent{intent.Summarize},
			message: "Summarize the project.",
			project: "p1",
			want:    []string{"researcher", "writer"},
		},
		{
			name:    "summarize without project falls to single LLM",
			intents: []intent.Intent{intent.Summarize},
			message: "summarize our chat",
			want:    nil,
		},
		{
			name:    "explain with scholarly vocabulary",
			intents: []intent.Intent{intent.Explain},
			message: "explain the Hebrew word for covenant",
			want:    []string{"researcher", "writer"},
		},
		{
			name:    "explain without grounding falls to single LLM",
			intents: []intent.Intent{intent.Explain},
			message: "explain how rainbows form",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqCtx := &turn.RequestContext{UserMessage: tt.message, ProjectID: tt.project}
			require.Equal(t, tt.want, selectSequence(tt.intents, reqCtx))
		})
	}
}

func TestIsBroadIntent(t *testing.T) {
	require.True(t, isBroadIntent([]intent.Intent{intent.Research}))
	require.True(t, isBroadIntent([]intent.Intent{intent.Summarize, intent.Code}))
	require.False(t, isBroadIntent([]intent.Intent{intent.Code, intent.Research}))
	require.False(t, isBroadIntent(nil))
}

func TestNeedsRetrieval(t *testing.T) {
	withProject := &turn.RequestContext{ProjectID: "p1"}
	without := &turn.RequestContext{}

	require.True(t, needsRetrieval([]intent.Intent{intent.Code}, withProject))
	require.True(t, needsRetrieval([]intent.Intent{intent.Research}, without))
	require.False(t, needsRetrieval([]intent.Intent{intent.Code}, without))
}
