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
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashestoaltar/tamor-core/pkg/turn"
)

func TestTaskCountGate_PatternAndResponse(t *testing.T) {
	gate := TaskCountGate(&fakeCounter{n: 0})

	for _, msg := range []string{
		"How many tasks are left?",
		"how many tasks remaining",
		"How many items?",
		"how many steps are pending...",
	} {
		assert.True(t, gate.Pattern.MatchString(msg), msg)
	}
	for _, msg := range []string{
		"How many tasks should a good plan have?",
		"tell me how many tasks are left",
	} {
		assert.False(t, gate.Pattern.MatchString(msg), msg)
	}

	text, err := gate.Respond(context.Background(), &turn.RequestContext{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "There are no pending tasks.", text)
}

type fakeLookup struct {
	entries map[string]string
}

func (f *fakeLookup) Lookup(ctx context.Context, userID, key string) (string, bool, error) {
	text, ok := f.entries[key]
	return text, ok, nil
}

func TestLookupGate(t *testing.T) {
	gate := LookupGate("drawing", &fakeLookup{entries: map[string]string{
		"the tabernacle": "Drawing: tabernacle floor plan, graphite, 2024.",
	}})

	match := gate.Pattern.FindStringSubmatch("Show me the drawing of the tabernacle.")
	require.NotNil(t, match)

	text, err := gate.Respond(context.Background(), &turn.RequestContext{UserID: "u1"}, match)
	require.NoError(t, err)
	assert.Equal(t, "Drawing: tabernacle floor plan, graphite, 2024.", text)

	miss := gate.Pattern.FindStringSubmatch("show me the drawing called the ark")
	require.NotNil(t, miss)
	text, err = gate.Respond(context.Background(), &turn.RequestContext{UserID: "u1"}, miss)
	require.NoError(t, err)
	assert.Contains(t, text, "don't have a drawing")
}

type failingCounter struct{}

func (failingCounter) PendingTaskCount(ctx context.Context, projectID, userID string) (int, error) {
	return 0, fmt.Errorf("task store unavailable")
}

func TestMatchGate_FailingGateFallsThrough(t *testing.T) {
	r := New(Options{
		Classifier: heuristicClassifier(),
		Gates:      []Gate{TaskCountGate(failingCounter{})},
	})

	res := r.HandleTurn(context.Background(), &turn.RequestContext{UserMessage: "How many tasks are left?"}, true)

	// The gate errored, so the turn falls through to normal routing; with
	// no agents and no general provider that ends in passthrough.
	assert.Equal(t, turn.HandledPassthrough, res.HandledBy)
}
