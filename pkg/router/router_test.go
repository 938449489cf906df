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

	"github.com/stretchr/testify/require"

	"github.com/ashestoaltar/tamor-core/pkg/agents"
	"github.com/ashestoaltar/tamor-core/pkg/config"
	"github.com/ashestoaltar/tamor-core/pkg/embedder"
	epconfig "github.com/ashestoaltar/tamor-core/pkg/epistemic/config"
	"github.com/ashestoaltar/tamor-core/pkg/intent"
	"github.com/ashestoaltar/tamor-core/pkg/llmgateway"
	"github.com/ashestoaltar/tamor-core/pkg/memory"
	"github.com/ashestoaltar/tamor-core/pkg/turn"
)

type fakeChat struct {
	available map[config.Role]bool
	reply     string
	calls     int
	err       error
}

func (f *fakeChat) Chat(ctx context.Context, role config.Role, messages []llmgateway.Message) (llmgateway.ChatResult, error) {
	f.calls++
	if f.err != nil {
		return llmgateway.ChatResult{}, f.err
	}
	return llmgateway.ChatResult{Text: f.reply, Model: "fake-model"}, nil
}

func (f *fakeChat) IsAvailable(role config.Role) bool { return f.available[role] }

type fakeAgent struct {
	name string
	run  func(reqCtx *turn.RequestContext) turn.AgentOutput
}

func (f *fakeAgent) Name() string                              { return f.name }
func (f *fakeAgent) CanHandle(intents []intent.Intent) bool    { return true }
func (f *fakeAgent) Run(ctx context.Context, reqCtx *turn.RequestContext) turn.AgentOutput {
	return f.run(reqCtx)
}

func textAgent(name, text string, final bool) *fakeAgent {
	return &fakeAgent{name: name, run: func(*turn.RequestContext) turn.AgentOutput {
		return turn.AgentOutput{AgentName: name, Kind: turn.ContentText, Content: text, Final: final}
	}}
}

type fakeRetriever struct {
	chunks []turn.Chunk
	err    error

	gotProjectID string
	gotFileCount int
	gotBroad     bool
	called       bool
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query, projectID string, fileCount int, broad bool) ([]turn.Chunk, error) {
	f.called = true
	f.gotProjectID = projectID
	f.gotFileCount = fileCount
	f.gotBroad = broad
	return f.chunks, f.err
}

type fakeProjects struct{ n int }

func (f *fakeProjects) FileCount(ctx context.Context, projectID string) (int, error) {
	return f.n, nil
}

type fakeCounter struct{ n int }

func (f *fakeCounter) PendingTaskCount(ctx context.Context, projectID, userID string) (int, error) {
	return f.n, nil
}

func heuristicClassifier() *intent.Classifier {
	return intent.New(config.ClassifierConfig{}, nil)
}

func newTestStore(t *testing.T) *memory.Store {
	t.Helper()
	cfg := config.MemoryConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:router_%s?mode=memory&cache=shared", t.Name()),
	}
	cfg.SetDefaults()
	s, err := memory.Open(cfg, embedder.NewDeterministicEmbedder(32))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHandleTurn_EmptyMessage(t *testing.T) {
	r := New(Options{Classifier: heuristicClassifier()})
	res := r.HandleTurn(context.Background(), &turn.RequestContext{UserMessage: "   "}, true)

	require.Equal(t, turn.HandledPassthrough, res.HandledBy)
	require.Empty(t, res.Content)
	require.NotNil(t, res.Trace)
}

func TestHandleTurn_DeterministicGate(t *testing.T) {
	chat := &fakeChat{available: map[config.Role]bool{}}
	r := New(Options{
		Gateway:        chat,
		Classifier:     heuristicClassifier(),
		Gates:          []Gate{TaskCountGate(&fakeCounter{n: 3})},
		EpistemicRules: epconfig.DefaultRules(),
	})

	res := r.HandleTurn(context.Background(), &turn.RequestContext{UserMessage: "How many tasks are left?"}, true)

	require.Equal(t, turn.HandledDeterministic, res.HandledBy)
	require.Equal(t, "There are 3 pending tasks.", res.Content)
	require.Zero(t, chat.calls, "deterministic gates must not invoke any LLM")
	require.Equal(t, "deterministic", res.Trace.RouteType)
	require.Empty(t, res.Trace.Steps)
	require.NotNil(t, res.Epistemic)
	require.Equal(t, "deterministic", res.Epistemic.Badge)
}

func TestHandleTurn_ExplicitRemember(t *testing.T) {
	store := newTestStore(t)
	r := New(Options{
		Classifier: heuristicClassifier(),
		Agents:     []agents.Agent{agents.NewArchivist(nil, store, store, store)},
	})

	ctx := context.Background()
	res := r.HandleTurn(ctx, &turn.RequestContext{
		UserMessage: "Remember that I prefer three-paragraph responses.",
		UserID:      "u1",
	}, true)

	require.Equal(t, turn.HandledAgentPipeline, res.HandledBy)
	require.Equal(t, []string{"archivist"}, res.Trace.AgentSequence)
	require.True(t, len(res.Content) >= 6 && res.Content[:6] == "Got it", res.Content)

	stored, err := store.List(ctx, memory.ListFilters{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "I prefer three-paragraph responses.", stored[0].Content)
	require.Equal(t, memory.TierLongTerm, stored[0].Tier)
	require.Equal(t, memory.SourceManual, stored[0].Source)
	require.GreaterOrEqual(t, stored[0].Confidence, 0.8)
}

func TestHandleTurn_PipelineOrderingAndRetrieval(t *testing.T) {
	retr := &fakeRetriever{chunks: []turn.Chunk{
		{FileID: "f1", FileName: "notes.md", Content: "alpha", Source: "project"},
	}}

	var writerSawPrior []turn.AgentOutput
	researcher := textAgent("researcher", "research output", false)
	writer := &fakeAgent{name: "writer", run: func(reqCtx *turn.RequestContext) turn.AgentOutput {
		writerSawPrior = append([]turn.AgentOutput{}, reqCtx.PriorOutputs...)
		return turn.AgentOutput{AgentName: "writer", Kind: turn.ContentText, Content: "final prose", Final: true}
	}}

	r := New(Options{
		Classifier: heuristicClassifier(),
		Retriever:  retr,
		Projects:   &fakeProjects{n: 7},
		Agents:     []agents.Agent{researcher, writer},
	})

	res := r.HandleTurn(context.Background(), &turn.RequestContext{
		UserMessage: "Summarize the project.",
		ProjectID:   "p1",
	}, true)

	require.Equal(t, turn.HandledAgentPipeline, res.HandledBy)
	require.Equal(t, []string{"researcher", "writer"}, res.Trace.AgentSequence)

	require.True(t, retr.called)
	require.Equal(t, "p1", retr.gotProjectID)
	require.Equal(t, 7, retr.gotFileCount)
	require.True(t, retr.gotBroad)
	require.True(t, res.Trace.RetrievalRan)
	require.Equal(t, 1, res.Trace.RetrievedN)

	require.Len(t, writerSawPrior, 1)
	require.Equal(t, "researcher", writerSawPrior[0].AgentName)

	require.Len(t, res.AgentOutputs, 2)
	require.Equal(t, "researcher", res.AgentOutputs[0].AgentName)
	require.Equal(t, "writer", res.AgentOutputs[1].AgentName)
	require.Equal(t, "final prose", res.Content)
}

func TestHandleTurn_AgentErrorDoesNotShortCircuit(t *testing.T) {
	failing := &fakeAgent{name: "researcher", run: func(*turn.RequestContext) turn.AgentOutput {
		return turn.AgentOutput{AgentName: "researcher", Kind: turn.ContentText, Content: "", Err: fmt.Errorf("provider down")}
	}}
	writer := textAgent("writer", "recovered prose", true)

	r := New(Options{
		Classifier: heuristicClassifier(),
		Agents:     []agents.Agent{failing, writer},
	})

	res := r.HandleTurn(context.Background(), &turn.RequestContext{
		UserMessage: "Summarize the project.",
		ProjectID:   "p1",
	}, true)

	require.Equal(t, turn.HandledAgentPipeline, res.HandledBy)
	require.Equal(t, "recovered prose", res.Content)
	require.NotEmpty(t, res.Trace.Errors)
}

func TestHandleTurn_AgentPanicBecomesError(t *testing.T) {
	panicking := &fakeAgent{name: "writer", run: func(*turn.RequestContext) turn.AgentOutput {
		panic("boom")
	}}

	r := New(Options{
		Classifier: heuristicClassifier(),
		Agents:     []agents.Agent{panicking},
	})

	res := r.HandleTurn(context.Background(), &turn.RequestContext{
		UserMessage: "Write about resilience",
	}, true)

	require.Equal(t, turn.HandledAgentPipeline, res.HandledBy)
	require.Len(t, res.AgentOutputs, 1)
	require.Error(t, res.AgentOutputs[0].Err)
}

func TestHandleTurn_SingleLLMPath(t *testing.T) {
	chat := &fakeChat{available: map[config.Role]bool{config.RoleGeneral: true}, reply: "Hi there."}
	r := New(Options{Gateway: chat, Classifier: heuristicClassifier()})

	res := r.HandleTurn(context.Background(), &turn.RequestContext{UserMessage: "hello again my friend"}, true)

	require.Equal(t, turn.HandledLLMSingle, res.HandledBy)
	require.Equal(t, "Hi there.", res.Content)
	require.Equal(t, "llm_single", res.Trace.RouteType)
}

func TestHandleTurn_PassthroughWhenNoGeneralProvider(t *testing.T) {
	chat := &fakeChat{available: map[config.Role]bool{}}
	r := New(Options{Gateway: chat, Classifier: heuristicClassifier()})

	res := r.HandleTurn(context.Background(), &turn.RequestContext{UserMessage: "hello again my friend"}, false)

	require.Equal(t, turn.HandledPassthrough, res.HandledBy)
	require.Empty(t, res.Content)
	require.Nil(t, res.Trace)
}

func TestHandleTurn_OverconfidentUngroundedRepair(t *testing.T) {
	writer := textAgent("writer", "This definitively proves X.", true)
	r := New(Options{
		Classifier:     heuristicClassifier(),
		Agents:         []agents.Agent{writer},
		EpistemicRules: epconfig.DefaultRules(),
	})

	res := r.HandleTurn(context.Background(), &turn.RequestContext{
		UserMessage: "Write about the topic",
	}, true)

	require.Equal(t, turn.HandledAgentPipeline, res.HandledBy)
	require.Equal(t, "This strongly suggests X.", res.Content)
	require.NotNil(t, res.Epistemic)
	require.Equal(t, "ungrounded", res.Epistemic.AnswerType)
	require.Empty(t, res.Epistemic.Badge, "ungrounded is never surfaced as a badge")
	require.True(t, res.Epistemic.WasRepaired)
}

func TestHandleTurn_MemoryInjection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, err := store.Add(ctx, "The user's name is Dana.", "identity", "u1", memory.SourceManual, memory.TierCore, 0.95)
	require.NoError(t, err)

	var sawMemories []turn.MemoryRef
	writer := &fakeAgent{name: "writer", run: func(reqCtx *turn.RequestContext) turn.AgentOutput {
		sawMemories = append([]turn.MemoryRef{}, reqCtx.Memories...)
		return turn.AgentOutput{AgentName: "writer", Kind: turn.ContentText, Content: "done", Final: true}
	}}

	r := New(Options{
		Classifier: heuristicClassifier(),
		Memory:     store,
		Agents:     []agents.Agent{writer},
	})

	res := r.HandleTurn(ctx, &turn.RequestContext{
		UserMessage: "Write about gardening",
		UserID:      "u1",
	}, false)

	require.Equal(t, turn.HandledAgentPipeline, res.HandledBy)
	require.Len(t, sawMemories, 1)
	require.Equal(t, "The user's name is Dana.", sawMemories[0].Content)
	require.Equal(t, string(memory.TierCore), sawMemories[0].Tier)
}
