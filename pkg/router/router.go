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

// Package router is the per-turn orchestrator: deterministic gates, intent
// classification, agent sequencing, retrieval, pipeline execution, response
// composition, epistemic processing, and tracing. It is the only component
// that selects pipelines; agents never decide routing.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashestoaltar/tamor-core/pkg/agents"
	"github.com/ashestoaltar/tamor-core/pkg/config"
	"github.com/ashestoaltar/tamor-core/pkg/epistemic"
	epconfig "github.com/ashestoaltar/tamor-core/pkg/epistemic/config"
	"github.com/ashestoaltar/tamor-core/pkg/hermeneutic"
	"github.com/ashestoaltar/tamor-core/pkg/intent"
	"github.com/ashestoaltar/tamor-core/pkg/llmgateway"
	"github.com/ashestoaltar/tamor-core/pkg/memory"
	"github.com/ashestoaltar/tamor-core/pkg/turn"
)

const apologyText = "Something went wrong while handling that. Please try again."

// ChatService is the slice of the LLM gateway the router calls directly
// (the single-LLM path and the classifier warm-up). Satisfied by
// *llmgateway.Gateway.
type ChatService interface {
	Chat(ctx context.Context, role config.Role, messages []llmgateway.Message) (llmgateway.ChatResult, error)
	IsAvailable(role config.Role) bool
}

// MemorySource supplies the turn's context memories. Satisfied by
// *memory.Store.
type MemorySource interface {
	GetMemoriesForContext(ctx context.Context, message, userID string, maxTotal int) ([]memory.Scored, error)
}

// Retriever is the retrieval coordinator's surface. Satisfied by
// *retrieval.Coordinator.
type Retriever interface {
	Retrieve(ctx context.Context, query, projectID string, fileCount int, broad bool) ([]turn.Chunk, error)
}

// ProjectStats reports per-project facts the router needs for the
// retrieval K formula. Optional; a nil ProjectStats means file count 0.
type ProjectStats interface {
	FileCount(ctx context.Context, projectID string) (int, error)
}

// Options wires a Router's collaborators. Gateway and Classifier are
// required; everything else degrades gracefully when nil.
type Options struct {
	Gateway    ChatService
	Classifier *intent.Classifier
	Memory     MemorySource
	Retriever  Retriever
	Projects   ProjectStats
	Agents     []agents.Agent
	Gates      []Gate

	// EpistemicRules drives the post-generation pipeline. A per-turn
	// epistemic.Pipeline is constructed from these rules so concurrent
	// turns never share anchor session state. Nil disables the pipeline.
	EpistemicRules *epconfig.Rules
	// AnchorSources are registered on each turn's pipeline in addition to
	// the session-context source (e.g. a library cache, a scripture
	// reference cache).
	AnchorSources map[string]epistemic.SourceSearcher

	Overlay *hermeneutic.Overlay

	// TurnTimeout bounds a whole turn. Zero means the caller's context
	// deadline (if any) is the only bound.
	TurnTimeout time.Duration
	// MaxContextMemories caps memory injection per turn (default 15).
	MaxContextMemories int
}

// Router orchestrates one turn at a time. It holds no per-turn state;
// concurrent turns share only the classifier's cache and the memory store,
// both internally synchronized.
type Router struct {
	opts   Options
	byName map[string]agents.Agent

	wg sync.WaitGroup
}

// warmUpOnce fires the classifier warm-up at most once per process, on
// first router construction.
var warmUpOnce sync.Once

// New builds a Router. The first construction with a gateway that has a
// classifier provider fires a one-shot background warm-up so the first
// real classification doesn't pay the model's cold-start cost.
func New(opts Options) *Router {
	if opts.MaxContextMemories == 0 {
		opts.MaxContextMemories = 15
	}
	byName := make(map[string]agents.Agent, len(opts.Agents))
	for _, a := range opts.Agents {
		byName[a.Name()] = a
	}
	r := &Router{opts: opts, byName: byName}

	if opts.Gateway != nil && opts.Gateway.IsAvailable(config.RoleClassifier) {
		warmUpOnce.Do(func() {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				_, err := opts.Gateway.Chat(ctx, config.RoleClassifier, []llmgateway.Message{
					{Role: "user", Content: "Respond with the single word: ready"},
				})
				if err != nil {
					slog.Debug("classifier warm-up failed", "error", err)
				}
			}()
		})
	}
	return r
}

// Close waits for any in-flight background archival to finish.
func (r *Router) Close() error {
	r.wg.Wait()
	return nil
}

// HandleTurn runs the full per-turn algorithm. It never returns an error:
// internal failures degrade per the error-handling contract, and an
// unhandled panic becomes a HandledError result with a user-safe apology.
func (r *Router) HandleTurn(ctx context.Context, reqCtx *turn.RequestContext, includeTrace bool) (result turn.RouterResult) {
	trace := &turn.Trace{ID: uuid.NewString()}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("unhandled panic in turn", "trace_id", trace.ID, "panic", rec)
			trace.Errors = append(trace.Errors, fmt.Sprintf("panic: %v", rec))
			result = turn.RouterResult{
				Content:   apologyText,
				HandledBy: turn.HandledError,
			}
			if includeTrace {
				result.Trace = trace
			}
		}
	}()

	if r.opts.TurnTimeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.opts.TurnTimeout)
			defer cancel()
		}
	}

	message := strings.TrimSpace(reqCtx.UserMessage)
	if message == "" {
		trace.RouteType = "llm_single"
		trace.IntentSource = string(intent.SourceNone)
		return r.finish(turn.RouterResult{HandledBy: turn.HandledPassthrough}, trace, includeTrace)
	}

	// Step 1: deterministic gates bypass classification, retrieval, and
	// all LLMs.
	if text, gateName, ok := r.matchGate(ctx, reqCtx, message); ok {
		trace.RouteType = "deterministic"
		trace.IntentSource = string(intent.SourceNone)
		res := turn.RouterResult{Content: text, HandledBy: turn.HandledDeterministic}
		res.Content, res.Epistemic = r.applyEpistemic(ctx, res.Content, nil, true, gateName, reqCtx, trace)
		return r.finish(res, trace, includeTrace)
	}

	r.injectMemories(ctx, reqCtx, trace)

	// Step 2: classify.
	intents, source, err := r.opts.Classifier.Classify(ctx, message)
	if err != nil {
		// Classifier failure is silent; an empty intent list falls through
		// to the single-LLM path.
		trace.Errors = append(trace.Errors, "classify: "+err.Error())
	}
	trace.IntentSource = string(source)
	for _, in := range intents {
		trace.Intents = append(trace.Intents, string(in))
	}

	// Step 3: select the agent sequence.
	sequence := selectSequence(intents, reqCtx)
	trace.AgentSequence = sequence

	r.applyOverlayBefore(reqCtx, trace)

	if len(sequence) == 0 {
		return r.finish(r.singleLLM(ctx, reqCtx, trace), trace, includeTrace)
	}

	// Step 4: retrieval.
	if needsRetrieval(intents, reqCtx) {
		r.runRetrieval(ctx, reqCtx, message, intents, trace)
	}

	// Step 5: execute the pipeline. Agent errors are recorded but never
	// short-circuit: a later agent may still salvage the turn.
	trace.RouteType = "agent_pipeline"
	var outputs []turn.AgentOutput
	for _, name := range sequence {
		agent, ok := r.byName[name]
		if !ok {
			trace.Errors = append(trace.Errors, "no agent registered for "+name)
			continue
		}
		reqCtx.PriorOutputs = outputs
		out := r.runAgent(ctx, agent, reqCtx)
		outputs = append(outputs, out)

		step := turn.TraceStep{Agent: name, DurationMS: out.ProcessingMS}
		if out.Err != nil {
			step.Error = out.Err.Error()
			trace.Errors = append(trace.Errors, name+": "+out.Err.Error())
		}
		trace.Steps = append(trace.Steps, step)
		if out.ModelUsed != "" {
			trace.Provider = out.ProviderUsed
			trace.Model = out.ModelUsed
		}
	}
	reqCtx.PriorOutputs = outputs

	if len(outputs) == 0 {
		return r.finish(r.singleLLM(ctx, reqCtx, trace), trace, includeTrace)
	}

	// Step 6: compose the final text.
	text, citations := compose(reqCtx, outputs)

	res := turn.RouterResult{
		Content:      text,
		AgentOutputs: outputs,
		Citations:    citations,
		HandledBy:    turn.HandledAgentPipeline,
	}
	res.Content, res.Epistemic = r.applyEpistemic(ctx, res.Content, citations, false, "", reqCtx, trace)
	res.Content = r.applyOverlayAfter(res.Content, reqCtx, trace)

	r.maybeAutoArchive(reqCtx, sequence)

	return r.finish(res, trace, includeTrace)
}

// finish attaches the trace when requested. Step 7 of the turn algorithm.
func (r *Router) finish(res turn.RouterResult, trace *turn.Trace, includeTrace bool) turn.RouterResult {
	if includeTrace {
		res.Trace = trace
	}
	return res
}

// runAgent executes one agent with panic isolation: a misbehaving agent
// becomes an errored output, never a crashed turn.
func (r *Router) runAgent(ctx context.Context, agent agents.Agent, reqCtx *turn.RequestContext) (out turn.AgentOutput) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("agent panicked", "agent", agent.Name(), "panic", rec)
			out = turn.AgentOutput{
				AgentName: agent.Name(),
				Kind:      turn.ContentText,
				Content:   "",
				Err:       fmt.Errorf("agent %s panicked: %v", agent.Name(), rec),
			}
		}
	}()
	return agent.Run(ctx, reqCtx)
}

// injectMemories fills reqCtx.Memories from the memory store. Memory
// failures never fail the turn.
func (r *Router) injectMemories(ctx context.Context, reqCtx *turn.RequestContext, trace *turn.Trace) {
	if r.opts.Memory == nil || reqCtx.UserID == "" {
		return
	}
	scored, err := r.opts.Memory.GetMemoriesForContext(ctx, reqCtx.UserMessage, reqCtx.UserID, r.opts.MaxContextMemories)
	if err != nil {
		slog.Warn("memory context lookup failed", "trace_id", trace.ID, "error", err)
		trace.Errors = append(trace.Errors, "memory: "+err.Error())
		return
	}
	for _, m := range scored {
		reqCtx.Memories = append(reqCtx.Memories, turn.MemoryRef{
			ID:       m.ID,
			Category: m.Category,
			Content:  m.Content,
			Tier:     string(m.Tier),
			Score:    m.Score,
		})
	}
}

// runRetrieval runs the coordinator and substitutes an empty result set on
// failure.
func (r *Router) runRetrieval(ctx context.Context, reqCtx *turn.RequestContext, message string, intents []intent.Intent, trace *turn.Trace) {
	if r.opts.Retriever == nil {
		return
	}
	fileCount := 0
	if reqCtx.HasProjectContext() && r.opts.Projects != nil {
		n, err := r.opts.Projects.FileCount(ctx, reqCtx.ProjectID)
		if err != nil {
			slog.Warn("project file count failed", "trace_id", trace.ID, "error", err)
		} else {
			fileCount = n
		}
	}
	chunks, err := r.opts.Retriever.Retrieve(ctx, message, reqCtx.ProjectID, fileCount, isBroadIntent(intents))
	if err != nil {
		slog.Warn("retrieval failed", "trace_id", trace.ID, "error", err)
		trace.Errors = append(trace.Errors, "retrieval: "+err.Error())
		return
	}
	reqCtx.RetrievedChunks = chunks
	trace.RetrievalRan = true
	trace.RetrievedN = len(chunks)
}

// applyOverlayBefore augments the system prompt with the hermeneutic
// overlay's pre-answer directives when the conversation declares a valid
// profile. Scholarly classification alone never activates the overlay.
func (r *Router) applyOverlayBefore(reqCtx *turn.RequestContext, trace *turn.Trace) {
	if r.opts.Overlay == nil || reqCtx.HermeneuticProfile == "" {
		return
	}
	if !r.opts.Overlay.IsValidProfile(reqCtx.HermeneuticProfile) {
		trace.Warnings = append(trace.Warnings, "unknown hermeneutic profile "+reqCtx.HermeneuticProfile)
		return
	}
	before, err := r.opts.Overlay.Before(reqCtx.UserMessage, reqCtx.HermeneuticProfile)
	if err != nil {
		trace.Errors = append(trace.Errors, "overlay: "+err.Error())
		return
	}
	reqCtx.SystemPromptAdd = before.SystemPromptAdd
}

// applyOverlayAfter appends the overlay's framework disclosure and records
// its warnings in the trace.
func (r *Router) applyOverlayAfter(text string, reqCtx *turn.RequestContext, trace *turn.Trace) string {
	if r.opts.Overlay == nil || reqCtx.HermeneuticProfile == "" || text == "" {
		return text
	}
	if !r.opts.Overlay.IsValidProfile(reqCtx.HermeneuticProfile) {
		return text
	}
	after := r.opts.Overlay.After(text)
	trace.Warnings = append(trace.Warnings, after.Warnings...)
	if after.DisclosureRequired && after.DisclosureText != "" {
		text = text + "\n\n" + after.DisclosureText
	}
	return text
}

// applyEpistemic runs classify -> lint -> anchor -> repair over the final
// text. A fresh pipeline per turn keeps anchor session state shared-nothing
// across concurrent turns. A pipeline panic returns the unmodified text
// with no badge.
func (r *Router) applyEpistemic(ctx context.Context, text string, citations []turn.Citation, deterministic bool, queryType string, reqCtx *turn.RequestContext, trace *turn.Trace) (out string, meta *turn.EpistemicMeta) {
	out = text
	if r.opts.EpistemicRules == nil || text == "" {
		return out, nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("epistemic pipeline panicked", "trace_id", trace.ID, "panic", rec)
			trace.Errors = append(trace.Errors, fmt.Sprintf("epistemic: panic: %v", rec))
			out, meta = text, nil
		}
	}()

	pipeline := epistemic.NewPipeline(r.opts.EpistemicRules)
	pipeline.SetSessionContext(reqCtx.RetrievedChunks, false)
	for name, src := range r.opts.AnchorSources {
		pipeline.RegisterAnchorSource(name, src)
	}

	var sources []string
	seen := map[string]bool{}
	for _, c := range citations {
		if c.FileName != "" && !seen[c.FileName] {
			seen[c.FileName] = true
			sources = append(sources, c.FileName)
		}
	}

	// Near the turn deadline the anchor/repair phase is skipped to
	// preserve responsiveness; classification and linting still run.
	skipRepair := false
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < 2*time.Second {
		skipRepair = true
	}

	result := pipeline.Process(text, epistemic.ClassifyContext{
		IsDeterministic: deterministic,
		QueryType:       queryType,
		Sources:         sources,
	}, skipRepair)

	meta = &turn.EpistemicMeta{
		Badge:                result.Metadata.Badge,
		AnswerType:           result.Metadata.AnswerType,
		ContestationLevel:    result.Metadata.ContestationLevel,
		ContestedDomains:     result.Metadata.ContestedDomains,
		AlternativePositions: result.Metadata.AlternativePositions,
		Sources:              result.Metadata.Sources,
		WasRepaired:          result.Metadata.WasRepaired,
		CertaintyScore:       result.Metadata.CertaintyScore,
		ClarityScore:         result.Metadata.ClarityScore,
	}
	return result.ProcessedText, meta
}

// singleLLM is the no-agent path. This core owns it outright: when a
// general-role provider is configured it answers directly, otherwise it
// returns the passthrough result that tells the caller to run its legacy
// flow.
func (r *Router) singleLLM(ctx context.Context, reqCtx *turn.RequestContext, trace *turn.Trace) turn.RouterResult {
	trace.RouteType = "llm_single"

	if r.opts.Gateway == nil || !r.opts.Gateway.IsAvailable(config.RoleGeneral) {
		return turn.RouterResult{HandledBy: turn.HandledPassthrough}
	}

	systemPrompt := generalSystemPrompt
	if block := formatMemoryBlock(reqCtx.Memories); block != "" {
		systemPrompt += "\n\n" + block
	}
	if reqCtx.SystemPromptAdd != "" {
		systemPrompt += "\n\n" + reqCtx.SystemPromptAdd
	}

	messages := []llmgateway.Message{{Role: "system", Content: systemPrompt}}
	history := reqCtx.History
	if len(history) > 10 {
		history = history[len(history)-10:]
	}
	for _, h := range history {
		messages = append(messages, llmgateway.Message{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, llmgateway.Message{Role: "user", Content: reqCtx.UserMessage})

	result, err := r.opts.Gateway.Chat(ctx, config.RoleGeneral, messages)
	if err != nil {
		slog.Warn("single-LLM path failed", "trace_id", trace.ID, "error", err)
		trace.Errors = append(trace.Errors, "llm_single: "+err.Error())
		return turn.RouterResult{HandledBy: turn.HandledPassthrough}
	}
	trace.Model = result.Model
	trace.Provider = result.Model

	res := turn.RouterResult{Content: result.Text, HandledBy: turn.HandledLLMSingle}
	res.Content, res.Epistemic = r.applyEpistemic(ctx, res.Content, nil, false, "", reqCtx, trace)
	res.Content = r.applyOverlayAfter(res.Content, reqCtx, trace)
	r.maybeAutoArchive(reqCtx, nil)
	return res
}

const generalSystemPrompt = `You are a thoughtful personal research assistant. Answer directly and honestly. If you are not certain of something, say so rather than overstating it. Keep the user's stored context in mind when it is relevant.`

// formatMemoryBlock renders injected memories the same way the memory
// store formats them for prompts: core first under "Always remember",
// everything else category-tagged under "Relevant context".
func formatMemoryBlock(memories []turn.MemoryRef) string {
	if len(memories) == 0 {
		return ""
	}
	var core, other []turn.MemoryRef
	for _, m := range memories {
		if m.Tier == string(memory.TierCore) {
			core = append(core, m)
		} else {
			other = append(other, m)
		}
	}
	var b strings.Builder
	b.WriteString("## What You Know About the User\n\n")
	if len(core) > 0 {
		b.WriteString("**Always remember:**\n")
		for _, m := range core {
			fmt.Fprintf(&b, "- %s\n", m.Content)
		}
		b.WriteString("\n")
	}
	if len(other) > 0 {
		b.WriteString("**Relevant context:**\n")
		for _, m := range other {
			fmt.Fprintf(&b, "- [%s] %s\n", m.Category, m.Content)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// maybeAutoArchive runs the Archivist as a bounded background step after
// turns that didn't already run it, so conversations build memory without
// blocking the response. Close waits for in-flight runs.
func (r *Router) maybeAutoArchive(reqCtx *turn.RequestContext, ranSequence []string) {
	archivist, ok := r.byName["archivist"]
	if !ok || reqCtx.UserID == "" {
		return
	}
	for _, name := range ranSequence {
		if name == "archivist" {
			return
		}
	}

	// Copy what the Archivist reads; the caller may reuse reqCtx.
	tail := &turn.RequestContext{
		UserMessage:    reqCtx.UserMessage,
		ConversationID: reqCtx.ConversationID,
		ProjectID:      reqCtx.ProjectID,
		UserID:         reqCtx.UserID,
		History:        append([]turn.Message{}, reqCtx.History...),
		Mode:           reqCtx.Mode,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("background archivist panicked", "panic", rec)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		out := archivist.Run(ctx, tail)
		if out.Err != nil {
			slog.Debug("background archivist run failed", "error", out.Err)
		}
	}()
}
