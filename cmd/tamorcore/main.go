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

// Command tamorcore is a local harness for the research-assistant core.
// It is a verification surface, not a product: it wires the full
// router/memory/retrieval stack against local backends and runs single
// turns from the command line.
//
// Usage:
//
//	tamorcore turn --config config.yaml --user alice "Summarize the project"
//	tamorcore memories --config config.yaml --user alice
//	tamorcore validate --config config.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/ashestoaltar/tamor-core/internal/logging"
	"github.com/ashestoaltar/tamor-core/pkg/agents"
	"github.com/ashestoaltar/tamor-core/pkg/config"
	"github.com/ashestoaltar/tamor-core/pkg/embedder"
	epconfig "github.com/ashestoaltar/tamor-core/pkg/epistemic/config"
	"github.com/ashestoaltar/tamor-core/pkg/hermeneutic"
	hmconfig "github.com/ashestoaltar/tamor-core/pkg/hermeneutic/config"
	"github.com/ashestoaltar/tamor-core/pkg/intent"
	"github.com/ashestoaltar/tamor-core/pkg/llmgateway"
	"github.com/ashestoaltar/tamor-core/pkg/memory"
	"github.com/ashestoaltar/tamor-core/pkg/retrieval"
	"github.com/ashestoaltar/tamor-core/pkg/router"
	"github.com/ashestoaltar/tamor-core/pkg/turn"
	"github.com/ashestoaltar/tamor-core/pkg/vectorstore"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Turn     TurnCmd     `cmd:"" help:"Run a single turn through the core."`
	Memories MemoriesCmd `cmd:"" help:"List a user's stored memories."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration file."`

	Config   string `short:"c" help:"Path to config file." type:"path" default:"tamorcore.yaml"`
	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("tamorcore version %s\n", version)
	return nil
}

// ValidateCmd parses and validates the configuration, printing a
// confirmation line on success.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if _, err := config.Load(cli.Config); err != nil {
		return err
	}
	fmt.Println("Configuration is valid.")
	return nil
}

// TurnCmd runs one turn and prints the result.
type TurnCmd struct {
	Message []string `arg:"" help:"The user message."`

	User    string `help:"User identifier."`
	Project string `help:"Project identifier (enables project retrieval)."`
	Profile string `help:"Hermeneutic profile id for this conversation."`
	Trace   bool   `help:"Print the per-turn trace."`
}

func (c *TurnCmd) Run(cli *CLI) error {
	core, err := buildCore(cli)
	if err != nil {
		return err
	}
	defer core.close()

	reqCtx := &turn.RequestContext{
		UserMessage:        strings.Join(c.Message, " "),
		UserID:             c.User,
		ProjectID:          c.Project,
		HermeneuticProfile: c.Profile,
		Mode:               "Auto",
	}

	result := core.router.HandleTurn(context.Background(), reqCtx, c.Trace)

	fmt.Printf("handled_by: %s\n", result.HandledBy)
	if result.Epistemic != nil && result.Epistemic.Badge != "" {
		fmt.Printf("badge: %s\n", result.Epistemic.Badge)
	}
	fmt.Println()
	if result.Content != "" {
		fmt.Println(result.Content)
	} else {
		fmt.Println("(empty response: caller would run its legacy single-LLM flow)")
	}

	if c.Trace && result.Trace != nil {
		t := result.Trace
		fmt.Printf("\n--- trace %s ---\n", t.ID)
		fmt.Printf("route: %s  intents: %v (%s)  sequence: %v\n", t.RouteType, t.Intents, t.IntentSource, t.AgentSequence)
		fmt.Printf("retrieval: %v (%d chunks)  model: %s\n", t.RetrievalRan, t.RetrievedN, t.Model)
		for _, s := range t.Steps {
			fmt.Printf("  %s: %dms", s.Agent, s.DurationMS)
			if s.Error != "" {
				fmt.Printf(" (error: %s)", s.Error)
			}
			fmt.Println()
		}
		for _, e := range t.Errors {
			fmt.Printf("  error: %s\n", e)
		}
	}
	return nil
}

// MemoriesCmd lists a user's memories by tier.
type MemoriesCmd struct {
	User string `help:"User identifier." required:""`
	Tier string `help:"Filter by tier (core, long_term, episodic)."`
}

func (c *MemoriesCmd) Run(cli *CLI) error {
	core, err := buildCore(cli)
	if err != nil {
		return err
	}
	defer core.close()

	memories, err := core.store.List(context.Background(), memory.ListFilters{
		UserID: c.User,
		Tier:   memory.Tier(c.Tier),
	})
	if err != nil {
		return err
	}
	if len(memories) == 0 {
		fmt.Println("No memories stored.")
		return nil
	}
	for _, m := range memories {
		fmt.Printf("[%s/%s] (%.2f) %s\n", m.Tier, m.Category, m.Confidence, m.Content)
	}
	return nil
}

// core bundles the wired subsystems for one CLI invocation.
type core struct {
	router  *router.Router
	store   *memory.Store
	gateway *llmgateway.Gateway
}

func (c *core) close() {
	_ = c.router.Close()
	_ = c.store.Close()
	_ = c.gateway.Close()
}

// buildCore wires the full stack from configuration: gateway, embedder,
// vector store, memory store, retrieval, classifier, agents, epistemic
// rules, overlay, and the router on top.
func buildCore(cli *CLI) (*core, error) {
	_ = godotenv.Load()

	level, err := logging.ParseLevel(cli.LogLevel)
	if err != nil {
		return nil, err
	}
	logging.Init(level, os.Stderr, "simple")

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}

	gateway, err := llmgateway.NewGateway(cfg)
	if err != nil {
		return nil, fmt.Errorf("build gateway: %w", err)
	}

	emb := embedder.NewDeterministicEmbedder(256)

	store, err := memory.Open(cfg.Memory, emb)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}

	vstore, err := vectorstore.New(&cfg.VectorStore)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	coordinator := retrieval.New(vstore, emb, cfg.Retrieval)

	classifier := intent.New(cfg.Classifier, gateway)

	rules := epconfig.DefaultRules()
	if cfg.EpistemicRules != "" {
		rules, err = epconfig.Load(cfg.EpistemicRules)
		if err != nil {
			return nil, fmt.Errorf("load epistemic rules: %w", err)
		}
	}

	var overlay *hermeneutic.Overlay
	if cfg.HermeneuticDir != "" {
		constraints := hmconfig.DefaultConstraints()
		if cfg.HermeneuticConstraints != "" {
			constraints, err = hmconfig.LoadConstraints(cfg.HermeneuticConstraints)
			if err != nil {
				return nil, fmt.Errorf("load hermeneutic constraints: %w", err)
			}
		}
		overlay = hermeneutic.NewOverlay(constraints, cfg.HermeneuticDir)
	}

	rt := router.New(router.Options{
		Gateway:    gateway,
		Classifier: classifier,
		Memory:     store,
		Retriever:  coordinator,
		Agents: []agents.Agent{
			agents.NewResearcher(gateway),
			agents.NewWriter(gateway),
			agents.NewEngineer(gateway),
			agents.NewPlanner(gateway),
			agents.NewArchivist(gateway, store, store, store),
		},
		EpistemicRules:     rules,
		Overlay:            overlay,
		MaxContextMemories: cfg.Memory.MaxContextMemories,
	})

	return &core{router: rt, store: store, gateway: gateway}, nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("tamorcore"),
		kong.Description("Local harness for the tamor research-assistant core."),
		kong.UsageOnError(),
	)
	if err := ctx.Run(cli); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
