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

// Package tamorcore is a personal research assistant core: a per-turn
// router over stateless specialized agents, a tiered long-term memory
// store, and an epistemic post-processing pipeline that classifies each
// answer by provenance and repairs overconfident claims before delivery.
//
// # Architecture
//
// One turn flows through:
//
//	RequestContext → Router → [deterministic gates | intent classification]
//	              → agent pipeline (researcher, writer, engineer, planner, archivist)
//	              → compose → epistemic classify/lint/anchor/repair → RouterResult
//
// The router is the only component that selects pipelines; agents never
// call each other. Memory injection happens before classification, and
// the Archivist updates the memory store at the turn's tail without
// blocking the response.
//
// # Using as a Go library
//
//	import (
//	    "github.com/ashestoaltar/tamor-core/pkg/router"
//	    "github.com/ashestoaltar/tamor-core/pkg/turn"
//	)
//
// Build a router.Router with router.New, then call HandleTurn with a
// turn.RequestContext per user message. The cmd/tamorcore CLI wires the
// full stack against local backends for manual verification.
//
// The core consumes narrow interfaces for its collaborators: an LLM
// gateway, an embedder, a vector store, and a SQL-backed memory store.
// File parsing, ingest, HTTP surfaces, and authentication are the host's
// concern.
package tamorcore
