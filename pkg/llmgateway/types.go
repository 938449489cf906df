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

// Package llmgateway provides role-based, provider-agnostic chat completion
// with automatic provider fallback, retry/backoff inherited from
// pkg/httpclient, and local token accounting when a provider's response
// omits usage data.
package llmgateway

import "context"

// Message is a single role-tagged turn sent to a provider.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// ChatResult is what a successful provider call returns.
type ChatResult struct {
	Text       string
	TokensUsed int
	Model      string
}

// Provider is the interface every LLM backend implements. It is
// deliberately narrower than a tool-calling agent runtime: this core's
// agents are single-shot prompt/response processors.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (ChatResult, error)
	ModelName() string
	Close() error
}
