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

package llmgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ashestoaltar/tamor-core/pkg/config"
	"github.com/ashestoaltar/tamor-core/pkg/httpclient"
)

const ollamaDefaultHost = "http://localhost:11434"

// OllamaProvider implements Provider for a local Ollama server. It has no
// API key and no documented rate-limit headers, so it installs no header
// parser and relies on the client's DefaultStrategy, with only a plain
// Retry-After honored on retry.
type OllamaProvider struct {
	cfg        config.ProviderConfig
	httpClient *httpclient.Client
}

func NewOllamaProvider(cfg config.ProviderConfig) *OllamaProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = ollamaDefaultHost
	}
	return &OllamaProvider{
		cfg: cfg,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second}),
			httpclient.WithMaxRetries(cfg.MaxRetries),
		),
	}
}

func (p *OllamaProvider) ModelName() string { return p.cfg.Model }
func (p *OllamaProvider) Close() error      { return nil }

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options,omitempty"`
}

type ollamaResponse struct {
	Message        ollamaMessage `json:"message"`
	PromptEvalCount int          `json:"prompt_eval_count"`
	EvalCount       int          `json:"eval_count"`
	Error           string       `json:"error,omitempty"`
}

func (p *OllamaProvider) Chat(ctx context.Context, messages []Message) (ChatResult, error) {
	msgs := make([]ollamaMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, ollamaMessage{Role: m.Role, Content: m.Content})
	}

	reqBody := ollamaRequest{
		Model:    p.cfg.Model,
		Messages: msgs,
		Stream:   false,
		Options:  ollamaOptions{Temperature: p.cfg.Temperature},
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return ChatResult{}, fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return ChatResult{}, fmt.Errorf("build ollama request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil }
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return ChatResult{}, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return ChatResult{}, fmt.Errorf("ollama status %d: %s", resp.StatusCode, string(body))
	}

	var out ollamaResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return ChatResult{}, fmt.Errorf("decode ollama response: %w", err)
	}
	if out.Error != "" {
		return ChatResult{}, fmt.Errorf("ollama error: %s", out.Error)
	}

	tokens := out.PromptEvalCount + out.EvalCount
	if tokens == 0 {
		tokens = estimateMessagesTokens(messages) + estimateTokens(out.Message.Content)
	}

	return ChatResult{Text: out.Message.Content, TokensUsed: tokens, Model: p.cfg.Model}, nil
}
