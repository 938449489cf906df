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
	"context"
	"fmt"
	"log/slog"

	"github.com/ashestoaltar/tamor-core/pkg/config"
	"github.com/ashestoaltar/tamor-core/pkg/registry"
)

// Registry looks providers up by the name they were configured under
// (e.g. "anthropic-main"), distinct from the provider Type.
type Registry = registry.Registry[Provider]

// Gateway resolves a role (researcher, writer, classifier, ...) to an
// ordered list of named providers and calls them in order, falling
// through to the next on failure.
type Gateway struct {
	providers *registry.BaseRegistry[Provider]
	roles     map[config.Role]config.RoleConfig
}

// NewGateway builds provider instances from cfg.Providers and wires the
// role→provider fallback lists from cfg.Roles.
func NewGateway(cfg *config.Config) (*Gateway, error) {
	gw := &Gateway{
		providers: registry.NewBaseRegistry[Provider](),
		roles:     cfg.Roles,
	}

	for name, pc := range cfg.Providers {
		provider, err := CreateProvider(pc)
		if err != nil {
			return nil, fmt.Errorf("create provider %q: %w", name, err)
		}
		if err := gw.providers.Register(name, provider); err != nil {
			return nil, fmt.Errorf("register provider %q: %w", name, err)
		}
	}

	return gw, nil
}

// CreateProvider builds a Provider from a single provider's configuration.
func CreateProvider(cfg config.ProviderConfig) (Provider, error) {
	switch cfg.Type {
	case config.ProviderAnthropic:
		return NewAnthropicProvider(cfg), nil
	case config.ProviderOpenAI:
		return NewOpenAIProvider(cfg), nil
	case config.ProviderGemini:
		return NewGeminiProvider(cfg), nil
	case config.ProviderOllama:
		return NewOllamaProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported provider type %q", cfg.Type)
	}
}

// Chat resolves role to its ordered provider list and calls each in turn
// until one succeeds. It returns a *Failure once every provider has been
// tried and failed, or FailureNoProvider if the role has no providers
// configured.
func (g *Gateway) Chat(ctx context.Context, role config.Role, messages []Message) (ChatResult, error) {
	rc, ok := g.roles[role]
	if !ok || len(rc.Preferred) == 0 {
		return ChatResult{}, &Failure{Kind: FailureNoProvider, Err: fmt.Errorf("no providers configured for role %q", role)}
	}

	var lastErr error
	var lastName string
	for _, name := range rc.Preferred {
		provider, ok := g.providers.Get(name)
		if !ok {
			lastErr = fmt.Errorf("provider %q not registered", name)
			lastName = name
			continue
		}
		result, err := provider.Chat(ctx, messages)
		if err == nil {
			return result, nil
		}
		slog.Warn("llm provider call failed, trying next in role fallback list",
			"role", string(role), "provider", name, "error", err)
		lastErr = err
		lastName = name
	}

	return ChatResult{}, &Failure{Kind: classifyErr(lastErr), Provider: lastName, Err: lastErr}
}

// IsAvailable reports whether role resolves to at least one registered
// provider, without making a network call.
func (g *Gateway) IsAvailable(role config.Role) bool {
	rc, ok := g.roles[role]
	if !ok {
		return false
	}
	for _, name := range rc.Preferred {
		if _, ok := g.providers.Get(name); ok {
			return true
		}
	}
	return false
}

// ListModels returns the model name for each provider registered for role,
// in fallback order.
func (g *Gateway) ListModels(role config.Role) []string {
	rc, ok := g.roles[role]
	if !ok {
		return nil
	}
	models := make([]string, 0, len(rc.Preferred))
	for _, name := range rc.Preferred {
		if p, ok := g.providers.Get(name); ok {
			models = append(models, p.ModelName())
		}
	}
	return models
}

// Close closes every registered provider.
func (g *Gateway) Close() error {
	var firstErr error
	for _, p := range g.providers.List() {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
