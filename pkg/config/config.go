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

// Package config provides the configuration types recognized at startup:
// provider credentials, per-role provider/model assignments, memory limits,
// classification cache sizing, and the file paths for the epistemic and
// hermeneutic rule sets.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProviderType identifies an LLM provider implementation.
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderGemini    ProviderType = "gemini"
	ProviderOllama    ProviderType = "ollama"
)

// ProviderConfig configures a single named LLM provider.
type ProviderConfig struct {
	Type       ProviderType `yaml:"type"`
	Model      string       `yaml:"model"`
	APIKey     string       `yaml:"api_key"`
	BaseURL    string       `yaml:"base_url"`
	Temperature float64     `yaml:"temperature"`
	MaxTokens  int          `yaml:"max_tokens"`
	TimeoutSec int          `yaml:"timeout_seconds"`
	MaxRetries int          `yaml:"max_retries"`
}

// SetDefaults fills in provider defaults and resolves API keys from the
// environment when not set explicitly, mirroring each provider's usual
// environment variable.
func (c *ProviderConfig) SetDefaults() {
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.TimeoutSec == 0 {
		c.TimeoutSec = 120
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
	if c.APIKey == "" {
		c.APIKey = apiKeyFromEnv(c.Type)
	}
}

func apiKeyFromEnv(p ProviderType) string {
	switch p {
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProviderGemini:
		if v := os.Getenv("GEMINI_API_KEY"); v != "" {
			return v
		}
		return os.Getenv("GOOGLE_API_KEY")
	default:
		return ""
	}
}

// Validate checks the provider configuration for obvious mistakes.
func (c *ProviderConfig) Validate() error {
	switch c.Type {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderOllama:
	default:
		return fmt.Errorf("unsupported provider type %q", c.Type)
	}
	if c.Type != ProviderOllama && c.APIKey == "" {
		return fmt.Errorf("provider %q requires an api_key", c.Type)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0, 2], got %v", c.Temperature)
	}
	return nil
}

// Role identifies a named agent/router role that resolves to a provider.
type Role string

const (
	RoleResearcher Role = "researcher"
	RoleWriter     Role = "writer"
	RoleEngineer   Role = "engineer"
	RolePlanner    Role = "planner"
	RoleArchivist  Role = "archivist"
	RoleClassifier Role = "classifier"
	// RoleGeneral is the conversational fallback the router uses when no
	// agent pipeline is selected (the single-LLM path).
	RoleGeneral Role = "general"
)

// RoleConfig maps a role to an ordered provider preference list and an
// optional pinned model that overrides the provider's default.
type RoleConfig struct {
	Preferred []string `yaml:"preferred"` // provider names, in fallback order
	Model     string   `yaml:"model,omitempty"`
}

// MemoryConfig configures the memory subsystem's bounds and decay.
type MemoryConfig struct {
	CoreCap              int     `yaml:"core_cap"`
	MaxContextMemories   int     `yaml:"max_context_memories"`
	EpisodicHalfLifeDays float64 `yaml:"episodic_half_life_days"`
	LongTermHalfLifeDays float64 `yaml:"long_term_half_life_days"`
	LongTermThreshold    float64 `yaml:"long_term_threshold"`
	EpisodicThreshold    float64 `yaml:"episodic_threshold"`
	MaxLongTermInContext int     `yaml:"max_long_term_in_context"`
	MaxEpisodicInContext int     `yaml:"max_episodic_in_context"`
	Driver               string  `yaml:"driver"` // sqlite | postgres | mysql
	DSN                  string  `yaml:"dsn"`
}

// SetDefaults fills in the documented default limits and thresholds.
func (c *MemoryConfig) SetDefaults() {
	if c.CoreCap == 0 {
		c.CoreCap = 10
	}
	if c.MaxContextMemories == 0 {
		c.MaxContextMemories = 15
	}
	if c.EpisodicHalfLifeDays == 0 {
		c.EpisodicHalfLifeDays = 14
	}
	if c.LongTermHalfLifeDays == 0 {
		c.LongTermHalfLifeDays = 180
	}
	if c.LongTermThreshold == 0 {
		c.LongTermThreshold = 0.20
	}
	if c.EpisodicThreshold == 0 {
		c.EpisodicThreshold = 0.15
	}
	if c.MaxLongTermInContext == 0 {
		c.MaxLongTermInContext = 8
	}
	if c.MaxEpisodicInContext == 0 {
		c.MaxEpisodicInContext = 3
	}
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
}

// Validate checks memory configuration bounds.
func (c *MemoryConfig) Validate() error {
	if c.CoreCap <= 0 {
		return fmt.Errorf("memory core_cap must be positive")
	}
	if c.MaxContextMemories <= 0 {
		return fmt.Errorf("memory max_context_memories must be positive")
	}
	switch c.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported memory driver %q", c.Driver)
	}
	return nil
}

// ClassifierConfig configures the intent classifier's cache and LLM fallback.
type ClassifierConfig struct {
	CacheCapacity int    `yaml:"cache_capacity"`
	Model         string `yaml:"model"`
}

// SetDefaults fills in the default cache capacity.
func (c *ClassifierConfig) SetDefaults() {
	if c.CacheCapacity == 0 {
		c.CacheCapacity = 500
	}
}

// RetrievalConfig configures the retrieval coordinator's fan-out.
type RetrievalConfig struct {
	ProjectCollection string `yaml:"project_collection"`
	LibraryCollection string `yaml:"library_collection"`
}

// SetDefaults applies the coordinator's default collection names.
func (c *RetrievalConfig) SetDefaults() {
	if c.ProjectCollection == "" {
		c.ProjectCollection = "project"
	}
	if c.LibraryCollection == "" {
		c.LibraryCollection = "library"
	}
}

// Config is the root configuration recognized at startup.
type Config struct {
	Providers              map[string]ProviderConfig `yaml:"providers"`
	Roles                  map[Role]RoleConfig       `yaml:"roles"`
	Memory                 MemoryConfig              `yaml:"memory"`
	Classifier             ClassifierConfig          `yaml:"classifier"`
	Retrieval              RetrievalConfig           `yaml:"retrieval"`
	VectorStore            VectorStoreConfig         `yaml:"vector_store"`
	EpistemicRules         string                    `yaml:"epistemic_rules_path"`
	HermeneuticDir         string                    `yaml:"hermeneutic_profiles_dir"`
	HermeneuticConstraints string                    `yaml:"hermeneutic_constraints_path"`
}

// SetDefaults applies defaults across every nested config section.
func (c *Config) SetDefaults() {
	c.Memory.SetDefaults()
	c.Classifier.SetDefaults()
	c.Retrieval.SetDefaults()
	c.VectorStore.SetDefaults()
	for name, p := range c.Providers {
		p.SetDefaults()
		c.Providers[name] = p
	}
}

// Validate validates the whole configuration tree.
func (c *Config) Validate() error {
	if err := c.Memory.Validate(); err != nil {
		return fmt.Errorf("memory config: %w", err)
	}
	if err := c.VectorStore.Validate(); err != nil {
		return fmt.Errorf("vector store config: %w", err)
	}
	for name, p := range c.Providers {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("provider %q: %w", name, err)
		}
	}
	for role, rc := range c.Roles {
		for _, name := range rc.Preferred {
			if _, ok := c.Providers[name]; !ok {
				return fmt.Errorf("role %q references unknown provider %q", role, name)
			}
		}
	}
	return nil
}

// Load reads and parses a YAML configuration file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}
