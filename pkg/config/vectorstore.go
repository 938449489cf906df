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

package config

import "fmt"

// VectorBackend identifies a vector store implementation.
type VectorBackend string

const (
	VectorBackendChromem  VectorBackend = "chromem"
	VectorBackendQdrant   VectorBackend = "qdrant"
	VectorBackendPinecone VectorBackend = "pinecone"
)

// VectorStoreConfig configures the embedding store backend. Chromem runs
// embedded with no network dependency and is the default for local/dev use;
// qdrant and pinecone are the production backends.
type VectorStoreConfig struct {
	Backend    VectorBackend `yaml:"backend"`
	Path       string        `yaml:"path"`        // chromem persistence directory
	Host       string        `yaml:"host"`        // qdrant gRPC host:port
	APIKey     string        `yaml:"api_key"`      // pinecone / qdrant cloud
	IndexHost  string        `yaml:"index_host"`  // pinecone index host
	Dimension  int           `yaml:"dimension"`
}

// SetDefaults applies the embedded chromem backend as the zero-config default.
func (c *VectorStoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = VectorBackendChromem
	}
	if c.Path == "" {
		c.Path = "./data/vectors"
	}
	if c.Dimension == 0 {
		c.Dimension = 256
	}
}

// Validate checks the vector store configuration.
func (c *VectorStoreConfig) Validate() error {
	switch c.Backend {
	case VectorBackendChromem:
		if c.Path == "" {
			return fmt.Errorf("chromem backend requires a path")
		}
	case VectorBackendQdrant:
		if c.Host == "" {
			return fmt.Errorf("qdrant backend requires a host")
		}
	case VectorBackendPinecone:
		if c.APIKey == "" || c.IndexHost == "" {
			return fmt.Errorf("pinecone backend requires api_key and index_host")
		}
	default:
		return fmt.Errorf("unsupported vector store backend %q", c.Backend)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("vector store dimension must be positive")
	}
	return nil
}
