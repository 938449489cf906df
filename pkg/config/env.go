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

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a .env file into the process environment if present.
// A missing file is not an error; provider API keys may come from the
// environment directly (CI, containers) instead of a checked-in .env.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv loads the given .env file (if present), then parses the YAML
// configuration at configPath. Call order matters: .env values populate
// os.Environ before ProviderConfig.SetDefaults reads from it.
func LoadFromEnv(envPath, configPath string) (*Config, error) {
	if err := LoadDotEnv(envPath); err != nil {
		return nil, err
	}
	return Load(configPath)
}
