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
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the on-disk shape: a named preset plus any subtree
// overrides layered on top of it.
type fileConfig struct {
	Preset    string         `yaml:"preset"`
	Chunking  map[string]any `yaml:"chunking"`
	Embedding map[string]any `yaml:"embedding"`
	Retrieval map[string]any `yaml:"retrieval"`
	VectorStore map[string]any `yaml:"vector_store"`
	Process   map[string]any `yaml:"process"`
}

// Load reads a YAML config file, resolves its preset, applies any
// subtree overrides, validates the result, and returns it.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	base := Preset(fc.Preset)

	overrides := map[string]any{}
	if fc.Chunking != nil {
		overrides["chunking"] = fc.Chunking
	}
	if fc.Embedding != nil {
		overrides["embedding"] = fc.Embedding
	}
	if fc.Retrieval != nil {
		overrides["retrieval"] = fc.Retrieval
	}
	if fc.VectorStore != nil {
		overrides["vector_store"] = fc.VectorStore
	}
	if fc.Process != nil {
		overrides["process"] = fc.Process
	}

	cfg, err := ApplyOverrides(base, overrides)
	if err != nil {
		return Config{}, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return cfg, nil
}
