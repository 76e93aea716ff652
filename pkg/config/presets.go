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

	"github.com/mitchellh/mapstructure"
)

// Preset names understood by Load.
const (
	PresetPerformance = "performance"
	PresetQuality     = "quality"
	PresetSpeed       = "speed"
	PresetBalanced    = "balanced"
	PresetStable      = "stable"
)

// Preset returns a fully-defaulted Config for the given named preset.
// Unknown names fall back to "balanced".
func Preset(name string) Config {
	var c Config
	switch name {
	case PresetPerformance:
		c.Retrieval.Strategy = "advanced"
		c.Retrieval.EnableTwoStageRetrieval = true
		c.Retrieval.EnableMMR = true
		c.Retrieval.EnableHyDE = true
		c.Retrieval.EnableCrossEncoderRerank = true
		c.VectorStore.EnableCaching = true
		c.VectorStore.EnableAdaptiveK = true
	case PresetQuality:
		c.Retrieval.Strategy = "smart"
		c.Retrieval.EnableTwoStageRetrieval = true
		c.Retrieval.EnableMMR = true
		c.Retrieval.EnableHyDE = true
		c.Retrieval.EnableCompression = true
		c.Embedding.EnableSparse = true
		c.Embedding.EnableQueryExpansion = true
	case PresetSpeed:
		c.Retrieval.Strategy = "basic"
		c.Retrieval.EnableMMR = false
		c.Retrieval.EnableHyDE = false
		c.Retrieval.EnableTwoStageRetrieval = false
	case PresetStable:
		c.Retrieval.Strategy = "stable"
		c.Retrieval.EnableMMR = false
		c.Retrieval.EnableHyDE = false
		c.Retrieval.AdaptiveThreshold = false
	case PresetBalanced:
		fallthrough
	default:
		c.Retrieval.Strategy = "advanced"
		c.Retrieval.EnableMMR = true
		c.Retrieval.AdaptiveThreshold = true
	}
	c.SetDefaults()
	return c
}

// ApplyOverrides decodes a loosely-typed overlay (as parsed from YAML
// `map[string]any` subtrees) onto an existing Config, letting a custom
// preset override any subtree without needing to repeat the whole tree.
func ApplyOverrides(base Config, overrides map[string]any) (Config, error) {
	if len(overrides) == 0 {
		return base, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &base,
		WeaklyTypedInput: true,
		TagName:          "yaml",
	})
	if err != nil {
		return base, fmt.Errorf("config: building overlay decoder: %w", err)
	}
	if err := decoder.Decode(overrides); err != nil {
		return base, fmt.Errorf("config: applying overrides: %w", err)
	}
	return base, nil
}
