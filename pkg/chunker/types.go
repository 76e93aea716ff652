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

// Package chunker turns a wiki page into an ordered sequence of indexable
// chunks with stable section anchors, preserving semantic boundaries.
//
// Grounded in the teacher's pkg/rag/chunker.go Strategy/Config shape and
// pkg/rag/chunker_simple.go's break-point + force-split idiom, rewritten
// so splitting operates over markup headings, sentences, and words
// instead of source-code lines.
package chunker

import (
	"fmt"

	"github.com/google/uuid"
)

// Page is the source document handed to a Chunker.
type Page struct {
	ID        string
	Title     string
	Space     string
	Version   int
	Labels    []string
	UpdatedAt int64 // unix seconds, UTC
	URL       string
}

// Chunk is an indexable fragment of a page (§3).
type Chunk struct {
	ID            string
	PageID        string
	Space         string
	Title         string
	SectionAnchor string
	Text          string
	Version       int
	UpdatedAt     int64
	Labels        []string
	Vector        []float32
	URL           string
	IndexedAt     int64
	Metadata      map[string]any
}

// Strategy enumerates the chunking strategies this package implements.
type Strategy string

const (
	StrategySimple   Strategy = "simple"
	StrategySemantic Strategy = "semantic"
)

// Config controls a Chunker's behavior. Units are words, not characters,
// per spec.
type Config struct {
	Strategy           Strategy
	TargetChunkSize    int // words
	Overlap            int // words
	MaxChunkSize       int // words
	MinChunkWords      int
	MaxChunkWords      int
	ContextWindow      int
	SemanticThreshold  float64
	PreserveStructure  bool
	EnableHierarchical bool
}

// DefaultConfig returns the teacher-style defaulted configuration.
func DefaultConfig() Config {
	c := Config{Strategy: StrategySimple}
	c.SetDefaults()
	return c
}

func (c *Config) SetDefaults() {
	if c.Strategy == "" {
		c.Strategy = StrategySimple
	}
	if c.TargetChunkSize == 0 {
		c.TargetChunkSize = 400
	}
	if c.Overlap == 0 {
		c.Overlap = 60
	}
	if c.MaxChunkSize == 0 {
		c.MaxChunkSize = 800
	}
	if c.MinChunkWords == 0 {
		c.MinChunkWords = 40
	}
	if c.MaxChunkWords == 0 {
		c.MaxChunkWords = c.MaxChunkSize
	}
	if c.ContextWindow == 0 {
		c.ContextWindow = 1
	}
	if c.SemanticThreshold == 0 {
		c.SemanticThreshold = 0.5
	}
}

func (c *Config) Validate() error {
	if c.Strategy != StrategySimple && c.Strategy != StrategySemantic {
		return fmt.Errorf("chunker: unknown strategy %q", c.Strategy)
	}
	if c.MinChunkWords <= 0 {
		return fmt.Errorf("chunker: min_chunk_words must be positive")
	}
	if c.MaxChunkWords < c.MinChunkWords {
		return fmt.Errorf("chunker: max_chunk_words must be >= min_chunk_words")
	}
	if c.Overlap < 0 || c.Overlap >= c.TargetChunkSize {
		return fmt.Errorf("chunker: overlap must be in [0, target_chunk_size)")
	}
	return nil
}

// Chunker is the capability this package exposes: chunk(page, content).
type Chunker interface {
	// Chunk is a pure function: deterministic given identical inputs and
	// config. Never fails on malformed markup; worst case yields one
	// chunk containing the raw plain text. Returns nil for empty or
	// whitespace-only content.
	Chunk(page Page, content string) ([]Chunk, error)
	Strategy() Strategy
	Config() Config
}

// New builds a Chunker for the given config, defaulting and validating
// it first.
func New(cfg Config) (Chunker, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Strategy {
	case StrategySimple:
		return &simpleChunker{cfg: cfg}, nil
	case StrategySemantic:
		return &semanticChunker{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("chunker: unknown strategy %q", cfg.Strategy)
	}
}

func newChunkID() string {
	return uuid.NewString()
}
