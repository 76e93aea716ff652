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

// Package embedder maps batches of text to fixed-dimension dense vectors,
// optionally producing sparse term weights and enhancement metadata.
package embedder

import "context"

// Embedder produces vector embeddings from text. Input order is always
// preserved; empty input returns empty output; the batch as a whole
// either succeeds fully or fails — no partial results.
type Embedder interface {
	// Embed converts text to a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts to vector embeddings. More
	// efficient than calling Embed repeatedly.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedEnhanced produces the richer EnhancedEmbedding representation
	// for each input text, given optional per-text context.
	EmbedEnhanced(ctx context.Context, texts []string, ctxs []EnhanceContext) ([]EnhancedEmbedding, error)

	// Dimension returns the embedding vector dimension D.
	Dimension() int

	// Model returns the model name being used.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}

// EnhanceContext carries the optional hints used to enrich a text before
// embedding it (§4.2 enhancement rules).
type EnhanceContext struct {
	DocumentTitle      string
	SectionHeading     string
	HierarchicalPrefix string
	HasCode            bool
	HasTables          bool
	HasLists           bool
}

// EnhancedEmbeddingMetadata describes the representation level and
// derived signals of an EnhancedEmbedding.
type EnhancedEmbeddingMetadata struct {
	Level      string // "chunk" | "section" | "document"
	HasContext bool
	TokenCount int
	Keywords   []string
}

// EnhancedEmbedding is the optional richer representation (§3).
type EnhancedEmbedding struct {
	Dense    []float32
	Sparse   map[string]float64
	Document []float32
	Section  []float32
	Metadata EnhancedEmbeddingMetadata
}
