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

package embedder

import (
	"context"
	"hash/fnv"
	"math"
)

// LocalEmbedder produces deterministic hash-based embeddings with no
// network dependency. It is used for tests and for offline development
// against pkg/wiki's DirectorySource, never for production retrieval
// quality.
type LocalEmbedder struct {
	dimension int
	model     string
}

// NewLocalEmbedder returns a LocalEmbedder with the given dimension.
func NewLocalEmbedder(dimension int) *LocalEmbedder {
	if dimension <= 0 {
		dimension = 64
	}
	return &LocalEmbedder{dimension: dimension, model: "local-hash"}
}

func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func (e *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *LocalEmbedder) EmbedEnhanced(ctx context.Context, texts []string, ctxs []EnhanceContext) ([]EnhancedEmbedding, error) {
	out := make([]EnhancedEmbedding, len(texts))
	for i, text := range texts {
		var c EnhanceContext
		if i < len(ctxs) {
			c = ctxs[i]
		}
		out[i] = EnhancedEmbedding{
			Dense:  e.vector(text),
			Sparse: sparseTermWeights(text),
			Metadata: EnhancedEmbeddingMetadata{
				Level:      "chunk",
				HasContext: c.DocumentTitle != "" || c.SectionHeading != "",
				TokenCount: len(tokenizeWords(text)),
				Keywords:   topKeywords(text, 8),
			},
		}
	}
	return out, nil
}

func (e *LocalEmbedder) Dimension() int { return e.dimension }
func (e *LocalEmbedder) Model() string  { return e.model }
func (e *LocalEmbedder) Close() error   { return nil }

// vector hashes overlapping word shingles into a fixed-dimension vector
// and L2-normalizes it, so cosine similarity rewards shared vocabulary
// the way a real embedding would, without calling out to a model.
func (e *LocalEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dimension)
	words := tokenizeWords(text)
	if len(words) == 0 {
		return v
	}
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		idx := int(h.Sum32()) % e.dimension
		if idx < 0 {
			idx += e.dimension
		}
		v[idx]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for i, x := range v {
		v[i] = float32(float64(x) / norm)
	}
	return v
}

var _ Embedder = (*LocalEmbedder)(nil)
