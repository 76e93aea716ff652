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

// Package retriever produces the final top-K chunks and citations for a
// query (§4.5) — query variants, optional HyDE/expansion, dense search,
// dedup, adaptive thresholding, two-stage rerank, MMR diversification,
// contextual compression, lexical floor blending, per-document capping,
// and citation building.
//
// Grounded in the teacher's pkg/rag/hyde.go (HyDE), pkg/rag/query_expansion.go
// (LLM-driven query variants), and v2/rag/search.go's staged-pipeline
// shape, rewritten around this module's VectorStore/LocalDocStore
// contracts instead of hector's SearchEngine.
package retriever

import (
	"context"
	"fmt"

	"github.com/katroc/wikiretriever/pkg/config"
	"github.com/katroc/wikiretriever/pkg/docstore"
	"github.com/katroc/wikiretriever/pkg/vector"
	"github.com/katroc/wikiretriever/pkg/wiki"
)

// Candidate is a chunk in flight through the retrieval pipeline.
type Candidate struct {
	ChunkID       string
	PageID        string
	Space         string
	Title         string
	SectionAnchor string
	Text          string
	URL           string
	Version       int
	UpdatedAt     int64
	IndexedAt     int64
	Labels        []string
	Vector        []float32
	Metadata      map[string]any

	Score float64 // final blended score driving selection order
}

// Citation describes one returned chunk's provenance, 1:1 with Candidate.
type Citation struct {
	PageID        string
	Title         string
	URL           string
	SectionAnchor string
	Snippet       string
}

// Filters narrows candidates the same way VectorStore and LocalDocStore do.
type Filters struct {
	Space        string
	Labels       []string
	UpdatedAfter int64
}

// Result is what Retrieve returns. Never nil slices are required; empty
// is a normal, non-error outcome (§4.5 Errors).
type Result struct {
	Chunks    []Candidate
	Citations []Citation
}

// VectorSearcher is the narrow slice of VectorStore this package needs.
type VectorSearcher interface {
	SearchSimilar(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]vector.Result, error)
}

// TextEmbedder is the narrow slice of Embedder this package needs.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// DocCandidateSource is the narrow slice of LocalDocStore this package needs.
type DocCandidateSource interface {
	QueryCandidates(query string, filters docstore.Filters, limit int) []docstore.Document
}

// LLM is the narrow slice of the external LLM collaborator this package
// needs for HyDE, query expansion, and the smart strategy's document
// analyzer.
type LLM interface {
	Chat(ctx context.Context, messages []wiki.ChatMessage, opts wiki.ChatOptions) (string, error)
}

// ReindexScheduler lets the retriever hand off lazy revalidation without
// blocking the response (§4.5 "Lazy revalidation").
type ReindexScheduler interface {
	ScheduleReindex(pageID string)
}

// Deps bundles the retriever's collaborators. LLM may be nil, in which
// case HyDE, expansion, and the smart analyzer are silently skipped;
// Reindexer may be nil, in which case lazy revalidation is a no-op.
type Deps struct {
	Vector    VectorSearcher
	Embedder  TextEmbedder
	DocStore  DocCandidateSource
	LLM       LLM
	Reindexer ReindexScheduler
}

// Retriever is the capability this package exposes.
type Retriever interface {
	// Retrieve tries each of queryOrVariants in order, returning the
	// first that yields at least one chunk. Never returns an error for
	// an empty result; only transport failures with no remaining
	// fallback propagate.
	Retrieve(ctx context.Context, queryOrVariants []string, filters Filters, topK int) (Result, error)
}

// New builds a Retriever for cfg.Strategy.
func New(cfg config.RetrievalConfig, deps Deps) (Retriever, error) {
	base := &baseRetriever{cfg: cfg, deps: deps}
	switch cfg.Strategy {
	case "basic":
		return &basicRetriever{base: base}, nil
	case "stable":
		return &stableRetriever{base: base}, nil
	case "smart":
		return &smartRetriever{base: base, fallback: &basicRetriever{base: base}}, nil
	case "advanced", "":
		return &advancedRetriever{base: base}, nil
	default:
		return nil, fmt.Errorf("retriever: unknown strategy %q", cfg.Strategy)
	}
}

// perDocCap implements max(1, min(3, floor(topK/2))).
func perDocCap(topK int) int {
	n := topK / 2
	if n > 3 {
		n = 3
	}
	if n < 1 {
		n = 1
	}
	return n
}
