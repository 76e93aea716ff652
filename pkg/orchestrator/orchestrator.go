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

// Package orchestrator is the retrieval core's single public façade
// (§4.7): it composes Chunker, Embedder, VectorStore, LocalDocStore, and
// Retriever behind three operations — indexDocument, deleteDocument, and
// retrieveForQuery — and owns the top-level strategy fallback policy
// (advanced → basic → doc-store keyword, §7).
//
// Grounded in the teacher's pkg/rag/factory.go NewSearchEngineFromConfig
// dependency-wiring style and the preset pattern implied by
// config.DocumentStoreConfig.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/katroc/wikiretriever/pkg/chunker"
	"github.com/katroc/wikiretriever/pkg/config"
	"github.com/katroc/wikiretriever/pkg/docstore"
	"github.com/katroc/wikiretriever/pkg/embedder"
	"github.com/katroc/wikiretriever/pkg/observability"
	"github.com/katroc/wikiretriever/pkg/ragerrors"
	"github.com/katroc/wikiretriever/pkg/retriever"
	"github.com/katroc/wikiretriever/pkg/vector"
	"github.com/katroc/wikiretriever/pkg/wiki"
)

// Deps bundles the orchestrator's collaborators. LLM and Reindexer may
// be nil; the underlying Retriever degrades the same way it does when
// built directly (see pkg/retriever.Deps).
type Deps struct {
	Chunker  chunker.Chunker
	Embedder embedder.Embedder
	Vector   *vector.Store
	Docs     *docstore.Store
	LLM      retriever.LLM
	Reindexer retriever.ReindexScheduler
	Metrics  *observability.Metrics
}

// Orchestrator is the pipeline's single public entry point.
type Orchestrator struct {
	cfg      config.Config
	deps     Deps
	primary  retriever.Retriever
	fallback retriever.Retriever
}

// New builds an Orchestrator from cfg and deps. It fails closed: a
// misconfigured retrieval strategy is surfaced immediately rather than
// discovered on the first request.
func New(cfg config.Config, deps Deps) (*Orchestrator, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	retrieverDeps := retriever.Deps{
		Vector:    deps.Vector,
		Embedder:  deps.Embedder,
		DocStore:  docStoreAdapter{deps.Docs},
		LLM:       deps.LLM,
		Reindexer: deps.Reindexer,
	}

	primary, err := retriever.New(cfg.Retrieval, retrieverDeps)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: building retriever: %w", err)
	}

	basicCfg := cfg.Retrieval
	basicCfg.Strategy = "basic"
	fallback, err := retriever.New(basicCfg, retrieverDeps)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: building fallback retriever: %w", err)
	}

	return &Orchestrator{cfg: cfg, deps: deps, primary: primary, fallback: fallback}, nil
}

// docStoreAdapter narrows *docstore.Store to retriever.DocCandidateSource.
type docStoreAdapter struct{ store *docstore.Store }

func (a docStoreAdapter) QueryCandidates(query string, filters docstore.Filters, limit int) []docstore.Document {
	if a.store == nil {
		return nil
	}
	return a.store.QueryCandidates(query, filters, limit)
}

// IndexDocument chunks, embeds, and upserts a single page, then mirrors
// it into the keyword doc store — the programmatic single-document path
// distinct from IngestWorker's periodic, paginated crawl.
func (o *Orchestrator) IndexDocument(ctx context.Context, page wiki.Document) error {
	start := time.Now()

	chunkPage := chunker.Page{
		ID: page.ID, Title: page.Title, Space: page.Space,
		Version: page.Version, Labels: page.Labels, UpdatedAt: page.UpdatedAt, URL: page.URL,
	}
	chunks, err := o.deps.Chunker.Chunk(chunkPage, page.Content)
	if err != nil {
		o.observeFailed(page.Space)
		return fmt.Errorf("orchestrator: chunking page %s: %w", page.ID, err)
	}

	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		vectors, err := o.deps.Embedder.EmbedBatch(ctx, texts)
		if err != nil {
			o.observeFailed(page.Space)
			return fmt.Errorf("orchestrator: embedding page %s: %w", page.ID, err)
		}
		now := time.Now().Unix()
		for i := range chunks {
			chunks[i].Vector = vectors[i]
			chunks[i].IndexedAt = now
		}
	}

	if err := o.deps.Vector.UpsertByPage(ctx, page.ID, chunks); err != nil {
		o.observeFailed(page.Space)
		return fmt.Errorf("orchestrator: upserting page %s: %w", page.ID, err)
	}

	if o.deps.Docs != nil {
		o.deps.Docs.UpsertAll([]docstore.Document{{
			ID: page.ID, Title: page.Title, Space: page.Space,
			Labels: page.Labels, UpdatedAt: page.UpdatedAt, URL: page.URL, Content: page.Content,
		}})
	}

	if o.deps.Metrics != nil {
		o.deps.Metrics.ObserveIndexedPage(page.Space, len(chunks), time.Since(start).Seconds())
	}
	return nil
}

// DeleteDocument forwards a removal to both the vector store and the
// keyword doc store, so neither continues to surface a deleted page.
func (o *Orchestrator) DeleteDocument(ctx context.Context, pageID string) error {
	if err := o.deps.Vector.DeleteByPageID(ctx, pageID); err != nil {
		return fmt.Errorf("orchestrator: deleting page %s from vector store: %w", pageID, err)
	}
	if o.deps.Docs != nil {
		o.deps.Docs.Delete(pageID)
	}
	return nil
}

// RetrieveForQuery delegates to the configured Retriever strategy,
// falling back to a dense-only basic retriever if the primary strategy
// itself fails with a transport error (§7: "advanced → basic → doc-store
// keyword"). basicRetriever in turn falls back to the keyword doc store
// whenever the vector index or embedder is unreachable, so this single
// fallback hop already covers the full three-tier policy.
func (o *Orchestrator) RetrieveForQuery(ctx context.Context, queries []string, filters retriever.Filters, topK int) (retriever.Result, error) {
	if len(queries) == 0 {
		return retriever.Result{}, ragerrors.NewValidationError("queries", "at least one query is required")
	}
	if topK <= 0 || topK > 100 {
		return retriever.Result{}, ragerrors.NewValidationError("topK", "must be in [1,100]")
	}

	start := time.Now()
	strategy := o.cfg.Retrieval.Strategy

	result, err := o.primary.Retrieve(ctx, queries, filters, topK)
	if err == nil {
		o.observeRetrieval(strategy, "ok", start)
		return result, nil
	}
	if !ragerrors.IsTransport(err) {
		o.observeRetrieval(strategy, "error", start)
		return retriever.Result{}, err
	}

	result, err = o.fallback.Retrieve(ctx, queries, filters, topK)
	if err != nil {
		o.observeRetrieval(strategy, "error", start)
		return retriever.Result{}, err
	}
	o.observeRetrieval(strategy, "fallback_basic", start)
	return result, nil
}

func (o *Orchestrator) observeFailed(space string) {
	if o.deps.Metrics != nil {
		o.deps.Metrics.ObserveFailedPage(space)
	}
}

func (o *Orchestrator) observeRetrieval(strategy, outcome string, start time.Time) {
	if o.deps.Metrics != nil {
		o.deps.Metrics.ObserveRetrieval(strategy, outcome, time.Since(start).Seconds())
	}
}
