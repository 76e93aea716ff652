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

// Package ingest brings the vector index in line with the wiki source of
// truth: paginate pages per space, skip unchanged content by hash,
// chunk and embed what changed, and upsert it by page.
//
// Grounded in the teacher's pkg/context/document_store_indexing.go
// (semaphore-bounded concurrent indexing) and pkg/context/checkpoint.go
// (JSON-backed incremental state), rewritten around this module's
// wiki.Source/chunker.Chunker/embedder.Embedder/vector.Store contracts.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/katroc/wikiretriever/pkg/chunker"
	"github.com/katroc/wikiretriever/pkg/docstore"
	"github.com/katroc/wikiretriever/pkg/embedder"
	"github.com/katroc/wikiretriever/pkg/wiki"
)

// Config controls one runOnce tick.
type Config struct {
	Spaces          []string
	AllSpaces       bool
	PageSize        int
	MaxPagesPerTick int
	MinInterval     time.Duration
	EmbedBatchSize  int
	EmbedDelay      time.Duration
	Concurrency     int
	StatePath       string
}

func (c *Config) SetDefaults() {
	if c.PageSize <= 0 || c.PageSize > 100 {
		c.PageSize = 100
	}
	if c.MaxPagesPerTick <= 0 {
		c.MaxPagesPerTick = 500
	}
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = 16
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.StatePath == "" {
		c.StatePath = "ingest-state.json"
	}
}

// VectorUpserter is the narrow slice of vector.Store this package needs.
type VectorUpserter interface {
	UpsertByPage(ctx context.Context, pageID string, chunks []chunker.Chunk) error
}

// DocMirror is the narrow slice of docstore.Store this package needs.
type DocMirror interface {
	UpsertAll(docs []docstore.Document)
	Delete(id string)
}

// Worker implements runOnce (§4.6).
type Worker struct {
	source   wiki.Source
	chunker  chunker.Chunker
	embedder embedder.Embedder
	vector   VectorUpserter
	docs     DocMirror
	state    *State
}

func NewWorker(source wiki.Source, chunk chunker.Chunker, embed embedder.Embedder, vectorStore VectorUpserter, docs DocMirror, state *State) *Worker {
	return &Worker{source: source, chunker: chunk, embedder: embed, vector: vectorStore, docs: docs, state: state}
}

// fatalError marks a failure that aborts the rest of the current tick
// (e.g. the embedder itself is unreachable) rather than just the page
// that triggered it.
type fatalError struct{ err error }

func (e *fatalError) Error() string { return fmt.Sprintf("ingest: fatal: %v", e.err) }
func (e *fatalError) Unwrap() error { return e.err }

func isFatal(err error) bool {
	var f *fatalError
	return errors.As(err, &f)
}

type pageOutcome int

const (
	outcomeSkipped pageOutcome = iota
	outcomeProcessed
)

// RunOnce paginates every configured space, chunking and embedding pages
// whose content changed since the last tick. Per-page errors are logged
// without aborting the tick; a failed page is left out of the returned
// per-space processed count and no separate failure count is kept. A
// fatal error (the embedder
// itself failing) cancels the remaining work but still flushes state for
// everything completed so far.
func (w *Worker) RunOnce(ctx context.Context, cfg Config) (map[string]int, error) {
	cfg.SetDefaults()

	spaces := cfg.Spaces
	if cfg.AllSpaces {
		keys, err := w.source.ListAllSpaceKeys(ctx)
		if err != nil {
			return nil, fmt.Errorf("ingest: listing spaces: %w", err)
		}
		spaces = keys
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var fatalOnce sync.Once
	var fatalErr error
	abort := func(err error) {
		fatalOnce.Do(func() {
			fatalErr = err
			cancel()
		})
	}

	sem := NewSemaphore(cfg.Concurrency)
	limiter := NewRateLimiter(cfg.MinInterval)

	var wg sync.WaitGroup
	var mu sync.Mutex
	processed := make(map[string]int)

	for _, space := range spaces {
		start := 0
		pagesSeen := 0
		for pagesSeen < cfg.MaxPagesPerTick {
			if runCtx.Err() != nil {
				break
			}
			remaining := cfg.MaxPagesPerTick - pagesSeen
			pageSize := cfg.PageSize
			if pageSize > remaining {
				pageSize = remaining
			}

			resp, err := w.source.ListPagesBySpace(runCtx, space, start, pageSize)
			if err != nil {
				slog.Error("ingest: listing pages failed", "space", space, "error", err)
				break
			}
			if len(resp.Documents) == 0 {
				break
			}

			for _, doc := range resp.Documents {
				if runCtx.Err() != nil {
					break
				}
				if err := sem.Acquire(runCtx); err != nil {
					break
				}
				wg.Add(1)
				go func(doc wiki.Document) {
					defer wg.Done()
					defer sem.Release()

					if err := limiter.Wait(runCtx); err != nil {
						return
					}
					outcome, err := w.processPage(runCtx, doc, cfg)
					if err != nil {
						if isFatal(err) {
							abort(err)
							return
						}
						slog.Error("ingest: page failed", "page_id", doc.ID, "space", space, "error", err)
						return
					}
					if outcome == outcomeProcessed {
						mu.Lock()
						processed[space]++
						mu.Unlock()
					}
				}(doc)
			}

			pagesSeen += len(resp.Documents)
			start += len(resp.Documents)
			if len(resp.Documents) < pageSize {
				break
			}
		}
	}

	wg.Wait()

	if saveErr := w.state.Save(); saveErr != nil && fatalErr == nil {
		fatalErr = fmt.Errorf("ingest: saving state: %w", saveErr)
	}

	return processed, fatalErr
}

func (w *Worker) processPage(ctx context.Context, doc wiki.Document, cfg Config) (pageOutcome, error) {
	full, err := w.source.GetDocumentByID(ctx, doc.ID)
	if err != nil {
		return 0, fmt.Errorf("fetching page %s: %w", doc.ID, err)
	}

	hash := contentHash(full.Content)
	if prior, ok := w.state.Get(full.ID); ok && prior.ContentHash == hash && prior.Version == full.Version {
		return outcomeSkipped, nil
	}

	page := chunker.Page{
		ID:        full.ID,
		Title:     full.Title,
		Space:     full.Space,
		Version:   full.Version,
		Labels:    full.Labels,
		UpdatedAt: full.UpdatedAt,
		URL:       full.URL,
	}
	chunks, err := w.chunker.Chunk(page, full.Content)
	if err != nil {
		return 0, fmt.Errorf("chunking page %s: %w", doc.ID, err)
	}

	if err := w.embedChunks(ctx, chunks, cfg); err != nil {
		return 0, err
	}

	now := time.Now().Unix()
	chunkIDs := make([]string, len(chunks))
	for i := range chunks {
		chunks[i].IndexedAt = now
		chunkIDs[i] = chunks[i].ID
	}

	if err := w.vector.UpsertByPage(ctx, full.ID, chunks); err != nil {
		return 0, fmt.Errorf("upserting page %s: %w", doc.ID, err)
	}

	if w.docs != nil {
		w.docs.UpsertAll([]docstore.Document{{
			ID: full.ID, Title: full.Title, Space: full.Space,
			Labels: full.Labels, UpdatedAt: full.UpdatedAt, URL: full.URL, Content: full.Content,
		}})
	}

	w.state.Set(PageState{
		PageID:        full.ID,
		Version:       full.Version,
		ContentHash:   hash,
		ChunkIDs:      chunkIDs,
		LastIndexedAt: now,
	})

	return outcomeProcessed, nil
}

// embedChunks fills in each chunk's Vector in batches of
// cfg.EmbedBatchSize, pausing cfg.EmbedDelay between batches. Any
// embedder failure is fatal to the whole tick: a page can be retried
// next tick, but a down embedder means every remaining page would fail
// identically.
func (w *Worker) embedChunks(ctx context.Context, chunks []chunker.Chunk, cfg Config) error {
	for start := 0; start < len(chunks); start += cfg.EmbedBatchSize {
		end := start + cfg.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, end-start)
		for i := range texts {
			texts[i] = chunks[start+i].Text
		}

		vectors, err := w.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return &fatalError{err: fmt.Errorf("embedding batch [%d:%d]: %w", start, end, err)}
		}
		for i, v := range vectors {
			chunks[start+i].Vector = v
		}

		if cfg.EmbedDelay > 0 && end < len(chunks) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.EmbedDelay):
			}
		}
	}
	return nil
}
