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

package vector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/katroc/wikiretriever/pkg/chunker"
	"github.com/katroc/wikiretriever/pkg/ragerrors"
)

// StoreConfig configures a Store's collection and schema tolerance.
type StoreConfig struct {
	Collection            string
	Dimension             int
	IndexedMetadataFields []string
	StrictSchema          bool
	CacheSize             int
}

func (c *StoreConfig) SetDefaults() {
	if c.Collection == "" {
		c.Collection = "confluence_chunks"
	}
	if c.CacheSize == 0 {
		c.CacheSize = 128
	}
}

// Store implements the VectorStore contract of §4.3 on top of a
// low-level Provider: upsert-by-page atomicity (delete-all-then-insert
// is the unit of consistency), tolerant metadata schema handling (an
// unrecognized field is logged once and dropped rather than failing the
// write, unless StrictSchema opts out in favor of a SchemaError), and a
// small FIFO result cache that is invalidated wholesale on any write.
type Store struct {
	provider Provider
	cfg      StoreConfig

	mu           sync.Mutex
	pageChunks   map[string]int // pageID -> chunk count, for Stats
	warnedFields map[string]bool
	cache        *fifoCache
}

// NewStore wraps provider with page-level semantics.
func NewStore(provider Provider, cfg StoreConfig) *Store {
	cfg.SetDefaults()
	return &Store{
		provider:     provider,
		cfg:          cfg,
		pageChunks:   make(map[string]int),
		warnedFields: make(map[string]bool),
		cache:        newFIFOCache(cfg.CacheSize),
	}
}

// Initialize creates the backing collection if it does not exist yet.
func (s *Store) Initialize(ctx context.Context) error {
	return s.provider.CreateCollection(ctx, s.cfg.Collection, s.cfg.Dimension)
}

// UpsertByPage replaces all chunks belonging to pageID with chunks,
// atomically from the caller's perspective: the page's prior chunks are
// deleted first, then the new ones are inserted. A page with zero
// chunks (e.g. a page that became empty) simply ends with no vectors.
func (s *Store) UpsertByPage(ctx context.Context, pageID string, chunks []chunker.Chunk) error {
	if err := s.provider.DeleteByFilter(ctx, s.cfg.Collection, map[string]any{"page_id": pageID}); err != nil {
		return fmt.Errorf("vector: deleting prior chunks for page %s: %w", pageID, err)
	}

	for _, c := range chunks {
		md, err := s.toMetadata(c)
		if err != nil {
			return err
		}
		if err := s.provider.Upsert(ctx, s.cfg.Collection, c.ID, c.Vector, md); err != nil {
			return ragerrors.NewIntegrityError(pageID, "partial upsert failure mid-page", err)
		}
	}

	s.mu.Lock()
	if len(chunks) == 0 {
		delete(s.pageChunks, pageID)
	} else {
		s.pageChunks[pageID] = len(chunks)
	}
	s.cache.clear()
	s.mu.Unlock()

	return nil
}

// DeleteByPageID removes every chunk belonging to pageID.
func (s *Store) DeleteByPageID(ctx context.Context, pageID string) error {
	if err := s.provider.DeleteByFilter(ctx, s.cfg.Collection, map[string]any{"page_id": pageID}); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.pageChunks, pageID)
	s.cache.clear()
	s.mu.Unlock()
	return nil
}

// SearchSimilar finds the topK nearest chunks to vector, optionally
// narrowed by filter. Repeated identical queries are served from a
// small FIFO cache until the next write invalidates it.
func (s *Store) SearchSimilar(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]Result, error) {
	key := cacheKey(vector, topK, filter)

	s.mu.Lock()
	if cached, ok := s.cache.get(key); ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	results, err := s.provider.SearchWithFilter(ctx, s.cfg.Collection, vector, topK, filter)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache.put(key, results)
	s.mu.Unlock()

	return results, nil
}

// Stats reports the collection's current chunk and page counts, as
// tracked across this Store's own writes.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{PageCount: len(s.pageChunks)}
	for _, n := range s.pageChunks {
		stats.ChunkCount += n
	}
	return stats, nil
}

func (s *Store) Close() error {
	return s.provider.Close()
}

// toMetadata flattens a Chunk into the provider's string-keyed metadata
// map. By default, caller-supplied metadata fields outside
// IndexedMetadataFields are dropped (with a single log line per field)
// so a page with an unexpected field never fails ingestion. StrictSchema
// opts out of that tolerance: an unknown field instead surfaces as a
// *ragerrors.SchemaError and the chunk is not written.
func (s *Store) toMetadata(c chunker.Chunk) (map[string]any, error) {
	md := map[string]any{
		"page_id":        c.PageID,
		"space":          c.Space,
		"title":          c.Title,
		"section_anchor": c.SectionAnchor,
		"text":           c.Text,
		"version":        c.Version,
		"updated_at":     c.UpdatedAt,
		"labels":         strings.Join(c.Labels, ","),
		"url":            c.URL,
		"indexed_at":     c.IndexedAt,
		"content":        c.Text,
	}

	var unknown []string
	for k, v := range c.Metadata {
		if s.isIndexedField(k) {
			md[k] = v
			continue
		}
		if s.cfg.StrictSchema {
			unknown = append(unknown, k)
			continue
		}
		s.warnUnknownField(k)
	}
	if len(unknown) > 0 {
		return nil, ragerrors.NewSchemaError(s.cfg.Collection, unknown, true)
	}
	return md, nil
}

func (s *Store) isIndexedField(field string) bool {
	for _, f := range s.cfg.IndexedMetadataFields {
		if f == field {
			return true
		}
	}
	return false
}

func (s *Store) warnUnknownField(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.warnedFields[field] {
		return
	}
	s.warnedFields[field] = true
	slog.Warn("vector: dropping unindexed metadata field", "field", field, "collection", s.cfg.Collection)
}
