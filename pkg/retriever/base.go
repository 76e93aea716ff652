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

package retriever

import (
	"context"

	"github.com/katroc/wikiretriever/pkg/config"
	"github.com/katroc/wikiretriever/pkg/docstore"
)

// baseRetriever holds the collaborators and config shared by every
// strategy; strategy types embed it and call its shared pipeline steps.
type baseRetriever struct {
	cfg  config.RetrievalConfig
	deps Deps
}

// toMetadataFilter builds the where-clause passed straight to the vector
// store. Only equality-matchable columns belong here: labels are stored
// as a comma-joined string (no backend can equality-match one value
// against a set), and updated_after is a range predicate, not an
// equality one. Both are applied as a post-search filter instead, in
// filterCandidates.
func toMetadataFilter(f Filters) map[string]any {
	filter := make(map[string]any)
	if f.Space != "" {
		filter["space"] = f.Space
	}
	return filter
}

// filterCandidates applies the filters the vector store's where-clause
// can't express: labels as an any-of intersection (§3 Filters, §4.3),
// and updatedAfter as a >= range check.
func filterCandidates(candidates []Candidate, f Filters) []Candidate {
	if len(f.Labels) == 0 && f.UpdatedAfter == 0 {
		return candidates
	}
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if f.UpdatedAfter > 0 && c.UpdatedAt < f.UpdatedAfter {
			continue
		}
		if len(f.Labels) > 0 && !labelsIntersect(c.Labels, f.Labels) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func labelsIntersect(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, x := range a {
		set[x] = true
	}
	for _, y := range b {
		if set[y] {
			return true
		}
	}
	return false
}

// denseSearch embeds query and fetches candidateK matches from the
// vector store, then applies the filters the store itself couldn't.
func (b *baseRetriever) denseSearch(ctx context.Context, query string, candidateK int, filters Filters) ([]Candidate, error) {
	vec, err := b.deps.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	results, err := b.deps.Vector.SearchSimilar(ctx, vec, candidateK, toMetadataFilter(filters))
	if err != nil {
		return nil, err
	}
	candidates := make([]Candidate, len(results))
	for i, r := range results {
		candidates[i] = candidateFromResult(r)
	}
	return filterCandidates(candidates, filters), nil
}

// queryDocStore runs a broad keyword search against the LocalDocStore,
// returning raw documents (used by the smart strategy's analyzer).
func (b *baseRetriever) queryDocStore(query string, filters Filters, limit int) []docstore.Document {
	if b.deps.DocStore == nil {
		return nil
	}
	return b.deps.DocStore.QueryCandidates(query, docstore.Filters{
		Space:        filters.Space,
		Labels:       filters.Labels,
		UpdatedAfter: filters.UpdatedAfter,
	}, limit)
}

// docStoreFallback consults the LocalDocStore keyword index when the
// vector index is cold or empty. Whole documents are converted into
// single-chunk candidates so the rest of the pipeline can treat them
// uniformly.
func (b *baseRetriever) docStoreFallback(query string, filters Filters, limit int) []Candidate {
	docs := b.queryDocStore(query, filters, limit)
	if docs == nil {
		return nil
	}

	candidates := make([]Candidate, len(docs))
	for i, d := range docs {
		candidates[i] = Candidate{
			ChunkID:   d.ID,
			PageID:    d.ID,
			Space:     d.Space,
			Title:     d.Title,
			Text:      d.Content,
			URL:       d.URL,
			UpdatedAt: d.UpdatedAt,
			Labels:    d.Labels,
			Score:     1.0 / float64(i+1), // rank-based, no vector similarity available
		}
	}
	return candidates
}

// scheduleRevalidation inspects each candidate's IndexedAt and hands
// stale pageIds to the ReindexScheduler without blocking the caller.
func (b *baseRetriever) scheduleRevalidation(candidates []Candidate, ttlSeconds int64, now int64) {
	if b.deps.Reindexer == nil || ttlSeconds <= 0 {
		return
	}
	seen := make(map[string]bool)
	for _, c := range candidates {
		if c.IndexedAt == 0 || seen[c.PageID] {
			continue
		}
		if now-c.IndexedAt > ttlSeconds {
			seen[c.PageID] = true
			b.deps.Reindexer.ScheduleReindex(c.PageID)
		}
	}
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
