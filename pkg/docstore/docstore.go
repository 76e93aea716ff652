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

// Package docstore holds an in-memory, keyword-scored index of whole
// documents, used as a cold-start and fallback path when the vector
// index is empty or unavailable (§4.4).
//
// Grounded in the teacher's pkg/rag/store.go DocumentStore shape
// (mutex-guarded map, Stats/Search split), stripped of file watching,
// checkpoints, and extraction — this store only ever holds whole
// documents in memory and scores them by term frequency.
package docstore

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Document is a whole document mirrored into the keyword index.
type Document struct {
	ID        string
	Title     string
	Space     string
	Labels    []string
	UpdatedAt int64
	URL       string
	Content   string
}

// Filters narrows queryCandidates the same way VectorStore filters do.
type Filters struct {
	Space        string
	Labels       []string
	UpdatedAfter int64
}

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)
var tokenRe = regexp.MustCompile(`[a-zA-Z0-9]+`)

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "on": true, "for": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "with": true, "that": true, "this": true,
	"it": true, "as": true, "by": true, "at": true, "from": true, "not": true,
}

// Store is a single-writer, multi-reader in-memory keyword index.
type Store struct {
	mu      sync.RWMutex
	docs    map[string]Document
	order   map[string]int // id -> insertion sequence, for stable tie-breaking
	nextSeq int
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		docs:  make(map[string]Document),
		order: make(map[string]int),
	}
}

// UpsertAll replaces any existing entry sharing an ID with docs, adding
// new ones. Writers take a short exclusive section; readers are never
// blocked for longer than a single map mutation.
func (s *Store) UpsertAll(docs []Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range docs {
		if _, exists := s.docs[d.ID]; !exists {
			s.order[d.ID] = s.nextSeq
			s.nextSeq++
		}
		s.docs[d.ID] = d
	}
}

// Delete removes a document by ID, if present.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	delete(s.order, id)
}

// Size returns the number of indexed documents.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

type scored struct {
	doc   Document
	score float64
	seq   int
}

// QueryCandidates scores every document matching filters by term
// frequency across title + stripHtml(content) and returns the top limit
// in descending score order, ties broken by insertion order.
func (s *Store) QueryCandidates(query string, filters Filters, limit int) []Document {
	terms := queryTerms(query)
	if len(terms) == 0 || limit <= 0 {
		return nil
	}

	s.mu.RLock()
	candidates := make([]scored, 0, len(s.docs))
	for id, d := range s.docs {
		if !matchesFilters(d, filters) {
			continue
		}
		score := termFrequencyScore(terms, d.Title, stripHTML(d.Content))
		if score <= 0 {
			continue
		}
		candidates = append(candidates, scored{doc: d, score: score, seq: s.order[id]})
	}
	s.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].seq < candidates[j].seq
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}
	out := make([]Document, limit)
	for i := 0; i < limit; i++ {
		out[i] = candidates[i].doc
	}
	return out
}

func matchesFilters(d Document, f Filters) bool {
	if f.Space != "" && d.Space != f.Space {
		return false
	}
	if f.UpdatedAfter > 0 && d.UpdatedAt < f.UpdatedAfter {
		return false
	}
	if len(f.Labels) > 0 && !labelsIntersect(d.Labels, f.Labels) {
		return false
	}
	return true
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

func stripHTML(content string) string {
	return htmlTagRe.ReplaceAllString(content, " ")
}

func queryTerms(query string) []string {
	raw := tokenRe.FindAllString(strings.ToLower(query), -1)
	terms := make([]string, 0, len(raw))
	for _, t := range raw {
		if len(t) < 3 || stopWords[t] {
			continue
		}
		terms = append(terms, t)
	}
	return terms
}

// termFrequencyScore counts occurrences of each query term in title+body,
// weighing terms of length >= 5 double.
func termFrequencyScore(terms []string, title, body string) float64 {
	haystack := strings.ToLower(title + " " + body)
	tokens := tokenRe.FindAllString(haystack, -1)

	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}

	var score float64
	for _, term := range terms {
		weight := 1.0
		if len(term) >= 5 {
			weight = 2.0
		}
		score += float64(counts[term]) * weight
	}
	return score
}
