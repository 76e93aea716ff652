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
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/katroc/wikiretriever/pkg/vector"
)

func candidateFromResult(r vector.Result) Candidate {
	md := r.Metadata
	c := Candidate{
		ChunkID:  r.ID,
		Text:     r.Content,
		Vector:   r.Vector,
		Metadata: md,
		Score:    r.Score,
	}
	if v, ok := md["page_id"].(string); ok {
		c.PageID = v
	}
	if v, ok := md["space"].(string); ok {
		c.Space = v
	}
	if v, ok := md["title"].(string); ok {
		c.Title = v
	}
	if v, ok := md["section_anchor"].(string); ok {
		c.SectionAnchor = v
	}
	if v, ok := md["url"].(string); ok {
		c.URL = v
	}
	if v, ok := md["text"].(string); ok && c.Text == "" {
		c.Text = v
	}
	if v, ok := md["labels"].(string); ok && v != "" {
		c.Labels = strings.Split(v, ",")
	}
	c.Version = asInt(md["version"])
	c.UpdatedAt = asInt64(md["updated_at"])
	c.IndexedAt = asInt64(md["indexed_at"])
	return c
}

// asInt and asInt64 accept the string encoding chromem round-trips
// every metadata value through (fmt.Sprint on write, always string on
// read), as well as the numeric types a backend that preserves types
// natively, such as Qdrant, returns directly.
func asInt(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0
		}
		return int(n)
	default:
		return 0
	}
}

func asInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return int64(x)
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// dedupKey is (pageId, sectionAnchor, text[0:100]) per §4.5 step 5.
func dedupKey(c Candidate) string {
	text := c.Text
	if len(text) > 100 {
		text = text[:100]
	}
	return fmt.Sprintf("%s\x00%s\x00%s", c.PageID, c.SectionAnchor, text)
}

// dedupeCandidates keeps the highest-scoring duplicate per key, order
// otherwise preserved among first occurrences.
func dedupeCandidates(candidates []Candidate) []Candidate {
	best := make(map[string]Candidate, len(candidates))
	order := make([]string, 0, len(candidates))
	for _, c := range candidates {
		key := dedupKey(c)
		if existing, ok := best[key]; ok {
			if c.Score > existing.Score {
				best[key] = c
			}
			continue
		}
		best[key] = c
		order = append(order, key)
	}
	out := make([]Candidate, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

// maxScore returns the highest Score among candidates, or 0 if empty.
func maxScore(candidates []Candidate) float64 {
	var m float64
	for _, c := range candidates {
		if c.Score > m {
			m = c.Score
		}
	}
	return m
}

// applyThreshold computes the effective threshold and reports whether
// candidates survive it at all (§4.5 step 6).
func applyThreshold(candidates []Candidate, baseThreshold float64, adaptive bool) (threshold float64, ok bool) {
	threshold = baseThreshold
	best := maxScore(candidates)
	if adaptive {
		adaptiveThreshold := 0.6 * best
		if adaptiveThreshold > threshold {
			threshold = adaptiveThreshold
		}
	}
	const epsilon = 1e-3
	if best < threshold-epsilon {
		return threshold, false
	}
	return threshold, true
}

// capPerDocument limits chunks per pageId to n, preserving relative order.
func capPerDocument(candidates []Candidate, n int) []Candidate {
	counts := make(map[string]int)
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if counts[c.PageID] >= n {
			continue
		}
		counts[c.PageID]++
		out = append(out, c)
	}
	return out
}

// sortByScoreDesc stable-sorts candidates by descending Score.
func sortByScoreDesc(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
}
