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
	"math"
	"regexp"
	"sort"
	"strings"
)

var wordRe = regexp.MustCompile(`[a-zA-Z0-9]+`)

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "on": true, "for": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "with": true, "that": true, "this": true,
	"it": true, "as": true, "by": true, "at": true, "from": true, "not": true,
}

// sparseTermWeights computes a TF·IDF-style term→weight map over text.
// Only terms longer than 2 characters and with a final score above 0.01
// survive, per §4.2.
func sparseTermWeights(text string) map[string]float64 {
	terms := tokenizeWords(text)
	if len(terms) == 0 {
		return nil
	}

	counts := make(map[string]int, len(terms))
	for _, t := range terms {
		counts[t]++
	}

	total := float64(len(terms))
	weights := make(map[string]float64)
	for term, count := range counts {
		if len(term) <= 2 || stopWords[term] {
			continue
		}
		tf := float64(count) / total
		idf := math.Log(1 + 1/tf)
		score := tf * idf
		if score > 0.01 {
			weights[term] = score
		}
	}
	return weights
}

func tokenizeWords(text string) []string {
	matches := wordRe.FindAllString(strings.ToLower(text), -1)
	return matches
}

// topKeywords returns the n highest-weighted sparse terms for text.
func topKeywords(text string, n int) []string {
	weights := sparseTermWeights(text)
	if len(weights) == 0 {
		return nil
	}
	type kv struct {
		term   string
		weight float64
	}
	sorted := make([]kv, 0, len(weights))
	for term, w := range weights {
		sorted = append(sorted, kv{term, w})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].weight != sorted[j].weight {
			return sorted[i].weight > sorted[j].weight
		}
		return sorted[i].term < sorted[j].term
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = sorted[i].term
	}
	return out
}
