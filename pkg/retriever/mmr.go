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
	"math"
	"strings"
)

// mmrSelect iteratively picks the candidate maximizing
// lambda*relevance(c) - (1-lambda)*maxSimilarity(c, selected), stopping
// at finalK (§4.5 step 8). candidates must already be sorted by
// relevance (candidate.Score is used as relevance).
func mmrSelect(candidates []Candidate, lambda float64, finalK int) []Candidate {
	if finalK <= 0 || len(candidates) == 0 {
		return nil
	}
	remaining := make([]Candidate, len(candidates))
	copy(remaining, candidates)

	selected := make([]Candidate, 0, finalK)
	for len(selected) < finalK && len(remaining) > 0 {
		bestIdx := -1
		bestScore := math.Inf(-1)
		for i, c := range remaining {
			sim := maxSimilarityTo(c, selected)
			mmrScore := lambda*c.Score - (1-lambda)*sim
			if mmrScore > bestScore {
				bestScore = mmrScore
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

func maxSimilarityTo(c Candidate, selected []Candidate) float64 {
	var max float64
	for _, s := range selected {
		sim := candidateSimilarity(c, s)
		if sim > max {
			max = sim
		}
	}
	return max
}

// candidateSimilarity uses cosine similarity over vectors when both
// candidates have one, falling back to Jaccard similarity over
// lowercased word tokens otherwise.
func candidateSimilarity(a, b Candidate) float64 {
	if len(a.Vector) > 0 && len(b.Vector) > 0 && len(a.Vector) == len(b.Vector) {
		return cosineSimilarity(a.Vector, b.Vector)
	}
	return jaccardSimilarity(a.Text, b.Text)
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		sim = 0
	}
	return sim
}

func jaccardSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		set[tok] = true
	}
	return set
}
