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
	"regexp"
	"strings"
)

var lexicalTokenRe = regexp.MustCompile(`[a-zA-Z0-9]+`)

// keywordRelevance scores title+text against the query's tokens by
// simple overlap ratio, used for the lexical floor (§4.5 step 10).
func keywordRelevance(query, title, text string) float64 {
	queryTokens := lexicalTokenRe.FindAllString(strings.ToLower(query), -1)
	if len(queryTokens) == 0 {
		return 0
	}
	haystack := tokenSet(strings.ToLower(title + " " + text))
	hits := 0
	for _, tok := range queryTokens {
		if haystack[tok] {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTokens))
}

// applyLexicalFloor drops candidates whose keyword relevance is below
// minKeywordScore and blends the final score 0.3*vector + 0.7*lexical
// for survivors.
func applyLexicalFloor(candidates []Candidate, query string, minKeywordScore float64) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		lexical := keywordRelevance(query, c.Title, c.Text)
		if lexical < minKeywordScore {
			continue
		}
		c.Score = 0.3*c.Score + 0.7*lexical
		out = append(out, c)
	}
	return out
}
