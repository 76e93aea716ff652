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

var sentenceBoundaryRe = regexp.MustCompile(`[.!?](["')\]]?)(\s+|$)`)

// compressChunkText keeps only sentences whose token overlap with the
// query meets compressionThreshold; if none meet it, the chunk is kept
// unchanged (§4.5 step 9).
func compressChunkText(text, query string, compressionThreshold float64) string {
	sentences := splitSentences(text)
	if len(sentences) <= 1 {
		return text
	}

	queryTokens := tokenSet(strings.ToLower(query))
	if len(queryTokens) == 0 {
		return text
	}

	var kept []string
	for _, s := range sentences {
		sentenceTokens := tokenSet(strings.ToLower(s))
		if len(sentenceTokens) == 0 {
			continue
		}
		overlap := 0
		for tok := range sentenceTokens {
			if queryTokens[tok] {
				overlap++
			}
		}
		ratio := float64(overlap) / float64(len(sentenceTokens))
		if ratio >= compressionThreshold {
			kept = append(kept, s)
		}
	}

	if len(kept) == 0 {
		return text
	}
	return strings.Join(kept, " ")
}

func splitSentences(text string) []string {
	var sentences []string
	last := 0
	locs := sentenceBoundaryRe.FindAllStringIndex(text, -1)
	for _, loc := range locs {
		end := loc[1]
		sentence := strings.TrimSpace(text[last:end])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		last = end
	}
	if last < len(text) {
		tail := strings.TrimSpace(text[last:])
		if tail != "" {
			sentences = append(sentences, tail)
		}
	}
	return sentences
}
