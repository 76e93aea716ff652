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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/katroc/wikiretriever/pkg/docstore"
	"github.com/katroc/wikiretriever/pkg/wiki"
)

// documentVerdict is one entry of the analyzer's JSON response.
type documentVerdict struct {
	ID        string  `json:"id"`
	Relevance float64 `json:"relevance"`
	Passage   string  `json:"passage"`
}

// analyzeDocuments asks the LLM to read a broad keyword-search result set
// and return, per document, a relevance score and the passage that
// justifies it. Used by the smart strategy in place of dense search.
func analyzeDocuments(ctx context.Context, llm LLM, query string, docs []docstore.Document) ([]Candidate, error) {
	if llm == nil {
		return nil, fmt.Errorf("retriever: document analyzer requires an LLM")
	}
	if len(docs) == 0 {
		return nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nFor each document below, decide how relevant it is to the query and extract the single best supporting passage.\n\n", sanitizeInput(query))
	for _, d := range docs {
		excerpt := d.Content
		if len(excerpt) > 800 {
			excerpt = excerpt[:800]
		}
		fmt.Fprintf(&b, "Document id=%s title=%q\n%s\n\n", d.ID, d.Title, excerpt)
	}
	b.WriteString(`Return only a JSON array, one object per document, shaped like:
[{"id": "<document id>", "relevance": 0.0-1.0, "passage": "<best supporting excerpt>"}]`)

	response, err := llm.Chat(ctx, []wiki.ChatMessage{{Role: "user", Content: b.String()}}, wiki.ChatOptions{Temperature: 0.2, MaxTokens: 800})
	if err != nil {
		return nil, fmt.Errorf("retriever: document analyzer: %w", err)
	}

	verdicts := parseDocumentVerdicts(response)
	if verdicts == nil {
		return nil, fmt.Errorf("retriever: document analyzer returned an unparsable response")
	}

	byID := make(map[string]docstore.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	candidates := make([]Candidate, 0, len(verdicts))
	for _, v := range verdicts {
		d, ok := byID[v.ID]
		if !ok || v.Relevance <= 0 {
			continue
		}
		text := v.Passage
		if text == "" {
			text = d.Content
		}
		candidates = append(candidates, Candidate{
			ChunkID:   d.ID,
			PageID:    d.ID,
			Space:     d.Space,
			Title:     d.Title,
			Text:      text,
			URL:       d.URL,
			UpdatedAt: d.UpdatedAt,
			Labels:    d.Labels,
			Score:     v.Relevance,
		})
	}
	return candidates, nil
}

func parseDocumentVerdicts(response string) []documentVerdict {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start < 0 || end < start {
		return nil
	}
	var verdicts []documentVerdict
	if err := json.Unmarshal([]byte(response[start:end+1]), &verdicts); err != nil {
		return nil
	}
	return verdicts
}
