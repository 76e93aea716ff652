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

	"github.com/katroc/wikiretriever/pkg/wiki"
)

// sanitizeInput strips common prompt-injection patterns before a query is
// interpolated into an LLM prompt.
func sanitizeInput(input string) string {
	sanitized := input
	for _, role := range []string{"SYSTEM:", "System:", "system:", "ASSISTANT:", "Assistant:", "assistant:", "USER:", "User:", "user:"} {
		sanitized = strings.ReplaceAll(sanitized, role, "")
	}
	for _, phrase := range []string{"Ignore previous instructions", "ignore previous instructions", "Ignore all previous", "ignore all previous", "Disregard previous", "disregard previous"} {
		sanitized = strings.ReplaceAll(sanitized, phrase, "")
	}
	sanitized = strings.ReplaceAll(sanitized, "---", "")
	sanitized = strings.ReplaceAll(sanitized, "===", "")
	sanitized = strings.ReplaceAll(sanitized, "***", "")
	sanitized = strings.ReplaceAll(sanitized, "```", "")
	return strings.TrimSpace(sanitized)
}

// generateHypotheticalDocument implements HyDE: an LLM writes a short
// hypothetical answer to the query, which is embedded and searched
// instead of (or alongside) the query itself, since an answer's
// embedding tends to land closer to relevant chunks than a question's.
func generateHypotheticalDocument(ctx context.Context, llm LLM, query string) (string, error) {
	if llm == nil {
		return "", fmt.Errorf("retriever: HyDE requires an LLM")
	}

	prompt := fmt.Sprintf(`Write a concise, hypothetical document that would be highly relevant to answer the following query: %q

The document should:
- Be brief (1-2 paragraphs)
- Directly address the core of the query
- Sound like a real wiki excerpt
- Not mention that it's hypothetical

Document:`, sanitizeInput(query))

	doc, err := llm.Chat(ctx, []wiki.ChatMessage{{Role: "user", Content: prompt}}, wiki.ChatOptions{Temperature: 0.7, MaxTokens: 300})
	if err != nil {
		return "", fmt.Errorf("retriever: generate hypothetical document: %w", err)
	}
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return "", fmt.Errorf("retriever: LLM returned an empty hypothetical document")
	}
	return doc, nil
}

// expandQuery asks the LLM for numVariants alternative phrasings of
// query. Malformed or empty LLM output yields an empty slice rather
// than an error, since expansion is an enhancement the caller can
// always fall back from.
func expandQuery(ctx context.Context, llm LLM, query string, numVariants int) ([]string, error) {
	if llm == nil {
		return nil, fmt.Errorf("retriever: query expansion requires an LLM")
	}
	if numVariants <= 0 {
		numVariants = 3
	}
	if numVariants > 5 {
		numVariants = 5
	}

	prompt := fmt.Sprintf(`Generate %d different query variations for the following search query. Each variation should:
1. Use different wording or phrasing
2. Focus on different aspects or perspectives
3. Be semantically similar but not identical
4. Be suitable for document retrieval

Original query: %s

Return only a JSON array of query strings, without any additional text or explanation.
Example format: ["query 1", "query 2", "query 3"]`, numVariants, sanitizeInput(query))

	response, err := llm.Chat(ctx, []wiki.ChatMessage{{Role: "user", Content: prompt}}, wiki.ChatOptions{Temperature: 0.7, MaxTokens: 200})
	if err != nil {
		return nil, fmt.Errorf("retriever: expand query: %w", err)
	}

	variants := parseJSONStringArray(response)
	if len(variants) > numVariants {
		variants = variants[:numVariants]
	}
	return variants, nil
}

// parseJSONStringArray extracts a JSON string array from response, which
// may be wrapped in prose or a markdown code fence despite the prompt
// asking for neither.
func parseJSONStringArray(response string) []string {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start < 0 || end < start {
		return nil
	}
	var variants []string
	if err := json.Unmarshal([]byte(response[start:end+1]), &variants); err != nil {
		return nil
	}
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
