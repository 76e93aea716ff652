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

import "strings"

// buildCitations renders one Citation per candidate, in the same order,
// per §4.5 step 12.
func buildCitations(candidates []Candidate, baseURL string) []Citation {
	citations := make([]Citation, len(candidates))
	for i, c := range candidates {
		citations[i] = Citation{
			PageID:        c.PageID,
			Title:         c.Title,
			URL:           resolveURL(c.URL, c.SectionAnchor, baseURL),
			SectionAnchor: c.SectionAnchor,
			Snippet:       snippet(c.Text, 200),
		}
	}
	return citations
}

func resolveURL(chunkURL, sectionAnchor, baseURL string) string {
	url := chunkURL
	if !isAbsoluteURL(url) {
		url = strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(url, "/")
	}
	if sectionAnchor != "" {
		url += "#" + sectionAnchor
	}
	return url
}

func isAbsoluteURL(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "file://")
}

// snippet takes the first n chars of text, ellipsized at a word
// boundary when possible.
func snippet(text string, n int) string {
	if len(text) <= n {
		return text
	}
	cut := text[:n]
	if idx := strings.LastIndexAny(cut, " \t\n"); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut) + "..."
}
