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

package chunker

import (
	"fmt"
	"strings"
	"time"
)

// semanticChunker parses h1..h6 headings by structured match, builds a
// section tree carrying a level, and windows chunks with configurable
// min/max words and a context window, optionally prepending a short
// "Section: <heading>" prefix.
type semanticChunker struct {
	cfg Config
}

func (c *semanticChunker) Strategy() Strategy { return StrategySemantic }
func (c *semanticChunker) Config() Config     { return c.cfg }

type headingSection struct {
	heading string
	anchor  string
	level   int
	body    string
}

func (c *semanticChunker) Chunk(page Page, content string) ([]Chunk, error) {
	stripped := stripMarkup(content)
	if strings.TrimSpace(stripped) == "" {
		return nil, nil
	}

	sections := parseHeadingTree(stripped)
	now := time.Now().UTC().Unix()

	var chunks []Chunk
	for _, sec := range sections {
		windows := windowSection(sec, c.cfg)
		for i, w := range windows {
			meta := map[string]any{
				"section":    sec.heading,
				"level":      sec.level,
				"hasCode":    hasCodeMarkers(w),
				"hasTables":  hasTableMarkers(w),
				"hasLists":   hasListMarkers(w),
				"chunkIndex": i,
				"hasOverlap": i > 0 && c.cfg.ContextWindow > 0,
			}
			chunks = append(chunks, Chunk{
				ID:            newChunkID(),
				PageID:        page.ID,
				Space:         page.Space,
				Title:         page.Title,
				SectionAnchor: sec.anchor,
				Text:          w,
				Version:       page.Version,
				UpdatedAt:     page.UpdatedAt,
				Labels:        page.Labels,
				URL:           page.URL,
				IndexedAt:     now,
				Metadata:      meta,
			})
		}
	}
	return chunks, nil
}

// parseHeadingTree splits text on markdown-style h1..h6 lines, producing
// a flat list of sections each annotated with its nesting level.
// Non-heading documents (no "#" markers) yield a single top-level
// section.
func parseHeadingTree(text string) []headingSection {
	lines := strings.Split(text, "\n")
	var sections []headingSection
	cur := headingSection{level: 1}
	var buf []string

	flush := func() {
		cur.body = strings.TrimSpace(strings.Join(buf, "\n"))
		if cur.body != "" || cur.heading != "" {
			sections = append(sections, cur)
		}
		buf = nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if m := headingMDRe.FindStringSubmatch(trimmed); m != nil {
			flush()
			heading := strings.TrimSpace(m[2])
			cur = headingSection{heading: heading, anchor: slugify(heading), level: len(m[1])}
			continue
		}
		buf = append(buf, line)
	}
	flush()

	if len(sections) == 0 {
		sections = append(sections, headingSection{body: text, level: 1})
	}
	return sections
}

// windowSection slides a min/max-word window over a section's body,
// carrying `contextWindow` sentences of overlap between consecutive
// windows and prefixing each with "Section: <heading>" when the section
// has one.
func windowSection(sec headingSection, cfg Config) []string {
	sentences := splitSentences(sec.body)
	if len(sentences) == 0 {
		if sec.heading != "" {
			return nil
		}
		return nil
	}

	var windows []string
	i := 0
	for i < len(sentences) {
		var cur []string
		words := 0
		j := i
		for j < len(sentences) {
			w := wordCount(sentences[j])
			if words > 0 && words+w > cfg.MaxChunkWords {
				break
			}
			cur = append(cur, sentences[j])
			words += w
			j++
			if words >= cfg.MinChunkWords && words >= cfg.TargetChunkSize {
				break
			}
		}
		body := strings.Join(cur, " ")
		if sec.heading != "" {
			body = fmt.Sprintf("Section: %s\n%s", sec.heading, body)
		}
		windows = append(windows, body)

		next := j - cfg.ContextWindow
		if next <= i {
			next = j
		}
		i = next
	}
	return windows
}
