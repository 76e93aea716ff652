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
	"strings"
	"time"
)

// simpleChunker is the default strategy: strip markup, detect headings by
// short terminal-punctuation-free lines, split into sections, then
// within a section split by word count with word overlap.
type simpleChunker struct {
	cfg Config
}

func (c *simpleChunker) Strategy() Strategy { return StrategySimple }
func (c *simpleChunker) Config() Config     { return c.cfg }

type plainSection struct {
	heading string
	anchor  string
	level   int
	text    string
}

func (c *simpleChunker) Chunk(page Page, content string) ([]Chunk, error) {
	stripped := stripMarkup(content)
	if strings.TrimSpace(stripped) == "" {
		return nil, nil
	}

	sections := splitIntoSections(stripped)
	now := time.Now().UTC().Unix()

	var chunks []Chunk
	for _, sec := range sections {
		texts := chunkSectionText(sec.text, c.cfg)
		texts = mergeShortChunks(texts, c.cfg.MinChunkWords)
		for i, t := range texts {
			if strings.TrimSpace(t) == "" {
				continue
			}
			meta := map[string]any{
				"section":     sec.heading,
				"level":       sec.level,
				"hasCode":     hasCodeMarkers(t),
				"hasTables":   hasTableMarkers(t),
				"hasLists":    hasListMarkers(t),
				"chunkIndex":  i,
				"hasOverlap":  i > 0 && c.cfg.Overlap > 0,
			}
			chunks = append(chunks, Chunk{
				ID:            newChunkID(),
				PageID:        page.ID,
				Space:         page.Space,
				Title:         page.Title,
				SectionAnchor: sec.anchor,
				Text:          t,
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

// splitIntoSections walks stripped plain text line by line, starting a
// new section whenever a heading line is encountered. Content preceding
// the first heading belongs to an anchor-less section.
func splitIntoSections(text string) []plainSection {
	lines := strings.Split(text, "\n")
	var sections []plainSection
	cur := plainSection{}
	var buf []string

	flush := func() {
		cur.text = strings.TrimSpace(strings.Join(buf, "\n"))
		if cur.text != "" || cur.heading != "" {
			sections = append(sections, cur)
		}
		buf = nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && isHeadingLine(trimmed) {
			flush()
			heading, level := headingText(trimmed)
			cur = plainSection{heading: heading, anchor: slugify(heading), level: level}
			continue
		}
		buf = append(buf, line)
	}
	flush()

	if len(sections) == 0 {
		sections = append(sections, plainSection{text: text})
	}
	return sections
}

// chunkSectionText splits one section's body into word-count-bounded
// chunks that end on sentence boundaries, with word-based overlap
// carried into the next chunk.
func chunkSectionText(text string, cfg Config) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return []string{text}
	}

	var chunks []string
	var cur []string
	curWords := 0

	finalize := func() {
		if len(cur) == 0 {
			return
		}
		// When the chunk holds at least two sentences and the last one is
		// shorter than 50 chars, end the chunk before it and carry that
		// sentence over as the start of the next chunk.
		if len(cur) >= 2 && len(cur[len(cur)-1]) < 50 {
			dropped := cur[len(cur)-1]
			cur = cur[:len(cur)-1]
			chunks = append(chunks, strings.Join(cur, " "))
			cur = []string{dropped}
			curWords = wordCount(dropped)
			return
		}
		chunks = append(chunks, strings.Join(cur, " "))
		cur = nil
		curWords = 0
	}

	for _, s := range sentences {
		w := wordCount(s)
		if curWords > 0 && curWords+w > cfg.MaxChunkSize {
			finalize()
		}
		cur = append(cur, s)
		curWords += w
		if curWords >= cfg.TargetChunkSize {
			finalize()
		}
	}
	if len(cur) > 0 {
		chunks = append(chunks, strings.Join(cur, " "))
	}

	return applyOverlap(chunks, cfg.Overlap)
}

// applyOverlap prepends the last `overlap` words of each chunk onto the
// following chunk, per spec ("overlap is applied in words not
// characters").
func applyOverlap(chunks []string, overlap int) []string {
	if overlap <= 0 || len(chunks) < 2 {
		return chunks
	}
	out := make([]string, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1])
		n := overlap
		if n > len(prevWords) {
			n = len(prevWords)
		}
		prefix := strings.Join(prevWords[len(prevWords)-n:], " ")
		out[i] = strings.TrimSpace(prefix + " " + chunks[i])
	}
	return out
}

// mergeShortChunks merges any chunk (other than the section's first)
// shorter than minWords into the preceding chunk.
func mergeShortChunks(chunks []string, minWords int) []string {
	if len(chunks) == 0 {
		return chunks
	}
	out := []string{chunks[0]}
	for i := 1; i < len(chunks); i++ {
		if wordCount(chunks[i]) < minWords {
			out[len(out)-1] = out[len(out)-1] + " " + chunks[i]
			continue
		}
		out = append(out, chunks[i])
	}
	return out
}
