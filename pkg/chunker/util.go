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
	"regexp"
	"strings"
)

var (
	scriptStyleRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	commentRe     = regexp.MustCompile(`(?s)<!--.*?-->`)
	tagRe         = regexp.MustCompile(`(?s)<[^>]+>`)
	whitespaceRe  = regexp.MustCompile(`[ \t]+`)
	blankLinesRe  = regexp.MustCompile(`\n{3,}`)
	headingMDRe   = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	slugDropRe    = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaceRe   = regexp.MustCompile(`\s+`)
	sentenceEndRe = regexp.MustCompile(`[.!?](["')\]]?)(\s+|$)`)
)

// stripMarkup drops script/style blocks, comments, and tags, collapsing
// whitespace. It never fails; worst case the result is the raw text with
// no tags removed.
func stripMarkup(content string) string {
	s := scriptStyleRe.ReplaceAllString(content, "")
	s = commentRe.ReplaceAllString(s, "")
	s = tagRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// isHeadingLine detects a heading by the "simple strategy" rule: a short
// line with no terminal punctuation.
func isHeadingLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if m := headingMDRe.FindStringSubmatch(line); m != nil {
		return true
	}
	if len(line) > 80 {
		return false
	}
	words := strings.Fields(line)
	if len(words) == 0 || len(words) > 12 {
		return false
	}
	last := line[len(line)-1]
	if last == '.' || last == '!' || last == '?' || last == ',' || last == ';' {
		return false
	}
	return true
}

// headingText extracts the visible heading text and level (1 if not a
// markdown heading).
func headingText(line string) (text string, level int) {
	line = strings.TrimSpace(line)
	if m := headingMDRe.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[2]), len(m[1])
	}
	return line, 1
}

// slugify implements the spec's anchor rule: slugify first 50 chars of
// heading, dropping anything outside [a-z0-9\s-] and turning spaces into
// hyphens.
func slugify(heading string) string {
	h := heading
	if len(h) > 50 {
		h = h[:50]
	}
	h = strings.ToLower(h)
	h = slugDropRe.ReplaceAllString(h, "")
	h = strings.TrimSpace(h)
	h = slugSpaceRe.ReplaceAllString(h, "-")
	return strings.Trim(h, "-")
}

// splitSentences splits text into sentences, keeping terminal punctuation
// attached to the preceding sentence.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	idxs := sentenceEndRe.FindAllStringIndex(text, -1)
	var sentences []string
	start := 0
	for _, idx := range idxs {
		end := idx[1]
		sentences = append(sentences, strings.TrimSpace(text[start:end]))
		start = end
	}
	if start < len(text) {
		rest := strings.TrimSpace(text[start:])
		if rest != "" {
			sentences = append(sentences, rest)
		}
	}
	return sentences
}

// approxTokens estimates token count from word count, per spec
// (approx tokens ≈ words × 1.3).
func approxTokens(words int) int {
	return int(float64(words)*1.3 + 0.5)
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

// hasCodeMarkers reports whether text looks like it contains code.
func hasCodeMarkers(text string) bool {
	return strings.Contains(text, "```") || strings.Contains(text, "    def ") ||
		strings.Contains(text, "\tfunc ") || strings.Contains(text, "{") && strings.Contains(text, "}")
}

func hasTableMarkers(text string) bool {
	return strings.Contains(text, "|---") || strings.Count(text, "|") >= 4
}

func hasListMarkers(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "- ") || strings.HasPrefix(t, "* ") {
			return true
		}
		if len(t) > 2 && t[0] >= '0' && t[0] <= '9' && (t[1] == '.' || t[1] == ')') {
			return true
		}
	}
	return false
}
