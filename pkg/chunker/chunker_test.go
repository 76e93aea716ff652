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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPage() Page {
	return Page{ID: "p1", Title: "Database Design Principles", Space: "ENG", Version: 1, UpdatedAt: 1700000000}
}

func TestSimpleChunker_EmptyContent(t *testing.T) {
	c, err := New(Config{Strategy: StrategySimple})
	require.NoError(t, err)

	chunks, err := c.Chunk(testPage(), "   \n\n  ")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSimpleChunker_SingleSectionRoundTrip(t *testing.T) {
	c, err := New(Config{Strategy: StrategySimple, MinChunkWords: 5})
	require.NoError(t, err)

	content := "Normalization\n\nNormalization eliminates redundancy. It organizes data into tables. " +
		strings.Repeat("Extra filler sentence about indexing strategies. ", 5)

	chunks, err := c.Chunk(testPage(), content)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.Equal(t, "p1", ch.PageID)
		assert.Equal(t, "ENG", ch.Space)
		assert.NotEmpty(t, ch.ID)
		assert.GreaterOrEqual(t, ch.IndexedAt, ch.UpdatedAt)
	}
	assert.Equal(t, "normalization", chunks[0].SectionAnchor)
}

func TestSimpleChunker_StripsMarkupAndNeverFails(t *testing.T) {
	c, err := New(Config{Strategy: StrategySimple})
	require.NoError(t, err)

	content := "<script>evil()</script><h1>Title</h1><p>Some <b>bold</b> text with content.</p>"
	chunks, err := c.Chunk(testPage(), content)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.NotContains(t, ch.Text, "<script>")
		assert.NotContains(t, ch.Text, "evil()")
	}
}

func TestSimpleChunker_Deterministic(t *testing.T) {
	c, err := New(Config{Strategy: StrategySimple})
	require.NoError(t, err)

	content := "Heading One\n\nFirst sentence here. Second sentence follows. Third one too."
	a, err := c.Chunk(testPage(), content)
	require.NoError(t, err)
	b, err := c.Chunk(testPage(), content)
	require.NoError(t, err)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Text, b[i].Text)
		assert.Equal(t, a[i].SectionAnchor, b[i].SectionAnchor)
	}
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "database-normalization", slugify("Database Normalization!"))
	assert.Equal(t, "a-very-long-heading-that-goes-on-and-on-and-should", slugify("A Very Long Heading That Goes On And On And Should Be Truncated At Fifty Characters Exactly"))
}

func TestSemanticChunker_HeadingLevels(t *testing.T) {
	c, err := New(Config{Strategy: StrategySemantic, MinChunkWords: 3, MaxChunkWords: 200, TargetChunkSize: 20})
	require.NoError(t, err)

	content := "# Overview\n\nThis system stores wiki pages for retrieval.\n\n## Details\n\nChunking splits pages into sections with anchors."
	chunks, err := c.Chunk(testPage(), content)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	var sawOverview, sawDetails bool
	for _, ch := range chunks {
		if ch.SectionAnchor == "overview" {
			sawOverview = true
		}
		if ch.SectionAnchor == "details" {
			sawDetails = true
		}
	}
	assert.True(t, sawOverview)
	assert.True(t, sawDetails)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Strategy: "bogus"}
	cfg.SetDefaults()
	cfg.Strategy = "bogus"
	err := cfg.Validate()
	assert.Error(t, err)
}
