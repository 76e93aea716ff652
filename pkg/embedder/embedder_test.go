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

package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalEmbedder_DeterministicAndNormalized(t *testing.T) {
	e := NewLocalEmbedder(32)
	a, err := e.Embed(context.Background(), "normalization eliminates redundancy")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "normalization eliminates redundancy")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	var norm float64
	for _, x := range a {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, norm, 1e-6)
}

func TestLocalEmbedder_EmptyTextIsZeroVector(t *testing.T) {
	e := NewLocalEmbedder(16)
	v, err := e.Embed(context.Background(), "")
	require.NoError(t, err)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestLocalEmbedder_BatchPreservesOrder(t *testing.T) {
	e := NewLocalEmbedder(16)
	texts := []string{"alpha beta", "gamma delta", "epsilon zeta"}
	batch, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	for i, text := range texts {
		single, err := e.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

func TestLocalEmbedder_EmbedEnhanced(t *testing.T) {
	e := NewLocalEmbedder(32)
	out, err := e.EmbedEnhanced(context.Background(), []string{"database normalization eliminates redundancy"},
		[]EnhanceContext{{DocumentTitle: "Database Design", HasCode: true}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Metadata.HasContext)
	assert.NotEmpty(t, out[0].Sparse)
	assert.NotEmpty(t, out[0].Metadata.Keywords)
}

func TestSparseTermWeights_DropsShortAndStopWords(t *testing.T) {
	weights := sparseTermWeights("the a an of to database normalization eliminates redundancy")
	_, hasThe := weights["the"]
	assert.False(t, hasThe)
	assert.Contains(t, weights, "database")
	assert.Contains(t, weights, "normalization")
}

func TestTopKeywords_RespectsLimit(t *testing.T) {
	keywords := topKeywords("database normalization indexing partitioning replication sharding consistency durability availability", 3)
	assert.Len(t, keywords, 3)
}

func TestTopKeywords_EmptyText(t *testing.T) {
	assert.Nil(t, topKeywords("", 5))
}
