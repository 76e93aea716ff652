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

package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katroc/wikiretriever/pkg/chunker"
)

// fakeProvider is an in-memory Provider used to test Store's page-level
// semantics without a real backend, grounded in the teacher's
// function-pointer mock idiom (pkg/context/search_test.go).
type fakeProvider struct {
	docs         map[string]fakeDoc
	upsertCalls  int
	deleteCalls  int
	searchCalls  int
}

type fakeDoc struct {
	vector   []float32
	metadata map[string]any
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{docs: make(map[string]fakeDoc)}
}

func (f *fakeProvider) Upsert(ctx context.Context, collection, id string, vector []float32, metadata map[string]any) error {
	f.upsertCalls++
	f.docs[id] = fakeDoc{vector: vector, metadata: metadata}
	return nil
}

func (f *fakeProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	return f.SearchWithFilter(ctx, collection, vector, topK, nil)
}

func (f *fakeProvider) SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error) {
	f.searchCalls++
	var out []Result
	for id, d := range f.docs {
		if filter != nil {
			match := true
			for k, v := range filter {
				if d.metadata[k] != v {
					match = false
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, Result{ID: id, Metadata: d.metadata, Vector: d.vector, Score: 1.0})
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (f *fakeProvider) Delete(ctx context.Context, collection, id string) error {
	delete(f.docs, id)
	return nil
}

func (f *fakeProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	f.deleteCalls++
	for id, d := range f.docs {
		match := true
		for k, v := range filter {
			if d.metadata[k] != v {
				match = false
				break
			}
		}
		if match {
			delete(f.docs, id)
		}
	}
	return nil
}

func (f *fakeProvider) CreateCollection(ctx context.Context, collection string, dimension int) error {
	return nil
}
func (f *fakeProvider) DeleteCollection(ctx context.Context, collection string) error { return nil }
func (f *fakeProvider) Name() string                                                 { return "fake" }
func (f *fakeProvider) Close() error                                                  { return nil }

var _ Provider = (*fakeProvider)(nil)

func testChunk(pageID, id string) chunker.Chunk {
	return chunker.Chunk{ID: id, PageID: pageID, Space: "ENG", Title: "T", Text: "hello world", Vector: []float32{0.1, 0.2}}
}

func TestStore_UpsertByPage_ReplacesPriorChunks(t *testing.T) {
	p := newFakeProvider()
	s := NewStore(p, StoreConfig{Collection: "c"})
	ctx := context.Background()

	require.NoError(t, s.UpsertByPage(ctx, "page1", []chunker.Chunk{testChunk("page1", "a"), testChunk("page1", "b")}))
	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ChunkCount)

	require.NoError(t, s.UpsertByPage(ctx, "page1", []chunker.Chunk{testChunk("page1", "c")}))
	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ChunkCount)
	assert.Equal(t, 1, stats.PageCount)

	_, hasA := p.docs["a"]
	assert.False(t, hasA)
	_, hasC := p.docs["c"]
	assert.True(t, hasC)
}

func TestStore_DeleteByPageID(t *testing.T) {
	p := newFakeProvider()
	s := NewStore(p, StoreConfig{Collection: "c"})
	ctx := context.Background()

	require.NoError(t, s.UpsertByPage(ctx, "page1", []chunker.Chunk{testChunk("page1", "a")}))
	require.NoError(t, s.DeleteByPageID(ctx, "page1"))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.PageCount)
	assert.Empty(t, p.docs)
}

func TestStore_SearchSimilar_CachesUntilWrite(t *testing.T) {
	p := newFakeProvider()
	s := NewStore(p, StoreConfig{Collection: "c"})
	ctx := context.Background()
	require.NoError(t, s.UpsertByPage(ctx, "page1", []chunker.Chunk{testChunk("page1", "a")}))

	_, err := s.SearchSimilar(ctx, []float32{0.1, 0.2}, 5, nil)
	require.NoError(t, err)
	_, err = s.SearchSimilar(ctx, []float32{0.1, 0.2}, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, p.searchCalls, "second identical search should hit the cache")

	require.NoError(t, s.UpsertByPage(ctx, "page2", []chunker.Chunk{testChunk("page2", "b")}))
	_, err = s.SearchSimilar(ctx, []float32{0.1, 0.2}, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, p.searchCalls, "cache should be invalidated after a write")
}

func TestStore_DefaultSchema_DropsUnknownMetadataField(t *testing.T) {
	p := newFakeProvider()
	s := NewStore(p, StoreConfig{Collection: "c", StrictSchema: false, IndexedMetadataFields: []string{"chunkIndex"}})
	ctx := context.Background()

	c := testChunk("page1", "a")
	c.Metadata = map[string]any{"chunkIndex": 0, "unexpectedField": "x"}
	require.NoError(t, s.UpsertByPage(ctx, "page1", []chunker.Chunk{c}))

	md := p.docs["a"].metadata
	_, hasUnexpected := md["unexpectedField"]
	assert.False(t, hasUnexpected)
	assert.Equal(t, 0, md["chunkIndex"])
}
