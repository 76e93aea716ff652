package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/katroc/wikiretriever/pkg/chunker"
	"github.com/katroc/wikiretriever/pkg/docstore"
	"github.com/katroc/wikiretriever/pkg/embedder"
	"github.com/katroc/wikiretriever/pkg/wiki"
)

type fakeSource struct {
	mu      sync.Mutex
	pages   map[string][]wiki.Document // space -> docs
	fetched map[string]wiki.Document
}

func newFakeSource() *fakeSource {
	return &fakeSource{pages: make(map[string][]wiki.Document), fetched: make(map[string]wiki.Document)}
}

func (f *fakeSource) SearchDocuments(ctx context.Context, params wiki.SearchParams) (wiki.SearchResponse, error) {
	return wiki.SearchResponse{}, nil
}

func (f *fakeSource) GetDocumentByID(ctx context.Context, id string) (wiki.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.fetched[id]
	if !ok {
		return wiki.Document{}, fmt.Errorf("no such document %s", id)
	}
	return d, nil
}

func (f *fakeSource) ListPagesBySpace(ctx context.Context, space string, start, limit int) (wiki.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	docs := f.pages[space]
	if start >= len(docs) {
		return wiki.SearchResponse{Start: start, Limit: limit, Total: len(docs)}, nil
	}
	end := start + limit
	if end > len(docs) {
		end = len(docs)
	}
	return wiki.SearchResponse{Documents: docs[start:end], Start: start, Limit: limit, Total: len(docs)}, nil
}

func (f *fakeSource) ListAllSpaceKeys(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.pages))
	for k := range f.pages {
		keys = append(keys, k)
	}
	return keys, nil
}

func (f *fakeSource) addPage(space string, doc wiki.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[space] = append(f.pages[space], doc)
	f.fetched[doc.ID] = doc
}

type fakeChunker struct {
	calls int
	mu    sync.Mutex
}

func (c *fakeChunker) Chunk(page chunker.Page, content string) ([]chunker.Chunk, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return []chunker.Chunk{{
		ID: page.ID + "-0", PageID: page.ID, Space: page.Space, Title: page.Title,
		SectionAnchor: "s0", Text: content, Version: page.Version, UpdatedAt: page.UpdatedAt, URL: page.URL,
	}}, nil
}
func (c *fakeChunker) Strategy() chunker.Strategy { return chunker.StrategySimple }
func (c *fakeChunker) Config() chunker.Config     { return chunker.Config{} }

type fakeEmbedder struct {
	fail bool
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1}, nil
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.fail {
		return nil, fmt.Errorf("embedder unreachable")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1}
	}
	return out, nil
}

func (e *fakeEmbedder) EmbedEnhanced(ctx context.Context, texts []string, ctxs []embedder.EnhanceContext) ([]embedder.EnhancedEmbedding, error) {
	return nil, nil
}

func (e *fakeEmbedder) Dimension() int { return 1 }
func (e *fakeEmbedder) Model() string  { return "fake" }
func (e *fakeEmbedder) Close() error   { return nil }

var _ embedder.Embedder = (*fakeEmbedder)(nil)

type fakeVectorStore struct {
	mu      sync.Mutex
	upserts map[string][]chunker.Chunk
}

func (v *fakeVectorStore) UpsertByPage(ctx context.Context, pageID string, chunks []chunker.Chunk) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.upserts == nil {
		v.upserts = make(map[string][]chunker.Chunk)
	}
	v.upserts[pageID] = chunks
	return nil
}

func (v *fakeVectorStore) upsertCountFor(pageID string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.upserts[pageID])
}

func newTestWorker(t *testing.T, source *fakeSource, embed *fakeEmbedder, vs *fakeVectorStore, docs *docstore.Store) *Worker {
	t.Helper()
	state, err := LoadState(filepath.Join(t.TempDir(), "ingest-state.json"))
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	return NewWorker(source, &fakeChunker{}, embed, vs, docs, state)
}

func TestWorker_RunOnce_ProcessesNewPages(t *testing.T) {
	source := newFakeSource()
	source.addPage("SPACE", wiki.Document{ID: "p1", Title: "Page 1", Space: "SPACE", Content: "hello world", Version: 1})
	vs := &fakeVectorStore{}
	w := newTestWorker(t, source, &fakeEmbedder{}, vs, docstore.New())

	processed, err := w.RunOnce(context.Background(), Config{Spaces: []string{"SPACE"}})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if processed["SPACE"] != 1 {
		t.Fatalf("expected 1 processed page, got %d", processed["SPACE"])
	}
	if vs.upsertCountFor("p1") != 1 {
		t.Fatalf("expected page p1 to be upserted")
	}
}

func TestWorker_RunOnce_SkipsUnchangedContent(t *testing.T) {
	source := newFakeSource()
	source.addPage("SPACE", wiki.Document{ID: "p1", Title: "Page 1", Space: "SPACE", Content: "hello world", Version: 1})
	vs := &fakeVectorStore{}
	chunk := &fakeChunker{}
	state, err := LoadState(filepath.Join(t.TempDir(), "ingest-state.json"))
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	w := NewWorker(source, chunk, &fakeEmbedder{}, vs, docstore.New(), state)

	if _, err := w.RunOnce(context.Background(), Config{Spaces: []string{"SPACE"}}); err != nil {
		t.Fatalf("first RunOnce: %v", err)
	}
	processed, err := w.RunOnce(context.Background(), Config{Spaces: []string{"SPACE"}})
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if processed["SPACE"] != 0 {
		t.Fatalf("expected the second tick to skip unchanged content, got %d processed", processed["SPACE"])
	}
	if chunk.calls != 1 {
		t.Fatalf("expected chunking to run only once, ran %d times", chunk.calls)
	}
}

func TestWorker_RunOnce_ReindexesChangedContent(t *testing.T) {
	source := newFakeSource()
	source.addPage("SPACE", wiki.Document{ID: "p1", Title: "Page 1", Space: "SPACE", Content: "hello world", Version: 1})
	vs := &fakeVectorStore{}
	w := newTestWorker(t, source, &fakeEmbedder{}, vs, docstore.New())

	if _, err := w.RunOnce(context.Background(), Config{Spaces: []string{"SPACE"}}); err != nil {
		t.Fatalf("first RunOnce: %v", err)
	}

	source.mu.Lock()
	source.fetched["p1"] = wiki.Document{ID: "p1", Title: "Page 1", Space: "SPACE", Content: "hello universe", Version: 2}
	source.pages["SPACE"][0] = source.fetched["p1"]
	source.mu.Unlock()

	processed, err := w.RunOnce(context.Background(), Config{Spaces: []string{"SPACE"}})
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if processed["SPACE"] != 1 {
		t.Fatalf("expected the changed page to be reprocessed, got %d", processed["SPACE"])
	}
}

func TestWorker_RunOnce_FatalEmbedderErrorAbortsTick(t *testing.T) {
	source := newFakeSource()
	source.addPage("SPACE", wiki.Document{ID: "p1", Title: "Page 1", Space: "SPACE", Content: "hello world", Version: 1})
	vs := &fakeVectorStore{}
	w := newTestWorker(t, source, &fakeEmbedder{fail: true}, vs, docstore.New())

	_, err := w.RunOnce(context.Background(), Config{Spaces: []string{"SPACE"}})
	if err == nil {
		t.Fatal("expected a fatal error when the embedder is unreachable")
	}
	if vs.upsertCountFor("p1") != 0 {
		t.Fatalf("a failed embed must not reach the vector store")
	}
}

func TestWorker_RunOnce_AllSpacesDiscoversSpaceKeys(t *testing.T) {
	source := newFakeSource()
	source.addPage("A", wiki.Document{ID: "a1", Title: "A1", Space: "A", Content: "x", Version: 1})
	source.addPage("B", wiki.Document{ID: "b1", Title: "B1", Space: "B", Content: "y", Version: 1})
	vs := &fakeVectorStore{}
	w := newTestWorker(t, source, &fakeEmbedder{}, vs, docstore.New())

	processed, err := w.RunOnce(context.Background(), Config{AllSpaces: true})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if processed["A"] != 1 || processed["B"] != 1 {
		t.Fatalf("expected both discovered spaces processed, got %+v", processed)
	}
}

func TestRateLimiter_SpacesTokens(t *testing.T) {
	rl := NewRateLimiter(20 * time.Millisecond)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("expected rate limiter to space out tokens, elapsed only %v", elapsed)
	}
}

func TestSemaphore_BoundsConcurrency(t *testing.T) {
	sem := NewSemaphore(2)
	ctx := context.Background()
	if err := sem.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := sem.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		sem.Acquire(ctx)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("expected the third acquire to block while two tokens are held")
	case <-time.After(20 * time.Millisecond):
	}

	sem.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("expected the third acquire to proceed after a release")
	}
}
