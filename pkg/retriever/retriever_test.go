package retriever

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/katroc/wikiretriever/pkg/config"
	"github.com/katroc/wikiretriever/pkg/docstore"
	"github.com/katroc/wikiretriever/pkg/vector"
	"github.com/katroc/wikiretriever/pkg/wiki"
)

type fakeVectorSearcher struct {
	searchFunc func(ctx context.Context, vec []float32, topK int, filter map[string]any) ([]vector.Result, error)
	calls      int
}

func (f *fakeVectorSearcher) SearchSimilar(ctx context.Context, vec []float32, topK int, filter map[string]any) ([]vector.Result, error) {
	f.calls++
	if f.searchFunc != nil {
		return f.searchFunc(ctx, vec, topK, filter)
	}
	return nil, nil
}

type fakeEmbedder struct {
	embedFunc func(ctx context.Context, text string) ([]float32, error)
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.embedFunc != nil {
		return f.embedFunc(ctx, text)
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }

type fakeDocStore struct {
	docs []docstore.Document
}

func (f *fakeDocStore) QueryCandidates(query string, filters docstore.Filters, limit int) []docstore.Document {
	if len(f.docs) > limit {
		return f.docs[:limit]
	}
	return f.docs
}

type fakeLLM struct {
	chatFunc func(ctx context.Context, messages []wiki.ChatMessage, opts wiki.ChatOptions) (string, error)
	calls    int
}

func (f *fakeLLM) Chat(ctx context.Context, messages []wiki.ChatMessage, opts wiki.ChatOptions) (string, error) {
	f.calls++
	if f.chatFunc != nil {
		return f.chatFunc(ctx, messages, opts)
	}
	return "", nil
}

func vecResult(id, pageID, text string, score float64) vector.Result {
	return vector.Result{
		ID:      id,
		Score:   score,
		Content: text,
		Metadata: map[string]any{
			"page_id":        pageID,
			"title":          "Title of " + pageID,
			"section_anchor": "s1",
			"url":            "/pages/" + pageID,
			"updated_at":     int64(1000),
			"indexed_at":     int64(1000),
		},
	}
}

func testRetrievalConfig(strategy string) config.RetrievalConfig {
	cfg := config.RetrievalConfig{Strategy: strategy}
	cfg.SetDefaults()
	return cfg
}

func TestNew_UnknownStrategy(t *testing.T) {
	_, err := New(config.RetrievalConfig{Strategy: "bogus"}, Deps{})
	if err == nil {
		t.Fatal("expected an error for an unknown strategy")
	}
}

func TestBasicRetriever_DedupsAndCitations(t *testing.T) {
	vs := &fakeVectorSearcher{
		searchFunc: func(ctx context.Context, vec []float32, topK int, filter map[string]any) ([]vector.Result, error) {
			return []vector.Result{
				vecResult("c1", "p1", "hello world", 0.9),
				vecResult("c1", "p1", "hello world", 0.5), // exact dup, lower score: dropped
				vecResult("c2", "p2", "goodbye", 0.8),
			}, nil
		},
	}
	r, err := New(testRetrievalConfig("basic"), Deps{Vector: vs, Embedder: &fakeEmbedder{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := r.Retrieve(context.Background(), []string{"q"}, Filters{}, 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(result.Chunks) != 2 {
		t.Fatalf("expected 2 deduped chunks, got %d", len(result.Chunks))
	}
	if len(result.Citations) != len(result.Chunks) {
		t.Fatalf("citations must be 1:1 with chunks")
	}
	if result.Chunks[0].ChunkID != "c1" || result.Chunks[0].Score != 0.9 {
		t.Fatalf("expected the higher-scoring duplicate to survive, got %+v", result.Chunks[0])
	}
}

func TestBasicRetriever_FallsBackToDocStoreWhenVectorEmpty(t *testing.T) {
	vs := &fakeVectorSearcher{searchFunc: func(ctx context.Context, vec []float32, topK int, filter map[string]any) ([]vector.Result, error) {
		return nil, nil
	}}
	ds := &fakeDocStore{docs: []docstore.Document{{ID: "p1", Title: "T", Content: "c"}}}
	r, err := New(testRetrievalConfig("basic"), Deps{Vector: vs, Embedder: &fakeEmbedder{}, DocStore: ds})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := r.Retrieve(context.Background(), []string{"q"}, Filters{}, 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(result.Chunks) != 1 || result.Chunks[0].PageID != "p1" {
		t.Fatalf("expected doc-store fallback chunk, got %+v", result.Chunks)
	}
}

func TestBasicRetriever_TriesVariantsInOrder(t *testing.T) {
	var seen []string
	vs := &fakeVectorSearcher{}
	embedder := &fakeEmbedder{embedFunc: func(ctx context.Context, text string) ([]float32, error) {
		seen = append(seen, text)
		return []float32{1}, nil
	}}
	vs.searchFunc = func(ctx context.Context, vec []float32, topK int, filter map[string]any) ([]vector.Result, error) {
		if len(seen) < 2 {
			return nil, nil
		}
		return []vector.Result{vecResult("c1", "p1", "hit", 0.9)}, nil
	}
	r, _ := New(testRetrievalConfig("basic"), Deps{Vector: vs, Embedder: embedder})
	result, err := r.Retrieve(context.Background(), []string{"first", "second"}, Filters{}, 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(result.Chunks) != 1 {
		t.Fatalf("expected the second variant to yield a result, got %d chunks", len(result.Chunks))
	}
	if !strings.HasPrefix(fmt.Sprint(seen), "[first second]") {
		t.Fatalf("expected variants tried in order, got %v", seen)
	}
}

func TestStableRetriever_AppliesThresholdAndCap(t *testing.T) {
	vs := &fakeVectorSearcher{
		searchFunc: func(ctx context.Context, vec []float32, topK int, filter map[string]any) ([]vector.Result, error) {
			return []vector.Result{
				vecResult("c1", "p1", "a", 0.9),
				vecResult("c2", "p1", "b", 0.85),
				vecResult("c3", "p1", "c", 0.8),
				vecResult("c4", "p1", "d", 0.7),
			}, nil
		},
	}
	cfg := testRetrievalConfig("stable")
	r, _ := New(cfg, Deps{Vector: vs, Embedder: &fakeEmbedder{}})
	result, err := r.Retrieve(context.Background(), []string{"q"}, Filters{}, 4)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(result.Chunks) > perDocCap(4) {
		t.Fatalf("expected per-document cap %d, got %d chunks from one page", perDocCap(4), len(result.Chunks))
	}
}

func TestStableRetriever_BelowThresholdYieldsEmpty(t *testing.T) {
	vs := &fakeVectorSearcher{
		searchFunc: func(ctx context.Context, vec []float32, topK int, filter map[string]any) ([]vector.Result, error) {
			return []vector.Result{vecResult("c1", "p1", "a", 0.01)}, nil
		},
	}
	cfg := testRetrievalConfig("stable")
	cfg.BaseThreshold = 0.5
	r, _ := New(cfg, Deps{Vector: vs, Embedder: &fakeEmbedder{}})
	result, err := r.Retrieve(context.Background(), []string{"q"}, Filters{}, 4)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(result.Chunks) != 0 {
		t.Fatalf("expected empty result below threshold, got %d chunks", len(result.Chunks))
	}
}

func TestAdvancedRetriever_MMRAndCompression(t *testing.T) {
	vs := &fakeVectorSearcher{
		searchFunc: func(ctx context.Context, vec []float32, topK int, filter map[string]any) ([]vector.Result, error) {
			return []vector.Result{
				vecResult("c1", "p1", "Cats are great pets. They purr a lot.", 0.9),
				vecResult("c2", "p2", "Dogs are loyal companions.", 0.85),
				vecResult("c3", "p3", "The weather today is sunny.", 0.4),
			}, nil
		},
	}
	cfg := testRetrievalConfig("advanced")
	cfg.EnableMMR = true
	cfg.EnableCompression = true
	cfg.CompressionThreshold = 0.5
	r, _ := New(cfg, Deps{Vector: vs, Embedder: &fakeEmbedder{}})
	result, err := r.Retrieve(context.Background(), []string{"cats"}, Filters{}, 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(result.Chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	if len(result.Chunks) > 2 {
		t.Fatalf("expected at most finalK=2 chunks, got %d", len(result.Chunks))
	}
}

func TestAdvancedRetriever_SkipsRevalidationWhenIndexedAtMissing(t *testing.T) {
	var rescheduled []string
	vs := &fakeVectorSearcher{
		searchFunc: func(ctx context.Context, vec []float32, topK int, filter map[string]any) ([]vector.Result, error) {
			r := vecResult("c1", "p1", "stale content", 0.9)
			r.Metadata["indexed_at"] = int64(0)
			return []vector.Result{r}, nil
		},
	}
	cfg := testRetrievalConfig("advanced")
	r, _ := New(cfg, Deps{
		Vector:   vs,
		Embedder: &fakeEmbedder{},
		Reindexer: reindexerFunc(func(pageID string) {
			rescheduled = append(rescheduled, pageID)
		}),
	})
	if _, err := r.Retrieve(context.Background(), []string{"q"}, Filters{}, 3); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(rescheduled) != 0 {
		t.Fatalf("an indexedAt of zero must not be treated as stale, got reschedules: %v", rescheduled)
	}
}

type reindexerFunc func(pageID string)

func (f reindexerFunc) ScheduleReindex(pageID string) { f(pageID) }

func TestSmartRetriever_FallsBackWhenAnalyzerFails(t *testing.T) {
	vs := &fakeVectorSearcher{searchFunc: func(ctx context.Context, vec []float32, topK int, filter map[string]any) ([]vector.Result, error) {
		return []vector.Result{vecResult("c1", "p1", "basic hit", 0.9)}, nil
	}}
	ds := &fakeDocStore{docs: []docstore.Document{{ID: "p1", Title: "T", Content: "c"}}}
	llm := &fakeLLM{chatFunc: func(ctx context.Context, messages []wiki.ChatMessage, opts wiki.ChatOptions) (string, error) {
		return "not json", nil
	}}
	r, _ := New(testRetrievalConfig("smart"), Deps{Vector: vs, Embedder: &fakeEmbedder{}, DocStore: ds, LLM: llm})
	result, err := r.Retrieve(context.Background(), []string{"q"}, Filters{}, 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(result.Chunks) != 1 || result.Chunks[0].ChunkID != "c1" {
		t.Fatalf("expected fallback to basic's dense-search hit, got %+v", result.Chunks)
	}
}

func TestSmartRetriever_UsesAnalyzerVerdicts(t *testing.T) {
	ds := &fakeDocStore{docs: []docstore.Document{
		{ID: "p1", Title: "Onboarding", Content: "how to onboard"},
		{ID: "p2", Title: "Offboarding", Content: "how to offboard"},
	}}
	llm := &fakeLLM{chatFunc: func(ctx context.Context, messages []wiki.ChatMessage, opts wiki.ChatOptions) (string, error) {
		return `[{"id":"p1","relevance":0.9,"passage":"how to onboard"},{"id":"p2","relevance":0.1,"passage":"n/a"}]`, nil
	}}
	vs := &fakeVectorSearcher{}
	r, _ := New(testRetrievalConfig("smart"), Deps{Vector: vs, Embedder: &fakeEmbedder{}, DocStore: ds, LLM: llm})
	result, err := r.Retrieve(context.Background(), []string{"onboarding"}, Filters{}, 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(result.Chunks) != 2 {
		t.Fatalf("expected both analyzed documents with positive relevance, got %d", len(result.Chunks))
	}
	if result.Chunks[0].PageID != "p1" {
		t.Fatalf("expected the higher-relevance document first, got %+v", result.Chunks[0])
	}
	if vs.calls != 0 {
		t.Fatalf("smart strategy must not call the vector store, got %d calls", vs.calls)
	}
}

func TestPerDocCap(t *testing.T) {
	cases := map[int]int{0: 1, 1: 1, 2: 1, 4: 2, 6: 3, 20: 3}
	for topK, want := range cases {
		if got := perDocCap(topK); got != want {
			t.Errorf("perDocCap(%d) = %d, want %d", topK, got, want)
		}
	}
}
