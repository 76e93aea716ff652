package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/katroc/wikiretriever/pkg/chunker"
	"github.com/katroc/wikiretriever/pkg/config"
	"github.com/katroc/wikiretriever/pkg/docstore"
	"github.com/katroc/wikiretriever/pkg/embedder"
	"github.com/katroc/wikiretriever/pkg/retriever"
	"github.com/katroc/wikiretriever/pkg/vector"
	"github.com/katroc/wikiretriever/pkg/wiki"
)

// newTestOrchestrator wires a real chunker, local hash embedder, chromem
// vector store, and in-memory doc store around the named strategy preset.
// Optional mutate funcs run after the preset is resolved, letting a test
// override threshold/MMR/etc. knobs without hand-building a Config.
func newTestOrchestrator(t *testing.T, strategy string, mutate ...func(*config.Config)) *Orchestrator {
	t.Helper()

	chunk, err := chunker.New(chunker.Config{Strategy: chunker.StrategySimple, MinChunkWords: 1})
	if err != nil {
		t.Fatalf("chunker.New: %v", err)
	}

	provider, err := vector.NewChromemProvider(vector.ChromemConfig{})
	if err != nil {
		t.Fatalf("vector.NewChromemProvider: %v", err)
	}
	store := vector.NewStore(provider, vector.StoreConfig{Dimension: 32})
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("store.Initialize: %v", err)
	}

	embed := embedder.NewLocalEmbedder(32)
	docs := docstore.New()

	cfg := config.Preset(strategy)
	cfg.Embedding.Provider = "local"
	cfg.Retrieval.Strategy = strategy
	for _, m := range mutate {
		m(&cfg)
	}

	o, err := New(cfg, Deps{Chunker: chunk, Embedder: embed, Vector: store, Docs: docs})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func TestOrchestrator_IndexAndRetrieve_RoundTrip(t *testing.T) {
	o := newTestOrchestrator(t, "basic")
	ctx := context.Background()

	page := wiki.Document{
		ID: "p1", Title: "Deploying the gateway", Space: "ENG", Version: 1,
		URL: "/eng/p1", Content: "The gateway deployment runbook covers rollout and rollback steps for the edge proxy.",
	}
	if err := o.IndexDocument(ctx, page); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	result, err := o.RetrieveForQuery(ctx, []string{"gateway deployment rollback"}, retriever.Filters{}, 5)
	if err != nil {
		t.Fatalf("RetrieveForQuery: %v", err)
	}
	if len(result.Chunks) == 0 {
		t.Fatal("expected at least one chunk for a query matching indexed content")
	}
	if len(result.Chunks) != len(result.Citations) {
		t.Fatalf("chunks/citations length mismatch: %d vs %d", len(result.Chunks), len(result.Citations))
	}
	if result.Chunks[0].PageID != "p1" {
		t.Fatalf("expected page p1, got %s", result.Chunks[0].PageID)
	}
}

func TestOrchestrator_DeleteDocument_RemovesFromBothStores(t *testing.T) {
	o := newTestOrchestrator(t, "basic")
	ctx := context.Background()

	page := wiki.Document{ID: "p1", Title: "Runbook", Space: "ENG", Version: 1, Content: "incident response runbook for the payments service"}
	if err := o.IndexDocument(ctx, page); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	if err := o.DeleteDocument(ctx, "p1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}

	result, err := o.RetrieveForQuery(ctx, []string{"incident response runbook payments"}, retriever.Filters{}, 5)
	if err != nil {
		t.Fatalf("RetrieveForQuery: %v", err)
	}
	if len(result.Chunks) != 0 {
		t.Fatalf("expected no chunks after deletion, got %d", len(result.Chunks))
	}
}

func TestOrchestrator_RetrieveForQuery_RejectsInvalidInput(t *testing.T) {
	o := newTestOrchestrator(t, "basic")
	ctx := context.Background()

	if _, err := o.RetrieveForQuery(ctx, nil, retriever.Filters{}, 5); err == nil {
		t.Fatal("expected an error for an empty query list")
	}
	if _, err := o.RetrieveForQuery(ctx, []string{"q"}, retriever.Filters{}, 0); err == nil {
		t.Fatal("expected an error for topK of 0")
	}
	if _, err := o.RetrieveForQuery(ctx, []string{"q"}, retriever.Filters{}, 101); err == nil {
		t.Fatal("expected an error for topK over 100")
	}
}

func TestOrchestrator_AdvancedStrategy_RoundTrip(t *testing.T) {
	o := newTestOrchestrator(t, "advanced")
	ctx := context.Background()

	page := wiki.Document{
		ID: "p2", Title: "On-call escalation policy", Space: "OPS", Version: 1,
		Content: "The escalation policy routes paged alerts to the secondary on-call engineer after fifteen minutes.",
	}
	if err := o.IndexDocument(ctx, page); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	result, err := o.RetrieveForQuery(ctx, []string{"on-call escalation policy"}, retriever.Filters{}, 3)
	if err != nil {
		t.Fatalf("RetrieveForQuery: %v", err)
	}
	if len(result.Chunks) == 0 {
		t.Fatal("expected at least one chunk from the advanced strategy")
	}
}

// TestOrchestrator_Retrieve_FiltersByLabelIntersection covers S2: two
// pages share near-identical content but carry disjoint labels, and a
// label filter must exclude the page whose labels don't intersect it.
func TestOrchestrator_Retrieve_FiltersByLabelIntersection(t *testing.T) {
	o := newTestOrchestrator(t, "basic")
	ctx := context.Background()

	shared := "gateway rollout runbook covers traffic shifting for the edge proxy service"
	pages := []wiki.Document{
		{ID: "pA", Title: "Gateway rollout (infra)", Space: "ENG", Version: 1, Labels: []string{"infra"}, Content: shared},
		{ID: "pB", Title: "Gateway rollout (docs)", Space: "ENG", Version: 1, Labels: []string{"docs"}, Content: shared},
	}
	for _, p := range pages {
		if err := o.IndexDocument(ctx, p); err != nil {
			t.Fatalf("IndexDocument(%s): %v", p.ID, err)
		}
	}

	result, err := o.RetrieveForQuery(ctx, []string{shared}, retriever.Filters{Labels: []string{"infra"}}, 5)
	if err != nil {
		t.Fatalf("RetrieveForQuery: %v", err)
	}
	if len(result.Chunks) == 0 {
		t.Fatal("expected at least one chunk from the page labeled infra")
	}
	for _, c := range result.Chunks {
		if c.PageID != "pA" {
			t.Fatalf("label filter leaked page %s (labels %v); expected only pA", c.PageID, c.Labels)
		}
	}
}

// TestOrchestrator_UpsertByPage_ReplacesPriorChunksAtomically covers S4:
// re-indexing a page with fewer sections must replace its prior chunks
// rather than accumulate alongside them.
func TestOrchestrator_UpsertByPage_ReplacesPriorChunksAtomically(t *testing.T) {
	o := newTestOrchestrator(t, "basic")
	ctx := context.Background()

	original := "# Rollout\nGateway rollout steps for the edge proxy.\n\n# Rollback\nGateway rollback steps for the edge proxy.\n\n# Monitoring\nGateway monitoring dashboards for the edge proxy."
	page := wiki.Document{ID: "p1", Title: "Runbook", Space: "ENG", Version: 1, Content: original}
	if err := o.IndexDocument(ctx, page); err != nil {
		t.Fatalf("IndexDocument (original): %v", err)
	}

	statsBefore, err := o.deps.Vector.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if statsBefore.ChunkCount != 3 {
		t.Fatalf("expected 3 chunks after the first index (one per section), got %d", statsBefore.ChunkCount)
	}

	page.Content = "Capacity planning guidance for the edge proxy."
	page.Version = 2
	if err := o.IndexDocument(ctx, page); err != nil {
		t.Fatalf("IndexDocument (re-index): %v", err)
	}

	statsAfter, err := o.deps.Vector.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if statsAfter.PageCount != 1 {
		t.Fatalf("expected exactly one page tracked after re-index, got %d", statsAfter.PageCount)
	}
	if statsAfter.ChunkCount != 1 {
		t.Fatalf("expected the re-index to replace the 3 prior chunks with 1, got %d", statsAfter.ChunkCount)
	}

	result, err := o.RetrieveForQuery(ctx, []string{"gateway rollback steps edge proxy"}, retriever.Filters{}, 5)
	if err != nil {
		t.Fatalf("RetrieveForQuery: %v", err)
	}
	for _, c := range result.Chunks {
		if strings.Contains(c.Text, "rollback") {
			t.Fatalf("expected the re-indexed page's old rollback content to be gone, found chunk %q", c.Text)
		}
	}
}

// TestOrchestrator_PerDocumentCap_LimitsChunksPerPage covers S5: a
// single page contributing more matching chunks than perDocCap(topK)
// allows must be trimmed down to the cap rather than dominating the
// result set.
func TestOrchestrator_PerDocumentCap_LimitsChunksPerPage(t *testing.T) {
	o := newTestOrchestrator(t, "advanced", func(cfg *config.Config) {
		cfg.Retrieval.EnableMMR = false
		cfg.Retrieval.BaseThreshold = 0
		cfg.Retrieval.AdaptiveThreshold = false
	})
	ctx := context.Background()

	content := "# Section One\nWidget configuration alpha detail.\n\n" +
		"# Section Two\nWidget configuration beta detail.\n\n" +
		"# Section Three\nWidget configuration gamma detail.\n\n" +
		"# Section Four\nWidget configuration delta detail.\n\n" +
		"# Section Five\nWidget configuration epsilon detail."
	page := wiki.Document{ID: "p1", Title: "Widget reference", Space: "ENG", Version: 1, Content: content}
	if err := o.IndexDocument(ctx, page); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	stats, err := o.deps.Vector.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.ChunkCount != 5 {
		t.Fatalf("expected 5 indexed chunks (one per section), got %d", stats.ChunkCount)
	}

	result, err := o.RetrieveForQuery(ctx, []string{"widget configuration detail"}, retriever.Filters{}, 10)
	if err != nil {
		t.Fatalf("RetrieveForQuery: %v", err)
	}

	perPage := make(map[string]int)
	for _, c := range result.Chunks {
		perPage[c.PageID]++
	}
	if n := perPage["p1"]; n == 0 || n > 3 {
		t.Fatalf("expected between 1 and 3 chunks from page p1 under the per-document cap, got %d", n)
	}
}

// TestOrchestrator_ThresholdGating_RejectsLowSimilarityMatches covers
// S6: a base threshold set above a query's similarity score must gate
// the match out entirely rather than returning a weak result.
func TestOrchestrator_ThresholdGating_RejectsLowSimilarityMatches(t *testing.T) {
	o := newTestOrchestrator(t, "stable", func(cfg *config.Config) {
		cfg.Retrieval.BaseThreshold = 0.99
	})
	ctx := context.Background()

	content := "The quarterly compliance review covers audit logging retention policy."
	page := wiki.Document{ID: "p1", Title: "Compliance review", Space: "LEGAL", Version: 1, Content: content}
	if err := o.IndexDocument(ctx, page); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	relevant, err := o.RetrieveForQuery(ctx, []string{content}, retriever.Filters{}, 5)
	if err != nil {
		t.Fatalf("RetrieveForQuery (exact-text query): %v", err)
	}
	if len(relevant.Chunks) == 0 {
		t.Fatal("expected a query matching the chunk's own text to clear a 0.99 threshold")
	}

	irrelevant, err := o.RetrieveForQuery(ctx, []string{"kubernetes ingress nginx load balancer timeout tuning"}, retriever.Filters{}, 5)
	if err != nil {
		t.Fatalf("RetrieveForQuery (unrelated query): %v", err)
	}
	if len(irrelevant.Chunks) != 0 {
		t.Fatalf("expected an unrelated query to be gated out by the threshold, got %d chunks", len(irrelevant.Chunks))
	}
}
