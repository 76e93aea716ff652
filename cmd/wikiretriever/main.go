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

// Command wikiretriever is the CLI for the retrieval core.
//
// Usage:
//
//	wikiretriever serve --config config.yaml
//	wikiretriever ingest --config config.yaml --docs-folder ./fixtures/wiki
//	wikiretriever version
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/katroc/wikiretriever/pkg/chunker"
	"github.com/katroc/wikiretriever/pkg/config"
	"github.com/katroc/wikiretriever/pkg/docstore"
	"github.com/katroc/wikiretriever/pkg/embedder"
	"github.com/katroc/wikiretriever/pkg/ingest"
	"github.com/katroc/wikiretriever/pkg/logger"
	"github.com/katroc/wikiretriever/pkg/observability"
	"github.com/katroc/wikiretriever/pkg/orchestrator"
	"github.com/katroc/wikiretriever/pkg/retriever"
	"github.com/katroc/wikiretriever/pkg/vector"
	"github.com/katroc/wikiretriever/pkg/wiki"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Start the retrieval HTTP API."`
	Ingest  IngestCmd  `cmd:"" help:"Run the ingest worker against a wiki source."`

	Config    string `short:"c" help:"Path to config YAML file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (simple, verbose)." default:"simple"`
}

// VersionCmd prints the build version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("wikiretriever version %s\n", version)
	return nil
}

// ServeCmd starts the retrieval HTTP API: POST /retrieve and GET /metrics.
type ServeCmd struct {
	DocsFolder string `name:"docs-folder" help:"Directory of markup files (accepted, but not read by serve; use ingest to load it)." type:"path"`
	Space      string `help:"Space key for docs-folder (accepted, but not read by serve)." default:"DOCS"`
	Addr       string `help:"Listen address." default:":8080"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}

	o, metrics, _, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/retrieve", retrieveHandler(o))

	server := &http.Server{Addr: c.Addr, Handler: mux}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("wikiretriever: shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
		cancel()
	}()

	slog.Info("wikiretriever: listening", "addr", c.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("wikiretriever: serving: %w", err)
	}
	return nil
}

type retrieveRequest struct {
	Question     string   `json:"question"`
	Space        string   `json:"space,omitempty"`
	Labels       []string `json:"labels,omitempty"`
	UpdatedAfter int64    `json:"updatedAfter,omitempty"`
	TopK         int      `json:"topK,omitempty"`
}

type retrieveResponse struct {
	Citations []retriever.Citation `json:"citations"`
}

func retrieveHandler(o *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req retrieveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
			return
		}
		topK := req.TopK
		if topK == 0 {
			topK = 5
		}

		result, err := o.RetrieveForQuery(r.Context(), []string{req.Question}, retriever.Filters{
			Space: req.Space, Labels: req.Labels, UpdatedAfter: req.UpdatedAfter,
		}, topK)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(retrieveResponse{Citations: result.Citations})
	}
}

// IngestCmd runs the ingest worker once against a directory-backed wiki
// source fixture (production deployments supply their own wiki.Source).
type IngestCmd struct {
	DocsFolder string        `name:"docs-folder" help:"Directory of markup files to ingest." type:"path" required:""`
	Space      string        `help:"Space key reported for documents under docs-folder." default:"DOCS"`
	StatePath  string        `name:"state-path" help:"Path to the ingest state file." default:"ingest-state.json"`
	Watch      bool          `help:"Keep re-running ticks on an interval instead of exiting after one."`
	Interval   time.Duration `help:"Interval between ticks when --watch is set." default:"5m"`
}

func (c *IngestCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}

	_, metrics, deps, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}

	state, err := ingest.LoadState(c.StatePath)
	if err != nil {
		return err
	}
	source := wiki.NewDirectorySource(c.DocsFolder, c.Space)
	worker := ingest.NewWorker(source, deps.Chunker, deps.Embedder, deps.Vector, deps.Docs, state)

	ingestCfg := ingest.Config{Spaces: []string{c.Space}, StatePath: c.StatePath}

	runOnce := func() error {
		processed, err := worker.RunOnce(context.Background(), ingestCfg)
		if err != nil {
			return err
		}
		for space, count := range processed {
			slog.Info("wikiretriever: ingest tick complete", "space", space, "processed", count)
			if metrics != nil && count == 0 {
				metrics.ObserveSkippedPage(space)
			}
		}
		return nil
	}

	if !c.Watch {
		return runOnce()
	}

	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := runOnce(); err != nil {
		slog.Error("wikiretriever: ingest tick failed", "error", err)
	}
	for {
		select {
		case <-ticker.C:
			if err := runOnce(); err != nil {
				slog.Error("wikiretriever: ingest tick failed", "error", err)
			}
		case <-sigCh:
			slog.Info("wikiretriever: ingest watch stopped")
			return nil
		}
	}
}

// orchestratorDeps bundles the pieces IngestCmd needs directly, beyond
// what orchestrator.Orchestrator exposes.
type orchestratorDeps struct {
	Chunker  chunker.Chunker
	Embedder embedder.Embedder
	Vector   *vector.Store
	Docs     *docstore.Store
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		c := config.Preset(config.PresetBalanced)
		return c, nil
	}
	return config.Load(path)
}

func buildOrchestrator(cfg config.Config) (*orchestrator.Orchestrator, *observability.Metrics, orchestratorDeps, error) {
	chunk, err := chunker.New(toChunkerConfig(cfg.Chunking))
	if err != nil {
		return nil, nil, orchestratorDeps{}, fmt.Errorf("wikiretriever: building chunker: %w", err)
	}

	embed, err := buildEmbedder(cfg.Embedding)
	if err != nil {
		return nil, nil, orchestratorDeps{}, fmt.Errorf("wikiretriever: building embedder: %w", err)
	}

	provider, err := vector.NewProvider(toProviderConfig(cfg.VectorStore))
	if err != nil {
		return nil, nil, orchestratorDeps{}, fmt.Errorf("wikiretriever: building vector provider: %w", err)
	}
	store := vector.NewStore(provider, vector.StoreConfig{
		Collection:            cfg.VectorStore.Collection,
		Dimension:             cfg.Embedding.Dimension,
		IndexedMetadataFields: cfg.VectorStore.IndexedMetadataFields,
		StrictSchema:          cfg.VectorStore.StrictSchema,
		CacheSize:             cfg.VectorStore.CacheSize,
	})
	if err := store.Initialize(context.Background()); err != nil {
		return nil, nil, orchestratorDeps{}, fmt.Errorf("wikiretriever: initializing vector store: %w", err)
	}

	docs := docstore.New()
	metrics := observability.NewMetrics()

	o, err := orchestrator.New(cfg, orchestrator.Deps{
		Chunker: chunk, Embedder: embed, Vector: store, Docs: docs, Metrics: metrics,
	})
	if err != nil {
		return nil, nil, orchestratorDeps{}, err
	}

	return o, metrics, orchestratorDeps{Chunker: chunk, Embedder: embed, Vector: store, Docs: docs}, nil
}

func toChunkerConfig(c config.ChunkingConfig) chunker.Config {
	return chunker.Config{
		Strategy:           chunker.Strategy(c.Strategy),
		TargetChunkSize:    c.TargetChunkSize,
		Overlap:            c.Overlap,
		MaxChunkSize:       c.MaxChunkSize,
		MinChunkWords:      c.MinChunkWords,
		MaxChunkWords:      c.MaxChunkWords,
		ContextWindow:      c.ContextWindow,
		SemanticThreshold:  c.SemanticThreshold,
		PreserveStructure:  c.PreserveStructure,
		EnableHierarchical: c.EnableHierarchical,
	}
}

func buildEmbedder(c config.EmbeddingConfig) (embedder.Embedder, error) {
	if c.Provider == "local" {
		return embedder.NewLocalEmbedder(c.Dimension), nil
	}
	return embedder.NewOpenAIEmbedder(embedder.OpenAIConfig{
		APIKey: c.APIKey, BaseURL: c.BaseURL, Model: c.Model, Dimension: c.Dimension,
		Timeout: c.RequestTimeout, BatchSize: c.BatchSize, TitleWeight: c.TitleWeight,
	})
}

func toProviderConfig(c config.VectorStoreConfig) *vector.ProviderConfig {
	pc := &vector.ProviderConfig{Type: vector.ProviderType(c.Type)}
	switch pc.Type {
	case vector.ProviderQdrant:
		pc.Qdrant = &vector.QdrantConfig{Host: c.Host, Port: c.Port, APIKey: c.APIKey, UseTLS: c.UseTLS}
	default:
		pc.Chromem = &vector.ChromemConfig{PersistPath: c.PersistPath, Compress: c.Compress}
	}
	return pc
}

func main() {
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("wikiretriever"),
		kong.Description("Retrieval core for a corporate wiki knowledge base."),
		kong.UsageOnError(),
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		level = 0
	}
	logger.Init(level, os.Stderr, cli.LogFormat)

	if err := ctx.Run(&cli); err != nil {
		slog.Error("wikiretriever: command failed", "error", err)
		os.Exit(1)
	}
}
