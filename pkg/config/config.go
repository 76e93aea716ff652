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

// Package config holds the retrieval core's single nested configuration
// struct: chunking, embedding, retrieval, vectorStore, plus process-wide
// flags. Each subtree carries its own SetDefaults/Validate pair, mirroring
// the convention used throughout the rest of this module's packages.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration object accepted by the orchestrator.
type Config struct {
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Process     ProcessConfig     `yaml:"process"`
}

// ChunkingConfig controls Chunker behavior.
type ChunkingConfig struct {
	Strategy            string `yaml:"strategy"` // "simple" | "semantic"
	TargetChunkSize      int    `yaml:"target_chunk_size"`
	Overlap           int    `yaml:"overlap"`
	MaxChunkSize       int    `yaml:"max_chunk_size"`
	SemanticThreshold     float64 `yaml:"semantic_threshold"`
	MinChunkWords       int    `yaml:"min_chunk_words"`
	MaxChunkWords       int    `yaml:"max_chunk_words"`
	ContextWindow       int    `yaml:"context_window"`
	PreserveStructure     bool   `yaml:"preserve_structure"`
	EnableHierarchical    bool   `yaml:"enable_hierarchical"`
}

func (c *ChunkingConfig) SetDefaults() {
	if c.Strategy == "" {
		c.Strategy = "simple"
	}
	if c.TargetChunkSize == 0 {
		c.TargetChunkSize = 400 // words, approx tokens ~520
	}
	if c.Overlap == 0 {
		c.Overlap = 60
	}
	if c.MaxChunkSize == 0 {
		c.MaxChunkSize = 800
	}
	if c.MinChunkWords == 0 {
		c.MinChunkWords = 40
	}
	if c.MaxChunkWords == 0 {
		c.MaxChunkWords = c.MaxChunkSize
	}
	if c.ContextWindow == 0 {
		c.ContextWindow = 1
	}
	if c.SemanticThreshold == 0 {
		c.SemanticThreshold = 0.5
	}
}

func (c *ChunkingConfig) Validate() error {
	if c.Strategy != "simple" && c.Strategy != "semantic" {
		return fmt.Errorf("chunking: unknown strategy %q", c.Strategy)
	}
	if c.MinChunkWords <= 0 {
		return fmt.Errorf("chunking: min_chunk_words must be positive")
	}
	if c.MaxChunkWords < c.MinChunkWords {
		return fmt.Errorf("chunking: max_chunk_words must be >= min_chunk_words")
	}
	if c.Overlap < 0 || c.Overlap >= c.TargetChunkSize {
		return fmt.Errorf("chunking: overlap must be in [0, target_chunk_size)")
	}
	return nil
}

// EmbeddingConfig controls Embedder behavior.
type EmbeddingConfig struct {
	Provider             string        `yaml:"provider"` // "openai" | "local"
	Model                string        `yaml:"model"`
	APIKey               string        `yaml:"api_key"`
	BaseURL              string        `yaml:"base_url"`
	Dimension            int           `yaml:"dimension"`
	BatchSize            int           `yaml:"batch_size"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`
	MaxRetries           int           `yaml:"max_retries"`
	DenseWeight          float64       `yaml:"dense_weight"`
	SparseWeight         float64       `yaml:"sparse_weight"`
	EnableSparse         bool          `yaml:"enable_sparse_embeddings"`
	EnableQueryExpansion bool          `yaml:"enable_query_expansion"`
	MaxQueryVariants     int           `yaml:"max_query_variants"`
	EnableTitleWeighting bool          `yaml:"enable_title_weighting"`
	TitleWeight          int           `yaml:"title_weight"`
	EnableMetadataEmbed  bool          `yaml:"enable_metadata_embedding"`
	ContextWindowSize    int           `yaml:"context_window_size"`
	IncludeHierarchical  bool          `yaml:"include_hierarchical_context"`
}

func (c *EmbeddingConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Model == "" {
		c.Model = "text-embedding-3-small"
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.Dimension == 0 {
		c.Dimension = 1536
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 15 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.DenseWeight == 0 && c.SparseWeight == 0 {
		c.DenseWeight = 0.7
		c.SparseWeight = 0.3
	}
	if c.MaxQueryVariants == 0 {
		c.MaxQueryVariants = 3
	}
	if c.TitleWeight == 0 {
		c.TitleWeight = 2
	}
	if c.ContextWindowSize == 0 {
		c.ContextWindowSize = 1
	}
}

func (c *EmbeddingConfig) Validate() error {
	if c.Provider != "openai" && c.Provider != "local" {
		return fmt.Errorf("embedding: unknown provider %q", c.Provider)
	}
	if c.Provider == "openai" && c.APIKey == "" {
		return fmt.Errorf("embedding: api_key is required for provider openai")
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("embedding: dimension must be positive")
	}
	if c.DenseWeight+c.SparseWeight <= 0 {
		return fmt.Errorf("embedding: dense_weight + sparse_weight must be positive")
	}
	return nil
}

// RetrievalConfig controls Retriever behavior.
type RetrievalConfig struct {
	Strategy               string        `yaml:"strategy"` // basic | advanced | smart | stable
	TopK                   int           `yaml:"top_k"`
	EnableTwoStageRetrieval bool          `yaml:"enable_two_stage_retrieval"`
	InitialK               int           `yaml:"initial_k"`
	FinalK                 int           `yaml:"final_k"`
	EnableHyDE             bool          `yaml:"enable_hyde"`
	EnableCompression      bool          `yaml:"enable_contextual_compression"`
	CompressionThreshold   float64       `yaml:"compression_threshold"`
	EnableMMR              bool          `yaml:"enable_mmr"`
	MMRLambda              float64       `yaml:"mmr_lambda"`
	MMRPoolMultiplier      float64       `yaml:"mmr_pool_multiplier"`
	EnableTemporalScoring  bool          `yaml:"enable_temporal_scoring"`
	TemporalWeight         float64       `yaml:"temporal_weight"`
	EnableMetadataFilter   bool          `yaml:"enable_metadata_filtering"`
	MetadataBoosts         map[string]float64 `yaml:"metadata_boosts"`
	EnableCrossEncoderRerank bool        `yaml:"enable_cross_encoder_rerank"`
	BaseThreshold          float64       `yaml:"base_threshold"`
	AdaptiveThreshold      bool          `yaml:"adaptive_threshold"`
	MinKeywordScore        float64       `yaml:"min_keyword_score"`
	EnableLexicalFloor     bool          `yaml:"enable_lexical_floor"`
	MaxFallbackQueries     int           `yaml:"max_fallback_queries"`
	ChunkTTL               time.Duration `yaml:"chunk_ttl"`
	RequestTimeout         time.Duration `yaml:"request_timeout"`
	ProcessingTimeout      time.Duration `yaml:"processing_timeout"`
	BaseURL                string        `yaml:"base_url"`
	ExpansionWeight        float64       `yaml:"expansion_weight"`
}

func (c *RetrievalConfig) SetDefaults() {
	if c.Strategy == "" {
		c.Strategy = "advanced"
	}
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.InitialK == 0 {
		c.InitialK = 20
	}
	if c.FinalK == 0 {
		c.FinalK = c.TopK
	}
	if c.CompressionThreshold == 0 {
		c.CompressionThreshold = 0.3
	}
	if c.MMRLambda == 0 {
		c.MMRLambda = 0.5
	}
	if c.MMRPoolMultiplier == 0 {
		c.MMRPoolMultiplier = 4
	}
	if c.TemporalWeight == 0 {
		c.TemporalWeight = 0.1
	}
	// Most permissive default per spec's documented Open Question resolution.
	if c.BaseThreshold == 0 {
		c.BaseThreshold = 0.2
	}
	if c.MinKeywordScore == 0 {
		c.MinKeywordScore = 0.1
	}
	if c.MaxFallbackQueries == 0 {
		c.MaxFallbackQueries = 2
	}
	if c.ChunkTTL == 0 {
		c.ChunkTTL = 7 * 24 * time.Hour
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 15 * time.Second
	}
	if c.ProcessingTimeout == 0 {
		c.ProcessingTimeout = 30 * time.Second
	}
	if c.ExpansionWeight == 0 {
		c.ExpansionWeight = 0.5
	}
}

func (c *RetrievalConfig) Validate() error {
	switch c.Strategy {
	case "basic", "advanced", "smart", "stable":
	default:
		return fmt.Errorf("retrieval: unknown strategy %q", c.Strategy)
	}
	if c.TopK < 0 || c.TopK > 100 {
		return fmt.Errorf("retrieval: top_k must be in [0,100]")
	}
	if c.MMRLambda < 0 || c.MMRLambda > 1 {
		return fmt.Errorf("retrieval: mmr_lambda must be in [0,1]")
	}
	if c.BaseThreshold < 0 || c.BaseThreshold > 1 {
		return fmt.Errorf("retrieval: base_threshold must be in [0,1]")
	}
	return nil
}

// VectorStoreConfig controls the VectorStore Provider.
type VectorStoreConfig struct {
	Type                string         `yaml:"type"` // "chromem" | "qdrant"
	PersistPath         string         `yaml:"persist_path"`
	Compress            bool           `yaml:"compress"`
	Host                string         `yaml:"host"`
	Port                int            `yaml:"port"`
	APIKey              string         `yaml:"api_key"`
	UseTLS              bool           `yaml:"use_tls"`
	Collection          string         `yaml:"collection"`
	Dimension           int            `yaml:"dimension"`
	Metric              string         `yaml:"metric"` // "cosine"
	EnableAdaptiveK     bool           `yaml:"enable_adaptive_k"`
	MinK                int            `yaml:"min_k"`
	MaxK                int            `yaml:"max_k"`
	EnableHybridSearch  bool           `yaml:"enable_hybrid_search"`
	DenseWeight         float64        `yaml:"dense_weight"`
	SparseWeight        float64        `yaml:"sparse_weight"`
	EnableBatching      bool           `yaml:"enable_batching"`
	BatchSize           int            `yaml:"batch_size"`
	EnableCaching       bool           `yaml:"enable_caching"`
	CacheSize           int            `yaml:"cache_size"`
	IndexedMetadataFields []string     `yaml:"indexed_metadata_fields"`
	StrictSchema        bool           `yaml:"strict_schema"`
}

func (c *VectorStoreConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "chromem"
	}
	if c.Collection == "" {
		c.Collection = "confluence_chunks"
	}
	if c.Metric == "" {
		c.Metric = "cosine"
	}
	if c.MinK == 0 {
		c.MinK = 10
	}
	if c.MaxK == 0 {
		c.MaxK = 200
	}
	if c.BatchSize == 0 {
		c.BatchSize = 64
	}
	if c.CacheSize == 0 {
		c.CacheSize = 128
	}
	if c.Port == 0 && c.Type == "qdrant" {
		c.Port = 6334
	}
}

func (c *VectorStoreConfig) Validate() error {
	switch c.Type {
	case "chromem":
	case "qdrant":
		if c.Host == "" {
			return fmt.Errorf("vector_store: host is required for type qdrant")
		}
	default:
		return fmt.Errorf("vector_store: unknown type %q", c.Type)
	}
	if c.MinK > c.MaxK {
		return fmt.Errorf("vector_store: min_k must be <= max_k")
	}
	return nil
}

// ProcessConfig holds process-wide flags.
type ProcessConfig struct {
	EnableParallelProcessing bool          `yaml:"enable_parallel_processing"`
	MaxConcurrentEmbeddings  int           `yaml:"max_concurrent_embeddings"`
	ProcessingTimeout        time.Duration `yaml:"processing_timeout"`
	EnableQualityMetrics     bool          `yaml:"enable_quality_metrics"`
	MinChunkQualityScore     float64       `yaml:"min_chunk_quality_score"`
	EnableContentFiltering   bool          `yaml:"enable_content_filtering"`
	LogLevel                 string        `yaml:"log_level"`
	LogFormat                string        `yaml:"log_format"`
}

func (c *ProcessConfig) SetDefaults() {
	if c.MaxConcurrentEmbeddings == 0 {
		c.MaxConcurrentEmbeddings = 4
	}
	if c.ProcessingTimeout == 0 {
		c.ProcessingTimeout = 30 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "simple"
	}
}

func (c *ProcessConfig) Validate() error {
	if c.MaxConcurrentEmbeddings <= 0 {
		return fmt.Errorf("process: max_concurrent_embeddings must be positive")
	}
	return nil
}

// SetDefaults fills every subtree's zero-valued fields with their defaults.
func (c *Config) SetDefaults() {
	c.Chunking.SetDefaults()
	c.Embedding.SetDefaults()
	c.Retrieval.SetDefaults()
	c.VectorStore.SetDefaults()
	c.Process.SetDefaults()
}

// Validate checks every subtree and returns the first error encountered.
func (c *Config) Validate() error {
	if err := c.Chunking.Validate(); err != nil {
		return err
	}
	if err := c.Embedding.Validate(); err != nil {
		return err
	}
	if err := c.Retrieval.Validate(); err != nil {
		return err
	}
	if err := c.VectorStore.Validate(); err != nil {
		return err
	}
	if err := c.Process.Validate(); err != nil {
		return err
	}
	return nil
}
