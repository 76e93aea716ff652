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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/katroc/wikiretriever/pkg/ragerrors"
	"github.com/katroc/wikiretriever/pkg/retry"
)

// OpenAIConfig configures the OpenAI HTTP embedder.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Dimension      int
	Timeout        time.Duration
	BatchSize      int
	EncodingFormat string
	User           string
	TitleWeight    int
	Retry          retry.Config
}

type openaiRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	Dimensions     *int     `json:"dimensions,omitempty"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
	User           string   `json:"user,omitempty"`
}

type openaiResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

type openaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// OpenAIEmbedder implements Embedder using OpenAI's embeddings API,
// grounded in the teacher's v2/embedder/openai.go HTTP client, extended
// with retry-with-backoff and the enhanced/sparse representation.
type OpenAIEmbedder struct {
	client         *http.Client
	apiKey         string
	baseURL        string
	model          string
	dimension      int
	batchSize      int
	encodingFormat string
	user           string
	titleWeight    int
	retryer        *retry.Retryer
	tokenizer      *tiktoken.Tiktoken
}

func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, ragerrors.NewValidationError("api_key", "required for OpenAI embedder")
	}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	dimension := cfg.Dimension
	if dimension == 0 {
		switch model {
		case "text-embedding-3-large":
			dimension = 3072
		default:
			dimension = 1536
		}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = 100
	}
	encodingFormat := cfg.EncodingFormat
	if encodingFormat == "" {
		encodingFormat = "float"
	}
	titleWeight := cfg.TitleWeight
	if titleWeight == 0 {
		titleWeight = 2
	}

	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("embedder: loading tokenizer: %w", err)
	}

	return &OpenAIEmbedder{
		client:         &http.Client{Timeout: timeout},
		apiKey:         cfg.APIKey,
		baseURL:        baseURL,
		model:          model,
		dimension:      dimension,
		batchSize:      batchSize,
		encodingFormat: encodingFormat,
		user:           cfg.User,
		titleWeight:    titleWeight,
		retryer:        retry.New(cfg.Retry),
		tokenizer:      enc,
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, ragerrors.NewEmbeddingError(ragerrors.EmbeddingKindFormat, e.model, fmt.Errorf("empty response"))
	}
	return embeddings[0], nil
}

// EmbedBatch preserves input order; the batch as a whole either succeeds
// fully or fails, per §4.2.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		var embeddings [][]float32
		err := e.retryer.Do(ctx, "openai.embed", func() error {
			var callErr error
			embeddings, callErr = e.embedBatch(ctx, batch)
			return callErr
		})
		if err != nil {
			return nil, err
		}
		results = append(results, embeddings...)
	}
	return results, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := openaiRequest{
		Model:          e.model,
		Input:          texts,
		EncodingFormat: e.encodingFormat,
		User:           e.user,
	}
	if e.dimension > 0 && strings.HasPrefix(e.model, "text-embedding-3") {
		req.Dimensions = &e.dimension
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, ragerrors.NewEmbeddingError(ragerrors.EmbeddingKindFormat, e.model, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, ragerrors.NewEmbeddingError(ragerrors.EmbeddingKindTransport, e.model, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, ragerrors.NewTransportError(ragerrors.TransportEmbedder, "embed", 0, 1, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ragerrors.NewTransportError(ragerrors.TransportEmbedder, "embed", resp.StatusCode, 1, err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp openaiErrorResponse
		msg := string(body)
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		return nil, ragerrors.NewTransportError(ragerrors.TransportEmbedder, "embed", resp.StatusCode, 1, fmt.Errorf("%s", msg))
	}

	var response openaiResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, ragerrors.NewEmbeddingError(ragerrors.EmbeddingKindFormat, e.model, err)
	}

	embeddings := make([][]float32, len(response.Data))
	for _, item := range response.Data {
		if item.Index < len(embeddings) {
			embeddings[item.Index] = item.Embedding
		}
	}
	return embeddings, nil
}

// EmbedEnhanced prepares each text per the enhancement rules (§4.2): the
// title is repeated titleWeight times when provided, metadata hints are
// appended after the text as " Document features: ...", and a TF-style
// sparse map is computed over the prepared text.
func (e *OpenAIEmbedder) EmbedEnhanced(ctx context.Context, texts []string, ctxs []EnhanceContext) ([]EnhancedEmbedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	prepared := make([]string, len(texts))
	for i, text := range texts {
		var c EnhanceContext
		if i < len(ctxs) {
			c = ctxs[i]
		}
		prepared[i] = e.prepareText(text, c)
	}

	dense, err := e.EmbedBatch(ctx, prepared)
	if err != nil {
		return nil, err
	}

	out := make([]EnhancedEmbedding, len(texts))
	for i, text := range texts {
		tokenCount := len(e.tokenizer.Encode(text, nil, nil))
		out[i] = EnhancedEmbedding{
			Dense:  dense[i],
			Sparse: sparseTermWeights(prepared[i]),
			Metadata: EnhancedEmbeddingMetadata{
				Level:      "chunk",
				HasContext: ctxs != nil && i < len(ctxs) && (ctxs[i].DocumentTitle != "" || ctxs[i].SectionHeading != ""),
				TokenCount: tokenCount,
				Keywords:   topKeywords(prepared[i], 8),
			},
		}
	}
	return out, nil
}

func (e *OpenAIEmbedder) prepareText(text string, c EnhanceContext) string {
	var b strings.Builder
	if c.DocumentTitle != "" {
		for i := 0; i < e.titleWeight; i++ {
			b.WriteString(c.DocumentTitle)
			b.WriteString(". ")
		}
	}
	if c.SectionHeading != "" {
		b.WriteString("Section: ")
		b.WriteString(c.SectionHeading)
		b.WriteString(". ")
	}
	if c.HierarchicalPrefix != "" {
		b.WriteString(c.HierarchicalPrefix)
		b.WriteString(" ")
	}
	b.WriteString(text)

	var features []string
	if c.HasCode {
		features = append(features, "code")
	}
	if c.HasTables {
		features = append(features, "tables")
	}
	if c.HasLists {
		features = append(features, "lists")
	}
	if len(features) > 0 {
		b.WriteString(" Document features: ")
		b.WriteString(strings.Join(features, ", "))
	}
	return b.String()
}

func (e *OpenAIEmbedder) Dimension() int { return e.dimension }
func (e *OpenAIEmbedder) Model() string  { return e.model }
func (e *OpenAIEmbedder) Close() error   { return nil }

var _ Embedder = (*OpenAIEmbedder)(nil)
