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

// Package wiki declares the external collaborators the retrieval core
// depends on but does not implement: the wiki source connector and the
// LLM client. Only their contracts matter here (§6); both the page search
// façade and the model provider live outside this module in production.
package wiki

import "context"

// Document is the wiki source's document shape. Content is markup; the
// core treats it as opaque text after normalization.
type Document struct {
	ID        string
	Title     string
	Space     string
	Version   int
	Labels    []string
	UpdatedAt int64 // unix seconds, UTC
	URL       string
	Content   string
}

// SearchParams narrows a searchDocuments call.
type SearchParams struct {
	Query        string
	Space        string
	Labels       []string
	UpdatedAfter int64
	Limit        int
	Start        int
}

// SearchResponse is the paginated result of a searchDocuments/listPagesBySpace call.
type SearchResponse struct {
	Documents []Document
	Start     int
	Limit     int
	Total     int
}

// Source is the wiki connector contract (§6). Implementations live
// outside this module; pkg/wiki only ships a DirectorySource fixture for
// local development and tests.
type Source interface {
	SearchDocuments(ctx context.Context, params SearchParams) (SearchResponse, error)
	GetDocumentByID(ctx context.Context, id string) (Document, error)
	ListPagesBySpace(ctx context.Context, space string, start, limit int) (SearchResponse, error)
	ListAllSpaceKeys(ctx context.Context) ([]string, error)
}

// ChatMessage is a single turn in a chat completion request.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatOptions configures a chat completion call.
type ChatOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
	TimeoutMs   int
}

// EmbedOptions configures an embed call on the LLM contract (distinct
// from pkg/embedder.Embedder, which is this module's own adapter over
// whichever embedding provider is configured).
type EmbedOptions struct {
	Model     string
	TimeoutMs int
}

// LLM is the chat/embedding contract (§6). Reasoning content, if the
// provider returns it separately, arrives wrapped in the visible answer
// as a preceding "<think>...</think>" block; callers may strip it.
type LLM interface {
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)
	ChatStream(ctx context.Context, messages []ChatMessage, opts ChatOptions) (<-chan string, <-chan error)
	Embed(ctx context.Context, texts []string, opts EmbedOptions) ([][]float32, error)
}
