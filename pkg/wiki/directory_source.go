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

package wiki

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirectorySource is a development/test fixture implementing Source over
// a local directory of markup files, one file per "page". It is never
// the production wiki connector — that lives outside this module — but
// it lets the ingest worker and retriever be exercised end-to-end
// without a live wiki backend.
//
// Grounded in the walk/discover idiom of the teacher's
// pkg/rag/directory_source.go, adapted to the synchronous Source
// contract instead of a channel-based DataSource.
type DirectorySource struct {
	basePath string
	space    string
}

// NewDirectorySource creates a fixture rooted at basePath, reporting all
// discovered pages under the given space key.
func NewDirectorySource(basePath, space string) *DirectorySource {
	return &DirectorySource{basePath: basePath, space: space}
}

func (d *DirectorySource) walkAll(ctx context.Context) ([]Document, error) {
	var docs []Document
	err := filepath.Walk(d.basePath, func(path string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".html" && ext != ".txt" {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil // skip unreadable file, non-fatal
		}
		rel, _ := filepath.Rel(d.basePath, path)
		docs = append(docs, Document{
			ID:        rel,
			Title:     strings.TrimSuffix(filepath.Base(path), ext),
			Space:     d.space,
			Version:   1,
			UpdatedAt: info.ModTime().Unix(),
			URL:       "file://" + path,
			Content:   string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (d *DirectorySource) SearchDocuments(ctx context.Context, params SearchParams) (SearchResponse, error) {
	all, err := d.walkAll(ctx)
	if err != nil {
		return SearchResponse{}, err
	}
	var filtered []Document
	q := strings.ToLower(params.Query)
	for _, doc := range all {
		if q != "" && !strings.Contains(strings.ToLower(doc.Title+" "+doc.Content), q) {
			continue
		}
		if params.Space != "" && doc.Space != params.Space {
			continue
		}
		if params.UpdatedAfter > 0 && doc.UpdatedAt < params.UpdatedAfter {
			continue
		}
		filtered = append(filtered, doc)
	}
	return paginate(filtered, params.Start, params.Limit), nil
}

func (d *DirectorySource) GetDocumentByID(ctx context.Context, id string) (Document, error) {
	all, err := d.walkAll(ctx)
	if err != nil {
		return Document{}, err
	}
	for _, doc := range all {
		if doc.ID == id {
			return doc, nil
		}
	}
	return Document{}, fmt.Errorf("wiki: document %q not found", id)
}

func (d *DirectorySource) ListPagesBySpace(ctx context.Context, space string, start, limit int) (SearchResponse, error) {
	return d.SearchDocuments(ctx, SearchParams{Space: space, Start: start, Limit: limit})
}

func (d *DirectorySource) ListAllSpaceKeys(ctx context.Context) ([]string, error) {
	return []string{d.space}, nil
}

func paginate(docs []Document, start, limit int) SearchResponse {
	if limit <= 0 {
		limit = 100
	}
	total := len(docs)
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return SearchResponse{Documents: docs[start:end], Start: start, Limit: limit, Total: total}
}

var _ Source = (*DirectorySource)(nil)
