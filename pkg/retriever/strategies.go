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

package retriever

import (
	"context"
	"time"
)

// maxCandidatePool bounds the dense-search fan-out regardless of
// mmrPoolMultiplier, standing in for VectorStoreConfig.MaxK (New
// receives only the RetrievalConfig, so that value is not available
// here).
const maxCandidatePool = 200

func nowUnix() int64 { return time.Now().Unix() }

func emptyResult() Result {
	return Result{Chunks: []Candidate{}, Citations: []Citation{}}
}

// basicRetriever runs only steps 3 (dense search), 5 (dedup), and 12
// (citations): no thresholding, no rerank, no MMR, no expansion.
type basicRetriever struct {
	base *baseRetriever
}

func (r *basicRetriever) Retrieve(ctx context.Context, queryOrVariants []string, filters Filters, topK int) (Result, error) {
	for _, q := range queryOrVariants {
		candidates, err := r.base.denseSearch(ctx, q, topK, filters)
		if err != nil {
			// Vector store unreachable: fall through to the doc-store
			// keyword index rather than failing the whole request.
			candidates = r.base.docStoreFallback(q, filters, topK)
		} else {
			candidates = dedupeCandidates(candidates)
			if len(candidates) == 0 {
				candidates = r.base.docStoreFallback(q, filters, topK)
			}
		}
		sortByScoreDesc(candidates)
		if len(candidates) > topK {
			candidates = candidates[:topK]
		}
		if len(candidates) > 0 {
			return Result{Chunks: candidates, Citations: buildCitations(candidates, r.base.cfg.BaseURL)}, nil
		}
	}
	return emptyResult(), nil
}

// stableRetriever is dense-only like basic, but also applies threshold
// gating, the enhanced (temporal/metadata) rerank, and per-document
// capping — every deterministic step that doesn't introduce the
// run-to-run variance of expansion or MMR's greedy selection.
type stableRetriever struct {
	base *baseRetriever
}

func (r *stableRetriever) Retrieve(ctx context.Context, queryOrVariants []string, filters Filters, topK int) (Result, error) {
	cfg := r.base.cfg
	for _, q := range queryOrVariants {
		candidates, err := r.base.denseSearch(ctx, q, topK, filters)
		if err != nil {
			return Result{}, err
		}
		candidates = dedupeCandidates(candidates)
		if _, ok := applyThreshold(candidates, cfg.BaseThreshold, false); !ok {
			continue
		}

		applyTemporalAndMetadataBoosts(candidates, nowUnix(), cfg.TemporalWeight, cfg.EnableTemporalScoring, cfg.MetadataBoosts, cfg.EnableMetadataFilter)
		candidates = capPerDocument(candidates, perDocCap(topK))
		sortByScoreDesc(candidates)
		if len(candidates) > topK {
			candidates = candidates[:topK]
		}
		if len(candidates) > 0 {
			r.base.scheduleRevalidation(candidates, int64(cfg.ChunkTTL.Seconds()), nowUnix())
			return Result{Chunks: candidates, Citations: buildCitations(candidates, cfg.BaseURL)}, nil
		}
	}
	return emptyResult(), nil
}

// advancedRetriever runs the full §4.5 control flow: query variants,
// optional HyDE/expansion, dense+expanded search, dedup, adaptive
// threshold, enhanced rerank, MMR, compression, lexical floor,
// per-document cap, citations, and lazy revalidation.
type advancedRetriever struct {
	base *baseRetriever
}

func (r *advancedRetriever) Retrieve(ctx context.Context, queryOrVariants []string, filters Filters, topK int) (Result, error) {
	for _, q := range queryOrVariants {
		result, yielded, err := r.retrieveOne(ctx, q, filters, topK)
		if err != nil {
			return Result{}, err
		}
		if yielded {
			return result, nil
		}
	}
	return emptyResult(), nil
}

func (r *advancedRetriever) retrieveOne(ctx context.Context, query string, filters Filters, topK int) (Result, bool, error) {
	cfg := r.base.cfg

	candidateK := clampInt(int(float64(topK)*cfg.MMRPoolMultiplier), topK, maxCandidatePool)
	if cfg.EnableTwoStageRetrieval && cfg.InitialK > 0 {
		candidateK = cfg.InitialK
	}
	candidates, err := r.base.denseSearch(ctx, query, candidateK, filters)
	if err != nil {
		return Result{}, false, err
	}

	if cfg.EnableHyDE && r.base.deps.LLM != nil {
		if hydeDoc, herr := generateHypotheticalDocument(ctx, r.base.deps.LLM, query); herr == nil {
			if hydeCandidates, serr := r.base.denseSearch(ctx, hydeDoc, candidateK, filters); serr == nil {
				candidates = append(candidates, hydeCandidates...)
			}
		}
	}

	if r.base.deps.LLM != nil {
		if variants, verr := expandQuery(ctx, r.base.deps.LLM, query, 3); verr == nil {
			for _, v := range variants {
				expanded, serr := r.base.denseSearch(ctx, v, candidateK/2, filters)
				if serr != nil {
					continue
				}
				for i := range expanded {
					expanded[i].Score *= cfg.ExpansionWeight
				}
				candidates = append(candidates, expanded...)
			}
		}
	}

	candidates = dedupeCandidates(candidates)

	if _, ok := applyThreshold(candidates, cfg.BaseThreshold, cfg.AdaptiveThreshold); !ok {
		return Result{}, false, nil
	}

	applyTemporalAndMetadataBoosts(candidates, nowUnix(), cfg.TemporalWeight, cfg.EnableTemporalScoring, cfg.MetadataBoosts, cfg.EnableMetadataFilter)

	finalK := topK
	if cfg.EnableTwoStageRetrieval && cfg.FinalK > 0 {
		finalK = cfg.FinalK
	}
	if cfg.EnableMMR {
		candidates = mmrSelect(candidates, cfg.MMRLambda, finalK)
	} else {
		sortByScoreDesc(candidates)
		if len(candidates) > finalK {
			candidates = candidates[:finalK]
		}
	}

	if cfg.EnableCompression {
		for i := range candidates {
			candidates[i].Text = compressChunkText(candidates[i].Text, query, cfg.CompressionThreshold)
		}
	}

	if cfg.EnableLexicalFloor {
		candidates = applyLexicalFloor(candidates, query, cfg.MinKeywordScore)
		sortByScoreDesc(candidates)
	}

	if len(candidates) == 0 {
		return Result{}, false, nil
	}

	candidates = capPerDocument(candidates, perDocCap(topK))
	sortByScoreDesc(candidates)
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	r.base.scheduleRevalidation(candidates, int64(cfg.ChunkTTL.Seconds()), nowUnix())

	return Result{Chunks: candidates, Citations: buildCitations(candidates, cfg.BaseURL)}, true, nil
}

// smartRetriever consults an LLM "document analyzer" over a broad
// keyword search before ever embedding anything, falling back to
// basicRetriever whenever the analyzer, the LLM, or the doc store is
// unavailable or fails.
type smartRetriever struct {
	base     *baseRetriever
	fallback *basicRetriever
}

const smartAnalyzerPoolSize = 15

func (r *smartRetriever) Retrieve(ctx context.Context, queryOrVariants []string, filters Filters, topK int) (Result, error) {
	if r.base.deps.LLM == nil || r.base.deps.DocStore == nil {
		return r.fallback.Retrieve(ctx, queryOrVariants, filters, topK)
	}

	for _, q := range queryOrVariants {
		result, yielded, err := r.analyze(ctx, q, filters, topK)
		if err != nil {
			return r.fallback.Retrieve(ctx, queryOrVariants, filters, topK)
		}
		if yielded {
			return result, nil
		}
	}
	return emptyResult(), nil
}

func (r *smartRetriever) analyze(ctx context.Context, query string, filters Filters, topK int) (Result, bool, error) {
	docs := r.base.queryDocStore(query, filters, smartAnalyzerPoolSize)
	if len(docs) == 0 {
		return Result{}, false, nil
	}

	candidates, err := analyzeDocuments(ctx, r.base.deps.LLM, query, docs)
	if err != nil {
		return Result{}, false, err
	}
	if len(candidates) == 0 {
		return Result{}, false, nil
	}

	cfg := r.base.cfg
	if _, ok := applyThreshold(candidates, cfg.BaseThreshold, cfg.AdaptiveThreshold); !ok {
		return Result{}, false, nil
	}

	sortByScoreDesc(candidates)
	candidates = capPerDocument(candidates, perDocCap(topK))
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	if len(candidates) == 0 {
		return Result{}, false, nil
	}

	return Result{Chunks: candidates, Citations: buildCitations(candidates, cfg.BaseURL)}, true, nil
}
