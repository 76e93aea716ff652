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

// Package observability exposes the retrieval core's Prometheus metrics:
// ingest throughput and retrieval latency/quality, scoped to this
// module's pipeline rather than an agent runtime's.
//
// Grounded in the teacher's pkg/observability/metrics.go registration
// idiom (CounterVec/HistogramVec per concern, a single Registry,
// http.Handler via promhttp), trimmed to the documents/chunks/retrieval
// surface this module actually has.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the pipeline's counters and histograms. The
// orchestrator updates the indexed-page, failed-page and retrieval
// metrics, and cmd/wikiretriever the skipped-page counter;
// ObserveCandidatePool, ObserveMMRSelection and ObserveDocStoreFallback
// have no caller in this module.
type Metrics struct {
	registry *prometheus.Registry

	docsIndexed  *prometheus.CounterVec
	docsSkipped  *prometheus.CounterVec
	docsFailed   *prometheus.CounterVec
	chunksWritten *prometheus.CounterVec
	indexDuration *prometheus.HistogramVec

	retrievals          *prometheus.CounterVec
	retrievalDuration   *prometheus.HistogramVec
	candidatesPreFilter *prometheus.HistogramVec
	candidatesPostFilter *prometheus.HistogramVec
	mmrSelectionSize    *prometheus.HistogramVec
	docStoreCacheHits   *prometheus.CounterVec
}

// NewMetrics registers every metric against a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.docsIndexed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wikiretriever", Subsystem: "ingest", Name: "documents_indexed_total",
		Help: "Pages chunked, embedded, and upserted by the ingest worker.",
	}, []string{"space"})

	m.docsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wikiretriever", Subsystem: "ingest", Name: "documents_skipped_total",
		Help: "Pages skipped because their content hash matched the prior tick.",
	}, []string{"space"})

	m.docsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wikiretriever", Subsystem: "ingest", Name: "documents_failed_total",
		Help: "Per-page failures during a tick (fetch, chunk, embed, or upsert errors).",
	}, []string{"space"})

	m.chunksWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wikiretriever", Subsystem: "ingest", Name: "chunks_written_total",
		Help: "Chunks upserted into the vector store.",
	}, []string{"space"})

	m.indexDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wikiretriever", Subsystem: "ingest", Name: "page_index_duration_seconds",
		Help:    "Time spent chunking, embedding, and upserting a single page.",
		Buckets: prometheus.DefBuckets,
	}, []string{"space"})

	m.retrievals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wikiretriever", Subsystem: "retrieval", Name: "requests_total",
		Help: "Retrieval requests served, by strategy and outcome.",
	}, []string{"strategy", "outcome"})

	m.retrievalDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wikiretriever", Subsystem: "retrieval", Name: "duration_seconds",
		Help:    "End-to-end retrieval latency by strategy.",
		Buckets: prometheus.DefBuckets,
	}, []string{"strategy"})

	m.candidatesPreFilter = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wikiretriever", Subsystem: "retrieval", Name: "candidates_before_threshold",
		Help:    "Candidate count after dedup, before adaptive thresholding.",
		Buckets: []float64{0, 1, 5, 10, 20, 50, 100, 200},
	}, []string{"strategy"})

	m.candidatesPostFilter = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wikiretriever", Subsystem: "retrieval", Name: "candidates_after_threshold",
		Help:    "Candidate count surviving the adaptive threshold.",
		Buckets: []float64{0, 1, 5, 10, 20, 50, 100, 200},
	}, []string{"strategy"})

	m.mmrSelectionSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wikiretriever", Subsystem: "retrieval", Name: "mmr_selection_size",
		Help:    "Number of candidates MMR selected before per-document capping.",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
	}, []string{})

	m.docStoreCacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wikiretriever", Subsystem: "retrieval", Name: "doc_store_fallback_total",
		Help: "Times the keyword doc store served results instead of the vector index.",
	}, []string{"strategy"})

	m.registry.MustRegister(
		m.docsIndexed, m.docsSkipped, m.docsFailed, m.chunksWritten, m.indexDuration,
		m.retrievals, m.retrievalDuration, m.candidatesPreFilter, m.candidatesPostFilter,
		m.mmrSelectionSize, m.docStoreCacheHits,
	)

	return m
}

// ObserveIndexedPage records one successfully processed page.
func (m *Metrics) ObserveIndexedPage(space string, chunkCount int, seconds float64) {
	m.docsIndexed.WithLabelValues(space).Inc()
	m.chunksWritten.WithLabelValues(space).Add(float64(chunkCount))
	m.indexDuration.WithLabelValues(space).Observe(seconds)
}

// ObserveSkippedPage records one page skipped because its content hash
// matched the prior tick's recorded state.
func (m *Metrics) ObserveSkippedPage(space string) {
	m.docsSkipped.WithLabelValues(space).Inc()
}

// ObserveFailedPage records one page that failed to fetch, chunk, embed,
// or upsert during a tick.
func (m *Metrics) ObserveFailedPage(space string) {
	m.docsFailed.WithLabelValues(space).Inc()
}

// ObserveRetrieval records one retrieval request's outcome and latency.
func (m *Metrics) ObserveRetrieval(strategy, outcome string, seconds float64) {
	m.retrievals.WithLabelValues(strategy, outcome).Inc()
	m.retrievalDuration.WithLabelValues(strategy).Observe(seconds)
}

// ObserveCandidatePool records candidate counts before and after
// threshold gating, for a single retrieval attempt.
func (m *Metrics) ObserveCandidatePool(strategy string, before, after int) {
	m.candidatesPreFilter.WithLabelValues(strategy).Observe(float64(before))
	m.candidatesPostFilter.WithLabelValues(strategy).Observe(float64(after))
}

// ObserveMMRSelection records how many candidates MMR chose before
// per-document capping.
func (m *Metrics) ObserveMMRSelection(size int) {
	m.mmrSelectionSize.WithLabelValues().Observe(float64(size))
}

// ObserveDocStoreFallback records one retrieval that fell back to the
// keyword doc store instead of the vector index.
func (m *Metrics) ObserveDocStoreFallback(strategy string) {
	m.docStoreCacheHits.WithLabelValues(strategy).Inc()
}

// Handler returns the http.Handler exposing these metrics for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
