// Package indexer drives document ingestion: normalisation, metadata
// extraction, chunking, concurrent embedding with retries, and atomic
// publication into the in-memory vector index.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/elchin-rustamov/courtsearch/internal/analytics"
	"github.com/elchin-rustamov/courtsearch/internal/document"
	"github.com/elchin-rustamov/courtsearch/internal/embedding"
	"github.com/elchin-rustamov/courtsearch/internal/extractor"
	"github.com/elchin-rustamov/courtsearch/internal/indexer/chunker"
	"github.com/elchin-rustamov/courtsearch/internal/indexer/facets"
	"github.com/elchin-rustamov/courtsearch/internal/indexer/index"
	"github.com/elchin-rustamov/courtsearch/internal/textnorm"
	"github.com/elchin-rustamov/courtsearch/pkg/config"
	apperrors "github.com/elchin-rustamov/courtsearch/pkg/errors"
	"github.com/elchin-rustamov/courtsearch/pkg/logger"
	"github.com/elchin-rustamov/courtsearch/pkg/metrics"
	"github.com/elchin-rustamov/courtsearch/pkg/resilience"
	"github.com/elchin-rustamov/courtsearch/pkg/tracing"

	"github.com/google/uuid"
)

// DocumentStore persists documents across restarts. The pipeline works
// without one; the index is then purely in-memory.
type DocumentStore interface {
	Save(ctx context.Context, doc *document.Document) error
	Get(ctx context.Context, id string) (*document.Document, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]*document.Document, error)
	Count(ctx context.Context) (int, error)
}

// EventTracker receives usage events. The analytics collector implements it.
type EventTracker interface {
	Track(event interface{})
}

type Pipeline struct {
	cfg       config.IndexerConfig
	extractor *extractor.Extractor
	chunker   *chunker.Chunker
	embedder  embedding.Embedder
	index     *index.VectorIndex
	facets    *facets.Cache
	store     DocumentStore
	tracker   EventTracker
	breaker   *resilience.CircuitBreaker
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewPipeline(
	cfg config.IndexerConfig,
	embedder embedding.Embedder,
	idx *index.VectorIndex,
	fc *facets.Cache,
	store DocumentStore,
	tracker EventTracker,
	m *metrics.Metrics,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		extractor: extractor.New(),
		chunker:   chunker.New(cfg.MaxChunkChars, cfg.ChunkOverlapChars),
		embedder:  embedder,
		index:     idx,
		facets:    fc,
		store:     store,
		tracker:   tracker,
		breaker:   resilience.NewCircuitBreaker("embedding", resilience.CircuitBreakerConfig{}),
		metrics:   m,
		logger:    slog.Default().With("component", "indexer"),
	}
}

// Ingest runs the full pipeline for one document. Embedding failures degrade
// the result (skipped chunks are reported, the rest is published); only
// invalid input fails the ingestion outright.
//
// docID is the external document identity; when empty it is derived from the
// filename. Ingesting under an existing identity supersedes the previous
// version atomically.
func (p *Pipeline) Ingest(ctx context.Context, docID, filename, rawText string) (*document.IngestReport, error) {
	start := time.Now()

	text := textnorm.Normalize(rawText)
	if text == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "document text is empty")
	}
	if docID == "" {
		docID = documentID(filename)
	}

	doc := &document.Document{
		ID:         docID,
		Filename:   filename,
		RawText:    rawText,
		Text:       text,
		IngestedAt: time.Now().UTC(),
	}

	traceID := logger.RequestID(ctx)
	if traceID == "" {
		traceID = doc.ID
	}
	ctx, span := tracing.StartSpan(ctx, "ingest", traceID)
	span.SetAttr("doc_id", doc.ID)
	defer func() {
		span.End()
		span.Log()
	}()

	_, extractSpan := tracing.StartChildSpan(ctx, "extract_metadata")
	doc.Metadata = p.extractor.Extract(text)
	extractSpan.End()

	_, chunkSpan := tracing.StartChildSpan(ctx, "chunk")
	chunks := p.chunker.Split(doc.ID, text, doc.Metadata)
	if p.cfg.MetadataSummaryChunk {
		chunks = prependSummaryChunk(doc, chunks)
	}
	chunkSpan.SetAttr("chunks", len(chunks))
	chunkSpan.End()

	embedCtx, embedSpan := tracing.StartChildSpan(ctx, "embed")
	indexed, report := p.embedChunks(embedCtx, doc.ID, chunks)
	embedSpan.SetAttr("skipped", report.SkippedChunks)
	embedSpan.End()

	// Publication is atomic: searchers see the whole document or nothing.
	// A superseded version gives its facet counts back first.
	if oldMeta, exists := p.index.Metadata(doc.ID); exists {
		p.facets.Remove(oldMeta)
	}
	p.index.Publish(doc, indexed)
	p.facets.Add(doc.Metadata)
	p.updateFacetGauges()

	if p.store != nil {
		if err := p.store.Save(ctx, doc); err != nil {
			p.logger.Error("failed to persist document", "doc_id", doc.ID, "error", err)
			report.Warnings = append(report.Warnings, "document not persisted: "+err.Error())
		}
	}

	elapsed := time.Since(start)
	if p.metrics != nil {
		p.metrics.DocsIngestedTotal.Inc()
		p.metrics.ChunksIndexedTotal.Add(float64(report.IndexedChunks))
		p.metrics.ChunksSkippedTotal.Add(float64(report.SkippedChunks))
		p.metrics.IngestLatency.Observe(elapsed.Seconds())
	}
	if p.tracker != nil {
		p.tracker.Track(analytics.IndexEvent{
			DocumentID:    doc.ID,
			Filename:      filename,
			IndexedChunks: report.IndexedChunks,
			SkippedChunks: report.SkippedChunks,
			LatencyMs:     elapsed.Milliseconds(),
			Timestamp:     time.Now().UTC(),
		})
	}

	p.logger.Info("document ingested",
		"doc_id", doc.ID,
		"filename", filename,
		"indexed_chunks", report.IndexedChunks,
		"skipped_chunks", report.SkippedChunks,
		"duration", elapsed,
	)
	return report, nil
}

// Delete removes a document from the index, the facet cache, and the store.
func (p *Pipeline) Delete(ctx context.Context, docID string) error {
	meta, inIndex := p.index.Metadata(docID)
	if inIndex {
		p.index.Remove(docID)
		p.facets.Remove(meta)
		p.updateFacetGauges()
	}

	inStore := false
	if p.store != nil {
		var err error
		inStore, err = p.store.Delete(ctx, docID)
		if err != nil {
			return fmt.Errorf("deleting document %s: %w", docID, err)
		}
	}

	if !inIndex && !inStore {
		return apperrors.New(apperrors.ErrDocumentNotFound, "document not found: "+docID)
	}
	p.logger.Info("document deleted", "doc_id", docID)
	return nil
}

// Reindex re-embeds and republishes every stored document. Used after a
// chunking or extraction change.
func (p *Pipeline) Reindex(ctx context.Context) (int, error) {
	if p.store == nil {
		return 0, apperrors.New(apperrors.ErrStoreUnavailable, "reindex requires a document store")
	}
	docs, err := p.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing documents for reindex: %w", err)
	}

	count := 0
	records := make([]document.MetadataRecord, 0, len(docs))
	for _, doc := range docs {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}
		doc.Metadata = p.extractor.Extract(doc.Text)
		chunks := p.chunker.Split(doc.ID, doc.Text, doc.Metadata)
		if p.cfg.MetadataSummaryChunk {
			chunks = prependSummaryChunk(doc, chunks)
		}
		indexed, report := p.embedChunks(ctx, doc.ID, chunks)
		p.index.Publish(doc, indexed)
		records = append(records, doc.Metadata)
		count++
		if report.SkippedChunks > 0 {
			p.logger.Warn("reindex skipped chunks",
				"doc_id", doc.ID,
				"skipped", report.SkippedChunks,
			)
		}
	}
	p.facets.Rebuild(records)
	p.updateFacetGauges()

	p.logger.Info("reindex complete", "documents", count)
	return count, nil
}

// embedChunks embeds chunks concurrently, bounded by the configured worker
// limit. A chunk whose embedding fails after all retries is skipped with a
// warning rather than failing the document.
func (p *Pipeline) embedChunks(ctx context.Context, docID string, chunks []document.Chunk) ([]document.Chunk, *document.IngestReport) {
	report := &document.IngestReport{DocumentID: docID}

	type outcome struct {
		seq int
		err error
	}
	results := make([]outcome, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.EmbedConcurrency)
	for i := range chunks {
		g.Go(func() error {
			err := p.embedOne(gctx, &chunks[i])
			results[i] = outcome{seq: chunks[i].Seq, err: err}
			return nil
		})
	}
	g.Wait()

	indexed := make([]document.Chunk, 0, len(chunks))
	for i, res := range results {
		if res.err != nil {
			report.SkippedChunks++
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("chunk %d skipped: %v", res.seq, res.err))
			continue
		}
		indexed = append(indexed, chunks[i])
	}
	sort.Slice(indexed, func(a, b int) bool { return indexed[a].Seq < indexed[b].Seq })
	report.IndexedChunks = len(indexed)
	return indexed, report
}

func (p *Pipeline) embedOne(ctx context.Context, chunk *document.Chunk) error {
	retryCfg := resilience.RetryConfig{MaxAttempts: p.cfg.EmbedMaxAttempts}
	err := resilience.Retry(ctx, "embed-chunk", retryCfg, func() error {
		return p.breaker.Execute(func() error {
			return resilience.WithTimeout(ctx, p.cfg.EmbedTimeout, "embed", func(tctx context.Context) error {
				start := time.Now()
				vector, err := p.embedder.Embed(tctx, chunk.Text)
				if p.metrics != nil {
					p.metrics.EmbeddingLatency.Observe(time.Since(start).Seconds())
					status := "ok"
					if err != nil {
						status = "error"
					}
					p.metrics.EmbeddingCallsTotal.WithLabelValues(status).Inc()
				}
				if err != nil {
					return err
				}
				chunk.Embedding = vector
				return nil
			})
		})
	})
	if p.metrics != nil {
		p.metrics.CircuitBreakerState.WithLabelValues("embedding").Set(float64(p.breaker.GetState()))
	}
	return err
}

// Document loads the durable copy of one document. Returns nil, nil when no
// store is configured or the document is absent.
func (p *Pipeline) Document(ctx context.Context, docID string) (*document.Document, error) {
	if p.store == nil {
		return nil, nil
	}
	return p.store.Get(ctx, docID)
}

// StoredCount reports how many documents the durable store holds.
func (p *Pipeline) StoredCount(ctx context.Context) (int, error) {
	if p.store == nil {
		return 0, apperrors.New(apperrors.ErrStoreUnavailable, "no document store configured")
	}
	return p.store.Count(ctx)
}

// documentID derives a stable identity from the filename so uploading the
// same file again replaces the earlier version instead of duplicating it.
func documentID(filename string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(filename)).String()
}

func (p *Pipeline) updateFacetGauges() {
	if p.metrics == nil {
		return
	}
	for field, values := range p.facets.Snapshot() {
		p.metrics.FacetValues.WithLabelValues(field).Set(float64(len(values)))
	}
}

// prependSummaryChunk inserts a synthetic chunk of "field: value" pairs so a
// query phrased purely in metadata terms still has something semantically
// close to match. Documents with no known fields get no summary.
func prependSummaryChunk(doc *document.Document, chunks []document.Chunk) []document.Chunk {
	var parts []string
	for _, field := range []string{
		document.FieldCourtName, document.FieldCaseNumber, document.FieldJudge,
		document.FieldCaseType, document.FieldDistrict, document.FieldDecisionType,
		document.FieldYear, document.FieldDecisionDate,
	} {
		if doc.Metadata.Known(field) {
			parts = append(parts, field+": "+doc.Metadata.Value(field))
		}
	}
	if len(doc.Metadata.Parties) > 0 {
		parts = append(parts, "parties: "+strings.Join(doc.Metadata.Parties, ", "))
	}
	if len(parts) == 0 {
		return chunks
	}

	out := make([]document.Chunk, 0, len(chunks)+1)
	out = append(out, document.Chunk{
		DocumentID: doc.ID,
		Seq:        0,
		Text:       strings.Join(parts, " | "),
		Metadata:   doc.Metadata,
	})
	for _, ch := range chunks {
		ch.Seq++
		out = append(out, ch)
	}
	return out
}
