// Package searcher implements the hybrid query engine: metadata filters
// narrow the candidate set, cosine similarity ranks it, and results are
// deduplicated to one best chunk per document.
package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/elchin-rustamov/courtsearch/internal/document"
	"github.com/elchin-rustamov/courtsearch/internal/embedding"
	"github.com/elchin-rustamov/courtsearch/internal/indexer/index"
	"github.com/elchin-rustamov/courtsearch/pkg/config"
	apperrors "github.com/elchin-rustamov/courtsearch/pkg/errors"
	"github.com/elchin-rustamov/courtsearch/pkg/logger"
	"github.com/elchin-rustamov/courtsearch/pkg/metrics"
	"github.com/elchin-rustamov/courtsearch/pkg/resilience"
	"github.com/elchin-rustamov/courtsearch/pkg/tracing"

	"github.com/google/uuid"
)

// Search outcomes. NoRelevantResults is an explicit answer, not an error:
// the engine ran to completion and nothing cleared the relevance floor.
const (
	OutcomeOK                = "ok"
	OutcomeNoRelevantResults = "no_relevant_results"
)

type Query struct {
	Text    string            `json:"text"`
	Filters map[string]string `json:"filters,omitempty"`
	Limit   int               `json:"limit,omitempty"`
}

type Hit struct {
	DocumentID string                  `json:"document_id"`
	ChunkID    string                  `json:"chunk_id,omitempty"`
	Score      float64                 `json:"score"`
	Snippet    string                  `json:"snippet"`
	Metadata   document.MetadataRecord `json:"metadata"`
}

type Result struct {
	Outcome string `json:"outcome"`
	Hits    []Hit  `json:"hits"`
	Total   int    `json:"total"`
}

type Engine struct {
	cfg      config.SearchConfig
	embedder embedding.Embedder
	index    *index.VectorIndex
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewEngine(cfg config.SearchConfig, embedder embedding.Embedder, idx *index.VectorIndex, m *metrics.Metrics) *Engine {
	return &Engine{
		cfg:      cfg,
		embedder: embedder,
		index:    idx,
		metrics:  m,
		logger:   slog.Default().With("component", "searcher"),
	}
}

// Search executes a query under the configured wall-clock budget. A query
// with text is ranked semantically; a filter-only query browses matching
// documents by recency.
func (e *Engine) Search(ctx context.Context, q Query) (*Result, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" && len(q.Filters) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "query needs text or at least one filter")
	}
	q.Limit = e.clampLimit(q.Limit)

	traceID := logger.RequestID(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
	}
	ctx, span := tracing.StartSpan(ctx, "search", traceID)
	span.SetAttr("filters", len(q.Filters))
	defer func() {
		span.End()
		span.Log()
	}()

	var result *Result
	err := resilience.WithTimeout(ctx, e.cfg.QueryTimeout, "search", func(tctx context.Context) error {
		var err error
		if q.Text == "" {
			result, err = e.browse(q)
		} else {
			result, err = e.semantic(tctx, q)
		}
		return err
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			e.countQuery("timeout")
			return nil, apperrors.New(apperrors.ErrQueryTimeout,
				fmt.Sprintf("query exceeded %v budget", e.cfg.QueryTimeout))
		}
		e.countQuery("error")
		return nil, err
	}

	e.countQuery(result.Outcome)
	if e.metrics != nil {
		e.metrics.SearchResultsCount.Observe(float64(len(result.Hits)))
	}
	return result, nil
}

// browse lists documents matching the filters, newest first. Document id
// breaks recency ties so pagination over equal timestamps is stable.
func (e *Engine) browse(q Query) (*Result, error) {
	refs := e.index.Documents(q.Filters)
	sort.Slice(refs, func(a, b int) bool {
		if !refs[a].IngestedAt.Equal(refs[b].IngestedAt) {
			return refs[a].IngestedAt.After(refs[b].IngestedAt)
		}
		return refs[a].DocumentID < refs[b].DocumentID
	})

	total := len(refs)
	if len(refs) > q.Limit {
		refs = refs[:q.Limit]
	}
	hits := make([]Hit, 0, len(refs))
	for _, ref := range refs {
		hits = append(hits, Hit{
			DocumentID: ref.DocumentID,
			Snippet:    metadataSnippet(ref.Metadata),
			Metadata:   ref.Metadata,
		})
	}

	outcome := OutcomeOK
	if len(hits) == 0 {
		outcome = OutcomeNoRelevantResults
	}
	return &Result{Outcome: outcome, Hits: hits, Total: total}, nil
}

func (e *Engine) semantic(ctx context.Context, q Query) (*Result, error) {
	embedCtx, embedSpan := tracing.StartChildSpan(ctx, "embed_query")
	queryVec, err := e.embedder.Embed(embedCtx, q.Text)
	embedSpan.End()
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	_, rankSpan := tracing.StartChildSpan(ctx, "rank")
	defer rankSpan.End()

	candidates := e.index.Select(q.Filters)
	rankSpan.SetAttr("candidates", len(candidates))
	if len(candidates) == 0 {
		return &Result{Outcome: OutcomeNoRelevantResults, Hits: []Hit{}}, nil
	}

	// One best chunk per document.
	best := make(map[string]Hit)
	for _, chunk := range candidates {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if len(chunk.Embedding) != len(queryVec) {
			continue
		}
		score := dot(queryVec, chunk.Embedding)
		if score < e.cfg.MinScore {
			continue
		}
		prev, seen := best[chunk.DocumentID]
		if !seen || score > prev.Score {
			best[chunk.DocumentID] = Hit{
				DocumentID: chunk.DocumentID,
				ChunkID:    chunk.ID(),
				Score:      score,
				Snippet:    snippet(chunk.Text),
				Metadata:   chunk.Metadata,
			}
		}
	}

	hits := make([]Hit, 0, len(best))
	for _, h := range best {
		hits = append(hits, h)
	}
	sort.Slice(hits, func(a, b int) bool {
		sa, sb := adjustedScore(hits[a]), adjustedScore(hits[b])
		if sa != sb {
			return sa > sb
		}
		return hits[a].DocumentID < hits[b].DocumentID
	})

	total := len(hits)
	if len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	if len(hits) == 0 {
		return &Result{Outcome: OutcomeNoRelevantResults, Hits: []Hit{}}, nil
	}
	return &Result{Outcome: OutcomeOK, Hits: hits, Total: total}, nil
}

// adjustedScore nudges documents with inconsistent metadata below otherwise
// equal results without excluding them.
func adjustedScore(h Hit) float64 {
	if h.Metadata.PartiallyAmbiguous {
		return h.Score - 0.05
	}
	return h.Score
}

func (e *Engine) clampLimit(limit int) int {
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	if limit <= 0 {
		limit = 10
	}
	if e.cfg.MaxResults > 0 && limit > e.cfg.MaxResults {
		limit = e.cfg.MaxResults
	}
	return limit
}

func (e *Engine) countQuery(outcome string) {
	if e.metrics != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	}
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

const snippetRunes = 240

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetRunes {
		return text
	}
	cut := snippetRunes
	for cut > 0 && runes[cut-1] != ' ' {
		cut--
	}
	if cut == 0 {
		cut = snippetRunes
	}
	return strings.TrimSpace(string(runes[:cut])) + "..."
}

func metadataSnippet(meta document.MetadataRecord) string {
	var parts []string
	for _, field := range document.FacetFields {
		if meta.Known(field) {
			parts = append(parts, field+": "+meta.Value(field))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " | ")
}
