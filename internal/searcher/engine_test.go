package searcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/elchin-rustamov/courtsearch/internal/document"
	"github.com/elchin-rustamov/courtsearch/internal/indexer/index"
	"github.com/elchin-rustamov/courtsearch/pkg/config"
	apperrors "github.com/elchin-rustamov/courtsearch/pkg/errors"
)

// stubEmbedder returns a fixed vector for any text, with an optional delay.
type stubEmbedder struct {
	vector []float64
	delay  time.Duration
}

func (s *stubEmbedder) Dimension() int { return len(s.vector) }

func (s *stubEmbedder) Embed(ctx context.Context, _ string) ([]float64, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.vector, nil
}

func searchConfig() config.SearchConfig {
	return config.SearchConfig{
		DefaultLimit: 10,
		MaxResults:   100,
		MinScore:     0.25,
		QueryTimeout: 5 * time.Second,
	}
}

func publishDoc(idx *index.VectorIndex, id, judge, year string, ingestedAt time.Time, embeddings ...[]float64) {
	meta := document.NewMetadataRecord()
	meta.Judge = judge
	meta.Year = year
	doc := &document.Document{ID: id, Metadata: meta, IngestedAt: ingestedAt}
	chunks := make([]document.Chunk, 0, len(embeddings))
	for i, emb := range embeddings {
		chunks = append(chunks, document.Chunk{
			DocumentID: id,
			Seq:        i,
			Text:       "chunk mətn " + id,
			Embedding:  emb,
			Metadata:   meta,
		})
	}
	idx.Publish(doc, chunks)
}

func TestSemanticRankingAndDedup(t *testing.T) {
	idx := index.NewVectorIndex()
	now := time.Now()
	// doc-a has two chunks; only its best one may surface.
	publishDoc(idx, "doc-a", "Əli Məmmədov", "2023", now,
		[]float64{1, 0, 0}, []float64{0.8, 0.6, 0})
	publishDoc(idx, "doc-b", "Kamran Əliyev", "2023", now,
		[]float64{0.6, 0.8, 0})

	e := NewEngine(searchConfig(), &stubEmbedder{vector: []float64{1, 0, 0}}, idx, nil)
	res, err := e.Search(context.Background(), Query{Text: "mülki iddia"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if res.Outcome != OutcomeOK {
		t.Fatalf("outcome = %q", res.Outcome)
	}
	if len(res.Hits) != 2 {
		t.Fatalf("hits = %d, want 2 (one per document)", len(res.Hits))
	}
	if res.Hits[0].DocumentID != "doc-a" {
		t.Errorf("top hit = %s, want doc-a", res.Hits[0].DocumentID)
	}
	if res.Hits[0].Score <= res.Hits[1].Score {
		t.Errorf("hits not sorted by score: %v vs %v", res.Hits[0].Score, res.Hits[1].Score)
	}
	if res.Hits[0].ChunkID != "doc-a_0" {
		t.Errorf("best chunk = %s, want doc-a_0", res.Hits[0].ChunkID)
	}
}

func TestMinScoreYieldsExplicitNoResults(t *testing.T) {
	idx := index.NewVectorIndex()
	publishDoc(idx, "doc-a", "Əli Məmmədov", "2023", time.Now(),
		[]float64{0, 1, 0})

	e := NewEngine(searchConfig(), &stubEmbedder{vector: []float64{1, 0, 0}}, idx, nil)
	res, err := e.Search(context.Background(), Query{Text: "tamamilə fərqli mövzu"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if res.Outcome != OutcomeNoRelevantResults {
		t.Errorf("outcome = %q, want %q", res.Outcome, OutcomeNoRelevantResults)
	}
	if len(res.Hits) != 0 {
		t.Errorf("hits = %d, want 0", len(res.Hits))
	}
}

func TestFiltersRestrictCandidates(t *testing.T) {
	idx := index.NewVectorIndex()
	now := time.Now()
	publishDoc(idx, "doc-a", "Əli Məmmədov", "2023", now, []float64{1, 0, 0})
	publishDoc(idx, "doc-b", "Kamran Əliyev", "2023", now, []float64{1, 0, 0})

	e := NewEngine(searchConfig(), &stubEmbedder{vector: []float64{1, 0, 0}}, idx, nil)
	res, err := e.Search(context.Background(), Query{
		Text:    "qərar",
		Filters: map[string]string{document.FieldJudge: "Kamran Əliyev"},
	})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(res.Hits) != 1 || res.Hits[0].DocumentID != "doc-b" {
		t.Errorf("hits = %+v, want only doc-b", res.Hits)
	}
}

func TestBrowseOrdersByRecencyThenID(t *testing.T) {
	idx := index.NewVectorIndex()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	publishDoc(idx, "doc-old", "Əli Məmmədov", "2022", base.Add(-time.Hour))
	publishDoc(idx, "doc-b", "Əli Məmmədov", "2023", base)
	publishDoc(idx, "doc-a", "Əli Məmmədov", "2023", base)

	e := NewEngine(searchConfig(), &stubEmbedder{vector: []float64{1, 0, 0}}, idx, nil)
	res, err := e.Search(context.Background(), Query{
		Filters: map[string]string{document.FieldJudge: "Əli Məmmədov"},
	})
	if err != nil {
		t.Fatalf("browse failed: %v", err)
	}
	want := []string{"doc-a", "doc-b", "doc-old"}
	if len(res.Hits) != 3 {
		t.Fatalf("hits = %d, want 3", len(res.Hits))
	}
	for i, id := range want {
		if res.Hits[i].DocumentID != id {
			t.Errorf("hit %d = %s, want %s", i, res.Hits[i].DocumentID, id)
		}
	}
}

func TestQueryWithoutTextOrFiltersRejected(t *testing.T) {
	e := NewEngine(searchConfig(), &stubEmbedder{vector: []float64{1}}, index.NewVectorIndex(), nil)
	_, err := e.Search(context.Background(), Query{Text: "   "})
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestTimeoutReportedAsQueryTimeout(t *testing.T) {
	cfg := searchConfig()
	cfg.QueryTimeout = 20 * time.Millisecond
	idx := index.NewVectorIndex()
	publishDoc(idx, "doc-a", "Əli Məmmədov", "2023", time.Now(), []float64{1, 0, 0})

	e := NewEngine(cfg, &stubEmbedder{vector: []float64{1, 0, 0}, delay: 500 * time.Millisecond}, idx, nil)
	_, err := e.Search(context.Background(), Query{Text: "qərar"})
	if !errors.Is(err, apperrors.ErrQueryTimeout) {
		t.Errorf("error = %v, want ErrQueryTimeout", err)
	}
}

func TestLimitClamped(t *testing.T) {
	idx := index.NewVectorIndex()
	now := time.Now()
	for _, id := range []string{"d1", "d2", "d3"} {
		publishDoc(idx, id, "Əli Məmmədov", "2023", now, []float64{1, 0, 0})
	}

	e := NewEngine(searchConfig(), &stubEmbedder{vector: []float64{1, 0, 0}}, idx, nil)
	res, err := e.Search(context.Background(), Query{Text: "qərar", Limit: 2})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(res.Hits) != 2 {
		t.Errorf("hits = %d, want 2", len(res.Hits))
	}
	if res.Total != 3 {
		t.Errorf("total = %d, want 3", res.Total)
	}
}

func TestAmbiguousMetadataDeprioritized(t *testing.T) {
	idx := index.NewVectorIndex()
	now := time.Now()

	meta := document.NewMetadataRecord()
	meta.Judge = "Əli Məmmədov"
	meta.PartiallyAmbiguous = true
	idx.Publish(&document.Document{ID: "doc-amb", Metadata: meta, IngestedAt: now},
		[]document.Chunk{{DocumentID: "doc-amb", Seq: 0, Text: "x", Embedding: []float64{1, 0, 0}, Metadata: meta}})

	publishDoc(idx, "doc-z", "Kamran Əliyev", "2023", now, []float64{1, 0, 0})

	e := NewEngine(searchConfig(), &stubEmbedder{vector: []float64{1, 0, 0}}, idx, nil)
	res, err := e.Search(context.Background(), Query{Text: "qərar"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(res.Hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(res.Hits))
	}
	// Equal raw scores; the consistent document must rank first even though
	// its id sorts later.
	if res.Hits[0].DocumentID != "doc-z" {
		t.Errorf("top hit = %s, want doc-z", res.Hits[0].DocumentID)
	}
}
