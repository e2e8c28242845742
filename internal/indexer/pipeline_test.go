package indexer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elchin-rustamov/courtsearch/internal/document"
	"github.com/elchin-rustamov/courtsearch/internal/indexer/facets"
	"github.com/elchin-rustamov/courtsearch/internal/indexer/index"
	"github.com/elchin-rustamov/courtsearch/pkg/config"
	apperrors "github.com/elchin-rustamov/courtsearch/pkg/errors"
)

// flakyEmbedder fails permanently for chunks containing a marker substring
// and succeeds for everything else.
type flakyEmbedder struct {
	mu     sync.Mutex
	failOn string
	calls  int
}

func (f *flakyEmbedder) Dimension() int { return 4 }

func (f *flakyEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("embedding provider unavailable")
	}
	return []float64{1, 0, 0, 0}, nil
}

func testConfig() config.IndexerConfig {
	return config.IndexerConfig{
		MaxChunkChars:     120,
		ChunkOverlapChars: 20,
		EmbedConcurrency:  2,
		EmbedMaxAttempts:  2,
		EmbedTimeout:      time.Second,
	}
}

func newTestPipeline(cfg config.IndexerConfig, emb *flakyEmbedder) (*Pipeline, *index.VectorIndex, *facets.Cache) {
	idx := index.NewVectorIndex()
	fc := facets.NewCache()
	p := NewPipeline(cfg, emb, idx, fc, nil, nil, nil)
	return p, idx, fc
}

const rulingText = `Məhkəmənin adı: AĞDAM RAYON MƏHKƏMƏSİ
Hakim: Əli Məmmədov
İl: 2023

QƏRAR

Məhkəmə iş üzrə tərəfləri dinləyərək qərara aldı ki, iddia təmin edilsin.
Qərardan şikayət verilə bilər.`

func TestIngestHappyPath(t *testing.T) {
	p, idx, fc := newTestPipeline(testConfig(), &flakyEmbedder{})

	report, err := p.Ingest(context.Background(), "", "ruling.txt", rulingText)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if report.SkippedChunks != 0 {
		t.Errorf("skipped = %d, want 0", report.SkippedChunks)
	}
	if report.IndexedChunks == 0 {
		t.Fatal("no chunks indexed")
	}
	if idx.DocCount() != 1 {
		t.Errorf("doc count = %d, want 1", idx.DocCount())
	}

	judges := fc.Values(document.FieldJudge)
	if len(judges) != 1 || judges[0] != "Əli Məmmədov" {
		t.Errorf("facet judges = %v", judges)
	}
}

func TestIngestEmptyTextRejected(t *testing.T) {
	p, _, _ := newTestPipeline(testConfig(), &flakyEmbedder{})

	_, err := p.Ingest(context.Background(), "", "empty.txt", "   \n\n ")
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestIngestSkipsFailedChunksAndIndexesRest(t *testing.T) {
	cfg := testConfig()
	emb := &flakyEmbedder{failOn: "zəhərli"}
	p, idx, _ := newTestPipeline(cfg, emb)

	// Force multiple chunks, one of which contains the failing marker.
	var b strings.Builder
	b.WriteString("Hakim: Əli Məmmədov\n\n")
	for i := 0; i < 4; i++ {
		b.WriteString(strings.Repeat("Məhkəmə iclasında ifadələr dinlənildi. ", 3))
		b.WriteString("\n\n")
	}
	b.WriteString("Bu hissə zəhərli sözü ehtiva edir və embedding alına bilməz.\n")

	report, err := p.Ingest(context.Background(), "", "partial.txt", b.String())
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if report.SkippedChunks == 0 {
		t.Fatal("expected at least one skipped chunk")
	}
	if report.IndexedChunks == 0 {
		t.Fatal("expected surviving chunks to be indexed")
	}
	if len(report.Warnings) < report.SkippedChunks {
		t.Errorf("warnings = %d, want at least %d", len(report.Warnings), report.SkippedChunks)
	}
	// The document is searchable despite the failure.
	if idx.DocCount() != 1 {
		t.Errorf("doc count = %d, want 1", idx.DocCount())
	}
	if got := len(idx.Select(nil)); got != report.IndexedChunks {
		t.Errorf("index holds %d chunks, report says %d", got, report.IndexedChunks)
	}
}

func TestIngestRetriesBeforeSkipping(t *testing.T) {
	cfg := testConfig()
	cfg.EmbedMaxAttempts = 3
	emb := &flakyEmbedder{failOn: "Məhkəmə"}
	p, _, _ := newTestPipeline(cfg, emb)

	report, err := p.Ingest(context.Background(), "", "fail.txt", "Məhkəmə qərar qəbul etdi.")
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if report.SkippedChunks != 1 {
		t.Fatalf("skipped = %d, want 1", report.SkippedChunks)
	}
	if emb.calls < 3 {
		t.Errorf("embedder called %d times, want at least 3 attempts", emb.calls)
	}
}

func TestMetadataSummaryChunkPrepended(t *testing.T) {
	cfg := testConfig()
	cfg.MetadataSummaryChunk = true
	p, idx, _ := newTestPipeline(cfg, &flakyEmbedder{})

	report, err := p.Ingest(context.Background(), "", "ruling.txt", rulingText)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	chunks := idx.Select(nil)
	if len(chunks) != report.IndexedChunks {
		t.Fatalf("index holds %d chunks, report says %d", len(chunks), report.IndexedChunks)
	}
	var summary *document.Chunk
	for i := range chunks {
		if chunks[i].Seq == 0 {
			summary = &chunks[i]
		}
	}
	if summary == nil {
		t.Fatal("no chunk with seq 0")
	}
	if !strings.Contains(summary.Text, "judge: Əli Məmmədov") {
		t.Errorf("summary chunk missing judge pair: %q", summary.Text)
	}
	if !strings.Contains(summary.Text, "year: 2023") {
		t.Errorf("summary chunk missing year pair: %q", summary.Text)
	}
}

func TestDeleteRemovesDocumentAndFacets(t *testing.T) {
	p, idx, fc := newTestPipeline(testConfig(), &flakyEmbedder{})

	_, err := p.Ingest(context.Background(), "", "ruling.txt", rulingText)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	refs := idx.Documents(nil)
	if len(refs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(refs))
	}

	if err := p.Delete(context.Background(), refs[0].DocumentID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if idx.DocCount() != 0 {
		t.Errorf("doc count after delete = %d", idx.DocCount())
	}
	if judges := fc.Values(document.FieldJudge); len(judges) != 0 {
		t.Errorf("facets not retracted: %v", judges)
	}
}

func TestDeleteUnknownDocument(t *testing.T) {
	p, _, _ := newTestPipeline(testConfig(), &flakyEmbedder{})

	err := p.Delete(context.Background(), "no-such-doc")
	if !errors.Is(err, apperrors.ErrDocumentNotFound) {
		t.Errorf("error = %v, want ErrDocumentNotFound", err)
	}
}

func TestReingestSameFilenameSupersedes(t *testing.T) {
	p, idx, fc := newTestPipeline(testConfig(), &flakyEmbedder{})

	if _, err := p.Ingest(context.Background(), "", "ruling.txt", rulingText); err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	updated := strings.Replace(rulingText, "Əli Məmmədov", "Kamran Əliyev", 1)
	if _, err := p.Ingest(context.Background(), "", "ruling.txt", updated); err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}

	if idx.DocCount() != 1 {
		t.Errorf("doc count after re-ingesting the same file = %d, want 1", idx.DocCount())
	}
	judges := fc.Values(document.FieldJudge)
	if len(judges) != 1 || judges[0] != "Kamran Əliyev" {
		t.Errorf("facet judges after supersede = %v, want only the new judge", judges)
	}
}

func TestIngestExplicitIDSupersedes(t *testing.T) {
	p, idx, _ := newTestPipeline(testConfig(), &flakyEmbedder{})

	if _, err := p.Ingest(context.Background(), "case-7", "a.txt", rulingText); err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	// Same identity under a different filename still replaces.
	if _, err := p.Ingest(context.Background(), "case-7", "b.txt", rulingText); err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}

	if idx.DocCount() != 1 {
		t.Errorf("doc count = %d, want 1", idx.DocCount())
	}
	if _, ok := idx.Metadata("case-7"); !ok {
		t.Error("document not published under the supplied id")
	}
}

// fakeStore keeps documents in a map, standing in for the postgres layer.
type fakeStore struct {
	mu   sync.Mutex
	docs map[string]*document.Document
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]*document.Document)}
}

func (s *fakeStore) Save(_ context.Context, doc *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	return nil
}

func (s *fakeStore) Get(_ context.Context, id string) (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[id], nil
}

func (s *fakeStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.docs[id]
	delete(s.docs, id)
	return ok, nil
}

func (s *fakeStore) List(_ context.Context) ([]*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := make([]*document.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *fakeStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs), nil
}

func TestDocumentAndStoredCount(t *testing.T) {
	store := newFakeStore()
	idx := index.NewVectorIndex()
	p := NewPipeline(testConfig(), &flakyEmbedder{}, idx, facets.NewCache(), store, nil, nil)

	if _, err := p.Ingest(context.Background(), "case-1", "ruling.txt", rulingText); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	doc, err := p.Document(context.Background(), "case-1")
	if err != nil {
		t.Fatalf("document lookup failed: %v", err)
	}
	if doc == nil || doc.Filename != "ruling.txt" {
		t.Fatalf("document = %+v, want the stored copy", doc)
	}

	count, err := p.StoredCount(context.Background())
	if err != nil {
		t.Fatalf("stored count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("stored count = %d, want 1", count)
	}
}

func TestStoredCountWithoutStore(t *testing.T) {
	p, _, _ := newTestPipeline(testConfig(), &flakyEmbedder{})

	if _, err := p.StoredCount(context.Background()); !errors.Is(err, apperrors.ErrStoreUnavailable) {
		t.Errorf("error = %v, want ErrStoreUnavailable", err)
	}
}
