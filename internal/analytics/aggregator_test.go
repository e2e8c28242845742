package analytics

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func dispatch(t *testing.T, agg *Aggregator, event any) {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	if err := HandleEvent(agg)(context.Background(), nil, data); err != nil {
		t.Fatalf("handle event: %v", err)
	}
}

func TestEventDispatchByShape(t *testing.T) {
	agg := NewAggregator(nil)

	dispatch(t, agg, SearchEvent{Query: "kamranın qərarları", TotalHits: 3, LatencyMs: 12, Timestamp: time.Now()})
	dispatch(t, agg, SearchEvent{Query: "tapılmayan sorğu", TotalHits: 0, LatencyMs: 8, CacheHit: true, Timestamp: time.Now()})
	dispatch(t, agg, IndexEvent{DocumentID: "doc-1", IndexedChunks: 4, SkippedChunks: 1, Timestamp: time.Now()})
	dispatch(t, agg, ClarificationEvent{SessionID: "s1", Field: "judge", Resolution: "asked", Timestamp: time.Now()})
	dispatch(t, agg, ClarificationEvent{SessionID: "s1", Field: "judge", Resolution: "resolved", Timestamp: time.Now()})

	stats := agg.Stats()
	if stats.TotalSearches != 2 {
		t.Errorf("total searches = %d, want 2", stats.TotalSearches)
	}
	if stats.TotalDocsIngested != 1 {
		t.Errorf("docs ingested = %d, want 1", stats.TotalDocsIngested)
	}
	if stats.TotalChunksIndexed != 4 || stats.TotalChunksSkipped != 1 {
		t.Errorf("chunks = %d/%d, want 4/1", stats.TotalChunksIndexed, stats.TotalChunksSkipped)
	}
	if stats.NoResultCount != 1 {
		t.Errorf("no-result count = %d, want 1", stats.NoResultCount)
	}
	if stats.CacheHits != 1 || stats.CacheMisses != 1 {
		t.Errorf("cache = %d/%d, want 1/1", stats.CacheHits, stats.CacheMisses)
	}
	if stats.ClarificationsAsked != 1 || stats.ClarificationsSolved != 1 {
		t.Errorf("clarifications = %d asked / %d resolved", stats.ClarificationsAsked, stats.ClarificationsSolved)
	}
}

func TestUnknownEventDropped(t *testing.T) {
	agg := NewAggregator(nil)
	if err := HandleEvent(agg)(context.Background(), nil, []byte(`{"weird":1}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats := agg.Stats(); stats.TotalSearches != 0 || stats.TotalDocsIngested != 0 {
		t.Errorf("unknown event was counted: %+v", stats)
	}
}

func TestNoResultQueriesRanked(t *testing.T) {
	agg := NewAggregator(nil)
	for i := 0; i < 3; i++ {
		dispatch(t, agg, SearchEvent{Query: "boş sorğu", TotalHits: 0, Timestamp: time.Now()})
	}
	dispatch(t, agg, SearchEvent{Query: "tək sorğu", TotalHits: 0, Timestamp: time.Now()})

	stats := agg.Stats()
	if len(stats.NoResultQueries) != 2 {
		t.Fatalf("no-result queries = %d, want 2", len(stats.NoResultQueries))
	}
	if stats.NoResultQueries[0].Query != "boş sorğu" || stats.NoResultQueries[0].Count != 3 {
		t.Errorf("top no-result query = %+v", stats.NoResultQueries[0])
	}
}
