package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/elchin-rustamov/courtsearch/pkg/kafka"
)

// AggregatedStats is the service-level usage summary served by the
// analytics endpoint.
type AggregatedStats struct {
	TotalSearches        int64        `json:"total_searches"`
	TotalDocsIngested    int64        `json:"total_docs_ingested"`
	TotalChunksIndexed   int64        `json:"total_chunks_indexed"`
	TotalChunksSkipped   int64        `json:"total_chunks_skipped"`
	CacheHits            int64        `json:"cache_hits"`
	CacheMisses          int64        `json:"cache_misses"`
	NoResultCount        int64        `json:"no_result_count"`
	ClarificationsAsked  int64        `json:"clarifications_asked"`
	ClarificationsSolved int64        `json:"clarifications_resolved"`
	BestEffortAnswers    int64        `json:"best_effort_answers"`
	AvgLatencyMs         float64      `json:"avg_latency_ms"`
	P50LatencyMs         int64        `json:"p50_latency_ms"`
	P95LatencyMs         int64        `json:"p95_latency_ms"`
	P99LatencyMs         int64        `json:"p99_latency_ms"`
	TopQueries           []QueryCount `json:"top_queries"`
	NoResultQueries      []QueryCount `json:"no_result_queries"`
	QueriesPerMinute     float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator consumes usage events from Kafka and keeps running totals.
type Aggregator struct {
	mu              sync.RWMutex
	totalSearches   atomic.Int64
	totalDocs       atomic.Int64
	totalChunks     atomic.Int64
	skippedChunks   atomic.Int64
	cacheHits       atomic.Int64
	cacheMisses     atomic.Int64
	noResults       atomic.Int64
	asked           atomic.Int64
	resolved        atomic.Int64
	bestEffort      atomic.Int64
	latencies       []int64
	queryCounts     map[string]int64
	noResultQueries map[string]int64
	startTime       time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	return &Aggregator{
		latencies:       make([]int64, 0, 10000),
		queryCounts:     make(map[string]int64),
		noResultQueries: make(map[string]int64),
		startTime:       time.Now(),
		consumer:        consumer,
		logger:          slog.Default().With("component", "analytics-aggregator"),
	}
}

// AttachConsumer wires the Kafka consumer after construction. The consumer
// needs the aggregator's handler, so the two cannot be built in one step.
func (a *Aggregator) AttachConsumer(consumer *kafka.Consumer) {
	a.consumer = consumer
}

// Start enters the consume loop until ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context) error {
	a.logger.Info("analytics aggregator starting")
	return a.consumer.Start(ctx)
}

// HandleEvent dispatches a raw Kafka message to the right recorder. Events
// are distinguished by their characteristic field, so an unknown payload is
// logged and dropped instead of being miscounted.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(value, &probe); err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		switch {
		case hasField(probe, "query"):
			event, err := kafka.DecodeJSON[SearchEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode search event", "error", err)
				return nil
			}
			agg.recordSearchEvent(event)
		case hasField(probe, "document_id"):
			event, err := kafka.DecodeJSON[IndexEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode index event", "error", err)
				return nil
			}
			agg.recordIndexEvent(event)
		case hasField(probe, "session_id"):
			event, err := kafka.DecodeJSON[ClarificationEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode clarification event", "error", err)
				return nil
			}
			agg.recordClarificationEvent(event)
		default:
			agg.logger.Warn("unrecognised analytics event dropped")
		}
		return nil
	}
}

func hasField(probe map[string]json.RawMessage, name string) bool {
	_, ok := probe[name]
	return ok
}

func (a *Aggregator) recordSearchEvent(event SearchEvent) {
	a.totalSearches.Add(1)
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if event.TotalHits == 0 {
		a.noResults.Add(1)
	}

	a.mu.Lock()
	a.latencies = append(a.latencies, event.LatencyMs)
	if event.Query != "" {
		a.queryCounts[event.Query]++
		if event.TotalHits == 0 {
			a.noResultQueries[event.Query]++
		}
	}
	a.mu.Unlock()
}

func (a *Aggregator) recordIndexEvent(event IndexEvent) {
	a.totalDocs.Add(1)
	a.totalChunks.Add(int64(event.IndexedChunks))
	a.skippedChunks.Add(int64(event.SkippedChunks))
}

func (a *Aggregator) recordClarificationEvent(event ClarificationEvent) {
	switch event.Resolution {
	case "asked":
		a.asked.Add(1)
	case "resolved":
		a.resolved.Add(1)
	case "best_effort":
		a.bestEffort.Add(1)
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:        a.totalSearches.Load(),
		TotalDocsIngested:    a.totalDocs.Load(),
		TotalChunksIndexed:   a.totalChunks.Load(),
		TotalChunksSkipped:   a.skippedChunks.Load(),
		CacheHits:            a.cacheHits.Load(),
		CacheMisses:          a.cacheMisses.Load(),
		NoResultCount:        a.noResults.Load(),
		ClarificationsAsked:  a.asked.Load(),
		ClarificationsSolved: a.resolved.Load(),
		BestEffortAnswers:    a.bestEffort.Load(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.NoResultQueries = topN(a.noResultQueries, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
