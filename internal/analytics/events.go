// Package analytics collects usage events from the ingestion pipeline and
// the query engine, publishes them to Kafka, and aggregates them into
// service-level statistics.
package analytics

import "time"

// SearchEvent is emitted for every executed search, including ones that
// ended with no relevant results.
type SearchEvent struct {
	Query     string            `json:"query"`
	Filters   map[string]string `json:"filters,omitempty"`
	Outcome   string            `json:"outcome"`
	TotalHits int               `json:"total_hits"`
	LatencyMs int64             `json:"latency_ms"`
	CacheHit  bool              `json:"cache_hit"`
	Timestamp time.Time         `json:"timestamp"`
}

// IndexEvent is emitted after a document ingestion finishes, successful or
// degraded.
type IndexEvent struct {
	DocumentID    string    `json:"document_id"`
	Filename      string    `json:"filename"`
	IndexedChunks int       `json:"indexed_chunks"`
	SkippedChunks int       `json:"skipped_chunks"`
	LatencyMs     int64     `json:"latency_ms"`
	Timestamp     time.Time `json:"timestamp"`
}

// ClarificationEvent is emitted when the dialogue controller asks for or
// resolves a clarification.
type ClarificationEvent struct {
	SessionID  string    `json:"session_id"`
	Field      string    `json:"field"`
	Candidates int       `json:"candidates"`
	Resolution string    `json:"resolution"`
	Timestamp  time.Time `json:"timestamp"`
}
