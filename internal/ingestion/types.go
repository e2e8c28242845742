// Package ingestion defines the request types accepted by the document
// ingestion endpoint.
package ingestion

// IngestRequest carries one court ruling to index. Text is the raw OCR
// output; cleanup happens inside the pipeline. DocumentID is optional:
// resubmitting under the same id (or, when absent, the same filename)
// supersedes the earlier version.
type IngestRequest struct {
	DocumentID string `json:"document_id,omitempty"`
	Filename   string `json:"filename"`
	Text       string `json:"text"`
}
