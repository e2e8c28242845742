// Package document defines the core data model shared by the ingestion
// pipeline and the query engine: documents, metadata records, chunks, and
// ingestion reports.
package document

import (
	"fmt"
	"time"
)

// Unknown is the explicit marker for a metadata field that could not be
// extracted. It is never an empty string so that absence stays
// distinguishable from a blank value.
const Unknown = "unknown"

// Metadata field names. These double as facet keys and filter parameter
// names at the HTTP boundary.
const (
	FieldCourtName    = "court_name"
	FieldCaseNumber   = "case_number"
	FieldJudge        = "judge"
	FieldClerk        = "clerk"
	FieldCaseType     = "case_type"
	FieldDistrict     = "district"
	FieldDecisionType = "decision_type"
	FieldYear         = "year"
	FieldDecisionDate = "decision_date"
)

// FacetFields lists the fields whose distinct values are exposed for
// filter-style browsing.
var FacetFields = []string{
	FieldCourtName,
	FieldJudge,
	FieldCaseType,
	FieldDistrict,
	FieldDecisionType,
	FieldYear,
}

// DecisionTypes is the closed set of ruling categories found in Azerbaijani
// court acts.
var DecisionTypes = []string{"QƏTNAMƏ", "QƏRARNAMƏ", "QƏRAR"}

// MetadataRecord holds the structured case attributes extracted from a
// ruling. Every scalar field is either a value or Unknown.
type MetadataRecord struct {
	CourtName    string   `json:"court_name"`
	CaseNumber   string   `json:"case_number"`
	Judge        string   `json:"judge"`
	Clerk        string   `json:"clerk"`
	CaseType     string   `json:"case_type"`
	District     string   `json:"district"`
	DecisionType string   `json:"decision_type"`
	Year         string   `json:"year"`
	DecisionDate string   `json:"decision_date"`
	Parties      []string `json:"parties,omitempty"`

	// PartiallyAmbiguous is set when cross-field validation found an
	// inconsistency (for example year disagreeing with the decision date).
	// Ranking deprioritizes such records; they are never rejected.
	PartiallyAmbiguous bool `json:"partially_ambiguous,omitempty"`
}

// NewMetadataRecord returns a record with every field set to Unknown.
func NewMetadataRecord() MetadataRecord {
	return MetadataRecord{
		CourtName:    Unknown,
		CaseNumber:   Unknown,
		Judge:        Unknown,
		Clerk:        Unknown,
		CaseType:     Unknown,
		District:     Unknown,
		DecisionType: Unknown,
		Year:         Unknown,
		DecisionDate: Unknown,
	}
}

// Value returns the record's value for a named field, or Unknown for an
// unrecognized field name.
func (m MetadataRecord) Value(field string) string {
	switch field {
	case FieldCourtName:
		return m.CourtName
	case FieldCaseNumber:
		return m.CaseNumber
	case FieldJudge:
		return m.Judge
	case FieldClerk:
		return m.Clerk
	case FieldCaseType:
		return m.CaseType
	case FieldDistrict:
		return m.District
	case FieldDecisionType:
		return m.DecisionType
	case FieldYear:
		return m.Year
	case FieldDecisionDate:
		return m.DecisionDate
	default:
		return Unknown
	}
}

// SetValue assigns a named field. Unrecognized field names are ignored.
func (m *MetadataRecord) SetValue(field, value string) {
	switch field {
	case FieldCourtName:
		m.CourtName = value
	case FieldCaseNumber:
		m.CaseNumber = value
	case FieldJudge:
		m.Judge = value
	case FieldClerk:
		m.Clerk = value
	case FieldCaseType:
		m.CaseType = value
	case FieldDistrict:
		m.District = value
	case FieldDecisionType:
		m.DecisionType = value
	case FieldYear:
		m.Year = value
	case FieldDecisionDate:
		m.DecisionDate = value
	}
}

// Known reports whether the named field carries an extracted value.
func (m MetadataRecord) Known(field string) bool {
	return m.Value(field) != Unknown
}

// Document is a single ingested ruling. Immutable once ingested except for
// metadata corrections, which require re-indexing its chunks.
type Document struct {
	ID         string         `json:"id"`
	Filename   string         `json:"filename"`
	RawText    string         `json:"-"`
	Text       string         `json:"-"`
	Metadata   MetadataRecord `json:"metadata"`
	IngestedAt time.Time      `json:"ingested_at"`
}

// Chunk is a bounded slice of a document's normalized text, the unit of
// semantic indexing. The metadata snapshot is denormalized onto the chunk so
// filtering needs no join back to the document store.
type Chunk struct {
	DocumentID string         `json:"document_id"`
	Seq        int            `json:"seq"`
	Text       string         `json:"text"`
	Embedding  []float64      `json:"-"`
	Metadata   MetadataRecord `json:"metadata"`
}

// ID returns the chunk's stable identifier, composed of the owning document
// id and the sequence index.
func (c Chunk) ID() string {
	return fmt.Sprintf("%s_%d", c.DocumentID, c.Seq)
}

// IngestReport summarizes one ingestion: how many chunks were embedded and
// published, how many were skipped after exhausting embedding retries, and
// any warnings collected along the way.
type IngestReport struct {
	DocumentID    string   `json:"document_id"`
	IndexedChunks int      `json:"indexed_chunks"`
	SkippedChunks int      `json:"skipped_chunks"`
	Warnings      []string `json:"warnings,omitempty"`
}
