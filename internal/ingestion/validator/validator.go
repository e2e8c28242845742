// Package validator provides input validation for ingestion requests. It
// enforces filename and text length constraints and returns per-field error
// details.
package validator

import (
	"fmt"
	"strings"

	"github.com/elchin-rustamov/courtsearch/internal/ingestion"
)

const (
	maxDocumentIDLength = 128
	maxFilenameLength   = 255
	maxTextLength       = 2 << 20
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// ValidateIngestRequest checks the filename and text of the request and
// returns a ValidationError describing every violated constraint.
func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)

	if id := strings.TrimSpace(req.DocumentID); len(id) > maxDocumentIDLength {
		errs["document_id"] = fmt.Sprintf("document_id must be at most %d characters", maxDocumentIDLength)
	} else if strings.ContainsAny(id, " \t\n") {
		errs["document_id"] = "document_id must not contain whitespace"
	}

	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		errs["filename"] = "filename is required"
	} else if len(filename) > maxFilenameLength {
		errs["filename"] = fmt.Sprintf("filename must be at most %d characters", maxFilenameLength)
	} else if strings.ContainsAny(filename, "/\\") {
		errs["filename"] = "filename must not contain path separators"
	}

	if strings.TrimSpace(req.Text) == "" {
		errs["text"] = "text is required and must not be empty"
	} else if len(req.Text) > maxTextLength {
		errs["text"] = fmt.Sprintf("text must be at most %d bytes", maxTextLength)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
