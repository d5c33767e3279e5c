package entity

import (
	"strings"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
)

// DocumentHandle references one document for the lifetime of a run.
type DocumentHandle struct {
	ID         string               `json:"document_id"`
	Path       string               `json:"file_path"`
	Source     string               `json:"source,omitempty"` // original reference, e.g. gs://bucket/key
	Ext        string               `json:"file_ext"`
	SourceType constants.SourceType `json:"source_type"`
	SizeBytes  int64                `json:"size_bytes"`
	SHA256Hex  string               `json:"sha256"`
}

// ExtractionFailureMarker prefixes raw_text when no text could be produced.
const ExtractionFailureMarker = "[extraction failed] "

// Failure kinds reported alongside a failed extraction.
const (
	FailureUnreadable  = "unreadable"
	FailureUnsupported = "unsupported"
	FailureTimeout     = "timeout"
	FailureNoText      = "no_text"
)

// ExtractionResult is the text extractor output.
type ExtractionResult struct {
	DocumentID  string               `json:"document_id"`
	RawText     string               `json:"raw_text"`
	SourceType  constants.SourceType `json:"source_type"`
	Method      string               `json:"method,omitempty"`
	Pages       int                  `json:"pages,omitempty"`
	Language    string               `json:"language,omitempty"`
	Warnings    []string             `json:"warnings,omitempty"`
	DurationMS  int64                `json:"duration_ms,omitempty"`
	FailureKind string               `json:"failure_kind,omitempty"`
}

// FailedExtraction builds the diagnostic result for a document that yielded nothing.
func FailedExtraction(h DocumentHandle, kind, detail string) ExtractionResult {
	return ExtractionResult{
		DocumentID:  h.ID,
		RawText:     ExtractionFailureMarker + detail,
		SourceType:  h.SourceType,
		FailureKind: kind,
	}
}

// Failed reports whether RawText is a failure diagnostic.
func (r ExtractionResult) Failed() bool {
	return strings.HasPrefix(r.RawText, ExtractionFailureMarker)
}

// Usable reports whether RawText carries real document text.
func (r ExtractionResult) Usable() bool {
	return !r.Failed() && strings.TrimSpace(r.RawText) != ""
}
