package extract

import (
	"context"

	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/ocr"
)

// TextExtractor is stage 1: document -> text.
// It never fails; problems come back as entity.FailedExtraction diagnostics.
type TextExtractor interface {
	Extract(ctx context.Context, doc entity.DocumentHandle) entity.ExtractionResult
}

// Engine is the OCR engine behind the adapter.
type Engine interface {
	Extract(ctx context.Context, path string) (ocr.Result, error)
}
