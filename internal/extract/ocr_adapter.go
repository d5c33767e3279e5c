package extract

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

type OCRAdapter struct {
	engine Engine
	logger *slog.Logger
}

func NewOCRAdapter(e Engine, l *slog.Logger) *OCRAdapter {
	if l == nil {
		l = slog.Default()
	}
	return &OCRAdapter{engine: e, logger: l}
}

func (a *OCRAdapter) Extract(ctx context.Context, doc entity.DocumentHandle) entity.ExtractionResult {
	r, err := a.engine.Extract(ctx, doc.Path)
	if err != nil {
		kind := classify(ctx, err)
		a.logger.Warn("extract.text.failed",
			"document_id", doc.ID,
			"kind", kind,
			"error", err,
		)
		res := entity.FailedExtraction(doc, kind, err.Error())
		res.Warnings = r.Warnings
		res.DurationMS = r.Duration.Milliseconds()
		return res
	}

	// whitespace-only text is passed through; the orchestrator decides what empty means
	return entity.ExtractionResult{
		DocumentID: doc.ID,
		RawText:    r.Text,
		SourceType: r.SourceType,
		Method:     r.Method,
		Pages:      r.Pages,
		Language:   r.Language,
		Warnings:   r.Warnings,
		DurationMS: r.Duration.Milliseconds(),
	}
}

func classify(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, common.ErrUnsupported):
		return entity.FailureUnsupported
	case common.IsTimeout(err), ctx.Err() != nil:
		return entity.FailureTimeout
	default:
		return entity.FailureUnreadable
	}
}
