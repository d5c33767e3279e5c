package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// Extractor walks an ordered list of backends. It moves to the next backend
// only when the failure class is in the fallback set.
type Extractor struct {
	backends   []Backend
	fallbackOn map[Class]bool
	logger     *slog.Logger
}

func NewExtractor(backends []Backend, fallbackOn []string, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		backends:   backends,
		fallbackOn: ParseClasses(fallbackOn),
		logger:     logger,
	}
}

// Backends lists backend names in call order.
func (e *Extractor) Backends() []string {
	names := make([]string, len(e.backends))
	for i, b := range e.backends {
		names[i] = b.Name()
	}
	return names
}

// Extract never fails: when no backend yields fields the result has every
// field null and Error set.
func (e *Extractor) Extract(ctx context.Context, rawText string) entity.Fields {
	rid := uuid.NewString()
	logger := e.logger.With("run_id", common.RunIDFromContext(ctx))
	if len(e.backends) == 0 {
		logger.Error("llm.extract.no_backends", "req_id", rid)
		return entity.FailedFields("no extraction backend configured")
	}

	prompt := BuildExtractionPrompt(rawText)
	var (
		lastErr   error
		lastClass Class
		attempted int
	)
	for _, b := range e.backends {
		attempted++
		start := time.Now()
		logger.Info("llm.extract.start", "req_id", rid, "backend", b.Name(), "text_len", len(rawText))

		content, err := b.Complete(ctx, ExtractionSystemMessage, prompt)
		if err == nil {
			f, dropped, perr := ParseFields(content)
			if perr == nil {
				if len(dropped) > 0 {
					logger.Warn("llm.extract.normalized", "req_id", rid, "backend", b.Name(), "dropped", dropped)
				}
				logger.Info("llm.extract.ok",
					"req_id", rid,
					"backend", b.Name(),
					"has_biller", f.BillerName != nil,
					"has_total", f.TotalAmount != nil,
					"elapsed_ms", time.Since(start).Milliseconds(),
				)
				return f
			}
			err = &BackendError{Backend: b.Name(), Err: perr}
		}

		lastErr, lastClass = err, Classify(err)
		logger.Warn("llm.extract.backend_failed",
			"req_id", rid,
			"backend", b.Name(),
			"class", lastClass,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		if !e.fallbackOn[lastClass] || ctx.Err() != nil {
			break
		}
	}

	msg := failureMessage(lastErr, lastClass, attempted)
	logger.Error("llm.extract.failed", "req_id", rid, "attempted", attempted, "class", lastClass, "error", msg)
	return entity.FailedFields(msg)
}

func failureMessage(err error, class Class, attempted int) string {
	switch {
	case class == ClassMalformed:
		return "Failed to parse JSON response"
	case attempted > 1:
		return "Fallback failed: " + err.Error()
	default:
		return err.Error()
	}
}
