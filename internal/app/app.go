// Package app wires configuration into a ready-to-use pipeline. Both the
// daemon and the CLI build their dependencies here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/export"
	"github.com/joseph-ayodele/invoice-pipeline/internal/extract"
	"github.com/joseph-ayodele/invoice-pipeline/internal/ingest"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm/openai"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm/vertex"
	"github.com/joseph-ayodele/invoice-pipeline/internal/ocr"
	"github.com/joseph-ayodele/invoice-pipeline/internal/pipeline"
	"github.com/joseph-ayodele/invoice-pipeline/internal/repository"
)

type App struct {
	Config   *common.Config
	Logger   *slog.Logger
	OCR      *ocr.Extractor
	Fields   *llm.Extractor
	Sink     repository.InvoiceSink
	Runs     repository.RunStore
	Pipeline *pipeline.Orchestrator
	Exporter *export.Service

	closers []func() error
}

// New builds every dependency. On error, whatever was opened is closed.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (a *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	a.Sink, err = OpenSink(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Sink.Close)

	a.Runs, err = OpenRunStore(cfg.Runs, logger)
	if err != nil {
		return nil, err
	}

	var objects ingest.ObjectSource
	if cfg.GCS.Enabled {
		gcs, err := ingest.NewGCSSource(ctx, cfg.GCS.CredentialsFile)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, gcs.Close)
		objects = gcs
	}

	a.OCR = NewOCR(cfg.OCR, logger)

	backends, err := a.backends(ctx)
	if err != nil {
		return nil, err
	}
	a.Fields = llm.NewExtractor(backends, cfg.LLM.FallbackOn, logger)

	a.Pipeline = pipeline.New(
		ingest.NewIngestor(objects, logger),
		extract.NewOCRAdapter(a.OCR, logger),
		a.Fields,
		a.Sink,
		a.Runs,
		pipeline.Config{StageTimeout: cfg.Pipeline.StageTimeout},
		logger,
	)
	a.Exporter = export.NewService(a.Sink, logger)

	logger.Info("app.ready",
		"store", cfg.Store.Driver,
		"runs", cfg.Runs.Backend,
		"backends", a.Fields.Backends(),
		"gcs", cfg.GCS.Enabled,
	)
	return a, nil
}

// backends lists the OpenAI-compatible models first, then Gemini when configured.
func (a *App) backends(ctx context.Context) ([]llm.Backend, error) {
	cfg := a.Config
	var out []llm.Backend
	if cfg.LLM.APIKey != "" {
		out = append(out, openai.NewBackends(cfg.LLM, a.Logger)...)
	}
	vb, err := vertex.New(ctx, cfg.Vertex, cfg.LLM.Temperature, cfg.LLM.MaxTokens, a.Logger)
	if err != nil {
		return nil, err
	}
	if vb != nil {
		a.closers = append(a.closers, vb.Close)
		out = append(out, vb)
	}
	if len(out) == 0 {
		return nil, common.NewAppError("CONFIG_ERROR", "no extraction backend configured", common.ErrInvalidInput)
	}
	return out, nil
}

// Close releases everything New opened, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenSink opens the configured persistence sink.
func OpenSink(ctx context.Context, cfg common.StoreConfig, logger *slog.Logger) (repository.InvoiceSink, error) {
	switch cfg.Driver {
	case "json":
		return repository.NewJSONStore(cfg.Path, logger), nil
	case "sqlite", "postgres":
		db, err := repository.Open(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		s, err := repository.NewSQLStore(ctx, db, logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", common.ErrInvalidInput, cfg.Driver)
	}
}

// OpenRunStore opens the configured store for paused runs.
func OpenRunStore(cfg common.RunsConfig, logger *slog.Logger) (repository.RunStore, error) {
	switch cfg.Backend {
	case "memory":
		return repository.NewMemoryRunStore(), nil
	case "file":
		return repository.NewFileRunStore(cfg.Dir, logger)
	default:
		return nil, fmt.Errorf("%w: unknown run store %q", common.ErrInvalidInput, cfg.Backend)
	}
}

// NewOCR maps the OCR config onto the extractor.
func NewOCR(cfg common.OCRConfig, logger *slog.Logger) *ocr.Extractor {
	return ocr.NewExtractor(ocr.Config{
		Pdftotext:     cfg.Pdftotext,
		Pdftoppm:      cfg.Pdftoppm,
		Tesseract:     cfg.Tesseract,
		Languages:     cfg.Languages,
		DPI:           cfg.DPI,
		MaxPages:      cfg.MaxPages,
		PageWorkers:   cfg.PageWorkers,
		TessdataDir:   cfg.TessdataDir,
		HeicConverter: cfg.HeicConverter,
	}, logger)
}
