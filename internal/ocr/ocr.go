package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
)

// Extraction methods reported in Result.Method.
const (
	MethodPDFText  = "pdf-text"
	MethodPDFOCR   = "pdf-ocr"
	MethodImageOCR = "image-ocr"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Languages   []string // tesseract -l values tried in order; default ara+eng, eng
	DPI         int      // rasterization DPI for scanned PDFs, default 300
	MaxPages    int      // 0 = no limit
	PageWorkers int      // concurrent tesseract processes per PDF, default 2

	TessdataDir   string
	HeicConverter string // magick | heif-convert | sips
}

type Result struct {
	Text       string
	Pages      int
	SourceType constants.SourceType
	Method     string
	Language   string
	Duration   time.Duration
	Warnings   []string
}

// PageCounter reports the number of pages in a PDF.
type PageCounter func(path string) (int, error)

type Extractor struct {
	cfg       Config
	runner    Runner
	pageCount PageCounter
	logger    *slog.Logger
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithRunner replaces the exec-backed command runner.
func WithRunner(r Runner) Option {
	return func(e *Extractor) { e.runner = r }
}

// WithPageCounter replaces the pdfcpu page counter.
func WithPageCounter(pc PageCounter) Option {
	return func(e *Extractor) { e.pageCount = pc }
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"ara+eng", "eng"}
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.PageWorkers <= 0 {
		cfg.PageWorkers = 2
	}
	e := &Extractor{cfg: cfg, runner: execRunner{logger: logger}, pageCount: pdfPageCount, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract picks a strategy based on file extension.
func (e *Extractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("ocr.extract.start", "path", path, "ext", ext)

	var (
		res Result
		err error
	)
	switch constants.MapExtToSourceType(ext) {
	case constants.SourcePDF:
		res, err = e.extractPDF(ctx, path)
	case constants.SourceImage:
		res, err = e.extractImage(ctx, path, ext)
	default:
		e.logger.Error("ocr.extract.unsupported", "path", path, "ext", ext)
		return Result{}, fmt.Errorf("%w: %q", common.ErrUnsupported, ext)
	}
	res.Duration = time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", common.ErrTimeout, err)
		}
		e.logger.Error("ocr.extract.failed", "path", path, "error", err, "elapsed_ms", res.Duration.Milliseconds())
		return res, err
	}
	e.logger.Info("ocr.extract.ok",
		"path", path,
		"method", res.Method,
		"pages", res.Pages,
		"lang", res.Language,
		"chars", len(res.Text),
		"warnings", len(res.Warnings),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
