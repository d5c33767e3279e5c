package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// convertHEIC converts a HEIC/HEIF photo to a temporary PNG tesseract can read.
// Call cleanup to remove the temp dir; it is never nil.
func (e *Extractor) convertHEIC(ctx context.Context, in string) (out string, warnings []string, cleanup func(), err error) {
	cleanup = func() {}
	tmpDir, err := os.MkdirTemp("", "inv-heic-*")
	if err != nil {
		return "", nil, cleanup, err
	}
	cleanup = func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.heic.tmp_cleanup_failed", "dir", tmpDir, "error", err)
		}
	}
	out = filepath.Join(tmpDir, "page.png")

	var args []string
	switch e.cfg.HeicConverter {
	case "heif-convert":
		args = []string{in, out}
	case "magick":
		args = []string{in, out}
	case "sips":
		args = []string{"-s", "format", "png", in, "--out", out}
	default:
		return "", nil, cleanup, fmt.Errorf("heic not supported: set ocr heic converter to one of heif-convert, magick, sips")
	}
	if _, errb, err := e.runner.Run(ctx, e.cfg.HeicConverter, args...); err != nil {
		return "", nonEmpty(string(errb)), cleanup, fmt.Errorf("%s: %w", e.cfg.HeicConverter, err)
	}
	if _, err := os.Stat(out); err != nil {
		return "", nil, cleanup, fmt.Errorf("heic conversion produced no output: %w", err)
	}
	e.logger.Debug("ocr.heic.converted", "in", in, "out", out, "converter", e.cfg.HeicConverter)
	return out, nil, cleanup, nil
}
