package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
)

func (e *Extractor) extractImage(ctx context.Context, path, ext string) (Result, error) {
	res := Result{SourceType: constants.SourceImage, Pages: 1}

	img := path
	if constants.IsHEICExt(ext) {
		out, warns, cleanup, err := e.convertHEIC(ctx, path)
		defer cleanup()
		res.Warnings = append(res.Warnings, warns...)
		if err != nil {
			return res, err
		}
		img = out
	}

	txt, lang, warns, err := e.recognize(ctx, img)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		return res, err
	}
	res.Text = Normalize(txt)
	res.Method = MethodImageOCR
	res.Language = lang
	return res, nil
}

// recognize runs tesseract over one image, walking the language chain while
// the failure looks like a missing language pack.
func (e *Extractor) recognize(ctx context.Context, img string) (text, lang string, warnings []string, err error) {
	var lastErr error
	for i, l := range e.cfg.Languages {
		// tesseract <file> stdout -l <lang> [--tessdata-dir DIR]
		args := []string{img, "stdout", "-l", l}
		if e.cfg.TessdataDir != "" {
			args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
		}
		out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
		if err == nil {
			return reBoxNoise.ReplaceAllString(string(out), ""), l, warnings, nil
		}
		lastErr = fmt.Errorf("tesseract -l %s: %w", l, err)
		if ctx.Err() != nil {
			return "", "", warnings, ctx.Err()
		}
		if !isLanguageError(string(errb)) || i == len(e.cfg.Languages)-1 {
			return "", "", append(warnings, nonEmpty(string(errb))...), lastErr
		}
		next := e.cfg.Languages[i+1]
		warnings = append(warnings, fmt.Sprintf("language pack %q unavailable, fell back to %q", l, next))
		e.logger.Warn("ocr.tesseract.lang_fallback", "from", l, "to", next)
	}
	if lastErr == nil {
		lastErr = errors.New("no tesseract languages configured")
	}
	return "", "", warnings, lastErr
}

func isLanguageError(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "traineddata") ||
		strings.Contains(s, "failed loading language") ||
		strings.Contains(s, "data file")
}
