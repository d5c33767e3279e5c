package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
)

func pdfPageCount(path string) (int, error) {
	return api.PageCountFile(path)
}

// extractPDF reads the text layer first and only rasterizes when it is blank.
func (e *Extractor) extractPDF(ctx context.Context, path string) (Result, error) {
	res := Result{SourceType: constants.SourcePDF}

	pages, err := e.pageCount(path)
	if err != nil {
		// pdfcpu is stricter than poppler; keep going and let pdftotext decide.
		res.Warnings = append(res.Warnings, "page count: "+err.Error())
		e.logger.Warn("ocr.pdf.page_count_failed", "path", path, "error", err)
	}

	text, textPages, warns, err := e.pdfToText(ctx, path)
	res.Warnings = append(res.Warnings, warns...)
	if err == nil && strings.TrimSpace(text) != "" {
		res.Text = Normalize(text)
		res.Method = MethodPDFText
		res.Pages = textPages
		if pages > 0 {
			res.Pages = pages
		}
		return res, nil
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if err != nil {
		e.logger.Warn("ocr.pdf.text_failed", "path", path, "error", err)
	} else {
		e.logger.Info("ocr.pdf.text_empty", "path", path, "hint", "rasterizing for ocr")
	}

	text, ocrPages, lang, warns, err := e.pdfToOCR(ctx, path, pages)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		return res, fmt.Errorf("pdf ocr: %w", err)
	}
	res.Text = Normalize(text)
	res.Method = MethodPDFOCR
	res.Pages = ocrPages
	res.Language = lang
	return res, nil
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, nonEmpty(string(errb)), fmt.Errorf("pdftotext: %w", err)
	}
	text = string(out)
	// pdftotext terminates every page with a form feed
	pages = strings.Count(text, "\f")
	if pages == 0 {
		pages = 1
	}
	return text, pages, nil, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path string, knownPages int) (string, int, string, []string, error) {
	tmpDir, err := os.MkdirTemp("", "inv-pp-*")
	if err != nil {
		return "", 0, "", nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.pdf.tmp_cleanup_failed", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png [-f 1 -l N] <in.pdf> <tmp/page>
	args := []string{"-r", strconv.Itoa(e.cfg.DPI), "-png"}
	if e.cfg.MaxPages > 0 {
		args = append(args, "-f", "1", "-l", strconv.Itoa(e.cfg.MaxPages))
	}
	args = append(args, path, prefix)
	if _, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, args...); err != nil {
		return "", 0, "", nonEmpty(string(errb)), fmt.Errorf("pdftoppm: %w", err)
	}

	// pdftoppm zero-pads page numbers, so lexical order is page order
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, "", []string{"pdftoppm produced no images"}, errors.New("no pages rendered")
	}

	type pageOut struct {
		text  string
		lang  string
		warns []string
		err   error
	}
	outs := make([]pageOut, len(matches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.PageWorkers)
	for i, img := range matches {
		g.Go(func() error {
			txt, lang, w, err := e.recognize(gctx, img)
			outs[i] = pageOut{text: txt, lang: lang, warns: w, err: err}
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", 0, "", nil, err
	}

	var (
		b     strings.Builder
		warns []string
		lang  string
		ok    int
	)
	for i, o := range outs {
		warns = append(warns, o.warns...)
		if o.err != nil {
			warns = append(warns, fmt.Sprintf("page %d: %v", i+1, o.err))
			continue
		}
		if lang == "" {
			lang = o.lang
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(o.text)
		ok++
	}
	if ok == 0 {
		return "", len(matches), "", dedupe(warns), errors.New("tesseract failed on every page")
	}
	pages := len(matches)
	if knownPages > pages && e.cfg.MaxPages == 0 {
		warns = append(warns, fmt.Sprintf("rendered %d of %d pages", pages, knownPages))
	}
	return b.String(), pages, lang, dedupe(warns), nil
}

func nonEmpty(s string) []string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return []string{s}
}

func dedupe(in []string) []string {
	if len(in) < 2 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
