package ocr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
)

type call struct {
	name string
	args []string
}

// fakeRunner answers commands from a table and records what ran.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []call
	respond func(name string, args []string) ([]byte, []byte, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{name: name, args: args})
	f.mu.Unlock()
	return f.respond(name, args)
}

func (f *fakeRunner) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.name == name {
			n++
		}
	}
	return n
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestExtractor(r Runner, pages int) *Extractor {
	return NewExtractor(Config{}, quietLogger(),
		WithRunner(r),
		WithPageCounter(func(string) (int, error) { return pages, nil }),
	)
}

func TestExtractPDFTextLayer(t *testing.T) {
	r := &fakeRunner{respond: func(name string, _ []string) ([]byte, []byte, error) {
		if name == "pdftotext" {
			return []byte("ACME Trading\t\tCo.\r\nTotal:   150.00\nDue 2025-01-15\f"), nil, nil
		}
		return nil, nil, fmt.Errorf("unexpected %s", name)
	}}
	e := newTestExtractor(r, 1)

	res, err := e.Extract(context.Background(), "/tmp/invoice.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Method != MethodPDFText {
		t.Errorf("method = %q, want %q", res.Method, MethodPDFText)
	}
	if !strings.Contains(res.Text, "ACME Trading Co.") || !strings.Contains(res.Text, "2025-01-15") {
		t.Errorf("text not normalized as expected: %q", res.Text)
	}
	if r.count("pdftoppm") != 0 {
		t.Error("text layer present; rasterization should be skipped")
	}
}

func TestExtractPDFScannedFallsBackToOCR(t *testing.T) {
	r := &fakeRunner{}
	r.respond = func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "pdftotext":
			return []byte("  \f"), nil, nil
		case "pdftoppm":
			prefix := args[len(args)-1]
			for i := 1; i <= 3; i++ {
				if err := os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, i), []byte("png"), 0o600); err != nil {
					return nil, nil, err
				}
			}
			return nil, nil, nil
		case "tesseract":
			return []byte("text of " + filepath.Base(args[0])), nil, nil
		}
		return nil, nil, fmt.Errorf("unexpected %s", name)
	}
	e := newTestExtractor(r, 3)

	res, err := e.Extract(context.Background(), "/tmp/scan.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Method != MethodPDFOCR || res.Pages != 3 {
		t.Fatalf("got method=%q pages=%d", res.Method, res.Pages)
	}
	want := "text of page-1.png\n\f\ntext of page-2.png\n\f\ntext of page-3.png"
	if res.Text != want {
		t.Errorf("pages out of order:\n got %q\nwant %q", res.Text, want)
	}
	if res.Language != "ara+eng" {
		t.Errorf("language = %q", res.Language)
	}
}

func TestRecognizeLanguageFallback(t *testing.T) {
	r := &fakeRunner{respond: func(_ string, args []string) ([]byte, []byte, error) {
		if args[3] == "ara+eng" {
			return nil, []byte("Error opening data file /usr/share/tessdata/ara.traineddata\nFailed loading language 'ara'"), errors.New("exit status 1")
		}
		return []byte("Invoice 42"), nil, nil
	}}
	e := newTestExtractor(r, 1)

	res, err := e.Extract(context.Background(), "/tmp/photo.png")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Language != "eng" || res.Text != "Invoice 42" {
		t.Errorf("got lang=%q text=%q", res.Language, res.Text)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "fell back") {
		t.Errorf("expected a fallback warning, got %v", res.Warnings)
	}
}

func TestRecognizeOtherErrorsDoNotFallBack(t *testing.T) {
	r := &fakeRunner{respond: func(string, []string) ([]byte, []byte, error) {
		return nil, []byte("Error in pixReadStream: Unknown format"), errors.New("exit status 1")
	}}
	e := newTestExtractor(r, 1)

	if _, err := e.Extract(context.Background(), "/tmp/broken.jpg"); err == nil {
		t.Fatal("expected error")
	}
	if n := r.count("tesseract"); n != 1 {
		t.Errorf("tesseract ran %d times, want 1", n)
	}
}

func TestExtractUnsupported(t *testing.T) {
	e := newTestExtractor(&fakeRunner{}, 0)
	_, err := e.Extract(context.Background(), "/tmp/notes.docx")
	if !errors.Is(err, common.ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
}

func TestPageCountFailureIsOnlyAWarning(t *testing.T) {
	r := &fakeRunner{respond: func(string, []string) ([]byte, []byte, error) {
		return []byte("Invoice body"), nil, nil
	}}
	e := NewExtractor(Config{}, quietLogger(),
		WithRunner(r),
		WithPageCounter(func(string) (int, error) { return 0, errors.New("xref corrupt") }),
	)
	res, err := e.Extract(context.Background(), "/tmp/odd.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Pages != 1 || len(res.Warnings) == 0 {
		t.Errorf("pages=%d warnings=%v", res.Pages, res.Warnings)
	}
}

func TestNormalize(t *testing.T) {
	in := "Biller:  Acme\r\n-----\n\n\n\nDue: 2025-01-05   \nTotal ١٥٠"
	got := Normalize(in)
	want := "Biller: Acme\n\nDue: 2025-01-05\nTotal ١٥٠"
	if got != want {
		t.Errorf("Normalize:\n got %q\nwant %q", got, want)
	}
}
