package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
)

type memObjects map[string][]byte

func (m memObjects) Download(_ context.Context, bucket, object string, w io.Writer) error {
	b, ok := m[bucket+"/"+object]
	if !ok {
		return common.ErrNotFound
	}
	_, err := io.Copy(w, bytes.NewReader(b))
	return err
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func sum(b []byte) string {
	s := sha256.Sum256(b)
	return hex.EncodeToString(s[:])
}

func TestOpenLocal(t *testing.T) {
	dir := t.TempDir()
	body := []byte("%PDF-1.4 fake")
	path := filepath.Join(dir, "Invoice.PDF")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	i := NewIngestor(nil, testLogger())
	doc, cleanup, err := i.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cleanup()

	if doc.ID == "" || doc.Ext != "pdf" || doc.SourceType != constants.SourcePDF {
		t.Errorf("unexpected handle: %+v", doc)
	}
	if doc.SizeBytes != int64(len(body)) || doc.SHA256Hex != sum(body) {
		t.Errorf("size/hash mismatch: %+v", doc)
	}

	again, _, err := i.Open(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID == doc.ID {
		t.Error("each ingestion must get a fresh document id")
	}
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		ref  string
		want error
	}{
		{"empty", "  ", common.ErrInvalidInput},
		{"unsupported", txt, common.ErrUnsupported},
		{"missing", filepath.Join(dir, "nope.png"), common.ErrNotFound},
		{"gcs disabled", "gs://bucket/a.pdf", common.ErrInvalidInput},
	}
	i := NewIngestor(nil, testLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, cleanup, err := i.Open(context.Background(), tt.ref)
			cleanup()
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOpenGCS(t *testing.T) {
	body := []byte("\x89PNG fake")
	i := NewIngestor(memObjects{"invoices/2025/scan.png": body}, testLogger())

	doc, cleanup, err := i.Open(context.Background(), "gs://invoices/2025/scan.png")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := os.ReadFile(doc.Path)
	if err != nil {
		t.Fatalf("read local copy: %v", err)
	}
	if !bytes.Equal(got, body) || doc.SHA256Hex != sum(body) || doc.SizeBytes != int64(len(body)) {
		t.Errorf("local copy mismatch: %+v", doc)
	}
	if doc.Source != "gs://invoices/2025/scan.png" || doc.SourceType != constants.SourceImage {
		t.Errorf("unexpected handle: %+v", doc)
	}

	cleanup()
	if _, err := os.Stat(doc.Path); !os.IsNotExist(err) {
		t.Errorf("cleanup should remove the download, stat err = %v", err)
	}

	if _, c, err := i.Open(context.Background(), "gs://invoices/missing.pdf"); !errors.Is(err, common.ErrNotFound) {
		c()
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		in             string
		bucket, object string
		ok             bool
	}{
		{"gs://b/o.pdf", "b", "o.pdf", true},
		{"gs://b/dir/o.pdf", "b", "dir/o.pdf", true},
		{"gs://b", "", "", false},
		{"gs:///o.pdf", "", "", false},
		{"/tmp/o.pdf", "", "", false},
	}
	for _, tt := range tests {
		b, o, ok := ParseGCSURI(tt.in)
		if b != tt.bucket || o != tt.object || ok != tt.ok {
			t.Errorf("ParseGCSURI(%q) = %q, %q, %v", tt.in, b, o, ok)
		}
	}
}
