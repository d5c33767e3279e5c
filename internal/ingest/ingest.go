package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// ObjectSource fetches remote documents.
type ObjectSource interface {
	Download(ctx context.Context, bucket, object string, w io.Writer) error
}

// Ingestor turns a document reference into a DocumentHandle with a fresh id.
type Ingestor struct {
	objects ObjectSource
	logger  *slog.Logger
}

// NewIngestor returns an Ingestor. objects may be nil, in which case gs://
// references are rejected.
func NewIngestor(objects ObjectSource, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{objects: objects, logger: logger}
}

// Open resolves ref (a local path or gs://bucket/object) to a readable local
// file. The returned cleanup is never nil and must be called once the run no
// longer needs the file.
func (i *Ingestor) Open(ctx context.Context, ref string) (entity.DocumentHandle, func(), error) {
	noop := func() {}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return entity.DocumentHandle{}, noop, fmt.Errorf("%w: document path is required", common.ErrInvalidInput)
	}

	ext := constants.NormalizeExt(filepath.Ext(ref))
	if !AllowedExt(ext) {
		return entity.DocumentHandle{}, noop, fmt.Errorf("%w: unsupported or missing extension %q", common.ErrUnsupported, ext)
	}

	if bucket, object, ok := ParseGCSURI(ref); ok {
		return i.openRemote(ctx, ref, bucket, object, ext)
	}

	abs, err := filepath.Abs(ref)
	if err != nil {
		return entity.DocumentHandle{}, noop, err
	}
	f, err := os.Open(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return entity.DocumentHandle{}, noop, fmt.Errorf("%w: %s", common.ErrNotFound, abs)
		}
		return entity.DocumentHandle{}, noop, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			i.logger.Warn("ingest.close_failed", "path", abs, "error", err)
		}
	}()
	st, err := f.Stat()
	if err != nil {
		return entity.DocumentHandle{}, noop, err
	}
	if st.IsDir() {
		return entity.DocumentHandle{}, noop, fmt.Errorf("%w: %s is a directory", common.ErrInvalidInput, abs)
	}

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return entity.DocumentHandle{}, noop, fmt.Errorf("hash: %w", err)
	}

	doc := newHandle(abs, "", ext, n, h.Sum(nil))
	i.logger.Info("ingest.local.ok", "document_id", doc.ID, "path", abs, "size_bytes", n)
	return doc, noop, nil
}

func (i *Ingestor) openRemote(ctx context.Context, ref, bucket, object, ext string) (entity.DocumentHandle, func(), error) {
	noop := func() {}
	if i.objects == nil {
		return entity.DocumentHandle{}, noop, fmt.Errorf("%w: gs:// sources are disabled (set GCS_ENABLED)", common.ErrInvalidInput)
	}

	tmpDir, err := os.MkdirTemp("", "inv-gcs-*")
	if err != nil {
		return entity.DocumentHandle{}, noop, err
	}
	cleanup := func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			i.logger.Warn("ingest.gcs.tmp_cleanup_failed", "dir", tmpDir, "error", err)
		}
	}
	local := filepath.Join(tmpDir, "document."+ext)
	f, err := os.Create(local)
	if err != nil {
		cleanup()
		return entity.DocumentHandle{}, noop, err
	}

	h := sha256.New()
	cw := &countingWriter{w: io.MultiWriter(f, h)}
	err = i.objects.Download(ctx, bucket, object, cw)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return entity.DocumentHandle{}, noop, fmt.Errorf("download %s: %w", ref, err)
	}

	doc := newHandle(local, ref, ext, cw.n, h.Sum(nil))
	i.logger.Info("ingest.gcs.ok", "document_id", doc.ID, "source", ref, "size_bytes", cw.n)
	return doc, cleanup, nil
}

func newHandle(path, source, ext string, size int64, sum []byte) entity.DocumentHandle {
	return entity.DocumentHandle{
		ID:         uuid.NewString(),
		Path:       path,
		Source:     source,
		Ext:        ext,
		SourceType: constants.MapExtToSourceType(ext),
		SizeBytes:  size,
		SHA256Hex:  hex.EncodeToString(sum),
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// AllowedExt checks if a file extension is in the accepted set.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// ParseGCSURI splits gs://bucket/object.
func ParseGCSURI(ref string) (bucket, object string, ok bool) {
	rest, found := strings.CutPrefix(ref, "gs://")
	if !found {
		return "", "", false
	}
	bucket, object, found = strings.Cut(rest, "/")
	if !found || bucket == "" || object == "" {
		return "", "", false
	}
	return bucket, object, true
}
