package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

var errNotFound = common.ErrNotFound

// JSONStore keeps every invoice in one JSON array file.
type JSONStore struct {
	mu     sync.Mutex
	path   string
	now    func() time.Time
	write  func(path string, data []byte, perm os.FileMode) error
	logger *slog.Logger
}

func NewJSONStore(path string, logger *slog.Logger) *JSONStore {
	if path == "" {
		path = constants.DefaultStorePath
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONStore{path: path, now: time.Now, write: writeFileAtomic, logger: logger}
}

func (s *JSONStore) Store(_ context.Context, fields entity.Fields) entity.WriteResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load()
	if err != nil {
		s.logger.Error("store.json.load_failed", "path", s.path, "error", err)
		return writeFailed(err)
	}

	fields.Error = ""
	rec := entity.StoredInvoice{
		ID:        int64(len(recs)) + 1,
		Fields:    fields,
		CreatedAt: s.now().UTC().Truncate(time.Second),
		Status:    constants.InvoiceStatusStored,
	}
	recs = append(recs, rec)

	b, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return writeFailed(err)
	}
	if err := s.write(s.path, b, 0o644); err != nil {
		s.logger.Error("store.json.write_failed", "path", s.path, "error", err)
		return writeFailed(err)
	}

	s.logger.Info("store.json.write_ok", "path", s.path, "invoice_id", rec.ID)
	return writeOK(rec.ID)
}

func (s *JSONStore) List(_ context.Context) ([]entity.StoredInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs, err := s.load()
	if err != nil {
		return nil, dbError("list invoices", err)
	}
	return recs, nil
}

func (s *JSONStore) Get(_ context.Context, id int64) (entity.StoredInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs, err := s.load()
	if err != nil {
		return entity.StoredInvoice{}, dbError("get invoice", err)
	}
	for _, r := range recs {
		if r.ID == id {
			return r, nil
		}
	}
	return entity.StoredInvoice{}, notFound(id)
}

func (s *JSONStore) Close() error { return nil }

// load treats a missing or empty file as no records. A file that does not
// decode is an error so it is never overwritten.
func (s *JSONStore) load() ([]entity.StoredInvoice, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []entity.StoredInvoice{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return []entity.StoredInvoice{}, nil
	}
	var recs []entity.StoredInvoice
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return recs, nil
}
