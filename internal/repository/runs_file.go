package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// FileRunStore writes each run to <dir>/<run_id>.json so another process,
// or this one after a restart, can resume it.
type FileRunStore struct {
	dir    string
	logger *slog.Logger
}

func NewFileRunStore(dir string, logger *slog.Logger) (*FileRunStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	return &FileRunStore{dir: dir, logger: logger}, nil
}

func (s *FileRunStore) path(runID string) (string, error) {
	// run ids are uuids; anything else could escape the directory
	if _, err := uuid.Parse(runID); err != nil {
		return "", fmt.Errorf("%w: invalid run id %q", common.ErrInvalidInput, runID)
	}
	return filepath.Join(s.dir, runID+".json"), nil
}

func (s *FileRunStore) Save(_ context.Context, run *entity.Run) error {
	if run == nil {
		return errors.New("save run: nil run")
	}
	p, err := s.path(run.ID)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	if err := writeFileAtomic(p, b, 0o644); err != nil {
		return err
	}
	s.logger.Debug("runs.file.saved", "run_id", run.ID, "state", run.State)
	return nil
}

func (s *FileRunStore) Get(_ context.Context, runID string) (*entity.Run, error) {
	p, err := s.path(runID)
	if err != nil {
		return nil, err
	}
	return readRun(p, runID)
}

func (s *FileRunStore) List(_ context.Context) ([]*entity.Run, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, err
	}
	out := make([]*entity.Run, 0, len(matches))
	for _, m := range matches {
		id := strings.TrimSuffix(filepath.Base(m), ".json")
		r, err := readRun(m, id)
		if err != nil {
			s.logger.Warn("runs.file.skip_unreadable", "path", m, "error", err)
			continue
		}
		out = append(out, r)
	}
	sortRuns(out)
	return out, nil
}

func readRun(path, runID string) (*entity.Run, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: run %s", errNotFound, runID)
		}
		return nil, err
	}
	var r entity.Run
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &r, nil
}
