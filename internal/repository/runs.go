package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// RunStore holds pipeline runs between pause and resume.
type RunStore interface {
	Save(ctx context.Context, run *entity.Run) error
	Get(ctx context.Context, runID string) (*entity.Run, error)
	List(ctx context.Context) ([]*entity.Run, error)
}

// MemoryRunStore keeps runs for the life of the process.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]*entity.Run
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]*entity.Run)}
}

func (s *MemoryRunStore) Save(_ context.Context, run *entity.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("save run: missing run id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run.Clone()
	return nil
}

func (s *MemoryRunStore) Get(_ context.Context, runID string) (*entity.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: run %s", errNotFound, runID)
	}
	return r.Clone(), nil
}

func (s *MemoryRunStore) List(_ context.Context) ([]*entity.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.Run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r.Clone())
	}
	sortRuns(out)
	return out, nil
}

func sortRuns(runs []*entity.Run) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})
}
