package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

func pausedRun() *entity.Run {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &entity.Run{
		ID:            uuid.NewString(),
		DocumentID:    uuid.NewString(),
		State:         constants.StateAwaitingHumanReview,
		SystemPrompt:  "prompt",
		OverallStatus: constants.OverallAwaitingReview,
		Steps: entity.Steps{
			constants.StepExtraction: {
				Agent:  constants.AgentExtraction,
				Status: constants.StepSuccess,
				Input:  entity.RawJSON(map[string]string{"raw_text": "ACME"}),
				Output: entity.RawJSON(acme()),
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRunStores(t *testing.T) {
	fileStore, err := NewFileRunStore(t.TempDir(), quiet())
	if err != nil {
		t.Fatal(err)
	}
	stores := map[string]RunStore{
		"memory": NewMemoryRunStore(),
		"file":   fileStore,
	}
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			run := pausedRun()
			if err := s.Save(ctx, run); err != nil {
				t.Fatalf("Save: %v", err)
			}

			// mutating the caller's copy must not leak into the store
			run.Steps[constants.StepExtraction].Status = constants.StepError

			got, err := s.Get(ctx, run.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			st := got.Step(constants.StepExtraction)
			if st == nil || st.Status != constants.StepSuccess {
				t.Fatalf("step = %+v", st)
			}
			if got.State != constants.StateAwaitingHumanReview || !got.CreatedAt.Equal(run.CreatedAt) {
				t.Errorf("run = %+v", got)
			}

			if _, err := s.Get(ctx, uuid.NewString()); !errors.Is(err, common.ErrNotFound) {
				t.Errorf("missing run err = %v", err)
			}

			list, err := s.List(ctx)
			if err != nil || len(list) != 1 {
				t.Errorf("List = %d, %v", len(list), err)
			}
		})
	}
}

func TestFileRunStoreRejectsPathLikeIDs(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileRunStore(filepath.Join(dir, "runs"), quiet())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(context.Background(), "../secrets"); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "runs")); err != nil {
		t.Errorf("run dir should be created: %v", err)
	}
}
