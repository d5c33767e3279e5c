package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/pipeline"
)

const (
	pausedID = "11111111-1111-4111-8111-111111111111"
	doneID   = "22222222-2222-4222-8222-222222222222"
)

type fakePipeline struct {
	lastEdit entity.Edit
	lastRef  string
	approved bool
}

func pausedRun() *entity.Run {
	return &entity.Run{
		ID:            pausedID,
		State:         constants.StateAwaitingHumanReview,
		OverallStatus: constants.OverallAwaitingReview,
		Steps: entity.Steps{
			constants.StepDocumentIngestion: {Agent: constants.AgentDocumentIngestion, Status: constants.StepSuccess},
		},
		CreatedAt: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakePipeline) Start(_ context.Context, ref string) (*entity.Run, error) {
	f.lastRef = ref
	if ref == "missing.docx" {
		return nil, fmt.Errorf("%w: docx", common.ErrUnsupported)
	}
	return pausedRun(), nil
}

func (f *fakePipeline) Process(ctx context.Context, ref string) (*entity.Run, error) {
	f.approved = true
	run, err := f.Start(ctx, ref)
	if err != nil {
		return nil, err
	}
	run.State = constants.StateWritten
	run.OverallStatus = constants.OverallSuccess
	return run, nil
}

func (f *fakePipeline) Resume(_ context.Context, runID string, edit entity.Edit) (*entity.Run, error) {
	f.lastEdit = edit
	switch runID {
	case pausedID:
		run := pausedRun()
		run.State = constants.StateWriteSkipped
		run.OverallStatus = constants.OverallIncomplete
		return run, nil
	case doneID:
		return nil, fmt.Errorf("%w: run %s is written", pipeline.ErrRunNotPaused, runID)
	default:
		return nil, pipeline.ErrRunNotFound
	}
}

func (f *fakePipeline) Get(_ context.Context, runID string) (*entity.Run, error) {
	if runID == pausedID {
		return pausedRun(), nil
	}
	return nil, pipeline.ErrRunNotFound
}

type fakeInvoices struct{ err error }

func (f fakeInvoices) List(context.Context) ([]entity.StoredInvoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []entity.StoredInvoice{{
		ID:     1,
		Fields: entity.Fields{BillerName: entity.StringPtr("Acme Co."), TotalAmount: entity.NewAmount(150)},
		Status: constants.InvoiceStatusStored,
	}}, nil
}

type fakeExporter struct{}

func (fakeExporter) InvoicesXLSX(context.Context) ([]byte, error) { return []byte("PK\x03\x04"), nil }

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestService() (*PipelineService, *fakePipeline) {
	fp := &fakePipeline{}
	return NewPipelineService(fp, fakeInvoices{}, fakeExporter{}, quiet()), fp
}
