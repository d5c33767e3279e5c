package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/extract"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
	"github.com/joseph-ayodele/invoice-pipeline/internal/repository"
	"github.com/joseph-ayodele/invoice-pipeline/internal/rules"
)

// DocumentOpener resolves a document reference to a local file.
type DocumentOpener interface {
	Open(ctx context.Context, ref string) (entity.DocumentHandle, func(), error)
}

// Config tunes the orchestrator.
type Config struct {
	// StageTimeout bounds ingestion and field extraction; 0 disables it.
	StageTimeout time.Duration
	SystemPrompt string
}

// Orchestrator runs documents through ingest -> extract -> (pause) ->
// validate -> decide -> persist.
type Orchestrator struct {
	docs   DocumentOpener
	text   extract.TextExtractor
	fields llm.FieldExtractor
	sink   repository.InvoiceSink
	runs   repository.RunStore
	cfg    Config
	now    func() time.Time
	logger *slog.Logger

	resumeMu sync.Mutex
}

func New(
	docs DocumentOpener,
	text extract.TextExtractor,
	fields llm.FieldExtractor,
	sink repository.InvoiceSink,
	runs repository.RunStore,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = llm.SystemPrompt
	}
	return &Orchestrator{
		docs:   docs,
		text:   text,
		fields: fields,
		sink:   sink,
		runs:   runs,
		cfg:    cfg,
		now:    time.Now,
		logger: logger,
	}
}

// Start ingests and extracts a document, then pauses for review. The
// returned run is awaiting_review, or terminal with overall_status=error
// when no text could be extracted.
func (o *Orchestrator) Start(ctx context.Context, ref string) (run *entity.Run, err error) {
	if strings.TrimSpace(ref) == "" {
		return nil, fmt.Errorf("%w: document path is required", common.ErrInvalidInput)
	}

	run = o.newRun()
	ctx = common.WithRunID(ctx, run.ID)
	log := o.logger.With("run_id", run.ID)
	log.Info("pipeline.run.start", "ref", ref)

	defer o.finish(ctx, run, log)

	text, ok := o.ingest(ctx, run, ref, log)
	if !ok {
		return run, nil
	}
	o.extractFields(ctx, run, text, log)
	return run, nil
}

// Resume applies a reviewer's edit to the paused run and runs validation,
// the write decision and, when valid, persistence.
func (o *Orchestrator) Resume(ctx context.Context, runID string, edit entity.Edit) (run *entity.Run, err error) {
	o.resumeMu.Lock()
	defer o.resumeMu.Unlock()

	run, err = o.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.State != constants.StateAwaitingHumanReview {
		return nil, fmt.Errorf("%w: run %s is %s", ErrRunNotPaused, runID, run.State)
	}

	ctx = common.WithRunID(ctx, run.ID)
	log := o.logger.With("run_id", run.ID)
	log.Info("pipeline.run.resume", "edited", !edit.Empty())

	defer o.finish(ctx, run, log)

	o.must(advance(run, constants.StateReviewing))
	fields := o.extractedFields(run)
	fields = edit.Apply(fields)

	verdict := o.validate(run, fields, log)
	decision := o.decide(run, verdict, fields, log)
	o.persist(ctx, run, decision, log)

	if verdict.Valid() {
		run.OverallStatus = constants.OverallSuccess
	} else {
		run.OverallStatus = constants.OverallIncomplete
	}
	return run, nil
}

// Process runs a document end to end, approving the extracted fields as-is.
func (o *Orchestrator) Process(ctx context.Context, ref string) (*entity.Run, error) {
	run, err := o.Start(ctx, ref)
	if err != nil || run.State != constants.StateAwaitingHumanReview {
		return run, err
	}
	return o.Resume(ctx, run.ID, entity.Edit{})
}

// Get loads a run by id.
func (o *Orchestrator) Get(ctx context.Context, runID string) (*entity.Run, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	run, err := o.runs.Get(ctx, runID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	return run, nil
}

// List returns every known run, oldest first.
func (o *Orchestrator) List(ctx context.Context) ([]*entity.Run, error) {
	return o.runs.List(ctx)
}

func (o *Orchestrator) newRun() *entity.Run {
	now := o.now().UTC()
	return &entity.Run{
		ID:           uuid.NewString(),
		State:        constants.StateIngesting,
		SystemPrompt: o.cfg.SystemPrompt,
		Steps:        entity.Steps{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ingest opens the document and extracts its text. ok is false when the run
// ended at ingest_failed.
func (o *Orchestrator) ingest(ctx context.Context, run *entity.Run, ref string, log *slog.Logger) (text string, ok bool) {
	step := o.beginStep(run, constants.StepDocumentIngestion, constants.AgentDocumentIngestion, map[string]string{"file_path": ref})

	sctx, cancel := common.WithOptionalTimeout(ctx, o.cfg.StageTimeout)
	defer cancel()

	var res entity.ExtractionResult
	doc, cleanup, err := o.docs.Open(sctx, ref)
	if err != nil {
		log.Warn("pipeline.ingest.open_failed", "error", err)
		res = entity.FailedExtraction(entity.DocumentHandle{ID: uuid.NewString()}, openFailureKind(sctx, err), err.Error())
	} else {
		res = o.text.Extract(sctx, doc)
		cleanup()
	}
	run.DocumentID = res.DocumentID
	step.Output = entity.RawJSON(res)

	if !res.Usable() {
		step.Status = constants.StepError
		step.Error = MsgNoText
		o.must(advance(run, constants.StateIngestFailed))
		run.OverallStatus = constants.OverallError
		log.Warn("pipeline.stage.done",
			"stage", constants.StepDocumentIngestion,
			"status", step.Status,
			"failure_kind", res.FailureKind,
		)
		return "", false
	}

	step.Status = constants.StepSuccess
	o.must(advance(run, constants.StateIngested))
	log.Info("pipeline.stage.done",
		"stage", constants.StepDocumentIngestion,
		"status", step.Status,
		"source_type", res.SourceType,
		"method", res.Method,
		"chars", len(res.RawText),
	)
	return res.RawText, true
}

func openFailureKind(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, common.ErrUnsupported):
		return entity.FailureUnsupported
	case common.IsTimeout(err), ctx.Err() != nil:
		return entity.FailureTimeout
	default:
		return entity.FailureUnreadable
	}
}

func (o *Orchestrator) extractFields(ctx context.Context, run *entity.Run, text string, log *slog.Logger) {
	o.must(advance(run, constants.StateExtracting))
	step := o.beginStep(run, constants.StepExtraction, constants.AgentExtraction, map[string]int{"raw_text_length": len(text)})

	sctx, cancel := common.WithOptionalTimeout(ctx, o.cfg.StageTimeout)
	defer cancel()

	fields := o.fields.Extract(sctx, text)
	step.Output = entity.RawJSON(fields)
	step.Status = constants.StepSuccess
	if fields.Failed() {
		step.Status = constants.StepError
		step.Error = fields.Error
		if errors.Is(sctx.Err(), context.DeadlineExceeded) {
			step.Error = entity.FailureTimeout + ": " + fields.Error
		}
	}
	log.Info("pipeline.stage.done", "stage", constants.StepExtraction, "status", step.Status)

	// extraction problems are for the reviewer to fix, not a reason to stop
	o.must(advance(run, constants.StateExtracted))
	o.must(advance(run, constants.StateAwaitingHumanReview))
	run.OverallStatus = constants.OverallAwaitingReview
	log.Info("pipeline.run.paused")
}

func (o *Orchestrator) extractedFields(run *entity.Run) entity.Fields {
	step := run.Step(constants.StepExtraction)
	if step == nil {
		panic("paused run has no extraction step")
	}
	var f entity.Fields
	if err := json.Unmarshal(step.Output, &f); err != nil {
		panic(fmt.Sprintf("decode extracted fields: %v", err))
	}
	return f
}

func (o *Orchestrator) validate(run *entity.Run, fields entity.Fields, log *slog.Logger) entity.Verdict {
	o.must(advance(run, constants.StateValidating))
	step := o.beginStep(run, constants.StepValidation, constants.AgentValidation, fields)

	verdict := rules.Validate(fields)
	step.Output = entity.RawJSON(verdict)
	step.Status = constants.StepSuccess
	if !verdict.Valid() {
		step.Status = constants.StepFailed
	}
	o.must(advance(run, constants.StateValidated))
	log.Info("pipeline.stage.done", "stage", constants.StepValidation, "status", step.Status, "errors", len(verdict.Errors))
	return verdict
}

func (o *Orchestrator) decide(run *entity.Run, verdict entity.Verdict, fields entity.Fields, log *slog.Logger) entity.Decision {
	o.must(advance(run, constants.StateDeciding))
	step := o.beginStep(run, constants.StepToolDecision, constants.AgentToolDecision, map[string]any{
		"validation_status": verdict.Status,
		"extracted_data":    fields,
	})

	decision := rules.Decide(verdict, fields)
	step.Output = entity.RawJSON(decision)
	step.Status = constants.StepSuccess
	o.must(advance(run, constants.StateDecided))
	log.Info("pipeline.stage.done", "stage", constants.StepToolDecision, "should_write", decision.ShouldWrite)
	return decision
}

func (o *Orchestrator) persist(ctx context.Context, run *entity.Run, decision entity.Decision, log *slog.Logger) {
	if !decision.ShouldWrite || decision.DataToWrite == nil {
		o.must(advance(run, constants.StateWriteSkipped))
		run.Steps[constants.StepDatabaseWrite] = &entity.Step{
			Agent:  constants.AgentDatabaseTool,
			Status: constants.StepSkipped,
			Input:  entity.RawJSON(nil),
			Output: entity.RawJSON(nil),
			Reason: decision.Reason,
		}
		log.Info("pipeline.stage.done", "stage", constants.StepDatabaseWrite, "status", constants.StepSkipped)
		return
	}

	o.must(advance(run, constants.StateWriting))
	step := o.beginStep(run, constants.StepDatabaseWrite, constants.AgentDatabaseTool, decision.DataToWrite)

	res := o.sink.Store(ctx, *decision.DataToWrite)
	step.Output = entity.RawJSON(res)
	step.Status = constants.StepSuccess
	next := constants.StateWritten
	if !res.Success {
		// the run still succeeds; only the step and the state record the failure
		step.Status = constants.StepError
		step.Error = res.Message
		next = constants.StateWriteFailed
	}
	o.must(advance(run, next))
	log.Info("pipeline.stage.done", "stage", constants.StepDatabaseWrite, "status", step.Status, "invoice_id", res.InvoiceID)
}

func (o *Orchestrator) beginStep(run *entity.Run, name constants.StepName, agent string, input any) *entity.Step {
	step := &entity.Step{
		Agent:  agent,
		Status: constants.StepProcessing,
		Input:  entity.RawJSON(input),
		Output: entity.RawJSON(nil),
	}
	run.Steps[name] = step
	return step
}

// runFault carries an unexpected error through panic to the recover boundary.
type runFault struct{ err error }

func (o *Orchestrator) must(err error) {
	if err != nil {
		panic(runFault{err: err})
	}
}

// finish is deferred by every entry point: it converts panics into a faulted
// run that keeps the steps recorded so far, then saves the run.
func (o *Orchestrator) finish(ctx context.Context, run *entity.Run, log *slog.Logger) {
	if r := recover(); r != nil {
		var msg string
		if f, ok := r.(runFault); ok {
			msg = f.err.Error()
			log.Error("pipeline.run.fault", "error", f.err)
		} else {
			msg = fmt.Sprintf("unexpected fault: %v", r)
			log.Error("pipeline.run.fault", "panic", r, "stack", string(debug.Stack()))
		}
		o.fault(run, msg)
	}

	run.UpdatedAt = o.now().UTC()
	if err := o.runs.Save(ctx, run); err != nil {
		log.Error("pipeline.run.save_failed", "error", err)
		if run.State == constants.StateAwaitingHumanReview {
			// a paused run that was not saved can never be resumed
			o.fault(run, "save run: "+err.Error())
		}
	}
	log.Info("pipeline.run.done", "state", run.State, "overall_status", run.OverallStatus)
}

func (o *Orchestrator) fault(run *entity.Run, msg string) {
	for _, st := range run.Steps {
		if st.Status == constants.StepProcessing {
			st.Status = constants.StepError
			st.Error = msg
		}
	}
	if !IsTerminal(run.State) {
		run.State = constants.StateFaulted
	}
	run.OverallStatus = constants.OverallError
	run.Error = msg
}
