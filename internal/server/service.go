package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/ingest"
	"github.com/joseph-ayodele/invoice-pipeline/internal/pipeline"
)

// Pipeline is the orchestrator surface exposed over the wire.
type Pipeline interface {
	Start(ctx context.Context, ref string) (*entity.Run, error)
	Resume(ctx context.Context, runID string, edit entity.Edit) (*entity.Run, error)
	Process(ctx context.Context, ref string) (*entity.Run, error)
	Get(ctx context.Context, runID string) (*entity.Run, error)
}

// InvoiceLister is the read side of the persistence sink.
type InvoiceLister interface {
	List(ctx context.Context) ([]entity.StoredInvoice, error)
}

// Exporter renders stored invoices as a workbook.
type Exporter interface {
	InvoicesXLSX(ctx context.Context) ([]byte, error)
}

// PipelineService backs both the gRPC and HTTP transports.
type PipelineService struct {
	pipeline  Pipeline
	invoices  InvoiceLister
	exporter  Exporter
	inputRoot string
	logger    *slog.Logger
}

func NewPipelineService(p Pipeline, invoices InvoiceLister, exporter Exporter, logger *slog.Logger) *PipelineService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineService{pipeline: p, invoices: invoices, exporter: exporter, logger: logger}
}

// WithInputRoot confines local document paths to root. Relative paths are
// resolved against it; gs:// references are not affected.
func (s *PipelineService) WithInputRoot(root string) (*PipelineService, error) {
	if root == "" {
		s.inputRoot = ""
		return s, nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("input root: %w", err)
	}
	s.inputRoot = abs
	return s, nil
}

func (s *PipelineService) startRun(ctx context.Context, path string, approve bool) (*entity.Run, error) {
	s.logger.Info("server.run.start", "path", path, "approve", approve, "request_id", common.RequestIDFromContext(ctx))
	path, err := s.resolveInput(path)
	if err != nil {
		s.logger.Warn("server.run.rejected", "error", err, "request_id", common.RequestIDFromContext(ctx))
		return nil, err
	}
	if approve {
		return s.pipeline.Process(ctx, path)
	}
	return s.pipeline.Start(ctx, path)
}

func (s *PipelineService) resolveInput(ref string) (string, error) {
	if s.inputRoot == "" || ref == "" {
		return ref, nil
	}
	if _, _, ok := ingest.ParseGCSURI(ref); ok {
		return ref, nil
	}
	p := ref
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.inputRoot, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(s.inputRoot, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path %q is outside the input root", common.ErrInvalidInput, ref)
	}
	return p, nil
}

var editKeys = []string{"biller_name", "biller_address", "total_amount", "due_date"}

// editFromMap decodes a reviewer edit. Absent or null keys leave the field
// unchanged; numbers are accepted for total_amount.
func editFromMap(m map[string]any) (entity.Edit, error) {
	v := common.NewValidator()
	for _, key := range editKeys {
		v.Field(key, m[key], editScalar)
	}
	if err := common.ValidateAndReturnError(v); err != nil {
		return entity.Edit{}, err
	}
	return entity.Edit{
		BillerName:    editValue(m["biller_name"]),
		BillerAddress: editValue(m["biller_address"]),
		TotalAmount:   editValue(m["total_amount"]),
		DueDate:       editValue(m["due_date"]),
	}, nil
}

func editScalar(field string, value interface{}) *common.ValidationError {
	switch value.(type) {
	case nil, string, float64:
		return nil
	}
	return &common.ValidationError{Field: field, Value: value, Message: field + " must be a string"}
}

func editValue(v any) *string {
	switch t := v.(type) {
	case string:
		return &t
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		return &s
	}
	return nil
}

func grpcError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrNotFound):
		return common.NotFoundError(err.Error())
	case errors.Is(err, pipeline.ErrRunNotPaused):
		return common.FailedPreconditionError(err.Error())
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrUnsupported):
		return common.InvalidArgumentError(err.Error())
	case errors.Is(err, common.ErrDatabase):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case common.IsTimeout(err):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return common.InternalError(err.Error())
	}
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrRunNotPaused):
		return http.StatusConflict
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrDatabase):
		return http.StatusServiceUnavailable
	case common.IsTimeout(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
