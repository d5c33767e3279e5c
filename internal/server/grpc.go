package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "invoices.v1.PipelineService"

// PipelineServer is the gRPC contract. Payloads are free-form structs:
//
//	StartRun      {path, approve?}            -> run
//	ResumeRun     {run_id, edits?}            -> run
//	GetRun        {run_id}                    -> run
//	ListInvoices  {}                          -> {invoices: [...]}
type PipelineServer interface {
	StartRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResumeRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListInvoices(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var _ PipelineServer = (*PipelineService)(nil)

func unaryHandler(method string, call func(PipelineServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(PipelineServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(PipelineServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

var pipelineServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PipelineServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("StartRun", PipelineServer.StartRun),
		unaryHandler("ResumeRun", PipelineServer.ResumeRun),
		unaryHandler("GetRun", PipelineServer.GetRun),
		unaryHandler("ListInvoices", PipelineServer.ListInvoices),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "invoices/v1/pipeline.proto",
}

// RegisterPipelineServer attaches srv to a gRPC server.
func RegisterPipelineServer(r grpc.ServiceRegistrar, srv PipelineServer) {
	r.RegisterService(&pipelineServiceDesc, srv)
}

func (s *PipelineService) StartRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path := strings.TrimSpace(req.GetFields()["path"].GetStringValue())
	if path == "" {
		return nil, common.InvalidArgumentError("path is required")
	}
	approve := req.GetFields()["approve"].GetBoolValue()

	run, err := s.startRun(ctx, path, approve)
	if err != nil {
		s.logger.Error("grpc.start_run.failed", "path", path, "error", err)
		return nil, grpcError(err)
	}
	return toStruct(run)
}

func (s *PipelineService) ResumeRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID := strings.TrimSpace(req.GetFields()["run_id"].GetStringValue())
	if runID == "" {
		return nil, common.InvalidArgumentError("run_id is required")
	}
	edit, err := editFromMap(req.GetFields()["edits"].GetStructValue().AsMap())
	if err != nil {
		return nil, grpcError(err)
	}

	run, err := s.pipeline.Resume(ctx, runID, edit)
	if err != nil {
		s.logger.Warn("grpc.resume_run.failed", "run_id", runID, "error", err)
		return nil, grpcError(err)
	}
	return toStruct(run)
}

func (s *PipelineService) GetRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID := strings.TrimSpace(req.GetFields()["run_id"].GetStringValue())
	if runID == "" {
		return nil, common.InvalidArgumentError("run_id is required")
	}
	run, err := s.pipeline.Get(ctx, runID)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(run)
}

func (s *PipelineService) ListInvoices(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	recs, err := s.invoices.List(ctx)
	if err != nil {
		s.logger.Error("grpc.list_invoices.failed", "error", err)
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"invoices": recs})
}

// toStruct converts any JSON-encodable value through its JSON form, so the
// wire shape matches the HTTP API exactly.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return out, nil
}

// UnaryRequestID tags each call with the caller's x-request-id, or a new one,
// and logs its outcome.
func UnaryRequestID(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		rid := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get("x-request-id"); len(v) > 0 {
				rid = v[0]
			}
		}
		if rid == "" {
			rid = uuid.NewString()
		}
		ctx = common.WithRequestID(ctx, rid)

		resp, err := handler(ctx, req)
		logger.Info("grpc.call",
			"method", info.FullMethod,
			"request_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"error", errString(err),
		)
		return resp, err
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// PipelineClient calls the service over a client connection.
type PipelineClient struct {
	cc grpc.ClientConnInterface
}

func NewPipelineClient(cc grpc.ClientConnInterface) *PipelineClient {
	return &PipelineClient{cc: cc}
}

func (c *PipelineClient) call(ctx context.Context, method string, in map[string]any) (map[string]any, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

func (c *PipelineClient) StartRun(ctx context.Context, path string, approve bool) (map[string]any, error) {
	return c.call(ctx, "StartRun", map[string]any{"path": path, "approve": approve})
}

func (c *PipelineClient) ResumeRun(ctx context.Context, runID string, edits map[string]any) (map[string]any, error) {
	in := map[string]any{"run_id": runID}
	if edits != nil {
		in["edits"] = edits
	}
	return c.call(ctx, "ResumeRun", in)
}

func (c *PipelineClient) GetRun(ctx context.Context, runID string) (map[string]any, error) {
	return c.call(ctx, "GetRun", map[string]any{"run_id": runID})
}

func (c *PipelineClient) ListInvoices(ctx context.Context) (map[string]any, error) {
	return c.call(ctx, "ListInvoices", map[string]any{})
}
