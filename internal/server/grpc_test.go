package server

import (
	"context"
	"fmt"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
)

func dialBufconn(t *testing.T, svc *PipelineService) *PipelineClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(UnaryRequestID(quiet())))
	RegisterPipelineServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewPipelineClient(conn)
}

func TestGRPCStartAndResume(t *testing.T) {
	svc, fp := newTestService()
	client := dialBufconn(t, svc)
	ctx := context.Background()

	run, err := client.StartRun(ctx, "/data/invoice.pdf", false)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if run["run_id"] != pausedID || run["overall_status"] != "awaiting_review" {
		t.Errorf("run = %v", run)
	}
	if fp.lastRef != "/data/invoice.pdf" || fp.approved {
		t.Errorf("pipeline saw ref=%q approved=%v", fp.lastRef, fp.approved)
	}

	run, err = client.ResumeRun(ctx, pausedID, map[string]any{"biller_name": "Acme Co.", "total_amount": 150.0})
	if err != nil {
		t.Fatalf("ResumeRun: %v", err)
	}
	if run["overall_status"] != "incomplete" {
		t.Errorf("run = %v", run)
	}
	if fp.lastEdit.BillerName == nil || *fp.lastEdit.BillerName != "Acme Co." {
		t.Errorf("edit = %+v", fp.lastEdit)
	}
	if fp.lastEdit.TotalAmount == nil || *fp.lastEdit.TotalAmount != "150" {
		t.Errorf("amount edit = %v", fp.lastEdit.TotalAmount)
	}
	if fp.lastEdit.DueDate != nil {
		t.Errorf("due_date should be unchanged, got %v", *fp.lastEdit.DueDate)
	}
}

func TestGRPCErrorCodes(t *testing.T) {
	svc, _ := newTestService()
	client := dialBufconn(t, svc)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{"missing path", func() error { _, err := client.StartRun(ctx, "", false); return err }, codes.InvalidArgument},
		{"unsupported", func() error { _, err := client.StartRun(ctx, "missing.docx", false); return err }, codes.InvalidArgument},
		{"unknown run", func() error { _, err := client.GetRun(ctx, "nope"); return err }, codes.NotFound},
		{"not paused", func() error { _, err := client.ResumeRun(ctx, doneID, nil); return err }, codes.FailedPrecondition},
		{"bad edit", func() error {
			_, err := client.ResumeRun(ctx, pausedID, map[string]any{"due_date": true})
			return err
		}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := status.Code(tt.call()); got != tt.want {
				t.Errorf("code = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGRPCListInvoices(t *testing.T) {
	svc, _ := newTestService()
	client := dialBufconn(t, svc)

	out, err := client.ListInvoices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	list, ok := out["invoices"].([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("invoices = %v", out["invoices"])
	}
	rec := list[0].(map[string]any)
	if rec["biller_name"] != "Acme Co." || rec["total_amount"] != 150.0 {
		t.Errorf("record = %v", rec)
	}
}

func TestGRPCStartRunOutsideInputRoot(t *testing.T) {
	svc, fp := newTestService()
	if _, err := svc.WithInputRoot(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	client := dialBufconn(t, svc)

	_, err := client.StartRun(context.Background(), "/etc/passwd.pdf", false)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %s, want InvalidArgument", status.Code(err))
	}
	if fp.lastRef != "" {
		t.Errorf("pipeline should not see a rejected path, got %q", fp.lastRef)
	}
}

func TestGRPCListInvoicesStoreUnavailable(t *testing.T) {
	failing := fakeInvoices{err: fmt.Errorf("%w: scan invoice: bad row", common.ErrDatabase)}
	client := dialBufconn(t, NewPipelineService(&fakePipeline{}, failing, fakeExporter{}, quiet()))

	_, err := client.ListInvoices(context.Background())
	if status.Code(err) != codes.Unavailable {
		t.Errorf("code = %s, want Unavailable", status.Code(err))
	}
}
