package server

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
)

func TestEditFromMap(t *testing.T) {
	e, err := editFromMap(map[string]any{"biller_name": "Acme Co.", "total_amount": 150.5, "due_date": nil})
	if err != nil {
		t.Fatalf("editFromMap: %v", err)
	}
	if *e.BillerName != "Acme Co." || *e.TotalAmount != "150.5" || e.DueDate != nil || e.BillerAddress != nil {
		t.Errorf("edit = %+v", e)
	}

	if e, err := editFromMap(nil); err != nil || !e.Empty() {
		t.Errorf("nil map = %+v, %v", e, err)
	}

	_, err = editFromMap(map[string]any{"biller_name": []any{1}, "due_date": true})
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if want := "validation failed: biller_name must be a string; due_date must be a string"; err.Error() != want {
		t.Errorf("err = %q, want %q", err, want)
	}
}

func TestResolveInput(t *testing.T) {
	root := t.TempDir()
	svc, _ := newTestService()
	if _, err := svc.WithInputRoot(root); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		ref, want string
		ok        bool
	}{
		{"a.pdf", filepath.Join(root, "a.pdf"), true},
		{filepath.Join(root, "sub", "b.png"), filepath.Join(root, "sub", "b.png"), true},
		{"gs://bucket/c.pdf", "gs://bucket/c.pdf", true},
		{"../outside.pdf", "", false},
		{"sub/../../outside.pdf", "", false},
		{"/etc/passwd.pdf", "", false},
	}
	for _, tt := range tests {
		got, err := svc.resolveInput(tt.ref)
		if tt.ok {
			if err != nil || got != tt.want {
				t.Errorf("resolveInput(%q) = %q, %v; want %q", tt.ref, got, err, tt.want)
			}
			continue
		}
		if !errors.Is(err, common.ErrInvalidInput) {
			t.Errorf("resolveInput(%q) err = %v, want ErrInvalidInput", tt.ref, err)
		}
	}
}

func TestResolveInputWithoutRoot(t *testing.T) {
	svc, _ := newTestService()
	if got, err := svc.resolveInput("../any.pdf"); err != nil || got != "../any.pdf" {
		t.Errorf("resolveInput = %q, %v", got, err)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
		http int
	}{
		{fmt.Errorf("%w: x", common.ErrValidation), codes.InvalidArgument, http.StatusBadRequest},
		{fmt.Errorf("%w: query invoices: locked", common.ErrDatabase), codes.Unavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: invoice 3", common.ErrNotFound), codes.NotFound, http.StatusNotFound},
		{errors.New("boom"), codes.Internal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := status.Code(grpcError(tt.err)); got != tt.code {
			t.Errorf("grpcError(%v) = %v, want %v", tt.err, got, tt.code)
		}
		if got := httpStatus(tt.err); got != tt.http {
			t.Errorf("httpStatus(%v) = %d, want %d", tt.err, got, tt.http)
		}
		if !strings.Contains(status.Convert(grpcError(tt.err)).Message(), tt.err.Error()) {
			t.Errorf("grpc message lost the cause for %v", tt.err)
		}
	}
}
