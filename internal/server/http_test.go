package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
)

func newTestEngine(t *testing.T) (*gin.Engine, *fakePipeline) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, fp := newTestService()
	return NewHTTPHandler(svc, nil, quiet()), fp
}

func serve(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestHTTPHealth(t *testing.T) {
	engine, _ := newTestEngine(t)
	rec := serve(engine, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestHTTPStartRunApprove(t *testing.T) {
	engine, fp := newTestEngine(t)

	rec := serve(engine, http.MethodPost, "/v1/runs", `{"path":" /data/a.pdf ","approve":true}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["overall_status"] != "success" || !fp.approved || fp.lastRef != "/data/a.pdf" {
		t.Errorf("body = %v, approved = %v, ref = %q", body, fp.approved, fp.lastRef)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	engine, _ := newTestEngine(t)
	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"missing path", http.MethodPost, "/v1/runs", `{}`, http.StatusBadRequest},
		{"unsupported", http.MethodPost, "/v1/runs", `{"path":"missing.docx"}`, http.StatusBadRequest},
		{"unknown run", http.MethodGet, "/v1/runs/nope", "", http.StatusNotFound},
		{"get paused", http.MethodGet, "/v1/runs/" + pausedID, "", http.StatusOK},
		{"resume empty body", http.MethodPost, "/v1/runs/" + pausedID + "/resume", "", http.StatusOK},
		{"resume finished", http.MethodPost, "/v1/runs/" + doneID + "/resume", `{"edits":{}}`, http.StatusConflict},
		{"bad edit", http.MethodPost, "/v1/runs/" + pausedID + "/resume", `{"edits":{"biller_name":[1]}}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(engine, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestHTTPInvoicesAndExport(t *testing.T) {
	engine, _ := newTestEngine(t)

	rec := serve(engine, http.MethodGet, "/v1/invoices", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"biller_name":"Acme Co."`) {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(engine, http.MethodGet, "/v1/invoices/export.xlsx", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != xlsxMIME {
		t.Errorf("content type = %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "PK") {
		t.Error("body is not a zip container")
	}
}

func TestHTTPResumeChunkedEmptyBody(t *testing.T) {
	engine, fp := newTestEngine(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/runs/"+pausedID+"/resume", strings.NewReader(""))
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !fp.lastEdit.Empty() {
		t.Errorf("empty body should approve as-is, edit = %+v", fp.lastEdit)
	}
}

func TestHTTPStartRunConfinedToInputRoot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	root := t.TempDir()
	svc, fp := newTestService()
	if _, err := svc.WithInputRoot(root); err != nil {
		t.Fatal(err)
	}
	engine := NewHTTPHandler(svc, nil, quiet())

	rec := serve(engine, http.MethodPost, "/v1/runs", `{"path":"../../etc/shadow.pdf"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if fp.lastRef != "" {
		t.Errorf("pipeline should not see a rejected path, got %q", fp.lastRef)
	}

	rec = serve(engine, http.MethodPost, "/v1/runs", `{"path":"inbox/a.pdf"}`)
	if rec.Code != http.StatusCreated || fp.lastRef != filepath.Join(root, "inbox", "a.pdf") {
		t.Errorf("status = %d, ref = %q", rec.Code, fp.lastRef)
	}
}

func TestHTTPListInvoicesStoreUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	failing := fakeInvoices{err: fmt.Errorf("%w: query invoices: database is locked", common.ErrDatabase)}
	engine := NewHTTPHandler(NewPipelineService(&fakePipeline{}, failing, fakeExporter{}, quiet()), nil, quiet())

	rec := serve(engine, http.MethodGet, "/v1/invoices", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
}
