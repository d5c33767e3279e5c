package llm

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
)

func TestSendJSONTagsRequestAndRun(t *testing.T) {
	var gotReqID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReqID = r.Header.Get("X-Request-ID")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := common.WithRunID(common.WithRequestID(context.Background(), "req-7"), "run-7")

	body, code, err := SendJSON(ctx, srv.Client(), srv.URL, map[string]string{"a": "b"}, nil, logger)
	if err != nil || code != http.StatusOK || string(body) != `{"ok":true}` {
		t.Fatalf("SendJSON = %q, %d, %v", body, code, err)
	}
	if gotReqID != "req-7" {
		t.Errorf("X-Request-ID = %q", gotReqID)
	}
	if !strings.Contains(buf.String(), `"run_id":"run-7"`) {
		t.Errorf("logs missing run_id: %s", buf.String())
	}
}
