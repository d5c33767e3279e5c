package vertex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
)

// Backend extracts with a Gemini model on Vertex AI.
type Backend struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
	logger *slog.Logger
}

// New returns nil, nil when cfg.Project is empty so callers can append the
// result unconditionally after a nil check.
func New(ctx context.Context, cfg common.VertexConfig, temperature float32, maxTokens int, logger *slog.Logger) (*Backend, error) {
	if cfg.Project == "" {
		return nil, nil
	}
	if cfg.Region == "" || cfg.Model == "" {
		return nil, fmt.Errorf("vertex: region and model cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := genai.NewClient(ctx, cfg.Project, cfg.Region, opts...)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(llm.ExtractionSystemMessage)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(temperature),
	}
	if maxTokens > 0 {
		model.GenerationConfig.MaxOutputTokens = genai.Ptr(int32(maxTokens))
	}

	return &Backend{client: client, model: model, name: "vertex/" + cfg.Model, logger: logger}, nil
}

func (b *Backend) Name() string { return b.name }

// Complete ignores system; the instruction is fixed on the model at construction.
func (b *Backend) Complete(ctx context.Context, _ string, user string) (string, error) {
	resp, err := b.model.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", &llm.BackendError{Backend: b.name, StatusCode: httpStatus(err), Err: err}
	}
	text := responseText(resp)
	if text == "" {
		return "", &llm.BackendError{Backend: b.name, Err: fmt.Errorf("%w: empty candidate", llm.ErrMalformed)}
	}
	return text, nil
}

func (b *Backend) Close() error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	s := strings.TrimSpace(sb.String())
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// httpStatus maps the gRPC status of a Vertex error onto the HTTP code
// llm.Classify understands.
func httpStatus(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return 0
	}
	st, ok := status.FromError(err)
	if !ok {
		return 0
	}
	switch st.Code() {
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Unavailable, codes.Internal:
		return http.StatusServiceUnavailable
	case codes.InvalidArgument, codes.FailedPrecondition:
		return http.StatusBadRequest
	case codes.PermissionDenied, codes.Unauthenticated:
		return http.StatusForbidden
	}
	return 0
}
