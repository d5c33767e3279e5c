package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
)

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Code    any    `json:"code"`
}

func (c *Client) Name() string { return c.cfg.Model }

// Complete implements llm.Backend using text-only chat/completions with
// JSON response format.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", &llm.BackendError{Backend: c.Name(), Message: "api key is not configured"}
	}

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"max_tokens":      c.cfg.MaxTokens,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	}
	headers := map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
		"HTTP-Referer":  c.cfg.Referer,
		"X-Title":       c.cfg.Title,
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		return "", &llm.BackendError{Backend: c.Name(), StatusCode: status, Message: errorMessage(raw), Err: err}
	}

	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", &llm.BackendError{Backend: c.Name(), StatusCode: status, Err: fmt.Errorf("%w: decode response: %v", llm.ErrMalformed, err)}
	}
	// OpenRouter reports some upstream failures inside a 200 body
	if cc.Error != nil && cc.Error.Message != "" {
		return "", &llm.BackendError{Backend: c.Name(), StatusCode: codeOf(cc.Error), Message: cc.Error.Message}
	}
	if len(cc.Choices) == 0 {
		return "", &llm.BackendError{Backend: c.Name(), StatusCode: status, Err: fmt.Errorf("%w: no choices in response", llm.ErrMalformed)}
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	if content == "" {
		return "", &llm.BackendError{Backend: c.Name(), StatusCode: status, Err: fmt.Errorf("%w: empty content", llm.ErrMalformed)}
	}
	return content, nil
}

func errorMessage(raw []byte) string {
	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err == nil && cc.Error != nil {
		return cc.Error.Message
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 300 {
		s = s[:300]
	}
	return s
}

func codeOf(e *apiError) int {
	switch v := e.Code.(type) {
	case float64:
		return int(v)
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return 0
}
