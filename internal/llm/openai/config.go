package openai

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
)

const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Config for one OpenAI-compatible chat/completions model.
type Config struct {
	APIKey      string        // if empty, falls back to env OPENROUTER_API_KEY then OPENAI_API_KEY
	BaseURL     string        // default OpenRouter
	Model       string        // e.g. "openai/gpt-4o"
	Temperature float32       // 0..2
	MaxTokens   int           // response cap
	Timeout     time.Duration // http client timeout
	Referer     string        // OpenRouter HTTP-Referer attribution, optional
	Title       string        // OpenRouter X-Title attribution, optional
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "openai/gpt-4o"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// NewBackends builds one client per configured model, in order.
func NewBackends(cfg common.LLMConfig, logger *slog.Logger) []llm.Backend {
	out := make([]llm.Backend, 0, len(cfg.Models))
	for _, m := range cfg.Models {
		out = append(out, NewClient(Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       m,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
			Referer:     cfg.Referer,
			Title:       cfg.Title,
		}, logger))
	}
	return out
}
