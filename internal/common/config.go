package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
)

// Config holds all application configuration
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Store    StoreConfig    `yaml:"store"`
	Runs     RunsConfig     `yaml:"runs"`
	Server   ServerConfig   `yaml:"server"`
	OCR      OCRConfig      `yaml:"ocr"`
	LLM      LLMConfig      `yaml:"llm"`
	Vertex   VertexConfig   `yaml:"vertex"`
	GCS      GCSConfig      `yaml:"gcs"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// StoreConfig holds persistence sink configuration
type StoreConfig struct {
	Driver           string        `yaml:"driver"` // json | sqlite | postgres
	Path             string        `yaml:"path"`   // json file or sqlite file
	DSN              string        `yaml:"dsn"`    // postgres
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// RunsConfig holds paused-run store configuration
type RunsConfig struct {
	Backend string `yaml:"backend"` // memory | file
	Dir     string `yaml:"dir"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr    string   `yaml:"grpc_addr"`
	HTTPAddr    string   `yaml:"http_addr"`
	CORSOrigins []string `yaml:"cors_origins"`
	// InputRoot confines document paths sent over the API. Empty allows any path.
	InputRoot   string   `yaml:"input_root"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Pdftotext     string   `yaml:"pdftotext"`
	Pdftoppm      string   `yaml:"pdftoppm"`
	Tesseract     string   `yaml:"tesseract"`
	Languages     []string `yaml:"languages"`
	DPI           int      `yaml:"dpi"`
	MaxPages      int      `yaml:"max_pages"`
	PageWorkers   int      `yaml:"page_workers"`
	HeicConverter string   `yaml:"heic_converter"`
	TessdataDir   string   `yaml:"tessdata_dir"`
}

// LLMConfig holds the OpenAI-compatible backend configuration
type LLMConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Models      []string      `yaml:"models"` // tried in order
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	FallbackOn  []string      `yaml:"fallback_on"` // failure classes that advance to the next backend
	Referer     string        `yaml:"referer"`
	Title       string        `yaml:"title"`
}

// VertexConfig enables the Gemini backend when Project is set.
type VertexConfig struct {
	Project         string `yaml:"project"`
	Region          string `yaml:"region"`
	Model           string `yaml:"model"`
	CredentialsFile string `yaml:"credentials_file"`
}

// GCSConfig enables gs:// document references.
type GCSConfig struct {
	Enabled         bool   `yaml:"enabled"`
	CredentialsFile string `yaml:"credentials_file"`
}

// PipelineConfig holds orchestrator settings
type PipelineConfig struct {
	StageTimeout time.Duration `yaml:"stage_timeout"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Store: StoreConfig{
			Driver:          "json",
			Path:            constants.DefaultStorePath,
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Runs:   RunsConfig{Backend: "memory", Dir: "./runs"},
		Server: ServerConfig{GRPCAddr: ":8080", HTTPAddr: ":8081"},
		OCR: OCRConfig{
			Pdftotext:     "pdftotext",
			Pdftoppm:      "pdftoppm",
			Tesseract:     "tesseract",
			Languages:     []string{"ara+eng", "eng"},
			DPI:           300,
			PageWorkers:   2,
			HeicConverter: "magick",
		},
		LLM: LLMConfig{
			BaseURL:     "https://openrouter.ai/api/v1",
			Models:      []string{"openai/gpt-4o", "openai/gpt-4o-mini"},
			Temperature: 0.1,
			MaxTokens:   1000,
			Timeout:     60 * time.Second,
			FallbackOn:  []string{"capacity"},
		},
		Vertex:   VertexConfig{Region: "us-central1", Model: "gemini-2.0-flash"},
		Pipeline: PipelineConfig{StageTimeout: 3 * time.Minute},
	}
}

// LoadConfig loads configuration from the optional INVOICE_CONFIG file and environment variables
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(os.Getenv("INVOICE_CONFIG"))
}

// LoadConfigFrom applies defaults, then the YAML file at path (if any), then environment overrides.
func LoadConfigFrom(path string) (*Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError("CONFIG_ERROR", "read config file", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("parse %s", path), err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(c *Config) {
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.Store.Driver = strings.ToLower(getEnv("STORE_DRIVER", c.Store.Driver))
	c.Store.Path = getEnv("STORE_PATH", c.Store.Path)
	c.Store.DSN = getEnv("DB_URL", c.Store.DSN)
	c.Store.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Store.MaxConns)
	c.Store.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Store.MinConns)
	c.Store.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Store.MaxConnLifetime)
	c.Store.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Store.MaxConnIdleTime)
	c.Store.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Store.DialTimeout)
	c.Store.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Store.StatementTimeout)

	c.Runs.Backend = strings.ToLower(getEnv("RUN_STORE", c.Runs.Backend))
	c.Runs.Dir = getEnv("RUN_DIR", c.Runs.Dir)

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.CORSOrigins = getEnvAsList("CORS_ORIGINS", c.Server.CORSOrigins)
	c.Server.InputRoot = getEnv("INPUT_ROOT", c.Server.InputRoot)

	c.OCR.Pdftotext = getEnv("PDFTOTEXT_BIN", c.OCR.Pdftotext)
	c.OCR.Pdftoppm = getEnv("PDFTOPPM_BIN", c.OCR.Pdftoppm)
	c.OCR.Tesseract = getEnv("TESSERACT_BIN", c.OCR.Tesseract)
	c.OCR.Languages = getEnvAsList("OCR_LANGS", c.OCR.Languages)
	c.OCR.DPI = getEnvAsInt("OCR_DPI", c.OCR.DPI)
	c.OCR.MaxPages = getEnvAsInt("OCR_MAX_PAGES", c.OCR.MaxPages)
	c.OCR.PageWorkers = getEnvAsInt("OCR_PAGE_WORKERS", c.OCR.PageWorkers)
	c.OCR.HeicConverter = getEnv("HEIC_CONVERTER", c.OCR.HeicConverter)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)

	c.LLM.APIKey = getEnv("OPENROUTER_API_KEY", getEnv("OPENAI_API_KEY", c.LLM.APIKey))
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Models = getEnvAsList("LLM_MODELS", c.LLM.Models)
	c.LLM.Temperature = getEnvAsFloat32("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.MaxTokens = getEnvAsInt("LLM_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", c.LLM.Timeout)
	c.LLM.FallbackOn = getEnvAsList("LLM_FALLBACK_ON", c.LLM.FallbackOn)
	c.LLM.Referer = getEnv("LLM_HTTP_REFERER", c.LLM.Referer)
	c.LLM.Title = getEnv("LLM_APP_TITLE", c.LLM.Title)

	c.Vertex.Project = getEnv("VERTEX_PROJECT", c.Vertex.Project)
	c.Vertex.Region = getEnv("VERTEX_REGION", c.Vertex.Region)
	c.Vertex.Model = getEnv("VERTEX_MODEL", c.Vertex.Model)
	c.Vertex.CredentialsFile = getEnv("GOOGLE_APPLICATION_CREDENTIALS", c.Vertex.CredentialsFile)

	c.GCS.Enabled = getEnvAsBool("GCS_ENABLED", c.GCS.Enabled)
	c.GCS.CredentialsFile = getEnv("GOOGLE_APPLICATION_CREDENTIALS", c.GCS.CredentialsFile)

	c.Pipeline.StageTimeout = getEnvAsDuration("PIPELINE_STAGE_TIMEOUT", c.Pipeline.StageTimeout)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "json", "sqlite":
		if strings.TrimSpace(c.Store.Path) == "" {
			return NewAppError("CONFIG_ERROR", "STORE_PATH is required for the "+c.Store.Driver+" store", ErrInvalidInput)
		}
	case "postgres":
		if c.Store.DSN == "" {
			return NewAppError("CONFIG_ERROR", "DB_URL is required for the postgres store", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown STORE_DRIVER %q", c.Store.Driver), ErrInvalidInput)
	}
	switch c.Runs.Backend {
	case "memory":
	case "file":
		if strings.TrimSpace(c.Runs.Dir) == "" {
			return NewAppError("CONFIG_ERROR", "RUN_DIR is required for the file run store", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown RUN_STORE %q", c.Runs.Backend), ErrInvalidInput)
	}
	if c.LLM.APIKey == "" && c.Vertex.Project == "" {
		return NewAppError("CONFIG_ERROR", "OPENROUTER_API_KEY (or OPENAI_API_KEY) or VERTEX_PROJECT is required", ErrInvalidInput)
	}
	if c.LLM.APIKey != "" && len(c.LLM.Models) == 0 {
		return NewAppError("CONFIG_ERROR", "LLM_MODELS must list at least one model", ErrInvalidInput)
	}
	if len(c.OCR.Languages) == 0 {
		return NewAppError("CONFIG_ERROR", "OCR_LANGS must list at least one language", ErrInvalidInput)
	}
	if c.OCR.DPI <= 0 {
		return NewAppError("CONFIG_ERROR", "OCR_DPI must be positive", ErrInvalidInput)
	}
	return nil
}
