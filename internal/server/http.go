package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
)

const (
	maxBodyBytes = 1 << 20
	xlsxMIME     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// NewHTTPHandler builds the review API.
func NewHTTPHandler(svc *PipelineService, origins []string, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestID())
	engine.Use(RequestLogger(logger))
	engine.Use(MaxBodySize(maxBodyBytes))
	engine.Use(CORS(origins))

	registerRoutes(engine, svc)
	return engine
}

func registerRoutes(r *gin.Engine, svc *PipelineService) {
	r.GET("/healthz", svc.handleHealth)

	v1 := r.Group("/v1")
	{
		v1.POST("/runs", svc.handleStartRun)
		v1.GET("/runs/:id", svc.handleGetRun)
		v1.POST("/runs/:id/resume", svc.handleResumeRun)

		v1.GET("/invoices", svc.handleListInvoices)
		v1.GET("/invoices/export.xlsx", svc.handleExportInvoices)
	}
}

func (s *PipelineService) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *PipelineService) handleStartRun(c *gin.Context) {
	var payload struct {
		Path    string `json:"path" binding:"required"`
		Approve bool   `json:"approve"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	run, err := s.startRun(c.Request.Context(), strings.TrimSpace(payload.Path), payload.Approve)
	if err != nil {
		respondError(c, httpStatus(err), err)
		return
	}
	c.JSON(http.StatusCreated, run)
}

func (s *PipelineService) handleGetRun(c *gin.Context) {
	run, err := s.pipeline.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, httpStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *PipelineService) handleResumeRun(c *gin.Context) {
	var payload struct {
		Edits map[string]any `json:"edits"`
	}
	// an empty body approves the extraction as-is
	if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	edit, err := editFromMap(payload.Edits)
	if err != nil {
		respondError(c, httpStatus(err), err)
		return
	}

	run, err := s.pipeline.Resume(c.Request.Context(), c.Param("id"), edit)
	if err != nil {
		respondError(c, httpStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *PipelineService) handleListInvoices(c *gin.Context) {
	recs, err := s.invoices.List(c.Request.Context())
	if err != nil {
		respondError(c, httpStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": recs})
}

func (s *PipelineService) handleExportInvoices(c *gin.Context) {
	if s.exporter == nil {
		respondError(c, http.StatusNotImplemented, errors.New("export is not configured"))
		return
	}
	b, err := s.exporter.InvoicesXLSX(c.Request.Context())
	if err != nil {
		respondError(c, httpStatus(err), err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="invoices.xlsx"`)
	c.Data(http.StatusOK, xlsxMIME, b)
}

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

// CORS allows the listed origins, or every origin when none are configured.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

// RequestID propagates X-Request-ID into the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), rid))
		c.Header("X-Request-ID", rid)
		c.Next()
	}
}

func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("http.request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
			"request_id", common.RequestIDFromContext(c.Request.Context()),
		)
	}
}

func MaxBodySize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
