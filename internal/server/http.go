package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/contracts-tracker/constants"
	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/core"
	"github.com/joseph-ayodele/contracts-tracker/internal/export"
	"github.com/joseph-ayodele/contracts-tracker/internal/ingest"
	"github.com/joseph-ayodele/contracts-tracker/internal/repository"
)

const (
	defaultMaxUploadBytes = 25 << 20
	xlsxContentType       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// RouterConfig wires the HTTP API. Only Service is required.
type RouterConfig struct {
	Service        *ExtractionService
	Ingestor       ingest.Ingestor // enables POST /api/ingest together with IngestRoot
	IngestRoot     string          // POST /api/ingest only reads below this directory
	Exporter       *export.Service // enables GET /api/export.xlsx
	Metrics        http.Handler    // served on /metrics when set
	Health         func(ctx context.Context) error
	MaxUploadBytes int64
	RateLimit      int // uploads per client IP per minute; 0 disables
	Logger         *slog.Logger
}

type httpHandler struct {
	cfg    RouterConfig
	logger *slog.Logger
}

// NewRouter builds the gin engine serving the extraction API.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	h := &httpHandler{cfg: cfg, logger: cfg.Logger}

	r := gin.New()
	r.Use(RequestID(), Recovery(cfg.Logger), RequestLogger(cfg.Logger))

	r.GET("/health", h.health)
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	api := r.Group("/api")
	uploads := []gin.HandlerFunc{}
	if cfg.RateLimit > 0 {
		uploads = append(uploads, RateLimit(cfg.RateLimit, time.Minute, cfg.Logger))
	}
	api.POST("/extract", append(uploads, h.extract)...)
	api.POST("/jobs", append(uploads, h.submit)...)
	api.GET("/jobs", h.listJobs)
	api.GET("/jobs/:id", h.getJob)
	if cfg.Ingestor != nil && cfg.IngestRoot != "" {
		api.POST("/ingest", h.ingest)
	}
	if cfg.Exporter != nil {
		api.GET("/export.xlsx", h.export)
	}
	return r
}

func (h *httpHandler) health(c *gin.Context) {
	if h.cfg.Health != nil {
		if err := h.cfg.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// extract handles POST /api/extract: multipart "file", optional "format".
func (h *httpHandler) extract(c *gin.Context) {
	req, ok := h.readUpload(c)
	if !ok {
		return
	}
	out, err := h.cfg.Service.Extract(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("X-Job-ID", out.JobID.String())
	c.Header("X-Content-Hash", out.ContentHash)
	c.Header("X-Cache", cacheHeader(out.Cached))
	c.JSON(http.StatusOK, out.Result)
}

// submit handles POST /api/jobs and answers 202 with the queued job id.
func (h *httpHandler) submit(c *gin.Context) {
	req, ok := h.readUpload(c)
	if !ok {
		return
	}
	id, err := h.cfg.Service.Submit(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Location", "/api/jobs/"+id.String())
	c.JSON(http.StatusAccepted, gin.H{"job_id": id.String(), "status": constants.JobStatusQueued})
}

func (h *httpHandler) getJob(c *gin.Context) {
	job, err := h.cfg.Service.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *httpHandler) listJobs(c *gin.Context) {
	f, err := parseJobFilter(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	jobs, err := h.cfg.Service.ListJobs(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

type ingestRequest struct {
	Path       string `json:"path" binding:"required"`
	SkipHidden bool   `json:"skip_hidden"`
}

// ingest handles POST /api/ingest for a file or directory below IngestRoot.
// Relative paths are taken from the root.
func (h *httpHandler) ingest(c *gin.Context) {
	var body ingestRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(c, common.NewAppError("BAD_REQUEST", "path is required", common.ErrInvalidInput))
		return
	}
	path, err := h.ingestPath(body.Path)
	if err != nil {
		h.fail(c, err)
		return
	}
	fi, err := os.Stat(path)
	if err != nil {
		h.fail(c, common.NewAppError("BAD_REQUEST", fmt.Sprintf("stat %s", body.Path), common.ErrInvalidInput))
		return
	}
	ctx := c.Request.Context()
	if !fi.IsDir() {
		res, err := h.cfg.Ingestor.IngestPath(ctx, path)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": []ingest.IngestionResult{res}})
		return
	}
	results, stats, err := h.cfg.Ingestor.IngestDirectory(ctx, path, body.SkipHidden)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "stats": stats})
}

// ingestPath resolves p against IngestRoot, following symlinks, and rejects
// anything that lands outside it.
func (h *httpHandler) ingestPath(p string) (string, error) {
	root, err := filepath.Abs(h.cfg.IngestRoot)
	if err != nil {
		return "", fmt.Errorf("ingest root: %w", err)
	}
	root = realPath(root)
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = realPath(filepath.Clean(p))

	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", common.NewAppError("FORBIDDEN", "path is outside the ingest root", common.ErrForbidden)
	}
	return p, nil
}

// realPath resolves symlinks when p exists and returns p unchanged otherwise.
func realPath(p string) string {
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r
	}
	return p
}

func (h *httpHandler) export(c *gin.Context) {
	f, err := parseJobFilter(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	data, err := h.cfg.Exporter.ExportJobsXLSX(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	name := fmt.Sprintf("contracts_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// readUpload reads the multipart file and resolves its format hint.
func (h *httpHandler) readUpload(c *gin.Context) (core.Request, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":      fmt.Sprintf("upload exceeds %d bytes", h.cfg.MaxUploadBytes),
				"request_id": GetRequestID(c),
			})
			return core.Request{}, false
		}
		h.fail(c, common.NewAppError("BAD_REQUEST", "multipart field \"file\" is required", common.ErrInvalidInput))
		return core.Request{}, false
	}

	hint := c.PostForm("format")
	if hint != "" && !constants.IsFormatHint(hint) {
		h.fail(c, common.NewAppError("BAD_REQUEST", fmt.Sprintf("unsupported format %q", hint), common.ErrInvalidInput))
		return core.Request{}, false
	}
	if hint == "" {
		if f := constants.FormatFromMIME(fh.Header.Get("Content-Type")); f != constants.UNKNOWN {
			hint = f
		}
	}

	f, err := fh.Open()
	if err != nil {
		h.fail(c, fmt.Errorf("open upload: %w", err))
		return core.Request{}, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		h.fail(c, fmt.Errorf("read upload: %w", err))
		return core.Request{}, false
	}
	return core.Request{Data: data, Name: fh.Filename, FormatHint: hint}, true
}

func (h *httpHandler) fail(c *gin.Context, err error) {
	code := common.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		common.LoggerFromContext(c.Request.Context(), h.logger).Error("http.request.failed", "path", c.FullPath(), "err", err)
	}
	c.JSON(code, gin.H{"error": err.Error(), "request_id": GetRequestID(c)})
}

func parseJobFilter(c *gin.Context) (repository.JobFilter, error) {
	f := repository.JobFilter{Status: strings.ToUpper(c.Query("status"))}
	if f.Status != "" {
		v := common.NewValidator()
		v.Field("status", f.Status, common.OneOf(
			string(constants.JobStatusQueued),
			string(constants.JobStatusRunning),
			string(constants.JobStatusOK),
			string(constants.JobStatusFailed),
		))
		if err := v.Error(); err != nil {
			return f, err
		}
	}
	if s := c.Query("needs_review"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return f, common.NewAppError("BAD_REQUEST", "needs_review must be a boolean", common.ErrInvalidInput)
		}
		f.NeedsReview = &b
	}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return f, common.NewAppError("BAD_REQUEST", "limit must be a non-negative integer", common.ErrInvalidInput)
		}
		f.Limit = n
	}
	return f, nil
}

func cacheHeader(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
