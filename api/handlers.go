package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aluiziolira/go-scrape-scholar/cleaner"
	"github.com/aluiziolira/go-scrape-scholar/config"
	"github.com/aluiziolira/go-scrape-scholar/jobs"
	"github.com/aluiziolira/go-scrape-scholar/pipeline"
	"github.com/aluiziolira/go-scrape-scholar/scraper"
)

// CrawlRequest is the JSON body for POST /api/crawl. Omitted fields fall
// back to the stage defaults.
type CrawlRequest struct {
	Query      string   `json:"query"`
	MaxPages   int      `json:"max_pages"`
	Output     string   `json:"output"`
	Format     string   `json:"format"`
	BaseURL    string   `json:"base_url"`
	MaxRetries int      `json:"max_retries"`
	TimeoutMs  int      `json:"timeout_ms"`
	DelayMinMs int      `json:"delay_min_ms"`
	DelayMaxMs int      `json:"delay_max_ms"`
	UserAgents []string `json:"user_agents"`
}

// CleanRequest is the JSON body for POST /api/clean.
type CleanRequest struct {
	Input       string `json:"input"`
	Output      string `json:"output"`
	Language    string `json:"language"`
	KeepNumbers bool   `json:"keep_numbers"`
	Parallelism int    `json:"parallelism"`
}

// StartCrawl dispatches a crawl job and answers 202 with its handle.
func (h *Handler) StartCrawl(c *gin.Context) {
	var req CrawlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	cfg := config.DefaultCrawlConfig()
	if req.Query != "" {
		cfg.Query = req.Query
	}
	if req.MaxPages != 0 {
		cfg.MaxPages = req.MaxPages
	}
	if req.Output != "" {
		cfg.OutputFile = req.Output
	}
	if req.Format != "" {
		cfg.OutputFormat = req.Format
	}
	if req.BaseURL != "" {
		cfg.BaseURL = req.BaseURL
	}
	if req.MaxRetries != 0 {
		cfg.MaxRetries = req.MaxRetries
	}
	if req.TimeoutMs > 0 {
		cfg.Timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}
	if req.DelayMinMs > 0 {
		cfg.DelayMin = time.Duration(req.DelayMinMs) * time.Millisecond
	}
	if req.DelayMaxMs > 0 {
		cfg.DelayMax = time.Duration(req.DelayMaxMs) * time.Millisecond
	}
	if len(req.UserAgents) > 0 {
		cfg.UserAgents = req.UserAgents
	}

	id, err := h.manager.StartCrawl(cfg)
	if err != nil {
		h.submissionError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": id, "status": jobs.StatusPending})
}

// StartClean dispatches a clean job and answers 202 with its handle.
func (h *Handler) StartClean(c *gin.Context) {
	var req CleanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	cfg := config.DefaultCleanConfig()
	if req.Input != "" {
		cfg.InputFile = req.Input
	}
	if req.Output != "" {
		cfg.OutputFile = req.Output
	}
	if req.Language != "" {
		cfg.Language = req.Language
	}
	if req.KeepNumbers {
		cfg.DropNumbers = false
	}
	if req.Parallelism > 0 {
		cfg.Parallelism = req.Parallelism
	}

	id, err := h.manager.StartClean(cfg)
	if err != nil {
		h.submissionError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": id, "status": jobs.StatusPending})
}

func (h *Handler) submissionError(c *gin.Context, err error) {
	var cfgErr scraper.ErrConfig
	switch {
	case errors.Is(err, jobs.ErrPathBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &cfgErr),
		errors.Is(err, cleaner.ErrUnsupportedLanguage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// GetJob answers the status of one job.
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.manager.Status(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListJobs answers snapshots of all jobs.
func (h *Handler) ListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": h.manager.List()})
}

// CancelJob signals a cooperative stop; collected data stays persisted.
func (h *Handler) CancelJob(c *gin.Context) {
	if err := h.manager.Cancel(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

// GetCorpus serves a corpus file as JSON records. The stage query parameter
// selects the schema: "cleaned" (default) or "raw". Only files under the
// configured data directory are served.
func (h *Handler) GetCorpus(c *gin.Context) {
	raw := c.Query("path")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path query parameter is required"})
		return
	}
	path, err := h.corpusPath(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch c.DefaultQuery("stage", "cleaned") {
	case "raw":
		records, err := pipeline.ReadRawCorpus(path)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
	case "cleaned":
		records, err := pipeline.ReadCleanedCorpus(path)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "stage must be raw or cleaned"})
	}
}

// corpusPath resolves a requested corpus path and rejects anything that
// escapes the data directory.
func (h *Handler) corpusPath(raw string) (string, error) {
	base, err := filepath.Abs(h.dataDir)
	if err != nil {
		return "", fmt.Errorf("resolve data directory: %w", err)
	}
	path := raw
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the data directory", raw)
	}
	return path, nil
}
