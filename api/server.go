// Package api exposes the trigger and query interfaces over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-scrape-scholar/jobs"
)

// NewServer wires all routes onto a gin engine.
func NewServer(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(
		promhttp.HandlerFor(handler.manager.Metrics().Registry, promhttp.HandlerOpts{}),
	))

	api := r.Group("/api")
	{
		api.POST("/crawl", handler.StartCrawl)
		api.POST("/clean", handler.StartClean)
		api.GET("/jobs", handler.ListJobs)
		api.GET("/jobs/:id", handler.GetJob)
		api.DELETE("/jobs/:id", handler.CancelJob)
		api.GET("/corpus", handler.GetCorpus)
	}

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}

// Handler carries the dependencies for all routes. Corpus reads are
// restricted to files under dataDir.
type Handler struct {
	manager *jobs.Manager
	dataDir string
}

// NewHandler builds a Handler around a job manager.
func NewHandler(manager *jobs.Manager, dataDir string) *Handler {
	return &Handler{manager: manager, dataDir: dataDir}
}
