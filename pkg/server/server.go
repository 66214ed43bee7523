package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/elonfeng/curator/internal/config"
	"github.com/elonfeng/curator/internal/pipeline"
	"github.com/elonfeng/curator/internal/snapshot"
	"github.com/elonfeng/curator/internal/store"
	"github.com/elonfeng/curator/pkg/content"
)

// StatsLister is the part of the store the API reads.
type StatsLister interface {
	ListRunStats(ctx context.Context, opts store.RunStatListOpts) ([]store.RunStat, error)
}

// SyncRunner is satisfied by *pipeline.Syncer.
type SyncRunner interface {
	Run(ctx context.Context, opts *config.RunOptions) ([]pipeline.SyncResult, error)
}

// Server provides the HTTP API.
type Server struct {
	stats  StatsLister
	syncer SyncRunner
	raw    config.RawOptions
	port   int
	logger *slog.Logger

	// serializes manual sync runs with each other and with scheduled runs
	running *sync.Mutex
}

// New creates a new HTTP server. raw supplies the data folder, run id and sources.
// running is the mutex shared with the scheduler; nil gets a private one.
func New(stats StatsLister, syncer SyncRunner, raw config.RawOptions, port int, running *sync.Mutex, logger *slog.Logger) *Server {
	if port == 0 {
		port = 8080
	}
	if logger == nil {
		logger = slog.Default()
	}
	if running == nil {
		running = &sync.Mutex{}
	}
	return &Server{
		stats:   stats,
		syncer:  syncer,
		raw:     raw,
		port:    port,
		logger:  logger.With("component", "server"),
		running: running,
	}
}

// Handler returns the router.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())

	r.GET("/health", s.handleHealth)
	api := r.Group("/api/v1")
	{
		api.GET("/snapshots/:source", s.handleSnapshot)
		api.GET("/stats", s.handleStats)
		api.POST("/sync", s.handleSync)
	}
	return r
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSnapshot(c *gin.Context) {
	kind, err := content.KindFromSlug(c.Param("source"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	dataFolder := s.raw.DataFolder
	if dataFolder == "" {
		dataFolder = "./data"
	}
	runID := c.DefaultQuery("run_id", s.raw.RunID)

	data, err := snapshot.Load(dataFolder, runID, kind.SnapshotName())
	if errors.Is(err, snapshot.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := data.Values()
	c.JSON(http.StatusOK, gin.H{
		"source": kind,
		"data":   items,
		"count":  len(items),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	opts := store.RunStatListOpts{
		Label: c.Query("label"),
		RunID: c.Query("run_id"),
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		opts.Limit = n
	}

	stats, err := s.stats.ListRunStats(c.Request.Context(), opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  stats,
		"count": len(stats),
	})
}

func (s *Server) handleSync(c *gin.Context) {
	if !s.running.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "a sync is already running"})
		return
	}
	defer s.running.Unlock()

	raw := s.raw
	if v := c.Query("sources"); v != "" {
		raw.Sources = v
	}
	opts, err := raw.Parse(time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := s.syncer.Run(c.Request.Context(), opts)
	if err != nil {
		s.logger.Error("manual sync failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "synced": results})
		return
	}
	c.JSON(http.StatusOK, gin.H{"synced": results, "unknown": opts.Unknown})
}
