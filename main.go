package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"compliance-scanner/ai"
	"compliance-scanner/analyzer"
	"compliance-scanner/batch"
	"compliance-scanner/cache"
	"compliance-scanner/compliance"
	"compliance-scanner/config"
	"compliance-scanner/fetcher"
	"compliance-scanner/scanner"
	"compliance-scanner/scoring"
	"compliance-scanner/store"
)

type ScanRequest struct {
	URL string `json:"url" form:"url" binding:"required"`
}

type BatchRequest struct {
	URLs []string `json:"urls" binding:"required"`
}

type Server struct {
	router       *gin.Engine
	port         string
	scanner      *scanner.Service
	orchestrator *batch.Orchestrator
	history      store.Store
	batchLimit   int
}

func main() {
	cfg := config.Load()

	rules, err := analyzer.LoadRules(cfg.Crawl.RulesPath)
	if err != nil {
		log.Fatal("Failed to load signal rules: ", err)
	}

	fetch := fetcher.NewWithBackend(cfg)
	engine := scoring.New(scoring.WeightsFromConfig(cfg.Scoring))
	resultCache := cache.New(cfg.Cache.TTL, cfg.Cache.MaxItems)
	svc := scanner.New(fetch, analyzer.New(rules, fetch, cfg.Crawl.MaxCandidates), engine, resultCache)

	var history store.Store
	if cfg.Database.Path != "" {
		st, err := store.OpenSQLite(cfg.Database.Path)
		if err != nil {
			log.Printf("History store unavailable, continuing without persistence: %v", err)
		} else {
			defer st.Close()
			history = st
			svc.Store = st
		}
	}

	if provider := ai.NewOpenAIProvider(cfg.AI); provider != nil {
		svc.Narrator = provider
		svc.Policies = ai.NewPolicyFetcher(fetch, rules, cfg.AI.MaxPolicyLength)
	}

	server := NewServer(cfg, svc, batch.New(svc, resultCache, cfg.Batch.Workers), history)
	server.SetupRoutes()

	log.Printf("Starting compliance scanner server on port %s", cfg.Server.Port)
	if err := server.Run(); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func NewServer(cfg *config.Settings, svc *scanner.Service, orchestrator *batch.Orchestrator, history store.Store) *Server {
	r := gin.Default()

	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		c.AbortWithStatus(500)
	}))

	return &Server{
		router:       r,
		port:         cfg.Server.Port,
		scanner:      svc,
		orchestrator: orchestrator,
		history:      history,
		batchLimit:   cfg.Batch.Limit,
	}
}

func (s *Server) SetupRoutes() {
	s.router.POST("/scan", s.scanHandler)
	s.router.POST("/batch", s.batchHandler)
	s.router.GET("/stream-batch", s.streamBatchHandler)
	s.router.GET("/cache/stats", s.cacheStatsHandler)
	s.router.GET("/history", s.historyHandler)
}

func (s *Server) Run() error {
	return s.router.Run(":" + s.port)
}

func (s *Server) scanHandler(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	result, err := s.scanner.Scan(ctx, req.URL)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error(), "kind": errKind(err)})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) batchHandler(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.URLs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A non-empty urls list is required"})
		return
	}

	urls := req.URLs
	if len(urls) > s.batchLimit {
		urls = urls[:s.batchLimit]
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Minute)
	defer cancel()

	job := s.orchestrator.Run(ctx, urls, nil)
	c.JSON(http.StatusOK, job)
}

// streamBatchHandler runs a batch and streams per-target progress as
// server-sent events, then the complete report.
func (s *Server) streamBatchHandler(c *gin.Context) {
	raw := c.Query("urls")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "urls parameter required"})
		return
	}
	var urls []string
	for _, u := range strings.Split(raw, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) > s.batchLimit {
		urls = urls[:s.batchLimit]
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Minute)
	defer cancel()

	progress := make(chan compliance.Progress, len(urls))
	done := make(chan *compliance.BatchJob, 1)

	go func() {
		job := s.orchestrator.Run(ctx, urls, func(p compliance.Progress) {
			select {
			case progress <- p:
			case <-ctx.Done():
			}
		})
		close(progress)
		done <- job
	}()

	for p := range progress {
		c.SSEvent("progress", p)
		if flusher, ok := c.Writer.(http.Flusher); ok {
			flusher.Flush()
		}
	}

	job := <-done
	c.SSEvent("complete", job)
	if flusher, ok := c.Writer.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (s *Server) cacheStatsHandler(c *gin.Context) {
	stats := s.scanner.CacheStats()
	c.JSON(http.StatusOK, gin.H{
		"items":     stats.Items,
		"ttl_hours": stats.TTL.Hours(),
	})
}

func (s *Server) historyHandler(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history store not configured"})
		return
	}

	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = l
	}

	var results []*compliance.ScanResult
	var err error
	if url := c.Query("url"); url != "" {
		results, err = s.history.History(c.Request.Context(), url, limit)
	} else {
		results, err = s.history.Recent(c.Request.Context(), limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, compliance.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, compliance.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errKind(err error) string {
	switch {
	case errors.Is(err, compliance.ErrInvalidURL):
		return "invalid_url"
	case errors.Is(err, compliance.ErrNetwork):
		return "network_error"
	default:
		return "scan_error"
	}
}
