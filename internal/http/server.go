// Package http serves the shared state document and the analytics reports
// derived from it.
package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"staffplan/internal/cache"
	"staffplan/internal/log"
	"staffplan/internal/middleware/ratelimit"
	"staffplan/internal/middleware/security"
	"staffplan/internal/middleware/trace"
	"staffplan/internal/services"
	"staffplan/internal/store"
)

const (
	// maxStateBody bounds POST /api/state bodies.
	maxStateBody = 10 << 20

	reportCacheSize      = 64
	cacheCleanupInterval = 10 * time.Minute
	readyTimeout         = 5 * time.Second
)

// Options tune the server. Zero values take defaults.
type Options struct {
	RateLimitPerMinute int
	ReportCacheTTL     time.Duration
	Logger             *log.Logger
	Headers            *security.HeadersConfig
}

// Server is the JSON API of the planner.
type Server struct {
	http.Server

	state   *services.StateService
	reports *services.Reports
	logger  *log.Logger
	events  *log.StructuredLogger

	detector     *security.Detector
	rateLimiter  *ratelimit.Limiter
	tracer       *trace.Middleware
	cacheManager *cache.Manager

	financeCache  *cache.LRUCache[[]byte]
	writeOffCache *cache.LRUCache[[]byte]
	workloadCache *cache.LRUCache[[]byte]
	flight        singleflight.Group
	// generation advances on every save; report cache keys carry it.
	generation atomic.Int64

	started     time.Time
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	saves       atomic.Int64

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware around svc and reports.
func NewServer(addr string, svc *services.StateService, reports *services.Reports, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	headers := security.DefaultHeadersConfig()
	if opts.Headers != nil {
		headers = *opts.Headers
	}

	events := log.NewStructuredLogger(logger)
	detector := security.NewDetector()

	s := &Server{
		state:         svc,
		reports:       reports,
		logger:        logger,
		events:        events,
		detector:      detector,
		rateLimiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:        trace.NewMiddleware(detector.ExtractClientIP, events),
		cacheManager:  cache.NewManager(),
		financeCache:  cache.NewLRUCache[[]byte](reportCacheSize, opts.ReportCacheTTL),
		writeOffCache: cache.NewLRUCache[[]byte](reportCacheSize, opts.ReportCacheTTL),
		workloadCache: cache.NewLRUCache[[]byte](reportCacheSize, opts.ReportCacheTTL),
		started:       time.Now(),
	}

	for _, c := range []cache.Cleaner{s.financeCache, s.writeOffCache, s.workloadCache} {
		s.cacheManager.Register(c)
	}
	if opts.ReportCacheTTL > 0 {
		s.cacheManager.StartCleanup(cacheCleanupInterval)
	}

	svc.OnSaved(s.invalidateReports)

	limited := s.rateLimiter.Middleware(detector.ExtractClientIP, s.handleRateLimited)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/state", s.handleGetState)
	mux.Handle("POST /api/state", limited(http.HandlerFunc(s.handleSaveState)))
	mux.HandleFunc("GET /api/analytics/finance", s.handleFinance)
	mux.HandleFunc("GET /api/analytics/writeoffs", s.handleWriteOffs)
	mux.HandleFunc("GET /api/analytics/workload", s.handleWorkload)

	var h http.Handler = mux
	h = log.RequestIDMiddleware(trace.RequestID)(h)
	h = log.Middleware(logger)(h)
	h = detector.Middleware(h)
	h = security.NewHeadersMiddleware(headers).Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// invalidateReports drops every cached report after a save.
func (s *Server) invalidateReports(doc store.Document) {
	s.generation.Add(1)
	s.financeCache.Purge()
	s.writeOffCache.Purge()
	s.workloadCache.Purge()
	s.saves.Add(1)
}

// Shutdown stops the background sweepers and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
