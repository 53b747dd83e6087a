package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"staffplan/internal/log"
	"staffplan/internal/state"
)

// handleGetState returns the stored document verbatim, or null.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	data, err := s.state.LoadRaw(r.Context())
	if err != nil {
		s.events.LogError(r.Context(), "Failed to load state", err, log.ComponentState, log.OpRead,
			log.NewFields().WithErrorType(log.ErrorTypeDatabase))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if data == nil {
		data = []byte("null")
	}
	writeRawJSON(w, http.StatusOK, data)
}

// handleSaveState stores the posted snapshot and echoes the stored form.
func (s *Server) handleSaveState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxStateBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	doc, err := s.state.Save(ctx, body)
	if errors.Is(err, state.ErrInvalidSnapshot) {
		log.FromContext(ctx).WarnContext(ctx, "Rejected state document",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeValidation)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.events.LogError(ctx, "Failed to save state", err, log.ComponentState, log.OpSave,
			log.NewFields().WithErrorType(log.ErrorTypeDatabase))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("X-State-Revision", strconv.FormatInt(doc.Revision, 10))
	writeRawJSON(w, http.StatusOK, doc.Data)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports whether the document store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{
		"cache": map[string]int{
			"finance":   s.financeCache.Size(),
			"writeoffs": s.writeOffCache.Size(),
			"workload":  s.workloadCache.Size(),
		},
		"rate_limiter": map[string]int{"active_clients": s.rateLimiter.ActiveClients()},
	}

	if err := s.state.Ping(ctx); err != nil {
		status, code = "not_ready", http.StatusServiceUnavailable
		checks["store"] = "failed: " + err.Error()
	} else {
		checks["store"] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics exposes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	traceMetrics := s.tracer.GetMetrics()
	limitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_requests_in_flight", "gauge", "Requests being served", traceMetrics.InFlight)
	metric("http_request_duration_avg_microseconds", "gauge", "Average request duration", traceMetrics.AverageResponseTime)
	metric("state_saves_total", "counter", "Snapshots stored", s.saves.Load())
	metric("report_cache_hits_total", "counter", "Reports served from cache", s.cacheHits.Load())
	metric("report_cache_misses_total", "counter", "Reports computed", s.cacheMisses.Load())
	fmt.Fprintf(w, "# HELP report_cache_entries Cached reports\n# TYPE report_cache_entries gauge\n")
	fmt.Fprintf(w, "report_cache_entries{report=\"finance\"} %d\n", s.financeCache.Size())
	fmt.Fprintf(w, "report_cache_entries{report=\"writeoffs\"} %d\n", s.writeOffCache.Size())
	fmt.Fprintf(w, "report_cache_entries{report=\"workload\"} %d\n\n", s.workloadCache.Size())
	metric("rate_limit_hits_total", "counter", "Requests rejected by the rate limiter", limitMetrics.TotalHits)
	metric("rate_limit_clients", "gauge", "Clients tracked by the rate limiter", limitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Requests matching attack patterns", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "gauge", "Server uptime", int64(time.Since(s.started).Seconds()))
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"failed to encode response"}`)
	}
	writeRawJSON(w, status, body)
}

func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
