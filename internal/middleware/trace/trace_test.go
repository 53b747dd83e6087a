package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffplan/internal/log"
)

func TestMiddleware_AssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	sl := log.NewStructuredLogger(log.New(log.Config{Level: slog.LevelDebug, Output: &buf}))
	m := NewMiddleware(func(*http.Request) string { return "10.0.0.9" }, sl)

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	require.True(t, strings.HasPrefix(seen, "req_"), "request id = %q", seen)
	assert.Equal(t, seen, rr.Header().Get(HeaderRequestID))
	out := buf.String()
	assert.Contains(t, out, "HTTP request started")
	assert.Contains(t, out, "status_code=418")
	assert.Contains(t, out, "client_ip=10.0.0.9")
}

func TestMiddleware_UpstreamRequestID(t *testing.T) {
	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"well formed", "abc-123", true},
		{"empty", "", false},
		{"spaces", "abc 123", false},
		{"too long", strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMiddleware(nil, nil)
			var seen string
			h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestID(r)
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(HeaderRequestID, tt.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.keep, seen == tt.header, "request id = %q", seen)
		})
	}
}

func TestMiddleware_Metrics(t *testing.T) {
	m := NewMiddleware(nil, nil)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for i := 0; i < 3; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}

	got := m.GetMetrics()
	assert.EqualValues(t, 3, got.TotalRequests)
	assert.EqualValues(t, 0, got.InFlight)
}

func TestGenerateRequestIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateRequestID()
		require.False(t, seen[id], "duplicate request id %s", id)
		seen[id] = true
	}
}
