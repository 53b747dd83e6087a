package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffplan/internal/calendar"
	"staffplan/internal/services"
	"staffplan/internal/store"
	"staffplan/internal/store/memory"
)

const fixture = `{
	"people": [
		{"id":"p1","name":"Sasha","role":"manager","capacityPerWeek":1,"active":true,"rateInternal":1500,"rateExternal":2500},
		{"id":"p2","name":"Igor","role":"dev","capacityPerWeek":1,"active":true,"rateInternal":1800,"rateExternal":3200}
	],
	"projects": [
		{"id":"pr1","name":"HR Podcasts","status":"active","projectType":"external",
		 "contracts":[{"id":"c1","date":"2024-01-15","amount":120000,"vatMode":"net"}],
		 "writeOffs":[{"id":"w1","personId":"p1","monthStr":"2024-01","hours":16,"type":"fact"}]}
	],
	"assignments": [
		{"id":"a1","personId":"p1","projectId":"pr1","weekStart":"2024-01-08","fte":0.5,"factHours":20}
	],
	"teamOrder": ["p2","p1"]
}`

type failingStore struct{ err error }

func (f failingStore) LoadDocument(context.Context, string) (store.Document, error) {
	return store.Document{}, f.err
}

func (f failingStore) SaveDocument(context.Context, string, []byte) (store.Document, error) {
	return store.Document{}, f.err
}

func (f failingStore) Ping(context.Context) error { return f.err }

// movingClock is a clock the test can advance.
type movingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *movingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *movingClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func newTestServer(t *testing.T, st store.DocumentStore, opts Options) *Server {
	t.Helper()
	return newClockedTestServer(t, st, calendar.Today(2024, time.March, 13), opts)
}

func newClockedTestServer(t *testing.T, st store.DocumentStore, clock calendar.Clock, opts Options) *Server {
	t.Helper()
	svc := services.NewStateService(st, nil)
	reports := services.NewReports(clock)
	if opts.ReportCacheTTL == 0 {
		opts.ReportCacheTTL = time.Minute
	}
	srv := NewServer(":0", svc, reports, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m), "response is not a JSON object: %s", rr.Body.String())
	return m
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})

	rr := do(t, srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "ok", decode(t, rr)["status"])

	rr = do(t, srv, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "ready", decode(t, rr)["status"])
}

func TestReadyFailsWhenStoreIsDown(t *testing.T) {
	srv := newTestServer(t, failingStore{err: errors.New("connection refused")}, Options{})

	rr := do(t, srv, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "not_ready", decode(t, rr)["status"])
}

func TestGetStateEmpty(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})

	rr := do(t, srv, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "null", strings.TrimSpace(rr.Body.String()))
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json"), rr.Header().Get("Content-Type"))
}

func TestSaveAndGetState(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})

	rr := do(t, srv, http.MethodPost, "/api/state", fixture)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "1", rr.Header().Get("X-State-Revision"))
	saved := rr.Body.String()
	people, _ := decode(t, rr)["people"].([]any)
	require.Len(t, people, 2)

	rr = do(t, srv, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, saved, rr.Body.String(), "GET returns the echoed document")

	rr = do(t, srv, http.MethodPost, "/api/state", `{"data":`+fixture+`}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "2", rr.Header().Get("X-State-Revision"))
}

func TestSaveStateRejectsInvalidBodies(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", "{oops", http.StatusBadRequest},
		{"null", "null", http.StatusBadRequest},
		{"array", "[1,2,3]", http.StatusBadRequest},
		{"wrong field type", `{"people":"everyone"}`, http.StatusBadRequest},
		{"too large", `{"roles":["` + strings.Repeat("x", maxStateBody) + `"]}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/state", tt.body)
			require.Equal(t, tt.want, rr.Code, rr.Body.String())
			msg, _ := decode(t, rr)["error"].(string)
			assert.NotEmpty(t, msg)
		})
	}

	rr := do(t, srv, http.MethodGet, "/api/state", "")
	assert.Equal(t, "null", strings.TrimSpace(rr.Body.String()), "rejected bodies must not be stored")
}

func TestStoreFailureIs500(t *testing.T) {
	srv := newTestServer(t, failingStore{err: errors.New("disk on fire")}, Options{})

	for _, tc := range []struct{ method, body string }{
		{http.MethodGet, ""},
		{http.MethodPost, fixture},
	} {
		rr := do(t, srv, tc.method, "/api/state", tc.body)
		require.Equal(t, http.StatusInternalServerError, rr.Code, tc.method)
		msg, _ := decode(t, rr)["error"].(string)
		assert.Contains(t, msg, "disk on fire", tc.method)
	}

	rr := do(t, srv, http.MethodGet, "/api/analytics/finance?year=2024", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})

	rr := do(t, srv, http.MethodDelete, "/api/state", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestFinanceReportIsCachedUntilSave(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})
	do(t, srv, http.MethodPost, "/api/state", fixture)

	income := func() float64 {
		t.Helper()
		rr := do(t, srv, http.MethodGet, "/api/analytics/finance?year=2024&vat=false", "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		total, _ := decode(t, rr)["total"].(map[string]any)
		v, _ := total["income"].(float64)
		return v
	}

	require.Equal(t, float64(120000), income())
	require.Equal(t, float64(120000), income(), "cached")
	assert.Equal(t, int64(1), srv.cacheHits.Load())
	assert.Equal(t, int64(1), srv.cacheMisses.Load())

	do(t, srv, http.MethodPost, "/api/state", strings.Replace(fixture, `"amount":120000`, `"amount":60000`, 1))
	assert.Zero(t, srv.financeCache.Size(), "cache purged after save")
	assert.Equal(t, float64(60000), income())
}

func TestReportCacheFollowsTheWeek(t *testing.T) {
	clock := &movingClock{t: time.Date(2024, time.March, 13, 9, 0, 0, 0, time.Local)}
	srv := newClockedTestServer(t, memory.New(), clock, Options{})
	doc := strings.Replace(fixture, `"factHours":20}`,
		`"factHours":20},{"id":"a2","personId":"p1","projectId":"pr1","weekStart":"2024-03-11","fte":1}`, 1)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/state", doc).Code)

	costFact := func() float64 {
		t.Helper()
		rr := do(t, srv, http.MethodGet, "/api/analytics/finance?year=2024", "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		total, _ := decode(t, rr)["total"].(map[string]any)
		v, _ := total["costFact"].(float64)
		return v
	}

	assert.Equal(t, float64(20*2500), costFact(), "running week has no fact yet")
	clock.Set(time.Date(2024, time.March, 17, 23, 0, 0, 0, time.Local))
	assert.Equal(t, float64(20*2500), costFact(), "same week is served from cache")
	assert.Equal(t, int64(1), srv.cacheHits.Load())

	clock.Set(time.Date(2024, time.March, 18, 8, 0, 0, 0, time.Local))
	assert.Equal(t, float64(20*2500+40*2500), costFact(), "elapsed week counts its plan")
	assert.Equal(t, int64(2), srv.cacheMisses.Load())
}

func TestFinanceReportWithoutDocumentUsesSeed(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})

	rr := do(t, srv, http.MethodGet, "/api/analytics/finance", "")
	require.Equal(t, http.StatusOK, rr.Code)
	m := decode(t, rr)
	assert.Equal(t, float64(2024), m["year"], "default year")
	months, _ := m["months"].([]any)
	assert.Len(t, months, 12)
}

func TestWriteOffReport(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})
	do(t, srv, http.MethodPost, "/api/state", fixture)

	rr := do(t, srv, http.MethodGet, "/api/analytics/writeoffs?year=2024", "")
	require.Equal(t, http.StatusOK, rr.Code)
	m := decode(t, rr)
	assert.Equal(t, float64(16), m["totalFact"])
	people, _ := m["people"].([]any)
	require.Len(t, people, 2)
	first, _ := people[0].(map[string]any)
	assert.Equal(t, "p2", first["personId"], "rows follow team order")
}

func TestWorkloadReport(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})
	do(t, srv, http.MethodPost, "/api/state", fixture)

	rr := do(t, srv, http.MethodGet, "/api/analytics/workload?from=2024-01-10&weeks=2", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var rows []struct {
		PersonID string `json:"personId"`
		Weeks    []struct {
			Week      string `json:"week"`
			Label     string `json:"label"`
			PlanHours int    `json:"planHours"`
		} `json:"weeks"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "p2", rows[0].PersonID)
	assert.Equal(t, "p1", rows[1].PersonID)
	require.Len(t, rows[1].Weeks, 2)
	w := rows[1].Weeks[0]
	assert.Equal(t, "2024-01-08", w.Week)
	assert.Equal(t, "08.01 - 12.01", w.Label)
	assert.Equal(t, 20, w.PlanHours)
}

func TestAnalyticsRejectBadQueries(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})

	for _, target := range []string{
		"/api/analytics/finance?year=abc",
		"/api/analytics/finance?year=1999",
		"/api/analytics/finance?vat=maybe",
		"/api/analytics/writeoffs?year=20244",
		"/api/analytics/workload?weeks=0",
		"/api/analytics/workload?weeks=105",
		"/api/analytics/workload?from=13/01/2024",
	} {
		t.Run(target, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, target, "").Code)
		})
	}
}

func TestSaveIsRateLimited(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{RateLimitPerMinute: 1})

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/state", fixture).Code)
	rr := do(t, srv, http.MethodPost, "/api/state", fixture)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	msg, _ := decode(t, rr)["error"].(string)
	assert.NotEmpty(t, msg)

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/state", "").Code, "reads are not limited")
}

func TestResponseHeaders(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})

	rr := do(t, srv, http.MethodGet, "/api/state", "")
	for _, h := range []string{"X-Request-ID", "X-Content-Type-Options", "Content-Security-Policy", "Access-Control-Allow-Origin"} {
		assert.NotEmpty(t, rr.Header().Get(h), h)
	}
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})
	do(t, srv, http.MethodPost, "/api/state", fixture)

	rr := do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	for _, want := range []string{"state_saves_total 1", "http_requests_total 1", `report_cache_entries{report="finance"} 0`} {
		assert.Contains(t, rr.Body.String(), want)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})
	ctx := context.Background()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, srv.Shutdown(ctx))
}
