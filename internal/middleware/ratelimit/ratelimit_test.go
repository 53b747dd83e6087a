package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Hour})
	rl.now = clock.now
	t.Cleanup(rl.Stop)
	return rl, clock
}

func TestLimiter_Allow(t *testing.T) {
	rl, clock := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		require.True(t, rl.Allow("1.2.3.4"), "request %d rejected", i+1)
	}
	assert.False(t, rl.Allow("1.2.3.4"), "fourth request in window")
	assert.True(t, rl.Allow("5.6.7.8"), "other client")

	clock.t = clock.t.Add(30 * time.Second)
	assert.False(t, rl.Allow("1.2.3.4"), "window has not ended")
	assert.Equal(t, 30, rl.RetryAfter("1.2.3.4"))

	clock.t = clock.t.Add(30 * time.Second)
	assert.True(t, rl.Allow("1.2.3.4"), "new window")

	m := rl.GetMetrics()
	assert.EqualValues(t, 2, m.TotalHits)
	assert.EqualValues(t, 2, m.ClientCount)
}

func TestLimiter_SteadyTrafficStillLimited(t *testing.T) {
	rl, clock := newTestLimiter(t, 5)

	allowed := 0
	for i := 0; i < 10; i++ {
		if rl.Allow("c") {
			allowed++
		}
		clock.t = clock.t.Add(5 * time.Second)
	}
	assert.Equal(t, 5, allowed, "allowed in one window")
}

func TestLimiter_CleanupStaleEntries(t *testing.T) {
	rl, clock := newTestLimiter(t, 5)
	rl.Allow("old")
	clock.t = clock.t.Add(11 * time.Minute)
	rl.Allow("new")

	assert.Equal(t, 1, rl.cleanupStaleEntries())
	assert.Equal(t, 1, rl.ActiveClients())
}

func TestLimiter_Defaults(t *testing.T) {
	rl := NewLimiter(Config{})
	defer rl.Stop()
	assert.Equal(t, 60, rl.requestsPerMinute)
	assert.Equal(t, 5*time.Minute, rl.cleanupInterval)
	rl.Stop()
}

func TestLimiter_Middleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	ip := func(*http.Request) string { return "9.9.9.9" }

	tests := []struct {
		name    string
		onLimit func(http.ResponseWriter, *http.Request)
		want    int
	}{
		{"default handler", nil, http.StatusTooManyRequests},
		{"custom handler", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := rl.Middleware(ip, tt.onLimit)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			}))

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/state", nil))
			require.Contains(t, []int{http.StatusNoContent, tt.want}, rr.Code, "first status")

			rr = httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/state", nil))
			assert.Equal(t, tt.want, rr.Code)
			assert.Equal(t, "60", rr.Header().Get("Retry-After"))
		})
	}
}
