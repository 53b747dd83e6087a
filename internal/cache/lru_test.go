package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUCache_GetSet(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	_, ok := c.Get("missing")
	require.False(t, ok, "empty cache")

	c.Set("finance:2024", "a")
	c.Set("finance:2024", "b")
	got, ok := c.Get("finance:2024")
	require.True(t, ok)
	assert.Equal(t, "b", got)
	assert.Equal(t, 1, c.Size())
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a")
	c.Set("c", "3")

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	for _, k := range []string{"a", "c"} {
		_, ok := c.Get(k)
		assert.True(t, ok, "%s should still be cached", k)
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)

	c.Set("a", "1")
	c.Set("b", "2")
	clock.t = clock.t.Add(30 * time.Second)
	c.Set("c", "3")
	clock.t = clock.t.Add(45 * time.Second)

	_, ok := c.Get("a")
	assert.False(t, ok, "a should have expired")
	assert.Equal(t, 1, c.CleanExpired())
	_, ok = c.Get("c")
	assert.True(t, ok, "c should still be live")
}

func TestLRUCache_ZeroTTLNeverExpires(t *testing.T) {
	c, clock := newTestCache(10, 0)
	c.Set("a", "1")
	clock.t = clock.t.Add(24 * time.Hour)

	_, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 0, c.CleanExpired())
}

func TestLRUCache_DeleteAndPurge(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3")

	c.Delete("a")
	c.Delete("nope")
	require.Equal(t, 2, c.Size())

	c.Purge()
	require.Equal(t, 0, c.Size())
	c.Set("d", "4")
	got, ok := c.Get("d")
	assert.True(t, ok, "cache unusable after purge")
	assert.Equal(t, "4", got)
}

func TestManager_Sweep(t *testing.T) {
	c1, clock1 := newTestCache(10, time.Minute)
	c2, _ := newTestCache(10, time.Hour)
	c1.Set("a", "1")
	c2.Set("b", "2")
	clock1.t = clock1.t.Add(2 * time.Minute)

	m := NewManager()
	m.Register(c1)
	m.Register(c2)

	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, c2.Size(), "unexpired cache was swept")
}

func TestManager_StopIsIdempotent(t *testing.T) {
	m := NewManager()
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()

	done := make(chan struct{})
	go func() {
		m.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "cleanup loop did not stop")
	}
}
