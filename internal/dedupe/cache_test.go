package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(capacity int, ttl time.Duration) (*Cache, *clock) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewCache(capacity, ttl)
	c.now = clk.now
	return c, clk
}

func TestCacheUnchanged(t *testing.T) {
	cache, _ := newTestCache(10, time.Minute)
	require.False(t, cache.Unchanged("stripe", "v1"))

	cache.Remember("stripe", "v1")
	require.True(t, cache.Unchanged("stripe", "v1"))
	require.False(t, cache.Unchanged("stripe", "v2"))
}

func TestCacheTTLExpiry(t *testing.T) {
	cache, clk := newTestCache(10, 20*time.Millisecond)
	cache.Remember("klarna", "v1")

	clk.t = clk.t.Add(25 * time.Millisecond)
	require.False(t, cache.Unchanged("klarna", "v1"))
}

func TestCacheCapacityEvictsOldest(t *testing.T) {
	cache, clk := newTestCache(1, time.Minute)
	cache.Remember("first", "a")
	clk.t = clk.t.Add(time.Second)
	cache.Remember("second", "b")

	require.False(t, cache.Unchanged("first", "a"))
	require.True(t, cache.Unchanged("second", "b"))
	require.Equal(t, 1, cache.Len())
}

func TestCacheRepeatedRememberKeepsLatest(t *testing.T) {
	cache, _ := newTestCache(1, time.Minute)
	for range 5 {
		cache.Remember("same", "v1")
	}
	cache.Remember("same", "v2")

	require.True(t, cache.Unchanged("same", "v2"))
	require.Equal(t, 1, cache.Len())
}
