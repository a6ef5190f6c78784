package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCache_GetSet(t *testing.T) {
	c := New(10)

	c.Set("k1", []byte("v1"), time.Minute)

	got, ok := c.Get("k1")
	assert.True(t, ok)
	assert.Equal(t, []byte("v1"), got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestTTLCache_Expiry(t *testing.T) {
	c := New(10)

	c.Set("k1", []byte("v1"), -time.Second)

	_, ok := c.Get("k1")
	assert.False(t, ok)
	assert.Zero(t, c.Size())
}

func TestTTLCache_EvictsOldestOverCapacity(t *testing.T) {
	c := New(2)

	c.Set("k1", []byte("v1"), time.Minute)
	c.Set("k2", []byte("v2"), time.Minute)
	c.Set("k3", []byte("v3"), time.Minute)

	_, ok := c.Get("k1")
	assert.False(t, ok)
	_, ok = c.Get("k2")
	assert.True(t, ok)
	_, ok = c.Get("k3")
	assert.True(t, ok)
}

func TestTTLCache_GetRefreshesRecency(t *testing.T) {
	c := New(2)

	c.Set("k1", []byte("v1"), time.Minute)
	c.Set("k2", []byte("v2"), time.Minute)

	// Touch k1 so k2 becomes the eviction candidate.
	_, _ = c.Get("k1")
	c.Set("k3", []byte("v3"), time.Minute)

	_, ok := c.Get("k1")
	assert.True(t, ok)
	_, ok = c.Get("k2")
	assert.False(t, ok)
}

func TestTTLCache_DeletePrefix(t *testing.T) {
	c := New(10)

	c.Set("dashboard:2025-01", []byte("a"), time.Minute)
	c.Set("dashboard:2025-02", []byte("b"), time.Minute)
	c.Set("report:2025-01", []byte("c"), time.Minute)

	removed := c.DeletePrefix("dashboard:")
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Size())

	_, ok := c.Get("report:2025-01")
	assert.True(t, ok)
}

func TestTTLCache_CleanExpired(t *testing.T) {
	c := New(10)

	c.Set("fresh", []byte("a"), time.Minute)
	c.Set("stale1", []byte("b"), -time.Second)
	c.Set("stale2", []byte("c"), -time.Second)

	assert.Equal(t, 2, c.CleanExpired())
	assert.Equal(t, 1, c.Size())
}

func TestJanitor_CleansRegisteredCaches(t *testing.T) {
	c := New(10)
	c.Set("stale", []byte("a"), -time.Second)

	j := NewJanitor()
	j.Register(c)
	j.Start(5 * time.Millisecond)
	defer j.Stop()

	assert.Eventually(t, func() bool {
		return c.Size() == 0
	}, time.Second, 5*time.Millisecond)
}
