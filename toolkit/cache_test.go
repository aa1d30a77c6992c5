package toolkit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time         { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestCacheKeyStableAcrossMapOrder(t *testing.T) {
	a := CacheKey("generate", map[string]any{"model": "gpt-4o", "prompt": "hi"})
	b := CacheKey("generate", map[string]any{"prompt": "hi", "model": "gpt-4o"})
	assert.Equal(t, a, b)

	c := CacheKey("generate", map[string]any{"prompt": "hi", "model": "gpt-4o-mini"})
	assert.NotEqual(t, a, c)
}

func TestCacheGetSet(t *testing.T) {
	c := NewCache()
	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("k", "v")
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCacheTTLExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewCache(func(o *CacheOptions) {
		o.TTL = time.Minute
		o.Now = clock.now
	})

	c.Set("k", 42)
	_, ok := c.Get("k")
	require.True(t, ok)

	clock.advance(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry expired")
	assert.Equal(t, 0, c.Len())
}

func TestCacheLRUEviction(t *testing.T) {
	c := NewCache(func(o *CacheOptions) { o.MaxSize = 2 })
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a is now most recent
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCachedInvokesOnce(t *testing.T) {
	c := NewCache()
	calls := 0
	fn := Cached(c, "double", func(n int) (int, error) {
		calls++
		return n * 2, nil
	})

	for i := 0; i < 3; i++ {
		out, err := fn(21)
		require.NoError(t, err)
		assert.Equal(t, 42, out)
	}
	assert.Equal(t, 1, calls)

	out, err := fn(5)
	require.NoError(t, err)
	assert.Equal(t, 10, out)
	assert.Equal(t, 2, calls)
}
