package toolkit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottlerBurstCapacity(t *testing.T) {
	th := NewThrottler(3, 0.001) // effectively no refill during the test
	for i := 0; i < 3; i++ {
		assert.True(t, th.TryAcquire(1), "token %d within capacity", i)
	}
	assert.False(t, th.TryAcquire(1), "bucket drained")
}

func TestThrottlerAcquireCanceled(t *testing.T) {
	th := NewThrottler(1, 0.001)
	require.NoError(t, th.Acquire(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := th.Acquire(ctx, 1)
	assert.Error(t, err, "refill is too slow for the deadline")
}

func TestThrottleSetDefaults(t *testing.T) {
	s := NewThrottleSet(nil)
	openai := s.For("openai")
	assert.Same(t, openai, s.For("openai"), "limiters are cached per provider")

	unknown := s.For("some-new-provider")
	assert.NotNil(t, unknown, "unknown providers fall back to a default budget")
}

func TestThrottleSetOverride(t *testing.T) {
	s := NewThrottleSet(map[string]ThrottleLimit{
		"openai": {Capacity: 1, RefillPerSecond: 0.001},
	})
	th := s.For("openai")
	assert.True(t, th.TryAcquire(1))
	assert.False(t, th.TryAcquire(1), "override capacity of one")
}

func TestThrottleSetAcquire(t *testing.T) {
	s := NewThrottleSet(nil)
	require.NoError(t, s.Acquire(context.Background(), "anthropic"))
}
