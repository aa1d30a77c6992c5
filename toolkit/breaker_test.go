package toolkit

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentloom/agentloom/core"
)

type flakyInvoker struct {
	err   error
	calls int
}

func (f *flakyInvoker) Generate(context.Context, core.GenerateRequest) (*core.GenerateResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &core.GenerateResponse{Content: "ok"}, nil
}

func TestBreakerPassesThrough(t *testing.T) {
	b := NewBreakerInvoker(&flakyInvoker{})
	resp, err := b.Generate(context.Background(), core.GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyInvoker{err: errors.New("down")}
	b := NewBreakerInvoker(inner, func(o *BreakerOptions) {
		o.ReadyToTrip = func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 2 }
	})

	for i := 0; i < 2; i++ {
		_, err := b.Generate(context.Background(), core.GenerateRequest{})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	// Open breaker sheds load without touching the provider.
	before := inner.calls
	_, err := b.Generate(context.Background(), core.GenerateRequest{})
	assert.Error(t, err)
	assert.Equal(t, before, inner.calls)
}
