package toolkit

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/agentloom/agentloom/core"
)

// BreakerInvoker wraps an Invoker with a circuit breaker so a persistently
// failing provider sheds load instead of burning retries.
type BreakerInvoker struct {
	next    core.Invoker
	breaker *gobreaker.CircuitBreaker[*core.GenerateResponse]
}

// BreakerOptions configure NewBreakerInvoker.
type BreakerOptions struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	ReadyToTrip func(counts gobreaker.Counts) bool
}

// NewBreakerInvoker wraps next. Defaults: trip after 5 consecutive failures,
// half-open after 30 seconds.
func NewBreakerInvoker(next core.Invoker, optFns ...func(o *BreakerOptions)) *BreakerInvoker {
	opts := BreakerOptions{
		Name:        "invoker",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	settings := gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: opts.MaxRequests,
		Interval:    opts.Interval,
		Timeout:     opts.Timeout,
		ReadyToTrip: opts.ReadyToTrip,
	}
	return &BreakerInvoker{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[*core.GenerateResponse](settings),
	}
}

// Generate implements core.Invoker.
func (b *BreakerInvoker) Generate(ctx context.Context, req core.GenerateRequest) (*core.GenerateResponse, error) {
	return b.breaker.Execute(func() (*core.GenerateResponse, error) {
		return b.next.Generate(ctx, req)
	})
}

// State reports the breaker's current state.
func (b *BreakerInvoker) State() gobreaker.State {
	return b.breaker.State()
}
