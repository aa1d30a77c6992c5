package toolkit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttler is a token-bucket limiter for one provider. Acquire blocks until
// a token is available or the context ends.
type Throttler struct {
	limiter *rate.Limiter
}

// NewThrottler builds a throttler allowing capacity tokens, refilled at
// refillPerSecond.
func NewThrottler(capacity int, refillPerSecond float64) *Throttler {
	return &Throttler{limiter: rate.NewLimiter(rate.Limit(refillPerSecond), capacity)}
}

// Acquire blocks until n tokens are available.
func (t *Throttler) Acquire(ctx context.Context, n int) error {
	return t.limiter.WaitN(ctx, n)
}

// TryAcquire takes n tokens without blocking, reporting whether it succeeded.
func (t *Throttler) TryAcquire(n int) bool {
	return t.limiter.AllowN(time.Now(), n)
}

// ThrottleSet maps provider names to throttlers, creating per-provider
// limiters lazily from the known defaults.
type ThrottleSet struct {
	mu        sync.Mutex
	limiters  map[string]*Throttler
	overrides map[string]ThrottleLimit
}

// ThrottleLimit describes one provider's budget.
type ThrottleLimit struct {
	Capacity        int
	RefillPerSecond float64
}

// Default provider budgets, in requests per window translated to refill rates.
var defaultThrottleLimits = map[string]ThrottleLimit{
	"openai":    {Capacity: 60, RefillPerSecond: 1.0},
	"anthropic": {Capacity: 40, RefillPerSecond: 0.67},
	"vertex":    {Capacity: 600, RefillPerSecond: 10.0},
}

// NewThrottleSet builds a set with the default provider budgets, optionally
// overridden per provider.
func NewThrottleSet(overrides map[string]ThrottleLimit) *ThrottleSet {
	return &ThrottleSet{
		limiters:  make(map[string]*Throttler),
		overrides: overrides,
	}
}

// For returns the throttler for provider, creating it on first use. Unknown
// providers get the openai budget.
func (s *ThrottleSet) For(provider string) *Throttler {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.limiters[provider]; ok {
		return t
	}
	limit, ok := s.overrides[provider]
	if !ok {
		limit, ok = defaultThrottleLimits[provider]
		if !ok {
			limit = defaultThrottleLimits["openai"]
		}
	}
	t := NewThrottler(limit.Capacity, limit.RefillPerSecond)
	s.limiters[provider] = t
	return t
}

// Acquire takes one token from the provider's throttler.
func (s *ThrottleSet) Acquire(ctx context.Context, provider string) error {
	if err := s.For(provider).Acquire(ctx, 1); err != nil {
		return fmt.Errorf("throttle %s: %w", provider, err)
	}
	return nil
}
