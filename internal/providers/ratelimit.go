package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket refilled continuously at requestsPerMinute/60 per second.
type RateLimiter struct {
	mu sync.Mutex

	capacity   float64
	refillRate float64 // tokens per second

	tokens     float64
	lastUpdate time.Time

	consumed     int64
	waited       time.Duration
	lastThrottle time.Time
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available" yaml:"tokens_available"`
	TokensLimit     int           `json:"tokens_limit" yaml:"tokens_limit"`
	TotalConsumed   int64         `json:"total_consumed" yaml:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited" yaml:"total_waited"`
	LastThrottle    time.Time     `json:"last_throttle,omitempty" yaml:"last_throttle,omitempty"`
}

// NewRateLimiter creates a limiter allowing requestsPerMinute requests on average.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &RateLimiter{
		capacity:   float64(requestsPerMinute),
		refillRate: float64(requestsPerMinute) / 60.0,
		tokens:     float64(requestsPerMinute),
		lastUpdate: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1.0 {
			r.tokens--
			r.consumed++
			r.mu.Unlock()
			return nil
		}
		wait := time.Duration((1.0 - r.tokens) / r.refillRate * float64(time.Second))
		r.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			r.mu.Lock()
			r.waited += wait
			r.mu.Unlock()
		}
	}
}

// TryConsume takes a token without blocking.
func (r *RateLimiter) TryConsume() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	if r.tokens >= 1.0 {
		r.tokens--
		r.consumed++
		return true
	}
	return false
}

// Throttled drains the bucket after the upstream reported a rate limit.
func (r *RateLimiter) Throttled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastThrottle = time.Now()
	r.tokens = 0
}

// Status returns current limiter state.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		TokensLimit:     int(r.capacity),
		TotalConsumed:   r.consumed,
		TotalWaited:     r.waited,
		LastThrottle:    r.lastThrottle,
	}
}

// refill must be called with the lock held.
func (r *RateLimiter) refill() {
	now := time.Now()
	r.tokens += now.Sub(r.lastUpdate).Seconds() * r.refillRate
	r.lastUpdate = now
	if r.tokens > r.capacity {
		r.tokens = r.capacity
	}
}

// LimitedClient gates an LLMClient behind a RateLimiter.
type LimitedClient struct {
	LLMClient
	limiter *RateLimiter
}

// WithRateLimit wraps client so every Chat call first waits for a token.
func WithRateLimit(client LLMClient, limiter *RateLimiter) *LimitedClient {
	return &LimitedClient{LLMClient: client, limiter: limiter}
}

// Chat waits for a token, then delegates. Queue time is added to the result.
func (c *LimitedClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	queued := time.Since(start)

	result, err := c.LLMClient.Chat(ctx, req)
	if result != nil {
		result.QueueTime += queued
		result.TotalTime += queued
		if result.ErrorType == ErrorTypeRateLimit {
			c.limiter.Throttled()
		}
	}
	return result, err
}

// Limiter exposes the underlying limiter for status reporting.
func (c *LimitedClient) Limiter() *RateLimiter {
	return c.limiter
}
