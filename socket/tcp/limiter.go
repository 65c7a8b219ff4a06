package tcp

import (
	"context"
	"sync/atomic"

	"go.uber.org/ratelimit"
	"golang.org/x/time/rate"
)

// RecvLimiter throttles inbound frame processing with a token bucket.
// The limiter pointer is swapped atomically so configuration reloads
// never race the receive loops.
type RecvLimiter struct {
	limiter atomic.Pointer[rate.Limiter]
}

// NewRecvLimiter creates a limiter allowing limit frames per second with
// the given burst. A zero burst defaults to the limit itself.
func NewRecvLimiter(limit, burst int) *RecvLimiter {
	if burst <= 0 {
		burst = limit
	}
	l := &RecvLimiter{}
	l.limiter.Store(rate.NewLimiter(rate.Limit(limit), burst))
	return l
}

// Wait blocks until a token is available or ctx is done.
func (l *RecvLimiter) Wait(ctx context.Context) error {
	return l.limiter.Load().Wait(ctx)
}

// Reload swaps in a new rate and burst without restarting connections.
func (l *RecvLimiter) Reload(limit, burst int) {
	if burst <= 0 {
		burst = limit
	}
	l.limiter.Store(rate.NewLimiter(rate.Limit(limit), burst))
}

// FunnelLimiter is the leaky bucket alternative: instead of admitting
// bursts it spaces frames evenly across the second.
type FunnelLimiter struct {
	limiter atomic.Pointer[ratelimit.Limiter]
}

// NewFunnelLimiter creates a limiter admitting limit frames per second,
// evenly spaced.
func NewFunnelLimiter(limit int) *FunnelLimiter {
	limiter := ratelimit.New(limit)
	l := &FunnelLimiter{}
	l.limiter.Store(&limiter)
	return l
}

// Take blocks until the next frame may be processed.
func (l *FunnelLimiter) Take() {
	_ = (*l.limiter.Load()).Take()
}

// Reload swaps in a new rate.
func (l *FunnelLimiter) Reload(limit int) {
	limiter := ratelimit.New(limit)
	l.limiter.Store(&limiter)
}
