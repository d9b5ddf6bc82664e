package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket bounding the rate of outbound poll operations.
// The dispatcher takes one token per poll so a large due-set cannot flood
// the monitored network in a single burst.
type Limiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// New creates a limiter allowing ratePerSecond sustained operations with
// the given burst capacity.
func New(ratePerSecond float64, burstCapacity int) *Limiter {
	return &Limiter{
		tokens:     float64(burstCapacity),
		maxTokens:  float64(burstCapacity),
		refillRate: ratePerSecond,
		lastRefill: time.Now(),
	}
}

// refill adds tokens for the time elapsed since the last refill.
// Caller must hold mu.
func (l *Limiter) refill() {
	now := time.Now()
	l.tokens += now.Sub(l.lastRefill).Seconds() * l.refillRate
	if l.tokens > l.maxTokens {
		l.tokens = l.maxTokens
	}
	l.lastRefill = now
}

// Allow consumes a token if one is available and reports whether it did
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or the context is cancelled
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		l.refill()
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}

		needed := 1 - l.tokens
		wait := time.Duration(needed / l.refillRate * float64(time.Second))
		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Tokens returns the approximate number of available tokens
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	return l.tokens
}
