// Package ratelimit implements a fixed-window request quota per client key
// and endpoint.
//
// The window containing t starts at t.Truncate(window). Every request in it
// increments the same counter; once the counter passes the limit further
// requests are denied until the next window begins. Bursts of up to twice
// the limit are possible across a window boundary.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Counter atomically increments the counter stored under key and returns the
// new value. A counter that did not exist starts at zero and must disappear
// after ttl.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // until the current window ends; zero when allowed
}

// Limiter admits at most limit requests per window for each (key, endpoint).
type Limiter struct {
	counter Counter
	limit   int
	window  time.Duration
	now     func() time.Time
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New returns a Limiter backed by counter.
func New(counter Counter, limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{counter: counter, limit: limit, window: window, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit returns the per-window quota.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Allow records one request for (key, endpoint) and reports whether it fits
// in the quota.
func (l *Limiter) Allow(ctx context.Context, key, endpoint string) (Decision, error) {
	now := l.now().UTC()
	start := now.Truncate(l.window)
	end := start.Add(l.window)

	count, err := l.counter.Incr(ctx, counterKey(key, endpoint, start), end.Sub(now))
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit counter: %w", err)
	}

	d := Decision{Limit: l.limit}
	if count > int64(l.limit) {
		d.RetryAfter = end.Sub(now)
		return d, nil
	}
	d.Allowed = true
	d.Remaining = l.limit - int(count)
	return d, nil
}

func counterKey(key, endpoint string, windowStart time.Time) string {
	return "ratelimit:" + endpoint + ":" + key + ":" + strconv.FormatInt(windowStart.Unix(), 10)
}
