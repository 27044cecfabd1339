package engine

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrRateLimited marks an upstream throttling response. Calls failing with it
// are retried after the shared cooldown; anything else fails fast.
var ErrRateLimited = errors.New("rate limited")

// StatusError wraps an HTTP status code from an upstream service.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return http.StatusText(e.Code)
}

// CooldownConfig controls the rate-limit call wrapper.
type CooldownConfig struct {
	Interval    time.Duration // how long to cool down after a throttle
	MaxAttempts int           // total attempts per call, including the first
}

// DefaultCooldownConfig matches the upstream quotas the engine talks to.
var DefaultCooldownConfig = CooldownConfig{
	Interval:    180 * time.Second,
	MaxAttempts: 5,
}

// CooldownGate is the shared throttle state for one upstream service.
// At most one cooldown is in flight per gate; callers that hit a rate limit
// while a cooldown is already active wait on it instead of starting another.
// Construct one per process per upstream and inject it into call sites.
type CooldownGate struct {
	mu    sync.Mutex
	until time.Time
}

// NewCooldownGate returns a gate in the calling state.
func NewCooldownGate() *CooldownGate {
	return &CooldownGate{}
}

// CoolingDown reports whether the gate is currently in a cooldown.
func (g *CooldownGate) CoolingDown() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return time.Now().Before(g.until)
}

// wait blocks until any active cooldown elapses or ctx is done.
func (g *CooldownGate) wait(ctx context.Context) error {
	g.mu.Lock()
	until := g.until
	g.mu.Unlock()

	d := time.Until(until)
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// trip starts a cooldown unless one is already active.
func (g *CooldownGate) trip(interval time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	if now.Before(g.until) {
		return // existing cooldown covers us
	}
	g.until = now.Add(interval)
	metrics.Cooldowns.Add(1)
	slog.Warn("upstream rate limited, cooling down", slog.Duration("interval", interval))
}

// CallCooled invokes fn, retrying through the gate's shared cooldown when the
// failure is classified as rate limiting. Hard errors return immediately with
// a zero result. Attempts are capped so a sustained throttle cannot hang a
// request forever.
func CallCooled[T any](ctx context.Context, g *CooldownGate, cc CooldownConfig, fn func() (T, error)) (T, error) {
	var zero T
	if cc.MaxAttempts <= 0 {
		cc = DefaultCooldownConfig
	}

	var lastErr error
	for attempt := 1; attempt <= cc.MaxAttempts; attempt++ {
		if err := g.wait(ctx); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRateLimited(err) {
			return zero, err
		}
		g.trip(cc.Interval)
	}
	return zero, lastErr
}

// IsRateLimited classifies err as an upstream throttling failure.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests")
}
