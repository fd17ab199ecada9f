// Package ratelimit provides token bucket rate limiting for the lab's MCP
// tools.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrLimited is returned when a tool is called faster than its limit.
var ErrLimited = errors.New("rate limit exceeded")

// Limit is a sustained rate in calls per second plus a burst. The bucket
// starts full.
type Limit struct {
	Rate  float64
	Burst int
}

// PerMinute builds a Limit of n calls per minute.
func PerMinute(n float64, burst int) Limit {
	return Limit{Rate: n / 60.0, Burst: burst}
}

// Limiter is a single token bucket. It is safe for concurrent use.
type Limiter struct {
	mu        sync.Mutex
	limit     Limit
	tokens    float64
	lastCheck time.Time
	nowFunc   func() time.Time // injectable clock for testing
}

// NewLimiter creates a full bucket for limit.
func NewLimiter(limit Limit) *Limiter {
	return newLimiter(limit, time.Now)
}

func newLimiter(limit Limit, now func() time.Time) *Limiter {
	return &Limiter{
		limit:     limit,
		tokens:    float64(limit.Burst),
		lastCheck: now(),
		nowFunc:   now,
	}
}

// Allow takes a token if one is available.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	if elapsed := now.Sub(l.lastCheck).Seconds(); elapsed > 0 {
		l.tokens += l.limit.Rate * elapsed
		if max := float64(l.limit.Burst); l.tokens > max {
			l.tokens = max
		}
		l.lastCheck = now
	}

	if l.tokens < 1.0 {
		return false
	}
	l.tokens--
	return true
}

// DefaultToolLimits are generous enough for a client playing every effect
// as fast as it can, and stop a runaway loop from flooding the archive.
var DefaultToolLimits = map[string]Limit{
	"lab_start":   PerMinute(30, 5),
	"lab_reset":   PerMinute(30, 5),
	"lab_act":     {Rate: 20, Burst: 100},
	"lab_ack":     {Rate: 20, Burst: 100},
	"lab_history": PerMinute(60, 10),
	"lab_backup":  PerMinute(5, 2),
}

// ToolLimiters holds one bucket per tool name.
type ToolLimiters struct {
	limiters map[string]*Limiter
}

// NewToolLimiters creates buckets for limits. A nil map uses
// DefaultToolLimits.
func NewToolLimiters(limits map[string]Limit) *ToolLimiters {
	if limits == nil {
		limits = DefaultToolLimits
	}
	t := &ToolLimiters{limiters: make(map[string]*Limiter, len(limits))}
	for tool, limit := range limits {
		t.limiters[tool] = NewLimiter(limit)
	}
	return t
}

// Check takes a token for tool. Tools without a limit are always allowed.
func (t *ToolLimiters) Check(tool string) error {
	if t == nil {
		return nil
	}
	l, ok := t.limiters[tool]
	if !ok {
		return nil
	}
	if !l.Allow() {
		return fmt.Errorf("%w for %s, please try again shortly", ErrLimited, tool)
	}
	return nil
}
