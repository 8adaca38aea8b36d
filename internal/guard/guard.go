// Package guard holds the advisory write-admission logic: a session-scoped
// rate limiter and capacity guidance text. Counters live for the process
// lifetime and are never persisted; nothing here performs storage I/O.
package guard

import (
	"fmt"

	"github.com/memctl/memctl/internal/models"
)

const (
	// DefaultWriteCeiling is the hard per-session write limit.
	DefaultWriteCeiling = 500

	// warnFraction is the usage level at which warnings begin.
	warnFraction = 0.8

	// sessionAdviceThreshold is the write count past which batching
	// advice is emitted. Advisory only, never blocking.
	sessionAdviceThreshold = 15
)

// RateLimiter gates write volume for one session. Construct one per
// session and thread it through calls; independent instances keep tests
// independent too.
type RateLimiter struct {
	ceiling    int
	writeCount int
}

// RateLimitResult is the admission decision for one prospective write.
type RateLimitResult struct {
	Allowed bool   `json:"allowed"`
	Warning string `json:"warning,omitempty"`
}

// NewRateLimiter creates a session rate limiter. A ceiling <= 0 uses the
// default.
func NewRateLimiter(ceiling int) *RateLimiter {
	if ceiling <= 0 {
		ceiling = DefaultWriteCeiling
	}
	return &RateLimiter{ceiling: ceiling}
}

// CheckRateLimit reports whether another write is admitted. Writes are
// refused once the counter reaches the ceiling; an escalating warning is
// attached from 80% of the ceiling upward.
func (r *RateLimiter) CheckRateLimit() RateLimitResult {
	if r.writeCount >= r.ceiling {
		return RateLimitResult{
			Allowed: false,
			Warning: fmt.Sprintf("session write limit reached (%d/%d); no further writes accepted this session", r.writeCount, r.ceiling),
		}
	}

	if float64(r.writeCount) >= warnFraction*float64(r.ceiling) {
		remaining := r.ceiling - r.writeCount
		return RateLimitResult{
			Allowed: true,
			Warning: fmt.Sprintf("approaching session write limit: %d/%d used, %d remaining", r.writeCount, r.ceiling, remaining),
		}
	}

	return RateLimitResult{Allowed: true}
}

// IncrementWriteCount records one admitted write.
func (r *RateLimiter) IncrementWriteCount() {
	r.writeCount++
}

// WriteCount returns the number of writes admitted this session.
func (r *RateLimiter) WriteCount() int {
	return r.writeCount
}

// SessionWriteWarning returns batching advice once the session write count
// passes a fixed threshold, or "" below it.
func (r *RateLimiter) SessionWriteWarning() string {
	if r.writeCount <= sessionAdviceThreshold {
		return ""
	}
	return fmt.Sprintf("%d memories stored this session; consider batching related facts into fewer, richer records", r.writeCount)
}

// FormatCapacityGuidance renders the server-reported project quota as one
// of three deterministic guidance strings. A limit <= 0 means unlimited.
func FormatCapacityGuidance(c models.Capacity) string {
	limit := "unlimited"
	if c.Limit > 0 {
		limit = fmt.Sprintf("%d", c.Limit)
	}

	switch {
	case c.IsFull:
		return fmt.Sprintf("memory capacity full (%d/%s): delete or archive records before storing more", c.Used, limit)
	case c.IsApproaching:
		return fmt.Sprintf("memory capacity approaching limit (%d/%s): prefer updating existing records over creating new ones", c.Used, limit)
	default:
		return fmt.Sprintf("memory capacity available (%d/%s)", c.Used, limit)
	}
}
