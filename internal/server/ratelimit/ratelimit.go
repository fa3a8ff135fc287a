// Package ratelimit throttles the authentication endpoints with a token
// bucket per client key, backed by Redis or by process memory.
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether one more request for key may proceed. When it
// may not, retryAfter says how long until a token is available.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// Rate converts "one token per period" into tokens per second.
func Rate(period time.Duration) float64 {
	if period <= 0 {
		return 0
	}
	return float64(time.Second) / float64(period)
}

// Disabled never limits.
type Disabled struct{}

func (Disabled) Allow(context.Context, string) (bool, time.Duration, error) {
	return true, 0, nil
}
