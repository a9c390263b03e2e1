// Package ratelimit spaces out calls to the external provider.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter blocks until the next call is allowed
type Limiter interface {
	Wait(ctx context.Context) error
}

// NewInterval returns a limiter allowing one call per interval. The first
// call passes immediately. A non-positive interval disables limiting.
func NewInterval(interval time.Duration) Limiter {
	if interval <= 0 {
		return Unlimited()
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

type unlimited struct{}

func (unlimited) Wait(ctx context.Context) error {
	return ctx.Err()
}

// Unlimited never blocks
func Unlimited() Limiter {
	return unlimited{}
}
