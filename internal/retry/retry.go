// Package retry wraps provider calls in a timeout-only exponential backoff.
package retry

import (
	"context"
	"strings"
	"time"

	"ttfl_tracker/ingestion/internal/metrics"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

const (
	DefaultAttempts  = 3
	DefaultBaseDelay = 5 * time.Second
)

// Policy retries an operation whose failure message indicates a timeout.
// The delay before retry k (0-based) is BaseDelay * 2^k with no jitter.
// Every other failure, and the last failure once attempts are exhausted,
// is returned unchanged.
type Policy struct {
	Name      string
	Attempts  int
	BaseDelay time.Duration

	// Timer drives the backoff sleeps. Nil uses a real timer.
	Timer backoff.Timer
}

// WithName returns a copy of the policy labelled for one call site
func (p Policy) WithName(name string) Policy {
	p.Name = name
	return p
}

// WithBaseDelay returns a copy of the policy with a different base delay
func (p Policy) WithBaseDelay(d time.Duration) Policy {
	p.BaseDelay = d
	return p
}

// IsTimeout classifies an error as transient by its message
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out")
}

func (p Policy) backOff() backoff.BackOff {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}

	if attempts == 1 {
		return &backoff.StopBackOff{}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = base << uint(attempts)
	b.MaxElapsedTime = 0

	return backoff.WithMaxRetries(b, uint64(attempts-1))
}

// Do runs op until it succeeds, fails permanently, or runs out of attempts
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !IsTimeout(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		metrics.RecordProviderRetry(p.Name)
		log.Warn().
			Err(err).
			Str("call", p.Name).
			Int("attempt", attempt).
			Dur("backoff", next).
			Msg("Provider call timed out, retrying after backoff")
	}

	return backoff.RetryNotifyWithTimer(operation, backoff.WithContext(p.backOff(), ctx), notify, p.Timer)
}

// Fetch is Do for operations that produce a value
func Fetch[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
