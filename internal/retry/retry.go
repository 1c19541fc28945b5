// Package retry provides the bounded retry-with-backoff policy shared by
// embedding calls and reference downloads.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy describes a bounded exponential backoff: attempt n sleeps
// InitialInterval * BackoffCoefficient^(n-1), capped at MaxInterval, with up
// to Jitter fraction of random spread added.
type Policy struct {
	MaxAttempts        int
	InitialInterval    time.Duration
	MaxInterval        time.Duration
	BackoffCoefficient float64
	Jitter             float64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:        3,
		InitialInterval:    time.Second,
		MaxInterval:        20 * time.Second,
		BackoffCoefficient: 2,
		Jitter:             0.2,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = time.Second
	}
	if p.BackoffCoefficient < 1 {
		p.BackoffCoefficient = 2
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = 20 * time.Second
	}
	return p
}

// Delay returns the backoff before retry attempt n (1-based), without jitter.
func (p Policy) Delay(attempt int) time.Duration {
	p = p.normalized()
	d := p.InitialInterval
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.BackoffCoefficient)
		if d >= p.MaxInterval {
			return p.MaxInterval
		}
	}
	if d > p.MaxInterval {
		return p.MaxInterval
	}
	return d
}

func (p Policy) sleep(ctx context.Context, attempt int) error {
	d := p.Delay(attempt)
	if p.Jitter > 0 {
		d += time.Duration(rand.Float64() * p.Jitter * float64(d))
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs fn up to MaxAttempts times, sleeping between attempts. retryable
// decides whether an error is worth another attempt; a nil retryable retries
// everything. The last error is returned once attempts are exhausted.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error, retryable func(error) bool) error {
	p = p.normalized()
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}
		if err := p.sleep(ctx, attempt); err != nil {
			return err
		}
	}
	return lastErr
}
