// Package pacing spaces out calls made against a rate limited upstream.
package pacing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

var ErrInvalidRate = errors.New("token bucket needs a positive rate and burst")

// Pacer blocks until the caller may proceed. delay is the pause requested by
// the caller; implementations are free to replace it with their own policy.
type Pacer interface {
	Wait(ctx context.Context, delay time.Duration) error
}

// Fixed sleeps for exactly the requested delay.
type Fixed struct{}

func NewFixed() *Fixed {
	return &Fixed{}
}

func (*Fixed) Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// TokenBucket shares one limiter between every caller, so unrelated coins
// are only slowed down when the sustained rate is actually exceeded.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket allows perSecond calls on average with bursts of burst calls.
func NewTokenBucket(perSecond float64, burst int) (*TokenBucket, error) {
	if perSecond <= 0 || burst < 1 {
		return nil, fmt.Errorf("%w: rate=%v burst=%d", ErrInvalidRate, perSecond, burst)
	}

	return &TokenBucket{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}, nil
}

func (p *TokenBucket) Wait(ctx context.Context, _ time.Duration) error {
	return p.limiter.Wait(ctx)
}
