package pacing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedWaitsRequestedDelay(t *testing.T) {
	pacer := NewFixed()

	start := time.Now()
	require.NoError(t, pacer.Wait(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestFixedWithoutDelayReturnsImmediately(t *testing.T) {
	pacer := NewFixed()

	start := time.Now()
	require.NoError(t, pacer.Wait(context.Background(), 0))
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestFixedStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewFixed().Wait(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenBucketIgnoresDelayWithinBurst(t *testing.T) {
	pacer, err := NewTokenBucket(1, 3)
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, pacer.Wait(context.Background(), time.Hour))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestTokenBucketThrottlesBeyondBurst(t *testing.T) {
	pacer, err := NewTokenBucket(50, 1)
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, pacer.Wait(context.Background(), 0))
	require.NoError(t, pacer.Wait(context.Background(), 0))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestTokenBucketStopsOnCancel(t *testing.T) {
	pacer, err := NewTokenBucket(0.001, 1)
	require.NoError(t, err)
	require.NoError(t, pacer.Wait(context.Background(), 0))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, pacer.Wait(ctx, 0))
}

func TestTokenBucketRejectsRateThatNeverRefills(t *testing.T) {
	tests := []struct {
		name      string
		perSecond float64
		burst     int
	}{
		{name: "zero rate", perSecond: 0, burst: 1},
		{name: "negative rate", perSecond: -1, burst: 1},
		{name: "zero burst", perSecond: 1, burst: 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			pacer, err := NewTokenBucket(test.perSecond, test.burst)
			assert.ErrorIs(t, err, ErrInvalidRate)
			assert.Nil(t, pacer)
		})
	}
}
