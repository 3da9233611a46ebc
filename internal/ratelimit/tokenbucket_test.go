package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketfeed/internal/ratelimit"
)

func TestTokenBucket_BurstThenThrottle(t *testing.T) {
	t.Parallel()

	// two tokens of burst are free; the third must wait for refill
	tb := ratelimit.NewTokenBucket(10, 2)

	start := time.Now()
	require.NoError(t, tb.Wait(context.Background()))
	require.NoError(t, tb.Wait(context.Background()))
	require.Less(t, time.Since(start), 50*time.Millisecond)

	require.NoError(t, tb.Wait(context.Background()))
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestTokenBucket_ContextCancel(t *testing.T) {
	t.Parallel()

	tb := ratelimit.NewTokenBucket(0.001, 1)
	require.NoError(t, tb.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := tb.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMinInterval(t *testing.T) {
	t.Parallel()

	m := &ratelimit.MinInterval{Interval: 40 * time.Millisecond}

	start := time.Now()
	require.NoError(t, m.Wait(context.Background()))
	require.NoError(t, m.Wait(context.Background()))
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestMinInterval_ZeroIsNoop(t *testing.T) {
	t.Parallel()

	m := &ratelimit.MinInterval{}
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, m.Wait(context.Background()))
	}
	require.Less(t, time.Since(start), 50*time.Millisecond)
}
