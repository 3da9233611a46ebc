package engine

import (
	"context"
	"errors"
	"time"

	"marketfeed/internal/logger"
)

// errRejectedValue marks a provider answer that parsed but failed validation.
var errRejectedValue = errors.New("rejected provider value")

// RacePolicy controls what happens to losing race branches once a winner is
// accepted.
type RacePolicy string

const (
	// LetFinish abandons losers: their calls run to completion in the
	// background and their results are never read. This is the default; a
	// losing branch writes no shared state, so the wasted work is the whole
	// cost.
	LetFinish RacePolicy = "let-finish"
	// CancelOnWin cancels the context of losing branches when a winner is
	// accepted, aborting their transports early.
	CancelOnWin RacePolicy = "cancel-on-win"
)

type raceCall[T any] struct {
	name string
	call func(ctx context.Context) (T, error)
}

type raceOutcome[T any] struct {
	name  string
	value T
	err   error
}

// race dispatches every call concurrently under its own timeout and returns
// the first result that passes valid. The winner is whichever call completes
// first with an acceptable value; there is no priority bias. When no call
// produces an acceptable value, every terminal error is returned for the
// caller to classify.
func race[T any](ctx context.Context, calls []raceCall[T], timeout time.Duration, policy RacePolicy, valid func(T) bool) (T, []error) {
	var zero T
	if len(calls) == 0 {
		return zero, nil
	}

	// Branch contexts deliberately detach from the caller's cancellation
	// under LetFinish: a loser keeps running after the winner returns and is
	// simply never observed. The buffered channel lets abandoned goroutines
	// exit without a reader.
	raceCtx := ctx
	var cancelAll context.CancelFunc
	if policy == CancelOnWin {
		raceCtx, cancelAll = context.WithCancel(ctx)
		defer cancelAll()
	} else {
		raceCtx = context.WithoutCancel(ctx)
	}

	results := make(chan raceOutcome[T], len(calls))
	for _, rc := range calls {
		rc := rc
		go func() {
			callCtx, cancel := context.WithTimeout(raceCtx, timeout)
			defer cancel()
			v, err := rc.call(callCtx)
			results <- raceOutcome[T]{name: rc.name, value: v, err: err}
		}()
	}

	errs := make([]error, 0, len(calls))
	for range calls {
		select {
		case out := <-results:
			if out.err != nil {
				logger.Debugf("race: %s failed: %v", out.name, out.err)
				errs = append(errs, out.err)
				continue
			}
			if !valid(out.value) {
				logger.Debugf("race: %s returned an unusable value", out.name)
				errs = append(errs, errRejectedValue)
				continue
			}
			logger.Debugf("race: %s won", out.name)
			if cancelAll != nil {
				cancelAll()
			}
			return out.value, nil
		case <-ctx.Done():
			return zero, append(errs, ctx.Err())
		}
	}
	return zero, errs
}
