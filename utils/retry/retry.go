package retry

import (
	"time"
)

var (
	DefaultSleep    = 100 * time.Millisecond
	DefaultAttempts = 10
)

// Func is the function to be executed and eventually retried.
type Func func() error

// Retryable reports whether the returned error is worth another attempt.
type Retryable func(error) bool

// DoFixed runs fn until it succeeds, a non-retryable error is returned, or
// attempts is exhausted. The sleep between attempts is fixed, not exponential:
// the callers poll on a one second heartbeat and an unbounded backoff would
// stall the whole refresh cycle. attempts counts the first call too.
func DoFixed(fn Func, attempts int, sleep time.Duration, retryable Retryable) error {
	if sleep == 0 {
		sleep = DefaultSleep
	}
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}

		if retryable != nil && !retryable(err) {
			return err
		}

		// 最后一次失败不再等待
		if i == attempts-1 {
			break
		}
		time.Sleep(sleep)
	}

	return err
}
