package midtrans

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy decides, for a failed attempt, whether to retry and after what
// delay. Kept pure so it can be unit-tested without the I/O loop.
type RetryPolicy func(attempt int, err error) (retry bool, delay time.Duration)

const (
	retryMaxAttempts = 3
	retryBaseDelay   = 200 * time.Millisecond
)

// DefaultRetryPolicy retries transport errors with exponential backoff and
// gives up after three attempts. Context cancellation is never retried.
func DefaultRetryPolicy(attempt int, err error) (bool, time.Duration) {
	if err == nil {
		return false, 0
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false, 0
	}
	if attempt >= retryMaxAttempts-1 {
		return false, 0
	}

	return true, retryBaseDelay << attempt
}
