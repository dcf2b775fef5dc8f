// Package optimistic implements bounded-retry optimistic concurrency for
// counters where losing an update under heavy contention is tolerable but
// blocking is not.
package optimistic

import "context"

// ErrConflict must be returned by the attempt function when its conditional
// write matched zero rows.
type conflictError struct{}

func (conflictError) Error() string { return "optimistic: version conflict" }

var ErrConflict error = conflictError{}

const DefaultAttempts = 3

// Retry runs attempt up to n times, stopping on the first nil or
// non-conflict error. When every attempt conflicts it returns nil: callers
// use this for reporting counters where giving up is acceptable.
func Retry(ctx context.Context, n int, attempt func(ctx context.Context) error) error {
	if n <= 0 {
		n = DefaultAttempts
	}

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := attempt(ctx)
		if err == nil {
			return nil
		}
		if err != ErrConflict {
			return err
		}
	}

	return nil
}
