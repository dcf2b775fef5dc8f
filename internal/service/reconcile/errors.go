package reconcile

import "errors"

var (
	// ErrInvalidSignature means the notification's signature_key does not
	// match. The sender is told to go away, never to retry.
	ErrInvalidSignature = errors.New("invalid notification signature")

	// ErrOrderNotFound means no hold carries the referenced order number.
	ErrOrderNotFound = errors.New("order not found")

	// ErrForbidden means the caller does not own the order.
	ErrForbidden = errors.New("forbidden")
)
