package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidLineItem   = errors.New("invalid line item")
)

// InsufficientStockError names the line item whose reservation failed.
type InsufficientStockError struct {
	Item string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("out of stock for %s", e.Item)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

type InvalidLineItemError struct {
	Item   string
	Reason string
}

func (e *InvalidLineItemError) Error() string {
	return fmt.Sprintf("invalid line item %q: %s", e.Item, e.Reason)
}

func (e *InvalidLineItemError) Unwrap() error { return ErrInvalidLineItem }

// SessionEndedError rejects ticket checkouts whose booked session is already
// over.
type SessionEndedError struct {
	Date     string
	TimeSlot string
}

func (e *SessionEndedError) Error() string {
	return fmt.Sprintf("session %s on %s has already ended", e.TimeSlot, e.Date)
}

func (e *SessionEndedError) Unwrap() error { return ErrInvalidLineItem }
