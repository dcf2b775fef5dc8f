package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// UnitKind discriminates the two inventory unit families a hold can reserve.
type UnitKind string

const (
	UnitProduct UnitKind = "product"
	UnitTicket  UnitKind = "ticket"
)

// PaymentStatus is the hold's payment state machine. Unpaid and Pending are
// the only states a hold may leave.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentExpired  PaymentStatus = "expired"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentPaid, PaymentExpired, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// FulfillmentStatus tracks what happens to a hold after (or instead of)
// payment. Only product holds use the pickup-related states.
type FulfillmentStatus string

const (
	FulfillAwaitingPayment FulfillmentStatus = "awaiting_payment"
	FulfillProcessing      FulfillmentStatus = "processing"
	FulfillRequiresReview  FulfillmentStatus = "requires_review"
	FulfillCancelled       FulfillmentStatus = "cancelled"
	FulfillExpired         FulfillmentStatus = "expired"
	FulfillCompleted       FulfillmentStatus = "completed"
)

type PickupStatus string

const (
	PickupNone          PickupStatus = ""
	PickupPending       PickupStatus = "pending_pickup"
	PickupPendingReview PickupStatus = "pending_review"
	PickupCompleted     PickupStatus = "completed"
	PickupExpired       PickupStatus = "expired"
)

// ProductVariantStock is the ledger row for a product variant.
// available = Stock - Reserved - Sold.
type ProductVariantStock struct {
	VariantID int64
	Stock     int
	Reserved  int
	Sold      int
}

func (v ProductVariantStock) Available() int {
	return v.Stock - v.Reserved - v.Sold
}

// SlotRef identifies one ticket capacity row. A nil TimeSlot means all-day.
type SlotRef struct {
	TicketID int64
	Date     string // YYYY-MM-DD
	TimeSlot *string
}

// SlotAvailability is the ledger row for a ticket/date/time-slot.
type SlotAvailability struct {
	Slot     SlotRef
	Total    int
	Reserved int
	Sold     int
}

func (s SlotAvailability) Available() int {
	return s.Total - s.Reserved - s.Sold
}

type Customer struct {
	Name  string
	Email string
	Phone string
}

// LineItem is immutable after hold creation; UnitPrice is captured at
// reservation time and never re-derived.
type LineItem struct {
	ID        int64
	HoldID    int64
	VariantID int64   // product holds
	TicketID  int64   // ticket holds
	Date      string  // ticket holds, YYYY-MM-DD
	TimeSlot  *string // ticket holds, nil = all-day
	Name      string
	Quantity  int
	UnitPrice int64
	Subtotal  int64
}

func (li LineItem) SlotRef() SlotRef {
	return SlotRef{TicketID: li.TicketID, Date: li.Date, TimeSlot: li.TimeSlot}
}

// Hold is one checkout attempt bound to reserved inventory. Only the
// reconciler transitions it after creation, through guarded updates.
type Hold struct {
	ID            int64
	OrderNumber   string
	UserID        string
	Kind          UnitKind
	PaymentStatus PaymentStatus
	Status        FulfillmentStatus
	Total         int64
	Customer      Customer
	Items         []LineItem

	PaymentToken    string
	PaymentURL      string
	PaymentExpires  time.Time
	PaidAt          *time.Time
	ExpiredAt       *time.Time
	PickupCode      string
	PickupStatus    PickupStatus
	PickupExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PaidUpdate carries the fields stamped on a hold by the paid transition.
type PaidUpdate struct {
	Status          FulfillmentStatus
	PaidAt          time.Time
	PickupCode      string
	PickupStatus    PickupStatus
	PickupExpiresAt *time.Time
}

// IssuedTicket is created once per purchased ticket unit on the paid
// transition. A nil TimeSlot means all-day access.
type IssuedTicket struct {
	ID         uuid.UUID
	TicketCode string
	LineItemID int64
	UserID     string
	TicketID   int64
	ValidDate  string
	TimeSlot   *string
	Status     string
	CreatedAt  time.Time
}

// GatewayEvent is an inbound payment notification. It is transient input:
// nothing but the audit log persists it.
type GatewayEvent struct {
	OrderNumber       string
	TransactionStatus string
	FraudStatus       string
	StatusCode        string
	GrossAmount       string
	SignatureKey      string
	Raw               json.RawMessage
}

// AuditRecord is append-only, one per reconciliation attempt.
type AuditRecord struct {
	OrderNumber string
	EventType   string
	Payload     json.RawMessage
	Success     bool
	Error       string
	ProcessedAt time.Time
}
