package httpgin

import (
	"time"

	"github.com/spkstore/checkout-go/internal/domain"
	"github.com/spkstore/checkout-go/internal/service/orders"
)

type CustomerInput struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone"`
}

type TicketItemInput struct {
	TicketID int64  `json:"ticket_id" binding:"required,gt=0"`
	Name     string `json:"name" binding:"required"`
	Price    int64  `json:"price" binding:"required,gte=0"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
	Date     string `json:"date" binding:"required"`
	TimeSlot string `json:"time_slot" binding:"required"`
}

type ProductItemInput struct {
	VariantID int64  `json:"variant_id" binding:"required,gt=0"`
	Name      string `json:"name" binding:"required"`
	Price     int64  `json:"price" binding:"required,gte=0"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

type CreateTicketOrderRequest struct {
	Customer CustomerInput     `json:"customer" binding:"required"`
	Items    []TicketItemInput `json:"items" binding:"required,min=1,dive"`
}

type CreateProductOrderRequest struct {
	Customer CustomerInput      `json:"customer" binding:"required"`
	Items    []ProductItemInput `json:"items" binding:"required,min=1,dive"`
}

type CheckoutResponse struct {
	OrderNumber      string    `json:"order_number"`
	Token            string    `json:"token"`
	RedirectURL      string    `json:"redirect_url"`
	PaymentExpiresAt time.Time `json:"payment_expires_at"`
}

// webhookPayload mirrors the gateway's notification body. status_code and
// gross_amount arrive as either strings or numbers depending on the sender's
// serializer, hence the any fields.
type webhookPayload struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	StatusCode        any    `json:"status_code"`
	GrossAmount       any    `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
}

type CompletePickupRequest struct {
	PickupCode  string `json:"pickup_code" binding:"required"`
	CompletedBy string `json:"completed_by"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type OrderItemResponse struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice int64   `json:"unit_price"`
	Subtotal  int64   `json:"subtotal"`
	VariantID int64   `json:"variant_id,omitempty"`
	TicketID  int64   `json:"ticket_id,omitempty"`
	Date      string  `json:"date,omitempty"`
	TimeSlot  *string `json:"time_slot,omitempty"`
}

type IssuedTicketResponse struct {
	TicketCode string  `json:"ticket_code"`
	TicketID   int64   `json:"ticket_id"`
	ValidDate  string  `json:"valid_date"`
	TimeSlot   *string `json:"time_slot"`
	Status     string  `json:"status"`
}

type OrderResponse struct {
	OrderNumber     string                 `json:"order_number"`
	Kind            string                 `json:"kind"`
	PaymentStatus   string                 `json:"payment_status"`
	Status          string                 `json:"status"`
	Total           int64                  `json:"total"`
	Items           []OrderItemResponse    `json:"items"`
	PaymentToken    string                 `json:"payment_token,omitempty"`
	PaymentURL      string                 `json:"payment_url,omitempty"`
	PaymentExpires  time.Time              `json:"payment_expires_at"`
	PaidAt          *time.Time             `json:"paid_at,omitempty"`
	PickupCode      string                 `json:"pickup_code,omitempty"`
	PickupStatus    string                 `json:"pickup_status,omitempty"`
	PickupExpiresAt *time.Time             `json:"pickup_expires_at,omitempty"`
	Tickets         []IssuedTicketResponse `json:"tickets,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

func holdToResponse(h *domain.Hold, tickets []domain.IssuedTicket) OrderResponse {
	out := OrderResponse{
		OrderNumber:     h.OrderNumber,
		Kind:            string(h.Kind),
		PaymentStatus:   string(h.PaymentStatus),
		Status:          string(h.Status),
		Total:           h.Total,
		PaymentToken:    h.PaymentToken,
		PaymentURL:      h.PaymentURL,
		PaymentExpires:  h.PaymentExpires,
		PaidAt:          h.PaidAt,
		PickupCode:      h.PickupCode,
		PickupStatus:    string(h.PickupStatus),
		PickupExpiresAt: h.PickupExpiresAt,
		CreatedAt:       h.CreatedAt,
	}
	for _, it := range h.Items {
		out.Items = append(out.Items, OrderItemResponse{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
			VariantID: it.VariantID,
			TicketID:  it.TicketID,
			Date:      it.Date,
			TimeSlot:  it.TimeSlot,
		})
	}
	for _, t := range tickets {
		out.Tickets = append(out.Tickets, IssuedTicketResponse{
			TicketCode: t.TicketCode,
			TicketID:   t.TicketID,
			ValidDate:  t.ValidDate,
			TimeSlot:   t.TimeSlot,
			Status:     t.Status,
		})
	}

	return out
}

func orderToResponse(o *orders.Order) OrderResponse {
	return holdToResponse(o.Hold, o.Tickets)
}
