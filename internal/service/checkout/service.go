package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spkstore/checkout-go/internal/clock"
	"github.com/spkstore/checkout-go/internal/domain"
	"github.com/spkstore/checkout-go/internal/gateway/midtrans"
	"github.com/spkstore/checkout-go/internal/repository"
	"github.com/spkstore/checkout-go/internal/uow"
)

// Store is the slice of the persistence layer checkout needs. Reservations
// and the hold insert run inside one WithTx call, so a failed reservation
// aborts the whole attempt with nothing left behind.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	VariantStock(ctx context.Context, variantID int64) (domain.ProductVariantStock, error)
	ReserveStock(ctx context.Context, variantID int64, qty int) error
	ReleaseStock(ctx context.Context, variantID int64, qty int) error
	SlotAvailability(ctx context.Context, ref domain.SlotRef) (domain.SlotAvailability, error)
	ReserveCapacity(ctx context.Context, ref domain.SlotRef, qty int) error
	ReleaseCapacity(ctx context.Context, ref domain.SlotRef, qty int) error

	CreateHold(ctx context.Context, h *domain.Hold) error
	DeleteHold(ctx context.Context, holdID int64) error
	SetPaymentRef(ctx context.Context, holdID int64, token, redirectURL string) error
}

// Gateway mints payable tokens.
type Gateway interface {
	CreateTransaction(ctx context.Context, in midtrans.CreateTransactionInput) (midtrans.Transaction, error)
}

// Cache invalidation hooks, run after commit.
type Cache interface {
	InvalidateSlot(ctx context.Context, ticketID int64, date string) error
	InvalidateVariant(ctx context.Context, variantID int64) error
}

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, int64, time.Duration, error)
}

type Config struct {
	// FinishBaseURL is where the gateway sends the customer after paying.
	FinishBaseURL string
}

type Service struct {
	store   Store
	gw      Gateway
	cache   Cache
	limiter Limiter
	uow     *uow.UoW
	clk     clock.Clock
	cfg     Config
}

func New(
	store Store,
	gw Gateway,
	cache Cache,
	limiter Limiter,
	clk clock.Clock,
	cfg Config,
) *Service {
	return &Service{
		store:   store,
		gw:      gw,
		cache:   cache,
		limiter: limiter,
		uow:     uow.NewUoW(store),
		clk:     clk,
		cfg:     cfg,
	}
}

type TicketItem struct {
	TicketID int64
	Name     string
	Price    int64
	Quantity int
	Date     string // YYYY-MM-DD
	TimeSlot string // HH:MM or "all-day"
}

type ProductItem struct {
	VariantID int64
	Name      string
	Price     int64
	Quantity  int
}

// Result is what the storefront needs to hand the customer to the hosted
// payment page.
type Result struct {
	OrderNumber    string
	HoldID         int64
	Token          string
	RedirectURL    string
	PaymentExpires time.Time
}

// CreateTicketOrder reserves slot capacity and creates an unpaid hold plus a
// payable token, all-or-nothing.
//
// Returns:
//   - checkout.ErrInvalidLineItem (or SessionEndedError) on bad input.
//   - checkout.ErrInsufficientStock when a slot cannot cover the quantity.
//   - midtrans.ErrUnavailable when the gateway call fails; reservations are
//     rolled back before it is returned.
func (s *Service) CreateTicketOrder(
	ctx context.Context,
	userID string,
	customer domain.Customer,
	items []TicketItem,
	rlKey string,
) (*Result, error) {
	const op = "service.checkout.CreateTicketOrder"

	if len(items) == 0 {
		return nil, fmt.Errorf("%s:%w", op, &InvalidLineItemError{Reason: "no items"})
	}

	if err := s.allow(ctx, rlKey); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	now := s.clk.Now()

	var earliestEnd time.Time
	for _, it := range items {
		if it.TicketID <= 0 || it.Quantity <= 0 || it.Price < 0 {
			return nil, fmt.Errorf("%s:%w", op, &InvalidLineItemError{Item: it.Name, Reason: "bad quantity, price or ticket"})
		}
		if it.TimeSlot == domain.AllDaySlot {
			continue
		}

		end, err := domain.SessionEnd(it.Date, it.TimeSlot)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, &InvalidLineItemError{Item: it.Name, Reason: "bad date or time slot"})
		}
		if now.After(end) {
			return nil, fmt.Errorf("%s:%w", op, &SessionEndedError{Date: it.Date, TimeSlot: it.TimeSlot})
		}
		if earliestEnd.IsZero() || end.Before(earliestEnd) {
			earliestEnd = end
		}
	}

	window := ticketPaymentWindow(now, earliestEnd)

	hold := &domain.Hold{
		OrderNumber:    newOrderNumber("SPK", now),
		UserID:         userID,
		Kind:           domain.UnitTicket,
		PaymentStatus:  domain.PaymentUnpaid,
		Status:         domain.FulfillAwaitingPayment,
		Customer:       customer,
		PaymentExpires: now.Add(window),
	}
	for _, it := range items {
		var slot *string
		if it.TimeSlot != domain.AllDaySlot {
			ts := it.TimeSlot
			slot = &ts
		}
		hold.Items = append(hold.Items, domain.LineItem{
			TicketID:  it.TicketID,
			Date:      it.Date,
			TimeSlot:  slot,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
			Subtotal:  it.Price * int64(it.Quantity),
		})
		hold.Total += it.Price * int64(it.Quantity)
	}

	err := s.uow.Do(ctx, func(ctx context.Context, after func(uow.AfterCommit)) error {
		for i, it := range hold.Items {
			if err := s.store.ReserveCapacity(ctx, it.SlotRef(), it.Quantity); err != nil {
				return reservationErr(op, items[i].Name, err)
			}
			ref := it.SlotRef()
			after(func(ctx context.Context) {
				_ = s.cache.InvalidateSlot(ctx, ref.TicketID, ref.Date)
			})
		}

		return s.store.CreateHold(ctx, hold)
	})
	if err != nil {
		return nil, err
	}

	return s.mintToken(ctx, op, hold, int(window.Minutes()),
		s.cfg.FinishBaseURL+"/booking-success?order_id="+hold.OrderNumber)
}

// CreateProductOrder is the product-variant counterpart: tier-based payment
// window, stock reservations, same rollback semantics.
func (s *Service) CreateProductOrder(
	ctx context.Context,
	userID string,
	customer domain.Customer,
	items []ProductItem,
	rlKey string,
) (*Result, error) {
	const op = "service.checkout.CreateProductOrder"

	if len(items) == 0 {
		return nil, fmt.Errorf("%s:%w", op, &InvalidLineItemError{Reason: "no items"})
	}

	if err := s.allow(ctx, rlKey); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	for _, it := range items {
		if it.VariantID <= 0 || it.Quantity <= 0 || it.Price < 0 {
			return nil, fmt.Errorf("%s:%w", op, &InvalidLineItemError{Item: it.Name, Reason: "bad quantity, price or variant"})
		}
	}

	now := s.clk.Now()

	hold := &domain.Hold{
		OrderNumber:   newOrderNumber("PRD", now),
		UserID:        userID,
		Kind:          domain.UnitProduct,
		PaymentStatus: domain.PaymentUnpaid,
		Status:        domain.FulfillAwaitingPayment,
		Customer:      customer,
	}
	for _, it := range items {
		hold.Items = append(hold.Items, domain.LineItem{
			VariantID: it.VariantID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
			Subtotal:  it.Price * int64(it.Quantity),
		})
		hold.Total += it.Price * int64(it.Quantity)
	}

	var window time.Duration

	err := s.uow.Do(ctx, func(ctx context.Context, after func(uow.AfterCommit)) error {
		minAvailable := -1
		for i, it := range hold.Items {
			v, err := s.store.VariantStock(ctx, it.VariantID)
			if err != nil {
				return reservationErr(op, items[i].Name, err)
			}
			if minAvailable < 0 || v.Available() < minAvailable {
				minAvailable = v.Available()
			}
		}

		window = productPaymentWindow(minAvailable)
		hold.PaymentExpires = now.Add(window)

		for i, it := range hold.Items {
			if err := s.store.ReserveStock(ctx, it.VariantID, it.Quantity); err != nil {
				return reservationErr(op, items[i].Name, err)
			}
			variantID := it.VariantID
			after(func(ctx context.Context) {
				_ = s.cache.InvalidateVariant(ctx, variantID)
			})
		}

		return s.store.CreateHold(ctx, hold)
	})
	if err != nil {
		return nil, err
	}

	return s.mintToken(ctx, op, hold, int(window.Minutes()),
		s.cfg.FinishBaseURL+"/order/product/success/"+hold.OrderNumber)
}

// mintToken exchanges the persisted hold for a gateway token. A gateway
// failure must not leave inventory silently reserved, so it triggers a
// compensating transaction that releases every reservation and removes the
// hold before the error is surfaced.
func (s *Service) mintToken(
	ctx context.Context,
	op string,
	hold *domain.Hold,
	expiryMinutes int,
	finishURL string,
) (*Result, error) {
	in := midtrans.CreateTransactionInput{
		OrderNumber: hold.OrderNumber,
		GrossAmount: hold.Total,
		Customer: midtrans.CustomerDetails{
			FirstName: hold.Customer.Name,
			Email:     hold.Customer.Email,
			Phone:     hold.Customer.Phone,
		},
		ExpiryMinutes: expiryMinutes,
		FinishURL:     finishURL,
	}
	for _, it := range hold.Items {
		id := fmt.Sprintf("variant-%d", it.VariantID)
		if hold.Kind == domain.UnitTicket {
			id = fmt.Sprintf("ticket-%d", it.TicketID)
		}
		in.Items = append(in.Items, midtrans.ItemDetail{
			ID:       id,
			Price:    it.UnitPrice,
			Quantity: it.Quantity,
			Name:     truncate(it.Name, 50),
		})
	}

	tx, err := s.gw.CreateTransaction(ctx, in)
	if err != nil {
		s.rollback(ctx, hold)
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := s.store.SetPaymentRef(ctx, hold.ID, tx.Token, tx.RedirectURL); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &Result{
		OrderNumber:    hold.OrderNumber,
		HoldID:         hold.ID,
		Token:          tx.Token,
		RedirectURL:    tx.RedirectURL,
		PaymentExpires: hold.PaymentExpires,
	}, nil
}

func (s *Service) rollback(ctx context.Context, hold *domain.Hold) {
	_ = s.uow.Do(ctx, func(ctx context.Context, after func(uow.AfterCommit)) error {
		for _, it := range hold.Items {
			if hold.Kind == domain.UnitTicket {
				ref := it.SlotRef()
				if err := s.store.ReleaseCapacity(ctx, ref, it.Quantity); err != nil {
					return err
				}
				after(func(ctx context.Context) {
					_ = s.cache.InvalidateSlot(ctx, ref.TicketID, ref.Date)
				})
				continue
			}

			variantID := it.VariantID
			if err := s.store.ReleaseStock(ctx, variantID, it.Quantity); err != nil {
				return err
			}
			after(func(ctx context.Context) {
				_ = s.cache.InvalidateVariant(ctx, variantID)
			})
		}

		return s.store.DeleteHold(ctx, hold.ID)
	})
}

func (s *Service) allow(ctx context.Context, rlKey string) error {
	if s.limiter == nil || rlKey == "" {
		return nil
	}

	ok, _, retry, err := s.limiter.Allow(ctx, rlKey)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("rate limited, retry in %s", retry)
	}

	return nil
}

func reservationErr(op, item string, err error) error {
	if errors.Is(err, repository.ErrInsufficientStock) {
		return fmt.Errorf("%s:%w", op, &InsufficientStockError{Item: item})
	}
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s:%w", op, &InvalidLineItemError{Item: item, Reason: "unknown unit"})
	}

	return fmt.Errorf("%s:%w", op, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
