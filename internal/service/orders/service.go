// Package orders covers the read and fulfillment side of a hold after
// checkout: customers look their orders up, staff complete pickups.
package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/spkstore/checkout-go/internal/clock"
	"github.com/spkstore/checkout-go/internal/domain"
	"github.com/spkstore/checkout-go/internal/repository"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrForbidden       = errors.New("forbidden")
	ErrNotPaid         = errors.New("order is not paid")
	ErrPickupCompleted = errors.New("pickup already completed")
	ErrPickupExpired   = errors.New("pickup window expired")
)

type Store interface {
	GetHoldByOrderNumber(ctx context.Context, orderNumber string) (*domain.Hold, error)
	GetHoldByPickupCode(ctx context.Context, pickupCode string) (*domain.Hold, error)
	ListIssuedByHold(ctx context.Context, holdID int64) ([]domain.IssuedTicket, error)
	CompletePickup(ctx context.Context, holdID int64, completedBy string) (bool, error)
	SetPickupStatus(ctx context.Context, holdID int64, status domain.PickupStatus) error
}

type Service struct {
	store Store
	clk   clock.Clock
}

func New(store Store, clk clock.Clock) *Service {
	return &Service{store: store, clk: clk}
}

// Order is a hold plus, for paid ticket orders, the tickets it produced.
type Order struct {
	Hold    *domain.Hold
	Tickets []domain.IssuedTicket
}

// GetOrder returns the caller's own order. Admins pass admin=true and skip
// the ownership check.
func (s *Service) GetOrder(ctx context.Context, userID, orderNumber string, admin bool) (*Order, error) {
	const op = "service.orders.GetOrder"

	hold, err := s.store.GetHoldByOrderNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	if !admin && hold.UserID != userID {
		return nil, fmt.Errorf("%s:%w", op, ErrForbidden)
	}

	out := &Order{Hold: hold}
	if hold.Kind == domain.UnitTicket && hold.PaymentStatus == domain.PaymentPaid {
		tickets, err := s.store.ListIssuedByHold(ctx, hold.ID)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		out.Tickets = tickets
	}

	return out, nil
}

// CompletePickup marks a paid product order as handed over. Looking up by
// pickup code is what the counter scanner does.
//
// Returns:
//   - orders.ErrOrderNotFound for an unknown code.
//   - orders.ErrNotPaid when payment never landed.
//   - orders.ErrPickupCompleted on a repeat scan.
//   - orders.ErrPickupExpired when the pickup window lapsed; the order is
//     flipped to expired as a side effect.
func (s *Service) CompletePickup(ctx context.Context, pickupCode, completedBy string) (*domain.Hold, error) {
	const op = "service.orders.CompletePickup"

	hold, err := s.store.GetHoldByPickupCode(ctx, pickupCode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if hold.PaymentStatus != domain.PaymentPaid {
		return nil, fmt.Errorf("%s:%w", op, ErrNotPaid)
	}
	if hold.PickupStatus == domain.PickupCompleted {
		return nil, fmt.Errorf("%s:%w", op, ErrPickupCompleted)
	}
	if hold.PickupExpiresAt != nil && s.clk.Now().After(*hold.PickupExpiresAt) {
		if hold.PickupStatus != domain.PickupExpired {
			_ = s.store.SetPickupStatus(ctx, hold.ID, domain.PickupExpired)
		}
		return nil, fmt.Errorf("%s:%w", op, ErrPickupExpired)
	}

	ok, err := s.store.CompletePickup(ctx, hold.ID, completedBy)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	if !ok {
		// Lost a race with another scan, or the order sits in review.
		return nil, fmt.Errorf("%s:%w", op, ErrPickupCompleted)
	}

	return s.store.GetHoldByOrderNumber(ctx, hold.OrderNumber)
}
