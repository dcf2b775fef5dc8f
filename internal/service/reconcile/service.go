// Package reconcile drives the payment state machine. Gateway notifications
// and on-demand status polls both funnel into one guarded transition, so a
// hold moves unpaid/pending -> paid|expired|failed|refunded exactly once no
// matter how many times an event is delivered.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spkstore/checkout-go/internal/clock"
	"github.com/spkstore/checkout-go/internal/domain"
	"github.com/spkstore/checkout-go/internal/gateway/midtrans"
	"github.com/spkstore/checkout-go/internal/repository"
	"github.com/spkstore/checkout-go/internal/uow"
)

const defaultPickupWindow = 7 * 24 * time.Hour

// Store is the persistence slice the reconciler needs. The paid transition
// runs entirely inside one WithTx call: the status flip, the issuance recount
// and the ledger moves commit or roll back together.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	GetHoldByOrderNumber(ctx context.Context, orderNumber string) (*domain.Hold, error)
	MarkPending(ctx context.Context, holdID int64) (bool, error)
	MarkPaid(ctx context.Context, holdID int64, upd domain.PaidUpdate) (bool, error)
	MarkClosed(ctx context.Context, holdID int64, paymentStatus domain.PaymentStatus, status domain.FulfillmentStatus, expiredAt *time.Time) (bool, error)

	VariantStock(ctx context.Context, variantID int64) (domain.ProductVariantStock, error)
	CommitStock(ctx context.Context, variantID int64, qty int) error
	ReleaseStock(ctx context.Context, variantID int64, qty int) error
	ReleaseCapacity(ctx context.Context, ref domain.SlotRef, qty int) error
	IncrementSold(ctx context.Context, ref domain.SlotRef, delta int) error

	CountIssuedForItem(ctx context.Context, lineItemID int64) (int, error)
	InsertIssuedTickets(ctx context.Context, tickets []domain.IssuedTicket) error

	AppendAudit(ctx context.Context, rec domain.AuditRecord) error
}

// Gateway polls the source of truth for an order's payment state.
type Gateway interface {
	GetStatus(ctx context.Context, orderNumber string) (midtrans.TransactionStatus, error)
}

type Cache interface {
	InvalidateSlot(ctx context.Context, ticketID int64, date string) error
	InvalidateVariant(ctx context.Context, variantID int64) error
}

// Publisher broadcasts applied transitions to storefront subscribers.
type Publisher interface {
	PublishOrderChanged(ctx context.Context, orderNumber, status string) error
}

type Config struct {
	// ServerKey signs inbound notifications.
	ServerKey string
	// PickupWindow is how long a paid product order waits at the counter
	// before it lapses. Zero means the 7-day default.
	PickupWindow time.Duration
}

type Service struct {
	store Store
	gw    Gateway
	cache Cache
	pub   Publisher
	uow   *uow.UoW
	clk   clock.Clock
	cfg   Config
}

func New(
	store Store,
	gw Gateway,
	cache Cache,
	pub Publisher,
	clk clock.Clock,
	cfg Config,
) *Service {
	return &Service{
		store: store,
		gw:    gw,
		cache: cache,
		pub:   pub,
		uow:   uow.NewUoW(store),
		clk:   clk,
		cfg:   cfg,
	}
}

// HandleNotification processes one inbound gateway notification.
//
// Returns:
//   - reconcile.ErrInvalidSignature when the signature does not verify.
//   - reconcile.ErrOrderNotFound when no hold matches the order number.
//   - a storage error otherwise; the sender retries on it.
//
// A verified redelivery of an already-applied event returns nil: the guarded
// update simply finds nothing left to do.
func (s *Service) HandleNotification(ctx context.Context, ev domain.GatewayEvent) error {
	const op = "service.reconcile.HandleNotification"

	now := s.clk.Now()

	if !midtrans.VerifySignature(ev.OrderNumber, ev.StatusCode, ev.GrossAmount, ev.SignatureKey, s.cfg.ServerKey) {
		s.audit(ctx, ev.OrderNumber, "notification_rejected", ev.Raw, false, "invalid signature", now)
		return fmt.Errorf("%s:%w", op, ErrInvalidSignature)
	}

	hold, err := s.store.GetHoldByOrderNumber(ctx, ev.OrderNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.audit(ctx, ev.OrderNumber, "notification_rejected", ev.Raw, false, "order not found", now)
			return fmt.Errorf("%s:%w", op, ErrOrderNotFound)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	mapped := midtrans.MapStatus(ev.TransactionStatus, ev.FraudStatus)

	if _, err := s.apply(ctx, hold, mapped, now); err != nil {
		s.audit(ctx, ev.OrderNumber, "notification_failed", ev.Raw, false, err.Error(), now)
		return fmt.Errorf("%s:%w", op, err)
	}

	s.audit(ctx, ev.OrderNumber, "notification_processed", ev.Raw, true, "", now)

	return nil
}

// SyncStatus polls the gateway for an order's current state and applies any
// resulting transition. A pending answer for a hold past its payment deadline
// is treated as expired, so abandoned holds release their inventory the next
// time anyone looks at them.
func (s *Service) SyncStatus(ctx context.Context, userID, orderNumber string) (*domain.Hold, error) {
	const op = "service.reconcile.SyncStatus"

	hold, err := s.store.GetHoldByOrderNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	if hold.UserID != userID {
		return nil, fmt.Errorf("%s:%w", op, ErrForbidden)
	}

	if hold.PaymentStatus.Terminal() {
		return hold, nil
	}

	st, err := s.gw.GetStatus(ctx, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	now := s.clk.Now()
	mapped := midtrans.MapStatus(st.TransactionStatus, st.FraudStatus)
	if !mapped.Terminal() && now.After(hold.PaymentExpires) {
		mapped = domain.PaymentExpired
	}

	applied, err := s.apply(ctx, hold, mapped, now)
	if err != nil {
		s.audit(ctx, orderNumber, "status_sync_failed", st.Raw, false, err.Error(), now)
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	s.audit(ctx, orderNumber, "status_synced", st.Raw, true, "", now)

	if !applied {
		return hold, nil
	}

	fresh, err := s.store.GetHoldByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return fresh, nil
}

// apply routes a mapped status into the right transition. Terminal holds are
// left alone; the return reports whether this call changed anything.
func (s *Service) apply(ctx context.Context, hold *domain.Hold, mapped domain.PaymentStatus, now time.Time) (bool, error) {
	if hold.PaymentStatus.Terminal() {
		return false, nil
	}

	var (
		applied bool
		err     error
	)

	switch mapped {
	case domain.PaymentPending:
		applied, err = s.store.MarkPending(ctx, hold.ID)
	case domain.PaymentPaid:
		applied, err = s.applyPaid(ctx, hold, now)
	case domain.PaymentExpired, domain.PaymentFailed, domain.PaymentRefunded:
		applied, err = s.applyClosed(ctx, hold, mapped, now)
	default:
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if applied && s.pub != nil {
		_ = s.pub.PublishOrderChanged(ctx, hold.OrderNumber, string(mapped))
	}

	return applied, nil
}

// applyPaid runs the entire paid transition in one transaction. MarkPaid's
// guard makes it first-writer-wins: a concurrent delivery that loses the race
// sees zero rows updated and changes nothing.
func (s *Service) applyPaid(ctx context.Context, hold *domain.Hold, now time.Time) (bool, error) {
	var applied bool

	err := s.uow.Do(ctx, func(ctx context.Context, after func(uow.AfterCommit)) error {
		var err error
		if hold.Kind == domain.UnitProduct {
			applied, err = s.paidProduct(ctx, hold, now, after)
		} else {
			applied, err = s.paidTicket(ctx, hold, now, after)
		}
		return err
	})

	return applied, err
}

func (s *Service) paidProduct(
	ctx context.Context,
	hold *domain.Hold,
	now time.Time,
	after func(uow.AfterCommit),
) (bool, error) {
	// Revalidate before touching anything. Money already moved, so a
	// discrepancy must never fail the payment; it parks the order for a
	// human instead.
	var shortfall []string
	for _, it := range hold.Items {
		v, err := s.store.VariantStock(ctx, it.VariantID)
		if err != nil {
			return false, err
		}
		if v.Reserved < it.Quantity || v.Stock-v.Sold < it.Quantity {
			shortfall = append(shortfall, it.Name)
		}
	}

	pickupExpires := now.Add(s.pickupWindow())
	upd := domain.PaidUpdate{
		Status:          domain.FulfillProcessing,
		PaidAt:          now,
		PickupCode:      newPickupCode(),
		PickupStatus:    domain.PickupPending,
		PickupExpiresAt: &pickupExpires,
	}
	if len(shortfall) > 0 {
		upd.Status = domain.FulfillRequiresReview
		upd.PickupStatus = domain.PickupPendingReview
	}

	ok, err := s.store.MarkPaid(ctx, hold.ID, upd)
	if err != nil || !ok {
		return false, err
	}

	if len(shortfall) > 0 {
		// Ledger stays untouched until review resolves it.
		orderNumber := hold.OrderNumber
		reason := "stock shortfall for: " + strings.Join(shortfall, ", ")
		after(func(ctx context.Context) {
			s.audit(ctx, orderNumber, "stock_validation_failed", nil, false, reason, now)
		})
		return true, nil
	}

	for _, it := range hold.Items {
		if err := s.store.CommitStock(ctx, it.VariantID, it.Quantity); err != nil {
			return false, err
		}
		variantID := it.VariantID
		after(func(ctx context.Context) {
			if s.cache != nil {
				_ = s.cache.InvalidateVariant(ctx, variantID)
			}
		})
	}

	return true, nil
}

func (s *Service) paidTicket(
	ctx context.Context,
	hold *domain.Hold,
	now time.Time,
	after func(uow.AfterCommit),
) (bool, error) {
	ok, err := s.store.MarkPaid(ctx, hold.ID, domain.PaidUpdate{
		Status: domain.FulfillCompleted,
		PaidAt: now,
	})
	if err != nil || !ok {
		return false, err
	}

	for _, it := range hold.Items {
		existing, err := s.store.CountIssuedForItem(ctx, it.ID)
		if err != nil {
			return false, err
		}
		needed := it.Quantity - existing
		if needed <= 0 {
			continue
		}

		// A slot whose session already ended degrades to an all-day pass;
		// the customer paid, so they get in either way.
		usedSlot := it.TimeSlot
		if usedSlot != nil {
			if end, serr := domain.SessionEnd(it.Date, *usedSlot); serr == nil && now.After(end) {
				usedSlot = nil
			}
		}

		tickets := make([]domain.IssuedTicket, 0, needed)
		for i := 0; i < needed; i++ {
			tickets = append(tickets, domain.IssuedTicket{
				ID:         uuid.New(),
				TicketCode: newTicketCode(now),
				LineItemID: it.ID,
				UserID:     hold.UserID,
				TicketID:   it.TicketID,
				ValidDate:  it.Date,
				TimeSlot:   usedSlot,
				Status:     "valid",
				CreatedAt:  now,
			})
		}
		if err := s.store.InsertIssuedTickets(ctx, tickets); err != nil {
			return false, err
		}

		// Release what checkout reserved on the booked slot; the sold
		// counter moves on whichever slot the tickets actually landed on.
		if err := s.store.ReleaseCapacity(ctx, it.SlotRef(), it.Quantity); err != nil {
			return false, err
		}

		used := domain.SlotRef{TicketID: it.TicketID, Date: it.Date, TimeSlot: usedSlot}
		sold := needed
		after(func(ctx context.Context) {
			_ = s.store.IncrementSold(ctx, used, sold)
			if s.cache != nil {
				_ = s.cache.InvalidateSlot(ctx, used.TicketID, used.Date)
			}
		})
	}

	return true, nil
}

// applyClosed handles expired, failed and refunded alike: flip the hold, give
// the reserved inventory back. MarkClosed's guard means a redelivery cannot
// release the same reservation twice, and a refund arriving after paid leaves
// the hold alone (refunds of delivered orders are handled out of band).
func (s *Service) applyClosed(
	ctx context.Context,
	hold *domain.Hold,
	mapped domain.PaymentStatus,
	now time.Time,
) (bool, error) {
	status := domain.FulfillCancelled
	var expiredAt *time.Time
	if mapped == domain.PaymentExpired {
		status = domain.FulfillExpired
		expiredAt = &now
	}

	var applied bool

	err := s.uow.Do(ctx, func(ctx context.Context, after func(uow.AfterCommit)) error {
		ok, err := s.store.MarkClosed(ctx, hold.ID, mapped, status, expiredAt)
		if err != nil || !ok {
			return err
		}
		applied = true

		for _, it := range hold.Items {
			if hold.Kind == domain.UnitTicket {
				ref := it.SlotRef()
				if err := s.store.ReleaseCapacity(ctx, ref, it.Quantity); err != nil {
					return err
				}
				after(func(ctx context.Context) {
					if s.cache != nil {
						_ = s.cache.InvalidateSlot(ctx, ref.TicketID, ref.Date)
					}
				})
				continue
			}

			variantID := it.VariantID
			if err := s.store.ReleaseStock(ctx, variantID, it.Quantity); err != nil {
				return err
			}
			after(func(ctx context.Context) {
				if s.cache != nil {
					_ = s.cache.InvalidateVariant(ctx, variantID)
				}
			})
		}

		return nil
	})

	return applied, err
}

func (s *Service) pickupWindow() time.Duration {
	if s.cfg.PickupWindow > 0 {
		return s.cfg.PickupWindow
	}
	return defaultPickupWindow
}

// audit is best effort: a failed audit insert never fails the event that
// produced it.
func (s *Service) audit(ctx context.Context, orderNumber, eventType string, payload []byte, success bool, errMsg string, at time.Time) {
	_ = s.store.AppendAudit(ctx, domain.AuditRecord{
		OrderNumber: orderNumber,
		EventType:   eventType,
		Payload:     payload,
		Success:     success,
		Error:       errMsg,
		ProcessedAt: at,
	})
}
