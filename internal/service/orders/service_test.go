package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spkstore/checkout-go/internal/clock"
	"github.com/spkstore/checkout-go/internal/domain"
	"github.com/spkstore/checkout-go/internal/repository"
)

type fakeStore struct {
	holds   map[string]*domain.Hold
	tickets map[int64][]domain.IssuedTicket
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		holds:   map[string]*domain.Hold{},
		tickets: map[int64][]domain.IssuedTicket{},
	}
}

func (f *fakeStore) GetHoldByOrderNumber(ctx context.Context, orderNumber string) (*domain.Hold, error) {
	h, ok := f.holds[orderNumber]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (f *fakeStore) GetHoldByPickupCode(ctx context.Context, pickupCode string) (*domain.Hold, error) {
	for _, h := range f.holds {
		if h.PickupCode == pickupCode {
			cp := *h
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) ListIssuedByHold(ctx context.Context, holdID int64) ([]domain.IssuedTicket, error) {
	return f.tickets[holdID], nil
}

func (f *fakeStore) CompletePickup(ctx context.Context, holdID int64, completedBy string) (bool, error) {
	for _, h := range f.holds {
		if h.ID != holdID {
			continue
		}
		if h.PaymentStatus != domain.PaymentPaid || h.PickupStatus != domain.PickupPending {
			return false, nil
		}
		h.PickupStatus = domain.PickupCompleted
		h.Status = domain.FulfillCompleted
		return true, nil
	}
	return false, nil
}

func (f *fakeStore) SetPickupStatus(ctx context.Context, holdID int64, status domain.PickupStatus) error {
	for _, h := range f.holds {
		if h.ID == holdID {
			h.PickupStatus = status
		}
	}
	return nil
}

func paidProductHold(now time.Time) *domain.Hold {
	pickupExp := now.Add(7 * 24 * time.Hour)
	paidAt := now.Add(-time.Hour)
	return &domain.Hold{
		ID:              1,
		OrderNumber:     "PRD-1-AAAAA",
		UserID:          "user-1",
		Kind:            domain.UnitProduct,
		PaymentStatus:   domain.PaymentPaid,
		Status:          domain.FulfillProcessing,
		PaidAt:          &paidAt,
		PickupCode:      "PU-ABCD1234",
		PickupStatus:    domain.PickupPending,
		PickupExpiresAt: &pickupExp,
	}
}

func TestGetOrderOwnership(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.holds["PRD-1-AAAAA"] = paidProductHold(now)
	svc := New(store, clock.NewFixed(now))

	if _, err := svc.GetOrder(context.Background(), "user-1", "PRD-1-AAAAA", false); err != nil {
		t.Fatalf("owner lookup: %v", err)
	}

	if _, err := svc.GetOrder(context.Background(), "intruder", "PRD-1-AAAAA", false); !errors.Is(err, ErrForbidden) {
		t.Errorf("want ErrForbidden, got %v", err)
	}

	if _, err := svc.GetOrder(context.Background(), "intruder", "PRD-1-AAAAA", true); err != nil {
		t.Errorf("admin lookup should bypass ownership, got %v", err)
	}

	if _, err := svc.GetOrder(context.Background(), "user-1", "PRD-404", false); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("want ErrOrderNotFound, got %v", err)
	}
}

func TestGetOrderIncludesTicketsForPaidTicketOrders(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.holds["SPK-1-AAAAA"] = &domain.Hold{
		ID:            2,
		OrderNumber:   "SPK-1-AAAAA",
		UserID:        "user-1",
		Kind:          domain.UnitTicket,
		PaymentStatus: domain.PaymentPaid,
		Status:        domain.FulfillCompleted,
	}
	store.tickets[2] = []domain.IssuedTicket{{TicketCode: "TKT-AAAA1111-X"}}
	svc := New(store, clock.NewFixed(now))

	o, err := svc.GetOrder(context.Background(), "user-1", "SPK-1-AAAAA", false)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if len(o.Tickets) != 1 {
		t.Errorf("tickets = %d, want 1", len(o.Tickets))
	}
}

func TestCompletePickup(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.holds["PRD-1-AAAAA"] = paidProductHold(now)
	svc := New(store, clock.NewFixed(now))

	h, err := svc.CompletePickup(context.Background(), "PU-ABCD1234", "staff-1")
	if err != nil {
		t.Fatalf("CompletePickup: %v", err)
	}
	if h.PickupStatus != domain.PickupCompleted || h.Status != domain.FulfillCompleted {
		t.Errorf("hold state = %s/%s", h.PickupStatus, h.Status)
	}

	// a second scan of the same code must be refused
	if _, err := svc.CompletePickup(context.Background(), "PU-ABCD1234", "staff-1"); !errors.Is(err, ErrPickupCompleted) {
		t.Errorf("want ErrPickupCompleted, got %v", err)
	}
}

func TestCompletePickupUnpaid(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	h := paidProductHold(now)
	h.PaymentStatus = domain.PaymentPending
	store.holds["PRD-1-AAAAA"] = h
	svc := New(store, clock.NewFixed(now))

	if _, err := svc.CompletePickup(context.Background(), "PU-ABCD1234", "staff-1"); !errors.Is(err, ErrNotPaid) {
		t.Errorf("want ErrNotPaid, got %v", err)
	}
}

func TestCompletePickupExpiredWindow(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	h := paidProductHold(now)
	expired := now.Add(-time.Hour)
	h.PickupExpiresAt = &expired
	store.holds["PRD-1-AAAAA"] = h
	svc := New(store, clock.NewFixed(now))

	if _, err := svc.CompletePickup(context.Background(), "PU-ABCD1234", "staff-1"); !errors.Is(err, ErrPickupExpired) {
		t.Fatalf("want ErrPickupExpired, got %v", err)
	}
	if h.PickupStatus != domain.PickupExpired {
		t.Errorf("pickup status = %s, want expired", h.PickupStatus)
	}

	if _, err := svc.CompletePickup(context.Background(), "PU-UNKNOWN1", "staff-1"); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("want ErrOrderNotFound for unknown code, got %v", err)
	}
}
