package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spkstore/checkout-go/internal/clock"
	"github.com/spkstore/checkout-go/internal/domain"
	"github.com/spkstore/checkout-go/internal/gateway/midtrans"
	"github.com/spkstore/checkout-go/internal/repository"
)

const serverKey = "SB-Mid-server-test"

type slotKey struct {
	ticketID int64
	date     string
	slot     string
}

func keyOf(ref domain.SlotRef) slotKey {
	s := "all-day"
	if ref.TimeSlot != nil {
		s = *ref.TimeSlot
	}
	return slotKey{ticketID: ref.TicketID, date: ref.Date, slot: s}
}

type fakeStore struct {
	holds    map[string]*domain.Hold
	variants map[int64]domain.ProductVariantStock

	committed     map[int64]int
	releasedStock map[int64]int
	releasedCap   map[slotKey]int
	soldInc       map[slotKey]int
	issuedCount   map[int64]int
	inserted      []domain.IssuedTicket
	audits        []domain.AuditRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		holds:         map[string]*domain.Hold{},
		variants:      map[int64]domain.ProductVariantStock{},
		committed:     map[int64]int{},
		releasedStock: map[int64]int{},
		releasedCap:   map[slotKey]int{},
		soldInc:       map[slotKey]int{},
		issuedCount:   map[int64]int{},
	}
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeStore) GetHoldByOrderNumber(ctx context.Context, orderNumber string) (*domain.Hold, error) {
	h, ok := f.holds[orderNumber]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (f *fakeStore) byID(holdID int64) *domain.Hold {
	for _, h := range f.holds {
		if h.ID == holdID {
			return h
		}
	}
	return nil
}

func (f *fakeStore) MarkPending(ctx context.Context, holdID int64) (bool, error) {
	h := f.byID(holdID)
	if h == nil || h.PaymentStatus.Terminal() {
		return false, nil
	}
	h.PaymentStatus = domain.PaymentPending
	return true, nil
}

func (f *fakeStore) MarkPaid(ctx context.Context, holdID int64, upd domain.PaidUpdate) (bool, error) {
	h := f.byID(holdID)
	if h == nil || h.PaymentStatus.Terminal() {
		return false, nil
	}
	h.PaymentStatus = domain.PaymentPaid
	h.Status = upd.Status
	paidAt := upd.PaidAt
	h.PaidAt = &paidAt
	h.PickupCode = upd.PickupCode
	h.PickupStatus = upd.PickupStatus
	h.PickupExpiresAt = upd.PickupExpiresAt
	return true, nil
}

func (f *fakeStore) MarkClosed(
	ctx context.Context,
	holdID int64,
	paymentStatus domain.PaymentStatus,
	status domain.FulfillmentStatus,
	expiredAt *time.Time,
) (bool, error) {
	h := f.byID(holdID)
	if h == nil || h.PaymentStatus.Terminal() {
		return false, nil
	}
	h.PaymentStatus = paymentStatus
	h.Status = status
	h.ExpiredAt = expiredAt
	return true, nil
}

func (f *fakeStore) VariantStock(ctx context.Context, variantID int64) (domain.ProductVariantStock, error) {
	v, ok := f.variants[variantID]
	if !ok {
		return domain.ProductVariantStock{}, repository.ErrNotFound
	}
	return v, nil
}

func (f *fakeStore) CommitStock(ctx context.Context, variantID int64, qty int) error {
	f.committed[variantID] += qty
	v := f.variants[variantID]
	v.Reserved -= qty
	v.Sold += qty
	f.variants[variantID] = v
	return nil
}

func (f *fakeStore) ReleaseStock(ctx context.Context, variantID int64, qty int) error {
	f.releasedStock[variantID] += qty
	return nil
}

func (f *fakeStore) ReleaseCapacity(ctx context.Context, ref domain.SlotRef, qty int) error {
	f.releasedCap[keyOf(ref)] += qty
	return nil
}

func (f *fakeStore) IncrementSold(ctx context.Context, ref domain.SlotRef, delta int) error {
	f.soldInc[keyOf(ref)] += delta
	return nil
}

func (f *fakeStore) CountIssuedForItem(ctx context.Context, lineItemID int64) (int, error) {
	return f.issuedCount[lineItemID], nil
}

func (f *fakeStore) InsertIssuedTickets(ctx context.Context, tickets []domain.IssuedTicket) error {
	f.inserted = append(f.inserted, tickets...)
	for _, t := range tickets {
		f.issuedCount[t.LineItemID]++
	}
	return nil
}

func (f *fakeStore) AppendAudit(ctx context.Context, rec domain.AuditRecord) error {
	f.audits = append(f.audits, rec)
	return nil
}

func (f *fakeStore) lastAudit() domain.AuditRecord {
	if len(f.audits) == 0 {
		return domain.AuditRecord{}
	}
	return f.audits[len(f.audits)-1]
}

func (f *fakeStore) hasAudit(eventType string) bool {
	for _, a := range f.audits {
		if a.EventType == eventType {
			return true
		}
	}
	return false
}

type fakeGateway struct {
	status midtrans.TransactionStatus
	err    error
}

func (g *fakeGateway) GetStatus(ctx context.Context, orderNumber string) (midtrans.TransactionStatus, error) {
	return g.status, g.err
}

type fakePublisher struct {
	events []string
}

func (p *fakePublisher) PublishOrderChanged(ctx context.Context, orderNumber, status string) error {
	p.events = append(p.events, orderNumber+"="+status)
	return nil
}

type fakeCache struct{}

func (fakeCache) InvalidateSlot(ctx context.Context, ticketID int64, date string) error { return nil }
func (fakeCache) InvalidateVariant(ctx context.Context, variantID int64) error          { return nil }

func newTestService(store *fakeStore, gw Gateway, now time.Time) (*Service, *fakePublisher) {
	pub := &fakePublisher{}
	svc := New(store, gw, fakeCache{}, pub, clock.NewFixed(now), Config{ServerKey: serverKey})
	return svc, pub
}

func signedEvent(order, txStatus string) domain.GatewayEvent {
	const (
		code  = "200"
		gross = "150000.00"
	)
	return domain.GatewayEvent{
		OrderNumber:       order,
		TransactionStatus: txStatus,
		StatusCode:        code,
		GrossAmount:       gross,
		SignatureKey:      midtrans.Signature(order, code, gross, serverKey),
	}
}

func productHold(order string, expires time.Time) *domain.Hold {
	return &domain.Hold{
		ID:            1,
		OrderNumber:   order,
		UserID:        "user-1",
		Kind:          domain.UnitProduct,
		PaymentStatus: domain.PaymentPending,
		Status:        domain.FulfillAwaitingPayment,
		Total:         150000,
		Items: []domain.LineItem{
			{ID: 101, HoldID: 1, VariantID: 1, Name: "Mug", Quantity: 2, UnitPrice: 50000, Subtotal: 100000},
			{ID: 102, HoldID: 1, VariantID: 2, Name: "Shirt", Quantity: 1, UnitPrice: 50000, Subtotal: 50000},
		},
		PaymentExpires: expires,
	}
}

func ticketHold(order string, slot *string, expires time.Time) *domain.Hold {
	return &domain.Hold{
		ID:            2,
		OrderNumber:   order,
		UserID:        "user-1",
		Kind:          domain.UnitTicket,
		PaymentStatus: domain.PaymentUnpaid,
		Status:        domain.FulfillAwaitingPayment,
		Total:         150000,
		Items: []domain.LineItem{
			{ID: 201, HoldID: 2, TicketID: 7, Date: "2026-03-14", TimeSlot: slot, Name: "Entry", Quantity: 3, UnitPrice: 50000, Subtotal: 150000},
		},
		PaymentExpires: expires,
	}
}

func TestHandleNotificationInvalidSignature(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	svc, _ := newTestService(store, &fakeGateway{}, now)

	ev := signedEvent("PRD-1-AAAAA", "settlement")
	ev.SignatureKey = "definitely-wrong"

	err := svc.HandleNotification(context.Background(), ev)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("want ErrInvalidSignature, got %v", err)
	}

	a := store.lastAudit()
	if a.EventType != "notification_rejected" || a.Success {
		t.Errorf("audit = %+v", a)
	}
}

func TestHandleNotificationUnknownOrder(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	svc, _ := newTestService(store, &fakeGateway{}, now)

	err := svc.HandleNotification(context.Background(), signedEvent("PRD-404-AAAAA", "settlement"))
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("want ErrOrderNotFound, got %v", err)
	}
}

func TestHandleNotificationSettlementProduct(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.holds["PRD-1-AAAAA"] = productHold("PRD-1-AAAAA", now.Add(30*time.Minute))
	store.variants[1] = domain.ProductVariantStock{VariantID: 1, Stock: 10, Reserved: 2}
	store.variants[2] = domain.ProductVariantStock{VariantID: 2, Stock: 5, Reserved: 1}
	svc, pub := newTestService(store, &fakeGateway{}, now)

	if err := svc.HandleNotification(context.Background(), signedEvent("PRD-1-AAAAA", "settlement")); err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}

	h := store.holds["PRD-1-AAAAA"]
	if h.PaymentStatus != domain.PaymentPaid || h.Status != domain.FulfillProcessing {
		t.Errorf("hold state = %s/%s", h.PaymentStatus, h.Status)
	}
	if h.PickupCode == "" || h.PickupStatus != domain.PickupPending {
		t.Errorf("pickup = %q/%s", h.PickupCode, h.PickupStatus)
	}
	if h.PickupExpiresAt == nil || !h.PickupExpiresAt.Equal(now.Add(7*24*time.Hour)) {
		t.Errorf("pickup expires = %v", h.PickupExpiresAt)
	}
	if store.committed[1] != 2 || store.committed[2] != 1 {
		t.Errorf("committed = %v", store.committed)
	}
	if len(pub.events) != 1 || pub.events[0] != "PRD-1-AAAAA=paid" {
		t.Errorf("published = %v", pub.events)
	}
	if a := store.lastAudit(); a.EventType != "notification_processed" || !a.Success {
		t.Errorf("audit = %+v", a)
	}
}

func TestHandleNotificationRedelivery(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.holds["PRD-1-AAAAA"] = productHold("PRD-1-AAAAA", now.Add(30*time.Minute))
	store.variants[1] = domain.ProductVariantStock{VariantID: 1, Stock: 10, Reserved: 2}
	store.variants[2] = domain.ProductVariantStock{VariantID: 2, Stock: 5, Reserved: 1}
	svc, pub := newTestService(store, &fakeGateway{}, now)

	ev := signedEvent("PRD-1-AAAAA", "settlement")
	if err := svc.HandleNotification(context.Background(), ev); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := svc.HandleNotification(context.Background(), ev); err != nil {
		t.Fatalf("redelivery must succeed quietly, got %v", err)
	}

	if store.committed[1] != 2 {
		t.Errorf("stock committed twice: %v", store.committed)
	}
	if len(pub.events) != 1 {
		t.Errorf("published %d events, want 1", len(pub.events))
	}
}

func TestHandleNotificationStockShortfall(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.holds["PRD-1-AAAAA"] = productHold("PRD-1-AAAAA", now.Add(30*time.Minute))
	store.variants[1] = domain.ProductVariantStock{VariantID: 1, Stock: 10, Reserved: 2}
	// reservation for the shirt vanished out from under us
	store.variants[2] = domain.ProductVariantStock{VariantID: 2, Stock: 5, Reserved: 0, Sold: 5}
	svc, _ := newTestService(store, &fakeGateway{}, now)

	if err := svc.HandleNotification(context.Background(), signedEvent("PRD-1-AAAAA", "settlement")); err != nil {
		t.Fatalf("a paid order with a discrepancy must not fail, got %v", err)
	}

	h := store.holds["PRD-1-AAAAA"]
	if h.PaymentStatus != domain.PaymentPaid || h.Status != domain.FulfillRequiresReview {
		t.Errorf("hold state = %s/%s, want paid/requires_review", h.PaymentStatus, h.Status)
	}
	if h.PickupStatus != domain.PickupPendingReview {
		t.Errorf("pickup status = %s", h.PickupStatus)
	}
	if len(store.committed) != 0 {
		t.Errorf("ledger touched despite review: %v", store.committed)
	}
	if !store.hasAudit("stock_validation_failed") {
		t.Error("missing stock_validation_failed audit entry")
	}
}

func TestHandleNotificationSettlementTicket(t *testing.T) {
	now := time.Date(2026, 3, 14, 4, 0, 0, 0, time.UTC) // 11:00 WIB
	slot := "13:00"
	store := newFakeStore()
	store.holds["SPK-1-AAAAA"] = ticketHold("SPK-1-AAAAA", &slot, now.Add(20*time.Minute))
	store.issuedCount[201] = 1 // one ticket issued by an earlier partial attempt
	svc, _ := newTestService(store, &fakeGateway{}, now)

	if err := svc.HandleNotification(context.Background(), signedEvent("SPK-1-AAAAA", "settlement")); err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}

	h := store.holds["SPK-1-AAAAA"]
	if h.PaymentStatus != domain.PaymentPaid || h.Status != domain.FulfillCompleted {
		t.Errorf("hold state = %s/%s", h.PaymentStatus, h.Status)
	}

	// 3 purchased, 1 pre-existing: exactly 2 new tickets
	if len(store.inserted) != 2 {
		t.Fatalf("issued %d tickets, want 2", len(store.inserted))
	}
	for _, tk := range store.inserted {
		if tk.TimeSlot == nil || *tk.TimeSlot != slot {
			t.Errorf("ticket slot = %v, want %s", tk.TimeSlot, slot)
		}
		if !strings.HasPrefix(tk.TicketCode, "TKT-") {
			t.Errorf("ticket code = %q", tk.TicketCode)
		}
	}

	booked := slotKey{ticketID: 7, date: "2026-03-14", slot: slot}
	if store.releasedCap[booked] != 3 {
		t.Errorf("released capacity = %d, want full reservation of 3", store.releasedCap[booked])
	}
	if store.soldInc[booked] != 2 {
		t.Errorf("sold increment = %d, want 2", store.soldInc[booked])
	}
}

func TestTicketSlotDegradesAfterSessionEnd(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) // 16:00 WIB, 10:00 session long over
	slot := "10:00"
	store := newFakeStore()
	store.holds["SPK-1-AAAAA"] = ticketHold("SPK-1-AAAAA", &slot, now.Add(20*time.Minute))
	svc, _ := newTestService(store, &fakeGateway{}, now)

	if err := svc.HandleNotification(context.Background(), signedEvent("SPK-1-AAAAA", "settlement")); err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}

	if len(store.inserted) != 3 {
		t.Fatalf("issued %d tickets, want 3", len(store.inserted))
	}
	for _, tk := range store.inserted {
		if tk.TimeSlot != nil {
			t.Errorf("ticket slot = %v, want all-day after degradation", *tk.TimeSlot)
		}
	}

	booked := slotKey{ticketID: 7, date: "2026-03-14", slot: slot}
	allDay := slotKey{ticketID: 7, date: "2026-03-14", slot: "all-day"}
	if store.releasedCap[booked] != 3 {
		t.Errorf("booked slot released = %d, want 3", store.releasedCap[booked])
	}
	if store.soldInc[allDay] != 3 {
		t.Errorf("all-day sold increment = %d, want 3", store.soldInc[allDay])
	}
	if store.soldInc[booked] != 0 {
		t.Errorf("booked slot sold increment = %d, want 0", store.soldInc[booked])
	}
}

func TestHandleNotificationExpired(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	slot := "13:00"
	store := newFakeStore()
	store.holds["SPK-1-AAAAA"] = ticketHold("SPK-1-AAAAA", &slot, now.Add(-time.Minute))
	svc, pub := newTestService(store, &fakeGateway{}, now)

	ev := signedEvent("SPK-1-AAAAA", "expire")
	if err := svc.HandleNotification(context.Background(), ev); err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}

	h := store.holds["SPK-1-AAAAA"]
	if h.PaymentStatus != domain.PaymentExpired || h.Status != domain.FulfillExpired {
		t.Errorf("hold state = %s/%s", h.PaymentStatus, h.Status)
	}
	if h.ExpiredAt == nil {
		t.Error("expired_at not stamped")
	}

	booked := slotKey{ticketID: 7, date: "2026-03-14", slot: slot}
	if store.releasedCap[booked] != 3 {
		t.Errorf("released = %d, want 3", store.releasedCap[booked])
	}

	// redelivery must not double-release
	if err := svc.HandleNotification(context.Background(), ev); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if store.releasedCap[booked] != 3 {
		t.Errorf("released after redelivery = %d, want still 3", store.releasedCap[booked])
	}
	if len(pub.events) != 1 {
		t.Errorf("published %d events, want 1", len(pub.events))
	}
}

func TestHandleNotificationDenyReleasesStock(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.holds["PRD-1-AAAAA"] = productHold("PRD-1-AAAAA", now.Add(30*time.Minute))
	svc, _ := newTestService(store, &fakeGateway{}, now)

	if err := svc.HandleNotification(context.Background(), signedEvent("PRD-1-AAAAA", "deny")); err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}

	h := store.holds["PRD-1-AAAAA"]
	if h.PaymentStatus != domain.PaymentFailed || h.Status != domain.FulfillCancelled {
		t.Errorf("hold state = %s/%s", h.PaymentStatus, h.Status)
	}
	if store.releasedStock[1] != 2 || store.releasedStock[2] != 1 {
		t.Errorf("released = %v", store.releasedStock)
	}
}

func TestRefundAfterPaidIsNoOp(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	h := productHold("PRD-1-AAAAA", now.Add(30*time.Minute))
	h.PaymentStatus = domain.PaymentPaid
	h.Status = domain.FulfillProcessing
	store.holds["PRD-1-AAAAA"] = h
	svc, pub := newTestService(store, &fakeGateway{}, now)

	if err := svc.HandleNotification(context.Background(), signedEvent("PRD-1-AAAAA", "refund")); err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}

	if h.PaymentStatus != domain.PaymentPaid {
		t.Errorf("paid hold mutated to %s", h.PaymentStatus)
	}
	if len(store.releasedStock) != 0 {
		t.Errorf("released = %v, want nothing", store.releasedStock)
	}
	if len(pub.events) != 0 {
		t.Errorf("published = %v, want nothing", pub.events)
	}
}

func TestHandleNotificationPending(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.holds["PRD-1-AAAAA"] = productHold("PRD-1-AAAAA", now.Add(30*time.Minute))
	store.holds["PRD-1-AAAAA"].PaymentStatus = domain.PaymentUnpaid
	svc, pub := newTestService(store, &fakeGateway{}, now)

	if err := svc.HandleNotification(context.Background(), signedEvent("PRD-1-AAAAA", "pending")); err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}

	if got := store.holds["PRD-1-AAAAA"].PaymentStatus; got != domain.PaymentPending {
		t.Errorf("payment status = %s, want pending", got)
	}
	if len(pub.events) != 1 || pub.events[0] != "PRD-1-AAAAA=pending" {
		t.Errorf("published = %v", pub.events)
	}
}

func TestSyncStatusForbidden(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.holds["PRD-1-AAAAA"] = productHold("PRD-1-AAAAA", now.Add(30*time.Minute))
	svc, _ := newTestService(store, &fakeGateway{}, now)

	_, err := svc.SyncStatus(context.Background(), "someone-else", "PRD-1-AAAAA")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
}

func TestSyncStatusLazyExpiry(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.holds["PRD-1-AAAAA"] = productHold("PRD-1-AAAAA", now.Add(-time.Minute))
	gw := &fakeGateway{status: midtrans.TransactionStatus{TransactionStatus: "pending"}}
	svc, _ := newTestService(store, gw, now)

	hold, err := svc.SyncStatus(context.Background(), "user-1", "PRD-1-AAAAA")
	if err != nil {
		t.Fatalf("SyncStatus: %v", err)
	}

	if hold.PaymentStatus != domain.PaymentExpired {
		t.Errorf("payment status = %s, want expired", hold.PaymentStatus)
	}
	if store.releasedStock[1] != 2 || store.releasedStock[2] != 1 {
		t.Errorf("released = %v", store.releasedStock)
	}
}

func TestSyncStatusPaid(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.holds["PRD-1-AAAAA"] = productHold("PRD-1-AAAAA", now.Add(30*time.Minute))
	store.variants[1] = domain.ProductVariantStock{VariantID: 1, Stock: 10, Reserved: 2}
	store.variants[2] = domain.ProductVariantStock{VariantID: 2, Stock: 5, Reserved: 1}
	gw := &fakeGateway{status: midtrans.TransactionStatus{TransactionStatus: "settlement"}}
	svc, _ := newTestService(store, gw, now)

	hold, err := svc.SyncStatus(context.Background(), "user-1", "PRD-1-AAAAA")
	if err != nil {
		t.Fatalf("SyncStatus: %v", err)
	}

	if hold.PaymentStatus != domain.PaymentPaid {
		t.Errorf("payment status = %s, want paid", hold.PaymentStatus)
	}
	if store.committed[1] != 2 {
		t.Errorf("committed = %v", store.committed)
	}
}

func TestSyncStatusTerminalSkipsGateway(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	h := productHold("PRD-1-AAAAA", now.Add(30*time.Minute))
	h.PaymentStatus = domain.PaymentPaid
	store.holds["PRD-1-AAAAA"] = h
	gw := &fakeGateway{err: midtrans.ErrUnavailable}
	svc, _ := newTestService(store, gw, now)

	hold, err := svc.SyncStatus(context.Background(), "user-1", "PRD-1-AAAAA")
	if err != nil {
		t.Fatalf("terminal hold must not need the gateway, got %v", err)
	}
	if hold.PaymentStatus != domain.PaymentPaid {
		t.Errorf("payment status = %s", hold.PaymentStatus)
	}
}
