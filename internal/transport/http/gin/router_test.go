package httpgin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spkstore/checkout-go/internal/clock"
	"github.com/spkstore/checkout-go/internal/domain"
	"github.com/spkstore/checkout-go/internal/gateway/midtrans"
	"github.com/spkstore/checkout-go/internal/repository"
	"github.com/spkstore/checkout-go/internal/service"
	"github.com/spkstore/checkout-go/internal/service/orders"
	"github.com/spkstore/checkout-go/internal/service/reconcile"
)

const testServerKey = "SB-Mid-server-test"

// webhookStore is just enough of a persistence layer to drive the
// notification endpoint end to end.
type webhookStore struct {
	holds     map[string]*domain.Hold
	committed map[int64]int
	audits    []domain.AuditRecord
}

func newWebhookStore() *webhookStore {
	return &webhookStore{
		holds:     map[string]*domain.Hold{},
		committed: map[int64]int{},
	}
}

func (f *webhookStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *webhookStore) GetHoldByOrderNumber(ctx context.Context, orderNumber string) (*domain.Hold, error) {
	h, ok := f.holds[orderNumber]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (f *webhookStore) GetHoldByPickupCode(ctx context.Context, pickupCode string) (*domain.Hold, error) {
	return nil, repository.ErrNotFound
}

func (f *webhookStore) ListIssuedByHold(ctx context.Context, holdID int64) ([]domain.IssuedTicket, error) {
	return nil, nil
}

func (f *webhookStore) CompletePickup(ctx context.Context, holdID int64, completedBy string) (bool, error) {
	return false, nil
}

func (f *webhookStore) SetPickupStatus(ctx context.Context, holdID int64, status domain.PickupStatus) error {
	return nil
}

func (f *webhookStore) MarkPending(ctx context.Context, holdID int64) (bool, error) {
	return true, nil
}

func (f *webhookStore) MarkPaid(ctx context.Context, holdID int64, upd domain.PaidUpdate) (bool, error) {
	for _, h := range f.holds {
		if h.ID == holdID && !h.PaymentStatus.Terminal() {
			h.PaymentStatus = domain.PaymentPaid
			h.Status = upd.Status
			h.PickupCode = upd.PickupCode
			h.PickupStatus = upd.PickupStatus
			return true, nil
		}
	}
	return false, nil
}

func (f *webhookStore) MarkClosed(ctx context.Context, holdID int64, ps domain.PaymentStatus, st domain.FulfillmentStatus, expiredAt *time.Time) (bool, error) {
	return true, nil
}

func (f *webhookStore) VariantStock(ctx context.Context, variantID int64) (domain.ProductVariantStock, error) {
	return domain.ProductVariantStock{VariantID: variantID, Stock: 100, Reserved: 10}, nil
}

func (f *webhookStore) CommitStock(ctx context.Context, variantID int64, qty int) error {
	f.committed[variantID] += qty
	return nil
}

func (f *webhookStore) ReleaseStock(ctx context.Context, variantID int64, qty int) error { return nil }

func (f *webhookStore) ReleaseCapacity(ctx context.Context, ref domain.SlotRef, qty int) error {
	return nil
}

func (f *webhookStore) IncrementSold(ctx context.Context, ref domain.SlotRef, delta int) error {
	return nil
}

func (f *webhookStore) CountIssuedForItem(ctx context.Context, lineItemID int64) (int, error) {
	return 0, nil
}

func (f *webhookStore) InsertIssuedTickets(ctx context.Context, tickets []domain.IssuedTicket) error {
	return nil
}

func (f *webhookStore) AppendAudit(ctx context.Context, rec domain.AuditRecord) error {
	f.audits = append(f.audits, rec)
	return nil
}

func newTestRouter(store *webhookStore, now time.Time) *gin.Engine {
	gin.SetMode(gin.TestMode)

	clk := clock.NewFixed(now)
	svcs := &service.Services{
		Reconcile: reconcile.New(store, nil, nil, nil, clk, reconcile.Config{ServerKey: testServerKey}),
		Orders:    orders.New(store, clk),
	}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	return NewRouter(svcs, nil, logger)
}

func notify(t *testing.T, r *gin.Engine, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()

	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/payments/notifications", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestWebhookInvalidSignature(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newWebhookStore()
	store.holds["PRD-1-AAAAA"] = &domain.Hold{
		ID: 1, OrderNumber: "PRD-1-AAAAA", UserID: "user-1",
		Kind: domain.UnitProduct, PaymentStatus: domain.PaymentPending,
		PaymentExpires: now.Add(30 * time.Minute),
	}
	r := newTestRouter(store, now)

	w := notify(t, r, map[string]any{
		"order_id":           "PRD-1-AAAAA",
		"transaction_status": "settlement",
		"status_code":        "200",
		"gross_amount":       "150000.00",
		"signature_key":      "forged",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if store.holds["PRD-1-AAAAA"].PaymentStatus != domain.PaymentPending {
		t.Error("hold mutated despite forged signature")
	}
}

func TestWebhookUnknownOrder(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	r := newTestRouter(newWebhookStore(), now)

	w := notify(t, r, map[string]any{
		"order_id":           "PRD-404-AAAAA",
		"transaction_status": "settlement",
		"status_code":        "200",
		"gross_amount":       "150000.00",
		"signature_key":      midtrans.Signature("PRD-404-AAAAA", "200", "150000.00", testServerKey),
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestWebhookSettlementWithNumericFields(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newWebhookStore()
	store.holds["PRD-1-AAAAA"] = &domain.Hold{
		ID: 1, OrderNumber: "PRD-1-AAAAA", UserID: "user-1",
		Kind: domain.UnitProduct, PaymentStatus: domain.PaymentPending,
		Items: []domain.LineItem{
			{ID: 101, HoldID: 1, VariantID: 1, Name: "Mug", Quantity: 2, UnitPrice: 75000, Subtotal: 150000},
		},
		PaymentExpires: now.Add(30 * time.Minute),
	}
	r := newTestRouter(store, now)

	// the gateway serializes these as JSON numbers; the signature covers the
	// canonical string forms
	w := notify(t, r, map[string]any{
		"order_id":           "PRD-1-AAAAA",
		"transaction_status": "settlement",
		"status_code":        200,
		"gross_amount":       150000.0,
		"signature_key":      midtrans.Signature("PRD-1-AAAAA", "200", "150000.00", testServerKey),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	if store.holds["PRD-1-AAAAA"].PaymentStatus != domain.PaymentPaid {
		t.Error("hold not marked paid")
	}
	if store.committed[1] != 2 {
		t.Errorf("committed = %v", store.committed)
	}
}

func TestWebhookMissingOrderID(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	r := newTestRouter(newWebhookStore(), now)

	w := notify(t, r, map[string]any{"transaction_status": "settlement"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestOrdersRequireAuth(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	r := newTestRouter(newWebhookStore(), now)

	req := httptest.NewRequest(http.MethodGet, "/orders/PRD-1-AAAAA", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestGetOrderOwnership(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newWebhookStore()
	store.holds["PRD-1-AAAAA"] = &domain.Hold{
		ID: 1, OrderNumber: "PRD-1-AAAAA", UserID: "user-1",
		Kind: domain.UnitProduct, PaymentStatus: domain.PaymentPaid,
		PaymentExpires: now.Add(30 * time.Minute),
	}
	r := newTestRouter(store, now)

	req := httptest.NewRequest(http.MethodGet, "/orders/PRD-1-AAAAA", nil)
	req.Header.Set("X-User-ID", "someone-else")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/orders/PRD-1-AAAAA", nil)
	req.Header.Set("X-User-ID", "user-1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	var resp OrderResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.OrderNumber != "PRD-1-AAAAA" {
		t.Errorf("order_number = %q", resp.OrderNumber)
	}
}

func TestAdminGroupForbiddenForCustomers(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	r := newTestRouter(newWebhookStore(), now)

	body := bytes.NewReader([]byte(fmt.Sprintf(`{"pickup_code": %q}`, "PU-ABCD1234")))
	req := httptest.NewRequest(http.MethodPost, "/admin/pickups/complete", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}
