package midtrans

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testClient(srv *httptest.Server) *Client {
	return &Client{
		cfg:     Config{ServerKey: "SB-Mid-server-test"},
		httpc:   srv.Client(),
		snapURL: srv.URL,
		apiURL:  srv.URL,
		policy:  DefaultRetryPolicy,
	}
}

func TestCreateTransaction(t *testing.T) {
	var gotReq snapRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/snap/v1/transactions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if user, _, ok := r.BasicAuth(); !ok || user != "SB-Mid-server-test" {
			t.Error("missing basic auth with server key")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"token":        "snap-token-1",
			"redirect_url": "https://app.sandbox.midtrans.com/snap/v2/vtweb/snap-token-1",
		})
	}))
	defer srv.Close()

	c := testClient(srv)

	tx, err := c.CreateTransaction(context.Background(), CreateTransactionInput{
		OrderNumber:   "PRD-1-AAAAA",
		GrossAmount:   150000,
		Items:         []ItemDetail{{ID: "variant-1", Price: 75000, Quantity: 2, Name: "Mug"}},
		Customer:      CustomerDetails{FirstName: "Ani", Email: "ani@example.com"},
		ExpiryMinutes: 30,
		FinishURL:     "http://localhost:3000/order/product/success/PRD-1-AAAAA",
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if tx.Token != "snap-token-1" {
		t.Errorf("token = %q", tx.Token)
	}

	if gotReq.TransactionDetails.OrderID != "PRD-1-AAAAA" {
		t.Errorf("order_id = %q", gotReq.TransactionDetails.OrderID)
	}
	if gotReq.TransactionDetails.GrossAmount != 150000 {
		t.Errorf("gross_amount = %d", gotReq.TransactionDetails.GrossAmount)
	}
	if gotReq.CustomExpiry.ExpiryDuration != 30 || gotReq.CustomExpiry.Unit != "minute" {
		t.Errorf("custom_expiry = %+v", gotReq.CustomExpiry)
	}
}

func TestCreateTransactionGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := testClient(srv)

	_, err := c.CreateTransaction(context.Background(), CreateTransactionInput{OrderNumber: "PRD-1-AAAAA"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
}

func TestCreateTransactionEmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": ""})
	}))
	defer srv.Close()

	c := testClient(srv)

	_, err := c.CreateTransaction(context.Background(), CreateTransactionInput{OrderNumber: "PRD-1-AAAAA"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("want ErrUnavailable on empty token, got %v", err)
	}
}

func TestGetStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/SPK-1-AAAAA/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"transaction_status": "settlement",
			"status_code":        "200",
		})
	}))
	defer srv.Close()

	c := testClient(srv)

	st, err := c.GetStatus(context.Background(), "SPK-1-AAAAA")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if st.TransactionStatus != "settlement" {
		t.Errorf("transaction_status = %q", st.TransactionStatus)
	}
	if len(st.Raw) == 0 {
		t.Error("raw payload not preserved")
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	if retry, _ := DefaultRetryPolicy(0, errors.New("conn refused")); !retry {
		t.Error("first transport error should retry")
	}
	if retry, _ := DefaultRetryPolicy(2, errors.New("conn refused")); retry {
		t.Error("attempts beyond the bound should not retry")
	}
	if retry, _ := DefaultRetryPolicy(0, context.Canceled); retry {
		t.Error("context cancellation should not retry")
	}
}
