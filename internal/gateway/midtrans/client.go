// Package midtrans is a thin client for the Midtrans Snap and Core APIs:
// token creation, status polling, webhook signature verification and status
// vocabulary mapping.
package midtrans

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	snapSandboxURL    = "https://app.sandbox.midtrans.com"
	snapProductionURL = "https://app.midtrans.com"
	apiSandboxURL     = "https://api.sandbox.midtrans.com"
	apiProductionURL  = "https://api.midtrans.com"
)

// ErrUnavailable covers transport failures and gateway-side rejections during
// token creation. Callers roll back their reservations on it.
var ErrUnavailable = errors.New("payment gateway unavailable")

type Config struct {
	ServerKey  string
	Production bool
}

type Client struct {
	cfg     Config
	httpc   *http.Client
	snapURL string
	apiURL  string
	policy  RetryPolicy
}

func NewClient(cfg Config, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}

	snapURL, apiURL := snapSandboxURL, apiSandboxURL
	if cfg.Production {
		snapURL, apiURL = snapProductionURL, apiProductionURL
	}

	return &Client{
		cfg:     cfg,
		httpc:   httpc,
		snapURL: snapURL,
		apiURL:  apiURL,
		policy:  DefaultRetryPolicy,
	}
}

type ItemDetail struct {
	ID       string `json:"id"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Name     string `json:"name"`
}

type CustomerDetails struct {
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type CreateTransactionInput struct {
	OrderNumber   string
	GrossAmount   int64
	Items         []ItemDetail
	Customer      CustomerDetails
	ExpiryMinutes int
	FinishURL     string
}

// Transaction is the payable token minted by Snap.
type Transaction struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

type snapRequest struct {
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount int64  `json:"gross_amount"`
	} `json:"transaction_details"`
	ItemDetails     []ItemDetail    `json:"item_details"`
	CustomerDetails CustomerDetails `json:"customer_details"`
	CustomExpiry    struct {
		ExpiryDuration int    `json:"expiry_duration"`
		Unit           string `json:"unit"`
	} `json:"custom_expiry"`
	Callbacks struct {
		Finish string `json:"finish,omitempty"`
	} `json:"callbacks"`
}

// CreateTransaction mints a Snap token for a hold. The order number doubles
// as the gateway's idempotent transaction id, and the expiry is passed along
// so both systems agree on when the hold lapses.
func (c *Client) CreateTransaction(ctx context.Context, in CreateTransactionInput) (Transaction, error) {
	const op = "midtrans.Client.CreateTransaction"

	var req snapRequest
	req.TransactionDetails.OrderID = in.OrderNumber
	req.TransactionDetails.GrossAmount = in.GrossAmount
	req.ItemDetails = in.Items
	req.CustomerDetails = in.Customer
	req.CustomExpiry.ExpiryDuration = in.ExpiryMinutes
	req.CustomExpiry.Unit = "minute"
	req.Callbacks.Finish = in.FinishURL

	body, err := json.Marshal(req)
	if err != nil {
		return Transaction{}, fmt.Errorf("%s:%w", op, err)
	}

	raw, err := c.do(ctx, http.MethodPost, c.snapURL+"/snap/v1/transactions", body)
	if err != nil {
		return Transaction{}, fmt.Errorf("%s:%w", op, err)
	}

	var tx Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return Transaction{}, fmt.Errorf("%s:%w", op, err)
	}
	if tx.Token == "" {
		return Transaction{}, fmt.Errorf("%s: empty token: %w", op, ErrUnavailable)
	}

	return tx, nil
}

// TransactionStatus is the gateway's view of an order, raw payload included
// for the audit log.
type TransactionStatus struct {
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	StatusCode        string `json:"status_code"`
	Raw               json.RawMessage
}

// GetStatus polls the Core API for an order's current status.
func (c *Client) GetStatus(ctx context.Context, orderNumber string) (TransactionStatus, error) {
	const op = "midtrans.Client.GetStatus"

	raw, err := c.do(ctx, http.MethodGet, c.apiURL+"/v2/"+orderNumber+"/status", nil)
	if err != nil {
		return TransactionStatus{}, fmt.Errorf("%s:%w", op, err)
	}

	var st TransactionStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return TransactionStatus{}, fmt.Errorf("%s:%w", op, err)
	}
	st.Raw = raw

	return st, nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	auth := "Basic " + base64.StdEncoding.EncodeToString([]byte(c.cfg.ServerKey+":"))

	for attempt := 0; ; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", auth)

		resp, err := c.httpc.Do(req)
		if err != nil {
			retry, delay := c.policy(attempt, err)
			if !retry {
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, raw)
		}

		return raw, nil
	}
}
