package midtrans

import (
	"strings"

	"github.com/spkstore/checkout-go/internal/domain"
)

// MapStatus translates the gateway's transaction/fraud status pair into the
// internal payment status. Unrecognized input maps to pending: the fail-safe
// default never marks anything paid.
func MapStatus(transactionStatus, fraudStatus string) domain.PaymentStatus {
	tx := strings.ToLower(strings.TrimSpace(transactionStatus))
	fraud := strings.ToLower(strings.TrimSpace(fraudStatus))

	switch tx {
	case "capture":
		if fraud == "accept" || fraud == "" {
			return domain.PaymentPaid
		}
		return domain.PaymentPending
	case "settlement":
		return domain.PaymentPaid
	case "pending":
		return domain.PaymentPending
	case "expire", "expired":
		return domain.PaymentExpired
	case "refund", "refunded", "partial_refund":
		return domain.PaymentRefunded
	case "deny", "cancel", "failure":
		return domain.PaymentFailed
	default:
		return domain.PaymentPending
	}
}
