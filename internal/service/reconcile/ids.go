package reconcile

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomCode(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}

	return string(b)
}

// newTicketCode is the code printed on an issued ticket, scanned at the gate.
// The timestamp suffix keeps codes sortable by issuance batch.
func newTicketCode(now time.Time) string {
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return fmt.Sprintf("TKT-%s-%s", randomCode(8), ts)
}

// newPickupCode is handed to the customer after payment and exchanged at the
// store counter.
func newPickupCode() string {
	return "PU-" + randomCode(8)
}
