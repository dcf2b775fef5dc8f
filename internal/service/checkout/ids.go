package checkout

import (
	"crypto/rand"
	"fmt"
	"time"
)

const orderNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newOrderNumber builds a globally unique, human-readable order identifier,
// e.g. SPK-1735689600000-7GK2Q. It doubles as the gateway transaction id.
func newOrderNumber(prefix string, now time.Time) string {
	b := make([]byte, 5)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = orderNumberAlphabet[int(b[i])%len(orderNumberAlphabet)]
	}

	return fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), b)
}
