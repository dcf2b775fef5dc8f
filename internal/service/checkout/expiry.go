package checkout

import (
	"time"
)

const (
	maxTicketWindow = 20 * time.Minute
	minTicketWindow = 10 * time.Minute
	sessionBuffer   = 5 * time.Minute
)

// ticketPaymentWindow bounds the payment window so it cannot outlive the
// earliest booked session: min(20m, sessionEnd - now - buffer), never under
// 10 minutes. All-day-only checkouts get the full window.
func ticketPaymentWindow(now, earliestSessionEnd time.Time) time.Duration {
	if earliestSessionEnd.IsZero() {
		return maxTicketWindow
	}

	w := earliestSessionEnd.Sub(now) - sessionBuffer
	if w > maxTicketWindow {
		w = maxTicketWindow
	}
	if w < minTicketWindow {
		w = minTicketWindow
	}

	return w
}

// productPaymentWindow shortens the payment window as stock gets scarce, so a
// lingering unpaid hold cannot deadlock the last units.
func productPaymentWindow(minAvailable int) time.Duration {
	switch {
	case minAvailable < 5:
		return 15 * time.Minute
	case minAvailable < 20:
		return 30 * time.Minute
	default:
		return 60 * time.Minute
	}
}
