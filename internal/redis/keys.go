package redisx

import "fmt"

const ns = "checkout:v1"

func KeySlotAvailability(ticketID int64, date string) string {
	return fmt.Sprintf("%s:ticket:%d:%s:availability", ns, ticketID, date)
}

func KeyVariantStock(variantID int64) string {
	return fmt.Sprintf("%s:variant:%d:stock", ns, variantID)
}

// KeyRateLimit is a limiter prefix; the limiter appends the caller identity.
func KeyRateLimit(scope string) string {
	return fmt.Sprintf("%s:rl:%s", ns, scope)
}

func ChannelOrdersChanged() string {
	return ns + ":orders:changed"
}
