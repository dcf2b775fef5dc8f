package midtrans

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
)

// Signature computes the webhook integrity signature:
// hex(sha512(orderID + statusCode + grossAmount + serverKey)).
func Signature(orderNumber, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderNumber + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature recomputes the signature from the event fields and compares
// it constant-time against the supplied one.
func VerifySignature(orderNumber, statusCode, grossAmount, signatureKey, serverKey string) bool {
	if signatureKey == "" {
		return false
	}

	expected := Signature(orderNumber, statusCode, grossAmount, serverKey)
	supplied := strings.ToLower(signatureKey)

	return subtle.ConstantTimeCompare([]byte(expected), []byte(supplied)) == 1
}

// NormalizeGross renders a webhook gross_amount the way the gateway signs it:
// numeric values get exactly two decimals, strings pass through unchanged.
func NormalizeGross(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', 2, 64)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return strconv.FormatFloat(f, 'f', 2, 64)
	default:
		return ""
	}
}

// NormalizeStatusCode accepts the numeric or string form status_code arrives in.
func NormalizeStatusCode(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}
