// README: HMAC signing and verification of provider callbacks.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Sign computes the HMAC-SHA256 hex digest over the canonical field
// ordering orderReference;salt;status;amount. Both sides of the callback
// contract must use exactly this ordering.
func Sign(secret, salt, orderRef, status string, amount int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join([]string{orderRef, salt, status, strconv.FormatInt(amount, 10)}, ";")))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the callback signature and compares in
// constant time.
func VerifySignature(secret, salt string, cb Callback) bool {
	want := Sign(secret, salt, cb.OrderReference, cb.Status, cb.Amount)
	return hmac.Equal([]byte(want), []byte(strings.ToLower(cb.Signature)))
}
