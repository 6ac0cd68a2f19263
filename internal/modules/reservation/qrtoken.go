// README: QR pickup token minting and constant-time verification.
package reservation

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
)

// MintToken returns a fresh pickup credential: 16 random bytes, hex encoded.
// The token carries no business data; activation looks the reservation up by
// id and compares tokens.
func MintToken() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// VerifyToken compares a presented token against the stored one in constant
// time. Structurally invalid input (empty, wrong length) returns false
// without error.
func VerifyToken(stored, presented string) bool {
	if stored == "" || len(stored) != len(presented) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
