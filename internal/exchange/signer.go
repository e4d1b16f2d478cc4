package exchange

import (
	"crypto/sha256"
	"encoding/hex"
)

// sign reproduces the exchange's double-SHA256 request signature:
// sha256(hex(sha256(nonce+ts+apiKey)) + secret).
func sign(secret, nonce, apiKey, ts string) string {
	h1 := sha256.Sum256([]byte(nonce + ts + apiKey))
	h2 := sha256.Sum256([]byte(hex.EncodeToString(h1[:]) + secret))
	return hex.EncodeToString(h2[:])
}
