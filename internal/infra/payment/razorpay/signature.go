package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Razorpay-Signature"

// VerifyWebhookSignature reports whether signature is the HMAC-SHA256 of body under secret.
// Malformed, empty or wrong-length signatures yield false.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) != sha256.Size {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}

// Sign returns the signature Razorpay would send for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
