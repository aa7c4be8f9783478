package webhookapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// SignatureHeader carries the provider's base64 HMAC-SHA256 of the raw body.
const SignatureHeader = "X-DocuSign-Signature-1"

// VerifySignature checks the webhook body against the shared HMAC secret in
// constant time. An empty secret disables verification (local development).
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" {
		return true
	}
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
