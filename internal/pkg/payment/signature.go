package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifyCheckoutSignature checks the signature the provider hands to the
// client after checkout: HMAC-SHA256 over "orderID|paymentID" with the key
// secret, hex encoded. Comparison is constant-time.
func VerifyCheckoutSignature(orderID, paymentID, signature, secret string) bool {
	sig := strings.TrimSpace(signature)
	if sig == "" || strings.TrimSpace(secret) == "" {
		return false
	}
	if orderID == "" || paymentID == "" {
		return false
	}
	expected := computeHMAC([]byte(orderID+"|"+paymentID), []byte(secret))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(sig)))
}

// VerifyWebhookSignature checks the x-razorpay-signature header against the
// raw request body using the webhook secret, which is distinct from the
// per-order key secret.
func VerifyWebhookSignature(payload []byte, signatureHeader, webhookSecret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	if sig == "" || strings.TrimSpace(webhookSecret) == "" {
		return false
	}
	expected := computeHMAC(payload, []byte(webhookSecret))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(sig)))
}

// SignCheckout computes the checkout signature; used by tests and the
// sandbox tools.
func SignCheckout(orderID, paymentID, secret string) string {
	return computeHMAC([]byte(orderID+"|"+paymentID), []byte(secret))
}

// SignWebhook computes the webhook signature for a raw body; used by tests
// and the sandbox tools.
func SignWebhook(payload []byte, webhookSecret string) string {
	return computeHMAC(payload, []byte(webhookSecret))
}

func computeHMAC(payload, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
