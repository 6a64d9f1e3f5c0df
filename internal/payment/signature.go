package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const WebhookSignatureHeader = "X-Razorpay-Signature"

// VerifyPaymentSignature checks the signature returned to the browser after
// checkout: HMAC-SHA256 of "orderId|paymentId" with the key secret.
func VerifyPaymentSignature(gatewayOrderID, paymentID, signature, secret string) bool {
	return verify([]byte(gatewayOrderID+"|"+paymentID), signature, secret)
}

// VerifyWebhookSignature checks the HMAC-SHA256 of the raw webhook body.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	return verify(body, signature, secret)
}

func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
