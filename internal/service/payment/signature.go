package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// HMACVerifier проверяет подпись Razorpay: HMAC-SHA256 от "order_id|payment_id"
// в hex, ключ: секрет API.
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier создаёт проверку подписи с секретом шлюза.
func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

// Sign считает подпись. Нужен mock-шлюзу и тестам.
func (v *HMACVerifier) Sign(gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify сравнивает подписи за постоянное время.
func (v *HMACVerifier) Verify(gatewayOrderID, paymentID, signature string) error {
	expected := v.Sign(gatewayOrderID, paymentID)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return domain.ErrSignatureInvalid
	}
	return nil
}

var _ domain.SignatureVerifier = (*HMACVerifier)(nil)
