package domain

import "time"

// GatewayOrder: платёжный интент, созданный на стороне шлюза.
type GatewayOrder struct {
	ID          string
	AmountMinor int64
	Currency    string
	Receipt     string
	Status      string
	CreatedAt   time.Time
}

// GatewayError: описание ошибки оплаты, присланное клиентом из виджета шлюза.
type GatewayError struct {
	Code        string            `json:"code"`
	Description string            `json:"description"`
	Source      string            `json:"source,omitempty"`
	Step        string            `json:"step,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// FailedPayment: запись о неудачной оплате для разбора и сверки.
type FailedPayment struct {
	ID             string
	OrderID        string
	GatewayOrderID string
	Error          GatewayError
	Resolved       bool
	CreatedAt      time.Time
	ResolvedAt     time.Time
}

// PaymentConfirmation: данные обратного вызова шлюза после оплаты.
type PaymentConfirmation struct {
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

// Validate проверяет, что все поля подтверждения заполнены.
func (c PaymentConfirmation) Validate() error {
	switch {
	case c.GatewayOrderID == "":
		return NewValidationError("razorpay_order_id", "is required")
	case c.PaymentID == "":
		return NewValidationError("razorpay_payment_id", "is required")
	case c.Signature == "":
		return NewValidationError("razorpay_signature", "is required")
	default:
		return nil
	}
}
