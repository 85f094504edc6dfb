package domain

import "time"

// EventType: тип события жизненного цикла заказа. Одни и те же значения
// пишутся в timeline и публикуются через outbox.
type EventType string

const (
	EventOrderPlaced        EventType = "order.placed"
	EventOrderStatusChanged EventType = "order.status_changed"
	EventOrderCancelled     EventType = "order.cancelled"
	EventPaymentIntent      EventType = "payment.intent_created"
	EventPaymentVerified    EventType = "payment.verified"
	EventPaymentFailed      EventType = "payment.failed"
	EventPaymentRetry       EventType = "payment.retry_requested"
	EventWalletCredited     EventType = "wallet.credited"
	EventWalletDebited      EventType = "wallet.debited"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     EventType
	Reason   string
	Occurred time.Time
}
