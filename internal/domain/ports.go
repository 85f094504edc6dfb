package domain

import (
	"context"
	"time"
)

// PaymentGateway создаёт платёжные интенты на стороне шлюза.
type PaymentGateway interface {
	// CreateOrder регистрирует интент на сумму amountMinor; receipt: наш номер заказа.
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (GatewayOrder, error)
	// FetchOrder возвращает интент со стороны шлюза: сумму и валюту, на которые он выписан.
	FetchOrder(ctx context.Context, gatewayOrderID string) (GatewayOrder, error)
}

// SignatureVerifier проверяет подпись обратного вызова шлюза.
type SignatureVerifier interface {
	Verify(gatewayOrderID, paymentID, signature string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// WorkflowStep задаёт константы шагов для метрик/логов.
type WorkflowStep string

const (
	StepPlace         WorkflowStep = "place"
	StepReserve       WorkflowStep = "reserve"
	StepCancel        WorkflowStep = "cancel"
	StepRefund        WorkflowStep = "refund"
	StepPaymentIntent WorkflowStep = "payment_intent"
	StepVerify        WorkflowStep = "verify"
	StepPaymentFailed WorkflowStep = "payment_failed"
	StepRetry         WorkflowStep = "retry"
	StepStatusUpdate  WorkflowStep = "status_update"
)
