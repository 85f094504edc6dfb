package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

var errPublisherNotInitialized = errors.New("kafka outbox publisher is not initialized")

// OutboxPublisher раскладывает события outbox по топикам заказов и кошельков.
type OutboxPublisher struct {
	producer *Producer
	// topic, если задан, переопределяет маршрутизацию по агрегату.
	topic string
}

// NewOutboxPublisher создаёт publisher; пустой topic включает маршрутизацию по агрегату.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxPublisher {
	return &OutboxPublisher{producer: producer, topic: topic}
}

// NewDLQPublisher создаёт publisher для сообщений, не доставленных за все попытки.
func NewDLQPublisher(producer *Producer) *OutboxPublisher {
	return NewOutboxPublisher(producer, TopicDeadLetterQueue)
}

// Publish отправляет событие; ключом служит агрегат, чтобы события заказа шли по порядку.
func (p *OutboxPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errPublisherNotInitialized
	}

	routed := TopicFor(event.AggregateType)
	topic := routed
	if p.topic != "" {
		topic = p.topic
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	now := p.producer.now()
	value, err := json.Marshal(NewEnvelope(event, now))
	if err != nil {
		return fmt.Errorf("marshal outbox envelope: %w", err)
	}

	rec := Record{
		Topic: topic,
		Key:   key,
		Value: value,
		Headers: map[string]string{
			HeaderEventType:     event.EventType,
			HeaderAggregateType: event.AggregateType,
		},
	}
	if topic == TopicDeadLetterQueue {
		rec.Headers[HeaderOriginalTopic] = routed
		rec.Headers[HeaderFailedAt] = now.Format(time.RFC3339Nano)
	}
	return p.producer.Send(rec)
}

var _ domain.OutboxPublisher = (*OutboxPublisher)(nil)
