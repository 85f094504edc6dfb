package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Агрегаты, от имени которых публикуются события.
const (
	AggregateOrder  = "order"
	AggregateWallet = "wallet"
)

// Event: событие жизненного цикла, которое пишется в outbox и (если есть заказ) в timeline.
type Event struct {
	Type          domain.EventType
	AggregateType string
	AggregateID   string
	// OrderID: заказ, в timeline которого попадёт событие. Пустой пишет только в outbox.
	OrderID string
	Reason  string
	Payload map[string]any
	At      time.Time
}

// Metrics: счётчики, которые обновляет Recorder. Может быть nil.
type Metrics interface {
	RecordOutboxEvent()
	RecordTimelineEvent()
}

// Recorder пишет события в outbox и timeline через репозитории текущей транзакции.
// Ошибка записи возвращается вызывающему и откатывает транзакцию.
type Recorder struct {
	metrics Metrics
	logger  *log.Entry
}

// NewRecorder создаёт Recorder.
func NewRecorder(metrics Metrics, logger *log.Entry) *Recorder {
	if logger == nil {
		logger = log.New().WithField("component", "events")
	}
	return &Recorder{metrics: metrics, logger: logger}
}

// Emit ставит событие в outbox и добавляет его в timeline заказа.
func (r *Recorder) Emit(ctx context.Context, repos domain.Repositories, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if ev.AggregateType == "" {
		ev.AggregateType = AggregateOrder
	}
	if ev.AggregateID == "" {
		ev.AggregateID = ev.OrderID
	}

	payload := make(map[string]any, len(ev.Payload)+4)
	for k, v := range ev.Payload {
		payload[k] = v
	}
	payload["event"] = string(ev.Type)
	payload["ts"] = ev.At.Format(time.RFC3339Nano)
	if ev.OrderID != "" {
		payload["order_id"] = ev.OrderID
	}
	if ev.Reason != "" {
		payload["reason"] = ev.Reason
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}

	if _, err := repos.Outbox.Enqueue(ctx, domain.OutboxMessage{
		ID:            uuid.NewString(),
		AggregateType: ev.AggregateType,
		AggregateID:   ev.AggregateID,
		EventType:     string(ev.Type),
		Payload:       data,
		CreatedAt:     ev.At,
	}); err != nil {
		r.logger.WithError(err).WithFields(log.Fields{
			"aggregate_id": ev.AggregateID,
			"event":        ev.Type,
		}).Error("enqueue event failed")
		return fmt.Errorf("enqueue %s event: %w", ev.Type, err)
	}
	if r.metrics != nil {
		r.metrics.RecordOutboxEvent()
	}

	if ev.OrderID == "" {
		return nil
	}
	if err := repos.Timeline.Append(ctx, domain.TimelineEvent{
		OrderID:  ev.OrderID,
		Type:     ev.Type,
		Reason:   ev.Reason,
		Occurred: ev.At,
	}); err != nil {
		r.logger.WithError(err).WithFields(log.Fields{
			"order_id": ev.OrderID,
			"event":    ev.Type,
		}).Error("append timeline event failed")
		return fmt.Errorf("append %s timeline event: %w", ev.Type, err)
	}
	if r.metrics != nil {
		r.metrics.RecordTimelineEvent()
	}
	return nil
}
