package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

var publishedAt = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func testProducer(t *testing.T) (*Producer, *mocks.SyncProducer) {
	t.Helper()
	mock := mocks.NewSyncProducer(t, nil)
	p := newProducer(mock)
	p.now = func() time.Time { return publishedAt }
	return p, mock
}

// capture проверяет отправленное сообщение и сохраняет его для проверок.
func capture(mock *mocks.SyncProducer, into **sarama.ProducerMessage) {
	mock.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		*into = msg
		return nil
	})
}

func headers(msg *sarama.ProducerMessage) map[string]string {
	out := map[string]string{}
	for _, h := range msg.Headers {
		out[string(h.Key)] = string(h.Value)
	}
	return out
}

func TestOutboxPublisher_RoutesByAggregate(t *testing.T) {
	t.Parallel()

	producer, mock := testProducer(t)
	var orderMsg, walletMsg *sarama.ProducerMessage
	capture(mock, &orderMsg)
	capture(mock, &walletMsg)

	publisher := NewOutboxPublisher(producer, "")
	created := publishedAt.Add(-time.Minute)

	require.NoError(t, publisher.Publish(domain.OutboxMessage{
		ID:            "evt-1",
		AggregateType: "order",
		AggregateID:   "order-1",
		EventType:     string(domain.EventOrderCancelled),
		Payload:       []byte(`{"refund_minor":2000}`),
		CreatedAt:     created,
	}))
	require.NoError(t, publisher.Publish(domain.OutboxMessage{
		ID:            "evt-2",
		AggregateType: "wallet",
		AggregateID:   "user-1",
		EventType:     string(domain.EventWalletCredited),
	}))
	require.NoError(t, mock.Close())

	assert.Equal(t, TopicOrderEvents, orderMsg.Topic)
	key, err := orderMsg.Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, "order-1", string(key))
	assert.Equal(t, string(domain.EventOrderCancelled), headers(orderMsg)[HeaderEventType])

	raw, err := orderMsg.Value.Encode()
	require.NoError(t, err)
	var envelope Envelope
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, "evt-1", envelope.ID)
	assert.JSONEq(t, `{"refund_minor":2000}`, string(envelope.Payload))
	assert.True(t, envelope.OccurredAt.Equal(created))
	assert.True(t, envelope.PublishedAt.Equal(publishedAt))

	assert.Equal(t, TopicWalletEvents, walletMsg.Topic)
	raw, err = walletMsg.Value.Encode()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.JSONEq(t, `{}`, string(envelope.Payload))
}

func TestDLQPublisher_KeepsOriginalTopic(t *testing.T) {
	t.Parallel()

	producer, mock := testProducer(t)
	var msg *sarama.ProducerMessage
	capture(mock, &msg)

	require.NoError(t, NewDLQPublisher(producer).Publish(domain.OutboxMessage{
		ID:            "evt-3",
		AggregateType: "wallet",
		EventType:     string(domain.EventWalletDebited),
		Payload:       []byte(`{"publish_error":"broker down"}`),
	}))
	require.NoError(t, mock.Close())

	assert.Equal(t, TopicDeadLetterQueue, msg.Topic)
	h := headers(msg)
	assert.Equal(t, TopicWalletEvents, h[HeaderOriginalTopic])
	assert.Equal(t, publishedAt.Format(time.RFC3339Nano), h[HeaderFailedAt])
	key, err := msg.Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, "evt-3", string(key), "message id is the key when aggregate id is empty")
}

func TestOutboxPublisher_ProducerError(t *testing.T) {
	t.Parallel()

	producer, mock := testProducer(t)
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := NewOutboxPublisher(producer, "").Publish(domain.OutboxMessage{ID: "evt-4", AggregateType: "order"})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, mock.Close())
}

func TestOutboxPublisher_NilProducer(t *testing.T) {
	t.Parallel()

	err := NewOutboxPublisher(nil, "").Publish(domain.OutboxMessage{ID: "evt-5"})
	assert.ErrorIs(t, err, errPublisherNotInitialized)
}
