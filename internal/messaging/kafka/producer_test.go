package kafka

import (
	"testing"

	"github.com/IBM/sarama"
)

func TestRecordMessage_SortsHeaders(t *testing.T) {
	msg := Record{
		Topic:   "orders.events",
		Key:     "order-1",
		Value:   []byte(`{}`),
		Headers: map[string]string{"b": "2", "a": "1", "c": "3"},
	}.message(publishedAt)

	if msg.Topic != "orders.events" || !msg.Timestamp.Equal(publishedAt) {
		t.Fatalf("unexpected message: %+v", msg)
	}
	var got []string
	for _, h := range msg.Headers {
		got = append(got, string(h.Key))
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("headers must be sorted by name, got %v", got)
	}
}

func TestProducerConfig(t *testing.T) {
	cfg := producerConfig("storefront")
	if cfg.ClientID != "storefront" {
		t.Fatalf("client id = %q", cfg.ClientID)
	}
	if !cfg.Producer.Idempotent || cfg.Net.MaxOpenRequests != 1 {
		t.Fatal("idempotent producer must keep a single in-flight request")
	}
	if cfg.Producer.RequiredAcks != sarama.WaitForAll {
		t.Fatalf("required acks = %v", cfg.Producer.RequiredAcks)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config must be valid: %v", err)
	}
}

func TestProducer_SendFailureIsWrapped(t *testing.T) {
	p, mock := testProducer(t)
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := p.Send(Record{Topic: "orders.events", Key: "order-1"})
	if err == nil {
		t.Fatal("expected send error")
	}
	if err.Error() != "send to orders.events: "+sarama.ErrOutOfBrokers.Error() {
		t.Fatalf("unexpected error: %v", err)
	}
}
