package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
	"github.com/pucco93/ebsi-access-control/internal/core/port"
	"github.com/pucco93/ebsi-access-control/internal/infra/config"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, 4),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error { return nil }

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func newTestPublisher(t *testing.T) (*EventPublisher, *fakeAsyncProducer) {
	t.Helper()
	asyncProducer := newFakeAsyncProducer()
	producer := newProducer(asyncProducer, config.KafkaSettings{TopicPrefix: "ebsi"}, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = producer.Close() })

	publisher := NewEventPublisher(producer, config.AppSettings{
		Name: "ebsi-access-control",
		Env:  "test",
	}, "ebsi.acl.ledger-events", zaptest.NewLogger(t))
	return publisher, asyncProducer
}

func receive(t *testing.T, producer *fakeAsyncProducer) *sarama.ProducerMessage {
	t.Helper()
	select {
	case msg := <-producer.input:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message on async producer input channel")
	}
	return nil
}

func TestPublishOutcome(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	recorded := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	record := domain.OutcomeRecord{
		ID:        "out-1",
		Kind:      domain.KindRole,
		Operation: domain.OperationDeleted,
		Status:    domain.OutcomeError,
		Subject:   "editor",
		Message:   "Failed to delete role: user rejected transaction",
		Account:   "0xabc",
		RequestID: "req-42",
		Recorded:  recorded,
	}
	if err := publisher.PublishOutcome(context.Background(), record); err != nil {
		t.Fatalf("PublishOutcome returned error: %v", err)
	}

	msg := receive(t, asyncProducer)
	if msg.Topic != "ebsi.acl.outcome" {
		t.Fatalf("unexpected topic: %s", msg.Topic)
	}
	key, _ := msg.Key.Encode()
	if string(key) != "role" {
		t.Fatalf("unexpected key: %s", key)
	}

	bytes, err := msg.Value.Encode()
	if err != nil {
		t.Fatalf("Value.Encode returned error: %v", err)
	}
	var envelope map[string]any
	if err := json.Unmarshal(bytes, &envelope); err != nil {
		t.Fatalf("failed to unmarshal envelope: %v", err)
	}
	if got := envelope["event_type"]; got != "acl.outcome.role.deleted" {
		t.Fatalf("unexpected event_type: %v", got)
	}
	if got := envelope["event_id"]; got != "out-1" {
		t.Fatalf("unexpected event_id: %v", got)
	}
	if got := envelope["timestamp"]; got != recorded.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected timestamp: %v", got)
	}
	payload, ok := envelope["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload not a map: %T", envelope["payload"])
	}
	if payload["status"] != "error" || payload["subject"] != "editor" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	metadata, ok := envelope["metadata"].(map[string]any)
	if !ok || metadata["service"] != "ebsi-access-control" || metadata["environment"] != "test" {
		t.Fatalf("unexpected metadata: %v", envelope["metadata"])
	}
	if metadata["request_id"] != "req-42" {
		t.Fatalf("request id not carried: %v", metadata["request_id"])
	}
}

func TestPublishOutcomeHonoursContext(t *testing.T) {
	asyncProducer := &fakeAsyncProducer{input: make(chan *sarama.ProducerMessage), errors: make(chan *sarama.ProducerError)}
	producer := newProducer(asyncProducer, config.KafkaSettings{}, zaptest.NewLogger(t))
	defer producer.Close()
	publisher := NewEventPublisher(producer, config.AppSettings{}, "ledger", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := publisher.PublishOutcome(ctx, domain.OutcomeRecord{Kind: domain.KindUser}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMirroredLedgerEventRoundTrip(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)
	audit := domain.MustEncodeName("audit")

	ev := port.LedgerEvent{
		Stream:     port.StreamPermission,
		Type:       port.EventCreation,
		Permission: &port.RawPermission{Permission: audit, IsCustom: true},
		TxHash:     "0x01",
	}
	if err := publisher.PublishLedgerEvent(context.Background(), ev); err != nil {
		t.Fatalf("PublishLedgerEvent returned error: %v", err)
	}

	msg := receive(t, asyncProducer)
	if msg.Topic != "ebsi.acl.ledger-events" {
		t.Fatalf("unexpected topic: %s", msg.Topic)
	}
	value, _ := msg.Value.Encode()

	consumer := newLedgerEventConsumer(nil, msg.Topic, zaptest.NewLogger(t))
	received := make(chan port.LedgerEvent, 1)
	if _, err := consumer.Subscribe(context.Background(), port.StreamPermission, func(_ context.Context, got port.LedgerEvent) {
		received <- got
	}); err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}

	if err := consumer.HandleMessage(context.Background(), &sarama.ConsumerMessage{Topic: msg.Topic, Value: value}); err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}

	select {
	case got := <-received:
		if got.Stream != port.StreamPermission || got.Type != port.EventCreation {
			t.Fatalf("unexpected event: %+v", got)
		}
		if got.Permission == nil || got.Permission.Permission != audit || !got.Permission.IsCustom {
			t.Fatalf("unexpected permission body: %+v", got.Permission)
		}
	default:
		t.Fatalf("expected handler to be called")
	}
}

func TestTopicName(t *testing.T) {
	if got := topicName("ebsi", "acl.outcome"); got != "ebsi.acl.outcome" {
		t.Fatalf("unexpected topic: %s", got)
	}
	if got := topicName("ebsi", "ebsi.acl.outcome"); got != "ebsi.acl.outcome" {
		t.Fatalf("prefix must not be doubled: %s", got)
	}
	if got := topicName("", "acl.outcome"); got != "acl.outcome" {
		t.Fatalf("unexpected topic: %s", got)
	}
}
