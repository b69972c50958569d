package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/pucco93/ebsi-access-control/internal/core/port"
)

func TestLedgerEventConsumerHandleEventFansOutPerStream(t *testing.T) {
	consumer := newLedgerEventConsumer(nil, "ledger", zaptest.NewLogger(t))

	var users, alerts int
	subUsers, err := consumer.Subscribe(context.Background(), port.StreamUser, func(context.Context, port.LedgerEvent) { users++ })
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	if _, err := consumer.Subscribe(context.Background(), port.StreamCustomError, func(context.Context, port.LedgerEvent) { alerts++ }); err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}

	_ = consumer.HandleEvent(context.Background(), port.LedgerEvent{Stream: port.StreamUser, Type: port.EventCreation, EbsiDID: "did:key:z1"})
	_ = consumer.HandleEvent(context.Background(), port.LedgerEvent{Stream: port.StreamRole, Type: port.EventCreation})
	if users != 1 || alerts != 0 {
		t.Fatalf("unexpected deliveries: users=%d alerts=%d", users, alerts)
	}

	subUsers.Unsubscribe()
	subUsers.Unsubscribe()
	_ = consumer.HandleEvent(context.Background(), port.LedgerEvent{Stream: port.StreamUser, Type: port.EventDeletion, EbsiDID: "did:key:z1"})
	if users != 1 {
		t.Fatalf("expected no delivery after unsubscribe, got %d", users)
	}
}

func TestLedgerEventConsumerRejectsUnknownStream(t *testing.T) {
	consumer := newLedgerEventConsumer(nil, "ledger", nil)
	if _, err := consumer.Subscribe(context.Background(), port.StreamKind("Transfer"), func(context.Context, port.LedgerEvent) {}); err == nil {
		t.Fatalf("expected unknown stream error")
	}
}

func TestLedgerEventConsumerHandleMessage(t *testing.T) {
	consumer := newLedgerEventConsumer(nil, "ledger", zaptest.NewLogger(t))

	var got []port.LedgerEvent
	_, _ = consumer.Subscribe(context.Background(), port.StreamResource, func(_ context.Context, ev port.LedgerEvent) {
		got = append(got, ev)
	})

	if err := consumer.HandleMessage(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil message")
	}
	if err := consumer.HandleMessage(context.Background(), &sarama.ConsumerMessage{Value: []byte("{")}); err == nil {
		t.Fatalf("expected error for invalid json")
	}
	if err := consumer.HandleMessage(context.Background(), &sarama.ConsumerMessage{Value: []byte(`{"event_type":"acl.outcome.role.created","payload":{}}`)}); err == nil {
		t.Fatalf("expected error for foreign event type")
	}

	// A payload that does not decode still reaches the handler, without a body.
	msg := &sarama.ConsumerMessage{Value: []byte(`{"event_type":"acl.ledger.ResourceUpdated","payload":{"resource":{"name":"not-hex"}}}`)}
	if err := consumer.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}
	if len(got) != 1 || got[0].Stream != port.StreamResource || got[0].Resource != nil {
		t.Fatalf("expected a bare resource event, got %+v", got)
	}
	if got[0].Validate() == nil {
		t.Fatalf("bare event must fail validation")
	}
}

type recordingLedgerPublisher struct {
	events []port.LedgerEvent
	err    error
}

func (r *recordingLedgerPublisher) PublishLedgerEvent(_ context.Context, ev port.LedgerEvent) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestMirroringSourcePublishesBeforeHandling(t *testing.T) {
	inner := newLedgerEventConsumer(nil, "ledger", nil)
	publisher := &recordingLedgerPublisher{err: errors.New("broker down")}
	source := NewMirroringSource(inner, publisher, zaptest.NewLogger(t))

	var handled int
	if _, err := source.Subscribe(context.Background(), port.StreamUser, func(context.Context, port.LedgerEvent) {
		if len(publisher.events) != 1 {
			t.Fatalf("expected event to be mirrored before handling")
		}
		handled++
	}); err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}

	_ = inner.HandleEvent(context.Background(), port.LedgerEvent{Stream: port.StreamUser, Type: port.EventCreation, EbsiDID: "did:key:z1"})
	if handled != 1 {
		t.Fatalf("publisher failures must not block delivery, handled=%d", handled)
	}
}
