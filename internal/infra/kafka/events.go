package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
	"github.com/pucco93/ebsi-access-control/internal/core/port"
	"github.com/pucco93/ebsi-access-control/internal/infra/config"
	"github.com/pucco93/ebsi-access-control/internal/infra/logger"
)

const schemaVersion = "1.0"

// OutcomeTopic is appended to the configured topic prefix.
const OutcomeTopic = "acl.outcome"

const ledgerEventPrefix = "acl.ledger."

// EventPublisher publishes Outcome records and mirrored ledger events.
type EventPublisher struct {
	producer    *Producer
	logger      *zap.Logger
	appCfg      config.AppSettings
	ledgerTopic string
}

// NewEventPublisher constructs a Kafka-backed publisher. ledgerTopic is the
// full topic mirrored ledger events are written to.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, ledgerTopic string, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, ledgerTopic: ledgerTopic, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	Subject   string           `json:"subject,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

type outboundMessage struct {
	topic     string
	key       string
	eventID   string
	eventType string
	subject   string
	requestID string
	ts        time.Time
	payload   any
}

func (p *EventPublisher) publish(ctx context.Context, out outboundMessage) error {
	ts := out.ts
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := out.eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	requestID := out.requestID
	if requestID == "" {
		requestID = logger.RequestIDFromContext(ctx)
	}
	if requestID != "" {
		metadata["request_id"] = requestID
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: out.eventType,
		Subject:   out.subject,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   out.payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: out.topic,
		Value: sarama.ByteEncoder(bytes),
	}
	if out.key != "" {
		message.Key = sarama.StringEncoder(out.key)
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishOutcome publishes acl.outcome.<kind>.<operation> events keyed by
// entity kind so a kind's outcomes stay ordered.
func (p *EventPublisher) PublishOutcome(ctx context.Context, record domain.OutcomeRecord) error {
	return p.publish(ctx, outboundMessage{
		topic:     p.producer.TopicName(OutcomeTopic),
		key:       string(record.Kind),
		eventID:   record.ID,
		eventType: fmt.Sprintf("%s.%s.%s", OutcomeTopic, record.Kind, record.Operation),
		subject:   record.Subject,
		requestID: record.RequestID,
		ts:        record.Recorded,
		payload:   record,
	})
}

// PublishLedgerEvent mirrors a decoded ledger notification, keyed by stream.
func (p *EventPublisher) PublishLedgerEvent(ctx context.Context, ev port.LedgerEvent) error {
	subject := ev.EbsiDID
	if subject == "" && ev.TxHash != "" {
		subject = ev.TxHash
	}
	return p.publish(ctx, outboundMessage{
		topic:     p.ledgerTopic,
		key:       string(ev.Stream),
		eventType: ledgerEventPrefix + string(ev.Stream),
		subject:   subject,
		payload:   ev,
	})
}

// streamFromEventType recovers the stream of a mirrored ledger event.
func streamFromEventType(eventType string) (port.StreamKind, bool) {
	if !strings.HasPrefix(eventType, ledgerEventPrefix) {
		return "", false
	}
	return port.StreamKind(strings.TrimPrefix(eventType, ledgerEventPrefix)), true
}

var _ port.OutcomePublisher = (*EventPublisher)(nil)
