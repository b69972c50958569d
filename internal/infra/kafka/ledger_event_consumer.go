package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/pucco93/ebsi-access-control/internal/core/port"
	"github.com/pucco93/ebsi-access-control/internal/infra/config"
)

// LedgerEventConsumer is an EventSource fed by mirrored ledger events on a
// Kafka topic. The consumer group starts with the first subscription.
type LedgerEventConsumer struct {
	group  sarama.ConsumerGroup
	topic  string
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[port.StreamKind]map[uint64]port.EventHandler
	nextID   uint64

	startOnce sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewLedgerEventConsumer joins cfg.ConsumerGroup on cfg.LedgerEventsTopic.
func NewLedgerEventConsumer(cfg config.KafkaSettings, logger *zap.Logger) (*LedgerEventConsumer, error) {
	sc := saramaConfig()
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	sc.Consumer.Return.Errors = true
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}
	return newLedgerEventConsumer(group, cfg.LedgerEventsTopic, logger), nil
}

func newLedgerEventConsumer(group sarama.ConsumerGroup, topic string, logger *zap.Logger) *LedgerEventConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerEventConsumer{
		group:    group,
		topic:    topic,
		logger:   logger,
		handlers: make(map[port.StreamKind]map[uint64]port.EventHandler),
	}
}

type consumerSubscription struct {
	consumer *LedgerEventConsumer
	stream   port.StreamKind
	id       uint64
	once     sync.Once
}

func (s *consumerSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.consumer.mu.Lock()
		delete(s.consumer.handlers[s.stream], s.id)
		s.consumer.mu.Unlock()
	})
}

func knownStream(stream port.StreamKind) bool {
	switch stream {
	case port.StreamPermission, port.StreamRole, port.StreamResource, port.StreamUser,
		port.StreamCustomError, port.StreamPermissionDenied:
		return true
	}
	return false
}

// Subscribe registers handler for stream.
func (c *LedgerEventConsumer) Subscribe(ctx context.Context, stream port.StreamKind, handler port.EventHandler) (port.Subscription, error) {
	if !knownStream(stream) {
		return nil, fmt.Errorf("unknown stream %q", stream)
	}

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	if c.handlers[stream] == nil {
		c.handlers[stream] = make(map[uint64]port.EventHandler)
	}
	c.handlers[stream][id] = handler
	c.mu.Unlock()

	c.startOnce.Do(func() {
		if c.group == nil {
			return
		}
		runCtx, cancel := context.WithCancel(ctx)
		c.cancel = cancel
		c.wg.Add(2)
		go c.run(runCtx)
		go c.drainErrors(runCtx)
	})

	return &consumerSubscription{consumer: c, stream: stream, id: id}, nil
}

func (c *LedgerEventConsumer) run(ctx context.Context) {
	defer c.wg.Done()
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			c.logger.Warn("ledger event consumer session failed", zap.String("topic", c.topic), zap.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (c *LedgerEventConsumer) drainErrors(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case err, ok := <-c.group.Errors():
			if !ok {
				return
			}
			c.logger.Warn("ledger event consumer error", zap.Error(err))
		case <-ctx.Done():
			return
		}
	}
}

// Close stops consuming and leaves the group.
func (c *LedgerEventConsumer) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	var err error
	if c.group != nil {
		err = c.group.Close()
	}
	c.wg.Wait()
	if err != nil {
		return fmt.Errorf("close kafka consumer group: %w", err)
	}
	return nil
}

func (c *LedgerEventConsumer) Setup(sarama.ConsumerGroupSession) error { return nil }

func (c *LedgerEventConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim hands every message to HandleMessage. Undecodable messages are
// logged and committed so they never block the partition.
func (c *LedgerEventConsumer) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.HandleMessage(sess.Context(), msg); err != nil {
				c.logger.Warn("dropping ledger event message",
					zap.String("topic", msg.Topic),
					zap.Int32("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
			}
			sess.MarkMessage(msg, "")
		case <-sess.Context().Done():
			return nil
		}
	}
}

type inboundEnvelope struct {
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

// HandleMessage decodes a Kafka message and dispatches the ledger event.
func (c *LedgerEventConsumer) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if msg == nil {
		return fmt.Errorf("message is nil")
	}

	var envelope inboundEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return fmt.Errorf("decode ledger event envelope: %w", err)
	}
	stream, ok := streamFromEventType(envelope.EventType)
	if !ok {
		return fmt.Errorf("unexpected event type %q", envelope.EventType)
	}

	var event port.LedgerEvent
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		// The stream is still known; deliver a bare event so the
		// collection is re-read.
		c.logger.Warn("undecodable ledger event payload", zap.String("stream", string(stream)), zap.Error(err))
		event = port.LedgerEvent{}
	}
	event.Stream = stream

	return c.HandleEvent(ctx, event)
}

// HandleEvent hands event to every handler subscribed to its stream.
func (c *LedgerEventConsumer) HandleEvent(ctx context.Context, event port.LedgerEvent) error {
	c.mu.RLock()
	registered := c.handlers[event.Stream]
	handlers := make([]port.EventHandler, 0, len(registered))
	for _, h := range registered {
		handlers = append(handlers, h)
	}
	c.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, event)
	}
	return nil
}

var _ port.EventSource = (*LedgerEventConsumer)(nil)
