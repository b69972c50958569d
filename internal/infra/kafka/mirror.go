package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/pucco93/ebsi-access-control/internal/core/port"
)

// LedgerEventPublisher republishes decoded ledger notifications.
type LedgerEventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev port.LedgerEvent) error
}

// MirroringSource forwards every event of inner to a publisher before handing
// it to the subscriber, so other console replicas can consume the ledger
// stream from Kafka instead of holding their own node subscription.
type MirroringSource struct {
	inner     port.EventSource
	publisher LedgerEventPublisher
	logger    *zap.Logger
}

// NewMirroringSource wraps inner.
func NewMirroringSource(inner port.EventSource, publisher LedgerEventPublisher, logger *zap.Logger) *MirroringSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MirroringSource{inner: inner, publisher: publisher, logger: logger}
}

func (m *MirroringSource) Subscribe(ctx context.Context, stream port.StreamKind, handler port.EventHandler) (port.Subscription, error) {
	return m.inner.Subscribe(ctx, stream, func(ctx context.Context, ev port.LedgerEvent) {
		if err := m.publisher.PublishLedgerEvent(ctx, ev); err != nil {
			m.logger.Warn("failed to mirror ledger event", zap.String("stream", string(ev.Stream)), zap.Error(err))
		}
		handler(ctx, ev)
	})
}

var _ port.EventSource = (*MirroringSource)(nil)
