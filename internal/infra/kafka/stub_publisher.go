package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
	"github.com/pucco93/ebsi-access-control/internal/core/port"
	"github.com/pucco93/ebsi-access-control/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{logger: log}
}

// PublishOutcome logs the outcome record.
func (p *StubPublisher) PublishOutcome(_ context.Context, record domain.OutcomeRecord) error {
	p.logger.Info("Stub outcome published",
		zap.String("event_type", OutcomeTopic),
		zap.String("id", record.ID),
		zap.String("kind", string(record.Kind)),
		zap.String("operation", string(record.Operation)),
		zap.String("status", string(record.Status)),
		zap.String("account", logger.MaskAccount(record.Account)),
		zap.Time("timestamp", record.Recorded.UTC()),
	)
	return nil
}

// PublishLedgerEvent logs the mirrored ledger event.
func (p *StubPublisher) PublishLedgerEvent(_ context.Context, ev port.LedgerEvent) error {
	p.logger.Info("Stub ledger event published",
		zap.String("event_type", ledgerEventPrefix+string(ev.Stream)),
		zap.String("type", string(ev.Type)),
		zap.String("tx", ev.TxHash),
	)
	return nil
}

var _ port.OutcomePublisher = (*StubPublisher)(nil)
