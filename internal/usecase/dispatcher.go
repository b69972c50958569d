package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
	"github.com/pucco93/ebsi-access-control/internal/core/port"
	"github.com/pucco93/ebsi-access-control/internal/infra/logger"
)

// DeclinedPhrase is the text the signer puts in its error when the connected
// account refuses to authorize a transaction.
const DeclinedPhrase = "User denied transaction signature"

const (
	msgSomethingWrong        = "Something went wrong"
	msgReadFailed            = "Something went wrong!"
	msgRequesterUnregistered = "Current user cannot create resources, register it before using app!"
)

// Dispatch results reported to Metrics.
const (
	ResultSuccess  = "success"
	ResultDeclined = "declined"
	ResultFailed   = "failed"
	ResultRejected = "rejected"
)

// Metrics captures telemetry hooks for dispatch and reconciliation.
type Metrics interface {
	ObserveDispatch(kind domain.EntityKind, op domain.OutcomeOperation, result string)
	ObserveEvent(kind domain.EntityKind, eventType port.EventType, action string)
	ObserveRefetch(kind domain.EntityKind, result string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveDispatch(domain.EntityKind, domain.OutcomeOperation, string) {}
func (noopMetrics) ObserveEvent(domain.EntityKind, port.EventType, string)           {}
func (noopMetrics) ObserveRefetch(domain.EntityKind, string)                         {}

// ClassifyLedgerError maps a raw transport failure onto the console error
// taxonomy. Errors that already carry a domain sentinel pass through.
func ClassifyLedgerError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrAuthorizationDeclined),
		errors.Is(err, domain.ErrLedgerCall),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrRequesterUnregistered),
		errors.Is(err, domain.ErrNotConnected):
		return err
	case strings.Contains(err.Error(), DeclinedPhrase):
		return fmt.Errorf("%w: %v", domain.ErrAuthorizationDeclined, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrLedgerCall, err)
}

// FailureMessage returns the alert text for a failed write, action being
// e.g. "create permission".
func FailureMessage(action string, err error) string {
	if errors.Is(err, domain.ErrAuthorizationDeclined) {
		return fmt.Sprintf("Failed to %s: User rejected transaction", action)
	}
	return msgSomethingWrong
}

// Dispatcher carries the collaborators shared by every command service.
type Dispatcher struct {
	ledger    port.Ledger
	store     port.StateStore
	publisher port.OutcomePublisher
	history   port.OutcomeHistory
	logger    *zap.Logger
	metrics   Metrics
	now       func() time.Time
	newID     func() string
}

// NewDispatcher constructs a Dispatcher over the ledger and the state store.
func NewDispatcher(ledger port.Ledger, store port.StateStore) *Dispatcher {
	return &Dispatcher{
		ledger:  ledger,
		store:   store,
		logger:  zap.NewNop(),
		metrics: noopMetrics{},
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// WithLogger attaches a structured logger.
func (d *Dispatcher) WithLogger(logger *zap.Logger) *Dispatcher {
	if logger != nil {
		d.logger = logger
	}
	return d
}

// WithMetrics attaches telemetry hooks.
func (d *Dispatcher) WithMetrics(metrics Metrics) *Dispatcher {
	if metrics != nil {
		d.metrics = metrics
	}
	return d
}

// WithPublisher fans every Outcome out to publisher. Failures are logged only.
func (d *Dispatcher) WithPublisher(publisher port.OutcomePublisher) *Dispatcher {
	d.publisher = publisher
	return d
}

// WithHistory appends every Outcome to history. Failures are logged only.
func (d *Dispatcher) WithHistory(history port.OutcomeHistory) *Dispatcher {
	d.history = history
	return d
}

// WithNow overrides the clock, primarily for deterministic testing.
func (d *Dispatcher) WithNow(now func() time.Time) *Dispatcher {
	if now != nil {
		d.now = now
	}
	return d
}

// Store exposes the state container.
func (d *Dispatcher) Store() port.StateStore {
	return d.store
}

// History exposes the outcome audit sink, which may be nil.
func (d *Dispatcher) History() port.OutcomeHistory {
	return d.history
}

func (d *Dispatcher) account() string {
	return d.store.ConnectedAccount()
}

// fail classifies err, raises the general alert and logs the failure. It
// returns the classified error.
func (d *Dispatcher) fail(action string, kind domain.EntityKind, op domain.OutcomeOperation, subject string, err error) error {
	classified := ClassifyLedgerError(err)
	msg := FailureMessage(action, classified)
	d.store.ShowAlert(domain.AlertGeneral, msg, domain.ColorRed)

	result := ResultFailed
	if errors.Is(classified, domain.ErrAuthorizationDeclined) {
		result = ResultDeclined
	}
	d.metrics.ObserveDispatch(kind, op, result)
	d.logger.Error("ledger write failed",
		zap.String("entity", string(kind)),
		zap.String("operation", string(op)),
		zap.String("subject", subject),
		zap.String("result", result),
		zap.Error(err),
	)
	return classified
}

// succeed records a submitted write.
func (d *Dispatcher) succeed(kind domain.EntityKind, op domain.OutcomeOperation, subject string) {
	d.metrics.ObserveDispatch(kind, op, ResultSuccess)
	d.logger.Info("ledger write submitted",
		zap.String("entity", string(kind)),
		zap.String("operation", string(op)),
		zap.String("subject", subject),
	)
}

// readFailed raises the read alert and logs. Callers decide whether to reset
// the collection.
func (d *Dispatcher) readFailed(kind domain.EntityKind, call string, err error) error {
	d.store.ShowAlert(domain.AlertGeneral, msgReadFailed, domain.ColorRed)
	d.metrics.ObserveRefetch(kind, ResultFailed)
	d.logger.Error("ledger read failed",
		zap.String("entity", string(kind)),
		zap.String("call", call),
		zap.Error(err),
	)
	return ClassifyLedgerError(err)
}

// loading raises the loader for kind and returns its cancel func.
func (d *Dispatcher) loading(kind domain.EntityKind) func() {
	d.store.SetLoader(kind.DataType(), fmt.Sprintf("Loading %ss...", kind))
	return d.store.CancelLoader
}

// fanOut forwards an Outcome to the publisher and the audit history.
func (d *Dispatcher) fanOut(ctx context.Context, record domain.OutcomeRecord) {
	if d.publisher == nil && d.history == nil {
		return
	}
	if record.ID == "" {
		record.ID = d.newID()
	}
	if record.Recorded.IsZero() {
		record.Recorded = d.now().UTC()
	}
	if record.Account == "" {
		record.Account = d.account()
	}
	if record.RequestID == "" {
		record.RequestID = logger.RequestIDFromContext(ctx)
	}

	if d.publisher != nil {
		if err := d.publisher.PublishOutcome(ctx, record); err != nil {
			d.logger.Warn("failed to publish outcome", zap.String("kind", string(record.Kind)), zap.String("subject", record.Subject), zap.Error(err))
		}
	}
	if d.history != nil {
		if err := d.history.Append(ctx, record); err != nil {
			d.logger.Warn("failed to append outcome history", zap.String("kind", string(record.Kind)), zap.String("subject", record.Subject), zap.Error(err))
		}
	}
}

// writeOutcome stores an Outcome on coll and fans it out.
func writeOutcome[T any, K comparable](ctx context.Context, d *Dispatcher, coll port.EntityCollection[T, K], kind domain.EntityKind, op domain.OutcomeOperation, status domain.OutcomeStatus, entity T, subject, message string) {
	recorded := d.now().UTC()
	coll.SetOutcome(op, &domain.Outcome[T]{
		Status:   status,
		Entity:   entity,
		Message:  message,
		Recorded: recorded,
	})
	d.fanOut(ctx, domain.OutcomeRecord{
		Kind:      kind,
		Operation: op,
		Status:    status,
		Subject:   subject,
		Message:   message,
		Recorded:  recorded,
	})
}
