package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
	"github.com/pucco93/ebsi-access-control/internal/core/port"
)

// Namespace prefixes every console metric.
const Namespace = "acl"

// Register registers c with reg. When an equal collector is already
// registered, the existing one is returned so repeated wiring in tests and
// restarts shares series.
func Register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(c); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return c, fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

// Provider holds the console's domain collectors. It satisfies the
// dispatcher and reconciler metrics hook.
type Provider struct {
	dispatch *prometheus.CounterVec
	events   *prometheus.CounterVec
	refetch  *prometheus.CounterVec
}

// Attach builds and registers the domain collectors on reg.
func Attach(reg prometheus.Registerer) (*Provider, error) {
	dispatch, err := Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "dispatch_total",
		Help:      "Ledger write commands partitioned by entity, operation and result.",
	}, []string{"entity", "operation", "result"}))
	if err != nil {
		return nil, fmt.Errorf("dispatch counter: %w", err)
	}

	events, err := Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "reconciler_events_total",
		Help:      "Ledger notifications applied by the reconciler partitioned by kind, event type and action.",
	}, []string{"kind", "event_type", "action"}))
	if err != nil {
		return nil, fmt.Errorf("reconciler counter: %w", err)
	}

	refetch, err := Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "refetch_total",
		Help:      "Collection reads partitioned by kind and result.",
	}, []string{"kind", "result"}))
	if err != nil {
		return nil, fmt.Errorf("refetch counter: %w", err)
	}

	return &Provider{dispatch: dispatch, events: events, refetch: refetch}, nil
}

func (p *Provider) ObserveDispatch(kind domain.EntityKind, op domain.OutcomeOperation, result string) {
	p.dispatch.WithLabelValues(string(kind), string(op), result).Inc()
}

func (p *Provider) ObserveEvent(kind domain.EntityKind, eventType port.EventType, action string) {
	label := string(kind)
	if label == "" {
		label = "alert"
	}
	p.events.WithLabelValues(label, string(eventType), action).Inc()
}

func (p *Provider) ObserveRefetch(kind domain.EntityKind, result string) {
	p.refetch.WithLabelValues(string(kind), result).Inc()
}
