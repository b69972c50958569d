package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
	"github.com/pucco93/ebsi-access-control/internal/core/mapper"
	"github.com/pucco93/ebsi-access-control/internal/core/port"
)

// Reconciler actions reported to Metrics.
const (
	ActionAppended = "appended"
	ActionSkipped  = "skipped"
	ActionRemoved  = "removed"
	ActionUpdated  = "updated"
	ActionRefetch  = "refetch"
	ActionAlert    = "alert"
	ActionInvalid  = "invalid"
	ActionReplayed = "replayed"
)

// seenCapacity bounds how many delivered logs are remembered for replay
// detection.
const seenCapacity = 4096

// Refresher re-reads one collection and its key list from the ledger.
type Refresher interface {
	Load(ctx context.Context) error
}

// Reconciler applies ledger notifications to the state store. Creation events
// are appended only when the entity is absent; user creations additionally
// re-read the user list because their payload only carries the DID.
type Reconciler struct {
	*Dispatcher
	source     port.EventSource
	refreshers map[domain.EntityKind]Refresher

	mu   sync.Mutex
	subs []port.Subscription
	seen *seenLogs
}

// NewReconciler constructs a Reconciler fed by source.
func NewReconciler(d *Dispatcher, source port.EventSource, refreshers map[domain.EntityKind]Refresher) *Reconciler {
	if refreshers == nil {
		refreshers = map[domain.EntityKind]Refresher{}
	}
	return &Reconciler{Dispatcher: d, source: source, refreshers: refreshers, seen: newSeenLogs(seenCapacity)}
}

// Start subscribes to every entity and alert stream. A stream that cannot be
// subscribed is logged and skipped; the joined failures are returned so the
// caller can report them without aborting.
func (r *Reconciler) Start(ctx context.Context) error {
	streams := append(append([]port.StreamKind{}, port.EntityStreams...), port.StreamCustomError, port.StreamPermissionDenied)

	var errs []error
	for _, stream := range streams {
		sub, err := r.source.Subscribe(ctx, stream, r.Apply)
		if err != nil {
			wrapped := fmt.Errorf("%w: %s: %v", domain.ErrEventListenerInit, stream, err)
			r.logger.Warn("event listener has not been initialized", zap.String("stream", string(stream)), zap.Error(err))
			errs = append(errs, wrapped)
			continue
		}
		r.mu.Lock()
		r.subs = append(r.subs, sub)
		r.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Stop cancels every subscription.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// Apply processes one event against the current store contents. Events are
// applied one at a time; a log delivered twice (same transaction and log
// index) is applied once.
func (r *Reconciler) Apply(ctx context.Context, ev port.LedgerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind := ev.Stream.Kind()
	if err := ev.Validate(); err != nil {
		r.logger.Warn("malformed ledger event", zap.String("stream", string(ev.Stream)), zap.String("tx", ev.TxHash), zap.Error(err))
		r.metrics.ObserveEvent(kind, ev.Type, ActionInvalid)
		if kind != "" {
			r.refetch(ctx, kind)
		}
		return
	}
	if ev.TxHash != "" && !r.seen.add(fmt.Sprintf("%s/%d", ev.TxHash, ev.LogIndex)) {
		r.logger.Debug("ledger event already applied", zap.String("stream", string(ev.Stream)), zap.String("tx", ev.TxHash), zap.Uint("log_index", ev.LogIndex))
		r.metrics.ObserveEvent(kind, ev.Type, ActionReplayed)
		return
	}

	switch ev.Stream {
	case port.StreamPermission:
		r.applyPermission(ctx, ev)
	case port.StreamRole:
		r.applyRole(ctx, ev)
	case port.StreamResource:
		r.applyResource(ctx, ev)
	case port.StreamUser:
		r.applyUser(ctx, ev)
	case port.StreamCustomError:
		r.store.ShowAlert(domain.AlertCustomError, ev.Message, domain.ColorRed)
		r.metrics.ObserveEvent(kind, ev.Type, ActionAlert)
	case port.StreamPermissionDenied:
		r.store.ShowAlert(domain.AlertPermissionDenied, ev.Message, domain.ColorRed)
		r.metrics.ObserveEvent(kind, ev.Type, ActionAlert)
	}
}

func (r *Reconciler) applyPermission(ctx context.Context, ev port.LedgerEvent) {
	id := ev.Permission.Permission
	permission := mapper.PermissionToDomain(*ev.Permission)
	coll := r.store.Permissions()

	switch ev.Type {
	case port.EventCreation:
		if id.IsZero() {
			r.refetch(ctx, domain.KindPermission)
			return
		}
		if coll.Add(permission, id) {
			writeOutcome(ctx, r.Dispatcher, coll, domain.KindPermission, domain.OperationCreated, domain.OutcomeSuccess, permission, permission.Name, "")
			r.observe(domain.KindPermission, ev, ActionAppended)
			return
		}
		r.observe(domain.KindPermission, ev, ActionSkipped)
	case port.EventDeletion:
		coll.Remove(id)
		writeOutcome(ctx, r.Dispatcher, coll, domain.KindPermission, domain.OperationDeleted, domain.OutcomeSuccess, permission, permission.Name, "")
		r.observe(domain.KindPermission, ev, ActionRemoved)
	default:
		r.refetch(ctx, domain.KindPermission)
	}
}

func (r *Reconciler) applyRole(ctx context.Context, ev port.LedgerEvent) {
	id := ev.Role.Name
	role := mapper.RoleToDomain(*ev.Role)
	coll := r.store.Roles()

	switch ev.Type {
	case port.EventCreation:
		if id.IsZero() {
			r.refetch(ctx, domain.KindRole)
			return
		}
		if coll.Add(role, id) {
			writeOutcome(ctx, r.Dispatcher, coll, domain.KindRole, domain.OperationCreated, domain.OutcomeSuccess, role, role.Name, "")
			r.observe(domain.KindRole, ev, ActionAppended)
			return
		}
		r.observe(domain.KindRole, ev, ActionSkipped)
	case port.EventDeletion:
		coll.Remove(id)
		writeOutcome(ctx, r.Dispatcher, coll, domain.KindRole, domain.OperationDeleted, domain.OutcomeSuccess, role, role.Name, "")
		r.observe(domain.KindRole, ev, ActionRemoved)
	default:
		r.refetch(ctx, domain.KindRole)
	}
}

func (r *Reconciler) applyResource(ctx context.Context, ev port.LedgerEvent) {
	id := ev.Resource.Name
	resource := mapper.ResourceEventToDomain(*ev.Resource)
	coll := r.store.Resources()

	switch ev.Type {
	case port.EventCreation:
		if id.IsZero() {
			r.refetch(ctx, domain.KindResource)
			return
		}
		if coll.Add(resource, id) {
			writeOutcome(ctx, r.Dispatcher, coll, domain.KindResource, domain.OperationCreated, domain.OutcomeSuccess, resource, resource.Name, "")
			r.observe(domain.KindResource, ev, ActionAppended)
			return
		}
		r.observe(domain.KindResource, ev, ActionSkipped)
	case port.EventDeletion:
		coll.Remove(id)
		writeOutcome(ctx, r.Dispatcher, coll, domain.KindResource, domain.OperationDeleted, domain.OutcomeSuccess, resource, resource.Name, "")
		r.observe(domain.KindResource, ev, ActionRemoved)
	case port.EventBlacklistUpdated:
		writeOutcome(ctx, r.Dispatcher, coll, domain.KindResource, domain.OperationUpdated, domain.OutcomeSuccess, resource, resource.Name, ev.Resource.ListedUser)
		r.observe(domain.KindResource, ev, ActionUpdated)
		r.refetch(ctx, domain.KindResource)
	default:
		r.refetch(ctx, domain.KindResource)
	}
}

func (r *Reconciler) applyUser(ctx context.Context, ev port.LedgerEvent) {
	did := ev.EbsiDID
	user := domain.User{EbsiDID: did, Resources: []string{}}
	coll := r.store.Users()

	switch ev.Type {
	case port.EventCreation:
		if coll.AddKey(did) {
			writeOutcome(ctx, r.Dispatcher, coll, domain.KindUser, domain.OperationCreated, domain.OutcomeSuccess, user, did, "")
			r.observe(domain.KindUser, ev, ActionAppended)
		} else {
			r.observe(domain.KindUser, ev, ActionSkipped)
		}
		r.refetch(ctx, domain.KindUser)
	case port.EventDeletion:
		coll.Remove(did)
		writeOutcome(ctx, r.Dispatcher, coll, domain.KindUser, domain.OperationDeleted, domain.OutcomeSuccess, user, did, "")
		r.observe(domain.KindUser, ev, ActionRemoved)
	case port.EventUpdatedResourceAdded, port.EventUpdatedResourceRemoved:
		writeOutcome(ctx, r.Dispatcher, coll, domain.KindUser, domain.OperationUpdated, domain.OutcomeSuccess, user, did, string(ev.Type))
		r.observe(domain.KindUser, ev, ActionUpdated)
		r.refetch(ctx, domain.KindUser)
	default:
		r.refetch(ctx, domain.KindUser)
	}
}

func (r *Reconciler) refetch(ctx context.Context, kind domain.EntityKind) {
	r.metrics.ObserveEvent(kind, "", ActionRefetch)
	refresher, ok := r.refreshers[kind]
	if !ok {
		r.logger.Warn("no refresher registered", zap.String("kind", string(kind)))
		return
	}
	if err := refresher.Load(ctx); err != nil {
		r.logger.Warn("collection refresh failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}

func (r *Reconciler) observe(kind domain.EntityKind, ev port.LedgerEvent, action string) {
	r.metrics.ObserveEvent(kind, ev.Type, action)
	r.logger.Debug("ledger event applied",
		zap.String("kind", string(kind)),
		zap.String("event_type", string(ev.Type)),
		zap.String("action", action),
		zap.String("tx", ev.TxHash),
	)
}

// seenLogs is a fixed-size set of log keys evicted in insertion order.
type seenLogs struct {
	keys  map[string]struct{}
	order []string
	next  int
}

func newSeenLogs(capacity int) *seenLogs {
	return &seenLogs{keys: make(map[string]struct{}, capacity), order: make([]string, capacity)}
}

// add records key and reports whether it was new.
func (s *seenLogs) add(key string) bool {
	if _, ok := s.keys[key]; ok {
		return false
	}
	if old := s.order[s.next]; old != "" {
		delete(s.keys, old)
	}
	s.order[s.next] = key
	s.keys[key] = struct{}{}
	s.next = (s.next + 1) % len(s.order)
	return true
}
