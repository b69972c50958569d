package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
	"github.com/pucco93/ebsi-access-control/internal/core/port"
	"github.com/pucco93/ebsi-access-control/internal/state"
)

var errDeclined = errors.New(`{"code":4001,"message":"MetaMask Tx Signature: User denied transaction signature."}`)

type ledgerCall struct {
	method    string
	account   string
	id        domain.Identifier
	remaining []domain.Identifier
	dids      []string
	did       string
	update    port.UserResourcesUpdate
	blacklist []string
	requester string
	perms     []domain.Identifier
}

type stubLedger struct {
	mu    sync.Mutex
	calls []ledgerCall

	permissions []port.RawPermission
	roles       []port.RawRole
	resources   []port.RawResource
	users       []port.RawUser
	permIDs     []domain.Identifier
	roleIDs     []domain.Identifier
	resourceIDs []domain.Identifier
	dids        []string
	userRoles   []port.RawResourceRole
	selfDID     string

	readErr     error
	writeErr    error
	selfDIDErr  error
	failOnWrite int // 1-based index of the write call that fails; 0 means writeErr applies to all

	onGetEbsiDID func()
	writes       int
}

func (l *stubLedger) record(c ledgerCall) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, c)
}

func (l *stubLedger) write(c ledgerCall) error {
	l.mu.Lock()
	l.writes++
	n := l.writes
	l.mu.Unlock()
	if l.writeErr != nil && (l.failOnWrite == 0 || l.failOnWrite == n) {
		return l.writeErr
	}
	l.record(c)
	return nil
}

func (l *stubLedger) callsFor(method string) []ledgerCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []ledgerCall
	for _, c := range l.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func (l *stubLedger) GetAllAvailablePermissions(context.Context) ([]port.RawPermission, error) {
	return l.permissions, l.readErr
}

func (l *stubLedger) GetPermission(_ context.Context, id domain.Identifier) (port.RawPermission, error) {
	if l.readErr != nil {
		return port.RawPermission{}, l.readErr
	}
	for _, p := range l.permissions {
		if p.Permission == id {
			return p, nil
		}
	}
	return port.RawPermission{}, nil
}

func (l *stubLedger) GetAllPermissionsInBytes32(context.Context) ([]domain.Identifier, error) {
	return l.permIDs, l.readErr
}

func (l *stubLedger) GetAllAvailableRoles(context.Context) ([]port.RawRole, error) {
	return l.roles, l.readErr
}

func (l *stubLedger) GetRole(_ context.Context, id domain.Identifier) (port.RawRole, error) {
	if l.readErr != nil {
		return port.RawRole{}, l.readErr
	}
	for _, r := range l.roles {
		if r.Name == id {
			return r, nil
		}
	}
	return port.RawRole{}, nil
}

func (l *stubLedger) GetAllRolesInBytes32(context.Context) ([]domain.Identifier, error) {
	return l.roleIDs, l.readErr
}

func (l *stubLedger) GetAllResources(context.Context) ([]port.RawResource, error) {
	return l.resources, l.readErr
}

func (l *stubLedger) GetResource(_ context.Context, id domain.Identifier) (port.RawResource, error) {
	if l.readErr != nil {
		return port.RawResource{}, l.readErr
	}
	for _, r := range l.resources {
		if r.Name == id {
			return r, nil
		}
	}
	return port.RawResource{}, nil
}

func (l *stubLedger) GetAllResourcesInBytes32(context.Context) ([]domain.Identifier, error) {
	return l.resourceIDs, l.readErr
}

func (l *stubLedger) GetAllUsers(context.Context) ([]port.RawUser, error) {
	return l.users, l.readErr
}

func (l *stubLedger) GetUser(_ context.Context, did string) (port.RawUser, error) {
	if l.readErr != nil {
		return port.RawUser{}, l.readErr
	}
	for _, u := range l.users {
		if u.EbsiDID == did {
			return u, nil
		}
	}
	return port.RawUser{}, nil
}

func (l *stubLedger) GetAllEbsiDIDs(context.Context) ([]string, error) {
	return l.dids, l.readErr
}

func (l *stubLedger) GetEbsiDID(_ context.Context, account string) (string, error) {
	l.record(ledgerCall{method: "getEbsiDID", account: account})
	if l.onGetEbsiDID != nil {
		l.onGetEbsiDID()
	}
	return l.selfDID, l.selfDIDErr
}

func (l *stubLedger) GetAllUserRoles(context.Context, string) ([]port.RawResourceRole, error) {
	return l.userRoles, l.readErr
}

func (l *stubLedger) CreateCustomPermission(_ context.Context, account string, id domain.Identifier) error {
	return l.write(ledgerCall{method: "createCustomPermission", account: account, id: id})
}

func (l *stubLedger) DeleteCustomPermission(_ context.Context, account string, remaining []domain.Identifier, id domain.Identifier) error {
	return l.write(ledgerCall{method: "deleteCustomPermission", account: account, id: id, remaining: remaining})
}

func (l *stubLedger) CreateCustomRole(_ context.Context, account string, id domain.Identifier, permissions []domain.Identifier) error {
	return l.write(ledgerCall{method: "createCustomRole", account: account, id: id, perms: permissions})
}

func (l *stubLedger) DeleteCustomRole(_ context.Context, account string, remaining []domain.Identifier, id domain.Identifier) error {
	return l.write(ledgerCall{method: "deleteCustomRole", account: account, id: id, remaining: remaining})
}

func (l *stubLedger) CreateResource(_ context.Context, account string, id domain.Identifier, creatorDID string) error {
	return l.write(ledgerCall{method: "createResource", account: account, id: id, requester: creatorDID})
}

func (l *stubLedger) DeleteResource(_ context.Context, account string, id domain.Identifier, remaining []domain.Identifier) error {
	return l.write(ledgerCall{method: "deleteResource", account: account, id: id, remaining: remaining})
}

func (l *stubLedger) UpdateResourceBlackList(_ context.Context, account, requesterDID string, resourceID domain.Identifier, blacklist []string) error {
	return l.write(ledgerCall{method: "updateResourceBlackList", account: account, id: resourceID, requester: requesterDID, blacklist: blacklist})
}

func (l *stubLedger) CreateUser(_ context.Context, account, did string) error {
	return l.write(ledgerCall{method: "createUser", account: account, did: did})
}

func (l *stubLedger) RemoveUser(_ context.Context, account, did string, remaining []string) error {
	return l.write(ledgerCall{method: "removeUser", account: account, did: did, dids: remaining})
}

func (l *stubLedger) UpdateUserResources(_ context.Context, account string, update port.UserResourcesUpdate) error {
	return l.write(ledgerCall{method: "updateUserResources", account: account, update: update})
}

type stubSession struct {
	account string
	did     string
	err     error
	cleared bool
}

func (s *stubSession) GetAccount(context.Context) (string, error) { return s.account, s.err }
func (s *stubSession) SetAccount(_ context.Context, account string) error {
	if s.err != nil {
		return s.err
	}
	s.account = account
	return nil
}
func (s *stubSession) GetSelfDID(context.Context) (string, error) { return s.did, s.err }
func (s *stubSession) SetSelfDID(_ context.Context, did string) error {
	if s.err != nil {
		return s.err
	}
	s.did = did
	return nil
}
func (s *stubSession) Clear(context.Context) error {
	s.account, s.did, s.cleared = "", "", true
	return s.err
}

type stubResolver struct {
	did string
	err error
}

func (r stubResolver) ResolveDID(any) (string, error) { return r.did, r.err }

type recordingPublisher struct {
	records []domain.OutcomeRecord
	err     error
}

func (p *recordingPublisher) PublishOutcome(_ context.Context, record domain.OutcomeRecord) error {
	p.records = append(p.records, record)
	return p.err
}

type recordingHistory struct {
	records []domain.OutcomeRecord
}

func (h *recordingHistory) Append(_ context.Context, record domain.OutcomeRecord) error {
	h.records = append(h.records, record)
	return nil
}

func (h *recordingHistory) ListRecent(_ context.Context, limit int) ([]domain.OutcomeRecord, error) {
	if limit > len(h.records) {
		limit = len(h.records)
	}
	return h.records[:limit], nil
}

type countingMetrics struct {
	mu       sync.Mutex
	dispatch map[string]int
	events   map[string]int
	refetch  map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{dispatch: map[string]int{}, events: map[string]int{}, refetch: map[string]int{}}
}

func (m *countingMetrics) ObserveDispatch(kind domain.EntityKind, op domain.OutcomeOperation, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatch[string(kind)+"/"+string(op)+"/"+result]++
}

func (m *countingMetrics) ObserveEvent(kind domain.EntityKind, eventType port.EventType, action string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[string(kind)+"/"+action]++
}

func (m *countingMetrics) ObserveRefetch(kind domain.EntityKind, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refetch[string(kind)+"/"+result]++
}

type fixture struct {
	ledger    *stubLedger
	store     *state.Store
	session   *stubSession
	publisher *recordingPublisher
	history   *recordingHistory
	metrics   *countingMetrics
	d         *Dispatcher
	accounts  *AccountService
}

var fixedNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := func() time.Time { return fixedNow }
	f := &fixture{
		ledger:    &stubLedger{},
		store:     state.New(state.Options{Now: now}),
		session:   &stubSession{},
		publisher: &recordingPublisher{},
		history:   &recordingHistory{},
		metrics:   newCountingMetrics(),
	}
	f.d = NewDispatcher(f.ledger, f.store).
		WithLogger(zaptest.NewLogger(t)).
		WithMetrics(f.metrics).
		WithPublisher(f.publisher).
		WithHistory(f.history).
		WithNow(now)
	f.accounts = NewAccountService(f.d, f.session)
	f.store.SetConnectedAccount("0xabc")
	return f
}

func ids(names ...string) []domain.Identifier {
	out := make([]domain.Identifier, 0, len(names))
	for _, n := range names {
		out = append(out, domain.MustEncodeName(n))
	}
	return out
}

func sameIDs(a, b []domain.Identifier) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
