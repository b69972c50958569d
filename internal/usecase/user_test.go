package usecase

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
	"github.com/pucco93/ebsi-access-control/internal/core/port"
)

func roleNamed(name string) domain.Role {
	return domain.Role{Name: name, IsCustom: true, Permissions: []string{"read"}}
}

func TestUpdateUserSubmitsOneCallPerChange(t *testing.T) {
	f := newFixture(t)
	f.session.did = "did:key:zAdmin"
	svc := NewUserService(f.d, f.accounts, stubResolver{})

	user := domain.User{EbsiDID: "did:key:zUser", Resources: []string{"reports", "billing"}}
	desired := []domain.ResourceRole{
		{ResourceName: "reports", Role: roleNamed("viewer")},
		{ResourceName: "audit", Role: roleNamed("auditor")},
	}

	result, err := svc.Update(context.Background(), user, desired)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if result.Added != 1 || result.Removed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	calls := f.ledger.callsFor("updateUserResources")
	if len(calls) != 2 {
		t.Fatalf("expected two calls, got %d", len(calls))
	}

	added := calls[0].update
	if added.Action != port.UserResourceCreation || added.ResourceID != domain.MustEncodeName("audit") {
		t.Fatalf("unexpected creation call: %+v", added)
	}
	if added.RequesterDID != "did:key:zAdmin" || added.EbsiDID != "did:key:zUser" {
		t.Fatalf("unexpected identities: %+v", added)
	}
	if !sameIDs(added.ResourceIDs, ids("reports", "audit")) {
		t.Fatalf("unexpected resource ids: %v", added.ResourceIDs)
	}
	if added.Role.Name != domain.MustEncodeName("auditor") {
		t.Fatalf("unexpected role: %+v", added.Role)
	}

	removed := calls[1].update
	if removed.Action != port.UserResourceDeletion || removed.ResourceID != domain.MustEncodeName("billing") {
		t.Fatalf("unexpected deletion call: %+v", removed)
	}
	if !removed.Role.Name.IsZero() {
		t.Fatalf("expected placeholder role on deletion, got %+v", removed.Role)
	}
}

func TestUpdateUserPartialFailureIsNotRolledBack(t *testing.T) {
	f := newFixture(t)
	f.session.did = "did:key:zAdmin"
	f.ledger.writeErr = errors.New("execution reverted")
	f.ledger.failOnWrite = 2
	svc := NewUserService(f.d, f.accounts, stubResolver{})

	user := domain.User{EbsiDID: "did:key:zUser", Resources: []string{}}
	desired := []domain.ResourceRole{
		{ResourceName: "reports", Role: roleNamed("viewer")},
		{ResourceName: "audit", Role: roleNamed("auditor")},
		{ResourceName: "billing", Role: roleNamed("payer")},
	}

	result, err := svc.Update(context.Background(), user, desired)
	if !errors.Is(err, domain.ErrLedgerCall) {
		t.Fatalf("expected ErrLedgerCall, got %v", err)
	}
	if result.Added != 1 {
		t.Fatalf("expected first association to stay committed, got %+v", result)
	}
	if got := len(f.ledger.callsFor("updateUserResources")); got != 1 {
		t.Fatalf("expected the sequence to stop at the failure, got %d successful calls", got)
	}
	outcome := f.store.Users().Outcome(domain.OperationUpdated)
	if outcome == nil || outcome.Status != domain.OutcomeError || outcome.Entity.EbsiDID != "did:key:zUser" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestUpdateUserRequiresRequester(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.d, f.accounts, stubResolver{})

	_, err := svc.Update(context.Background(), domain.User{EbsiDID: "did:key:zUser"}, nil)
	if !errors.Is(err, domain.ErrRequesterUnregistered) {
		t.Fatalf("expected ErrRequesterUnregistered, got %v", err)
	}
	if len(f.ledger.callsFor("updateUserResources")) != 0 {
		t.Fatalf("expected no association calls")
	}
}

func TestCreateUserRegistersAndAssociates(t *testing.T) {
	f := newFixture(t)
	f.session.did = "did:key:zAdmin"
	svc := NewUserService(f.d, f.accounts, stubResolver{did: "did:key:zNew"})

	form := domain.UserForm{
		Name:      "Ada",
		Email:     "ada@example.com",
		PublicKey: map[string]any{"kty": "EC"},
		ResourceRoles: []domain.ResourceRole{
			{ResourceName: "r1", Role: roleNamed("roleA")},
			{ResourceName: "r2", Role: roleNamed("roleB")},
			{ResourceName: "r1", Role: roleNamed("roleC")},
			{ResourceName: "", Role: roleNamed("ignored")},
		},
	}

	result, err := svc.Create(context.Background(), form)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if result.EbsiDID != "did:key:zNew" || result.Associations != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}

	created := f.ledger.callsFor("createUser")
	if len(created) != 1 || created[0].did != "did:key:zNew" {
		t.Fatalf("unexpected createUser calls: %+v", created)
	}

	assoc := f.ledger.callsFor("updateUserResources")
	if len(assoc) != 2 {
		t.Fatalf("expected two associations, got %d", len(assoc))
	}
	if assoc[0].update.ResourceID != domain.MustEncodeName("r2") || assoc[1].update.Role.Name != domain.MustEncodeName("roleC") {
		t.Fatalf("unexpected associations: %+v", assoc)
	}
	if !sameIDs(assoc[0].update.ResourceIDs, ids("r2", "r1")) {
		t.Fatalf("unexpected resource ids: %v", assoc[0].update.ResourceIDs)
	}
	if msg := f.store.Snapshot().Alert.Msg; msg != msgUserCreated {
		t.Fatalf("unexpected alert: %q", msg)
	}
}

func TestCreateUserWithoutRequesterSkipsAssociations(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.d, f.accounts, stubResolver{did: "did:key:zNew"})

	form := domain.UserForm{
		PublicKey:     "pem",
		ResourceRoles: []domain.ResourceRole{{ResourceName: "r1", Role: roleNamed("roleA")}},
	}

	result, err := svc.Create(context.Background(), form)
	if !errors.Is(err, domain.ErrRequesterUnregistered) {
		t.Fatalf("expected ErrRequesterUnregistered, got %v", err)
	}
	if result.EbsiDID != "did:key:zNew" {
		t.Fatalf("expected the user to be registered anyway, got %+v", result)
	}
	if len(f.ledger.callsFor("createUser")) != 1 || len(f.ledger.callsFor("updateUserResources")) != 0 {
		t.Fatalf("unexpected calls: %+v", f.ledger.calls)
	}
}

func TestCreateUserInvalidKey(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.d, f.accounts, stubResolver{err: errors.New("unsupported key")})

	_, err := svc.Create(context.Background(), domain.UserForm{PublicKey: 42})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(f.ledger.calls) != 0 {
		t.Fatalf("expected no ledger calls")
	}
}

func TestDeleteUserPassesRemainingDIDs(t *testing.T) {
	f := newFixture(t)
	f.ledger.dids = []string{"did:key:z1", "did:key:z2", "did:key:z3"}
	svc := NewUserService(f.d, f.accounts, stubResolver{})

	if err := svc.Delete(context.Background(), "did:key:z2"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	calls := f.ledger.callsFor("removeUser")
	if len(calls) != 1 || len(calls[0].dids) != 2 || calls[0].dids[0] != "did:key:z1" || calls[0].dids[1] != "did:key:z3" {
		t.Fatalf("unexpected calls: %+v", calls)
	}
}

func TestFindUserExpandsBareIdentifier(t *testing.T) {
	f := newFixture(t)
	f.ledger.users = []port.RawUser{{EbsiDID: "did:key:z123", CreatedTime: big.NewInt(1700000000)}}
	svc := NewUserService(f.d, f.accounts, stubResolver{})

	user, err := svc.Find(context.Background(), "z123")
	if err != nil {
		t.Fatalf("Find returned error: %v", err)
	}
	if user == nil || user.EbsiDID != "did:key:z123" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if items := f.store.Users().Items(); len(items) != 1 {
		t.Fatalf("expected one user in the collection, got %d", len(items))
	}
}

func TestListUserRoles(t *testing.T) {
	f := newFixture(t)
	f.ledger.userRoles = []port.RawResourceRole{
		{ResourceName: domain.MustEncodeName("reports"), Role: port.RawRole{Name: domain.MustEncodeName("viewer")}},
		{ResourceName: domain.ZeroIdentifier},
	}
	svc := NewUserService(f.d, f.accounts, stubResolver{})

	view, err := svc.ListUserRoles(context.Background(), "did:key:zUser")
	if err != nil {
		t.Fatalf("ListUserRoles returned error: %v", err)
	}
	if len(view.ResourceRoles) != 1 || view.ResourceRoles[0].Role.Name != "viewer" {
		t.Fatalf("unexpected view: %+v", view)
	}
	if snap := f.store.Snapshot(); snap.CurrentUserInView.User != "did:key:zUser" {
		t.Fatalf("expected user in view to be stored, got %+v", snap.CurrentUserInView)
	}
}
