package state

import (
	"sync"
	"testing"
	"time"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore() (*Store, *clock) {
	c := &clock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	return New(Options{AlertTTL: 5 * time.Second, OutcomeTTL: 6 * time.Second, Now: c.Now}), c
}

func TestAddDeduplicatesByName(t *testing.T) {
	s, _ := newTestStore()
	id := domain.MustEncodeName("reports")

	if !s.Resources().Add(domain.Resource{Name: "reports"}, id) {
		t.Fatalf("expected first add to append")
	}
	if s.Resources().Add(domain.Resource{Name: "reports"}, id) {
		t.Fatalf("expected second add to be skipped")
	}
	if len(s.Resources().Items()) != 1 || len(s.Resources().Keys()) != 1 {
		t.Fatalf("unexpected collection: %+v %v", s.Resources().Items(), s.Resources().Keys())
	}
}

func TestAddKeyRespectsExistingItems(t *testing.T) {
	s, _ := newTestStore()
	s.Users().Replace([]domain.User{{EbsiDID: "did:key:z1"}})

	if s.Users().AddKey("did:key:z1") {
		t.Fatalf("expected AddKey to skip a DID already listed as an item")
	}
	if !s.Users().AddKey("did:key:z2") {
		t.Fatalf("expected AddKey to append a new DID")
	}
	if !s.Users().Contains("did:key:z1") || !s.Users().Contains("did:key:z2") {
		t.Fatalf("expected both DIDs to be contained")
	}
}

func TestRemoveFiltersItemsAndKeys(t *testing.T) {
	s, _ := newTestStore()
	s.Permissions().Replace([]domain.Permission{{Name: "read"}, {Name: "write"}})
	s.Permissions().ReplaceKeys([]domain.Identifier{domain.MustEncodeName("read"), domain.MustEncodeName("write")})

	if !s.Permissions().Remove(domain.MustEncodeName("read")) {
		t.Fatalf("expected removal to report a change")
	}
	if s.Permissions().Remove(domain.MustEncodeName("read")) {
		t.Fatalf("expected second removal to be a no-op")
	}
	items := s.Permissions().Items()
	if len(items) != 1 || items[0].Name != "write" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestKeysWithout(t *testing.T) {
	s, _ := newTestStore()
	a, b, c := domain.MustEncodeName("A"), domain.MustEncodeName("B"), domain.MustEncodeName("C")
	s.Roles().ReplaceKeys([]domain.Identifier{a, b, c})

	got := s.Roles().KeysWithout(b)
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Fatalf("unexpected remaining set: %v", got)
	}
	if len(s.Roles().Keys()) != 3 {
		t.Fatalf("KeysWithout must not mutate the collection")
	}
}

func TestItemsAreCopies(t *testing.T) {
	s, _ := newTestStore()
	s.Roles().Replace([]domain.Role{{Name: "editor", Permissions: []string{"read"}}})

	items := s.Roles().Items()
	items[0].Permissions[0] = "mutated"

	if got := s.Roles().Items()[0].Permissions[0]; got != "read" {
		t.Fatalf("external mutation leaked into the store: %q", got)
	}
}

func TestAlertsExpire(t *testing.T) {
	s, c := newTestStore()
	s.ShowAlert(domain.AlertGeneral, "Something went wrong", domain.ColorRed)

	if snap := s.Snapshot(); !snap.Alert.Show || snap.Alert.Msg != "Something went wrong" {
		t.Fatalf("expected alert visible, got %+v", snap.Alert)
	}

	c.Advance(6 * time.Second)
	if snap := s.Snapshot(); snap.Alert.Show {
		t.Fatalf("expected alert dismissed, got %+v", snap.Alert)
	}
}

func TestOutcomesConsumedOnce(t *testing.T) {
	s, _ := newTestStore()
	s.Permissions().SetOutcome(domain.OperationCreated, &domain.Outcome[domain.Permission]{
		Status: domain.OutcomeSuccess,
		Entity: domain.Permission{Name: "audit"},
	})

	set := s.ConsumeOutcomes()
	if set.Permissions.Created == nil || set.Permissions.Created.Entity.Name != "audit" {
		t.Fatalf("unexpected outcome set: %+v", set.Permissions)
	}
	if set.Permissions.Created.Recorded.IsZero() {
		t.Fatalf("expected outcome to be stamped")
	}
	if again := s.ConsumeOutcomes(); again.Permissions.Created != nil {
		t.Fatalf("expected outcome reset after consumption")
	}
}

func TestOutcomesExpire(t *testing.T) {
	s, c := newTestStore()
	s.Users().SetOutcome(domain.OperationDeleted, &domain.Outcome[domain.User]{
		Status: domain.OutcomeError,
		Entity: domain.User{EbsiDID: "did:key:z1"},
	})

	c.Advance(7 * time.Second)
	if snap := s.Snapshot(); snap.Users.Outcomes.Deleted != nil {
		t.Fatalf("expected outcome to expire, got %+v", snap.Users.Outcomes.Deleted)
	}
}

func TestLoaderAndIdentity(t *testing.T) {
	s, _ := newTestStore()
	s.SetLoader(domain.DataTypeRoles, "Loading roles...")
	s.SetConnectedAccount("0xabc")
	s.SetCurrentUserDID("did:key:zMe")
	s.SetUserInView(domain.UserInView{User: "did:key:zMe", ResourceRoles: []domain.ResourceRole{{ResourceName: "reports"}}})

	snap := s.Snapshot()
	if !snap.Loader.Show || snap.Loader.DataType != domain.DataTypeRoles {
		t.Fatalf("unexpected loader: %+v", snap.Loader)
	}
	if snap.ConnectedAccount != "0xabc" || snap.CurrentUserDID != "did:key:zMe" {
		t.Fatalf("unexpected identity: %+v", snap)
	}
	if len(snap.CurrentUserInView.ResourceRoles) != 1 {
		t.Fatalf("unexpected user in view: %+v", snap.CurrentUserInView)
	}

	s.CancelLoader()
	if s.Snapshot().Loader.Show {
		t.Fatalf("expected loader cancelled")
	}
}

func TestConcurrentAddsStayDeduplicated(t *testing.T) {
	s, _ := newTestStore()
	id := domain.MustEncodeName("audit")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Permissions().Add(domain.Permission{Name: "audit"}, id)
		}()
	}
	wg.Wait()

	if len(s.Permissions().Items()) != 1 {
		t.Fatalf("expected one entry, got %d", len(s.Permissions().Items()))
	}
}
