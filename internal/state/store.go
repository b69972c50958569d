// Package state holds the console's single application state container.
package state

import (
	"sync"
	"time"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
	"github.com/pucco93/ebsi-access-control/internal/core/port"
)

const (
	defaultAlertTTL   = 5 * time.Second
	defaultOutcomeTTL = 6 * time.Second
)

// Options tunes alert and outcome display windows.
type Options struct {
	AlertTTL   time.Duration
	OutcomeTTL time.Duration
	Now        func() time.Time
}

// Store is the in-memory StateStore.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	alertTTL   time.Duration
	outcomeTTL time.Duration

	alerts            map[domain.AlertKind]domain.Alert
	loader            domain.Loader
	connectedAccount  string
	currentUserDID    string
	currentUserInView domain.UserInView

	permissions *collection[domain.Permission, domain.Identifier]
	roles       *collection[domain.Role, domain.Identifier]
	resources   *collection[domain.Resource, domain.Identifier]
	users       *collection[domain.User, string]
}

var _ port.StateStore = (*Store)(nil)

// New constructs an empty Store.
func New(opts Options) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	alertTTL := opts.AlertTTL
	if alertTTL <= 0 {
		alertTTL = defaultAlertTTL
	}
	outcomeTTL := opts.OutcomeTTL
	if outcomeTTL <= 0 {
		outcomeTTL = defaultOutcomeTTL
	}

	s := &Store{
		now:        now,
		alertTTL:   alertTTL,
		outcomeTTL: outcomeTTL,
		alerts:     make(map[domain.AlertKind]domain.Alert),
	}

	s.permissions = newCollection(&s.mu,
		func(p domain.Permission) string { return p.Name },
		domain.DecodeIdentifier,
		func(p domain.Permission) domain.Permission { return p },
		now,
	)
	s.roles = newCollection(&s.mu,
		func(r domain.Role) string { return r.Name },
		domain.DecodeIdentifier,
		cloneRole,
		now,
	)
	s.resources = newCollection(&s.mu,
		func(r domain.Resource) string { return r.Name },
		domain.DecodeIdentifier,
		func(r domain.Resource) domain.Resource {
			r.Blacklist = cloneStrings(r.Blacklist)
			return r
		},
		now,
	)
	s.users = newCollection(&s.mu,
		func(u domain.User) string { return u.EbsiDID },
		func(did string) string { return did },
		func(u domain.User) domain.User {
			u.Resources = cloneStrings(u.Resources)
			return u
		},
		now,
	)

	return s
}

func (s *Store) Permissions() port.EntityCollection[domain.Permission, domain.Identifier] {
	return s.permissions
}

func (s *Store) Roles() port.EntityCollection[domain.Role, domain.Identifier] {
	return s.roles
}

func (s *Store) Resources() port.EntityCollection[domain.Resource, domain.Identifier] {
	return s.resources
}

func (s *Store) Users() port.EntityCollection[domain.User, string] {
	return s.users
}

// ShowAlert raises an alert that dismisses itself after the alert TTL.
func (s *Store) ShowAlert(kind domain.AlertKind, msg, color string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[kind] = domain.Alert{
		Show:      true,
		Msg:       msg,
		Color:     color,
		ExpiresAt: s.now().Add(s.alertTTL).UTC(),
	}
}

func (s *Store) DismissAlert(kind domain.AlertKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.alerts, kind)
}

func (s *Store) SetLoader(dataType domain.DataType, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loader = domain.Loader{DataType: dataType, Show: true, Msg: msg}
}

func (s *Store) CancelLoader() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loader = domain.Loader{}
}

func (s *Store) ConnectedAccount() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connectedAccount
}

func (s *Store) SetConnectedAccount(account string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectedAccount = account
}

func (s *Store) CurrentUserDID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentUserDID
}

func (s *Store) SetCurrentUserDID(did string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentUserDID = did
}

func (s *Store) SetUserInView(view domain.UserInView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roles := make([]domain.ResourceRole, 0, len(view.ResourceRoles))
	for _, rr := range view.ResourceRoles {
		rr.Role = cloneRole(rr.Role)
		roles = append(roles, rr)
	}
	s.currentUserInView = domain.UserInView{User: view.User, ResourceRoles: roles}
}

// Snapshot returns a deep copy of the state. Expired alerts and outcomes are
// dropped first.
func (s *Store) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()

	view := domain.UserInView{User: s.currentUserInView.User}
	for _, rr := range s.currentUserInView.ResourceRoles {
		rr.Role = cloneRole(rr.Role)
		view.ResourceRoles = append(view.ResourceRoles, rr)
	}

	return domain.Snapshot{
		Alert:                 s.alerts[domain.AlertGeneral],
		CustomErrorsAlert:     s.alerts[domain.AlertCustomError],
		PermissionDeniedAlert: s.alerts[domain.AlertPermissionDenied],
		Loader:                s.loader,
		ConnectedAccount:      s.connectedAccount,
		CurrentUserDID:        s.currentUserDID,
		CurrentUserInView:     view,
		Permissions:           s.permissions.view(),
		Roles:                 s.roles.view(),
		Resources:             s.resources.view(),
		Users:                 s.users.view(),
	}
}

// ConsumeOutcomes returns every pending Outcome and resets them to nil.
func (s *Store) ConsumeOutcomes() domain.OutcomeSet {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()

	return domain.OutcomeSet{
		Permissions: s.permissions.consume(),
		Roles:       s.roles.consume(),
		Resources:   s.resources.consume(),
		Users:       s.users.consume(),
	}
}

func (s *Store) expireLocked() {
	now := s.now()
	for kind, alert := range s.alerts {
		if !alert.ExpiresAt.IsZero() && now.After(alert.ExpiresAt) {
			delete(s.alerts, kind)
		}
	}

	cutoff := now.Add(-s.outcomeTTL)
	s.permissions.expire(cutoff)
	s.roles.expire(cutoff)
	s.resources.expire(cutoff)
	s.users.expire(cutoff)
}

func cloneRole(r domain.Role) domain.Role {
	r.Permissions = cloneStrings(r.Permissions)
	return r
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return append(make([]string, 0, len(in)), in...)
}
