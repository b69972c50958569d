package usecase

import (
	"context"
	"fmt"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
	"github.com/pucco93/ebsi-access-control/internal/core/mapper"
)

// RoleService dispatches role commands and reads.
type RoleService struct {
	*Dispatcher
}

// NewRoleService constructs a RoleService.
func NewRoleService(d *Dispatcher) *RoleService {
	return &RoleService{Dispatcher: d}
}

// Refresh replaces the role collection with the ledger's list.
func (s *RoleService) Refresh(ctx context.Context) error {
	defer s.loading(domain.KindRole)()

	raws, err := s.ledger.GetAllAvailableRoles(ctx)
	if err != nil {
		s.store.Roles().Replace(nil)
		return s.readFailed(domain.KindRole, "getAllAvailableRoles", err)
	}
	s.store.Roles().Replace(mapper.RolesToDomain(raws))
	s.metrics.ObserveRefetch(domain.KindRole, ResultSuccess)
	return nil
}

// RefreshHashes replaces the role identifier list.
func (s *RoleService) RefreshHashes(ctx context.Context) error {
	ids, err := s.ledger.GetAllRolesInBytes32(ctx)
	if err != nil {
		s.store.Roles().ReplaceKeys(nil)
		return s.readFailed(domain.KindRole, "getAllRolesInBytes32", err)
	}
	s.store.Roles().ReplaceKeys(ids)
	return nil
}

// Find narrows the collection to the role named name.
func (s *RoleService) Find(ctx context.Context, name string) (*domain.Role, error) {
	if err := domain.ValidateName("name", name); err != nil {
		return nil, err
	}
	raw, err := s.ledger.GetRole(ctx, domain.MustEncodeName(name))
	if err != nil {
		return nil, s.readFailed(domain.KindRole, "getRole", err)
	}
	if raw.Name.IsZero() {
		s.store.Roles().Replace(nil)
		return nil, nil
	}
	role := mapper.RoleToDomain(raw)
	s.store.Roles().Replace([]domain.Role{role})
	return &role, nil
}

// Create submits a custom role granting permissions.
func (s *RoleService) Create(ctx context.Context, name string, permissions []string) error {
	if err := domain.ValidateName("name", name); err != nil {
		return err
	}
	for _, p := range permissions {
		if err := domain.ValidateName("permissions", p); err != nil {
			return err
		}
	}

	role := domain.Role{Name: name, IsCustom: true, Permissions: append([]string{}, permissions...)}
	raw, err := mapper.RoleToWire(role)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if err := s.ledger.CreateCustomRole(ctx, s.account(), raw.Name, raw.Permissions); err != nil {
		classified := s.fail("create role", domain.KindRole, domain.OperationCreated, name, err)
		writeOutcome(ctx, s.Dispatcher, s.store.Roles(), domain.KindRole, domain.OperationCreated,
			domain.OutcomeError, role, name, classified.Error())
		return classified
	}
	s.succeed(domain.KindRole, domain.OperationCreated, name)
	return nil
}

// Load reads the role collection and its identifier list.
func (s *RoleService) Load(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		return err
	}
	return s.RefreshHashes(ctx)
}

// Delete submits the removal of a custom role together with the identifiers
// that remain after it, as currently listed by the ledger.
func (s *RoleService) Delete(ctx context.Context, name string) error {
	if err := domain.ValidateName("name", name); err != nil {
		return err
	}
	id := domain.MustEncodeName(name)
	failed := domain.Role{Name: name, IsCustom: true, Permissions: []string{}}

	if err := s.RefreshHashes(ctx); err != nil {
		writeOutcome(ctx, s.Dispatcher, s.store.Roles(), domain.KindRole, domain.OperationDeleted,
			domain.OutcomeError, failed, name, err.Error())
		return err
	}
	remaining := s.store.Roles().KeysWithout(id)

	if err := s.ledger.DeleteCustomRole(ctx, s.account(), remaining, id); err != nil {
		classified := s.fail("delete role", domain.KindRole, domain.OperationDeleted, name, err)
		writeOutcome(ctx, s.Dispatcher, s.store.Roles(), domain.KindRole, domain.OperationDeleted,
			domain.OutcomeError, failed, name, classified.Error())
		return classified
	}
	s.succeed(domain.KindRole, domain.OperationDeleted, name)
	return nil
}
