package usecase

import (
	"context"
	"fmt"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
	"github.com/pucco93/ebsi-access-control/internal/core/mapper"
)

// PermissionService dispatches permission commands and reads.
type PermissionService struct {
	*Dispatcher
}

// NewPermissionService constructs a PermissionService.
func NewPermissionService(d *Dispatcher) *PermissionService {
	return &PermissionService{Dispatcher: d}
}

// Refresh replaces the permission collection with the ledger's list. On
// failure the collection is emptied.
func (s *PermissionService) Refresh(ctx context.Context) error {
	defer s.loading(domain.KindPermission)()

	raws, err := s.ledger.GetAllAvailablePermissions(ctx)
	if err != nil {
		s.store.Permissions().Replace(nil)
		return s.readFailed(domain.KindPermission, "getAllAvailablePermissions", err)
	}
	s.store.Permissions().Replace(mapper.PermissionsToDomain(raws))
	s.metrics.ObserveRefetch(domain.KindPermission, ResultSuccess)
	return nil
}

// RefreshHashes replaces the permission identifier list.
func (s *PermissionService) RefreshHashes(ctx context.Context) error {
	ids, err := s.ledger.GetAllPermissionsInBytes32(ctx)
	if err != nil {
		s.store.Permissions().ReplaceKeys(nil)
		return s.readFailed(domain.KindPermission, "getAllPermissionsInBytes32", err)
	}
	s.store.Permissions().ReplaceKeys(ids)
	return nil
}

// Find narrows the collection to the permission named name, or to nothing
// when the ledger has no such record.
func (s *PermissionService) Find(ctx context.Context, name string) (*domain.Permission, error) {
	if err := domain.ValidateName("name", name); err != nil {
		return nil, err
	}
	raw, err := s.ledger.GetPermission(ctx, domain.MustEncodeName(name))
	if err != nil {
		return nil, s.readFailed(domain.KindPermission, "getPermission", err)
	}
	if raw.Permission.IsZero() {
		s.store.Permissions().Replace(nil)
		return nil, nil
	}
	permission := mapper.PermissionToDomain(raw)
	s.store.Permissions().Replace([]domain.Permission{permission})
	return &permission, nil
}

// Create submits a custom permission.
func (s *PermissionService) Create(ctx context.Context, name string) error {
	if err := domain.ValidateName("name", name); err != nil {
		return err
	}
	raw, err := mapper.PermissionToWire(domain.Permission{Name: name, IsCustom: true})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if err := s.ledger.CreateCustomPermission(ctx, s.account(), raw.Permission); err != nil {
		classified := s.fail("create permission", domain.KindPermission, domain.OperationCreated, name, err)
		writeOutcome(ctx, s.Dispatcher, s.store.Permissions(), domain.KindPermission, domain.OperationCreated,
			domain.OutcomeError, domain.Permission{Name: name, IsCustom: true}, name, classified.Error())
		return classified
	}
	s.succeed(domain.KindPermission, domain.OperationCreated, name)
	return nil
}

// Load reads the permission collection and its identifier list.
func (s *PermissionService) Load(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		return err
	}
	return s.RefreshHashes(ctx)
}

// Delete submits the removal of a custom permission together with the
// identifiers that remain after it. The identifier list is re-read from the
// ledger first.
func (s *PermissionService) Delete(ctx context.Context, name string) error {
	if err := domain.ValidateName("name", name); err != nil {
		return err
	}
	id := domain.MustEncodeName(name)
	failed := domain.Permission{Name: name, IsCustom: true}

	if err := s.RefreshHashes(ctx); err != nil {
		writeOutcome(ctx, s.Dispatcher, s.store.Permissions(), domain.KindPermission, domain.OperationDeleted,
			domain.OutcomeError, failed, name, err.Error())
		return err
	}
	remaining := s.store.Permissions().KeysWithout(id)

	if err := s.ledger.DeleteCustomPermission(ctx, s.account(), remaining, id); err != nil {
		classified := s.fail("delete permission", domain.KindPermission, domain.OperationDeleted, name, err)
		writeOutcome(ctx, s.Dispatcher, s.store.Permissions(), domain.KindPermission, domain.OperationDeleted,
			domain.OutcomeError, failed, name, classified.Error())
		return classified
	}
	s.succeed(domain.KindPermission, domain.OperationDeleted, name)
	return nil
}
