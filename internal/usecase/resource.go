package usecase

import (
	"context"
	"strings"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
	"github.com/pucco93/ebsi-access-control/internal/core/mapper"
)

// ResourceService dispatches resource commands and reads. Writes require a
// registered requester identity.
type ResourceService struct {
	*Dispatcher
	requesters RequesterResolver
}

// NewResourceService constructs a ResourceService.
func NewResourceService(d *Dispatcher, requesters RequesterResolver) *ResourceService {
	return &ResourceService{Dispatcher: d, requesters: requesters}
}

// Refresh replaces the resource collection with the ledger's list.
func (s *ResourceService) Refresh(ctx context.Context) error {
	defer s.loading(domain.KindResource)()

	raws, err := s.ledger.GetAllResources(ctx)
	if err != nil {
		s.store.Resources().Replace(nil)
		return s.readFailed(domain.KindResource, "getAllResources", err)
	}
	s.store.Resources().Replace(mapper.ResourcesToDomain(raws))
	s.metrics.ObserveRefetch(domain.KindResource, ResultSuccess)
	return nil
}

// RefreshHashes replaces the resource identifier list.
func (s *ResourceService) RefreshHashes(ctx context.Context) error {
	ids, err := s.ledger.GetAllResourcesInBytes32(ctx)
	if err != nil {
		s.store.Resources().ReplaceKeys(nil)
		return s.readFailed(domain.KindResource, "getAllResourcesInBytes32", err)
	}
	s.store.Resources().ReplaceKeys(ids)
	return nil
}

// Find narrows the collection to the resource named name.
func (s *ResourceService) Find(ctx context.Context, name string) (*domain.Resource, error) {
	if err := domain.ValidateName("name", name); err != nil {
		return nil, err
	}
	raw, err := s.ledger.GetResource(ctx, domain.MustEncodeName(name))
	if err != nil {
		return nil, s.readFailed(domain.KindResource, "getResource", err)
	}
	if raw.Name.IsZero() {
		s.store.Resources().Replace(nil)
		return nil, nil
	}
	resource := mapper.ResourceToDomain(raw)
	s.store.Resources().Replace([]domain.Resource{resource})
	return &resource, nil
}

// Create resolves the requester DID and submits the resource on its behalf.
func (s *ResourceService) Create(ctx context.Context, name string) error {
	if err := domain.ValidateName("name", name); err != nil {
		return err
	}

	creator, err := requester(ctx, s.Dispatcher, s.requesters)
	if err != nil {
		s.metrics.ObserveDispatch(domain.KindResource, domain.OperationCreated, ResultRejected)
		return err
	}

	if err := s.ledger.CreateResource(ctx, s.account(), domain.MustEncodeName(name), creator); err != nil {
		classified := s.fail("create resource", domain.KindResource, domain.OperationCreated, name, err)
		writeOutcome(ctx, s.Dispatcher, s.store.Resources(), domain.KindResource, domain.OperationCreated,
			domain.OutcomeError, domain.Resource{Name: name, Blacklist: []string{}}, name, classified.Error())
		return classified
	}
	s.succeed(domain.KindResource, domain.OperationCreated, name)
	return nil
}

// Load reads the resource collection and its identifier list.
func (s *ResourceService) Load(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		return err
	}
	return s.RefreshHashes(ctx)
}

// Delete submits the removal of a resource. Only registered requesters may
// delete; the remaining identifiers are read from the ledger after the
// requester lookup.
func (s *ResourceService) Delete(ctx context.Context, name string) error {
	if err := domain.ValidateName("name", name); err != nil {
		return err
	}

	if _, err := requester(ctx, s.Dispatcher, s.requesters); err != nil {
		s.metrics.ObserveDispatch(domain.KindResource, domain.OperationDeleted, ResultRejected)
		return err
	}

	id := domain.MustEncodeName(name)
	failed := domain.Resource{Name: name, Blacklist: []string{}}

	if err := s.RefreshHashes(ctx); err != nil {
		writeOutcome(ctx, s.Dispatcher, s.store.Resources(), domain.KindResource, domain.OperationDeleted,
			domain.OutcomeError, failed, name, err.Error())
		return err
	}
	remaining := s.store.Resources().KeysWithout(id)

	if err := s.ledger.DeleteResource(ctx, s.account(), id, remaining); err != nil {
		classified := s.fail("delete resource", domain.KindResource, domain.OperationDeleted, name, err)
		writeOutcome(ctx, s.Dispatcher, s.store.Resources(), domain.KindResource, domain.OperationDeleted,
			domain.OutcomeError, failed, name, classified.Error())
		return classified
	}
	s.succeed(domain.KindResource, domain.OperationDeleted, name)
	return nil
}

// UpdateBlacklist replaces the blacklist of resource. Duplicate and blank
// entries are dropped before submission.
func (s *ResourceService) UpdateBlacklist(ctx context.Context, resource string, users []string) error {
	if err := domain.ValidateName("resource", resource); err != nil {
		return err
	}
	blacklist := uniqueNonEmpty(users)

	// The ledger decides whether an unregistered requester may edit.
	did, err := s.requesters.ResolveSelfDID(ctx)
	if err != nil {
		did = ""
	}

	if err := s.ledger.UpdateResourceBlackList(ctx, s.account(), did, domain.MustEncodeName(resource), blacklist); err != nil {
		classified := s.fail("update blacklist", domain.KindResource, domain.OperationUpdated, resource, err)
		writeOutcome(ctx, s.Dispatcher, s.store.Resources(), domain.KindResource, domain.OperationUpdated,
			domain.OutcomeError, domain.Resource{Name: resource, Blacklist: blacklist}, resource, classified.Error())
		return classified
	}
	s.succeed(domain.KindResource, domain.OperationUpdated, resource)
	return nil
}

func uniqueNonEmpty(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
