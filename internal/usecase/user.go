package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
	"github.com/pucco93/ebsi-access-control/internal/core/mapper"
	"github.com/pucco93/ebsi-access-control/internal/core/port"
	"github.com/pucco93/ebsi-access-control/internal/infra/logger"
)

const (
	msgUsersUnavailable = "Couldn't retrieve list of users"
	msgUserNotFound     = "No user found for that ebsiDID"
	msgUserCreated      = "User created"
)

// UserService dispatches user commands and reads.
type UserService struct {
	*Dispatcher
	requesters RequesterResolver
	dids       port.DIDResolver
}

// NewUserService constructs a UserService.
func NewUserService(d *Dispatcher, requesters RequesterResolver, dids port.DIDResolver) *UserService {
	return &UserService{Dispatcher: d, requesters: requesters, dids: dids}
}

// Refresh replaces the user collection with the ledger's list.
func (s *UserService) Refresh(ctx context.Context) error {
	defer s.loading(domain.KindUser)()

	raws, err := s.ledger.GetAllUsers(ctx)
	if err != nil {
		s.store.Users().Replace(nil)
		return s.readFailed(domain.KindUser, "getAllUsers", err)
	}
	s.store.Users().Replace(mapper.UsersToDomain(raws, s.now))
	s.metrics.ObserveRefetch(domain.KindUser, ResultSuccess)
	return nil
}

// RefreshDIDs replaces the list of registered DIDs.
func (s *UserService) RefreshDIDs(ctx context.Context) error {
	dids, err := s.ledger.GetAllEbsiDIDs(ctx)
	if err != nil {
		s.store.Users().ReplaceKeys(nil)
		s.store.ShowAlert(domain.AlertGeneral, msgUsersUnavailable, domain.ColorRed)
		s.logger.Error("ledger read failed", zap.String("entity", string(domain.KindUser)), zap.String("call", "getAllEbsiDIDs"), zap.Error(err))
		return ClassifyLedgerError(err)
	}
	s.store.Users().ReplaceKeys(dids)
	return nil
}

// Find narrows the collection to the user with did. A bare method-specific
// id is expanded to did:key.
func (s *UserService) Find(ctx context.Context, did string) (*domain.User, error) {
	did = normalizeDID(did)
	if did == "" {
		return nil, &domain.ValidationError{Field: "ebsiDID", Reason: "is required"}
	}

	raw, err := s.ledger.GetUser(ctx, did)
	if err != nil {
		return nil, s.readFailed(domain.KindUser, "getUser", err)
	}
	if raw.EbsiDID == "" {
		s.store.Users().Replace(nil)
		s.store.ShowAlert(domain.AlertGeneral, msgUserNotFound, "")
		return nil, nil
	}
	user := mapper.UserToDomain(raw, s.now)
	s.store.Users().Replace([]domain.User{user})
	return &user, nil
}

// CreateUserResult reports the DID derived for a new user.
type CreateUserResult struct {
	EbsiDID      string
	Associations int
}

// Create derives the user's DID from its public key, registers it and then
// submits one creation association per deduplicated resource role.
func (s *UserService) Create(ctx context.Context, form domain.UserForm) (CreateUserResult, error) {
	var result CreateUserResult

	associations := mapper.DedupResourceRoles(form.ResourceRoles)
	for _, rr := range associations {
		if err := domain.ValidateName("resourceName", rr.ResourceName); err != nil {
			return result, err
		}
		if err := domain.ValidateName("role", rr.Role.Name); err != nil {
			return result, err
		}
	}

	did, err := s.dids.ResolveDID(form.PublicKey)
	if err != nil {
		return result, &domain.ValidationError{Field: "publicKey", Reason: err.Error()}
	}
	result.EbsiDID = did

	requesterDID, err := s.requesters.ResolveSelfDID(ctx)
	if err != nil {
		requesterDID = ""
	}

	if err := s.ledger.CreateUser(ctx, s.account(), did); err != nil {
		classified := s.fail("create user", domain.KindUser, domain.OperationCreated, did, err)
		writeOutcome(ctx, s.Dispatcher, s.store.Users(), domain.KindUser, domain.OperationCreated,
			domain.OutcomeError, domain.User{EbsiDID: did}, did, classified.Error())
		return result, classified
	}
	s.succeed(domain.KindUser, domain.OperationCreated, did)
	s.store.ShowAlert(domain.AlertGeneral, msgUserCreated, domain.ColorGreen)

	if len(associations) == 0 {
		return result, nil
	}
	if requesterDID == "" {
		s.store.ShowAlert(domain.AlertGeneral, msgRequesterUnregistered, domain.ColorRed)
		return result, domain.ErrRequesterUnregistered
	}

	resourceIDs, err := mapper.NamesToWire(mapper.ResourceNames(associations))
	if err != nil {
		return result, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	for _, rr := range associations {
		if err := s.associate(ctx, requesterDID, did, resourceIDs, rr, port.UserResourceCreation); err != nil {
			classified := s.fail("create user", domain.KindUser, domain.OperationCreated, did, err)
			writeOutcome(ctx, s.Dispatcher, s.store.Users(), domain.KindUser, domain.OperationCreated,
				domain.OutcomeError, domain.User{EbsiDID: did}, did, classified.Error())
			return result, classified
		}
		result.Associations++
	}
	return result, nil
}

// Load reads the user collection and the registered DIDs.
func (s *UserService) Load(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		return err
	}
	return s.RefreshDIDs(ctx)
}

// Delete submits the removal of the user with did together with the DIDs that
// the ledger lists besides it.
func (s *UserService) Delete(ctx context.Context, did string) error {
	did = strings.TrimSpace(did)
	if did == "" {
		return &domain.ValidationError{Field: "ebsiDID", Reason: "is required"}
	}
	if err := s.RefreshDIDs(ctx); err != nil {
		writeOutcome(ctx, s.Dispatcher, s.store.Users(), domain.KindUser, domain.OperationDeleted,
			domain.OutcomeError, domain.User{EbsiDID: did}, did, err.Error())
		return err
	}
	remaining := s.store.Users().KeysWithout(did)

	if err := s.ledger.RemoveUser(ctx, s.account(), did, remaining); err != nil {
		classified := s.fail("delete user", domain.KindUser, domain.OperationDeleted, did, err)
		writeOutcome(ctx, s.Dispatcher, s.store.Users(), domain.KindUser, domain.OperationDeleted,
			domain.OutcomeError, domain.User{EbsiDID: did}, did, classified.Error())
		return classified
	}
	s.succeed(domain.KindUser, domain.OperationDeleted, did)
	s.store.ShowAlert(domain.AlertGeneral, fmt.Sprintf("User: %s correctly deleted!", did), domain.ColorGreen)
	return nil
}

// UpdateResult counts the association calls an update submitted.
type UpdateResult struct {
	Added   int
	Removed int
}

// Update reconciles the user's resource roles with desired. Resources missing
// from the user are submitted as creation associations, resources no longer
// wanted as deletion associations, one ledger call each. A failure stops the
// sequence; calls already submitted stay committed.
func (s *UserService) Update(ctx context.Context, user domain.User, desired []domain.ResourceRole) (UpdateResult, error) {
	var result UpdateResult
	if strings.TrimSpace(user.EbsiDID) == "" {
		return result, &domain.ValidationError{Field: "ebsiDID", Reason: "is required"}
	}
	for _, rr := range mapper.DedupResourceRoles(desired) {
		if err := domain.ValidateName("resourceName", rr.ResourceName); err != nil {
			return result, err
		}
		if err := domain.ValidateName("role", rr.Role.Name); err != nil {
			return result, err
		}
	}

	requesterDID, err := requester(ctx, s.Dispatcher, s.requesters)
	if err != nil {
		s.metrics.ObserveDispatch(domain.KindUser, domain.OperationUpdated, ResultRejected)
		return result, err
	}

	delta := mapper.DiffUserResources(user.Resources, desired)
	resourceIDs, err := mapper.NamesToWire(delta.Desired)
	if err != nil {
		return result, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	fail := func(err error) (UpdateResult, error) {
		classified := s.fail("update user", domain.KindUser, domain.OperationUpdated, user.EbsiDID, err)
		writeOutcome(ctx, s.Dispatcher, s.store.Users(), domain.KindUser, domain.OperationUpdated,
			domain.OutcomeError, domain.User{EbsiDID: user.EbsiDID, Resources: user.Resources}, user.EbsiDID, classified.Error())
		s.logger.Warn("user update partially applied",
			zap.String("ebsi_did", logger.MaskDID(user.EbsiDID)),
			zap.Int("added", result.Added),
			zap.Int("removed", result.Removed),
		)
		return result, classified
	}

	for _, rr := range delta.Added {
		if err := s.associate(ctx, requesterDID, user.EbsiDID, resourceIDs, rr, port.UserResourceCreation); err != nil {
			return fail(err)
		}
		result.Added++
	}
	for _, name := range delta.Removed {
		rr := domain.ResourceRole{ResourceName: name, Role: domain.PlaceholderRole()}
		if err := s.associate(ctx, requesterDID, user.EbsiDID, resourceIDs, rr, port.UserResourceDeletion); err != nil {
			return fail(err)
		}
		result.Removed++
	}

	if result.Added+result.Removed > 0 {
		s.succeed(domain.KindUser, domain.OperationUpdated, user.EbsiDID)
	}
	return result, nil
}

// ListUserRoles loads the resource-role breakdown of did into the store.
func (s *UserService) ListUserRoles(ctx context.Context, did string) (domain.UserInView, error) {
	did = strings.TrimSpace(did)
	if did == "" {
		return domain.UserInView{}, &domain.ValidationError{Field: "ebsiDID", Reason: "is required"}
	}
	raws, err := s.ledger.GetAllUserRoles(ctx, did)
	if err != nil {
		return domain.UserInView{}, s.readFailed(domain.KindUser, "getAllUserRoles", err)
	}
	view := domain.UserInView{User: did, ResourceRoles: mapper.ResourceRolesToDomain(raws)}
	s.store.SetUserInView(view)
	return view, nil
}

func (s *UserService) associate(ctx context.Context, requesterDID, did string, resourceIDs []domain.Identifier, rr domain.ResourceRole, action port.UserResourceAction) error {
	resourceID, err := domain.EncodeName(rr.ResourceName)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	role, err := mapper.RoleToWire(rr.Role)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return s.ledger.UpdateUserResources(ctx, s.account(), port.UserResourcesUpdate{
		RequesterDID: requesterDID,
		EbsiDID:      did,
		ResourceIDs:  resourceIDs,
		ResourceID:   resourceID,
		Role:         role,
		Action:       action,
	})
}

func normalizeDID(did string) string {
	did = strings.TrimSpace(did)
	if did == "" || strings.HasPrefix(did, "did:") {
		return did
	}
	return "did:key:" + did
}
