package port

import (
	"context"
	"math/big"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
)

// RawPermission mirrors the contract Permission tuple.
type RawPermission struct {
	Permission domain.Identifier `json:"permission"`
	IsCustom   bool              `json:"isCustom"`
}

// RawRole mirrors the contract Role tuple.
type RawRole struct {
	Name        domain.Identifier   `json:"name"`
	IsCustom    bool                `json:"isCustom"`
	Permissions []domain.Identifier `json:"permissions"`
}

// RawResource mirrors the contract Resource tuple.
type RawResource struct {
	Name      domain.Identifier `json:"name"`
	Blacklist []string          `json:"blacklist"`
}

// RawUser mirrors the contract User tuple. Timestamps are seconds.
type RawUser struct {
	EbsiDID         string              `json:"ebsiDID"`
	ResourcesHashes []domain.Identifier `json:"resourcesHashes"`
	CreatedTime     *big.Int            `json:"createdTime"`
	LastAccess      *big.Int            `json:"lastAccess"`
	LastUpdate      *big.Int            `json:"lastUpdate"`
}

// RawResourceRole mirrors the contract ResourceRole tuple.
type RawResourceRole struct {
	ResourceName domain.Identifier `json:"resourceName"`
	Role         RawRole           `json:"role"`
}

// UserResourceAction is the actionTag argument of updateUserResources.
type UserResourceAction string

const (
	UserResourceCreation UserResourceAction = "creation"
	UserResourceDeletion UserResourceAction = "deletion"
)

// UserResourcesUpdate is the argument set of one updateUserResources call.
type UserResourcesUpdate struct {
	RequesterDID string
	EbsiDID      string
	ResourceIDs  []domain.Identifier
	ResourceID   domain.Identifier
	Role         RawRole
	Action       UserResourceAction
}

// LedgerReader exposes the side-effect-free contract calls.
type LedgerReader interface {
	GetAllAvailablePermissions(ctx context.Context) ([]RawPermission, error)
	GetPermission(ctx context.Context, id domain.Identifier) (RawPermission, error)
	GetAllPermissionsInBytes32(ctx context.Context) ([]domain.Identifier, error)

	GetAllAvailableRoles(ctx context.Context) ([]RawRole, error)
	GetRole(ctx context.Context, id domain.Identifier) (RawRole, error)
	GetAllRolesInBytes32(ctx context.Context) ([]domain.Identifier, error)

	GetAllResources(ctx context.Context) ([]RawResource, error)
	GetResource(ctx context.Context, id domain.Identifier) (RawResource, error)
	GetAllResourcesInBytes32(ctx context.Context) ([]domain.Identifier, error)

	GetAllUsers(ctx context.Context) ([]RawUser, error)
	GetUser(ctx context.Context, did string) (RawUser, error)
	GetAllEbsiDIDs(ctx context.Context) ([]string, error)
	GetEbsiDID(ctx context.Context, account string) (string, error)
	GetAllUserRoles(ctx context.Context, did string) ([]RawResourceRole, error)
}

// LedgerWriter exposes the state-changing contract calls. Every call is
// signed on behalf of account and may be declined by its authorizer.
type LedgerWriter interface {
	CreateCustomPermission(ctx context.Context, account string, id domain.Identifier) error
	DeleteCustomPermission(ctx context.Context, account string, remaining []domain.Identifier, id domain.Identifier) error
	CreateCustomRole(ctx context.Context, account string, id domain.Identifier, permissions []domain.Identifier) error
	DeleteCustomRole(ctx context.Context, account string, remaining []domain.Identifier, id domain.Identifier) error
	CreateResource(ctx context.Context, account string, id domain.Identifier, creatorDID string) error
	DeleteResource(ctx context.Context, account string, id domain.Identifier, remaining []domain.Identifier) error
	UpdateResourceBlackList(ctx context.Context, account string, requesterDID string, resourceID domain.Identifier, blacklist []string) error
	CreateUser(ctx context.Context, account string, did string) error
	RemoveUser(ctx context.Context, account string, did string, remaining []string) error
	UpdateUserResources(ctx context.Context, account string, update UserResourcesUpdate) error
}

// Ledger is the full contract boundary.
type Ledger interface {
	LedgerReader
	LedgerWriter
}
