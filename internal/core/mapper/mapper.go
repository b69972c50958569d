// Package mapper converts between ledger records and console entities.
package mapper

import (
	"fmt"
	"time"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
	"github.com/pucco93/ebsi-access-control/internal/core/port"
)

// PermissionToDomain decodes one permission record.
func PermissionToDomain(raw port.RawPermission) domain.Permission {
	return domain.Permission{
		Name:     domain.DecodeIdentifier(raw.Permission),
		IsCustom: raw.IsCustom,
	}
}

// PermissionsToDomain decodes a permission list, skipping sentinel slots.
func PermissionsToDomain(raws []port.RawPermission) []domain.Permission {
	out := make([]domain.Permission, 0, len(raws))
	for _, raw := range raws {
		if raw.Permission.IsZero() {
			continue
		}
		out = append(out, PermissionToDomain(raw))
	}
	return out
}

// PermissionToWire encodes a permission.
func PermissionToWire(p domain.Permission) (port.RawPermission, error) {
	id, err := domain.EncodeName(p.Name)
	if err != nil {
		return port.RawPermission{}, fmt.Errorf("encode permission: %w", err)
	}
	return port.RawPermission{Permission: id, IsCustom: p.IsCustom}, nil
}

// RoleToDomain decodes a role and its permission names.
func RoleToDomain(raw port.RawRole) domain.Role {
	permissions := make([]string, 0, len(raw.Permissions))
	for _, id := range raw.Permissions {
		if id.IsZero() {
			continue
		}
		permissions = append(permissions, domain.DecodeIdentifier(id))
	}
	return domain.Role{
		Name:        domain.DecodeIdentifier(raw.Name),
		IsCustom:    raw.IsCustom,
		Permissions: permissions,
	}
}

// RolesToDomain decodes a role list, skipping sentinel slots.
func RolesToDomain(raws []port.RawRole) []domain.Role {
	out := make([]domain.Role, 0, len(raws))
	for _, raw := range raws {
		if raw.Name.IsZero() {
			continue
		}
		out = append(out, RoleToDomain(raw))
	}
	return out
}

// RoleToWire encodes a role and its permission names.
func RoleToWire(r domain.Role) (port.RawRole, error) {
	id, err := domain.EncodeName(r.Name)
	if err != nil {
		return port.RawRole{}, fmt.Errorf("encode role: %w", err)
	}
	permissions, err := NamesToWire(r.Permissions)
	if err != nil {
		return port.RawRole{}, fmt.Errorf("encode role %q permissions: %w", r.Name, err)
	}
	return port.RawRole{Name: id, IsCustom: r.IsCustom, Permissions: permissions}, nil
}

// ResourceToDomain decodes a resource. Blacklist entries are opaque user ids.
func ResourceToDomain(raw port.RawResource) domain.Resource {
	blacklist := make([]string, 0, len(raw.Blacklist))
	blacklist = append(blacklist, raw.Blacklist...)
	return domain.Resource{
		Name:      domain.DecodeIdentifier(raw.Name),
		Blacklist: blacklist,
	}
}

// ResourcesToDomain decodes a resource list, skipping sentinel slots.
func ResourcesToDomain(raws []port.RawResource) []domain.Resource {
	out := make([]domain.Resource, 0, len(raws))
	for _, raw := range raws {
		if raw.Name.IsZero() {
			continue
		}
		out = append(out, ResourceToDomain(raw))
	}
	return out
}

// ResourceEventToDomain builds the entity announced by a resource event. The
// notification carries no blacklist.
func ResourceEventToDomain(ev port.ResourceEvent) domain.Resource {
	return domain.Resource{Name: domain.DecodeIdentifier(ev.Name), Blacklist: []string{}}
}

// ResourceToWire encodes a resource.
func ResourceToWire(r domain.Resource) (port.RawResource, error) {
	id, err := domain.EncodeName(r.Name)
	if err != nil {
		return port.RawResource{}, fmt.Errorf("encode resource: %w", err)
	}
	return port.RawResource{Name: id, Blacklist: append([]string{}, r.Blacklist...)}, nil
}

// UserToDomain decodes a user record. now substitutes missing timestamps.
func UserToDomain(raw port.RawUser, now func() time.Time) domain.User {
	resources := make([]string, 0, len(raw.ResourcesHashes))
	for _, id := range raw.ResourcesHashes {
		if id.IsZero() {
			continue
		}
		resources = append(resources, domain.DecodeIdentifier(id))
	}
	return domain.User{
		EbsiDID:    raw.EbsiDID,
		Resources:  resources,
		CreatedAt:  domain.TimeFromLedger(raw.CreatedTime, now),
		LastAccess: domain.TimeFromLedger(raw.LastAccess, now),
		LastUpdate: domain.TimeFromLedger(raw.LastUpdate, now),
	}
}

// UsersToDomain decodes a user list, skipping records without a DID.
func UsersToDomain(raws []port.RawUser, now func() time.Time) []domain.User {
	out := make([]domain.User, 0, len(raws))
	for _, raw := range raws {
		if raw.EbsiDID == "" {
			continue
		}
		out = append(out, UserToDomain(raw, now))
	}
	return out
}

// ResourceRoleToDomain decodes a resource-role association.
func ResourceRoleToDomain(raw port.RawResourceRole) domain.ResourceRole {
	return domain.ResourceRole{
		ResourceName: domain.DecodeIdentifier(raw.ResourceName),
		Role:         RoleToDomain(raw.Role),
	}
}

// ResourceRolesToDomain decodes associations, skipping sentinel slots.
func ResourceRolesToDomain(raws []port.RawResourceRole) []domain.ResourceRole {
	out := make([]domain.ResourceRole, 0, len(raws))
	for _, raw := range raws {
		if raw.ResourceName.IsZero() {
			continue
		}
		out = append(out, ResourceRoleToDomain(raw))
	}
	return out
}

// ResourceRoleToWire encodes a resource-role association.
func ResourceRoleToWire(rr domain.ResourceRole) (port.RawResourceRole, error) {
	id, err := domain.EncodeName(rr.ResourceName)
	if err != nil {
		return port.RawResourceRole{}, fmt.Errorf("encode resource name: %w", err)
	}
	role, err := RoleToWire(rr.Role)
	if err != nil {
		return port.RawResourceRole{}, err
	}
	return port.RawResourceRole{ResourceName: id, Role: role}, nil
}

// NamesToWire encodes a list of names.
func NamesToWire(names []string) ([]domain.Identifier, error) {
	ids := make([]domain.Identifier, 0, len(names))
	for _, name := range names {
		id, err := domain.EncodeName(name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// IdentifiersToDomain decodes identifiers, skipping sentinel slots.
func IdentifiersToDomain(ids []domain.Identifier) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		names = append(names, domain.DecodeIdentifier(id))
	}
	return names
}
