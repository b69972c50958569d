package domain

import "time"

// Permission is a named capability. Genesis permissions are not custom and
// cannot be deleted.
type Permission struct {
	Name     string `json:"name"`
	IsCustom bool   `json:"isCustom"`
}

// Role groups permission names.
type Role struct {
	Name        string   `json:"name"`
	IsCustom    bool     `json:"isCustom"`
	Permissions []string `json:"permissions"`
}

// Resource is a protected resource with its user blacklist.
type Resource struct {
	Name      string   `json:"name"`
	Blacklist []string `json:"blacklist"`
}

// ResourceRole associates a Role with a resource for one user.
type ResourceRole struct {
	ResourceName string `json:"resourceName"`
	Role         Role   `json:"role"`
}

// User is a registered decentralized identity.
type User struct {
	EbsiDID    string    `json:"ebsiDID"`
	Resources  []string  `json:"resources"`
	CreatedAt  time.Time `json:"createdTime"`
	LastAccess time.Time `json:"lastAccess"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// UserForm is the payload submitted to create a user.
// PublicKey is either a JWK object or a PEM string.
type UserForm struct {
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	PublicKey     any            `json:"publicKey"`
	ResourceRoles []ResourceRole `json:"resourceRoles"`
}

// UserInView is the resource-role breakdown of the user being inspected.
type UserInView struct {
	User          string         `json:"user"`
	ResourceRoles []ResourceRole `json:"resourceRoles"`
}

// DataType tags loader signals with the collection being fetched.
type DataType string

const (
	DataTypeGeneral     DataType = "general"
	DataTypeUsers       DataType = "users"
	DataTypeResources   DataType = "resources"
	DataTypeRoles       DataType = "roles"
	DataTypePermissions DataType = "permissions"
)

// PlaceholderRole is submitted with resource-removal associations.
func PlaceholderRole() Role {
	return Role{Name: "", IsCustom: false, Permissions: []string{}}
}
