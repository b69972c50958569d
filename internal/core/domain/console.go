package domain

import "time"

// AlertKind selects one of the console's alert slots.
type AlertKind string

const (
	AlertGeneral          AlertKind = "general"
	AlertCustomError      AlertKind = "custom-error"
	AlertPermissionDenied AlertKind = "permission-denied"
)

// Alert colors used by the console.
const (
	ColorRed   = "red"
	ColorGreen = "green"
)

// Alert is a transient, auto-dismissing notification.
type Alert struct {
	Show      bool      `json:"show"`
	Msg       string    `json:"msg"`
	Color     string    `json:"color,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// Loader signals that a collection is being fetched.
type Loader struct {
	DataType DataType `json:"dataType,omitempty"`
	Show     bool     `json:"show"`
	Msg      string   `json:"msg"`
}

// Outcomes groups the created/deleted/updated records of one entity kind.
type Outcomes[T any] struct {
	Created *Outcome[T] `json:"created"`
	Deleted *Outcome[T] `json:"deleted"`
	Updated *Outcome[T] `json:"updated"`
}

// CollectionView is a read-only copy of one entity collection.
type CollectionView[T any, K comparable] struct {
	Items    []T         `json:"items"`
	Keys     []K         `json:"keys"`
	Outcomes Outcomes[T] `json:"outcomes"`
}

// Snapshot is a deep copy of the console state handed to presentation.
type Snapshot struct {
	Alert                 Alert      `json:"alert"`
	CustomErrorsAlert     Alert      `json:"customErrorsAlert"`
	PermissionDeniedAlert Alert      `json:"permissionDeniedErrorsAlert"`
	Loader                Loader     `json:"loader"`
	ConnectedAccount      string     `json:"connectedAccount"`
	CurrentUserDID        string     `json:"currentUserEbsiDID"`
	CurrentUserInView     UserInView `json:"currentUserInView"`

	Permissions CollectionView[Permission, Identifier] `json:"permissions"`
	Roles       CollectionView[Role, Identifier]       `json:"roles"`
	Resources   CollectionView[Resource, Identifier]   `json:"resources"`
	Users       CollectionView[User, string]           `json:"users"`
}

// OutcomeSet is what presentation consumes in one read.
type OutcomeSet struct {
	Permissions Outcomes[Permission] `json:"permissions"`
	Roles       Outcomes[Role]       `json:"roles"`
	Resources   Outcomes[Resource]   `json:"resources"`
	Users       Outcomes[User]       `json:"users"`
}
