package domain

import "time"

// OutcomeStatus is the result of the most recent create/delete/update.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeError   OutcomeStatus = "error"
)

// OutcomeOperation names the operation an Outcome reports.
type OutcomeOperation string

const (
	OperationCreated OutcomeOperation = "created"
	OperationDeleted OutcomeOperation = "deleted"
	OperationUpdated OutcomeOperation = "updated"
)

// Outcome is an ephemeral status + entity pair. Presentation consumes it once.
type Outcome[T any] struct {
	Status   OutcomeStatus `json:"status"`
	Entity   T             `json:"entity"`
	Message  string        `json:"message,omitempty"`
	Recorded time.Time     `json:"recordedAt"`
}

// UserRef identifies the user an Outcome refers to.
type UserRef struct {
	EbsiDID string `json:"ebsiDID"`
}

// OutcomeRecord is the kind-erased form of an Outcome used by audit sinks.
type OutcomeRecord struct {
	ID        string           `json:"id"`
	Kind      EntityKind       `json:"kind"`
	Operation OutcomeOperation `json:"operation"`
	Status    OutcomeStatus    `json:"status"`
	Subject   string           `json:"subject"`
	Message   string           `json:"message,omitempty"`
	Account   string           `json:"account,omitempty"`
	RequestID string           `json:"requestId,omitempty"`
	Recorded  time.Time        `json:"recordedAt"`
}

// EntityKind discriminates the four ledger entity kinds.
type EntityKind string

const (
	KindPermission EntityKind = "permission"
	KindRole       EntityKind = "role"
	KindResource   EntityKind = "resource"
	KindUser       EntityKind = "user"
)

// Valid reports whether k is a known entity kind.
func (k EntityKind) Valid() bool {
	switch k {
	case KindPermission, KindRole, KindResource, KindUser:
		return true
	}
	return false
}

// DataType maps the entity kind to the loader data type.
func (k EntityKind) DataType() DataType {
	switch k {
	case KindPermission:
		return DataTypePermissions
	case KindRole:
		return DataTypeRoles
	case KindResource:
		return DataTypeResources
	case KindUser:
		return DataTypeUsers
	}
	return DataTypeGeneral
}
