package port

import (
	"context"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
)

// SessionStore persists the connected account and the resolved self DID
// between runs.
type SessionStore interface {
	GetAccount(ctx context.Context) (string, error)
	SetAccount(ctx context.Context, account string) error
	GetSelfDID(ctx context.Context) (string, error)
	SetSelfDID(ctx context.Context, did string) error
	Clear(ctx context.Context) error
}

// OutcomeHistory records every Outcome written, for auditing.
type OutcomeHistory interface {
	Append(ctx context.Context, record domain.OutcomeRecord) error
	ListRecent(ctx context.Context, limit int) ([]domain.OutcomeRecord, error)
}

// DIDResolver derives a DID from a public key (JWK object or PEM string).
type DIDResolver interface {
	ResolveDID(publicKey any) (string, error)
}

// EntityCollection is one entity list plus its parallel key list and Outcome
// records. Every method is atomic with respect to the others.
type EntityCollection[T any, K comparable] interface {
	Items() []T
	Keys() []K
	// Contains reports whether an item or key for key is present.
	Contains(key K) bool
	Replace(items []T)
	ReplaceKeys(keys []K)
	// Add appends item and key unless an item with the same name already
	// exists. It reports whether anything was appended.
	Add(item T, key K) bool
	// AddKey appends key unless it, or an item named after it, is present.
	AddKey(key K) bool
	// Remove drops the item named after key and the key itself.
	Remove(key K) bool
	// KeysWithout returns the current keys minus key, read at call time.
	KeysWithout(key K) []K
	SetOutcome(op domain.OutcomeOperation, outcome *domain.Outcome[T])
	Outcome(op domain.OutcomeOperation) *domain.Outcome[T]
}

// StateStore is the single console state container. Only the dispatcher and
// the reconciler mutate it.
type StateStore interface {
	Permissions() EntityCollection[domain.Permission, domain.Identifier]
	Roles() EntityCollection[domain.Role, domain.Identifier]
	Resources() EntityCollection[domain.Resource, domain.Identifier]
	Users() EntityCollection[domain.User, string]

	ShowAlert(kind domain.AlertKind, msg, color string)
	DismissAlert(kind domain.AlertKind)
	SetLoader(dataType domain.DataType, msg string)
	CancelLoader()

	ConnectedAccount() string
	SetConnectedAccount(account string)
	CurrentUserDID() string
	SetCurrentUserDID(did string)
	SetUserInView(view domain.UserInView)

	Snapshot() domain.Snapshot
	ConsumeOutcomes() domain.OutcomeSet
}
