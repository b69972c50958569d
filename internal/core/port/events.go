package port

import (
	"context"
	"fmt"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
)

// StreamKind identifies a contract notification stream.
type StreamKind string

const (
	StreamPermission       StreamKind = "UpdatedPermission"
	StreamRole             StreamKind = "UpdatedRole"
	StreamResource         StreamKind = "ResourceUpdated"
	StreamUser             StreamKind = "UserUpdated"
	StreamCustomError      StreamKind = "CustomError"
	StreamPermissionDenied StreamKind = "PermissionDenied"
)

// EntityStreams lists the four entity change streams.
var EntityStreams = []StreamKind{StreamPermission, StreamRole, StreamResource, StreamUser}

// StreamForKind returns the change stream carrying events for kind.
func StreamForKind(kind domain.EntityKind) StreamKind {
	switch kind {
	case domain.KindPermission:
		return StreamPermission
	case domain.KindRole:
		return StreamRole
	case domain.KindResource:
		return StreamResource
	case domain.KindUser:
		return StreamUser
	}
	return ""
}

// Kind returns the entity kind of a change stream, or "" for alert streams.
func (s StreamKind) Kind() domain.EntityKind {
	switch s {
	case StreamPermission:
		return domain.KindPermission
	case StreamRole:
		return domain.KindRole
	case StreamResource:
		return domain.KindResource
	case StreamUser:
		return domain.KindUser
	}
	return ""
}

// EventType is the eventType discriminator carried by change notifications.
type EventType string

const (
	EventCreation               EventType = "creation"
	EventDeletion               EventType = "deletion"
	EventBlacklistUpdated       EventType = "blacklist-updated"
	EventUpdatedResourceAdded   EventType = "updated-resource-added"
	EventUpdatedResourceRemoved EventType = "updated-resource-removed"
)

// LedgerEvent is a decoded, classified notification. Only the payload field
// matching Stream is populated.
type LedgerEvent struct {
	Stream      StreamKind     `json:"stream"`
	Type        EventType      `json:"eventType"`
	Permission  *RawPermission `json:"permission,omitempty"`
	Role        *RawRole       `json:"role,omitempty"`
	Resource    *ResourceEvent `json:"resource,omitempty"`
	EbsiDID     string         `json:"ebsiDID,omitempty"`
	Message     string         `json:"message,omitempty"`
	TxHash      string         `json:"txHash,omitempty"`
	BlockNumber uint64         `json:"blockNumber,omitempty"`
	LogIndex    uint           `json:"logIndex,omitempty"`
}

// ResourceEvent is the body of a ResourceUpdated notification.
type ResourceEvent struct {
	Name       domain.Identifier `json:"name"`
	ListedUser string            `json:"listedUser,omitempty"`
}

// Validate rejects payloads missing the body required by their stream.
func (e LedgerEvent) Validate() error {
	switch e.Stream {
	case StreamPermission:
		if e.Permission == nil {
			return fmt.Errorf("%w: %s event without permission body", domain.ErrLedgerCall, e.Stream)
		}
	case StreamRole:
		if e.Role == nil {
			return fmt.Errorf("%w: %s event without role body", domain.ErrLedgerCall, e.Stream)
		}
	case StreamResource:
		if e.Resource == nil {
			return fmt.Errorf("%w: %s event without resource body", domain.ErrLedgerCall, e.Stream)
		}
	case StreamUser:
		if e.EbsiDID == "" && (e.Type == EventCreation || e.Type == EventDeletion) {
			return fmt.Errorf("%w: %s %s event without ebsiDID", domain.ErrLedgerCall, e.Stream, e.Type)
		}
	case StreamCustomError, StreamPermissionDenied:
	default:
		return fmt.Errorf("%w: unknown stream %q", domain.ErrLedgerCall, e.Stream)
	}
	return nil
}

// EventHandler receives classified events for one stream.
type EventHandler func(ctx context.Context, event LedgerEvent)

// Subscription is the token returned by Subscribe.
type Subscription interface {
	Unsubscribe()
}

// EventSource delivers ledger notifications.
type EventSource interface {
	Subscribe(ctx context.Context, stream StreamKind, handler EventHandler) (Subscription, error)
}

// OutcomePublisher fans Outcome records out to other consumers.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, record domain.OutcomeRecord) error
}
