package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
	"github.com/pucco93/ebsi-access-control/internal/core/port"
)

type permissionLog struct {
	EventType  string
	Permission abiPermission
}

type roleLog struct {
	EventType string
	Role      abiRole
}

type resourceLog struct {
	EventType  string
	Name       [32]byte
	ListedUser string
}

type userLog struct {
	EventType string
	EbsiDID   string
}

type messageLog struct {
	Message string
}

// DecodeLog unpacks a contract log emitted on stream.
func (c *Client) DecodeLog(stream port.StreamKind, lg types.Log) (port.LedgerEvent, error) {
	ev := port.LedgerEvent{
		Stream:      stream,
		TxHash:      lg.TxHash.Hex(),
		BlockNumber: lg.BlockNumber,
		LogIndex:    lg.Index,
	}
	name := string(stream)

	switch stream {
	case port.StreamPermission:
		var out permissionLog
		if err := c.contract.UnpackLog(&out, name, lg); err != nil {
			return ev, fmt.Errorf("unpack %s: %w", name, err)
		}
		raw := out.Permission.raw()
		ev.Type = port.EventType(out.EventType)
		ev.Permission = &raw
	case port.StreamRole:
		var out roleLog
		if err := c.contract.UnpackLog(&out, name, lg); err != nil {
			return ev, fmt.Errorf("unpack %s: %w", name, err)
		}
		raw := out.Role.raw()
		ev.Type = port.EventType(out.EventType)
		ev.Role = &raw
	case port.StreamResource:
		var out resourceLog
		if err := c.contract.UnpackLog(&out, name, lg); err != nil {
			return ev, fmt.Errorf("unpack %s: %w", name, err)
		}
		ev.Type = port.EventType(out.EventType)
		ev.Resource = &port.ResourceEvent{Name: domain.Identifier(out.Name), ListedUser: out.ListedUser}
	case port.StreamUser:
		var out userLog
		if err := c.contract.UnpackLog(&out, name, lg); err != nil {
			return ev, fmt.Errorf("unpack %s: %w", name, err)
		}
		ev.Type = port.EventType(out.EventType)
		ev.EbsiDID = out.EbsiDID
	case port.StreamCustomError, port.StreamPermissionDenied:
		var out messageLog
		if err := c.contract.UnpackLog(&out, name, lg); err != nil {
			return ev, fmt.Errorf("unpack %s: %w", name, err)
		}
		ev.Message = out.Message
	default:
		return ev, fmt.Errorf("unknown stream %q", stream)
	}
	return ev, nil
}

type logSubscription struct {
	sub  event.Subscription
	once sync.Once
	done chan struct{}
}

func (s *logSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.sub.Unsubscribe()
		<-s.done
	})
}

// Subscribe watches the contract logs of stream. Logs that cannot be decoded
// are still delivered, without a body, so the consumer can re-read the
// affected collection.
func (c *Client) Subscribe(ctx context.Context, stream port.StreamKind, handler port.EventHandler) (port.Subscription, error) {
	if _, ok := c.abi.Events[string(stream)]; !ok {
		return nil, fmt.Errorf("unknown stream %q", stream)
	}

	logs, sub, err := c.contract.WatchLogs(&bind.WatchOpts{Context: ctx}, string(stream))
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", stream, err)
	}

	return c.pump(ctx, stream, logs, sub, handler), nil
}

func (c *Client) pump(ctx context.Context, stream port.StreamKind, logs <-chan types.Log, sub event.Subscription, handler port.EventHandler) *logSubscription {
	s := &logSubscription{sub: sub, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		for {
			select {
			case lg, ok := <-logs:
				if !ok {
					return
				}
				if lg.Removed {
					continue
				}
				ev, err := c.DecodeLog(stream, lg)
				if err != nil {
					c.logger.Warn("undecodable ledger log",
						zap.String("stream", string(stream)),
						zap.String("tx", lg.TxHash.Hex()),
						zap.Error(err),
					)
				}
				handler(ctx, ev)
			case err := <-sub.Err():
				if err != nil {
					c.logger.Warn("ledger log subscription ended", zap.String("stream", string(stream)), zap.Error(err))
				}
				return
			case <-ctx.Done():
				sub.Unsubscribe()
				return
			}
		}
	}()
	return s
}

var _ port.EventSource = (*Client)(nil)
