package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	red "github.com/redis/go-redis/v9"

	"github.com/pucco93/ebsi-access-control/internal/core/port"
)

const defaultSessionPrefix = "acl:session"

const (
	accountField = "account"
	selfDIDField = "self_did"
)

// SessionStore persists the connected account and the resolved self DID.
// Entries carry no expiry: they live until Clear, like browser storage.
type SessionStore struct {
	client *red.Client
	prefix string
}

// NewSessionStore constructs a Redis-backed session store.
func NewSessionStore(client *red.Client, keyPrefix string) *SessionStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultSessionPrefix
	}
	return &SessionStore{client: client, prefix: prefix}
}

func (s *SessionStore) GetAccount(ctx context.Context) (string, error) {
	return s.get(ctx, accountField)
}

func (s *SessionStore) SetAccount(ctx context.Context, account string) error {
	return s.set(ctx, accountField, account)
}

func (s *SessionStore) GetSelfDID(ctx context.Context) (string, error) {
	return s.get(ctx, selfDIDField)
}

// SetSelfDID stores did; the empty DID removes the entry.
func (s *SessionStore) SetSelfDID(ctx context.Context, did string) error {
	return s.set(ctx, selfDIDField, did)
}

// Clear removes both entries.
func (s *SessionStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key(accountField), s.key(selfDIDField)).Err(); err != nil {
		return fmt.Errorf("redis clear session: %w", err)
	}
	return nil
}

func (s *SessionStore) get(ctx context.Context, field string) (string, error) {
	value, err := s.client.Get(ctx, s.key(field)).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis get %s: %w", field, err)
	}
	return value, nil
}

func (s *SessionStore) set(ctx context.Context, field, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		if err := s.client.Del(ctx, s.key(field)).Err(); err != nil {
			return fmt.Errorf("redis delete %s: %w", field, err)
		}
		return nil
	}
	if err := s.client.Set(ctx, s.key(field), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", field, err)
	}
	return nil
}

func (s *SessionStore) key(field string) string {
	return fmt.Sprintf("%s:%s", s.prefix, field)
}

var _ port.SessionStore = (*SessionStore)(nil)
