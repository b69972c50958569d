package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/pucco93/ebsi-access-control/internal/core/port"
)

// SessionStore keeps the session in process memory. Used when Redis is
// disabled; nothing survives a restart.
type SessionStore struct {
	mu      sync.RWMutex
	account string
	selfDID string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

func (s *SessionStore) GetAccount(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account, nil
}

func (s *SessionStore) SetAccount(_ context.Context, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = strings.TrimSpace(account)
	return nil
}

func (s *SessionStore) GetSelfDID(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selfDID, nil
}

func (s *SessionStore) SetSelfDID(_ context.Context, did string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selfDID = strings.TrimSpace(did)
	return nil
}

func (s *SessionStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account, s.selfDID = "", ""
	return nil
}

var _ port.SessionStore = (*SessionStore)(nil)
