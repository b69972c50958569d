package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
	"github.com/pucco93/ebsi-access-control/internal/core/port"
	"github.com/pucco93/ebsi-access-control/internal/infra/logger"
)

// RequesterResolver yields the DID registered for the connected account, or
// "" when there is none.
type RequesterResolver interface {
	ResolveSelfDID(ctx context.Context) (string, error)
}

// AccountService manages the connected account and the self identity.
type AccountService struct {
	*Dispatcher
	session port.SessionStore
}

// NewAccountService constructs an AccountService.
func NewAccountService(d *Dispatcher, session port.SessionStore) *AccountService {
	return &AccountService{Dispatcher: d, session: session}
}

// Connect records account as the signing account and persists it. A change of
// account drops the previously resolved self DID.
func (s *AccountService) Connect(ctx context.Context, account string) error {
	account = strings.TrimSpace(account)
	if account == "" {
		return &domain.ValidationError{Field: "account", Reason: "is required"}
	}

	previous := s.store.ConnectedAccount()
	s.store.SetConnectedAccount(account)
	if !strings.EqualFold(previous, account) {
		s.store.SetCurrentUserDID("")
		if err := s.session.SetSelfDID(ctx, ""); err != nil {
			s.logger.Warn("failed to reset persisted self did", zap.Error(err))
		}
	}

	if err := s.session.SetAccount(ctx, account); err != nil {
		s.store.ShowAlert(domain.AlertGeneral, err.Error(), domain.ColorRed)
		return fmt.Errorf("persist account: %w", err)
	}

	s.logger.Info("account connected", zap.String("account", logger.MaskAccount(account)))
	return nil
}

// Disconnect clears the connected account and self DID from the store and
// from persisted state.
func (s *AccountService) Disconnect(ctx context.Context) error {
	s.store.SetConnectedAccount("")
	s.store.SetCurrentUserDID("")
	if err := s.session.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Restore loads the persisted account and self DID into the store.
func (s *AccountService) Restore(ctx context.Context) error {
	account, err := s.session.GetAccount(ctx)
	if err != nil {
		return fmt.Errorf("restore account: %w", err)
	}
	did, err := s.session.GetSelfDID(ctx)
	if err != nil {
		return fmt.Errorf("restore self did: %w", err)
	}
	s.store.SetConnectedAccount(account)
	s.store.SetCurrentUserDID(did)
	if account != "" {
		s.logger.Info("session restored", zap.String("account", logger.MaskAccount(account)), zap.Bool("has_did", did != ""))
	}
	return nil
}

// ResolveSelfDID returns the DID registered for the connected account. The
// persisted value wins; otherwise the ledger is asked and the answer is
// persisted. A failed lookup stores and returns "".
func (s *AccountService) ResolveSelfDID(ctx context.Context) (string, error) {
	if did, err := s.session.GetSelfDID(ctx); err == nil && did != "" {
		s.store.SetCurrentUserDID(did)
		return did, nil
	} else if err != nil {
		s.logger.Warn("persisted self did unavailable", zap.Error(err))
	}

	account := s.store.ConnectedAccount()
	if account == "" {
		return "", domain.ErrNotConnected
	}

	did, err := s.ledger.GetEbsiDID(ctx, account)
	if err != nil {
		s.store.SetCurrentUserDID("")
		s.logger.Error("resolve self did", zap.String("account", logger.MaskAccount(account)), zap.Error(err))
		return "", ClassifyLedgerError(err)
	}

	if did != "" {
		if err := s.session.SetSelfDID(ctx, did); err != nil {
			s.logger.Warn("failed to persist self did", zap.Error(err))
		}
	}
	s.store.SetCurrentUserDID(did)
	return did, nil
}

// requester resolves the acting DID and raises the registration alert when the
// connected account has none.
func requester(ctx context.Context, d *Dispatcher, resolver RequesterResolver) (string, error) {
	did, err := resolver.ResolveSelfDID(ctx)
	if did != "" {
		return did, nil
	}
	d.store.ShowAlert(domain.AlertGeneral, msgRequesterUnregistered, domain.ColorRed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRequesterUnregistered, err)
	}
	return "", domain.ErrRequesterUnregistered
}
