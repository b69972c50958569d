package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrSignatureDenied is returned when no key is held for the requesting
// account. Its text carries the phrase the dispatcher classifies as a decline.
var ErrSignatureDenied = errors.New("authorizer: User denied transaction signature")

// Authorizer produces signing options for an account.
type Authorizer interface {
	Authorize(ctx context.Context, account string) (*bind.TransactOpts, error)
}

// KeyedAuthorizer signs with locally held secp256k1 keys.
type KeyedAuthorizer struct {
	chainID *big.Int

	mu   sync.RWMutex
	keys map[common.Address]*ecdsa.PrivateKey
}

// NewKeyedAuthorizer builds an authorizer for chainID. hexKeys may be empty;
// every entry is a hex private key with or without 0x.
func NewKeyedAuthorizer(chainID int64, hexKeys ...string) (*KeyedAuthorizer, error) {
	a := &KeyedAuthorizer{chainID: big.NewInt(chainID), keys: make(map[common.Address]*ecdsa.PrivateKey)}
	for _, raw := range hexKeys {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if _, err := a.AddHexKey(raw); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// AddHexKey registers a key and returns its address.
func (a *KeyedAuthorizer) AddHexKey(hexKey string) (common.Address, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimPrefix(hexKey, "0x"), "0X"))
	if err != nil {
		return common.Address{}, fmt.Errorf("parse signer key: %w", err)
	}
	a.AddKey(key)
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// AddKey registers key.
func (a *KeyedAuthorizer) AddKey(key *ecdsa.PrivateKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys[crypto.PubkeyToAddress(key.PublicKey)] = key
}

// Accounts lists the addresses the authorizer can sign for.
func (a *KeyedAuthorizer) Accounts() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.keys))
	for addr := range a.keys {
		out = append(out, addr.Hex())
	}
	return out
}

// Authorize returns transact options for account or ErrSignatureDenied.
func (a *KeyedAuthorizer) Authorize(ctx context.Context, account string) (*bind.TransactOpts, error) {
	if !common.IsHexAddress(account) {
		return nil, fmt.Errorf("invalid account address %q", account)
	}
	a.mu.RLock()
	key, ok := a.keys[common.HexToAddress(account)]
	a.mu.RUnlock()
	if !ok {
		return nil, ErrSignatureDenied
	}

	opts, err := bind.NewKeyedTransactorWithChainID(key, a.chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}
