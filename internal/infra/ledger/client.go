package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
	"github.com/pucco93/ebsi-access-control/internal/core/port"
	"github.com/pucco93/ebsi-access-control/internal/infra/config"
	"github.com/pucco93/ebsi-access-control/internal/infra/logger"
)

// Backend is the node connection the client needs: calls, transactions,
// log filters and receipts.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Options tunes a Client.
type Options struct {
	CallTimeout time.Duration
	Logger      *zap.Logger
}

// Client implements the ledger boundary against the access-control contract.
type Client struct {
	address     common.Address
	abi         abi.ABI
	backend     Backend
	contract    *bind.BoundContract
	authorizer  Authorizer
	callTimeout time.Duration
	logger      *zap.Logger
	closer      func()
}

// Dial connects to cfg.RPCURL and binds the configured contract.
func Dial(ctx context.Context, cfg config.LedgerSettings, log *zap.Logger) (*Client, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger rpc: %w", err)
	}

	authorizer, err := NewKeyedAuthorizer(cfg.ChainID, cfg.SignerKey)
	if err != nil {
		eth.Close()
		return nil, err
	}

	client, err := NewClient(eth, common.HexToAddress(cfg.ContractAddress), authorizer, Options{
		CallTimeout: cfg.CallTimeout,
		Logger:      log,
	})
	if err != nil {
		eth.Close()
		return nil, err
	}
	client.closer = eth.Close

	if log != nil {
		log.Info("ledger client connected",
			zap.String("contract", cfg.ContractAddress),
			zap.Int64("chain_id", cfg.ChainID),
			zap.Int("signer_accounts", len(authorizer.Accounts())),
		)
	}
	return client, nil
}

// NewClient binds the contract at address over backend.
func NewClient(backend Backend, address common.Address, authorizer Authorizer, opts Options) (*Client, error) {
	parsed, err := ContractABI()
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		address:     address,
		abi:         parsed,
		backend:     backend,
		contract:    bind.NewBoundContract(address, parsed, backend, backend, backend),
		authorizer:  authorizer,
		callTimeout: timeout,
		logger:      log,
	}, nil
}

// Close releases the node connection when the client owns it.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// Address returns the bound contract address.
func (c *Client) Address() common.Address {
	return c.address
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.callTimeout)
}

func (c *Client) call(ctx context.Context, method string, params ...any) (any, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var out []any
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s: empty result", method)
	}
	return out[0], nil
}

// decode copies an unpacked ABI value into T. abi.ConvertType panics on
// shape mismatches, which is turned into an error here.
func decode[T any](method string, value any) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode %s result: %v", method, r)
		}
	}()
	converted, ok := abi.ConvertType(value, new(T)).(*T)
	if !ok {
		return result, fmt.Errorf("decode %s result: unexpected %T", method, value)
	}
	return *converted, nil
}

func callAs[T any](ctx context.Context, c *Client, method string, params ...any) (T, error) {
	value, err := c.call(ctx, method, params...)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](method, value)
}

func (c *Client) transact(ctx context.Context, account, method string, params ...any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	opts, err := c.authorizer.Authorize(ctx, account)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	tx, err := c.contract.Transact(opts, method, params...)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	c.logger.Debug("ledger transaction sent",
		zap.String("method", method),
		zap.String("account", logger.MaskAccount(account)),
		zap.String("tx", tx.Hash().Hex()),
	)

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return fmt.Errorf("%s: wait for receipt: %w", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%s: transaction %s reverted", method, tx.Hash().Hex())
	}
	return nil
}

func (c *Client) GetAllAvailablePermissions(ctx context.Context) ([]port.RawPermission, error) {
	rows, err := callAs[[]abiPermission](ctx, c, "getAllAvailablePermissions")
	if err != nil {
		return nil, err
	}
	out := make([]port.RawPermission, len(rows))
	for i, row := range rows {
		out[i] = row.raw()
	}
	return out, nil
}

func (c *Client) GetPermission(ctx context.Context, id domain.Identifier) (port.RawPermission, error) {
	row, err := callAs[abiPermission](ctx, c, "getPermission", [32]byte(id))
	if err != nil {
		return port.RawPermission{}, err
	}
	return row.raw(), nil
}

func (c *Client) GetAllPermissionsInBytes32(ctx context.Context) ([]domain.Identifier, error) {
	raw, err := callAs[[][32]byte](ctx, c, "getAllPermissionsInBytes32")
	if err != nil {
		return nil, err
	}
	return fromBytes32(raw), nil
}

func (c *Client) GetAllAvailableRoles(ctx context.Context) ([]port.RawRole, error) {
	rows, err := callAs[[]abiRole](ctx, c, "getAllAvailableRoles")
	if err != nil {
		return nil, err
	}
	out := make([]port.RawRole, len(rows))
	for i, row := range rows {
		out[i] = row.raw()
	}
	return out, nil
}

func (c *Client) GetRole(ctx context.Context, id domain.Identifier) (port.RawRole, error) {
	row, err := callAs[abiRole](ctx, c, "getRole", [32]byte(id))
	if err != nil {
		return port.RawRole{}, err
	}
	return row.raw(), nil
}

func (c *Client) GetAllRolesInBytes32(ctx context.Context) ([]domain.Identifier, error) {
	raw, err := callAs[[][32]byte](ctx, c, "getAllRolesInBytes32")
	if err != nil {
		return nil, err
	}
	return fromBytes32(raw), nil
}

func (c *Client) GetAllResources(ctx context.Context) ([]port.RawResource, error) {
	rows, err := callAs[[]abiResource](ctx, c, "getAllResources")
	if err != nil {
		return nil, err
	}
	out := make([]port.RawResource, len(rows))
	for i, row := range rows {
		out[i] = row.raw()
	}
	return out, nil
}

func (c *Client) GetResource(ctx context.Context, id domain.Identifier) (port.RawResource, error) {
	row, err := callAs[abiResource](ctx, c, "getResource", [32]byte(id))
	if err != nil {
		return port.RawResource{}, err
	}
	return row.raw(), nil
}

func (c *Client) GetAllResourcesInBytes32(ctx context.Context) ([]domain.Identifier, error) {
	raw, err := callAs[[][32]byte](ctx, c, "getAllResourcesInBytes32")
	if err != nil {
		return nil, err
	}
	return fromBytes32(raw), nil
}

func (c *Client) GetAllUsers(ctx context.Context) ([]port.RawUser, error) {
	rows, err := callAs[[]abiUser](ctx, c, "getAllUsers")
	if err != nil {
		return nil, err
	}
	out := make([]port.RawUser, len(rows))
	for i, row := range rows {
		out[i] = row.raw()
	}
	return out, nil
}

func (c *Client) GetUser(ctx context.Context, did string) (port.RawUser, error) {
	row, err := callAs[abiUser](ctx, c, "getUser", did)
	if err != nil {
		return port.RawUser{}, err
	}
	return row.raw(), nil
}

func (c *Client) GetAllEbsiDIDs(ctx context.Context) ([]string, error) {
	dids, err := callAs[[]string](ctx, c, "getAllEbsiDIDs")
	if err != nil {
		return nil, err
	}
	if dids == nil {
		dids = []string{}
	}
	return dids, nil
}

func (c *Client) GetEbsiDID(ctx context.Context, account string) (string, error) {
	if !common.IsHexAddress(account) {
		return "", fmt.Errorf("call getEbsiDID: invalid account address %q", account)
	}
	return callAs[string](ctx, c, "getEbsiDID", common.HexToAddress(account))
}

func (c *Client) GetAllUserRoles(ctx context.Context, did string) ([]port.RawResourceRole, error) {
	rows, err := callAs[[]abiResourceRole](ctx, c, "getAllUserRoles", did)
	if err != nil {
		return nil, err
	}
	out := make([]port.RawResourceRole, len(rows))
	for i, row := range rows {
		out[i] = row.raw()
	}
	return out, nil
}

func (c *Client) CreateCustomPermission(ctx context.Context, account string, id domain.Identifier) error {
	return c.transact(ctx, account, "createCustomPermission", [32]byte(id))
}

func (c *Client) DeleteCustomPermission(ctx context.Context, account string, remaining []domain.Identifier, id domain.Identifier) error {
	return c.transact(ctx, account, "deleteCustomPermission", toBytes32(remaining), [32]byte(id))
}

func (c *Client) CreateCustomRole(ctx context.Context, account string, id domain.Identifier, permissions []domain.Identifier) error {
	return c.transact(ctx, account, "createCustomRole", [32]byte(id), toBytes32(permissions))
}

func (c *Client) DeleteCustomRole(ctx context.Context, account string, remaining []domain.Identifier, id domain.Identifier) error {
	return c.transact(ctx, account, "deleteCustomRole", toBytes32(remaining), [32]byte(id))
}

func (c *Client) CreateResource(ctx context.Context, account string, id domain.Identifier, creatorDID string) error {
	return c.transact(ctx, account, "createResource", [32]byte(id), creatorDID)
}

func (c *Client) DeleteResource(ctx context.Context, account string, id domain.Identifier, remaining []domain.Identifier) error {
	return c.transact(ctx, account, "deleteResource", [32]byte(id), toBytes32(remaining))
}

func (c *Client) UpdateResourceBlackList(ctx context.Context, account string, requesterDID string, resourceID domain.Identifier, blacklist []string) error {
	if blacklist == nil {
		blacklist = []string{}
	}
	return c.transact(ctx, account, "updateResourceBlackList", requesterDID, [32]byte(resourceID), blacklist)
}

func (c *Client) CreateUser(ctx context.Context, account string, did string) error {
	return c.transact(ctx, account, "createUser", did)
}

func (c *Client) RemoveUser(ctx context.Context, account string, did string, remaining []string) error {
	if remaining == nil {
		remaining = []string{}
	}
	return c.transact(ctx, account, "removeUser", did, remaining)
}

func (c *Client) UpdateUserResources(ctx context.Context, account string, update port.UserResourcesUpdate) error {
	return c.transact(ctx, account, "updateUserResources",
		update.RequesterDID,
		update.EbsiDID,
		toBytes32(update.ResourceIDs),
		[32]byte(update.ResourceID),
		roleToABI(update.Role),
		string(update.Action),
	)
}

var _ port.Ledger = (*Client)(nil)
