package ledger

import (
	_ "embed"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
	"github.com/pucco93/ebsi-access-control/internal/core/port"
)

//go:embed access_control.abi.json
var accessControlABIJSON string

var (
	parsedABI    abi.ABI
	parsedABIErr error
	parseOnce    sync.Once
)

// ContractABI returns the parsed access-control contract ABI.
func ContractABI() (abi.ABI, error) {
	parseOnce.Do(func() {
		parsedABI, parsedABIErr = abi.JSON(strings.NewReader(accessControlABIJSON))
		if parsedABIErr != nil {
			parsedABIErr = fmt.Errorf("parse access control abi: %w", parsedABIErr)
		}
	})
	return parsedABI, parsedABIErr
}

// Tuple layouts. Field order follows the ABI components; abi.ConvertType
// copies positionally and tuple packing matches camel-cased component names.

type abiPermission struct {
	Permission [32]byte
	IsCustom   bool
}

type abiRole struct {
	Name        [32]byte
	IsCustom    bool
	Permissions [][32]byte
}

type abiResource struct {
	Name      [32]byte
	Blacklist []string
}

type abiUser struct {
	EbsiDID         string
	ResourcesHashes [][32]byte
	CreatedTime     *big.Int
	LastAccess      *big.Int
	LastUpdate      *big.Int
}

type abiResourceRole struct {
	ResourceName [32]byte
	Role         abiRole
}

func toBytes32(ids []domain.Identifier) [][32]byte {
	out := make([][32]byte, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func fromBytes32(raw [][32]byte) []domain.Identifier {
	out := make([]domain.Identifier, len(raw))
	for i, b := range raw {
		out[i] = b
	}
	return out
}

func (p abiPermission) raw() port.RawPermission {
	return port.RawPermission{Permission: p.Permission, IsCustom: p.IsCustom}
}

func (r abiRole) raw() port.RawRole {
	return port.RawRole{Name: r.Name, IsCustom: r.IsCustom, Permissions: fromBytes32(r.Permissions)}
}

func roleToABI(r port.RawRole) abiRole {
	return abiRole{Name: r.Name, IsCustom: r.IsCustom, Permissions: toBytes32(r.Permissions)}
}

func (r abiResource) raw() port.RawResource {
	blacklist := r.Blacklist
	if blacklist == nil {
		blacklist = []string{}
	}
	return port.RawResource{Name: r.Name, Blacklist: blacklist}
}

func (u abiUser) raw() port.RawUser {
	return port.RawUser{
		EbsiDID:         u.EbsiDID,
		ResourcesHashes: fromBytes32(u.ResourcesHashes),
		CreatedTime:     u.CreatedTime,
		LastAccess:      u.LastAccess,
		LastUpdate:      u.LastUpdate,
	}
}

func (rr abiResourceRole) raw() port.RawResourceRole {
	return port.RawResourceRole{ResourceName: rr.ResourceName, Role: rr.Role.raw()}
}
