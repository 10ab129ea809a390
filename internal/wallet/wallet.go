package wallet

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Proxy wallets are deployed through the factory with a fixed init code, so
// their addresses are a pure function of (factory, salt).
var proxyInitCodeHash = common.HexToHash("0x9c258f9f29b9a118bcd74fa8b8c1c4c1e1e7d5ccd2f6e0b8f3b26f4f084ba4a1")

// Provisioner derives custodial proxy wallet addresses. Derivation is
// deterministic and idempotent: the same (phone, chain) pair always yields
// the same address, with or without the contract already deployed.
type Provisioner struct{}

func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

func (p *Provisioner) DeriveProxyAddress(phoneNumber string, chainID int64, factory common.Address) common.Address {
	salt := crypto.Keccak256Hash([]byte(fmt.Sprintf("%s:%d", phoneNumber, chainID)))
	return crypto.CreateAddress2(factory, salt, proxyInitCodeHash.Bytes())
}
