package chain

import (
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

type NetworkParams struct {
	ChainID         int64
	Router          common.Address
	Paymaster       common.Address
	ReceiptTimeout  time.Duration
	ReceiptInterval time.Duration
}

// ContractsContext carries the resolved contract interfaces produced by the
// health check so the executor does not re-resolve them per call.
type ContractsContext struct {
	ERC20  abi.ABI
	Proxy  abi.ABI
	Router abi.ABI

	RouterAddress    common.Address
	PaymasterAddress common.Address
}
