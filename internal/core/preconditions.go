package core

import (
	"context"
	"fmt"

	"chatpay/internal/chain"
	"chatpay/internal/registry"

	"github.com/ethereum/go-ethereum/common"
)

// checkBalance reads the holder's on-chain token balance and compares it
// against the requested amount converted to base units. Read-only; always
// runs before any state-mutating call.
func (o *Orchestrator) checkBalance(ctx context.Context, chainSvc ChainService, token registry.TokenInfo, holder common.Address, amount string) (BalanceCheck, error) {
	required, err := chain.ToBaseUnits(amount, token.Decimals)
	if err != nil {
		return BalanceCheck{}, fmt.Errorf("convert amount: %w", err)
	}

	available, err := chainSvc.TokenBalance(ctx, token.Address, holder)
	if err != nil {
		return BalanceCheck{}, fmt.Errorf("read balance: %w", err)
	}

	return BalanceCheck{
		Enough:    available.Cmp(required) >= 0,
		Required:  required,
		Available: available,
	}, nil
}
