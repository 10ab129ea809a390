package core

import (
	"context"
	"math/big"
	"time"

	"chatpay/internal/chain"
	"chatpay/internal/registry"
	"chatpay/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

const (
	recordTypeTransfer = "transfer"
	recordTypeSwap     = "swap"

	recordStatusCompleted = "completed"
)

// ledgerLeg is one direction of value movement, measured by balance diff.
type ledgerLeg struct {
	TxHash string
	From   common.Address
	To     common.Address
	Amount string // human units, from the actual delta
	Symbol string
	Type   string
}

// reconcileTransfer measures the amount actually moved by diffing balances
// around the confirmed transfer. Requested amounts are never trusted: fees
// and rounding can make the real delta diverge.
func (o *Orchestrator) reconcileTransfer(ctx context.Context, chainSvc ChainService, token registry.TokenInfo, from, to common.Address, beforeFrom, beforeTo *big.Int, txHash string) []ledgerLeg {
	afterFrom, err := chainSvc.TokenBalance(ctx, token.Address, from)
	if err != nil {
		o.logs.Errorw("reconciliation read failed, skipping record", "error", err, "tx_hash", txHash)
		return nil
	}

	sent := new(big.Int).Sub(beforeFrom, afterFrom)

	return []ledgerLeg{
		{
			TxHash: txHash,
			From:   from,
			To:     to,
			Amount: chain.FromBaseUnits(sent, token.Decimals),
			Symbol: token.Symbol,
			Type:   recordTypeTransfer,
		},
	}
}

// reconcileSwap produces the two legs of a swap: the outbound input-token leg
// and the inbound output-token leg, both from post-inclusion balance diffs.
func (o *Orchestrator) reconcileSwap(ctx context.Context, chainSvc ChainService, cc chain.ContractsContext, tokenIn, tokenOut registry.TokenInfo, proxy common.Address, beforeIn, beforeOut *big.Int, txHash string) []ledgerLeg {
	afterIn, err := chainSvc.TokenBalance(ctx, tokenIn.Address, proxy)
	if err != nil {
		o.logs.Errorw("reconciliation read failed, skipping records", "error", err, "tx_hash", txHash)
		return nil
	}

	afterOut, err := chainSvc.TokenBalance(ctx, tokenOut.Address, proxy)
	if err != nil {
		o.logs.Errorw("reconciliation read failed, skipping records", "error", err, "tx_hash", txHash)
		return nil
	}

	sent := new(big.Int).Sub(beforeIn, afterIn)
	received := new(big.Int).Sub(afterOut, beforeOut)

	return []ledgerLeg{
		{
			TxHash: txHash,
			From:   proxy,
			To:     cc.RouterAddress,
			Amount: chain.FromBaseUnits(sent, tokenIn.Decimals),
			Symbol: tokenIn.Symbol,
			Type:   recordTypeSwap,
		},
		{
			TxHash: txHash,
			From:   cc.RouterAddress,
			To:     proxy,
			Amount: chain.FromBaseUnits(received, tokenOut.Decimals),
			Symbol: tokenOut.Symbol,
			Type:   recordTypeSwap,
		},
	}
}

// recordLegs persists the reconciled legs. The chain is the source of truth:
// a persistence failure is logged and never changes the saga outcome.
func (o *Orchestrator) recordLegs(ctx context.Context, chainID int64, legs []ledgerLeg) {
	if len(legs) == 0 {
		return
	}

	records := make([]repository.TransactionRecord, 0, len(legs))
	for _, leg := range legs {
		records = append(records, repository.TransactionRecord{
			ID:          uuid.NewString(),
			TxHash:      leg.TxHash,
			WalletFrom:  leg.From.Hex(),
			WalletTo:    leg.To.Hex(),
			Amount:      leg.Amount,
			TokenSymbol: leg.Symbol,
			ChainID:     chainID,
			Type:        leg.Type,
			Status:      recordStatusCompleted,
			CreatedAt:   time.Now().UTC(),
		})
	}

	if err := o.repo.SaveTransactionRecords(ctx, records); err != nil {
		o.logs.Errorw("failed to persist transaction records", "error", err, "count", len(records))
	}
}
