package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrReceiptTimeout error = errors.New("timed out waiting for transaction receipt")
var ErrExecutionReverted error = errors.New("transaction reverted on chain")

// gasMarginPercent pads dynamic gas estimates to tolerate congestion between
// estimation and inclusion.
const gasMarginPercent = 120

const swapDeadline = 10 * time.Minute

// ExecuteTransfer moves amount of token from the sender's proxy to the
// recipient and waits for inclusion. It returns the raw transaction hash;
// interpreting moved amounts is the caller's job.
func (s *Service) ExecuteTransfer(ctx context.Context, cc ContractsContext, fromProxy, to, token common.Address, amount *big.Int) (string, error) {
	transferData, err := cc.ERC20.Pack("transfer", to, amount)
	if err != nil {
		return "", fmt.Errorf("pack transfer: %w", err)
	}

	calldata, err := cc.Proxy.Pack("execute", token, big.NewInt(0), transferData)
	if err != nil {
		return "", fmt.Errorf("pack proxy execute: %w", err)
	}

	hash, err := s.submit(ctx, fromProxy, calldata)
	if err != nil {
		return "", fmt.Errorf("submit transfer: %w", err)
	}

	if err := s.waitMined(ctx, hash); err != nil {
		return hash.Hex(), fmt.Errorf("await transfer: %w", err)
	}

	return hash.Hex(), nil
}

// ExecuteSwap runs the two chained legs of a swap through the sender's proxy:
// an approval granting the router spending rights, then the swap itself. Each
// leg is awaited to inclusion before the next starts. Either leg failing
// fails the whole operation; an already-mined approval is left as-is.
func (s *Service) ExecuteSwap(ctx context.Context, cc ContractsContext, fromProxy, tokenIn, tokenOut common.Address, amountIn *big.Int) ([]string, error) {
	var hashes []string

	approveData, err := cc.ERC20.Pack("approve", cc.RouterAddress, amountIn)
	if err != nil {
		return nil, fmt.Errorf("pack approve: %w", err)
	}

	approveCall, err := cc.Proxy.Pack("execute", tokenIn, big.NewInt(0), approveData)
	if err != nil {
		return nil, fmt.Errorf("pack proxy execute: %w", err)
	}

	approveHash, err := s.submit(ctx, fromProxy, approveCall)
	if err != nil {
		return nil, fmt.Errorf("submit approve: %w", err)
	}
	hashes = append(hashes, approveHash.Hex())

	if err := s.waitMined(ctx, approveHash); err != nil {
		return hashes, fmt.Errorf("await approve: %w", err)
	}

	deadline := big.NewInt(time.Now().Add(swapDeadline).Unix())
	swapData, err := cc.Router.Pack("swapExactTokensForTokens",
		amountIn,
		big.NewInt(0),
		[]common.Address{tokenIn, tokenOut},
		fromProxy,
		deadline)
	if err != nil {
		return hashes, fmt.Errorf("pack swap: %w", err)
	}

	swapCall, err := cc.Proxy.Pack("execute", cc.RouterAddress, big.NewInt(0), swapData)
	if err != nil {
		return hashes, fmt.Errorf("pack proxy execute: %w", err)
	}

	swapHash, err := s.submit(ctx, fromProxy, swapCall)
	if err != nil {
		return hashes, fmt.Errorf("submit swap: %w", err)
	}
	hashes = append(hashes, swapHash.Hex())

	if err := s.waitMined(ctx, swapHash); err != nil {
		return hashes, fmt.Errorf("await swap: %w", err)
	}

	return hashes, nil
}

// submit holds the signer lock from nonce fetch through SendTransaction so
// concurrent sagas on the same network cannot sign with the same nonce.
func (s *Service) submit(ctx context.Context, to common.Address, calldata []byte) (common.Hash, error) {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	nonce, err := s.client.PendingNonceAt(ctx, s.signerAddr)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}

	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest gas price: %w", err)
	}

	gasLimit, err := s.client.EstimateGas(ctx, goethereum.CallMsg{
		From: s.signerAddr,
		To:   &to,
		Data: calldata,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}
	gasLimit = gasLimit * gasMarginPercent / 100

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, calldata)

	signer := types.LatestSignerForChainID(big.NewInt(s.params.ChainID))
	signedTx, err := types.SignTx(tx, signer, s.signerKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}

	if err := s.client.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}

	return signedTx.Hash(), nil
}

// waitMined polls for the receipt, bounded by both the configured wall-clock
// timeout and the poll interval. A timeout is a definite failure, never
// treated as success.
func (s *Service) waitMined(ctx context.Context, hash common.Hash) error {
	deadline := time.NewTimer(s.params.ReceiptTimeout)
	defer deadline.Stop()

	ticker := time.NewTicker(s.params.ReceiptInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.client.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("%w: tx %s", ErrExecutionReverted, hash.Hex())
			}
			return nil
		}
		if !errors.Is(err, goethereum.NotFound) {
			return fmt.Errorf("get receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: tx %s after %s", ErrReceiptTimeout, hash.Hex(), s.params.ReceiptTimeout)
		case <-ticker.C:
		}
	}
}
