package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatpay/internal/lock"
	"chatpay/internal/notify"
	"chatpay/internal/registry"
	"chatpay/internal/repository"
	"chatpay/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var ErrUnknownNetwork error = errors.New("unsupported network")
var ErrUnknownToken error = errors.New("unknown token for network")
var ErrSelfTransfer error = errors.New("sender and recipient are the same user")
var ErrUnknownRecipient error = errors.New("recipient address is not registered")
var ErrInvalidAddress error = errors.New("invalid wallet address")

const (
	ackTransferInProgress  = "Transfer in progress! We'll message you as soon as it completes."
	ackSwapInProgress      = "Swap in progress! We'll message you as soon as it completes."
	ackOperationInProgress = "You already have an operation in progress. Please wait for it to finish before starting another one."
)

// sagaTimeout bounds the detached part of a saga as a whole; individual
// receipt waits carry their own tighter deadlines.
const sagaTimeout = 15 * time.Minute

// Orchestrator runs the transfer and swap sagas: validate, lock, ack, check
// balance and chain health, resolve the recipient, execute, reconcile,
// notify, release. Every post-ack outcome reaches the user only through the
// notifier.
type Orchestrator struct {
	logs     *zap.SugaredLogger
	repo     Repository
	locks    *lock.Manager
	chains   ChainProvider
	wallets  *wallet.Provisioner
	notifier Notifier
	registry *registry.Service
	prices   PriceSource
	jwt      JWTIssuer
}

func NewOrchestrator(
	logger *zap.SugaredLogger,
	repo Repository,
	locks *lock.Manager,
	chains ChainProvider,
	wallets *wallet.Provisioner,
	notifier Notifier,
	reg *registry.Service,
	prices PriceSource,
	jwtIssuer JWTIssuer,
) *Orchestrator {
	return &Orchestrator{
		logs:     logger,
		repo:     repo,
		locks:    locks,
		chains:   chains,
		wallets:  wallets,
		notifier: notifier,
		registry: reg,
		prices:   prices,
		jwt:      jwtIssuer,
	}
}

// SubmitTransfer validates the request, claims the per-user lock and, when
// successful, kicks off the detached transfer saga. The returned Ack is the
// only synchronous answer the caller gets.
func (o *Orchestrator) SubmitTransfer(ctx context.Context, msg TransferMessage) (Ack, error) {
	network, ok := o.registry.Network(msg.ChainID)
	if !ok {
		return Ack{}, fmt.Errorf("%w: chain %d", ErrUnknownNetwork, msg.ChainID)
	}

	token, ok := o.registry.Token(msg.ChainID, msg.TokenSymbol)
	if !ok {
		return Ack{}, fmt.Errorf("%w: %s on chain %d", ErrUnknownToken, msg.TokenSymbol, msg.ChainID)
	}

	userKey := normalizePhone(msg.UserKey)
	if isAddressDestination(msg.To) {
		// Derivation is pure, so the sender's own proxy is known before
		// any wallet is provisioned.
		if common.HexToAddress(msg.To) == o.wallets.DeriveProxyAddress(userKey, msg.ChainID, network.Factory) {
			return Ack{}, ErrSelfTransfer
		}
	} else if normalizePhone(msg.To) == userKey {
		return Ack{}, ErrSelfTransfer
	}

	guard, acquired, err := o.locks.TryAcquire(ctx, userKey, lock.KindTransfer)
	if err != nil {
		return Ack{}, fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		// Deliberately success-shaped: the chat surface renders this
		// message to the end user.
		return Ack{Message: ackOperationInProgress, InProgress: true}, nil
	}

	msg.UserKey = userKey

	go o.runTransfer(context.WithoutCancel(ctx), guard, msg, network, token)

	return Ack{Message: ackTransferInProgress}, nil
}

// SubmitSwap mirrors SubmitTransfer for token swaps. Transfers and swaps
// share one exclusion domain per user.
func (o *Orchestrator) SubmitSwap(ctx context.Context, msg SwapMessage) (Ack, error) {
	network, ok := o.registry.Network(msg.ChainID)
	if !ok {
		return Ack{}, fmt.Errorf("%w: chain %d", ErrUnknownNetwork, msg.ChainID)
	}

	tokenIn, ok := o.registry.Token(msg.ChainID, msg.InputSymbol)
	if !ok {
		return Ack{}, fmt.Errorf("%w: %s on chain %d", ErrUnknownToken, msg.InputSymbol, msg.ChainID)
	}

	tokenOut, ok := o.registry.Token(msg.ChainID, msg.OutputSymbol)
	if !ok {
		return Ack{}, fmt.Errorf("%w: %s on chain %d", ErrUnknownToken, msg.OutputSymbol, msg.ChainID)
	}

	userKey := normalizePhone(msg.UserKey)

	guard, acquired, err := o.locks.TryAcquire(ctx, userKey, lock.KindSwap)
	if err != nil {
		return Ack{}, fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		return Ack{Message: ackOperationInProgress, InProgress: true}, nil
	}

	msg.UserKey = userKey

	go o.runSwap(context.WithoutCancel(ctx), guard, msg, network, tokenIn, tokenOut)

	return Ack{Message: ackSwapInProgress}, nil
}

// runTransfer is the detached part of the transfer saga. The lock is released
// on every exit path, including panics escaping a step.
func (o *Orchestrator) runTransfer(ctx context.Context, guard *lock.Guard, msg TransferMessage, network registry.NetworkInfo, token registry.TokenInfo) {
	defer guard.Release()
	defer func() {
		if r := recover(); r != nil {
			o.logs.Errorw("transfer saga panicked", "panic", r, "user_key", msg.UserKey)
			o.notifier.Notify(ctx, msg.UserKey, notify.KindInternalError, nil)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, sagaTimeout)
	defer cancel()

	senderProxy, _, err := o.ensureUserWallet(ctx, msg.UserKey, network)
	if err != nil {
		o.logs.Errorw("failed to resolve sender wallet", "error", err, "user_key", msg.UserKey)
		o.notifier.Notify(ctx, msg.UserKey, notify.KindInternalError, nil)
		return
	}

	chainSvc, err := o.chains.ForChain(msg.ChainID)
	if err != nil {
		o.logs.Errorw("no chain service", "error", err, "chain_id", msg.ChainID)
		o.notifier.Notify(ctx, msg.UserKey, notify.KindInternalError, nil)
		return
	}

	check, err := o.checkBalance(ctx, chainSvc, token, senderProxy, msg.Amount)
	if err != nil {
		o.logs.Errorw("balance check failed", "error", err, "user_key", msg.UserKey)
		o.notifier.Notify(ctx, msg.UserKey, notify.KindChainUnavailable, nil)
		return
	}
	if !check.Enough {
		o.logs.Infow("insufficient balance",
			"user_key", msg.UserKey,
			"token", token.Symbol,
			"required", check.Required.String(),
			"available", check.Available.String())
		o.notifier.Notify(ctx, msg.UserKey, notify.KindInsufficientBalance, map[string]any{
			"token":     token.Symbol,
			"requested": msg.Amount,
		})
		return
	}

	cc, err := chainSvc.CheckConditions(ctx)
	if err != nil {
		o.logs.Errorw("blockchain conditions not met", "error", err, "chain_id", msg.ChainID)
		o.notifier.Notify(ctx, msg.UserKey, notify.KindChainUnavailable, nil)
		return
	}

	recipientAddr, recipient, err := o.resolveRecipient(ctx, msg.To, network)
	if err != nil {
		if errors.Is(err, ErrUnknownRecipient) {
			// Conservative: lookup details stay internal, the user sees
			// the generic try-later class.
			o.logs.Infow("recipient not attributable", "to", msg.To, "chain_id", msg.ChainID)
			o.notifier.Notify(ctx, msg.UserKey, notify.KindChainUnavailable, nil)
			return
		}
		o.logs.Errorw("recipient resolution failed", "error", err, "to", msg.To)
		o.notifier.Notify(ctx, msg.UserKey, notify.KindInternalError, nil)
		return
	}

	// "before" reads precede submission; check.Available is the sender's.
	beforeOut := check.Available
	beforeIn, err := chainSvc.TokenBalance(ctx, token.Address, recipientAddr)
	if err != nil {
		o.logs.Errorw("recipient balance read failed", "error", err)
		o.notifier.Notify(ctx, msg.UserKey, notify.KindChainUnavailable, nil)
		return
	}

	txHash, err := chainSvc.ExecuteTransfer(ctx, cc, senderProxy, recipientAddr, token.Address, check.Required)
	if err != nil {
		o.logs.Errorw("transfer execution failed", "error", err, "tx_hash", txHash, "user_key", msg.UserKey)
		o.notifier.Notify(ctx, msg.UserKey, notify.KindInternalError, nil)
		return
	}

	legs := o.reconcileTransfer(ctx, chainSvc, token, senderProxy, recipientAddr, beforeOut, beforeIn, txHash)
	o.recordLegs(ctx, msg.ChainID, legs)

	amountMoved := msg.Amount
	if len(legs) > 0 {
		amountMoved = legs[0].Amount
	}

	o.notifier.Notify(ctx, msg.UserKey, notify.KindTransferSent, map[string]any{
		"amount":  amountMoved,
		"token":   token.Symbol,
		"to":      recipientAddr.Hex(),
		"tx_hash": txHash,
	})
	if recipient != nil {
		o.notifier.Notify(ctx, recipient.PhoneNumber, notify.KindTransferReceived, map[string]any{
			"amount":  amountMoved,
			"token":   token.Symbol,
			"tx_hash": txHash,
		})
	}

	o.logs.Infow("transfer completed",
		"user_key", msg.UserKey,
		"token", token.Symbol,
		"amount", amountMoved,
		"tx_hash", txHash)
}

// runSwap is the detached part of the swap saga. Only the input leg gates
// acceptance; the output amount is whatever the pool returns and is
// reconciled, not promised.
func (o *Orchestrator) runSwap(ctx context.Context, guard *lock.Guard, msg SwapMessage, network registry.NetworkInfo, tokenIn, tokenOut registry.TokenInfo) {
	defer guard.Release()
	defer func() {
		if r := recover(); r != nil {
			o.logs.Errorw("swap saga panicked", "panic", r, "user_key", msg.UserKey)
			o.notifier.Notify(ctx, msg.UserKey, notify.KindInternalError, nil)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, sagaTimeout)
	defer cancel()

	proxy, _, err := o.ensureUserWallet(ctx, msg.UserKey, network)
	if err != nil {
		o.logs.Errorw("failed to resolve user wallet", "error", err, "user_key", msg.UserKey)
		o.notifier.Notify(ctx, msg.UserKey, notify.KindInternalError, nil)
		return
	}

	chainSvc, err := o.chains.ForChain(msg.ChainID)
	if err != nil {
		o.logs.Errorw("no chain service", "error", err, "chain_id", msg.ChainID)
		o.notifier.Notify(ctx, msg.UserKey, notify.KindInternalError, nil)
		return
	}

	check, err := o.checkBalance(ctx, chainSvc, tokenIn, proxy, msg.Amount)
	if err != nil {
		o.logs.Errorw("balance check failed", "error", err, "user_key", msg.UserKey)
		o.notifier.Notify(ctx, msg.UserKey, notify.KindChainUnavailable, nil)
		return
	}
	if !check.Enough {
		o.notifier.Notify(ctx, msg.UserKey, notify.KindInsufficientBalance, map[string]any{
			"token":     tokenIn.Symbol,
			"requested": msg.Amount,
		})
		return
	}

	cc, err := chainSvc.CheckConditions(ctx)
	if err != nil {
		o.logs.Errorw("blockchain conditions not met", "error", err, "chain_id", msg.ChainID)
		o.notifier.Notify(ctx, msg.UserKey, notify.KindChainUnavailable, nil)
		return
	}

	beforeIn := check.Available
	beforeOut, err := chainSvc.TokenBalance(ctx, tokenOut.Address, proxy)
	if err != nil {
		o.logs.Errorw("output token balance read failed", "error", err)
		o.notifier.Notify(ctx, msg.UserKey, notify.KindChainUnavailable, nil)
		return
	}

	hashes, err := chainSvc.ExecuteSwap(ctx, cc, proxy, tokenIn.Address, tokenOut.Address, check.Required)
	if err != nil {
		o.logs.Errorw("swap execution failed", "error", err, "tx_hashes", hashes, "user_key", msg.UserKey)
		o.notifier.Notify(ctx, msg.UserKey, notify.KindInternalError, nil)
		return
	}

	swapHash := hashes[len(hashes)-1]
	legs := o.reconcileSwap(ctx, chainSvc, cc, tokenIn, tokenOut, proxy, beforeIn, beforeOut, swapHash)
	o.recordLegs(ctx, msg.ChainID, legs)

	data := map[string]any{
		"input_token":  tokenIn.Symbol,
		"output_token": tokenOut.Symbol,
		"tx_hash":      swapHash,
	}
	if len(legs) == 2 {
		data["amount_in"] = legs[0].Amount
		data["amount_out"] = legs[1].Amount
	}
	o.notifier.Notify(ctx, msg.UserKey, notify.KindSwapCompleted, data)

	o.logs.Infow("swap completed",
		"user_key", msg.UserKey,
		"input_token", tokenIn.Symbol,
		"output_token", tokenOut.Symbol,
		"tx_hashes", hashes)
}

// GetWalletTransactions lists persisted records touching the given wallet.
func (o *Orchestrator) GetWalletTransactions(ctx context.Context, walletAddr string) ([]repository.TransactionRecord, error) {
	if !common.IsHexAddress(walletAddr) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, walletAddr)
	}

	records, err := o.repo.GetTransactionsByWallet(ctx, common.HexToAddress(walletAddr).Hex())
	if err != nil {
		return nil, fmt.Errorf("get transactions by wallet: %w", err)
	}
	return records, nil
}
