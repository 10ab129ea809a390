package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrSignerUnderfunded error = errors.New("relayer signer account underfunded")
var ErrPaymasterUnderfunded error = errors.New("paymaster account underfunded")

// Minimum native balances the chain-side actors must hold before any
// state-mutating call is attempted.
var (
	MinSignerBalanceWei    = big.NewInt(50_000_000_000_000_000)  // 0.05
	MinPaymasterBalanceWei = big.NewInt(100_000_000_000_000_000) // 0.1
)

// Service wraps one network's RPC client with the balance reads, health
// checks and execution primitives the saga needs.
type Service struct {
	client     EthClient
	signerKey  *ecdsa.PrivateKey
	signerAddr common.Address
	params     NetworkParams
	contracts  ContractsContext

	// submitMu serializes nonce assignment for the shared relayer key; two
	// concurrent submissions reading the same pending nonce would sign
	// conflicting transactions.
	submitMu sync.Mutex
}

func NewService(client EthClient, signerKey *ecdsa.PrivateKey, params NetworkParams) (*Service, error) {
	erc20, proxy, router, err := parseContractABIs()
	if err != nil {
		return nil, err
	}

	return &Service{
		client:     client,
		signerKey:  signerKey,
		signerAddr: crypto.PubkeyToAddress(signerKey.PublicKey),
		params:     params,
		contracts: ContractsContext{
			ERC20:            erc20,
			Proxy:            proxy,
			Router:           router,
			RouterAddress:    params.Router,
			PaymasterAddress: params.Paymaster,
		},
	}, nil
}

func (s *Service) ChainID() int64 {
	return s.params.ChainID
}

// TokenBalance reads the ERC-20 balance of holder. No side effects.
func (s *Service) TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	data, err := s.contracts.ERC20.Pack("balanceOf", holder)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}

	raw, err := s.client.CallContract(ctx, goethereum.CallMsg{
		To:   &token,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}

	values, err := s.contracts.ERC20.Unpack("balanceOf", raw)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf return type %T", values[0])
	}

	return balance, nil
}

func (s *Service) NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	balance, err := s.client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("get native balance: %w", err)
	}
	return balance, nil
}

// CheckConditions verifies the chain-side actors are funded well enough to
// execute: the relayer signer always, the paymaster when configured. On
// success it returns the reusable contracts context.
func (s *Service) CheckConditions(ctx context.Context) (ContractsContext, error) {
	signerBalance, err := s.NativeBalance(ctx, s.signerAddr)
	if err != nil {
		return ContractsContext{}, fmt.Errorf("signer balance: %w", err)
	}
	if signerBalance.Cmp(MinSignerBalanceWei) < 0 {
		return ContractsContext{}, fmt.Errorf("%w: balance %s", ErrSignerUnderfunded, signerBalance)
	}

	if s.params.Paymaster != (common.Address{}) {
		paymasterBalance, err := s.NativeBalance(ctx, s.params.Paymaster)
		if err != nil {
			return ContractsContext{}, fmt.Errorf("paymaster balance: %w", err)
		}
		if paymasterBalance.Cmp(MinPaymasterBalanceWei) < 0 {
			return ContractsContext{}, fmt.Errorf("%w: balance %s", ErrPaymasterUnderfunded, paymasterBalance)
		}
	}

	return s.contracts, nil
}
