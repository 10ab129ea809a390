package core

import (
	"context"
	"math/big"

	"chatpay/internal/chain"
	"chatpay/internal/notify"
	"chatpay/internal/repository"
	tokenIssuer "chatpay/pkg/jwt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt"
)

type Repository interface {
	GetUserByPhone(ctx context.Context, phoneNumber string) (repository.User, error)
	CreateUser(ctx context.Context, user repository.User) error
	GetUserByWallet(ctx context.Context, chainID int64, proxyAddress string) (repository.User, error)
	GetWalletBinding(ctx context.Context, userID string, chainID int64) (repository.WalletBinding, error)
	SaveWalletBinding(ctx context.Context, binding repository.WalletBinding) error
	SaveTransactionRecords(ctx context.Context, records []repository.TransactionRecord) error
	GetTransactionsByWallet(ctx context.Context, wallet string) ([]repository.TransactionRecord, error)
	GetServiceAccount(ctx context.Context, username string) (repository.ServiceAccount, error)
}

// ChainService is one network's RPC-backed read and execution surface.
type ChainService interface {
	ChainID() int64
	TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error)
	NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error)
	CheckConditions(ctx context.Context) (chain.ContractsContext, error)
	ExecuteTransfer(ctx context.Context, cc chain.ContractsContext, fromProxy, to, token common.Address, amount *big.Int) (string, error)
	ExecuteSwap(ctx context.Context, cc chain.ContractsContext, fromProxy, tokenIn, tokenOut common.Address, amountIn *big.Int) ([]string, error)
}

type ChainProvider interface {
	ForChain(chainID int64) (ChainService, error)
}

type Notifier interface {
	Notify(ctx context.Context, userKey string, kind notify.MessageKind, data map[string]any)
}

type PriceSource interface {
	TokenPrice(networkName string, token common.Address) (float64, bool)
}

type JWTIssuer interface {
	Generate(data tokenIssuer.TokenInfo) *jwt.Token
	Sign(token *jwt.Token) (string, error)
	Validate(token string) (jwt.MapClaims, error)
}
