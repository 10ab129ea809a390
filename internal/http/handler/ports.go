package handler

import (
	"context"
	"net/http"

	"chatpay/internal/core"
	"chatpay/internal/registry"
	"chatpay/internal/repository"
)

type RequestValidator interface {
	DecodeAndValidateJSONPayload(req *http.Request, payload any) error
}

type PaymentService interface {
	Authenticate(ctx context.Context, msg core.AuthMessage) (string, error)
	ValidateToken(token string) error
	SubmitTransfer(ctx context.Context, msg core.TransferMessage) (core.Ack, error)
	SubmitSwap(ctx context.Context, msg core.SwapMessage) (core.Ack, error)
	ListBalances(ctx context.Context, address, network string) ([]core.AddressBalance, error)
	ListPrices(ctx context.Context) map[string]map[string]float64
	ListNetworks() []registry.NetworkInfo
	GetWalletTransactions(ctx context.Context, walletAddr string) ([]repository.TransactionRecord, error)
}
