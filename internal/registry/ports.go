package registry

import (
	"context"

	"chatpay/internal/repository"
)

type Store interface {
	GetNetworks(ctx context.Context) ([]repository.Network, error)
	GetTokens(ctx context.Context) ([]repository.Token, error)
}
