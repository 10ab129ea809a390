package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type TokenInfo struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
}

type NetworkInfo struct {
	ChainID      int64
	Name         string
	RPCURL       string
	NativeSymbol string
	Explorer     string
	Logo         string
	Router       common.Address
	Paymaster    common.Address
	Factory      common.Address
	Tokens       map[string]TokenInfo // keyed by upper-case symbol
}

// Service is the owned network/token configuration: loaded from the store,
// cached in memory, refreshed on an interval and on explicit invalidation.
// Consumers receive it injected rather than reading ambient globals.
type Service struct {
	logs  *zap.SugaredLogger
	store Store

	mu       sync.RWMutex
	networks map[int64]NetworkInfo

	invalidate chan struct{}
}

func NewService(logger *zap.SugaredLogger, store Store) *Service {
	return &Service{
		logs:       logger,
		store:      store,
		networks:   make(map[int64]NetworkInfo),
		invalidate: make(chan struct{}, 1),
	}
}

// Refresh reloads the full registry from the store and atomically swaps the
// cached view.
func (s *Service) Refresh(ctx context.Context) error {
	storedNetworks, err := s.store.GetNetworks(ctx)
	if err != nil {
		return fmt.Errorf("load networks: %w", err)
	}

	storedTokens, err := s.store.GetTokens(ctx)
	if err != nil {
		return fmt.Errorf("load tokens: %w", err)
	}

	networks := make(map[int64]NetworkInfo, len(storedNetworks))
	for _, n := range storedNetworks {
		networks[n.ChainID] = NetworkInfo{
			ChainID:      n.ChainID,
			Name:         n.Name,
			RPCURL:       n.RPCURL,
			NativeSymbol: n.NativeSymbol,
			Explorer:     n.Explorer,
			Logo:         n.Logo,
			Router:       common.HexToAddress(n.RouterAddress),
			Paymaster:    common.HexToAddress(n.PaymasterAddress),
			Factory:      common.HexToAddress(n.FactoryAddress),
			Tokens:       make(map[string]TokenInfo),
		}
	}

	for _, t := range storedTokens {
		network, ok := networks[t.ChainID]
		if !ok {
			s.logs.Errorw("token references unknown network", "symbol", t.Symbol, "chain_id", t.ChainID)
			continue
		}
		network.Tokens[strings.ToUpper(t.Symbol)] = TokenInfo{
			Symbol:   t.Symbol,
			Address:  common.HexToAddress(t.Address),
			Decimals: t.Decimals,
		}
	}

	s.mu.Lock()
	s.networks = networks
	s.mu.Unlock()

	s.logs.Infow("registry refreshed", "networks", len(networks), "tokens", len(storedTokens))
	return nil
}

// Start runs the interval refresh loop until ctx is cancelled. Invalidate
// triggers an immediate reload in between ticks.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-s.invalidate:
			}

			if err := s.Refresh(ctx); err != nil {
				s.logs.Errorw("registry refresh failed", "error", err)
			}
		}
	}()
}

// Invalidate schedules an out-of-band refresh, used after network/token writes.
func (s *Service) Invalidate() {
	select {
	case s.invalidate <- struct{}{}:
	default:
	}
}

func (s *Service) Network(chainID int64) (NetworkInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	network, ok := s.networks[chainID]
	return network, ok
}

func (s *Service) Token(chainID int64, symbol string) (TokenInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	network, ok := s.networks[chainID]
	if !ok {
		return TokenInfo{}, false
	}
	token, ok := network.Tokens[strings.ToUpper(symbol)]
	return token, ok
}

func (s *Service) Networks() []NetworkInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	networks := make([]NetworkInfo, 0, len(s.networks))
	for _, n := range s.networks {
		networks = append(networks, n)
	}
	sort.Slice(networks, func(i, j int) bool { return networks[i].ChainID < networks[j].ChainID })
	return networks
}
