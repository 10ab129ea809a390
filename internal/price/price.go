package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const requestTimeout = 10 * time.Second

// Service caches current USD token prices from the DeFi Llama coins API,
// refreshed on an interval so balance listings never block on the upstream.
type Service struct {
	logs     *zap.SugaredLogger
	client   *http.Client
	baseURL  string
	registry Registry

	mu     sync.RWMutex
	prices map[string]float64 // keyed by "network:0xaddress", lower-case
}

func NewService(logger *zap.SugaredLogger, client *http.Client, baseURL string, registry Registry) *Service {
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	return &Service{
		logs:     logger,
		client:   client,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		registry: registry,
		prices:   make(map[string]float64),
	}
}

type pricesResponse struct {
	Coins map[string]struct {
		Price float64 `json:"price"`
	} `json:"coins"`
}

// Refresh fetches current prices for every token the registry knows about.
func (s *Service) Refresh(ctx context.Context) error {
	keys := make([]string, 0)
	for _, network := range s.registry.Networks() {
		for _, token := range network.Tokens {
			keys = append(keys, fmt.Sprintf("%s:%s", network.Name, strings.ToLower(token.Address.Hex())))
		}
		// the chain's gas token is priced under the zero address
		keys = append(keys, fmt.Sprintf("%s:%s", network.Name, strings.ToLower((common.Address{}).Hex())))
	}
	if len(keys) == 0 {
		return nil
	}

	url := fmt.Sprintf("%s/prices/current/%s", s.baseURL, strings.Join(keys, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build price request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("price api returned status %d", resp.StatusCode)
	}

	var decoded pricesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode price response: %w", err)
	}

	prices := make(map[string]float64, len(decoded.Coins))
	for key, coin := range decoded.Coins {
		prices[strings.ToLower(key)] = coin.Price
	}

	s.mu.Lock()
	s.prices = prices
	s.mu.Unlock()

	s.logs.Infow("token prices refreshed", "count", len(prices))
	return nil
}

// Start runs the interval refresh loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			if err := s.Refresh(ctx); err != nil {
				s.logs.Errorw("price refresh failed", "error", err)
			}
		}
	}()
}

// TokenPrice returns the cached USD price for a token, or ok=false when the
// upstream has not reported one. Missing prices degrade the estimated total,
// never the balance listing itself.
func (s *Service) TokenPrice(networkName string, token common.Address) (float64, bool) {
	key := fmt.Sprintf("%s:%s", networkName, strings.ToLower(token.Hex()))

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.prices[key]
	return value, ok
}
