package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"chatpay/internal/chain"
	"chatpay/internal/registry"

	"github.com/ethereum/go-ethereum/common"
)

// ListBalances reads every known token balance for an address on one network
// or on all of them. Token reads fan out concurrently per network; a single
// failing token fails the listing for that network.
func (o *Orchestrator) ListBalances(ctx context.Context, address, networkName string) ([]AddressBalance, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, address)
	}
	holder := common.HexToAddress(address)

	var networks []registry.NetworkInfo
	if networkName == "" || networkName == "all" {
		networks = o.registry.Networks()
	} else {
		for _, n := range o.registry.Networks() {
			if strings.EqualFold(n.Name, networkName) {
				networks = append(networks, n)
				break
			}
		}
		if len(networks) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, networkName)
		}
	}

	results := make([]AddressBalance, 0, len(networks))
	for _, network := range networks {
		listing, err := o.listNetworkBalances(ctx, network, holder)
		if err != nil {
			return nil, fmt.Errorf("list balances on %s: %w", network.Name, err)
		}
		results = append(results, listing)
	}

	return results, nil
}

type tokenBalanceResult struct {
	entry TokenBalanceEntry
	err   error
}

func (o *Orchestrator) listNetworkBalances(ctx context.Context, network registry.NetworkInfo, holder common.Address) (AddressBalance, error) {
	chainSvc, err := o.chains.ForChain(network.ChainID)
	if err != nil {
		return AddressBalance{}, fmt.Errorf("no chain service: %w", err)
	}

	resultsChan := make(chan tokenBalanceResult)

	var wg sync.WaitGroup
	for _, token := range network.Tokens {
		wg.Add(1)
		go func(token registry.TokenInfo) {
			defer wg.Done()

			raw, err := chainSvc.TokenBalance(ctx, token.Address, holder)
			if err != nil {
				resultsChan <- tokenBalanceResult{err: fmt.Errorf("balance of %s: %w", token.Symbol, err)}
				return
			}

			balance := chain.FromBaseUnits(raw, token.Decimals)
			priceUSD, _ := o.prices.TokenPrice(network.Name, token.Address)

			resultsChan <- tokenBalanceResult{entry: TokenBalanceEntry{
				Symbol:  token.Symbol,
				Balance: balance,
				Price:   priceUSD,
				Value:   balanceValue(balance, priceUSD),
			}}
		}(token)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	var entries []TokenBalanceEntry
	var aggrErr error
	for result := range resultsChan {
		if result.err != nil {
			aggrErr = errors.Join(aggrErr, result.err)
			continue
		}
		entries = append(entries, result.entry)
	}
	if aggrErr != nil {
		return AddressBalance{}, aggrErr
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Symbol < entries[j].Symbol })

	nativeRaw, err := chainSvc.NativeBalance(ctx, holder)
	if err != nil {
		return AddressBalance{}, fmt.Errorf("native balance: %w", err)
	}
	nativeBalance := chain.FromBaseUnits(nativeRaw, 18)
	// the gas token's price is cached under the zero address
	nativePrice, _ := o.prices.TokenPrice(network.Name, common.Address{})
	entries = append(entries, TokenBalanceEntry{
		Symbol:  network.NativeSymbol,
		Balance: nativeBalance,
		Price:   nativePrice,
		Value:   balanceValue(nativeBalance, nativePrice),
	})

	var total float64
	for _, entry := range entries {
		total += entry.Value
	}

	return AddressBalance{
		Network:             network.Name,
		ChainID:             network.ChainID,
		Address:             holder.Hex(),
		Tokens:              entries,
		EstimatedTotalValue: total,
	}, nil
}

// ListNetworks returns the configured networks with their supported tokens.
func (o *Orchestrator) ListNetworks() []registry.NetworkInfo {
	return o.registry.Networks()
}

// ListPrices returns the cached USD price per token per network.
func (o *Orchestrator) ListPrices(ctx context.Context) map[string]map[string]float64 {
	out := make(map[string]map[string]float64)
	for _, network := range o.registry.Networks() {
		prices := make(map[string]float64, len(network.Tokens))
		for _, token := range network.Tokens {
			priceUSD, _ := o.prices.TokenPrice(network.Name, token.Address)
			prices[token.Symbol] = priceUSD
		}
		out[network.Name] = prices
	}
	return out
}

func balanceValue(balance string, priceUSD float64) float64 {
	parsed, err := strconv.ParseFloat(balance, 64)
	if err != nil {
		return 0
	}
	return parsed * priceUSD
}
