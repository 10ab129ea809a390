package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatpay/internal/db"
	"chatpay/internal/registry"
	"chatpay/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// resolveRecipient maps a destination identifier to a concrete proxy address.
// Address-shaped destinations must belong to a registered user: transfers to
// unattributable addresses are rejected rather than creating address-only
// placeholder users. Phone-shaped destinations are provisioned lazily.
func (o *Orchestrator) resolveRecipient(ctx context.Context, to string, network registry.NetworkInfo) (common.Address, *repository.User, error) {
	if isAddressDestination(to) {
		if !common.IsHexAddress(to) {
			return common.Address{}, nil, fmt.Errorf("%w: %s", ErrInvalidAddress, to)
		}
		addr := common.HexToAddress(to)

		user, err := o.repo.GetUserByWallet(ctx, network.ChainID, addr.Hex())
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return common.Address{}, nil, fmt.Errorf("%w: %s on chain %d", ErrUnknownRecipient, addr.Hex(), network.ChainID)
			}
			return common.Address{}, nil, fmt.Errorf("look up wallet owner: %w", err)
		}
		return addr, &user, nil
	}

	addr, user, err := o.ensureUserWallet(ctx, normalizePhone(to), network)
	if err != nil {
		return common.Address{}, nil, err
	}
	return addr, user, nil
}

// ensureUserWallet returns the proxy address for a phone number on a network,
// creating the user and the wallet binding on first use. Both creations are
// duplicate-safe: a concurrent winner's row is re-fetched instead of failing.
func (o *Orchestrator) ensureUserWallet(ctx context.Context, phoneNumber string, network registry.NetworkInfo) (common.Address, *repository.User, error) {
	user, err := o.repo.GetUserByPhone(ctx, phoneNumber)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			return common.Address{}, nil, fmt.Errorf("get user by phone: %w", err)
		}

		user = repository.User{
			ID:          uuid.NewString(),
			PhoneNumber: phoneNumber,
			CreatedAt:   time.Now().UTC(),
		}
		err = o.repo.CreateUser(ctx, user)
		if err != nil {
			if !errors.Is(err, db.ErrDuplicate) {
				return common.Address{}, nil, fmt.Errorf("create user: %w", err)
			}
			user, err = o.repo.GetUserByPhone(ctx, phoneNumber)
			if err != nil {
				return common.Address{}, nil, fmt.Errorf("refetch user: %w", err)
			}
		}
	}

	binding, err := o.repo.GetWalletBinding(ctx, user.ID, network.ChainID)
	if err == nil {
		return common.HexToAddress(binding.ProxyAddress), &user, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return common.Address{}, nil, fmt.Errorf("get wallet binding: %w", err)
	}

	// Derivation is deterministic per (phone, chain), so a lost race
	// provisions the exact same address.
	proxyAddr := o.wallets.DeriveProxyAddress(phoneNumber, network.ChainID, network.Factory)

	err = o.repo.SaveWalletBinding(ctx, repository.WalletBinding{
		UserID:       user.ID,
		ChainID:      network.ChainID,
		ProxyAddress: proxyAddr.Hex(),
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil && !errors.Is(err, repository.ErrBindingExists) {
		return common.Address{}, nil, fmt.Errorf("save wallet binding: %w", err)
	}

	return proxyAddr, &user, nil
}

// isAddressDestination distinguishes wallet-address destinations from
// phone-number ones.
func isAddressDestination(to string) bool {
	return strings.HasPrefix(to, "0x") || strings.HasPrefix(to, "0X")
}

// normalizePhone reduces a phone-shaped identifier to its digits so the same
// user always maps to the same key regardless of formatting.
func normalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
