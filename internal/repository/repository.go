package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatpay/internal/db"

	"github.com/google/uuid"
)

var ErrUserNotFound error = errors.New("user not found")
var ErrAccountNotFound error = errors.New("service account not found")
var ErrLockHeld error = errors.New("operation lock already held")
var ErrBindingExists error = errors.New("wallet binding already exists")

type WalletRepository struct {
	db Storage
}

func NewWalletRepository(db Storage) *WalletRepository {
	return &WalletRepository{
		db: db,
	}
}

func (r *WalletRepository) MigrateAndSeed(ctx context.Context) error {

	err := r.db.MigrateTable(
		&User{},
		&WalletBinding{},
		&OperationLock{},
		&TransactionRecord{},
		&Network{},
		&Token{},
		&ServiceAccount{})
	if err != nil {
		return fmt.Errorf("migrate table(s): %w", err)
	}

	accounts := []ServiceAccount{
		{
			ID:           uuid.NewString(),
			Username:     "whatsapp-bot",
			PasswordHash: "$2a$10$7PrikY/17DYiRAA6JlaGl.yo26gwhTT53ESuovxGWvWJ4HhvGI/GK",
		},
		{
			ID:           uuid.NewString(),
			Username:     "ops-console",
			PasswordHash: "$2a$10$SHWr22XIYjY3/nLI6QOSJezr5KAB2AUs740F8NahmhBNsPsKacL8u",
		},
	}
	if err = r.db.SeedTable(ctx, &accounts); err != nil {
		return fmt.Errorf("seed service accounts: %w", err)
	}

	networks := []Network{
		{
			ChainID:          137,
			Name:             "polygon",
			RPCURL:           "https://polygon-rpc.com",
			NativeSymbol:     "POL",
			Explorer:         "https://polygonscan.com",
			Logo:             "https://cryptologos.cc/logos/polygon-matic-logo.png",
			RouterAddress:    "0xa5E0829CaCEd8fFDD4De3c43696c57F7D7A678ff",
			PaymasterAddress: "0x078D7d85B6e0748a0F9E9A385a48a8981Da34934",
			FactoryAddress:   "0x2f83eE3eA4fEB545E49bd52E50BD68F33b8cD44b",
		},
	}
	if err = r.db.SeedTable(ctx, &networks); err != nil {
		return fmt.Errorf("seed networks: %w", err)
	}

	tokens := []Token{
		{ChainID: 137, Symbol: "WETH", Address: "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619", Decimals: 18},
		{ChainID: 137, Symbol: "USDC", Address: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", Decimals: 6},
		{ChainID: 137, Symbol: "USDT", Address: "0xc2132D05D31c914a87C6611C10748AEb04B58e8F", Decimals: 6},
	}
	if err = r.db.SeedTable(ctx, &tokens); err != nil {
		return fmt.Errorf("seed tokens: %w", err)
	}

	return nil
}

func (r *WalletRepository) GetUserByPhone(ctx context.Context, phoneNumber string) (User, error) {
	var user User

	err := r.db.GetOneBy(ctx, "phone_number", phoneNumber, &user)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("get user by phone number: %w", err)
	}

	return user, nil
}

// CreateUser inserts a new user. A concurrent insert for the same phone number
// surfaces as db.ErrDuplicate; callers re-fetch instead of failing.
func (r *WalletRepository) CreateUser(ctx context.Context, user User) error {
	err := r.db.Insert(ctx, &user)
	if err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return db.ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *WalletRepository) GetUserByWallet(ctx context.Context, chainID int64, proxyAddress string) (User, error) {
	var binding WalletBinding

	err := r.db.GetOneWhere(ctx, &binding, "chain_id = ? AND proxy_address = ?", chainID, proxyAddress)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("get wallet binding: %w", err)
	}

	var user User
	if err = r.db.GetOneBy(ctx, "id", binding.UserID, &user); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("get user by id: %w", err)
	}

	return user, nil
}

func (r *WalletRepository) GetWalletBinding(ctx context.Context, userID string, chainID int64) (WalletBinding, error) {
	var binding WalletBinding

	err := r.db.GetOneWhere(ctx, &binding, "user_id = ? AND chain_id = ?", userID, chainID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return WalletBinding{}, db.ErrNotFound
		}
		return WalletBinding{}, fmt.Errorf("get wallet binding: %w", err)
	}

	return binding, nil
}

func (r *WalletRepository) SaveWalletBinding(ctx context.Context, binding WalletBinding) error {
	err := r.db.Insert(ctx, &binding)
	if err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return ErrBindingExists
		}
		return fmt.Errorf("save wallet binding: %w", err)
	}
	return nil
}

// CreateOperationLock opens the per-user lock. The user_key primary key makes
// this atomic with respect to concurrent callers.
func (r *WalletRepository) CreateOperationLock(ctx context.Context, userKey, kind string) error {
	lock := OperationLock{
		UserKey:  userKey,
		Kind:     kind,
		OpenedAt: time.Now().UTC(),
	}

	err := r.db.Insert(ctx, &lock)
	if err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return ErrLockHeld
		}
		return fmt.Errorf("create operation lock: %w", err)
	}
	return nil
}

// DeleteOperationLock removes the lock. Removing a non-existent lock is a no-op.
func (r *WalletRepository) DeleteOperationLock(ctx context.Context, userKey string) error {
	err := r.db.DeleteWhere(ctx, &OperationLock{}, "user_key = ?", userKey)
	if err != nil {
		return fmt.Errorf("delete operation lock: %w", err)
	}
	return nil
}

func (r *WalletRepository) SaveTransactionRecords(ctx context.Context, records []TransactionRecord) error {
	if len(records) == 0 {
		return nil
	}

	err := r.db.SaveToTable(ctx, &records)
	if err != nil {
		return fmt.Errorf("save transaction records: %w", err)
	}
	return nil
}

func (r *WalletRepository) GetTransactionsByWallet(ctx context.Context, wallet string) ([]TransactionRecord, error) {
	records := []TransactionRecord{}

	err := r.db.GetAllWhere(ctx, &records, "wallet_from = ? OR wallet_to = ?", wallet, wallet)
	if err != nil {
		return nil, fmt.Errorf("get transactions by wallet: %w", err)
	}

	return records, nil
}

func (r *WalletRepository) UpdateTransactionStatus(ctx context.Context, txHash, status string) error {
	err := r.db.UpdateWhere(ctx, &TransactionRecord{}, map[string]any{"status": status}, "tx_hash = ?", txHash)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	return nil
}

func (r *WalletRepository) GetServiceAccount(ctx context.Context, username string) (ServiceAccount, error) {
	var account ServiceAccount

	err := r.db.GetOneBy(ctx, "username", username, &account)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ServiceAccount{}, ErrAccountNotFound
		}
		return ServiceAccount{}, fmt.Errorf("get service account: %w", err)
	}

	return account, nil
}

func (r *WalletRepository) GetNetworks(ctx context.Context) ([]Network, error) {
	networks := []Network{}
	if err := r.db.GetAll(ctx, &networks); err != nil {
		return nil, fmt.Errorf("get networks: %w", err)
	}
	return networks, nil
}

func (r *WalletRepository) GetTokens(ctx context.Context) ([]Token, error) {
	tokens := []Token{}
	if err := r.db.GetAll(ctx, &tokens); err != nil {
		return nil, fmt.Errorf("get tokens: %w", err)
	}
	return tokens, nil
}
