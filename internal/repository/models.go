package repository

import "time"

// User is a phone-number-addressed account holder. Users are created lazily:
// on their first wallet request or as the counterpart of an inbound transfer.
type User struct {
	ID          string    `gorm:"primaryKey;autoIncrement:false"`
	PhoneNumber string    `gorm:"type:varchar(32);uniqueIndex;not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

// WalletBinding ties a user to exactly one proxy address per chain. Both
// unique indexes back the resolver's race protection: a second provisioning
// attempt for the same (user, chain) pair fails at the store.
type WalletBinding struct {
	ID           uint      `gorm:"primaryKey"`
	UserID       string    `gorm:"size:64;not null;uniqueIndex:idx_user_chain,priority:1"`
	ChainID      int64     `gorm:"not null;uniqueIndex:idx_user_chain,priority:2;uniqueIndex:idx_chain_addr,priority:1"`
	ProxyAddress string    `gorm:"size:42;not null;uniqueIndex:idx_chain_addr,priority:2"` // 0x + 40 hex
	CreatedAt    time.Time `gorm:"not null"`
}

// OperationLock serializes monetary operations per user. UserKey as primary
// key makes acquisition atomic across server instances: the second insert
// fails with a duplicate-key error.
type OperationLock struct {
	UserKey  string    `gorm:"primaryKey;size:64;autoIncrement:false"`
	Kind     string    `gorm:"size:16;not null"`
	OpenedAt time.Time `gorm:"not null"`
}

// TransactionRecord is one persisted leg of a completed operation. Amount
// holds the reconciled balance delta in human units, not the requested value.
type TransactionRecord struct {
	ID          string    `gorm:"primaryKey;autoIncrement:false"`
	TxHash      string    `gorm:"size:66;not null;index"` // 0x + 64 hex chars
	WalletFrom  string    `gorm:"size:42;not null;index"`
	WalletTo    string    `gorm:"size:42;not null;index"`
	Amount      string    `gorm:"size:100;not null"`
	TokenSymbol string    `gorm:"size:16;not null"`
	ChainID     int64     `gorm:"not null"`
	Type        string    `gorm:"size:16;not null"` // transfer or swap
	Status      string    `gorm:"size:16;not null"` // pending, completed or failed
	CreatedAt   time.Time `gorm:"not null"`
}

type Network struct {
	ChainID          int64  `gorm:"primaryKey;autoIncrement:false"`
	Name             string `gorm:"type:varchar(64);uniqueIndex;not null"`
	RPCURL           string `gorm:"type:text;not null"`
	NativeSymbol     string `gorm:"size:16;not null"`
	Explorer         string `gorm:"type:text"`
	Logo             string `gorm:"type:text"`
	RouterAddress    string `gorm:"size:42"`
	PaymasterAddress string `gorm:"size:42"`
	FactoryAddress   string `gorm:"size:42;not null"`
}

type Token struct {
	ID       uint   `gorm:"primaryKey"`
	ChainID  int64  `gorm:"not null;uniqueIndex:idx_chain_symbol,priority:1"`
	Symbol   string `gorm:"size:16;not null;uniqueIndex:idx_chain_symbol,priority:2"`
	Address  string `gorm:"size:42;not null"`
	Decimals uint8  `gorm:"not null"`
}

// ServiceAccount is a chat-surface backend allowed to call the API.
type ServiceAccount struct {
	ID           string `gorm:"primaryKey;autoIncrement:false"`
	Username     string `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
}
