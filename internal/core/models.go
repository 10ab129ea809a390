package core

import "math/big"

// TransferMessage is a validated request to move token value from the
// sender's proxy wallet to a recipient addressed by wallet or phone number.
type TransferMessage struct {
	UserKey     string // channel_user_id: the sender's phone number
	To          string // 0x wallet address or phone number
	TokenSymbol string
	Amount      string // human units, decimal string
	ChainID     int64
}

// SwapMessage is a validated request to swap one token for another inside
// the sender's own proxy wallet.
type SwapMessage struct {
	UserKey      string
	InputSymbol  string
	OutputSymbol string
	Amount       string // human units of the input token
	ChainID      int64
}

// Ack is the synchronous response to a monetary request. The final outcome
// always arrives out-of-band through the notifier.
type Ack struct {
	Message    string `json:"message"`
	InProgress bool   `json:"-"`
}

// BalanceCheck is the transient result of the balance precondition. Consumed
// once, never persisted.
type BalanceCheck struct {
	Enough    bool
	Required  *big.Int
	Available *big.Int
}

type AuthMessage struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenBalanceEntry is one token row in a balance listing.
type TokenBalanceEntry struct {
	Symbol  string  `json:"symbol"`
	Balance string  `json:"balance"`
	Price   float64 `json:"price"`
	Value   float64 `json:"value"`
}

// AddressBalance is the balance listing for one address on one network.
type AddressBalance struct {
	Network             string              `json:"network"`
	ChainID             int64               `json:"chainId"`
	Address             string              `json:"address"`
	Tokens              []TokenBalanceEntry `json:"balances"`
	EstimatedTotalValue float64             `json:"estimatedTotalValue"`
}
