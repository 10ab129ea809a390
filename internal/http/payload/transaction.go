package payload

import (
	"errors"
	"regexp"
	"strings"

	"chatpay/internal/core"

	"github.com/jellydator/validation"
)

var phoneRegex = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{5,19}$`)
var amountRegex = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
var addressRegex = regexp.MustCompile(`^0[xX][0-9a-fA-F]{40}$`)

var errZeroAmount = errors.New("amount must be greater than zero")
var errBadDestination = errors.New("must be a wallet address or a phone number")

type TransactionRequest struct {
	ChannelUserID string `json:"channel_user_id"`
	To            string `json:"to"`
	Token         string `json:"token"`
	Amount        string `json:"amount"`
	ChainID       int64  `json:"chain_id"`
}

func (t TransactionRequest) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.ChannelUserID, validation.Required, validation.Match(phoneRegex)),
		validation.Field(&t.To, validation.Required, validation.By(checkDestination)),
		validation.Field(&t.Token, validation.Required),
		validation.Field(&t.Amount, validation.Required, validation.Match(amountRegex), validation.By(checkPositiveAmount)),
		validation.Field(&t.ChainID, validation.Min(int64(0))),
	)
}

func (t TransactionRequest) ToMessage(defaultChainID int64) core.TransferMessage {
	chainID := t.ChainID
	if chainID == 0 {
		chainID = defaultChainID
	}
	return core.TransferMessage{
		UserKey:     t.ChannelUserID,
		To:          t.To,
		TokenSymbol: t.Token,
		Amount:      t.Amount,
		ChainID:     chainID,
	}
}

func checkPositiveAmount(value any) error {
	amount, _ := value.(string)
	for _, r := range amount {
		if r >= '1' && r <= '9' {
			return nil
		}
	}
	return errZeroAmount
}

func checkDestination(value any) error {
	to, _ := value.(string)
	if strings.HasPrefix(to, "0x") || strings.HasPrefix(to, "0X") {
		if !addressRegex.MatchString(to) {
			return errBadDestination
		}
		return nil
	}
	if !phoneRegex.MatchString(to) {
		return errBadDestination
	}
	return nil
}
