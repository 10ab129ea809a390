package payload

import (
	"errors"
	"strings"

	"chatpay/internal/core"

	"github.com/jellydator/validation"
)

var errSameCurrency = errors.New("input and output currencies must differ")

type SwapRequest struct {
	ChannelUserID  string `json:"channel_user_id"`
	UserWallet     string `json:"user_wallet"`
	InputCurrency  string `json:"inputCurrency"`
	OutputCurrency string `json:"outputCurrency"`
	Amount         string `json:"amount"`
	ChainID        int64  `json:"chain_id"`
}

func (s SwapRequest) Validate() error {
	err := validation.ValidateStruct(&s,
		validation.Field(&s.ChannelUserID, validation.Required, validation.Match(phoneRegex)),
		validation.Field(&s.UserWallet, validation.Match(addressRegex)),
		validation.Field(&s.InputCurrency, validation.Required),
		validation.Field(&s.OutputCurrency, validation.Required),
		validation.Field(&s.Amount, validation.Required, validation.Match(amountRegex), validation.By(checkPositiveAmount)),
		validation.Field(&s.ChainID, validation.Min(int64(0))),
	)
	if err != nil {
		return err
	}

	if strings.EqualFold(s.InputCurrency, s.OutputCurrency) {
		return errSameCurrency
	}
	return nil
}

func (s SwapRequest) ToMessage(defaultChainID int64) core.SwapMessage {
	chainID := s.ChainID
	if chainID == 0 {
		chainID = defaultChainID
	}
	return core.SwapMessage{
		UserKey:      s.ChannelUserID,
		InputSymbol:  s.InputCurrency,
		OutputSymbol: s.OutputCurrency,
		Amount:       s.Amount,
		ChainID:      chainID,
	}
}
