package chain

import (
	"fmt"
	"math/big"
	"strings"
)

// ToBaseUnits converts a human-readable decimal amount to on-chain base units
// using the token's declared precision. Excess fractional digits are
// truncated, never rounded up.
func ToBaseUnits(amount string, decimals uint8) (*big.Int, error) {
	rat, ok := new(big.Rat).SetString(amount)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	if rat.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", amount)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rat.Mul(rat, new(big.Rat).SetInt(scale))

	return new(big.Int).Quo(rat.Num(), rat.Denom()), nil
}

// FromBaseUnits renders base units back into a human-readable decimal string.
func FromBaseUnits(amount *big.Int, decimals uint8) string {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rat := new(big.Rat).SetFrac(amount, scale)

	out := rat.FloatString(int(decimals))
	if !strings.Contains(out, ".") {
		return out
	}
	out = strings.TrimRight(out, "0")
	return strings.TrimSuffix(out, ".")
}
