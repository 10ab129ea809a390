package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const erc20ABIJSON = `[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// The proxy wallet exposes a single relayer-gated entrypoint that forwards an
// arbitrary call on behalf of the user.
const proxyABIJSON = `[
	{"name":"execute","type":"function","stateMutability":"nonpayable","inputs":[{"name":"dest","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"}],"outputs":[]}
]`

const routerABIJSON = `[
	{"name":"swapExactTokensForTokens","type":"function","stateMutability":"nonpayable","inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]}
]`

func parseContractABIs() (erc20, proxy, router abi.ABI, err error) {
	erc20, err = abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return erc20, proxy, router, fmt.Errorf("parse erc20 abi: %w", err)
	}

	proxy, err = abi.JSON(strings.NewReader(proxyABIJSON))
	if err != nil {
		return erc20, proxy, router, fmt.Errorf("parse proxy abi: %w", err)
	}

	router, err = abi.JSON(strings.NewReader(routerABIJSON))
	if err != nil {
		return erc20, proxy, router, fmt.Errorf("parse router abi: %w", err)
	}

	return erc20, proxy, router, nil
}
