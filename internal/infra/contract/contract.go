// Package contract embeds the ABIs of the commune contract and its collateral token.
package contract

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed abi/commune.json
var communeJSON []byte

//go:embed abi/erc20.json
var erc20JSON []byte

var (
	// Commune is the parsed ABI of the commune contract.
	Commune = mustParse("commune", communeJSON)

	// ERC20 is the parsed ABI of the collateral token.
	ERC20 = mustParse("erc20", erc20JSON)
)

func mustParse(name string, data []byte) abi.ABI {
	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		panic(fmt.Sprintf("contract: parse %s abi: %v", name, err))
	}
	return parsed
}
