package gateway

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// Withdraw(src, to, amount) is the debit event scanned to discover borrower
// candidates: withdrawing base asset is how an account takes on debt.
var withdrawEventSignature = crypto.Keccak256Hash([]byte("Withdraw(address,address,uint256)"))

const marketABIJSON = `[
  {"type":"function","name":"numAssets","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"getAssetInfo","stateMutability":"view","inputs":[{"name":"i","type":"uint8"}],"outputs":[
    {"name":"asset","type":"address"},
    {"name":"priceFeed","type":"address"},
    {"name":"borrowCollateralFactor","type":"uint256"},
    {"name":"liquidateCollateralFactor","type":"uint256"}]},
  {"type":"function","name":"userBasic","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[
    {"name":"principal","type":"int256"},
    {"name":"assetsIn","type":"uint16"}]},
  {"type":"function","name":"borrowBalanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"collateralBalanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"},{"name":"asset","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getPrice","stateMutability":"view","inputs":[{"name":"priceFeed","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"Withdraw","inputs":[
    {"name":"src","type":"address","indexed":true},
    {"name":"to","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false}]}
]`

const erc20ABIJSON = `[
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

var (
	marketABI = mustParseABI(marketABIJSON)
	erc20ABI  = mustParseABI(erc20ABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
