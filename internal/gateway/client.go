package gateway

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

const defaultCallTimeout = 10 * time.Second

// ethBackend is the subset of the Ethereum RPC used by the monitor.
type ethBackend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error)
}

// AssetInfo is the per-index asset record read from a market contract.
// Factors are fixed-point integers scaled by 10^18.
type AssetInfo struct {
	Asset                     common.Address
	PriceFeed                 common.Address
	BorrowCollateralFactor    *big.Int
	LiquidateCollateralFactor *big.Int
}

// UserBasic is an account's principal (signed; negative means debt) and its
// collateral-membership bitmask.
type UserBasic struct {
	Principal *big.Int
	AssetsIn  uint16
}

// Withdrawal is one debit event emitted by a market contract.
type Withdrawal struct {
	Account common.Address
	Amount  *big.Int
}

// Client performs read-only contract calls and historical log queries.
// Every call carries its own timeout so a stalled node cannot block the
// scheduling loop.
type Client struct {
	eth         ethBackend
	callTimeout time.Duration
}

// Dial connects to the given RPC endpoint.
func Dial(endpoint string) (*Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, errors.New("rpc endpoint required")
	}
	eth, err := ethclient.Dial(trimmed)
	if err != nil {
		return nil, errors.Wrap(err, "dial rpc endpoint")
	}
	return NewClient(eth), nil
}

// NewClient wraps an existing backend (used by tests and Dial).
func NewClient(eth ethBackend) *Client {
	return &Client{eth: eth, callTimeout: defaultCallTimeout}
}

// HeadBlock returns the current chain head height.
func (c *Client) HeadBlock(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return c.eth.BlockNumber(ctx)
}

// Withdrawals returns all Withdraw events emitted by the market contract in
// the block range [from, to].
func (c *Client) Withdrawals(ctx context.Context, market common.Address, from, to uint64) ([]Withdrawal, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	logs, err := c.eth.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{market},
		Topics:    [][]common.Hash{{withdrawEventSignature}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "filter withdraw events")
	}

	withdrawals := make([]Withdrawal, 0, len(logs))
	for _, l := range logs {
		if len(l.Topics) < 2 {
			continue
		}
		withdrawals = append(withdrawals, Withdrawal{
			Account: common.BytesToAddress(l.Topics[1].Bytes()),
			Amount:  new(big.Int).SetBytes(l.Data),
		})
	}
	return withdrawals, nil
}

// NumAssets returns the count of collateral asset types the market accepts.
func (c *Client) NumAssets(ctx context.Context, market common.Address) (uint8, error) {
	out, err := c.call(ctx, market, marketABI, "numAssets")
	if err != nil {
		return 0, err
	}
	return out[0].(uint8), nil
}

// AssetInfo returns the asset record at the given market index.
func (c *Client) AssetInfo(ctx context.Context, market common.Address, index uint8) (AssetInfo, error) {
	out, err := c.call(ctx, market, marketABI, "getAssetInfo", index)
	if err != nil {
		return AssetInfo{}, err
	}
	return AssetInfo{
		Asset:                     out[0].(common.Address),
		PriceFeed:                 out[1].(common.Address),
		BorrowCollateralFactor:    out[2].(*big.Int),
		LiquidateCollateralFactor: out[3].(*big.Int),
	}, nil
}

// UserBasic returns an account's principal and assetsIn bitmask.
func (c *Client) UserBasic(ctx context.Context, market, account common.Address) (UserBasic, error) {
	out, err := c.call(ctx, market, marketABI, "userBasic", account)
	if err != nil {
		return UserBasic{}, err
	}
	return UserBasic{
		Principal: out[0].(*big.Int),
		AssetsIn:  out[1].(uint16),
	}, nil
}

// BorrowBalance returns an account's debt in raw base-asset units.
func (c *Client) BorrowBalance(ctx context.Context, market, account common.Address) (*big.Int, error) {
	out, err := c.call(ctx, market, marketABI, "borrowBalanceOf", account)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// CollateralBalance returns an account's holding of one collateral asset in
// raw token units.
func (c *Client) CollateralBalance(ctx context.Context, market, account, asset common.Address) (*big.Int, error) {
	out, err := c.call(ctx, market, marketABI, "collateralBalanceOf", account, asset)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// Price returns a price feed's current value as a fixed-point integer scaled
// by 10^8.
func (c *Client) Price(ctx context.Context, market, feed common.Address) (*big.Int, error) {
	out, err := c.call(ctx, market, marketABI, "getPrice", feed)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// TokenSymbol reads an ERC-20 token's symbol.
func (c *Client) TokenSymbol(ctx context.Context, token common.Address) (string, error) {
	out, err := c.call(ctx, token, erc20ABI, "symbol")
	if err != nil {
		return "", err
	}
	return out[0].(string), nil
}

// TokenDecimals reads an ERC-20 token's decimal precision.
func (c *Client) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := c.call(ctx, token, erc20ABI, "decimals")
	if err != nil {
		return 0, err
	}
	return out[0].(uint8), nil
}

func (c *Client) call(ctx context.Context, to common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "pack %s", method)
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	raw, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "call %s on %s", method, to.Hex())
	}

	out, err := contractABI.Unpack(method, raw)
	if err != nil {
		return nil, errors.Wrapf(err, "unpack %s", method)
	}
	return out, nil
}
