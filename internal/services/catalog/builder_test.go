package catalog

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/riskwatch/config"
	"github.com/vadiminshakov/riskwatch/internal/gateway"
)

var (
	ethAddr  = common.HexToAddress("0x1000000000000000000000000000000000000001")
	wbtcAddr = common.HexToAddress("0x1000000000000000000000000000000000000002")
	ethFeed  = common.HexToAddress("0x2000000000000000000000000000000000000001")
	wbtcFeed = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

type fakeLedger struct {
	count      uint8
	infos      map[uint8]gateway.AssetInfo
	symbols    map[common.Address]string
	decimals   map[common.Address]uint8
	symbolErrs map[common.Address]error
}

func (f *fakeLedger) NumAssets(ctx context.Context, market common.Address) (uint8, error) {
	return f.count, nil
}

func (f *fakeLedger) AssetInfo(ctx context.Context, market common.Address, index uint8) (gateway.AssetInfo, error) {
	info, ok := f.infos[index]
	if !ok {
		return gateway.AssetInfo{}, fmt.Errorf("no asset at index %d", index)
	}
	return info, nil
}

func (f *fakeLedger) TokenSymbol(ctx context.Context, token common.Address) (string, error) {
	if err := f.symbolErrs[token]; err != nil {
		return "", err
	}
	return f.symbols[token], nil
}

func (f *fakeLedger) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	return f.decimals[token], nil
}

func factor(s string) *big.Int {
	d := decimal.RequireFromString(s)
	return d.Shift(18).BigInt()
}

func testInstance() config.Instance {
	return config.Instance{
		Name:         "usdc-test",
		BaseSymbol:   "USDC",
		BaseAddress:  common.HexToAddress("0x3000000000000000000000000000000000000001"),
		BaseDecimals: 6,
	}
}

func TestBuildBaseAssetFirst(t *testing.T) {
	ledger := &fakeLedger{
		count: 2,
		infos: map[uint8]gateway.AssetInfo{
			0: {Asset: ethAddr, PriceFeed: ethFeed, BorrowCollateralFactor: factor("0.8"), LiquidateCollateralFactor: factor("0.85")},
			1: {Asset: wbtcAddr, PriceFeed: wbtcFeed, BorrowCollateralFactor: factor("0.7"), LiquidateCollateralFactor: factor("0.75")},
		},
		symbols:  map[common.Address]string{ethAddr: "ETH", wbtcAddr: "WBTC"},
		decimals: map[common.Address]uint8{ethAddr: 18, wbtcAddr: 8},
	}

	builder := NewBuilder(ledger)
	catalog, err := builder.Build(context.Background(), testInstance())

	require.NoError(t, err)
	require.Equal(t, "USDC", catalog.Base.Symbol, "base asset must be the first catalog entry")
	require.Equal(t, uint8(6), catalog.Base.Decimals)

	require.Len(t, catalog.Collaterals, 2)
	require.Equal(t, "ETH", catalog.Collaterals[0].Symbol, "collaterals keep ascending index order")
	require.Equal(t, "WBTC", catalog.Collaterals[1].Symbol)

	require.True(t, catalog.Collaterals[0].CollateralFactor.Equal(decimal.RequireFromString("0.8")),
		"collateral factor normalized from 1e18 fixed point: got %s", catalog.Collaterals[0].CollateralFactor)
	require.True(t, catalog.Collaterals[0].LiquidationFactor.Equal(decimal.RequireFromString("0.85")),
		"liquidation factor normalized from 1e18 fixed point: got %s", catalog.Collaterals[0].LiquidationFactor)
	require.Equal(t, ethFeed, catalog.Collaterals[0].PriceFeed)
}

func TestBuildAbortsOnAnyLookupFailure(t *testing.T) {
	ledger := &fakeLedger{
		count: 2,
		infos: map[uint8]gateway.AssetInfo{
			0: {Asset: ethAddr, PriceFeed: ethFeed, BorrowCollateralFactor: factor("0.8"), LiquidateCollateralFactor: factor("0.85")},
			1: {Asset: wbtcAddr, PriceFeed: wbtcFeed, BorrowCollateralFactor: factor("0.7"), LiquidateCollateralFactor: factor("0.75")},
		},
		symbols:    map[common.Address]string{ethAddr: "ETH"},
		decimals:   map[common.Address]uint8{ethAddr: 18, wbtcAddr: 8},
		symbolErrs: map[common.Address]error{wbtcAddr: fmt.Errorf("rpc timeout")},
	}

	builder := NewBuilder(ledger)
	_, err := builder.Build(context.Background(), testInstance())

	require.Error(t, err, "no partial catalog is committed")
}

func TestBuildEmptyMarket(t *testing.T) {
	builder := NewBuilder(&fakeLedger{count: 0})
	catalog, err := builder.Build(context.Background(), testInstance())

	require.NoError(t, err)
	require.Equal(t, "USDC", catalog.Base.Symbol)
	require.Empty(t, catalog.Collaterals)
	require.Equal(t, 1, catalog.Len())
}
