package indexer

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/riskwatch/config"
	"github.com/vadiminshakov/riskwatch/internal/entity"
	"github.com/vadiminshakov/riskwatch/internal/gateway"
)

func TestDecodeAssetsIn(t *testing.T) {
	tests := []struct {
		name     string
		mask     uint16
		symbols  []string
		expected []string
	}{
		{
			name:     "empty mask",
			mask:     0,
			symbols:  []string{"ETH", "WBTC"},
			expected: nil,
		},
		{
			name:     "first bit only",
			mask:     1,
			symbols:  []string{"ETH", "WBTC"},
			expected: []string{"ETH"},
		},
		{
			name:     "both bits",
			mask:     3,
			symbols:  []string{"ETH", "WBTC"},
			expected: []string{"ETH", "WBTC"},
		},
		{
			name:     "second bit only",
			mask:     2,
			symbols:  []string{"ETH", "WBTC"},
			expected: []string{"WBTC"},
		},
		{
			name:     "bits beyond catalog ignored",
			mask:     0b101,
			symbols:  []string{"ETH", "WBTC"},
			expected: []string{"ETH"},
		},
		{
			name:     "no symbols",
			mask:     0xffff,
			symbols:  nil,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, DecodeAssetsIn(tt.mask, tt.symbols))
		})
	}
}

type fakeLedger struct {
	head        uint64
	withdrawals []gateway.Withdrawal
	basics      map[common.Address]gateway.UserBasic
	basicErrs   map[common.Address]error
	borrows     map[common.Address]*big.Int
	collaterals map[common.Address]map[common.Address]*big.Int
}

func (f *fakeLedger) HeadBlock(ctx context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeLedger) Withdrawals(ctx context.Context, market common.Address, from, to uint64) ([]gateway.Withdrawal, error) {
	return f.withdrawals, nil
}

func (f *fakeLedger) UserBasic(ctx context.Context, market, account common.Address) (gateway.UserBasic, error) {
	if err := f.basicErrs[account]; err != nil {
		return gateway.UserBasic{}, err
	}
	basic, ok := f.basics[account]
	if !ok {
		return gateway.UserBasic{}, fmt.Errorf("unknown account %s", account.Hex())
	}
	return basic, nil
}

func (f *fakeLedger) BorrowBalance(ctx context.Context, market, account common.Address) (*big.Int, error) {
	return f.borrows[account], nil
}

func (f *fakeLedger) CollateralBalance(ctx context.Context, market, account, asset common.Address) (*big.Int, error) {
	return f.collaterals[account][asset], nil
}

var (
	ethAddr  = common.HexToAddress("0x1000000000000000000000000000000000000001")
	wbtcAddr = common.HexToAddress("0x1000000000000000000000000000000000000002")

	alice = common.HexToAddress("0xaaa0000000000000000000000000000000000001")
	bob   = common.HexToAddress("0xbbb0000000000000000000000000000000000002")
	carol = common.HexToAddress("0xccc0000000000000000000000000000000000003")
)

func indexerCatalog() entity.AssetCatalog {
	return entity.AssetCatalog{
		Base: entity.Asset{Symbol: "USDC", Decimals: 6},
		Collaterals: []entity.Asset{
			{Symbol: "ETH", Address: ethAddr, Decimals: 18},
			{Symbol: "WBTC", Address: wbtcAddr, Decimals: 8},
		},
	}
}

func testInstance() config.Instance {
	return config.Instance{Name: "usdc-test", BaseDecimals: 6}
}

func TestIndexNewBorrowerFromEvent(t *testing.T) {
	ledger := &fakeLedger{
		head: 120,
		withdrawals: []gateway.Withdrawal{
			{Account: alice, Amount: big.NewInt(1)},
		},
		basics: map[common.Address]gateway.UserBasic{
			alice: {Principal: big.NewInt(-1), AssetsIn: 1},
		},
		borrows: map[common.Address]*big.Int{
			// 1000 USDC with 6 decimals
			alice: big.NewInt(1_000_000_000),
		},
		collaterals: map[common.Address]map[common.Address]*big.Int{
			alice: {ethAddr: new(big.Int).Mul(big.NewInt(2), big.NewInt(1e18))},
		},
	}

	ix := NewIndexer(ledger, zap.NewNop())
	toBlock, population, err := ix.Index(context.Background(), testInstance(), 100, indexerCatalog(), nil)

	require.NoError(t, err)
	require.Equal(t, uint64(120), toBlock)
	require.Len(t, population, 1)

	borrower := population[alice.Hex()]
	require.True(t, borrower.BorrowBalance.Equal(decimal.NewFromInt(1000)),
		"borrow balance: got %s", borrower.BorrowBalance)
	require.Len(t, borrower.Collateral, 1)
	require.True(t, borrower.Collateral["ETH"].Equal(decimal.NewFromInt(2)),
		"eth collateral: got %s", borrower.Collateral["ETH"])
}

func TestIndexNetLenderExcluded(t *testing.T) {
	ledger := &fakeLedger{
		head: 120,
		withdrawals: []gateway.Withdrawal{
			{Account: alice, Amount: big.NewInt(1)},
		},
		basics: map[common.Address]gateway.UserBasic{
			alice: {Principal: big.NewInt(500), AssetsIn: 0},
		},
	}

	ix := NewIndexer(ledger, zap.NewNop())
	_, population, err := ix.Index(context.Background(), testInstance(), 100, indexerCatalog(), nil)

	require.NoError(t, err)
	require.Empty(t, population, "positive principal must not appear even with a prior debit event")
}

func TestIndexRepaidBorrowerDemoted(t *testing.T) {
	previous := map[string]entity.Borrower{
		bob.Hex(): {Account: bob, BorrowBalance: decimal.NewFromInt(100)},
	}
	ledger := &fakeLedger{
		head: 200,
		basics: map[common.Address]gateway.UserBasic{
			// repaid: principal now non-negative, no new events emitted
			bob: {Principal: big.NewInt(0), AssetsIn: 0},
		},
	}

	ix := NewIndexer(ledger, zap.NewNop())
	toBlock, population, err := ix.Index(context.Background(), testInstance(), 150, indexerCatalog(), previous)

	require.NoError(t, err)
	require.Equal(t, uint64(200), toBlock)
	require.Empty(t, population, "repaid borrower must be demoted via the re-validation union")
}

func TestIndexLookupFailureSkipsAccountOnly(t *testing.T) {
	previous := map[string]entity.Borrower{
		bob.Hex():   {Account: bob},
		carol.Hex(): {Account: carol},
	}
	ledger := &fakeLedger{
		head: 300,
		basicErrs: map[common.Address]error{
			bob: fmt.Errorf("rpc timeout"),
		},
		basics: map[common.Address]gateway.UserBasic{
			carol: {Principal: big.NewInt(-1), AssetsIn: 0},
		},
		borrows: map[common.Address]*big.Int{
			carol: big.NewInt(50_000_000),
		},
	}

	ix := NewIndexer(ledger, zap.NewNop())
	toBlock, population, err := ix.Index(context.Background(), testInstance(), 250, indexerCatalog(), previous)

	require.NoError(t, err, "a single account failure must not abort the pass")
	require.Equal(t, uint64(300), toBlock, "cursor advances despite the failed lookup")
	require.Len(t, population, 1)
	require.Contains(t, population, carol.Hex())
	require.NotContains(t, population, bob.Hex(), "failed account is omitted for this cycle")
}

func TestIndexZeroAmountWithdrawalIgnored(t *testing.T) {
	ledger := &fakeLedger{
		head: 10,
		withdrawals: []gateway.Withdrawal{
			{Account: alice, Amount: big.NewInt(0)},
		},
	}

	ix := NewIndexer(ledger, zap.NewNop())
	_, population, err := ix.Index(context.Background(), testInstance(), 0, indexerCatalog(), nil)

	require.NoError(t, err)
	require.Empty(t, population)
}

func TestIndexPopulationReplacedEntirely(t *testing.T) {
	previous := map[string]entity.Borrower{
		bob.Hex(): {Account: bob},
	}
	ledger := &fakeLedger{
		head: 400,
		withdrawals: []gateway.Withdrawal{
			{Account: alice, Amount: big.NewInt(7)},
		},
		basics: map[common.Address]gateway.UserBasic{
			alice: {Principal: big.NewInt(-10), AssetsIn: 0},
			bob:   {Principal: big.NewInt(3), AssetsIn: 0},
		},
		borrows: map[common.Address]*big.Int{
			alice: big.NewInt(10_000_000),
		},
	}

	ix := NewIndexer(ledger, zap.NewNop())
	_, population, err := ix.Index(context.Background(), testInstance(), 350, indexerCatalog(), previous)

	require.NoError(t, err)
	require.Len(t, population, 1)
	require.Contains(t, population, alice.Hex())
}
