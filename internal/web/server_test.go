package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/riskwatch/internal/entity"
	"github.com/vadiminshakov/riskwatch/internal/storage/snapshots"
)

func borrowerWithPercent(account common.Address, percent int64) entity.Borrower {
	return entity.Borrower{
		Account:              account,
		BorrowBalance:        decimal.NewFromInt(100),
		PercentToLiquidation: decimal.NewFromInt(percent),
	}
}

func testStore() *snapshots.Store {
	store := snapshots.New()
	a := common.HexToAddress("0xaaa0000000000000000000000000000000000001")
	b := common.HexToAddress("0xbbb0000000000000000000000000000000000002")
	c := common.HexToAddress("0xccc0000000000000000000000000000000000003")
	store.Commit("usdc-test", &entity.InstanceState{
		LastSyncedBlock: 100,
		Catalog:         entity.AssetCatalog{Base: entity.Asset{Symbol: "USDC"}},
		Borrowers: map[string]entity.Borrower{
			a.Hex(): borrowerWithPercent(a, 59),
			b.Hex(): borrowerWithPercent(b, 95),
			c.Hex(): borrowerWithPercent(c, 59),
		},
	})
	return store
}

func TestHandleInstanceSortedByPercentDescending(t *testing.T) {
	server := NewServer(":0", testStore(), nil)

	req := httptest.NewRequest(http.MethodGet, "/instances/usdc-test", nil)
	rec := httptest.NewRecorder()
	server.handleInstance(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot struct {
		Instance        string `json:"instance"`
		LastSyncedBlock uint64 `json:"last_synced_block"`
		Borrowers       []struct {
			Account              string `json:"account"`
			PercentToLiquidation string `json:"percent_to_liquidation"`
		} `json:"borrowers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))

	require.Equal(t, "usdc-test", snapshot.Instance)
	require.Equal(t, uint64(100), snapshot.LastSyncedBlock)
	require.Len(t, snapshot.Borrowers, 3)

	require.Equal(t, "95", snapshot.Borrowers[0].PercentToLiquidation)
	require.Equal(t, "59", snapshot.Borrowers[1].PercentToLiquidation)
	require.Equal(t, "59", snapshot.Borrowers[2].PercentToLiquidation)

	// equal percentages keep account order
	require.Less(t, snapshot.Borrowers[1].Account, snapshot.Borrowers[2].Account)
}

func TestHandleInstanceUnknownIsBadRequest(t *testing.T) {
	server := NewServer(":0", testStore(), nil)

	req := httptest.NewRequest(http.MethodGet, "/instances/unknown", nil)
	rec := httptest.NewRecorder()
	server.handleInstance(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleInstanceEmptyNameIsBadRequest(t *testing.T) {
	server := NewServer(":0", testStore(), nil)

	req := httptest.NewRequest(http.MethodGet, "/instances/", nil)
	rec := httptest.NewRecorder()
	server.handleInstance(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
