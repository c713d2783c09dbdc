package entity

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Asset is one collateral type accepted by a market, plus the base asset itself.
// Factors are fractions in [0,1]; Price is nil until the first successful refresh.
type Asset struct {
	Symbol            string           `json:"symbol"`
	Address           common.Address   `json:"address"`
	Decimals          uint8            `json:"decimals"`
	PriceFeed         common.Address   `json:"price_feed"`
	CollateralFactor  decimal.Decimal  `json:"collateral_factor"`
	LiquidationFactor decimal.Decimal  `json:"liquidation_factor"`
	Price             *decimal.Decimal `json:"price,omitempty"`
}

// AssetCatalog holds the base asset explicitly plus the non-base collaterals
// in ascending ledger index order. Consumers must never rely on map iteration
// order: "first entry is the base asset" is expressed by the Base field.
type AssetCatalog struct {
	Base        Asset   `json:"base"`
	Collaterals []Asset `json:"collaterals"`
}

// All returns the catalog as an ordered slice, base asset first.
func (c AssetCatalog) All() []Asset {
	out := make([]Asset, 0, len(c.Collaterals)+1)
	out = append(out, c.Base)
	out = append(out, c.Collaterals...)
	return out
}

// CollateralSymbols returns the non-base asset symbols in catalog order.
// Bit i of a borrower's assetsIn mask corresponds to index i of this slice.
func (c AssetCatalog) CollateralSymbols() []string {
	symbols := make([]string, 0, len(c.Collaterals))
	for _, a := range c.Collaterals {
		symbols = append(symbols, a.Symbol)
	}
	return symbols
}

// Collateral looks up a non-base asset by symbol.
func (c AssetCatalog) Collateral(symbol string) (Asset, bool) {
	for _, a := range c.Collaterals {
		if a.Symbol == symbol {
			return a, true
		}
	}
	return Asset{}, false
}

// Len counts all catalog entries including the base asset.
func (c AssetCatalog) Len() int {
	return len(c.Collaterals) + 1
}

// Clone returns a deep copy of the catalog.
func (c AssetCatalog) Clone() AssetCatalog {
	out := AssetCatalog{Base: cloneAsset(c.Base)}
	if c.Collaterals != nil {
		out.Collaterals = make([]Asset, len(c.Collaterals))
		for i, a := range c.Collaterals {
			out.Collaterals[i] = cloneAsset(a)
		}
	}
	return out
}

func cloneAsset(a Asset) Asset {
	if a.Price != nil {
		p := *a.Price
		a.Price = &p
	}
	return a
}
