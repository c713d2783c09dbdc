package health

import (
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/riskwatch/internal/entity"
)

var (
	hundred = decimal.NewFromInt(100)

	// PercentUncollateralized is the sentinel percent-to-liquidation assigned
	// to a borrower with debt but a zero liquidation limit. It is larger than
	// any real percentage so such accounts sort to the top of risk listings.
	PercentUncollateralized = decimal.NewFromInt(10000)
)

// Compute fills a borrower's derived risk fields from its raw balances and
// the priced catalog. Pure: no I/O, identical inputs yield identical output.
// The catalog must have passed a price refresh before this is called.
func Compute(catalog entity.AssetCatalog, borrower entity.Borrower) entity.Borrower {
	basePrice := priceOf(catalog.Base)
	borrowValue := borrower.BorrowBalance.Mul(basePrice)

	borrowLimit := decimal.Zero
	liquidationLimit := decimal.Zero
	for symbol, amount := range borrower.Collateral {
		asset, ok := catalog.Collateral(symbol)
		if !ok {
			continue
		}
		value := amount.Mul(priceOf(asset))
		borrowLimit = borrowLimit.Add(value.Mul(asset.CollateralFactor))
		liquidationLimit = liquidationLimit.Add(value.Mul(asset.LiquidationFactor))
	}

	if basePrice.IsPositive() {
		borrowLimit = borrowLimit.Div(basePrice)
		liquidationLimit = liquidationLimit.Div(basePrice)
	}

	borrower.BorrowLimit = borrowLimit
	borrower.LiquidationLimit = liquidationLimit
	borrower.PercentToLiquidation = percentToLiquidation(borrowValue, liquidationLimit)
	borrower.LiquidationPrice = liquidationPrice(catalog, borrower, borrowValue)

	return borrower
}

func percentToLiquidation(borrowValue, liquidationLimit decimal.Decimal) decimal.Decimal {
	if liquidationLimit.IsZero() {
		return PercentUncollateralized
	}
	return borrowValue.Div(liquidationLimit).Mul(hundred).Round(0)
}

// liquidationPrice is defined only for single-collateral borrowers: the
// collateral price at which the position becomes liquidatable, given fixed
// debt.
func liquidationPrice(catalog entity.AssetCatalog, borrower entity.Borrower, borrowValue decimal.Decimal) *decimal.Decimal {
	if len(borrower.Collateral) != 1 {
		return nil
	}
	for symbol, amount := range borrower.Collateral {
		asset, ok := catalog.Collateral(symbol)
		if !ok || amount.IsZero() || asset.LiquidationFactor.IsZero() {
			return nil
		}
		price := borrowValue.Div(amount).Div(asset.LiquidationFactor)
		return &price
	}
	return nil
}

func priceOf(asset entity.Asset) decimal.Decimal {
	if asset.Price == nil {
		return decimal.Zero
	}
	return *asset.Price
}
