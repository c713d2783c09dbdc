package catalog

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/riskwatch/config"
	"github.com/vadiminshakov/riskwatch/internal/entity"
	"github.com/vadiminshakov/riskwatch/internal/gateway"
)

// factors arrive as fixed-point integers scaled by 10^18
const factorExponent = -18

// Ledger is the subset of gateway calls the builder needs.
type Ledger interface {
	NumAssets(ctx context.Context, market common.Address) (uint8, error)
	AssetInfo(ctx context.Context, market common.Address, index uint8) (gateway.AssetInfo, error)
	TokenSymbol(ctx context.Context, token common.Address) (string, error)
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
}

// Builder discovers the full collateral asset catalog of a market.
type Builder struct {
	ledger Ledger
}

func NewBuilder(ledger Ledger) *Builder {
	return &Builder{ledger: ledger}
}

// Build seeds the base asset from static config, then reads every collateral
// asset in ascending ledger index order. Any single lookup failing aborts the
// whole build; the caller keeps the previous catalog and retries next cycle.
func (b *Builder) Build(ctx context.Context, inst config.Instance) (entity.AssetCatalog, error) {
	result := entity.AssetCatalog{
		Base: entity.Asset{
			Symbol:    inst.BaseSymbol,
			Address:   inst.BaseAddress,
			Decimals:  inst.BaseDecimals,
			PriceFeed: inst.BasePriceFeed,
		},
	}

	count, err := b.ledger.NumAssets(ctx, inst.Market)
	if err != nil {
		return entity.AssetCatalog{}, errors.Wrapf(err, "read asset count for %s", inst.Name)
	}

	for i := uint8(0); i < count; i++ {
		info, err := b.ledger.AssetInfo(ctx, inst.Market, i)
		if err != nil {
			return entity.AssetCatalog{}, errors.Wrapf(err, "read asset info %d for %s", i, inst.Name)
		}
		symbol, err := b.ledger.TokenSymbol(ctx, info.Asset)
		if err != nil {
			return entity.AssetCatalog{}, errors.Wrapf(err, "read symbol of %s", info.Asset.Hex())
		}
		decimals, err := b.ledger.TokenDecimals(ctx, info.Asset)
		if err != nil {
			return entity.AssetCatalog{}, errors.Wrapf(err, "read decimals of %s", info.Asset.Hex())
		}

		result.Collaterals = append(result.Collaterals, entity.Asset{
			Symbol:            symbol,
			Address:           info.Asset,
			Decimals:          decimals,
			PriceFeed:         info.PriceFeed,
			CollateralFactor:  decimal.NewFromBigInt(info.BorrowCollateralFactor, factorExponent),
			LiquidationFactor: decimal.NewFromBigInt(info.LiquidateCollateralFactor, factorExponent),
		})
	}

	return result, nil
}
