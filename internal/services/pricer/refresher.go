package pricer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/riskwatch/config"
	"github.com/vadiminshakov/riskwatch/internal/entity"
)

// feed values arrive as fixed-point integers scaled by 10^8
const priceExponent = -8

// Ledger is the subset of gateway calls the refresher needs.
type Ledger interface {
	Price(ctx context.Context, market, feed common.Address) (*big.Int, error)
}

// Refresher fetches current prices for every cataloged asset.
type Refresher struct {
	ledger Ledger
}

func NewRefresher(ledger Ledger) *Refresher {
	return &Refresher{ledger: ledger}
}

// Refresh writes current prices into the catalog in place, base asset first.
// Policy is strict: the first feed failure aborts the refresh for this cycle
// and the catalog keeps whatever prices it had before the call.
func (r *Refresher) Refresh(ctx context.Context, inst config.Instance, catalog *entity.AssetCatalog) error {
	price, err := r.fetch(ctx, inst.Market, catalog.Base.PriceFeed)
	if err != nil {
		return errors.Wrapf(err, "refresh price of base asset %s", catalog.Base.Symbol)
	}
	catalog.Base.Price = price

	for i := range catalog.Collaterals {
		price, err := r.fetch(ctx, inst.Market, catalog.Collaterals[i].PriceFeed)
		if err != nil {
			return errors.Wrapf(err, "refresh price of %s", catalog.Collaterals[i].Symbol)
		}
		catalog.Collaterals[i].Price = price
	}
	return nil
}

func (r *Refresher) fetch(ctx context.Context, market, feed common.Address) (*decimal.Decimal, error) {
	raw, err := r.ledger.Price(ctx, market, feed)
	if err != nil {
		return nil, err
	}
	price := decimal.NewFromBigInt(raw, priceExponent)
	return &price, nil
}
