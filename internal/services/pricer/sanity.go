package pricer

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/riskwatch/config"
	"github.com/vadiminshakov/riskwatch/internal/entity"
)

var defaultDeviationThreshold = decimal.NewFromInt(5)

// ExchangePricer returns the current spot price for an exchange ticker.
type ExchangePricer interface {
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// SanityChecker compares the on-chain base asset price against an exchange
// quote and logs when they diverge beyond a percentage threshold. Purely
// advisory: it never alters the sync result.
type SanityChecker struct {
	exchange  ExchangePricer
	threshold decimal.Decimal
	logger    *zap.Logger
}

func NewSanityChecker(exchange ExchangePricer, logger *zap.Logger) *SanityChecker {
	return &SanityChecker{
		exchange:  exchange,
		threshold: defaultDeviationThreshold,
		logger:    logger,
	}
}

func (s *SanityChecker) Check(ctx context.Context, inst config.Instance, catalog entity.AssetCatalog) {
	if inst.ReferenceSymbol == "" || catalog.Base.Price == nil {
		return
	}

	reference, err := s.exchange.GetPrice(ctx, inst.ReferenceSymbol)
	if err != nil {
		s.logger.Warn("exchange price fetch failed",
			zap.String("instance", inst.Name),
			zap.String("symbol", inst.ReferenceSymbol),
			zap.Error(err))
		return
	}
	if !reference.IsPositive() {
		return
	}

	deviation := catalog.Base.Price.Sub(reference).Abs().Div(reference).Mul(decimal.NewFromInt(100))
	if deviation.GreaterThan(s.threshold) {
		s.logger.Warn("on-chain price deviates from exchange quote",
			zap.String("instance", inst.Name),
			zap.String("asset", catalog.Base.Symbol),
			zap.String("feed_price", catalog.Base.Price.String()),
			zap.String("exchange_price", reference.String()),
			zap.String("deviation_percent", deviation.StringFixed(2)))
	}
}
