package indexer

import (
	"context"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/riskwatch/config"
	"github.com/vadiminshakov/riskwatch/internal/entity"
	"github.com/vadiminshakov/riskwatch/internal/gateway"
)

// Ledger is the subset of gateway calls the indexer needs.
type Ledger interface {
	HeadBlock(ctx context.Context) (uint64, error)
	Withdrawals(ctx context.Context, market common.Address, from, to uint64) ([]gateway.Withdrawal, error)
	UserBasic(ctx context.Context, market, account common.Address) (gateway.UserBasic, error)
	BorrowBalance(ctx context.Context, market, account common.Address) (*big.Int, error)
	CollateralBalance(ctx context.Context, market, account, asset common.Address) (*big.Int, error)
}

// Indexer reconstructs the current borrower population incrementally: new
// candidates come from Withdraw events in the unscanned block range, known
// borrowers are re-validated so repaid accounts get demoted.
type Indexer struct {
	ledger Ledger
	logger *zap.Logger
}

func NewIndexer(ledger Ledger, logger *zap.Logger) *Indexer {
	return &Indexer{ledger: ledger, logger: logger}
}

// Index scans [fromBlock, head] for debit events, unions the emitting
// accounts with the previously known borrowers and rebuilds the population
// from current on-chain state. The returned block is the head observed at
// the start of the pass; the caller advances its cursor to it even when some
// per-account lookups failed, so a failed lookup drops that account's entry
// for this cycle only. The returned population replaces the previous one
// entirely.
func (ix *Indexer) Index(
	ctx context.Context,
	inst config.Instance,
	fromBlock uint64,
	catalog entity.AssetCatalog,
	previous map[string]entity.Borrower,
) (uint64, map[string]entity.Borrower, error) {
	toBlock, err := ix.ledger.HeadBlock(ctx)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "read chain head for %s", inst.Name)
	}

	withdrawals, err := ix.ledger.Withdrawals(ctx, inst.Market, fromBlock, toBlock)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "scan withdraw events for %s", inst.Name)
	}

	candidates := candidateUnion(withdrawals, previous)
	symbols := catalog.CollateralSymbols()

	population := make(map[string]entity.Borrower)
	for _, account := range candidates {
		borrower, isBorrower, err := ix.inspect(ctx, inst, account, catalog, symbols)
		if err != nil {
			// skipped for this cycle only: neither added nor removed,
			// the cursor still advances
			ix.logger.Warn("account lookup failed, skipping for this cycle",
				zap.String("instance", inst.Name),
				zap.String("account", account.Hex()),
				zap.Error(err))
			continue
		}
		if isBorrower {
			population[account.Hex()] = borrower
		}
	}

	return toBlock, population, nil
}

// inspect fetches an account's current state and decides whether it belongs
// in the population. Only strictly negative principal qualifies.
func (ix *Indexer) inspect(
	ctx context.Context,
	inst config.Instance,
	account common.Address,
	catalog entity.AssetCatalog,
	symbols []string,
) (entity.Borrower, bool, error) {
	basic, err := ix.ledger.UserBasic(ctx, inst.Market, account)
	if err != nil {
		return entity.Borrower{}, false, errors.Wrap(err, "read principal")
	}
	if basic.Principal.Sign() >= 0 {
		return entity.Borrower{}, false, nil
	}

	borrowRaw, err := ix.ledger.BorrowBalance(ctx, inst.Market, account)
	if err != nil {
		return entity.Borrower{}, false, errors.Wrap(err, "read borrow balance")
	}

	collateral := make(map[string]decimal.Decimal)
	for _, symbol := range DecodeAssetsIn(basic.AssetsIn, symbols) {
		asset, ok := catalog.Collateral(symbol)
		if !ok {
			continue
		}
		amountRaw, err := ix.ledger.CollateralBalance(ctx, inst.Market, account, asset.Address)
		if err != nil {
			return entity.Borrower{}, false, errors.Wrapf(err, "read %s collateral balance", symbol)
		}
		collateral[symbol] = decimal.NewFromBigInt(amountRaw, -int32(asset.Decimals))
	}

	return entity.Borrower{
		Account:       account,
		BorrowBalance: decimal.NewFromBigInt(borrowRaw, -int32(catalog.Base.Decimals)),
		Collateral:    collateral,
	}, true, nil
}

// candidateUnion merges accounts with positive withdrawals in the scanned
// range and the previously known borrowers, deduplicated. Previous borrowers
// are always re-validated: an account can repay without emitting a Withdraw
// event, and omitting the union would never demote it.
func candidateUnion(withdrawals []gateway.Withdrawal, previous map[string]entity.Borrower) []common.Address {
	seen := make(map[common.Address]struct{})
	var candidates []common.Address

	for _, w := range withdrawals {
		if w.Amount == nil || w.Amount.Sign() <= 0 {
			continue
		}
		if _, ok := seen[w.Account]; ok {
			continue
		}
		seen[w.Account] = struct{}{}
		candidates = append(candidates, w.Account)
	}

	known := make([]string, 0, len(previous))
	for hex := range previous {
		known = append(known, hex)
	}
	sort.Strings(known)
	for _, hex := range known {
		account := common.HexToAddress(hex)
		if _, ok := seen[account]; ok {
			continue
		}
		seen[account] = struct{}{}
		candidates = append(candidates, account)
	}

	return candidates
}
