package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/riskwatch/config"
	"github.com/vadiminshakov/riskwatch/internal/entity"
	"github.com/vadiminshakov/riskwatch/internal/services/health"
)

type catalogBuilder interface {
	Build(ctx context.Context, inst config.Instance) (entity.AssetCatalog, error)
}

type priceRefresher interface {
	Refresh(ctx context.Context, inst config.Instance, catalog *entity.AssetCatalog) error
}

type borrowerIndexer interface {
	Index(ctx context.Context, inst config.Instance, fromBlock uint64, catalog entity.AssetCatalog, previous map[string]entity.Borrower) (uint64, map[string]entity.Borrower, error)
}

type ledger interface {
	NumAssets(ctx context.Context, market common.Address) (uint8, error)
}

type snapshotStore interface {
	State(name string) *entity.InstanceState
	Touch(name string, ts time.Time)
	Commit(name string, state *entity.InstanceState)
}

type cycleJournal interface {
	Save(summary entity.CycleSummary) error
}

type sanityChecker interface {
	Check(ctx context.Context, inst config.Instance, catalog entity.AssetCatalog)
}

// Engine drives one full sync pass per instance: catalog refresh when the
// on-chain asset count drifts, price refresh, borrower re-indexing, health
// computation. Errors never escape Sync; a failed step leaves the previous
// state in place and the cycle is retried on the next tick.
type Engine struct {
	instances  []config.Instance
	ledger     ledger
	builder    catalogBuilder
	refresher  priceRefresher
	indexer    borrowerIndexer
	store      snapshotStore
	journal    cycleJournal
	sanity     sanityChecker
	syncPeriod time.Duration
	logger     *zap.Logger
	now        func() time.Time
	locks      map[string]*sync.Mutex
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithJournal enables cycle-summary journaling.
func WithJournal(journal cycleJournal) Option {
	return func(e *Engine) {
		e.journal = journal
	}
}

// WithSanityChecker enables the off-chain price deviation check.
func WithSanityChecker(sanity sanityChecker) Option {
	return func(e *Engine) {
		e.sanity = sanity
	}
}

// WithClock overrides the wall clock (used by tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(
	instances []config.Instance,
	ledger ledger,
	builder catalogBuilder,
	refresher priceRefresher,
	indexer borrowerIndexer,
	store snapshotStore,
	syncPeriod time.Duration,
	logger *zap.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		instances:  instances,
		ledger:     ledger,
		builder:    builder,
		refresher:  refresher,
		indexer:    indexer,
		store:      store,
		syncPeriod: syncPeriod,
		logger:     logger,
		now:        time.Now,
		locks:      make(map[string]*sync.Mutex, len(instances)),
	}
	for _, inst := range instances {
		e.locks[inst.Name] = &sync.Mutex{}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run syncs all instances once, then on every tick until the context ends.
func (e *Engine) Run(ctx context.Context) error {
	e.SyncAll(ctx)

	ticker := time.NewTicker(e.syncPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.SyncAll(ctx)
		}
	}
}

// SyncAll processes instances sequentially; a slow or failing instance
// delays but never aborts the rest.
func (e *Engine) SyncAll(ctx context.Context) {
	for _, inst := range e.instances {
		e.Sync(ctx, inst)
	}
}

// Sync runs one debounced pass for the instance. The per-instance mutex
// makes the debounce check and timestamp update atomic with respect to
// concurrent triggers, so at most one pass does network work per interval.
func (e *Engine) Sync(ctx context.Context, inst config.Instance) {
	mu, ok := e.locks[inst.Name]
	if !ok {
		e.logger.Error("unknown instance", zap.String("instance", inst.Name))
		return
	}
	mu.Lock()
	defer mu.Unlock()

	now := e.now()
	prev := e.store.State(inst.Name)
	if prev != nil && !prev.LastSync.IsZero() && now.Sub(prev.LastSync) < inst.DebounceInterval {
		return
	}
	// mark the attempt before any network call so a second trigger inside
	// the debounce interval becomes a no-op even if this pass fails
	e.store.Touch(inst.Name, now)
	if prev == nil {
		prev = &entity.InstanceState{Borrowers: make(map[string]entity.Borrower)}
	}

	count, err := e.ledger.NumAssets(ctx, inst.Market)
	if err != nil {
		e.logger.Error("asset count read failed, skipping cycle",
			zap.String("instance", inst.Name), zap.Error(err))
		return
	}

	catalog := prev.Catalog.Clone()
	if catalog.Base.Symbol == "" || int(count) != prev.LastAssetCount {
		built, err := e.builder.Build(ctx, inst)
		if err != nil {
			e.logger.Error("catalog build failed, previous catalog retained",
				zap.String("instance", inst.Name), zap.Error(err))
			return
		}
		catalog = built
	}

	if err := e.refresher.Refresh(ctx, inst, &catalog); err != nil {
		e.logger.Error("price refresh failed, skipping cycle",
			zap.String("instance", inst.Name), zap.Error(err))
		return
	}

	if e.sanity != nil {
		e.sanity.Check(ctx, inst, catalog)
	}

	toBlock, population, err := e.indexer.Index(ctx, inst, prev.LastSyncedBlock, catalog, prev.Borrowers)
	if err != nil {
		e.logger.Error("borrower indexing failed, cursor and population retained",
			zap.String("instance", inst.Name), zap.Error(err))
		return
	}

	for hex, borrower := range population {
		population[hex] = health.Compute(catalog, borrower)
	}

	e.store.Commit(inst.Name, &entity.InstanceState{
		LastSyncedBlock: toBlock,
		LastSync:        now,
		Catalog:         catalog,
		LastAssetCount:  int(count),
		Borrowers:       population,
	})

	e.logger.Info("sync completed",
		zap.String("instance", inst.Name),
		zap.Uint64("block", toBlock),
		zap.Int("borrowers", len(population)))

	if e.journal != nil {
		summary := entity.CycleSummary{
			Timestamp: now,
			Instance:  inst.Name,
			Block:     toBlock,
			Borrowers: len(population),
		}
		if riskiest, ok := riskiestPercent(population); ok {
			summary.RiskiestPercent = riskiest.String()
		}
		if err := e.journal.Save(summary); err != nil {
			e.logger.Warn("cycle summary journaling failed",
				zap.String("instance", inst.Name), zap.Error(err))
		}
	}
}

func riskiestPercent(population map[string]entity.Borrower) (decimal.Decimal, bool) {
	var (
		max   decimal.Decimal
		found bool
	)
	for _, b := range population {
		if !found || b.PercentToLiquidation.GreaterThan(max) {
			max = b.PercentToLiquidation
			found = true
		}
	}
	return max, found
}
