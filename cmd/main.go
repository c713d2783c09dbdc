// Command riskwatch maintains a continuously refreshed snapshot of credit
// risk for one or more Comet-style lending markets and serves it over HTTP.
//
// Usage:
//
//	riskwatch --config instances.yml
//	riskwatch --setup (launches the configuration wizard)
//
// Required environment variables:
//
//	RPC_ENDPOINT: ledger node RPC URL
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	binance "github.com/adshao/go-binance/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/riskwatch/config"
	"github.com/vadiminshakov/riskwatch/internal/gateway"
	"github.com/vadiminshakov/riskwatch/internal/services/catalog"
	"github.com/vadiminshakov/riskwatch/internal/services/indexer"
	"github.com/vadiminshakov/riskwatch/internal/services/pricer"
	"github.com/vadiminshakov/riskwatch/internal/services/syncer"
	"github.com/vadiminshakov/riskwatch/internal/setup"
	"github.com/vadiminshakov/riskwatch/internal/storage/riskjournal"
	"github.com/vadiminshakov/riskwatch/internal/storage/snapshots"
	"github.com/vadiminshakov/riskwatch/internal/web"
	"github.com/vadiminshakov/riskwatch/pkg/retrier"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.RunSetup {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		return
	}

	// checked once, before any instance is synchronized
	endpoint := os.Getenv("RPC_ENDPOINT")
	if endpoint == "" {
		log.Fatal("RPC_ENDPOINT environment variable must be set")
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := retrier.DoWithData(retrier.New(), ctx, func(ctx context.Context) (*gateway.Client, error) {
		return gateway.Dial(endpoint)
	})
	if err != nil {
		logger.Fatal("failed to connect to rpc endpoint", zap.Error(err))
	}

	journal, err := riskjournal.NewWALStore(cfg.JournalDir)
	if err != nil {
		logger.Fatal("failed to init risk journal", zap.Error(err))
	}
	defer journal.Close()

	opts := []syncer.Option{syncer.WithJournal(journal)}
	if hasReferenceSymbol(cfg.Instances) {
		exchange := pricer.NewBinancePricer(binance.NewClient("", ""))
		opts = append(opts, syncer.WithSanityChecker(pricer.NewSanityChecker(exchange, logger)))
	}

	store := snapshots.New()
	engine := syncer.NewEngine(
		cfg.Instances,
		client,
		catalog.NewBuilder(client),
		pricer.NewRefresher(client),
		indexer.NewIndexer(client, logger),
		store,
		cfg.SyncPeriod,
		logger,
		opts...,
	)
	server := web.NewServer(cfg.ListenAddr, store, journal)

	logger.Info("riskwatch started",
		zap.Int("instances", len(cfg.Instances)),
		zap.String("listen", cfg.ListenAddr))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(gctx) })
	g.Go(func() error { return server.Start(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(err.Error())
	}
}

func hasReferenceSymbol(instances []config.Instance) bool {
	for _, inst := range instances {
		if inst.ReferenceSymbol != "" {
			return true
		}
	}
	return false
}
