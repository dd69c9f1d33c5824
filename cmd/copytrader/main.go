package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mirrorlabs/copytrader/config"
	"github.com/mirrorlabs/copytrader/pkg/aggregator"
	"github.com/mirrorlabs/copytrader/pkg/chain"
	"github.com/mirrorlabs/copytrader/pkg/engine"
	"github.com/mirrorlabs/copytrader/pkg/errors"
	"github.com/mirrorlabs/copytrader/pkg/fetcher"
	"github.com/mirrorlabs/copytrader/pkg/logger"
	"github.com/mirrorlabs/copytrader/pkg/market"
	"github.com/mirrorlabs/copytrader/pkg/resilience"
	"github.com/mirrorlabs/copytrader/pkg/store"
	"github.com/mirrorlabs/copytrader/pkg/trader"
	"github.com/mirrorlabs/copytrader/pkg/validator"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logger.Development)

	strategy, err := cfg.Strategy()
	if err != nil {
		logger.Sugar.Fatalf("Invalid copy strategy: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown gracefully
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Sugar.Info("Received shutdown signal, stopping copy trader...")
		cancel()
	}()

	registry := resilience.NewRegistry()

	activities, err := store.NewMongoActivityStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		logger.Sugar.Fatalf("Failed to connect to activity store: %v", err)
	}

	balances, err := chain.NewBalanceReader(cfg.Chain.RPCURL, cfg.Chain.USDCContract, registry)
	if err != nil {
		logger.Sugar.Fatalf("Failed to create balance reader: %v", err)
	}

	httpFetcher := fetcher.New(fetcher.Config{
		MaxAttempts:    cfg.Trader.NetworkRetryLimit,
		RequestTimeout: time.Duration(cfg.Trader.RequestTimeoutMS) * time.Millisecond,
	})
	data := market.NewDataClient(cfg.Exchange.DataAPIHost, httpFetcher, registry)
	orders := market.NewClobClient(cfg.Exchange.ClobHost, cfg.Exchange.ClobAPIKey,
		time.Duration(cfg.Trader.RequestTimeoutMS)*time.Millisecond)

	valid := validator.New(strategy, balances, data, activities,
		time.Duration(cfg.Trader.MaxTradeAgeSeconds)*time.Second)

	var agg *aggregator.Aggregator
	if cfg.Trader.AggregationWindowSeconds > 0 {
		agg = aggregator.New(time.Duration(cfg.Trader.AggregationWindowSeconds)*time.Second,
			strategy.MinOrderSizeUSD, activities)
	}

	// A critical final error (insufficient funds, broken config) stops the
	// process with a non-zero exit.
	shutdownCh := make(chan error, 1)
	eng := engine.New(cfg.Trader.FollowerAddress, orders, valid, activities, agg, func(err error) {
		select {
		case shutdownCh <- err:
		default:
		}
		cancel()
	})

	bot := trader.New(cfg.Trader.Leaders, data, eng, activities,
		time.Duration(cfg.Trader.PollIntervalSeconds)*time.Second, cfg.Trader.Workers)

	runErr := bot.Start(ctx)

	select {
	case err := <-shutdownCh:
		logger.Sugar.Errorw("Copy trader terminated by critical error", errors.LogFields(err)...)
		os.Exit(1)
	default:
	}

	if runErr != nil && runErr != context.Canceled {
		logger.Sugar.Fatalf("Copy trader failed: %v", runErr)
	}
}
