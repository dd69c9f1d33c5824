package trader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mirrorlabs/copytrader/pkg/aggregator"
	"github.com/mirrorlabs/copytrader/pkg/engine"
	"github.com/mirrorlabs/copytrader/pkg/fetcher"
	"github.com/mirrorlabs/copytrader/pkg/logger"
	"github.com/mirrorlabs/copytrader/pkg/market"
	"github.com/mirrorlabs/copytrader/pkg/policy"
	"github.com/mirrorlabs/copytrader/pkg/resilience"
	"github.com/mirrorlabs/copytrader/pkg/store"
	"github.com/mirrorlabs/copytrader/pkg/testutils"
	"github.com/mirrorlabs/copytrader/pkg/types"
	"github.com/mirrorlabs/copytrader/pkg/validator"
)

func init() {
	logger.Init(true)
}

type fakeOrders struct {
	posted chan types.OrderArgs
}

func (f *fakeOrders) PostOrder(ctx context.Context, args types.OrderArgs) error {
	f.posted <- args
	return nil
}

type fakeBalances struct{}

func (fakeBalances) GetBalance(ctx context.Context, address string) (float64, error) {
	return 1000, nil
}

func TestStart_MirrorsLeaderFills(t *testing.T) {
	response := testutils.ActivityListResponse([]*types.Activity{
		{
			ProxyWallet:     "0xleader",
			ConditionID:     "cond",
			Asset:           "token",
			Side:            types.SideBuy,
			UsdcSize:        100,
			Price:           0.5,
			Timestamp:       time.Now().Unix(),
			TransactionHash: "0xabc",
		},
	})
	server := testutils.CreateMockServer(testutils.DefaultMockServerConfig(response))
	defer server.Close()

	registry := resilience.NewRegistry()
	httpFetcher := fetcher.New(fetcher.Config{MaxAttempts: 1, RequestTimeout: 2 * time.Second})
	data := market.NewDataClient(server.URL, httpFetcher, registry)

	activities := store.NewMemoryActivityStore()
	orders := &fakeOrders{posted: make(chan types.OrderArgs, 10)}

	cfg := policy.Config{
		Strategy:        policy.StrategyPercentage,
		CopySize:        10,
		MaxOrderSizeUSD: 100,
		MinOrderSizeUSD: 1,
	}
	valid := validator.New(cfg, fakeBalances{}, data, activities, 5*time.Minute)
	eng := engine.New("0xfollower", orders, valid, activities, nil, nil)

	bot := New([]string{"0xleader"}, data, eng, activities, 50*time.Millisecond, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.Start(ctx) }()

	select {
	case args := <-orders.posted:
		require.Equal(t, "token", args.Asset)
		require.InDelta(t, 10, args.Size, 1e-9)
	case <-time.After(5 * time.Second):
		t.Fatal("no order posted within deadline")
	}

	require.True(t, bot.IsStarted())

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.False(t, bot.IsStarted())

	// The activity is retired; later polls must not mirror it again.
	require.Greater(t, activities.Sentinel("0xabc_token_BUY"), int64(0), "completed sentinel recorded")
	unprocessed, err := activities.FindUnprocessed(context.Background(), "0xleader")
	require.NoError(t, err)
	require.Empty(t, unprocessed)
}

func TestStart_AggregationPathDrains(t *testing.T) {
	response := testutils.ActivityListResponse([]*types.Activity{
		{
			ProxyWallet:     "0xleader",
			ConditionID:     "cond",
			Asset:           "token",
			Side:            types.SideBuy,
			UsdcSize:        100,
			Price:           0.5,
			Timestamp:       time.Now().Unix(),
			TransactionHash: "0xabc",
		},
	})
	server := testutils.CreateMockServer(testutils.DefaultMockServerConfig(response))
	defer server.Close()

	registry := resilience.NewRegistry()
	httpFetcher := fetcher.New(fetcher.Config{MaxAttempts: 1, RequestTimeout: 2 * time.Second})
	data := market.NewDataClient(server.URL, httpFetcher, registry)

	activities := store.NewMemoryActivityStore()
	orders := &fakeOrders{posted: make(chan types.OrderArgs, 10)}

	cfg := policy.Config{
		Strategy:        policy.StrategyPercentage,
		CopySize:        10,
		MaxOrderSizeUSD: 100,
		MinOrderSizeUSD: 1,
	}
	valid := validator.New(cfg, fakeBalances{}, data, activities, 5*time.Minute)
	agg := aggregator.New(100*time.Millisecond, cfg.MinOrderSizeUSD, activities)
	eng := engine.New("0xfollower", orders, valid, activities, agg, nil)

	bot := New([]string{"0xleader"}, data, eng, activities, 50*time.Millisecond, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bot.Start(ctx) }()

	// The aggregated order carries the bucket totals once the window elapses.
	select {
	case args := <-orders.posted:
		require.InDelta(t, 100, args.Size, 1e-9)
		require.InDelta(t, 0.5, args.Price, 1e-9)
	case <-time.After(5 * time.Second):
		t.Fatal("no aggregated order posted within deadline")
	}
}
