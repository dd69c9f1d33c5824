package policy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func percentageConfig(copySize, max, min float64) Config {
	return Config{
		Strategy:        StrategyPercentage,
		CopySize:        copySize,
		MaxOrderSizeUSD: max,
		MinOrderSizeUSD: min,
	}
}

func TestCalculateOrderSize_Percentage(t *testing.T) {
	order := CalculateOrderSize(percentageConfig(10, 100, 1), 100, 50, 0)

	require.InDelta(t, 10, order.BaseAmount, 1e-9)
	require.InDelta(t, 10, order.FinalAmount, 1e-9)
	require.False(t, order.CappedByMax)
	require.False(t, order.ReducedByBalance)
	require.False(t, order.BelowMinimum)
	require.NotEmpty(t, order.Reasoning)
}

func TestCalculateOrderSize_CappedByMax(t *testing.T) {
	order := CalculateOrderSize(percentageConfig(10, 5, 1), 100, 50, 0)

	require.InDelta(t, 5, order.FinalAmount, 1e-9)
	require.True(t, order.CappedByMax)
}

func TestCalculateOrderSize_ReducedByBalance(t *testing.T) {
	order := CalculateOrderSize(percentageConfig(10, 100, 1), 100, 5, 0)

	require.InDelta(t, 4.95, order.FinalAmount, 1e-9)
	require.True(t, order.ReducedByBalance)
}

func TestCalculateOrderSize_BelowMinimum(t *testing.T) {
	order := CalculateOrderSize(percentageConfig(10, 100, 20), 100, 50, 0)

	require.Zero(t, order.FinalAmount)
	require.True(t, order.BelowMinimum)
}

func TestCalculateOrderSize_PositionCap(t *testing.T) {
	cfg := percentageConfig(10, 100, 1)
	cfg.MaxPositionSizeUSD = 15

	order := CalculateOrderSize(cfg, 100, 50, 8)

	require.InDelta(t, 7, order.FinalAmount, 1e-9)

	// A position already at the cap suppresses the order entirely.
	order = CalculateOrderSize(cfg, 100, 50, 15)
	require.Zero(t, order.FinalAmount)
	require.True(t, order.BelowMinimum)
}

func TestCalculateOrderSize_TieredMultipliers(t *testing.T) {
	cfg := Config{
		Strategy:        StrategyFixed,
		CopySize:        10,
		MaxOrderSizeUSD: 100,
		MinOrderSizeUSD: 1,
		TieredMultipliers: []Tier{
			{Min: 0, Max: 50, Multiplier: 2.0},
			{Min: 50, Max: 200, Multiplier: 1.0},
			{Min: 200, Max: 0, Multiplier: 0.5},
		},
	}

	require.InDelta(t, 20, CalculateOrderSize(cfg, 25, 1000, 0).FinalAmount, 1e-9)
	require.InDelta(t, 10, CalculateOrderSize(cfg, 100, 1000, 0).FinalAmount, 1e-9)
	require.InDelta(t, 5, CalculateOrderSize(cfg, 300, 1000, 0).FinalAmount, 1e-9)
}

func TestCalculateOrderSize_FlatMultiplier(t *testing.T) {
	cfg := percentageConfig(10, 100, 1)
	cfg.TradeMultiplier = 1.5

	order := CalculateOrderSize(cfg, 100, 1000, 0)
	require.InDelta(t, 15, order.FinalAmount, 1e-9)
}

func TestCalculateOrderSize_ZeroInputs(t *testing.T) {
	cfg := percentageConfig(10, 100, 1)

	require.Zero(t, CalculateOrderSize(cfg, 0, 50, 0).FinalAmount)
	require.Zero(t, CalculateOrderSize(cfg, 100, 0, 0).FinalAmount)

	zeroCopy := percentageConfig(10, 100, 1)
	zeroCopy.CopySize = 0
	order := CalculateOrderSize(zeroCopy, 100, 50, 0)
	require.Zero(t, order.FinalAmount)
	require.True(t, order.BelowMinimum)
}

func TestCalculateOrderSize_MinEqualsMax(t *testing.T) {
	cfg := percentageConfig(10, 10, 10)

	// Exactly at the bound passes; anything below suppresses.
	exact := CalculateOrderSize(cfg, 100, 1000, 0)
	require.InDelta(t, 10, exact.FinalAmount, 1e-9)

	below := CalculateOrderSize(cfg, 50, 1000, 0)
	require.Zero(t, below.FinalAmount)
	require.True(t, below.BelowMinimum)
}

func TestCalculateOrderSize_Deterministic(t *testing.T) {
	cfg := Config{
		Strategy:           StrategyAdaptive,
		CopySize:           10,
		MaxOrderSizeUSD:    100,
		MinOrderSizeUSD:    1,
		AdaptiveMinPercent: 5,
		AdaptiveMaxPercent: 15,
		AdaptiveThreshold:  1000,
	}

	first := CalculateOrderSize(cfg, 123.45, 678.9, 12.3)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, CalculateOrderSize(cfg, 123.45, 678.9, 12.3))
	}
}

func TestAdaptivePercent_NonIncreasing(t *testing.T) {
	cfg := Config{
		Strategy:           StrategyAdaptive,
		AdaptiveMinPercent: 5,
		AdaptiveMaxPercent: 15,
		AdaptiveThreshold:  1000,
	}

	prev := math.Inf(1)
	for size := 1.0; size <= 5000; size += 7 {
		pct := adaptivePercent(cfg, size)
		require.LessOrEqual(t, pct, prev, "percent increased at size %f", size)
		require.GreaterOrEqual(t, pct, 0.0)
		prev = pct
	}

	// Small orders copy a strictly larger share than large ones.
	require.Greater(t, adaptivePercent(cfg, 10), adaptivePercent(cfg, 4000))
}

func TestAdaptive_BaseAmountConstantBeyondThreshold(t *testing.T) {
	cfg := Config{
		Strategy:           StrategyAdaptive,
		MaxOrderSizeUSD:    10000,
		AdaptiveMinPercent: 5,
		AdaptiveMaxPercent: 15,
		AdaptiveThreshold:  1000,
	}

	at := CalculateOrderSize(cfg, 1000, 1e9, 0)
	beyond := CalculateOrderSize(cfg, 3000, 1e9, 0)
	require.InDelta(t, at.BaseAmount, beyond.BaseAmount, 1e-9)
}

func TestGetTradeMultiplier_Precedence(t *testing.T) {
	tiers := []Tier{{Min: 0, Max: 100, Multiplier: 3.0}}

	// Tiers win over the flat multiplier.
	cfg := Config{TieredMultipliers: tiers, TradeMultiplier: 2.0}
	require.InDelta(t, 3.0, GetTradeMultiplier(cfg, 50), 1e-9)

	// No matching tier falls back to 1, not to the flat multiplier.
	require.InDelta(t, 1.0, GetTradeMultiplier(cfg, 500), 1e-9)

	// Without tiers, the flat multiplier applies.
	require.InDelta(t, 2.0, GetTradeMultiplier(Config{TradeMultiplier: 2.0}, 50), 1e-9)

	// Neither set means identity.
	require.InDelta(t, 1.0, GetTradeMultiplier(Config{}, 50), 1e-9)
}

func TestRecommendedConfig(t *testing.T) {
	small := RecommendedConfig(100)
	require.Equal(t, StrategyPercentage, small.Strategy)
	require.InDelta(t, 5, small.CopySize, 1e-9)
	require.InDelta(t, 20, small.MaxOrderSizeUSD, 1e-9)

	mid := RecommendedConfig(1000)
	require.Equal(t, StrategyPercentage, mid.Strategy)
	require.InDelta(t, 10, mid.CopySize, 1e-9)
	require.InDelta(t, 50, mid.MaxOrderSizeUSD, 1e-9)

	large := RecommendedConfig(4000)
	require.Equal(t, StrategyAdaptive, large.Strategy)
	require.InDelta(t, 200, large.MaxOrderSizeUSD, 1e-9)
	require.LessOrEqual(t, large.AdaptiveMinPercent, large.AdaptiveMaxPercent)
}
