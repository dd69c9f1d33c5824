package policy

import (
	"fmt"
)

// Strategy selects how the base copy amount is derived from a leader fill.
type Strategy string

const (
	// StrategyPercentage copies a fixed percentage of the leader's size.
	StrategyPercentage Strategy = "PERCENTAGE"
	// StrategyFixed copies the same dollar amount for every fill.
	StrategyFixed Strategy = "FIXED"
	// StrategyAdaptive copies a larger share of small fills than of large
	// ones, interpolating between two percentage bounds.
	StrategyAdaptive Strategy = "ADAPTIVE"
)

// Tier is one piece of a piecewise-constant multiplier over the leader's
// order size. Max <= 0 means unbounded.
type Tier struct {
	Min        float64
	Max        float64
	Multiplier float64
}

// Unbounded reports whether the tier has no upper limit.
func (t Tier) Unbounded() bool { return t.Max <= 0 }

// Config is the copy-strategy configuration.
type Config struct {
	Strategy Strategy

	// CopySize is a percentage for PERCENTAGE, a dollar amount for FIXED,
	// and the baseline percentage for ADAPTIVE.
	CopySize float64

	MaxOrderSizeUSD    float64
	MinOrderSizeUSD    float64
	MaxPositionSizeUSD float64

	AdaptiveMinPercent float64
	AdaptiveMaxPercent float64
	AdaptiveThreshold  float64

	TradeMultiplier   float64
	TieredMultipliers []Tier
}

// SizedOrder is the sizing decision for one leader fill. FinalAmount is
// zero whenever the order was suppressed below the minimum; with a zero
// minimum a zero FinalAmount is not flagged BelowMinimum.
type SizedOrder struct {
	Strategy         Strategy
	TraderOrderSize  float64
	BaseAmount       float64
	FinalAmount      float64
	CappedByMax      bool
	ReducedByBalance bool
	BelowMinimum     bool
	Reasoning        []string
}

// CalculateOrderSize maps a leader fill to a sized order. Pure: the same
// inputs always produce the same decision, so it can be tested exhaustively.
func CalculateOrderSize(cfg Config, traderOrderSize, availableBalance, currentPositionSize float64) SizedOrder {
	if traderOrderSize < 0 {
		traderOrderSize = 0
	}
	if availableBalance < 0 {
		availableBalance = 0
	}
	// Short positions are not modeled; a negative position cannot free up
	// headroom against the cap.
	if currentPositionSize < 0 {
		currentPositionSize = 0
	}

	order := SizedOrder{
		Strategy:        cfg.Strategy,
		TraderOrderSize: traderOrderSize,
	}

	base := baseAmount(cfg, traderOrderSize, &order)

	multiplier := GetTradeMultiplier(cfg, traderOrderSize)
	if multiplier != 1.0 {
		base *= multiplier
		order.reason("Applied multiplier %.2fx -> $%.2f", multiplier, base)
	}
	order.BaseAmount = base

	final := base
	if final > cfg.MaxOrderSizeUSD {
		final = cfg.MaxOrderSizeUSD
		order.CappedByMax = true
		order.reason("Capped at max order size $%.2f", cfg.MaxOrderSizeUSD)
	}

	if cfg.MaxPositionSizeUSD > 0 && currentPositionSize+final > cfg.MaxPositionSizeUSD {
		final = cfg.MaxPositionSizeUSD - currentPositionSize
		if final < 0 {
			final = 0
		}
		order.reason("Reduced to fit position limit ($%.2f held of $%.2f cap)", currentPositionSize, cfg.MaxPositionSizeUSD)
	}

	if final > availableBalance {
		// The 1% haircut reserves slack for gas and rounding.
		final = availableBalance * 0.99
		order.ReducedByBalance = true
		order.reason("Reduced to 99%% of available balance $%.2f", availableBalance)
	}

	if final < cfg.MinOrderSizeUSD {
		order.reason("Final $%.2f below minimum $%.2f, suppressed", final, cfg.MinOrderSizeUSD)
		final = 0
		order.BelowMinimum = true
	}

	order.FinalAmount = final
	return order
}

func baseAmount(cfg Config, traderOrderSize float64, order *SizedOrder) float64 {
	switch cfg.Strategy {
	case StrategyFixed:
		order.reason("Fixed copy size $%.2f", cfg.CopySize)
		return cfg.CopySize

	case StrategyAdaptive:
		pct := adaptivePercent(cfg, traderOrderSize)
		base := traderOrderSize * pct / 100
		order.reason("Adaptive %.2f%% of $%.2f -> $%.2f", pct, traderOrderSize, base)
		return base

	default: // PERCENTAGE
		base := traderOrderSize * cfg.CopySize / 100
		order.reason("%.2f%% of $%.2f -> $%.2f", cfg.CopySize, traderOrderSize, base)
		return base
	}
}

// adaptivePercent interpolates linearly from the max percent at zero down
// to the min percent at the threshold, then keeps shrinking in proportion
// beyond it. The percentage never increases with trade size.
func adaptivePercent(cfg Config, traderOrderSize float64) float64 {
	min, max, threshold := cfg.AdaptiveMinPercent, cfg.AdaptiveMaxPercent, cfg.AdaptiveThreshold
	if threshold <= 0 || traderOrderSize <= 0 {
		return max
	}
	if traderOrderSize <= threshold {
		pct := max - (traderOrderSize/threshold)*(max-min)
		if pct < min {
			pct = min
		}
		if pct > max {
			pct = max
		}
		return pct
	}
	return min * threshold / traderOrderSize
}

// GetTradeMultiplier resolves the scaling factor for a leader order size:
// the matching tier if tiers are configured, otherwise the flat trade
// multiplier, otherwise 1.
func GetTradeMultiplier(cfg Config, traderOrderSize float64) float64 {
	if len(cfg.TieredMultipliers) > 0 {
		for _, tier := range cfg.TieredMultipliers {
			if traderOrderSize >= tier.Min && (tier.Unbounded() || traderOrderSize < tier.Max) {
				return tier.Multiplier
			}
		}
		return 1.0
	}
	if cfg.TradeMultiplier > 0 {
		return cfg.TradeMultiplier
	}
	return 1.0
}

func (o *SizedOrder) reason(format string, args ...interface{}) {
	o.Reasoning = append(o.Reasoning, fmt.Sprintf(format, args...))
}
