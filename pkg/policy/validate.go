package policy

import (
	"fmt"
)

// ValidateConfig checks a copy-strategy configuration and returns every
// problem found, one message per violation.
func ValidateConfig(cfg Config) []string {
	var problems []string

	if cfg.CopySize <= 0 {
		problems = append(problems, "copySize must be greater than zero")
	}
	if cfg.Strategy == StrategyPercentage && cfg.CopySize > 100 {
		problems = append(problems, "copySize cannot exceed 100 percent")
	}

	if cfg.MaxOrderSizeUSD <= 0 {
		problems = append(problems, "maxOrderSizeUSD must be greater than zero")
	}
	if cfg.MinOrderSizeUSD < 0 {
		problems = append(problems, "minOrderSizeUSD cannot be negative")
	}
	if cfg.MaxOrderSizeUSD > 0 && cfg.MinOrderSizeUSD > cfg.MaxOrderSizeUSD {
		problems = append(problems, "minOrderSizeUSD cannot exceed maxOrderSizeUSD")
	}

	if cfg.Strategy == StrategyAdaptive {
		if cfg.AdaptiveMinPercent <= 0 || cfg.AdaptiveMaxPercent <= 0 {
			problems = append(problems, "adaptive strategy requires both adaptiveMinPercent and adaptiveMaxPercent")
		} else if cfg.AdaptiveMinPercent > cfg.AdaptiveMaxPercent {
			problems = append(problems, "adaptiveMinPercent cannot exceed adaptiveMaxPercent")
		}
		if cfg.AdaptiveThreshold <= 0 {
			problems = append(problems, "adaptiveThreshold must be greater than zero")
		}
	}

	problems = append(problems, validateTiers(cfg.TieredMultipliers)...)

	return problems
}

func validateTiers(tiers []Tier) []string {
	var problems []string
	for i, tier := range tiers {
		if tier.Multiplier < 0 {
			problems = append(problems, fmt.Sprintf("tier %d has a negative multiplier", i))
		}
		if tier.Min < 0 {
			problems = append(problems, fmt.Sprintf("tier %d has a negative lower bound", i))
		}
		if i < len(tiers)-1 {
			if tier.Unbounded() {
				problems = append(problems, fmt.Sprintf("unbounded tier %d must be last", i))
			} else if tiers[i+1].Min < tier.Max {
				problems = append(problems, fmt.Sprintf("tiers %d and %d overlap", i, i+1))
			}
		}
	}
	return problems
}
