package policy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseTieredMultipliers parses a tier spec of the form
// "1-10:2.0,10-100:1.0,100+:0.5". Tiers are sorted by lower bound; an
// unbounded tier must come last and ranges must not overlap.
func ParseTieredMultipliers(spec string) ([]Tier, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	var tiers []Tier
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		rangePart, multPart, found := strings.Cut(part, ":")
		if !found {
			return nil, fmt.Errorf("tier %q missing multiplier", part)
		}

		multiplier, err := strconv.ParseFloat(strings.TrimSpace(multPart), 64)
		if err != nil {
			return nil, fmt.Errorf("tier %q has non-numeric multiplier: %w", part, err)
		}
		if multiplier < 0 {
			return nil, fmt.Errorf("tier %q has negative multiplier", part)
		}

		tier := Tier{Multiplier: multiplier}
		rangePart = strings.TrimSpace(rangePart)
		if strings.HasSuffix(rangePart, "+") {
			min, err := strconv.ParseFloat(strings.TrimSuffix(rangePart, "+"), 64)
			if err != nil {
				return nil, fmt.Errorf("tier %q has invalid lower bound: %w", part, err)
			}
			tier.Min = min
			tier.Max = 0
		} else {
			minPart, maxPart, found := strings.Cut(rangePart, "-")
			if !found {
				return nil, fmt.Errorf("tier %q is not of the form min-max or min+", part)
			}
			min, err := strconv.ParseFloat(minPart, 64)
			if err != nil {
				return nil, fmt.Errorf("tier %q has invalid lower bound: %w", part, err)
			}
			max, err := strconv.ParseFloat(maxPart, 64)
			if err != nil {
				return nil, fmt.Errorf("tier %q has invalid upper bound: %w", part, err)
			}
			if max <= min {
				return nil, fmt.Errorf("tier %q has empty range", part)
			}
			tier.Min = min
			tier.Max = max
		}

		if tier.Min < 0 {
			return nil, fmt.Errorf("tier %q has negative lower bound", part)
		}
		tiers = append(tiers, tier)
	}

	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].Min < tiers[j].Min })

	for i := 0; i < len(tiers)-1; i++ {
		if tiers[i].Unbounded() {
			return nil, fmt.Errorf("unbounded tier %s must be last", formatTier(tiers[i]))
		}
		if tiers[i+1].Min < tiers[i].Max {
			return nil, fmt.Errorf("tiers %s and %s overlap", formatTier(tiers[i]), formatTier(tiers[i+1]))
		}
	}

	return tiers, nil
}

// FormatTieredMultipliers is the inverse of ParseTieredMultipliers.
func FormatTieredMultipliers(tiers []Tier) string {
	parts := make([]string, 0, len(tiers))
	for _, tier := range tiers {
		parts = append(parts, formatTier(tier))
	}
	return strings.Join(parts, ",")
}

func formatTier(tier Tier) string {
	if tier.Unbounded() {
		return fmt.Sprintf("%s+:%s", formatNumber(tier.Min), formatNumber(tier.Multiplier))
	}
	return fmt.Sprintf("%s-%s:%s", formatNumber(tier.Min), formatNumber(tier.Max), formatNumber(tier.Multiplier))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
