// Package settings provides strategy configuration storage and validation.
// All engine parameters are externally supplied and validated once per
// evaluation cycle; a malformed configuration is cycle-fatal.
package settings

import (
	"fmt"

	"github.com/aristath/rotor/internal/domain"
)

// WindowWeight is one momentum lookback window with its weight in the
// composite score
type WindowWeight struct {
	Days   int     `json:"days"`
	Weight float64 `json:"weight"`
}

// StrategyConfig holds all tunable engine parameters
type StrategyConfig struct {
	Windows []WindowWeight `json:"windows"`

	// BufferThreshold is the minimum composite-score advantage a candidate
	// must show over the current holding before rotation is allowed.
	// Prevents rotation churn from noise-level score differences.
	BufferThreshold float64 `json:"buffer_threshold"`

	// MinHoldingDays is the minimum age of a satellite leg before it may be
	// rotated out
	MinHoldingDays int `json:"min_holding_days"`

	// CorrelationThreshold is the maximum allowed correlation between a
	// candidate and the top-ranked candidate
	CorrelationThreshold float64 `json:"correlation_threshold"`

	// CorrelationWindowDays is the rolling window for pairwise correlation
	CorrelationWindowDays int `json:"correlation_window_days"`

	// MaxLegs caps the number of concurrently held satellite legs
	MaxLegs int `json:"max_legs"`

	// ToleranceBand is the allowed absolute deviation from a core holding's
	// target weight before a rebalance is suggested (e.g. 0.02 = 2pp)
	ToleranceBand float64 `json:"tolerance_band"`

	// SuspectDropThreshold tags a single-day raw return below this value
	// with no matching distribution event as a suspected unrecorded
	// distribution (e.g. -0.15). Heuristic cross-check only; the adjustment
	// formula uses actual event records.
	SuspectDropThreshold float64 `json:"suspect_drop_threshold"`
}

// DefaultStrategyConfig returns the default engine parameters
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		Windows: []WindowWeight{
			{Days: 60, Weight: 0.6},
			{Days: 120, Weight: 0.4},
		},
		BufferThreshold:       0.01,
		MinHoldingDays:        30,
		CorrelationThreshold:  0.8,
		CorrelationWindowDays: 60,
		MaxLegs:               2,
		ToleranceBand:         0.02,
		SuspectDropThreshold:  -0.15,
	}
}

// Validate checks the configuration and normalizes window weights in place
// so they sum to 1. All failures wrap domain.ErrConfigurationInvalid.
func (c *StrategyConfig) Validate() error {
	if len(c.Windows) == 0 {
		return fmt.Errorf("%w: no momentum windows configured", domain.ErrConfigurationInvalid)
	}

	var weightSum float64
	seen := make(map[int]bool, len(c.Windows))
	for _, w := range c.Windows {
		if w.Days <= 0 {
			return fmt.Errorf("%w: window length must be positive, got %d", domain.ErrConfigurationInvalid, w.Days)
		}
		if w.Weight <= 0 {
			return fmt.Errorf("%w: window weight must be positive, got %f for %d days", domain.ErrConfigurationInvalid, w.Weight, w.Days)
		}
		if seen[w.Days] {
			return fmt.Errorf("%w: duplicate window length %d", domain.ErrConfigurationInvalid, w.Days)
		}
		seen[w.Days] = true
		weightSum += w.Weight
	}

	// Renormalize weights so they sum to exactly 1
	for i := range c.Windows {
		c.Windows[i].Weight /= weightSum
	}

	if c.BufferThreshold < 0 {
		return fmt.Errorf("%w: buffer threshold must be non-negative", domain.ErrConfigurationInvalid)
	}
	if c.MinHoldingDays < 0 {
		return fmt.Errorf("%w: min holding days must be non-negative", domain.ErrConfigurationInvalid)
	}
	if c.CorrelationThreshold < -1 || c.CorrelationThreshold > 1 {
		return fmt.Errorf("%w: correlation threshold must be within [-1, 1]", domain.ErrConfigurationInvalid)
	}
	if c.CorrelationWindowDays <= 1 {
		return fmt.Errorf("%w: correlation window must be at least 2 days", domain.ErrConfigurationInvalid)
	}
	if c.MaxLegs <= 0 {
		return fmt.Errorf("%w: max legs must be positive", domain.ErrConfigurationInvalid)
	}
	if c.ToleranceBand <= 0 || c.ToleranceBand >= 1 {
		return fmt.Errorf("%w: tolerance band must be within (0, 1)", domain.ErrConfigurationInvalid)
	}
	if c.SuspectDropThreshold >= 0 {
		return fmt.Errorf("%w: suspect drop threshold must be negative", domain.ErrConfigurationInvalid)
	}

	return nil
}

// MaxWindowDays returns the longest configured lookback window
func (c *StrategyConfig) MaxWindowDays() int {
	max := 0
	for _, w := range c.Windows {
		if w.Days > max {
			max = w.Days
		}
	}
	return max
}
