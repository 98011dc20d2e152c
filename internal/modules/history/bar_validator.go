package history

import (
	"github.com/aristath/rotor/internal/domain"
	"github.com/rs/zerolog"
)

const (
	// Validation thresholds for incoming bars
	maxPriceChangePercent = 1000.0  // >1000% day-over-day change is a spike
	minPriceChangePercent = -90.0   // <-90% change is a crash
	absolutePriceMax      = 100000.0
	absolutePriceMin      = 0.0001
)

// BarValidator performs sanity checks on incoming price bars before they are
// appended to the event log. Invalid bars are rejected, never "corrected":
// the engine's series construction handles gaps explicitly and silent fixes
// here would hide data-feed defects.
type BarValidator struct {
	log zerolog.Logger
}

// NewBarValidator creates a new bar validator
func NewBarValidator(log zerolog.Logger) *BarValidator {
	return &BarValidator{
		log: log.With().Str("component", "bar_validator").Logger(),
	}
}

// ValidateBar checks a single bar against its predecessor.
// Returns (isValid, reason). prevClose <= 0 skips the change checks.
func (v *BarValidator) ValidateBar(bar domain.PriceBar, prevClose float64) (bool, string) {
	if bar.Close <= 0 {
		return false, "non_positive_close"
	}
	if bar.Close > absolutePriceMax {
		return false, "above_absolute_max"
	}
	if bar.Close < absolutePriceMin {
		return false, "below_absolute_min"
	}

	if prevClose > 0 {
		changePercent := ((bar.Close - prevClose) / prevClose) * 100.0
		if changePercent > maxPriceChangePercent {
			return false, "spike_detected"
		}
		if changePercent < minPriceChangePercent {
			return false, "crash_detected"
		}
	}

	return true, ""
}

// FilterBars validates an ascending-ordered bar slice and returns the valid
// bars plus a count of rejections. Rejections are logged per bar.
func (v *BarValidator) FilterBars(bars []domain.PriceBar) ([]domain.PriceBar, int) {
	valid := make([]domain.PriceBar, 0, len(bars))
	rejected := 0
	prevClose := 0.0

	for _, bar := range bars {
		ok, reason := v.ValidateBar(bar, prevClose)
		if !ok {
			rejected++
			v.log.Warn().
				Str("instrument", bar.InstrumentID).
				Str("date", bar.Date.Format("2006-01-02")).
				Float64("close", bar.Close).
				Str("reason", reason).
				Msg("Rejected price bar")
			continue
		}
		valid = append(valid, bar)
		prevClose = bar.Close
	}

	return valid, rejected
}
