// Package adjustment reconstructs dividend-adjusted total-return series from
// raw price bars and distribution events.
//
// The adjusted index reflects the return an investor actually earned: the
// mechanical price drop on an ex-dividend date is netted out using the
// recorded distribution amount, without retroactively rewriting historical
// prices. A raw series that shows -49.7% on a large ex-date can hide a true
// -1.3% total return; that distortion is the defect class this package
// corrects for.
package adjustment

import (
	"fmt"
	"time"

	"github.com/aristath/rotor/internal/domain"
	"github.com/rs/zerolog"
)

// Adjuster builds total-return series. It is a pure function of its inputs:
// the same bars and events always produce the same series.
type Adjuster struct {
	// suspectDropThreshold tags a single-day raw return at or below this
	// value with no matching distribution event as a suspected unrecorded
	// distribution (e.g. -0.15). Advisory only.
	suspectDropThreshold float64
	log                  zerolog.Logger
}

// NewAdjuster creates a new return adjuster
func NewAdjuster(suspectDropThreshold float64, log zerolog.Logger) *Adjuster {
	return &Adjuster{
		suspectDropThreshold: suspectDropThreshold,
		log:                  log.With().Str("component", "adjuster").Logger(),
	}
}

// Build constructs the total-return series for one instrument from its
// ascending-ordered price bars and distribution events.
//
// TR[0] seeds at the first valid raw close (keeping the series in price
// units so adjusted and nominal values stay directly comparable). For each
// subsequent day t:
//
//	TR[t] = TR[t-1] * (close[t] + distribution[t]) / close[t-1]
//
// where distribution[t] is the per-unit amount of any event whose ex-date
// falls on day t, else 0.
//
// Days whose previous close is zero or missing are skipped and recorded as
// DataGap conditions; the series never interpolates silently. Suspected
// unrecorded distributions (raw drop beyond the threshold with no event)
// pass through unadjusted and are tagged as warnings, because misclassifying
// a genuine crash as a dividend would corrupt the series.
func (a *Adjuster) Build(instrumentID string, bars []domain.PriceBar, events []domain.DistributionEvent) (*domain.TotalReturnSeries, error) {
	series := &domain.TotalReturnSeries{InstrumentID: instrumentID}
	if len(bars) == 0 {
		return series, nil
	}

	distByDate := make(map[string]float64, len(events))
	for _, ev := range events {
		if ev.InstrumentID != instrumentID {
			return nil, fmt.Errorf("distribution event for %s passed to adjuster for %s", ev.InstrumentID, instrumentID)
		}
		distByDate[dateKey(ev.ExDate)] = ev.AmountPerUnit
	}

	var prevClose, prevTR float64
	for _, bar := range bars {
		if bar.Close <= 0 {
			// The bar itself is unusable; it can't seed the series and
			// can't serve as the next baseline either.
			series.Gaps = append(series.Gaps, domain.DataGap{
				Date:   bar.Date,
				Reason: "zero or missing close",
			})
			continue
		}

		if prevClose <= 0 {
			// Seed (first valid bar, or first bar after a gap in seeding)
			prevClose = bar.Close
			prevTR = bar.Close
			series.Points = append(series.Points, domain.TRPoint{
				Date:  bar.Date,
				Value: prevTR,
				Close: bar.Close,
			})
			continue
		}

		dist := distByDate[dateKey(bar.Date)]
		rawReturn := bar.Close/prevClose - 1

		if dist == 0 && rawReturn <= a.suspectDropThreshold {
			series.Warnings = append(series.Warnings, domain.QualityWarning{
				Date:      bar.Date,
				RawReturn: rawReturn,
				Threshold: a.suspectDropThreshold,
				Message:   "suspected unrecorded distribution: large single-day drop with no event",
			})
			a.log.Warn().
				Str("instrument", instrumentID).
				Str("date", bar.Date.Format("2006-01-02")).
				Float64("raw_return", rawReturn).
				Msg("Suspected unrecorded distribution")
		}

		tr := prevTR * (bar.Close + dist) / prevClose
		series.Points = append(series.Points, domain.TRPoint{
			Date:  bar.Date,
			Value: tr,
			Close: bar.Close,
		})

		prevClose = bar.Close
		prevTR = tr
	}

	return series, nil
}

// dateKey normalizes a timestamp to its UTC calendar date for event matching
func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
