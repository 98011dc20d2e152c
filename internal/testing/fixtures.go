package testing

import (
	"time"

	"github.com/aristath/rotor/internal/domain"
)

// Day returns midnight UTC for a date, the canonical bar timestamp
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Bars builds a daily bar sequence from consecutive closes, starting at the
// given date and skipping weekends
func Bars(instrumentID string, start time.Time, closes []float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, 0, len(closes))
	date := start
	for _, close := range closes {
		for date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
			date = date.AddDate(0, 0, 1)
		}
		bars = append(bars, domain.PriceBar{
			InstrumentID: instrumentID,
			Date:         date,
			Close:        close,
			Volume:       1000,
		})
		date = date.AddDate(0, 0, 1)
	}
	return bars
}

// TrendingBars builds n bars drifting from a start price by a fixed daily
// return. Deterministic: no randomness, so tests stay reproducible.
func TrendingBars(instrumentID string, start time.Time, n int, startPrice, dailyReturn float64) []domain.PriceBar {
	closes := make([]float64, n)
	price := startPrice
	for i := 0; i < n; i++ {
		closes[i] = price
		price *= 1 + dailyReturn
	}
	return Bars(instrumentID, start, closes)
}

// SeriesFromValues builds a total-return series directly from adjusted
// values with consecutive weekday dates. For tests that don't care about
// the adjustment step.
func SeriesFromValues(instrumentID string, start time.Time, values []float64) *domain.TotalReturnSeries {
	series := &domain.TotalReturnSeries{InstrumentID: instrumentID}
	date := start
	for _, v := range values {
		for date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
			date = date.AddDate(0, 0, 1)
		}
		series.Points = append(series.Points, domain.TRPoint{Date: date, Value: v, Close: v})
		date = date.AddDate(0, 0, 1)
	}
	return series
}
