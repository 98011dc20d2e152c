package scoring

import (
	"math"

	"github.com/aristath/rotor/internal/domain"
	"github.com/markcheno/go-talib"
)

const (
	trendShortPeriod = 50
	trendLongPeriod  = 200
	volPeriod        = 30
	tradingDaysYear  = 252
)

// TrendFor computes supplementary indicator context from a series' adjusted
// values: 50/200-day simple moving averages and annualized volatility of
// daily log returns. Attached to rankings and decision rationales for the
// reader; it never gates a decision. Returns nil when the series is too
// short for the long moving average.
func TrendFor(series *domain.TotalReturnSeries) *domain.TrendContext {
	if series.Len() < trendLongPeriod {
		return nil
	}

	values := make([]float64, series.Len())
	for i, p := range series.Points {
		values[i] = p.Value
	}

	sma50 := talib.Sma(values, trendShortPeriod)
	sma200 := talib.Sma(values, trendLongPeriod)
	last := values[len(values)-1]

	ctx := &domain.TrendContext{
		SMA50:       sma50[len(sma50)-1],
		SMA200:      sma200[len(sma200)-1],
		AboveSMA200: last > sma200[len(sma200)-1],
	}

	// Annualized volatility from the trailing window of daily log returns
	logReturns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] > 0 && values[i] > 0 {
			logReturns = append(logReturns, math.Log(values[i]/values[i-1]))
		}
	}
	if len(logReturns) >= volPeriod {
		stddev := talib.StdDev(logReturns, volPeriod, 1.0)
		ctx.AnnualizedVol = stddev[len(stddev)-1] * math.Sqrt(tradingDaysYear)
	}

	return ctx
}
