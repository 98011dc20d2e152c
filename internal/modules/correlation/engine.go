// Package correlation computes rolling pairwise Pearson correlation of
// adjusted daily log-returns across the satellite candidate set.
//
// Core anchor holdings are excluded from the pool by construction:
// correlation is only ever evaluated among instruments eligible for
// satellite rotation.
package correlation

import (
	"math"
	"sort"
	"time"

	"github.com/aristath/rotor/internal/domain"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// varianceEpsilon is the variance floor below which a return series is
// treated as degenerate (e.g. halted trading) and its correlations as
// undefined. Fail-closed: an undefined correlation fails the qualification
// criterion, it never passes by default.
const varianceEpsilon = 1e-12

// Engine computes correlation matrices over a fixed rolling window
type Engine struct {
	windowDays int
	log        zerolog.Logger
}

// NewEngine creates a correlation engine with the given rolling window
// (in trading days)
func NewEngine(windowDays int, log zerolog.Logger) *Engine {
	return &Engine{
		windowDays: windowDays,
		log:        log.With().Str("component", "correlation").Logger(),
	}
}

// Compute builds the full pairwise Pearson correlation matrix for the given
// candidate series over the engine's window.
//
// Returns are aligned by calendar date; a pair needs at least windowDays
// overlapping observations. Instruments with too little history, too few
// aligned observations, or ~zero variance over the window are marked
// undefined rather than given a fabricated coefficient.
//
// Symmetry and the identity diagonal hold by construction: each pair is
// computed once and stored in both orientations.
func (e *Engine) Compute(asOf time.Time, candidates []*domain.TotalReturnSeries) *domain.CorrelationMatrix {
	ids := make([]string, 0, len(candidates))
	returnsByID := make(map[string]map[string]float64, len(candidates))

	for _, series := range candidates {
		ids = append(ids, series.InstrumentID)
		returnsByID[series.InstrumentID] = trailingLogReturns(series, e.windowDays)
	}
	sort.Strings(ids)

	matrix := domain.NewCorrelationMatrix(asOf, e.windowDays, ids)

	// Mark instruments that can't produce a full window of returns
	for _, id := range ids {
		if len(returnsByID[id]) < e.windowDays {
			matrix.MarkUndefined(id)
			e.log.Debug().
				Str("instrument", id).
				Int("observations", len(returnsByID[id])).
				Int("window", e.windowDays).
				Msg("Correlation undefined: insufficient return history")
		}
	}

	for i := 0; i < len(ids); i++ {
		matrix.Set(ids[i], ids[i], 1.0)
		for j := i + 1; j < len(ids); j++ {
			a, b := ids[i], ids[j]
			if matrix.Undefined[a] || matrix.Undefined[b] {
				continue
			}

			x, y := alignReturns(returnsByID[a], returnsByID[b])
			if len(x) < e.windowDays {
				// Conservative: misaligned calendars make the pair
				// incomparable for this cycle
				matrix.MarkUndefined(a)
				matrix.MarkUndefined(b)
				continue
			}

			if stat.Variance(x, nil) < varianceEpsilon {
				matrix.MarkUndefined(a)
				continue
			}
			if stat.Variance(y, nil) < varianceEpsilon {
				matrix.MarkUndefined(b)
				continue
			}

			matrix.Set(a, b, stat.Correlation(x, y, nil))
		}
	}

	return matrix
}

// trailingLogReturns extracts up to windowDays most recent daily log-returns
// from a series, keyed by calendar date
func trailingLogReturns(series *domain.TotalReturnSeries, windowDays int) map[string]float64 {
	returns := make(map[string]float64, windowDays)
	points := series.Points

	// Walk backwards so only the trailing window is materialized
	for i := len(points) - 1; i > 0 && len(returns) < windowDays; i-- {
		prev, curr := points[i-1].Value, points[i].Value
		if prev <= 0 || curr <= 0 {
			continue
		}
		returns[points[i].Date.UTC().Format("2006-01-02")] = math.Log(curr / prev)
	}

	return returns
}

// alignReturns intersects two date-keyed return maps into parallel slices
// ordered by date
func alignReturns(a, b map[string]float64) ([]float64, []float64) {
	dates := make([]string, 0, len(a))
	for date := range a {
		if _, ok := b[date]; ok {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)

	x := make([]float64, len(dates))
	y := make([]float64, len(dates))
	for i, date := range dates {
		x[i] = a[date]
		y[i] = b[date]
	}
	return x, y
}
